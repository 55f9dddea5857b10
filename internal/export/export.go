// Package export renders a catalog snapshot as a Markdown index, YAML or
// JSON document.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chazuruo/flowdex/internal/catalog"
)

// Format represents the export format.
type Format string

const (
	// FormatMarkdown exports a Markdown catalog index.
	FormatMarkdown Format = "md"
	// FormatYAML exports the snapshot as YAML.
	FormatYAML Format = "yaml"
	// FormatJSON exports the snapshot as JSON.
	FormatJSON Format = "json"
)

// Exporter renders snapshots in one format.
type Exporter struct {
	format   Format
	template *template.Template
	now      func() time.Time
}

// Options contains export options.
type Options struct {
	Format Format

	// CustomTemplate replaces the built-in Markdown template. Relative
	// names are looked up in ~/.config/flowdex/templates first.
	CustomTemplate string

	// Now stamps generated documents. Defaults to time.Now.
	Now func() time.Time
}

// NewExporter creates a new exporter.
func NewExporter(opts Options) (*Exporter, error) {
	e := &Exporter{format: opts.Format, now: opts.Now}
	if e.now == nil {
		e.now = time.Now
	}

	switch opts.Format {
	case FormatMarkdown:
		tmpl, err := loadTemplate(opts.CustomTemplate)
		if err != nil {
			return nil, err
		}
		e.template = tmpl
	case FormatYAML, FormatJSON:
		if opts.CustomTemplate != "" {
			return nil, fmt.Errorf("custom templates only apply to the md format")
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", opts.Format)
	}

	return e, nil
}

var templateFuncs = template.FuncMap{
	"join": strings.Join,
	"anchor": func(s string) string {
		return catalog.Slugify(s)
	},
}

// loadTemplate parses the custom template at path, or the built-in one.
func loadTemplate(path string) (*template.Template, error) {
	if path == "" {
		return template.New("export").Funcs(templateFuncs).Parse(builtinMarkdownTemplate)
	}

	if !filepath.IsAbs(path) {
		if homeDir, err := os.UserHomeDir(); err == nil {
			configPath := filepath.Join(homeDir, ".config", "flowdex", "templates", filepath.Base(path))
			if _, err := os.Stat(configPath); err == nil {
				path = configPath
			}
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template file: %w", err)
	}
	return template.New("export").Funcs(templateFuncs).Parse(string(data))
}

// Export renders snap.
func (e *Exporter) Export(snap *catalog.Snapshot) ([]byte, error) {
	if snap == nil {
		snap = &catalog.Snapshot{}
	}

	switch e.format {
	case FormatJSON:
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding JSON: %w", err)
		}
		return append(data, '\n'), nil

	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return nil, fmt.Errorf("encoding YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encoding YAML: %w", err)
		}
		return buf.Bytes(), nil
	}

	var buf bytes.Buffer
	if err := e.template.Execute(&buf, e.templateData(snap)); err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToFile renders snap and writes it to path.
func (e *Exporter) ExportToFile(snap *catalog.Snapshot, path string) error {
	output, err := e.Export(snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(path, output, 0644); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	return nil
}

// templateData creates template data from a snapshot.
func (e *Exporter) templateData(snap *catalog.Snapshot) map[string]interface{} {
	tagNames := make([]string, 0, len(snap.Tags))
	for _, t := range snap.Tags {
		tagNames = append(tagNames, t.Name)
	}

	return map[string]interface{}{
		"Categories":  snap.Categories,
		"Workflows":   snap.Workflows,
		"Tags":        snap.Tags,
		"TagNames":    tagNames,
		"Total":       snap.Total(),
		"GeneratedAt": e.now().UTC().Format(time.RFC3339),
	}
}

// builtinMarkdownTemplate is the default Markdown template.
const builtinMarkdownTemplate = `# Workflow Catalog

{{.Total}} workflows in {{len .Categories}} categories.
{{if .TagNames}}
**Tags:** {{join .TagNames ", "}}
{{end}}
## Categories
{{range .Categories}}
- [{{.Icon}} {{.Name}}](#{{anchor .Name}}) ({{.WorkflowCount}})
{{- end}}
{{range .Categories}}
## {{.Icon}} {{.Name}}
{{if .Description}}
{{.Description}}
{{end}}
| Workflow | Type | Complexity | Nodes | Path |
|---|---|---|---|---|
{{- range .Workflows}}
| {{.Name}} | {{.Type}} | {{.Complexity}} | {{.NodeCount}} | {{if .Path}}` + "`{{.Path}}`" + `{{end}} |
{{- end}}
{{end}}
---
*Generated by flowdex at {{.GeneratedAt}}*
`
