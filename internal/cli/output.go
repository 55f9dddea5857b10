package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/rodaine/table"
	"gopkg.in/yaml.v3"
)

// OutputFormat defines the output format for listing commands.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatPlain OutputFormat = "plain"
)

// parseFormat validates a --format value.
func parseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatTable, FormatJSON, FormatYAML, FormatPlain:
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %s (must be table, json, yaml, or plain)", s)
	}
}

var headingStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("229"))

var mutedStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("241"))

// heading renders a section heading.
func heading(s string) string {
	return headingStyle.Render(s)
}

// muted renders secondary text.
func muted(s string) string {
	return mutedStyle.Render(s)
}

// newTable creates a table writing to w with styled headers.
func newTable(w io.Writer, columns ...interface{}) table.Table {
	headerFmt := func(format string, vals ...interface{}) string {
		return headingStyle.Render(fmt.Sprintf(format, vals...))
	}
	return table.New(columns...).
		WithWriter(w).
		WithHeaderFormatter(headerFmt)
}

// writeJSON encodes v as indented JSON.
func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// writeYAML encodes v as YAML.
func writeYAML(w io.Writer, v interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}
