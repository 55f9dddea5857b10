// Package download turns a catalog workflow into downloadable bytes: its
// inline content, the backing file under a root directory, or a
// placeholder when neither is available.
package download

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chazuruo/flowdex/internal/catalog"
	fxerrors "github.com/chazuruo/flowdex/internal/errors"
	"github.com/chazuruo/flowdex/internal/logging"
)

// Source says where downloaded content came from.
type Source string

const (
	SourceInline      Source = "inline"
	SourceFile        Source = "file"
	SourcePlaceholder Source = "placeholder"
)

// Content is a resolved download.
type Content struct {
	Filename    string
	ContentType string
	Data        []byte
	Source      Source
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Resolver resolves downloads against a root directory. Paths that would
// leave the root are refused before anything is read.
type Resolver struct {
	root     string
	realRoot string
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = logging.OrNop(l) }
}

// WithClock sets the clock used for placeholder timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithIDGenerator sets the generator for placeholder workflow ids.
func WithIDGenerator(newID func() string) Option {
	return func(r *Resolver) { r.newID = newID }
}

// NewResolver returns a Resolver rooted at root.
func NewResolver(root string, opts ...Option) (*Resolver, error) {
	if strings.TrimSpace(root) == "" {
		return nil, &fxerrors.DownloadError{Op: "init", Err: fxerrors.ErrInvalid}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &fxerrors.DownloadError{Op: "init", Path: root, Err: fxerrors.Mark(err, fxerrors.ErrInvalid)}
	}

	r := &Resolver{
		root:     abs,
		realRoot: abs,
		logger:   zap.NewNop(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		r.realRoot = real
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Root returns the absolute root directory.
func (r *Resolver) Root() string { return r.root }

// Resolve produces the download for wf, trying inline content, then the
// backing file, then a placeholder. cat is the category wf is filed under
// and may be nil.
func (r *Resolver) Resolve(wf catalog.WorkflowFile, cat *catalog.Category) (*Content, error) {
	logger := r.logger.With(zap.String("workflow", wf.ID))
	if cat != nil {
		logger = logger.With(zap.String("category", cat.Name))
	}

	if wf.HasContent() {
		data, err := inlineData(wf.JSONContent)
		if err != nil {
			return nil, &fxerrors.DownloadError{Op: "resolve", Path: wf.Path, Err: fxerrors.Mark(err, fxerrors.ErrInvalid)}
		}
		logger.Debug("serving inline content")
		return &Content{
			Filename:    whitespaceRegex.ReplaceAllString(strings.TrimSpace(wf.Name), "_") + ".json",
			ContentType: ContentType("json"),
			Data:        data,
			Source:      SourceInline,
		}, nil
	}

	if wf.Path != "" {
		return r.ResolvePath(wf.Path)
	}

	ext := wf.FileExtension
	if ext == "" {
		ext = wf.Type
	}
	if ext == "" {
		ext = "json"
	}
	logger.Debug("no content or path, generating placeholder")
	return r.Placeholder(whitespaceRegex.ReplaceAllString(strings.TrimSpace(wf.Name), "_") + "." + ext)
}

// inlineData passes JSON strings through and pretty-prints anything else.
func inlineData(raw json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		return []byte(s), nil
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, trimmed, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ResolvePath reads the file at p, relative to the root. A leading slash
// is relative to the root as well. Paths escaping the root are refused
// with ErrForbidden and the root itself with ErrInvalid; missing or
// unreadable files yield a placeholder.
func (r *Resolver) ResolvePath(p string) (*Content, error) {
	if strings.TrimSpace(p) == "" || strings.ContainsRune(p, 0) {
		return nil, &fxerrors.DownloadError{Op: "resolve", Path: p, Err: fxerrors.ErrInvalid}
	}

	full, err := r.locate(p)
	if err != nil {
		r.logger.Warn("refusing path outside download root", zap.String("path", p))
		return nil, &fxerrors.DownloadError{Op: "resolve", Path: p, Err: err}
	}
	if full == r.root {
		return nil, &fxerrors.DownloadError{Op: "resolve", Path: p, Err: fxerrors.ErrInvalid}
	}

	filename := filepath.Base(full)
	data, err := os.ReadFile(full)
	if err != nil {
		r.logger.Info("backing file unavailable, generating placeholder",
			zap.String("path", p),
			zap.Error(err),
		)
		return r.Placeholder(filename)
	}

	return &Content{
		Filename:    filename,
		ContentType: ContentType(catalog.FileExtension(filename)),
		Data:        data,
		Source:      SourceFile,
	}, nil
}

// locate maps p onto an absolute path under the root.
func (r *Resolver) locate(p string) (string, error) {
	rel := filepath.FromSlash(strings.TrimLeft(strings.ReplaceAll(p, `\`, "/"), "/"))
	full := filepath.Join(r.root, rel)
	if !within(r.root, full) {
		return "", fxerrors.ErrForbidden
	}

	// A symlink inside the root may still point outside it.
	if real, err := filepath.EvalSymlinks(full); err == nil && !within(r.realRoot, real) {
		return "", fxerrors.ErrForbidden
	}
	return full, nil
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// ContentType maps a file extension to a MIME type.
func ContentType(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "json":
		return "application/json"
	case "txt":
		return "text/plain"
	}
	return "application/octet-stream"
}

// placeholderWorkflow is an empty workflow document. Field order is the
// output order.
type placeholderWorkflow struct {
	Name        string         `json:"name"`
	Nodes       []any          `json:"nodes"`
	Connections map[string]any `json:"connections"`
	Active      bool           `json:"active"`
	Settings    map[string]any `json:"settings"`
	ID          string         `json:"id"`
}

// Placeholder synthesizes stand-in content for filename.
func (r *Resolver) Placeholder(filename string) (*Content, error) {
	filename = path.Base(strings.ReplaceAll(filename, `\`, "/"))
	ext := catalog.FileExtension(filename)
	name := catalog.Humanize(filename)
	if name == "" {
		name = "Workflow"
	}

	var data []byte
	contentType := "text/plain"
	if ext == "json" {
		contentType = ContentType(ext)
		doc := placeholderWorkflow{
			Name:        name,
			Nodes:       []any{},
			Connections: map[string]any{},
			Active:      false,
			Settings:    map[string]any{},
			ID:          r.newID(),
		}
		encoded, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, &fxerrors.DownloadError{Op: "placeholder", Path: filename, Err: err}
		}
		data = encoded
	} else {
		data = []byte("# " + name + "\n\n" +
			"This is a placeholder workflow file. Please customize it according to your needs.\n\n" +
			"Created: " + r.now().UTC().Format(time.RFC3339) + "\n")
	}

	return &Content{
		Filename:    filename,
		ContentType: contentType,
		Data:        data,
		Source:      SourcePlaceholder,
	}, nil
}

// StatusCode maps a resolver error onto an HTTP status for an endpoint
// that delegates to the resolver.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return 200
	case fxerrors.IsInvalid(err):
		return 400
	case fxerrors.IsForbidden(err):
		return 403
	}
	return 500
}

// ErrorBody renders err as the JSON body returned with StatusCode.
func ErrorBody(err error) []byte {
	msg := "internal error"
	switch {
	case err == nil:
		return []byte(`{}`)
	case errors.Is(err, fxerrors.ErrInvalid):
		msg = "file path is required"
	case errors.Is(err, fxerrors.ErrForbidden):
		msg = "access denied"
	}
	body, _ := json.Marshal(map[string]string{"error": msg})
	return body
}
