// Package index scans a workflow directory and records every file it
// finds in the n8n_files table, where the catalog picks them up as
// auxiliary rows.
package index

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chazuruo/flowdex/internal/catalog"
	fxerrors "github.com/chazuruo/flowdex/internal/errors"
	"github.com/chazuruo/flowdex/internal/logging"
	"github.com/chazuruo/flowdex/internal/tables"
)

const (
	// DefaultMaxInlineBytes is the largest .json file stored inline.
	DefaultMaxInlineBytes = 1 << 20

	// DefaultBatchSize is the number of rows per insert.
	DefaultBatchSize = 100
)

// Builder scans directories and syncs them into the table store.
type Builder struct {
	client      tables.Client
	maxInline   int64
	batchSize   int
	incremental bool
	logger      *zap.Logger
	now         func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithMaxInlineBytes sets the inline size limit. Zero disables inlining.
func WithMaxInlineBytes(n int64) Option {
	return func(b *Builder) { b.maxInline = n }
}

// WithBatchSize sets the number of rows per insert.
func WithBatchSize(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithIncremental skips files whose path is already recorded.
func WithIncremental(on bool) Option {
	return func(b *Builder) { b.incremental = on }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = logging.OrNop(l) }
}

// WithClock sets the clock used for sync durations.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// NewBuilder creates a new Builder writing through client.
func NewBuilder(client tables.Client, opts ...Option) *Builder {
	b := &Builder{
		client:    client,
		maxInline: DefaultMaxInlineBytes,
		batchSize: DefaultBatchSize,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Scan walks dir and returns one row per file and directory below it,
// sorted by path. Hidden entries are skipped.
//
// Paths are recorded relative to dir with a leading slash, so they resolve
// against a download root set to dir. The category of an entry is the
// first path segment below dir.
func (b *Builder) Scan(dir string) ([]tables.RawFileRow, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fxerrors.Mark(fmt.Errorf("directory %s does not exist", dir), fxerrors.ErrNotFound)
		}
		return nil, fxerrors.Mark(err, fxerrors.ErrIO)
	}
	if !info.IsDir() {
		return nil, fxerrors.Mark(fmt.Errorf("%s is not a directory", dir), fxerrors.ErrInvalid)
	}

	var rows []tables.RawFileRow
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			b.logger.Warn("failed to scan entry", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == dir {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		row, err := b.scanEntry(path, rel, d)
		if err != nil {
			b.logger.Warn("failed to index entry", zap.String("path", path), zap.Error(err))
			return nil
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, fxerrors.Mark(err, fxerrors.ErrIO)
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].FilePath < rows[j].FilePath
	})
	return rows, nil
}

func (b *Builder) scanEntry(path, rel string, d fs.DirEntry) (tables.RawFileRow, error) {
	row := tables.RawFileRow{
		Filename: d.Name(),
		FilePath: "/" + rel,
		Category: category(rel),
	}

	if d.IsDir() {
		row.IsDirectory = true
		return row, nil
	}

	info, err := d.Info()
	if err != nil {
		return row, err
	}
	row.FileSize = tables.Number(info.Size())
	row.FileExtension = catalog.FileExtension(d.Name())

	if row.FileExtension == "json" && b.maxInline > 0 && info.Size() <= b.maxInline {
		data, err := os.ReadFile(path)
		if err != nil {
			return row, err
		}
		if json.Valid(data) {
			row.JSON = data
		} else {
			b.logger.Debug("not inlining invalid JSON", zap.String("path", path))
		}
	}
	return row, nil
}

// category returns the first segment of rel when rel is nested.
func category(rel string) string {
	first, _, nested := strings.Cut(rel, "/")
	if !nested {
		return ""
	}
	return first
}

// Summary counts scanned entries by kind.
type Summary struct {
	Total       int `json:"total" yaml:"total"`
	JSON        int `json:"json" yaml:"json"`
	Text        int `json:"text" yaml:"text"`
	Directories int `json:"directories" yaml:"directories"`
	Other       int `json:"other" yaml:"other"`
}

// Summarize counts rows by kind.
func Summarize(rows []tables.RawFileRow) Summary {
	s := Summary{Total: len(rows)}
	for _, r := range rows {
		switch {
		case bool(r.IsDirectory):
			s.Directories++
		case r.FileExtension == "json":
			s.JSON++
		case r.FileExtension == "txt":
			s.Text++
		default:
			s.Other++
		}
	}
	return s
}
