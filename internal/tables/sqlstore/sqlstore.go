// Package sqlstore is a tables.Client backed by a local sqlite database.
// The schema mirrors the hosted tables and is applied with goose on Open.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	fxerrors "github.com/chazuruo/flowdex/internal/errors"
	"github.com/chazuruo/flowdex/internal/logging"
	"github.com/chazuruo/flowdex/internal/tables"

	_ "modernc.org/sqlite"
)

// Migrations holds the embedded schema migrations.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// joinSep separates the joined table from the column in result aliases.
const joinSep = "__"

// Columns holding JSON documents as TEXT. They are decoded on the way out.
var jsonColumns = map[string]bool{
	"json":     true,
	"metadata": true,
}

// Store is a sqlite-backed tables.Client.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = logging.OrNop(l) }
}

// Open opens the sqlite database at dbPath, creating it and its parent
// directory when missing, and applies pending migrations.
func Open(ctx context.Context, dbPath string, opts ...Option) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is not set")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Debug("sqlite store opened", zap.String("path", dbPath))
	return s, nil
}

// Migrate applies pending migrations.
func (s *Store) Migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Version returns the current schema version.
func (s *Store) Version(ctx context.Context) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, fmt.Errorf("failed to set dialect: %w", err)
	}
	return goose.GetDBVersionContext(ctx, s.db)
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Select implements tables.Client.
func (s *Store) Select(ctx context.Context, q tables.Query) ([]tables.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, &fxerrors.CatalogError{Op: "select", Table: q.Table, Err: fxerrors.Mark(err, fxerrors.ErrRejected)}
	}

	query, args := buildSelect(q)
	s.logger.Debug("select", zap.String("table", q.Table), zap.String("sql", query))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &fxerrors.CatalogError{Op: "select", Table: q.Table, Err: classify(err)}
	}
	defer rows.Close()

	out, err := scanRecords(rows)
	if err != nil {
		return nil, &fxerrors.CatalogError{Op: "select", Table: q.Table, Err: classify(err)}
	}
	return out, nil
}

// Insert implements tables.Client. All rows are written in one transaction.
func (s *Store) Insert(ctx context.Context, table string, rows []tables.Record) ([]tables.Record, error) {
	if err := tables.ValidateIdent(table); err != nil {
		return nil, &fxerrors.CatalogError{Op: "insert", Table: table, Err: fxerrors.Mark(err, fxerrors.ErrRejected)}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &fxerrors.CatalogError{Op: "insert", Table: table, Err: classify(err)}
	}
	defer tx.Rollback() //nolint:errcheck

	out := make([]tables.Record, 0, len(rows))
	for _, row := range rows {
		query, args, err := buildInsert(table, row)
		if err != nil {
			return nil, &fxerrors.CatalogError{Op: "insert", Table: table, Err: fxerrors.Mark(err, fxerrors.ErrRejected)}
		}

		result, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, &fxerrors.CatalogError{Op: "insert", Table: table, Err: classify(err)}
		}
		inserted, err := scanRecords(result)
		result.Close()
		if err != nil {
			return nil, &fxerrors.CatalogError{Op: "insert", Table: table, Err: classify(err)}
		}
		out = append(out, inserted...)
	}

	if err := tx.Commit(); err != nil {
		return nil, &fxerrors.CatalogError{Op: "insert", Table: table, Err: classify(err)}
	}
	s.logger.Debug("insert", zap.String("table", table), zap.Int("rows", len(out)))
	return out, nil
}

func quote(ident string) string {
	return `"` + ident + `"`
}

func buildSelect(q tables.Query) (string, []any) {
	var b strings.Builder
	var args []any

	b.WriteString("SELECT t.*")
	if q.Join != nil {
		for _, col := range q.Join.Columns {
			fmt.Fprintf(&b, ", j.%s AS %s", quote(col), quote(q.Join.Table+joinSep+col))
		}
	}
	fmt.Fprintf(&b, " FROM %s t", quote(q.Table))
	if q.Join != nil {
		fmt.Fprintf(&b, " LEFT JOIN %s j ON j.\"id\" = t.%s", quote(q.Join.Table), quote(q.Join.ForeignKey))
	}

	if len(q.Eq) > 0 {
		cols := make([]string, 0, len(q.Eq))
		for col := range q.Eq {
			cols = append(cols, col)
		}
		sort.Strings(cols)

		conds := make([]string, 0, len(cols))
		for _, col := range cols {
			conds = append(conds, "t."+quote(col)+" = ?")
			args = append(args, bindValue(q.Eq[col]))
		}
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}

	if q.OrderBy != "" {
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY t.%s %s, t.rowid ASC", quote(q.OrderBy), dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String(), args
}

func buildInsert(table string, row tables.Record) (string, []any, error) {
	if len(row) == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING *", quote(table)), nil, nil
	}

	cols := make([]string, 0, len(row))
	for col := range row {
		if err := tables.ValidateIdent(col); err != nil {
			return "", nil, err
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		quoted[i] = quote(col)
		marks[i] = "?"
		args[i] = bindValue(row[col])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		quote(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
	return query, args, nil
}

// bindValue converts a Record value into something the sqlite driver binds.
func bindValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case json.RawMessage:
		return string(val)
	case map[string]any, tables.Record, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		return string(data)
	}
	return v
}

func scanRecords(rows *sql.Rows) ([]tables.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []tables.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		rec := make(tables.Record, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			if s, ok := v.(string); ok && jsonColumns[col] && json.Valid([]byte(s)) {
				v = json.RawMessage(s)
			}

			if table, field, ok := strings.Cut(col, joinSep); ok {
				embedded, _ := rec[table].(tables.Record)
				if embedded == nil {
					embedded = tables.Record{}
					rec[table] = embedded
				}
				embedded[field] = v
				continue
			}
			rec[col] = v
		}
		nullEmbeds(rec)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// nullEmbeds replaces joined records whose columns are all NULL with nil,
// so an unmatched left join looks like a missing relation.
func nullEmbeds(rec tables.Record) {
	for key, v := range rec {
		embedded, ok := v.(tables.Record)
		if !ok {
			continue
		}
		empty := true
		for _, field := range embedded {
			if field != nil {
				empty = false
				break
			}
		}
		if empty {
			rec[key] = nil
		}
	}
}

func classify(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return fxerrors.Mark(err, fxerrors.ErrCanceled)
	case errors.Is(err, context.DeadlineExceeded):
		return fxerrors.Mark(err, fxerrors.ErrUnavailable)
	}
	return fxerrors.Mark(err, fxerrors.ErrRejected)
}
