// Package memstore is an in-memory tables.Client. It backs the "memory"
// backend and the tests of everything built on top of tables.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	fxerrors "github.com/chazuruo/flowdex/internal/errors"
	"github.com/chazuruo/flowdex/internal/tables"
)

// Hook runs before every Select and Insert. A non-nil error fails the call.
type Hook func(ctx context.Context, op, table string) error

// Store holds tables as ordered slices of records.
type Store struct {
	mu     sync.RWMutex
	tables map[string][]tables.Record
	nextID int64
	hook   Hook
}

// New returns a Store with every flowdex table created and empty.
func New() *Store {
	s := &Store{tables: make(map[string][]tables.Record)}
	for _, name := range []string{
		tables.TableCategories,
		tables.TableWorkflows,
		tables.TableTags,
		tables.TableWorkflowTags,
		tables.TableRawFiles,
		tables.TableSyncLogs,
	} {
		s.tables[name] = nil
	}
	return s
}

// SetHook installs h, replacing any previous hook.
func (s *Store) SetHook(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = h
}

// Seed appends rows to table as-is, without assigning ids.
func (s *Store) Seed(table string, rows ...tables.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.tables[table] = append(s.tables[table], clone(r))
	}
}

// Len returns the number of rows in table.
func (s *Store) Len(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}

func (s *Store) runHook(ctx context.Context, op, table string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	h := s.hook
	s.mu.RUnlock()
	if h == nil {
		return nil
	}
	if err := h(ctx, op, table); err != nil {
		return err
	}
	return ctx.Err()
}

// Select implements tables.Client.
func (s *Store) Select(ctx context.Context, q tables.Query) ([]tables.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, &fxerrors.CatalogError{Op: "select", Table: q.Table, Err: fxerrors.Mark(err, fxerrors.ErrRejected)}
	}
	if err := s.runHook(ctx, "select", q.Table); err != nil {
		return nil, &fxerrors.CatalogError{Op: "select", Table: q.Table, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	src, ok := s.tables[q.Table]
	if !ok {
		return nil, &fxerrors.CatalogError{
			Op:    "select",
			Table: q.Table,
			Err:   fxerrors.Mark(fmt.Errorf("relation %q does not exist", q.Table), fxerrors.ErrRejected),
		}
	}

	out := make([]tables.Record, 0, len(src))
	for _, r := range src {
		if !matches(r, q.Eq) {
			continue
		}
		row := clone(r)
		if q.Join != nil {
			row[q.Join.Table] = nil
			if embedded := s.lookup(q.Join, r[q.Join.ForeignKey]); embedded != nil {
				row[q.Join.Table] = embedded
			}
		}
		out = append(out, row)
	}

	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			c := compare(out[i][q.OrderBy], out[j][q.OrderBy])
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// lookup finds the joined row whose id equals key. Callers hold s.mu.
func (s *Store) lookup(j *tables.Join, key any) tables.Record {
	if key == nil {
		return nil
	}
	for _, r := range s.tables[j.Table] {
		if compare(r["id"], key) != 0 {
			continue
		}
		embedded := make(tables.Record, len(j.Columns))
		for _, col := range j.Columns {
			embedded[col] = r[col]
		}
		return embedded
	}
	return nil
}

// Insert implements tables.Client. Rows without an id get a sequential one.
func (s *Store) Insert(ctx context.Context, table string, rows []tables.Record) ([]tables.Record, error) {
	if err := tables.ValidateIdent(table); err != nil {
		return nil, &fxerrors.CatalogError{Op: "insert", Table: table, Err: fxerrors.Mark(err, fxerrors.ErrRejected)}
	}
	if err := s.runHook(ctx, "insert", table); err != nil {
		return nil, &fxerrors.CatalogError{Op: "insert", Table: table, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]tables.Record, 0, len(rows))
	for _, r := range rows {
		row := clone(r)
		if id, ok := row["id"]; !ok || id == nil || id == "" {
			s.nextID++
			row["id"] = s.nextID
		}
		s.tables[table] = append(s.tables[table], row)
		out = append(out, clone(row))
	}
	return out, nil
}

func matches(r tables.Record, eq map[string]any) bool {
	for col, want := range eq {
		if compare(r[col], want) != 0 {
			return false
		}
	}
	return true
}

func clone(r tables.Record) tables.Record {
	out := make(tables.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// compare orders values the way a SQL store would: nulls first, then
// numbers, then strings. Booleans compare as 0/1.
func compare(a, b any) int {
	an, aNum := number(a)
	bn, bNum := number(b)
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case aNum && bNum:
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
