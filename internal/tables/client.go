// Package tables defines the contract flowdex uses to talk to the hosted
// table store, and the typed rows decoded from it.
//
// Rows cross the Client boundary as loosely typed Records. Callers decode
// them into one struct per table with Decode, which validates each row and
// reports the ones it had to skip.
package tables

import (
	"context"
	"fmt"
	"regexp"
)

// Table names.
const (
	TableCategories   = "categories"
	TableWorkflows    = "workflows"
	TableTags         = "tags"
	TableWorkflowTags = "workflow_tags"
	TableRawFiles     = "n8n_files"
	TableSyncLogs     = "sync_logs"
)

// Record is a single row as returned by a Client. A joined table appears
// as a nested Record under the joined table's name, or nil when the row
// has no match.
type Record map[string]any

// Join embeds columns of a foreign table referenced by ForeignKey.
type Join struct {
	// Table is the foreign table, e.g. "categories".
	Table string

	// ForeignKey is the column on the queried table, e.g. "category_id".
	ForeignKey string

	// Columns are the foreign columns to embed.
	Columns []string
}

// Query selects all rows of a table.
type Query struct {
	Table string

	// Join is optional. Rows without a match are kept (left join).
	Join *Join

	// OrderBy is optional.
	OrderBy    string
	Descending bool

	// Eq filters rows by column equality.
	Eq map[string]any

	// Limit caps the row count (0 for no limit).
	Limit int
}

// Client is the table store contract.
type Client interface {
	// Select returns all rows matching q, in q's order.
	Select(ctx context.Context, q Query) ([]Record, error)

	// Insert writes rows into table and returns the inserted rows as stored,
	// including generated columns.
	Insert(ctx context.Context, table string, rows []Record) ([]Record, error)
}

var identRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidateIdent checks that name is safe to use as a table or column name.
func ValidateIdent(name string) error {
	if !identRegex.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

// Validate checks every identifier in q.
func (q Query) Validate() error {
	if err := ValidateIdent(q.Table); err != nil {
		return err
	}
	if q.OrderBy != "" {
		if err := ValidateIdent(q.OrderBy); err != nil {
			return err
		}
	}
	for col := range q.Eq {
		if err := ValidateIdent(col); err != nil {
			return err
		}
	}
	if q.Join != nil {
		if err := ValidateIdent(q.Join.Table); err != nil {
			return err
		}
		if err := ValidateIdent(q.Join.ForeignKey); err != nil {
			return err
		}
		if len(q.Join.Columns) == 0 {
			return fmt.Errorf("join %q has no columns", q.Join.Table)
		}
		for _, col := range q.Join.Columns {
			if err := ValidateIdent(col); err != nil {
				return err
			}
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("negative limit %d", q.Limit)
	}
	return nil
}
