package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fxerrors "github.com/chazuruo/flowdex/internal/errors"
	"github.com/chazuruo/flowdex/internal/tables"
)

func seeded() *Store {
	s := New()
	s.Seed(tables.TableCategories,
		tables.Record{"id": int64(2), "name": "Sales"},
		tables.Record{"id": int64(1), "name": "AI_ML"},
	)
	s.Seed(tables.TableWorkflows,
		tables.Record{"id": "w1", "name": "Zeta", "category_id": int64(1), "is_active": true},
		tables.Record{"id": "w2", "name": "Alpha", "category_id": int64(2), "is_active": true},
		tables.Record{"id": "w3", "name": "Hidden", "category_id": int64(2), "is_active": false},
		tables.Record{"id": "w4", "name": "Loose", "category_id": nil, "is_active": true},
	)
	return s
}

func TestSelect_JoinOrderFilter(t *testing.T) {
	s := seeded()

	rows, err := s.Select(context.Background(), tables.Query{
		Table:   tables.TableWorkflows,
		Join:    &tables.Join{Table: tables.TableCategories, ForeignKey: "category_id", Columns: []string{"name"}},
		OrderBy: "name",
		Eq:      map[string]any{"is_active": true},
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Alpha", rows[0]["name"])
	assert.Equal(t, tables.Record{"name": "Sales"}, rows[0][tables.TableCategories])
	assert.Equal(t, "Loose", rows[1]["name"])
	assert.Nil(t, rows[1][tables.TableCategories])
	assert.Equal(t, "Zeta", rows[2]["name"])
	assert.Equal(t, tables.Record{"name": "AI_ML"}, rows[2][tables.TableCategories])
}

func TestSelect_DescendingAndLimit(t *testing.T) {
	s := New()
	s.Seed(tables.TableTags,
		tables.Record{"id": 1, "name": "slack", "usage_count": 3},
		tables.Record{"id": 2, "name": "gmail", "usage_count": 10},
		tables.Record{"id": 3, "name": "http", "usage_count": 7},
	)

	rows, err := s.Select(context.Background(), tables.Query{
		Table:      tables.TableTags,
		OrderBy:    "usage_count",
		Descending: true,
		Limit:      2,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "gmail", rows[0]["name"])
	assert.Equal(t, "http", rows[1]["name"])
}

func TestSelect_ReturnsCopies(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	rows, err := s.Select(ctx, tables.Query{Table: tables.TableCategories})
	require.NoError(t, err)
	rows[0]["name"] = "mutated"

	again, err := s.Select(ctx, tables.Query{Table: tables.TableCategories})
	require.NoError(t, err)
	assert.Equal(t, "Sales", again[0]["name"])
}

func TestSelect_UnknownTable(t *testing.T) {
	_, err := New().Select(context.Background(), tables.Query{Table: "nope"})
	require.Error(t, err)
	assert.True(t, fxerrors.IsRejected(err))
	_, ok := fxerrors.AsCatalogError(err)
	assert.True(t, ok)
}

func TestSelect_InvalidQuery(t *testing.T) {
	_, err := New().Select(context.Background(), tables.Query{Table: "Bad Table"})
	assert.True(t, fxerrors.IsRejected(err))
}

func TestHook_FailsAndCancels(t *testing.T) {
	s := seeded()
	boom := errors.New("boom")
	s.SetHook(func(_ context.Context, op, table string) error {
		if op == "select" && table == tables.TableCategories {
			return fxerrors.Mark(boom, fxerrors.ErrUnavailable)
		}
		return nil
	})

	_, err := s.Select(context.Background(), tables.Query{Table: tables.TableCategories})
	assert.True(t, fxerrors.IsUnavailable(err))
	assert.ErrorIs(t, err, boom)

	_, err = s.Select(context.Background(), tables.Query{Table: tables.TableWorkflows})
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Select(ctx, tables.Query{Table: tables.TableWorkflows})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInsert_AssignsIDs(t *testing.T) {
	s := New()
	ctx := context.Background()

	out, err := s.Insert(ctx, tables.TableRawFiles, []tables.Record{
		{"filename": "a.json", "file_path": "/a.json"},
		{"id": "keep", "filename": "b.json", "file_path": "/b.json"},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0]["id"])
	assert.Equal(t, "keep", out[1]["id"])
	assert.Equal(t, 2, s.Len(tables.TableRawFiles))

	_, err = s.Insert(ctx, "bad-name", nil)
	assert.True(t, fxerrors.IsRejected(err))
}
