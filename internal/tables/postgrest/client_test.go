package postgrest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fxerrors "github.com/chazuruo/flowdex/internal/errors"
	"github.com/chazuruo/flowdex/internal/tables"
)

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBackoff(time.Millisecond, 5*time.Millisecond)}, opts...)
	c, err := New(srv.URL, "anon-key", opts...)
	require.NoError(t, err)
	return c
}

func TestSelect_EncodesQuery(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[
			{"id": 7, "name": "Alpha", "node_count": 12, "categories": {"name": "Sales"}},
			{"id": "b2", "name": "Orphan", "categories": null}
		]`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	records, err := c.Select(context.Background(), tables.Query{
		Table:   tables.TableWorkflows,
		Join:    &tables.Join{Table: tables.TableCategories, ForeignKey: "category_id", Columns: []string{"name"}},
		OrderBy: "name",
		Eq:      map[string]any{"is_active": true},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.NotNil(t, got)
	assert.Equal(t, "/rest/v1/workflows", got.URL.Path)
	query := got.URL.Query()
	assert.Equal(t, "*,categories!category_id(name)", query.Get("select"))
	assert.Equal(t, "name.asc", query.Get("order"))
	assert.Equal(t, "eq.true", query.Get("is_active"))
	assert.Equal(t, "anon-key", got.Header.Get("apikey"))
	assert.Equal(t, "Bearer anon-key", got.Header.Get("Authorization"))

	assert.Equal(t, json.Number("12"), records[0]["node_count"])
	rows, rejected := tables.Decode[tables.WorkflowRow](records)
	require.Empty(t, rejected)
	assert.Equal(t, "Sales", rows[0].CategoryName())
	assert.Equal(t, "", rows[1].CategoryName())
}

func TestSelect_DescendingLimitAndNull(t *testing.T) {
	var rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Select(context.Background(), tables.Query{
		Table:      tables.TableTags,
		OrderBy:    "usage_count",
		Descending: true,
		Eq:         map[string]any{"description": nil},
		Limit:      5,
	})
	require.NoError(t, err)
	assert.Contains(t, rawQuery, "order=usage_count.desc")
	assert.Contains(t, rawQuery, "description=is.null")
	assert.Contains(t, rawQuery, "limit=5")
}

func TestSelect_RetriesOnceThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `[{"id": 1, "name": "AI_ML"}]`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithMaxRetries(1))
	records, err := c.Select(context.Background(), tables.Query{Table: tables.TableCategories})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSelect_UnavailableAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithMaxRetries(1))
	_, err := c.Select(context.Background(), tables.Query{Table: tables.TableCategories})
	require.Error(t, err)
	assert.True(t, fxerrors.IsUnavailable(err), "got %v", err)
	assert.Equal(t, int32(2), calls.Load())

	ce, ok := fxerrors.AsCatalogError(err)
	require.True(t, ok)
	assert.Equal(t, tables.TableCategories, ce.Table)
}

func TestSelect_RejectedIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":"42P01","message":"relation \"public.nope\" does not exist"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithMaxRetries(3))
	_, err := c.Select(context.Background(), tables.Query{Table: "nope"})
	require.Error(t, err)
	assert.True(t, fxerrors.IsRejected(err))
	assert.Contains(t, err.Error(), "42P01")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSelect_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := newTestClient(t, srv, WithMaxRetries(0))
	srv.Close()

	_, err := c.Select(context.Background(), tables.Query{Table: tables.TableCategories})
	assert.True(t, fxerrors.IsUnavailable(err), "got %v", err)
}

func TestSelect_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"not": "an array"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Select(context.Background(), tables.Query{Table: tables.TableCategories})
	assert.True(t, fxerrors.IsRejected(err))
}

func TestInsert_PostsRepresentation(t *testing.T) {
	var (
		method string
		prefer string
		body   []map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		prefer = r.Header.Get("Prefer")
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `[{"id": 1, "filename": "a.json", "file_path": "/a.json"}]`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.Insert(context.Background(), tables.TableRawFiles, []tables.Record{
		{"filename": "a.json", "file_path": "/a.json"},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "return=representation", prefer)
	require.Len(t, body, 1)
	assert.Equal(t, "a.json", body[0]["filename"])
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New("", "k")
	assert.True(t, fxerrors.IsInvalid(err))

	_, err = New("ftp://example.com", "k")
	assert.True(t, fxerrors.IsInvalid(err))
}
