package download

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazuruo/flowdex/internal/catalog"
	fxerrors "github.com/chazuruo/flowdex/internal/errors"
	"github.com/chazuruo/flowdex/internal/testutil"
)

var fixedTime = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

func newTestResolver(t *testing.T) (*Resolver, string) {
	t.Helper()
	root := t.TempDir()
	r, err := NewResolver(root,
		WithClock(func() time.Time { return fixedTime }),
		WithIDGenerator(func() string { return "00000000-0000-4000-8000-000000000000" }),
	)
	require.NoError(t, err)
	return r, root
}

func TestResolve_InlineObject(t *testing.T) {
	r, _ := newTestResolver(t)

	c, err := r.Resolve(catalog.WorkflowFile{
		ID:          "w1",
		Name:        "Slack  Alert Flow",
		Path:        "/does/not/matter.json",
		JSONContent: json.RawMessage(`{"name":"x","nodes":[]}`),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, SourceInline, c.Source)
	assert.Equal(t, "Slack_Alert_Flow.json", c.Filename)
	assert.Equal(t, "application/json", c.ContentType)
	assert.Equal(t, "{\n  \"name\": \"x\",\n  \"nodes\": []\n}", string(c.Data))
}

func TestResolve_InlineString(t *testing.T) {
	r, _ := newTestResolver(t)

	c, err := r.Resolve(catalog.WorkflowFile{
		Name:        "Raw",
		JSONContent: json.RawMessage(`"{\"nodes\":[]}"`),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"nodes":[]}`, string(c.Data), "strings pass through unchanged")
}

func TestResolve_InlineMalformed(t *testing.T) {
	r, _ := newTestResolver(t)

	_, err := r.Resolve(catalog.WorkflowFile{Name: "Bad", JSONContent: json.RawMessage(`{nope`)}, nil)
	require.Error(t, err)
	assert.True(t, fxerrors.IsInvalid(err))
}

func TestResolve_File(t *testing.T) {
	r, root := newTestResolver(t)
	testutil.WriteTree(t, root, map[string]string{
		"AI_ML/summary.json": `{"nodes":[1]}`,
		"AI_ML/readme.txt":   "hello",
		"AI_ML/diagram.png":  "png",
	})

	cat := &catalog.Category{ID: "ai-ml", Name: "AI_ML"}

	tests := []struct {
		path        string
		filename    string
		contentType string
		data        string
	}{
		{"/AI_ML/summary.json", "summary.json", "application/json", `{"nodes":[1]}`},
		{"AI_ML/readme.txt", "readme.txt", "text/plain", "hello"},
		{"AI_ML/diagram.png", "diagram.png", "application/octet-stream", "png"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			c, err := r.Resolve(catalog.WorkflowFile{ID: "w", Name: "x", Path: tt.path}, cat)
			require.NoError(t, err)
			assert.Equal(t, SourceFile, c.Source)
			assert.Equal(t, tt.filename, c.Filename)
			assert.Equal(t, tt.contentType, c.ContentType)
			assert.Equal(t, tt.data, string(c.Data))
		})
	}
}

func TestResolvePath_TraversalRejected(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "root")
	require.NoError(t, os.MkdirAll(root, 0755))
	// A real file outside the root proves nothing is read.
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("secret"), 0644))

	r, err := NewResolver(root)
	require.NoError(t, err)

	for _, p := range []string{"../../etc/passwd", "../secret.txt", "/../secret.txt", `..\secret.txt`, "AI_ML/../../secret.txt"} {
		t.Run(p, func(t *testing.T) {
			c, err := r.ResolvePath(p)
			require.Error(t, err)
			assert.Nil(t, c)
			assert.True(t, fxerrors.IsForbidden(err), "got %v", err)
			assert.Equal(t, 403, StatusCode(err))
		})
	}
}

func TestResolvePath_SymlinkEscapeRejected(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "root")
	require.NoError(t, os.MkdirAll(root, 0755))
	outside := filepath.Join(parent, "secret.json")
	require.NoError(t, os.WriteFile(outside, []byte(`{}`), 0644))

	if err := os.Symlink(outside, filepath.Join(root, "link.json")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	r, err := NewResolver(root)
	require.NoError(t, err)

	_, err = r.ResolvePath("link.json")
	assert.True(t, fxerrors.IsForbidden(err), "got %v", err)
}

func TestResolvePath_Empty(t *testing.T) {
	r, _ := newTestResolver(t)

	_, err := r.ResolvePath("  ")
	require.Error(t, err)
	assert.True(t, fxerrors.IsInvalid(err))
	assert.Equal(t, 400, StatusCode(err))
	assert.JSONEq(t, `{"error":"file path is required"}`, string(ErrorBody(err)))
}

func TestResolvePath_RootItselfRejected(t *testing.T) {
	r, _ := newTestResolver(t)

	for _, p := range []string{"/", ".", "./", "AI_ML/.."} {
		t.Run(p, func(t *testing.T) {
			c, err := r.ResolvePath(p)
			require.Error(t, err)
			assert.Nil(t, c)
			assert.True(t, fxerrors.IsInvalid(err), "got %v", err)
			assert.Equal(t, 400, StatusCode(err))
		})
	}
}

func TestResolvePath_MissingFileGivesPlaceholder(t *testing.T) {
	r, _ := newTestResolver(t)

	c, err := r.ResolvePath("/AI_ML/my_workflow.json")
	require.NoError(t, err)
	assert.Equal(t, SourcePlaceholder, c.Source)
	assert.Equal(t, "my_workflow.json", c.Filename)
	assert.Equal(t, "application/json", c.ContentType)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(c.Data, &doc), "placeholder must be valid JSON")
	assert.Equal(t, "My Workflow", doc["name"])
	assert.Equal(t, []any{}, doc["nodes"])
	assert.Equal(t, map[string]any{}, doc["connections"])
	assert.Equal(t, false, doc["active"])
	assert.Equal(t, map[string]any{}, doc["settings"])
	assert.Equal(t, "00000000-0000-4000-8000-000000000000", doc["id"])
}

func TestResolvePath_DirectoryGivesPlaceholder(t *testing.T) {
	r, root := newTestResolver(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "folder.json"), 0755))

	c, err := r.ResolvePath("folder.json")
	require.NoError(t, err)
	assert.Equal(t, SourcePlaceholder, c.Source)
}

func TestPlaceholder_Text(t *testing.T) {
	r, _ := newTestResolver(t)

	c, err := r.Placeholder("daily-report_notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", c.ContentType)
	assert.Equal(t,
		"# Daily Report Notes\n\nThis is a placeholder workflow file. Please customize it according to your needs.\n\nCreated: 2024-05-01T12:30:00Z\n",
		string(c.Data))
}

func TestPlaceholder_NonJSONIsPlainText(t *testing.T) {
	r, _ := newTestResolver(t)

	for _, p := range []string{"notes/readme.md", "x/flow.yaml", "x/flow"} {
		t.Run(p, func(t *testing.T) {
			c, err := r.ResolvePath(p)
			require.NoError(t, err)
			assert.Equal(t, SourcePlaceholder, c.Source)
			assert.Equal(t, "text/plain", c.ContentType)
			assert.True(t, strings.HasPrefix(string(c.Data), "# "), "got %q", c.Data)
		})
	}
}

func TestPlaceholder_FreshIDs(t *testing.T) {
	r, err := NewResolver(t.TempDir())
	require.NoError(t, err)

	ids := map[string]bool{}
	for i := 0; i < 3; i++ {
		c, err := r.Placeholder("a.json")
		require.NoError(t, err)
		var doc struct{ ID string }
		require.NoError(t, json.Unmarshal(c.Data, &doc))
		assert.Len(t, doc.ID, 36)
		ids[doc.ID] = true
	}
	assert.Len(t, ids, 3)
}

func TestResolve_NoPathNoContent(t *testing.T) {
	r, _ := newTestResolver(t)

	c, err := r.Resolve(catalog.WorkflowFile{Name: "Lead Router", Type: "json"}, nil)
	require.NoError(t, err)
	assert.Equal(t, SourcePlaceholder, c.Source)
	assert.Equal(t, "Lead_Router.json", c.Filename)
	assert.True(t, strings.Contains(string(c.Data), `"name": "Lead Router"`))
}

func TestNewResolver_EmptyRoot(t *testing.T) {
	_, err := NewResolver("")
	assert.True(t, fxerrors.IsInvalid(err))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, 200, StatusCode(nil))
	assert.Equal(t, 500, StatusCode(errors.New("disk on fire")))
	assert.JSONEq(t, `{"error":"internal error"}`, string(ErrorBody(errors.New("x"))))
	assert.JSONEq(t, `{"error":"access denied"}`, string(ErrorBody(fxerrors.ErrForbidden)))
}
