// Package testutil provides helper functions for testing.
package testutil

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazuruo/flowdex/internal/tables"
)

// WriteTree creates files under root from a map of slash-separated paths
// to contents. Parent directories are created as needed.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatalf("failed to create dir for %s: %v", rel, err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
	}
}

// Catalog rows inserted by SeedCatalog, keyed by table.
//
// Categories "AI & ML" (id 1) and "Sales" (id 2). Workflows:
//   - 10 "Slack Summary Bot" in AI & ML, 12 nodes, tagged slack, file /AI_ML/slack_summary.json
//   - 11 "Lead Router" in Sales, 25 nodes, no file
//   - 12 "Orphan Flow" without a category
//   - 13 "Disabled Flow" in Sales, is_active false
var catalogFixture = map[string][]string{
	tables.TableCategories: {
		`{"id": 1, "name": "AI & ML", "description": "Models and agents", "icon": "🤖"}`,
		`{"id": 2, "name": "Sales", "icon": "💼"}`,
	},
	tables.TableWorkflows: {
		`{"id": 10, "name": "Slack Summary Bot", "description": "Summarize channels with an LLM", "category_id": 1,
		  "file_path": "/AI_ML/slack_summary.json", "node_count": 12, "complexity_score": 12, "file_type": "json", "is_active": true}`,
		`{"id": 11, "name": "Lead Router", "category_id": 2, "node_count": 25, "complexity_score": 25, "is_active": true}`,
		`{"id": 12, "name": "Orphan Flow", "node_count": 3, "is_active": true}`,
		`{"id": 13, "name": "Disabled Flow", "category_id": 2, "is_active": false}`,
	},
	tables.TableTags: {
		`{"id": 100, "name": "slack", "usage_count": 1}`,
	},
	tables.TableWorkflowTags: {
		`{"workflow_id": 10, "tag_id": 100}`,
	},
}

// catalogOrder is the insert order; workflows reference categories.
var catalogOrder = []string{
	tables.TableCategories,
	tables.TableWorkflows,
	tables.TableTags,
	tables.TableWorkflowTags,
}

// SeedCatalog inserts a small catalog through client.
func SeedCatalog(t *testing.T, client tables.Client) {
	t.Helper()

	ctx := context.Background()
	for _, table := range catalogOrder {
		var records []tables.Record
		for _, raw := range catalogFixture[table] {
			var rec tables.Record
			dec := json.NewDecoder(strings.NewReader(raw))
			dec.UseNumber()
			if err := dec.Decode(&rec); err != nil {
				t.Fatalf("bad %s fixture: %v", table, err)
			}
			records = append(records, rec)
		}
		if _, err := client.Insert(ctx, table, records); err != nil {
			t.Fatalf("failed to seed %s: %v", table, err)
		}
	}
}
