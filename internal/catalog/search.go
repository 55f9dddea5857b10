package catalog

import (
	"path"
	"strings"
)

// Search returns every (category, workflow) pair whose workflow name,
// description, tags or category name contains query, case-insensitively.
//
// The query is trimmed first. A blank query means no search is active and
// returns nil; a query that matches nothing returns an empty, non-nil slice.
// Results follow catalog order. The returned pointers refer into
// categories, which must not be modified.
func Search(categories []Category, query string) []SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	results := make([]SearchResult, 0)
	for i := range categories {
		cat := &categories[i]
		catMatch := strings.Contains(strings.ToLower(cat.Name), q)

		for j := range cat.Workflows {
			wf := &cat.Workflows[j]
			if catMatch || matches(wf, q) {
				results = append(results, SearchResult{Category: cat, Workflow: wf})
			}
		}
	}
	return results
}

func matches(wf *WorkflowFile, q string) bool {
	if strings.Contains(strings.ToLower(wf.Name), q) {
		return true
	}
	if strings.Contains(strings.ToLower(wf.Description), q) {
		return true
	}
	for _, tag := range wf.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// Filter returns the workflows whose name or file name contains term,
// case-insensitively. A blank term returns a copy of all workflows.
func Filter(workflows []WorkflowFile, term string) []WorkflowFile {
	t := strings.ToLower(strings.TrimSpace(term))

	out := make([]WorkflowFile, 0, len(workflows))
	for _, wf := range workflows {
		if t == "" ||
			strings.Contains(strings.ToLower(wf.Name), t) ||
			strings.Contains(strings.ToLower(path.Base(wf.Path)), t) {
			out = append(out, wf)
		}
	}
	return out
}

// CountByType tallies workflows by file type.
func CountByType(workflows []WorkflowFile) map[string]int {
	counts := make(map[string]int)
	for _, wf := range workflows {
		t := wf.Type
		if t == "" {
			t = "unknown"
		}
		counts[t]++
	}
	return counts
}

// FindCategory looks a category up by id, then by case-insensitive name.
func FindCategory(categories []Category, idOrName string) (*Category, bool) {
	for i := range categories {
		if categories[i].ID == idOrName {
			return &categories[i], true
		}
	}
	for i := range categories {
		if strings.EqualFold(categories[i].Name, idOrName) {
			return &categories[i], true
		}
	}
	return nil, false
}

// FindWorkflow looks a workflow up by id and returns it with its category.
func FindWorkflow(s *Snapshot, id string) (*WorkflowFile, *Category, bool) {
	if s == nil {
		return nil, nil, false
	}
	for i := range s.Categories {
		cat := &s.Categories[i]
		for j := range cat.Workflows {
			if cat.Workflows[j].ID == id {
				return &cat.Workflows[j], cat, true
			}
		}
	}
	return nil, nil, false
}
