// Package catalog aggregates category, workflow and auxiliary file rows
// into an in-memory catalog and searches it.
package catalog

import (
	"encoding/json"
)

// Complexity is the coarse size class of a workflow.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Defaults applied to rows that leave the field empty.
const (
	DefaultIcon     = "📁"
	DefaultTagColor = "#3B82F6"
)

// Category is a catalog category and the workflows filed under it.
type Category struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Icon        string `json:"icon" yaml:"icon"`

	// WorkflowCount always equals len(Workflows).
	WorkflowCount int            `json:"workflowCount" yaml:"workflowCount"`
	Workflows     []WorkflowFile `json:"workflows" yaml:"workflows"`
}

// WorkflowFile is a single downloadable workflow definition.
type WorkflowFile struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Path        string   `json:"path,omitempty" yaml:"path,omitempty"`
	Category    string   `json:"category" yaml:"category"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	NodeCount     int        `json:"nodeCount" yaml:"nodeCount"`
	Complexity    Complexity `json:"complexity" yaml:"complexity"`
	Type          string     `json:"type,omitempty" yaml:"type,omitempty"`
	FileSize      int64      `json:"fileSize" yaml:"fileSize"`
	FileExtension string     `json:"fileExtension,omitempty" yaml:"fileExtension,omitempty"`

	// JSONContent is the raw workflow document when the row carried it inline.
	JSONContent json.RawMessage `json:"jsonContent,omitempty" yaml:"-"`
}

// HasContent reports whether the workflow carries inline content.
func (w WorkflowFile) HasContent() bool {
	s := string(w.JSONContent)
	return len(w.JSONContent) > 0 && s != "null"
}

// Tag is a label attached to workflows.
type Tag struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Color       string `json:"color" yaml:"color"`
	UsageCount  int    `json:"usageCount" yaml:"usageCount"`
}

// SearchResult pairs a matching workflow with the category it is filed under.
type SearchResult struct {
	Category *Category
	Workflow *WorkflowFile
}

// Snapshot is the catalog produced by one load. It is never modified
// after it is published; consumers derive new collections instead.
type Snapshot struct {
	Categories []Category `json:"categories" yaml:"categories"`

	// Workflows is the flat list in category-then-workflow order.
	Workflows []WorkflowFile `json:"workflows" yaml:"workflows"`

	// Tags are ordered by usage count, most used first.
	Tags []Tag `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Total returns the number of workflows in the snapshot.
func (s *Snapshot) Total() int {
	if s == nil {
		return 0
	}
	return len(s.Workflows)
}
