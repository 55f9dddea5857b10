package catalog

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/chazuruo/flowdex/internal/tables"
)

// Rows is the decoded input of one aggregation pass.
type Rows struct {
	Categories   []tables.CategoryRow
	Workflows    []tables.WorkflowRow
	Files        []tables.RawFileRow
	Tags         []tables.TagRow
	WorkflowTags []tables.WorkflowTagRow
}

// BuildOptions controls the merge.
type BuildOptions struct {
	// FallbackCategory receives workflows whose category cannot be resolved.
	FallbackCategory string

	// MediumThreshold and ComplexThreshold classify complexity scores.
	MediumThreshold  float64
	ComplexThreshold float64
}

// DefaultBuildOptions returns the stock merge settings.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		FallbackCategory: "Other",
		MediumThreshold:  10,
		ComplexThreshold: 20,
	}
}

// ClassifyComplexity maps a numeric score onto a Complexity.
func ClassifyComplexity(score, medium, complex float64) Complexity {
	switch {
	case score > complex:
		return ComplexityComplex
	case score > medium:
		return ComplexityMedium
	default:
		return ComplexitySimple
	}
}

// Build merges rows into a Snapshot. It is pure: the same rows always
// produce an equal snapshot.
//
// Categories keep their upstream order. Every workflow and auxiliary file is
// filed under the category its row names, or under the fallback category
// when the name is empty or unknown. Workflow counts are taken from the
// merged lists, never from the upstream workflow_count column.
func Build(rows Rows, opts BuildOptions) *Snapshot {
	if opts.FallbackCategory == "" {
		opts.FallbackCategory = DefaultBuildOptions().FallbackCategory
	}

	b := &builder{
		opts:   opts,
		byName: make(map[string]int),
		byID:   make(map[string]string),
		seen:   make(map[string]bool),
	}

	for _, row := range rows.Categories {
		b.addCategory(row)
	}
	b.tags = attachTags(rows.Tags, rows.WorkflowTags)

	for _, row := range rows.Workflows {
		b.addWorkflow(row)
	}
	for _, row := range rows.Files {
		b.addFile(row)
	}

	return b.snapshot(rows.Tags)
}

type builder struct {
	opts BuildOptions

	categories []Category
	byName     map[string]int    // category name -> index
	byID       map[string]string // category id -> name
	fallback   *Category         // synthesized catch-all, when needed

	tags map[string][]string // workflow id -> tag names
	seen map[string]bool     // paths already filed
}

func (b *builder) addCategory(row tables.CategoryRow) {
	name := strings.TrimSpace(row.Name)
	if _, dup := b.byName[name]; dup {
		b.byID[string(row.ID)] = name
		return
	}
	icon := row.Icon
	if icon == "" {
		icon = DefaultIcon
	}
	b.byName[name] = len(b.categories)
	b.byID[string(row.ID)] = name
	b.categories = append(b.categories, Category{
		ID:          string(row.ID),
		Name:        name,
		Description: row.Description,
		Icon:        icon,
		Workflows:   []WorkflowFile{},
	})
}

// file appends wf to the category called name, or to the fallback.
func (b *builder) file(name string, wf WorkflowFile) {
	if idx, ok := b.byName[name]; ok && name != "" {
		wf.Category = name
		b.categories[idx].Workflows = append(b.categories[idx].Workflows, wf)
		return
	}

	fallback := b.opts.FallbackCategory
	wf.Category = fallback
	if idx, ok := b.byName[fallback]; ok {
		b.categories[idx].Workflows = append(b.categories[idx].Workflows, wf)
		return
	}
	if b.fallback == nil {
		b.fallback = &Category{
			ID:        b.freeID(Slugify(fallback)),
			Name:      fallback,
			Icon:      DefaultIcon,
			Workflows: []WorkflowFile{},
		}
	}
	b.fallback.Workflows = append(b.fallback.Workflows, wf)
}

// freeID returns id, suffixed with -2, -3, ... while an upstream category
// already uses it.
func (b *builder) freeID(id string) string {
	candidate := id
	for n := 2; ; n++ {
		if _, taken := b.byID[candidate]; !taken {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", id, n)
	}
}

func (b *builder) addWorkflow(row tables.WorkflowRow) {
	name := row.CategoryName()
	if name == "" && row.CategoryID != "" {
		name = b.byID[string(row.CategoryID)]
	}

	ext := FileExtension(row.FilePath)
	if ext == "" {
		ext = FileExtension(row.OriginalFilename)
	}
	fileType := row.FileType
	if fileType == "" {
		fileType = FileType(ext)
	}
	if fileType == "unknown" {
		fileType = "json"
	}
	if ext == "" {
		ext = fileType
	}

	if row.FilePath != "" {
		b.seen[row.FilePath] = true
	}

	id := string(row.ID)
	b.file(name, WorkflowFile{
		ID:            id,
		Name:          strings.TrimSpace(row.Name),
		Path:          row.FilePath,
		Description:   row.Description,
		Tags:          b.tags[id],
		NodeCount:     int(row.NodeCount.Int()),
		Complexity:    ClassifyComplexity(float64(row.ComplexityScore), b.opts.MediumThreshold, b.opts.ComplexThreshold),
		Type:          fileType,
		FileSize:      row.FileSize.Int(),
		FileExtension: ext,
	})
}

func (b *builder) addFile(row tables.RawFileRow) {
	if row.IsDirectory {
		return
	}
	if b.seen[row.FilePath] {
		return
	}
	b.seen[row.FilePath] = true

	name := strings.TrimSpace(row.Category)
	if name == "" {
		name = parentDir(row.FilePath)
	}

	ext := row.FileExtension
	if ext == "" {
		ext = FileExtension(row.Filename)
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))

	id := string(row.ID)
	if id == "" {
		id = row.FilePath
	} else {
		id = "file-" + id
	}

	wf := WorkflowFile{
		ID:            id,
		Name:          Humanize(row.Filename),
		Path:          row.FilePath,
		Complexity:    ComplexitySimple,
		Type:          FileType(ext),
		FileSize:      row.FileSize.Int(),
		FileExtension: ext,
	}
	if row.HasJSON() {
		wf.JSONContent = append([]byte(nil), row.JSON...)
	}
	b.file(name, wf)
}

// parentDir returns the name of the directory holding p, or "" at the root.
func parentDir(p string) string {
	dir := path.Dir(strings.ReplaceAll(p, `\`, "/"))
	base := path.Base(dir)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

func attachTags(tagRows []tables.TagRow, links []tables.WorkflowTagRow) map[string][]string {
	names := make(map[string]string, len(tagRows))
	for _, t := range tagRows {
		names[string(t.ID)] = t.Name
	}

	out := make(map[string][]string)
	for _, link := range links {
		name, ok := names[string(link.TagID)]
		if !ok {
			continue
		}
		wid := string(link.WorkflowID)
		out[wid] = append(out[wid], name)
	}
	return out
}

func (b *builder) snapshot(tagRows []tables.TagRow) *Snapshot {
	categories := b.categories
	if b.fallback != nil && len(b.fallback.Workflows) > 0 {
		categories = append(categories, *b.fallback)
	}

	var flat []WorkflowFile
	for i := range categories {
		categories[i].WorkflowCount = len(categories[i].Workflows)
		flat = append(flat, categories[i].Workflows...)
	}
	if categories == nil {
		categories = []Category{}
	}
	if flat == nil {
		flat = []WorkflowFile{}
	}

	tags := make([]Tag, 0, len(tagRows))
	for _, t := range tagRows {
		color := t.Color
		if color == "" {
			color = DefaultTagColor
		}
		tags = append(tags, Tag{
			ID:          string(t.ID),
			Name:        t.Name,
			Description: t.Description,
			Color:       color,
			UsageCount:  int(t.UsageCount.Int()),
		})
	}
	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i].UsageCount > tags[j].UsageCount
	})

	return &Snapshot{
		Categories: categories,
		Workflows:  flat,
		Tags:       tags,
	}
}
