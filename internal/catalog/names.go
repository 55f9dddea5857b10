package catalog

import (
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// slugRegex matches characters that should be replaced with hyphens
	slugRegex = regexp.MustCompile(`[^a-z0-9]+`)
	// separatorRegex matches filename word separators
	separatorRegex = regexp.MustCompile(`[-_]+`)
	// spaceRegex matches runs of whitespace
	spaceRegex = regexp.MustCompile(`\s+`)
)

// Humanize turns a filename into a display title.
//
// Examples:
//
//	"my_workflow.json"        -> "My Workflow"
//	"slack-alert_v2.txt"      -> "Slack Alert V2"
//	"/AI_ML/gpt_summary.json" -> "Gpt Summary"
func Humanize(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	base = separatorRegex.ReplaceAllString(base, " ")
	base = strings.TrimSpace(spaceRegex.ReplaceAllString(base, " "))

	// NoLower keeps acronyms such as "API" intact.
	caser := cases.Title(language.English, cases.NoLower)
	return caser.String(base)
}

// Slugify converts a name into an identifier-friendly slug.
//
// Examples:
//
//	"Other"        -> "other"
//	"AI & ML!"     -> "ai-ml"
func Slugify(name string) string {
	result := strings.ToLower(strings.TrimSpace(name))
	result = slugRegex.ReplaceAllString(result, "-")
	return strings.Trim(result, "-")
}

// FileExtension returns the lower-cased extension of p without the dot.
func FileExtension(p string) string {
	ext := path.Ext(strings.ReplaceAll(p, `\`, "/"))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// FileType maps an extension to the file kind shown in the catalog.
func FileType(ext string) string {
	switch strings.ToLower(ext) {
	case "json":
		return "json"
	case "txt", "md":
		return "txt"
	case "":
		return "unknown"
	}
	return strings.ToLower(ext)
}
