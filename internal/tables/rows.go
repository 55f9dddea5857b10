package tables

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ID is a row identifier. Upstream tables use both serial integers and
// UUID strings, so both decode into the same string form.
type ID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("id: %w", err)
		}
		*id = ID(n.String())
	}
	return nil
}

// Flag is a boolean column. sqlite stores booleans as 0/1.
type Flag bool

// UnmarshalJSON accepts true/false, 0/1, "true"/"false" or null.
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch s := strings.Trim(string(data), `"`); strings.ToLower(s) {
	case "null", "":
		*f = false
	case "true", "t", "1":
		*f = true
	case "false", "f", "0":
		*f = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

// Number is a numeric column that also tolerates numeric strings and null.
type Number float64

// UnmarshalJSON accepts a JSON number, numeric string or null.
func (n *Number) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "null" || s == "" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", data)
	}
	*n = Number(f)
	return nil
}

// Int returns n truncated to an int64.
func (n Number) Int() int64 { return int64(n) }

// Embedded holds the name column of a joined table. PostgREST embeds
// many-to-one relations as an object, but a misdeclared relation comes back
// as an array; both are accepted.
type Embedded struct {
	Name string `json:"name"`
}

// UnmarshalJSON accepts an object, an array of objects, or null.
func (e *Embedded) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	type plain Embedded
	if data[0] == '[' {
		var list []plain
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		if len(list) > 0 {
			*e = Embedded(list[0])
		}
		return nil
	}
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Embedded(p)
	return nil
}

// CategoryRow is a row of the categories table.
type CategoryRow struct {
	ID          ID     `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	// WorkflowCount is the upstream counter. It is never used for catalog counts.
	WorkflowCount Number `json:"workflow_count,omitempty"`
}

// Validate implements Row.
func (r *CategoryRow) Validate() error {
	if r.ID == "" {
		return errors.New("category id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("category name is required")
	}
	return nil
}

// WorkflowRow is a row of the workflows table joined with its category.
type WorkflowRow struct {
	ID               ID        `json:"id,omitempty"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	CategoryID       ID        `json:"category_id,omitempty"`
	FilePath         string    `json:"file_path,omitempty"`
	FileType         string    `json:"file_type,omitempty"`
	FileSize         Number    `json:"file_size,omitempty"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	NodeCount        Number    `json:"node_count,omitempty"`
	ComplexityScore  Number    `json:"complexity_score,omitempty"`
	IsActive         Flag      `json:"is_active"`
	Category         *Embedded `json:"categories,omitempty"`
}

// Validate implements Row.
func (r *WorkflowRow) Validate() error {
	if r.ID == "" {
		return errors.New("workflow id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("workflow name is required")
	}
	if r.NodeCount < 0 {
		return fmt.Errorf("workflow %s: negative node_count", r.ID)
	}
	return nil
}

// CategoryName returns the joined category name, or "" when there is none.
func (r *WorkflowRow) CategoryName() string {
	if r.Category == nil {
		return ""
	}
	return strings.TrimSpace(r.Category.Name)
}

// TagRow is a row of the tags table.
type TagRow struct {
	ID          ID     `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
	UsageCount  Number `json:"usage_count,omitempty"`
}

// Validate implements Row.
func (r *TagRow) Validate() error {
	if r.ID == "" {
		return errors.New("tag id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("tag name is required")
	}
	return nil
}

// WorkflowTagRow is a row of the workflow_tags junction table.
type WorkflowTagRow struct {
	WorkflowID ID `json:"workflow_id"`
	TagID      ID `json:"tag_id"`
}

// Validate implements Row.
func (r *WorkflowTagRow) Validate() error {
	if r.WorkflowID == "" || r.TagID == "" {
		return errors.New("workflow_tags row needs workflow_id and tag_id")
	}
	return nil
}

// RawFileRow is a row of the n8n_files table: one file found on disk.
type RawFileRow struct {
	ID            ID              `json:"id,omitempty"`
	Filename      string          `json:"filename"`
	FilePath      string          `json:"file_path"`
	FileExtension string          `json:"file_extension,omitempty"`
	FileSize      Number          `json:"file_size"`
	IsDirectory   Flag            `json:"is_directory"`
	Category      string          `json:"category,omitempty"`
	JSON          json.RawMessage `json:"json,omitempty"`
}

// Validate implements Row.
func (r *RawFileRow) Validate() error {
	if strings.TrimSpace(r.Filename) == "" {
		return errors.New("file filename is required")
	}
	if strings.TrimSpace(r.FilePath) == "" {
		return fmt.Errorf("file %q: file_path is required", r.Filename)
	}
	return nil
}

// HasJSON reports whether the json column carries content.
func (r *RawFileRow) HasJSON() bool {
	trimmed := bytes.TrimSpace(r.JSON)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// SyncLogRow is a row of the sync_logs table.
type SyncLogRow struct {
	ID               ID     `json:"id,omitempty"`
	OperationType    string `json:"operation_type"`
	FilePath         string `json:"file_path,omitempty"`
	Status           string `json:"status"`
	ErrorMessage     string `json:"error_message,omitempty"`
	FilesProcessed   Number `json:"files_processed"`
	WorkflowsCreated Number `json:"workflows_created"`
	DurationMS       Number `json:"duration_ms"`
}

// Validate implements Row.
func (r *SyncLogRow) Validate() error {
	if r.OperationType == "" {
		return errors.New("sync log operation_type is required")
	}
	if r.Status == "" {
		return errors.New("sync log status is required")
	}
	return nil
}

// Row is implemented by pointers to the row structs.
type Row[T any] interface {
	*T
	Validate() error
}

// Rejection describes a record Decode skipped.
type Rejection struct {
	Index int
	Err   error
}

func (r Rejection) Error() string {
	return fmt.Sprintf("row %d: %v", r.Index, r.Err)
}

// Decode maps records onto typed rows. Records that fail to decode or
// validate are skipped and reported; they never abort the batch.
func Decode[T any, P Row[T]](records []Record) ([]T, []Rejection) {
	rows := make([]T, 0, len(records))
	var rejected []Rejection

	for i, rec := range records {
		var row T
		if err := decodeRecord(rec, &row); err != nil {
			rejected = append(rejected, Rejection{Index: i, Err: err})
			continue
		}
		if err := P(&row).Validate(); err != nil {
			rejected = append(rejected, Rejection{Index: i, Err: err})
			continue
		}
		rows = append(rows, row)
	}

	return rows, rejected
}

func decodeRecord(rec Record, out any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

// ToRecord converts a row struct into a Record for Insert. Numbers are kept
// as json.Number so integer columns stay integers.
func ToRecord(row any) (Record, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ToRecords converts a slice of row structs into Records.
func ToRecords[T any](rows []T) ([]Record, error) {
	out := make([]Record, 0, len(rows))
	for i := range rows {
		rec, err := ToRecord(rows[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
