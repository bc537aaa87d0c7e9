package domain

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// exportNamespace seeds the name-based job IDs
var exportNamespace = uuid.MustParse("7f1b4c2e-5d3a-4e8b-9c61-2a0f8d4e6b13")

type SourceKind string

const (
	SourcePostgres SourceKind = "postgres"
	SourceSQLite   SourceKind = "sqlite"
	SourceHTTP     SourceKind = "http"
)

// QuerySpec is the serializable query context captured at plan time and
// handed unchanged to every step.
type QuerySpec struct {
	Name      string            `json:"name" yaml:"name"`
	Source    SourceKind        `json:"source" yaml:"source"`
	Statement string            `json:"statement,omitempty" yaml:"statement,omitempty"`
	Args      []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Params    map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	Columns   []string          `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// Identity is a canonical string form of the query used to derive job IDs
func (q QuerySpec) Identity() string {
	var b strings.Builder
	b.WriteString(string(q.Source))
	b.WriteByte('|')
	b.WriteString(q.Name)
	b.WriteByte('|')
	b.WriteString(q.Statement)
	for _, arg := range q.Args {
		b.WriteByte('|')
		b.WriteString(arg)
	}

	keys := make([]string, 0, len(q.Params))
	for k := range q.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(q.Params[k])
	}
	return b.String()
}

func IsValidSourceKind(s string) bool {
	switch SourceKind(s) {
	case SourcePostgres, SourceSQLite, SourceHTTP:
		return true
	default:
		return false
	}
}

// ExportJob identifies one export run. It is created by the planner and never mutated.
type ExportJob struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	OrgID        string    `json:"org_id"`
	Username     string    `json:"username"`
	UserID       string    `json:"user_id"`
	Query        QuerySpec `json:"query"`
	Format       Format    `json:"format"`
	ChunkSize    int       `json:"chunk_size"`
	RowCap       int       `json:"row_cap,omitempty"`
	RowsTotal    int       `json:"rows_total"`
	OutputPath   string    `json:"output_path"`
	FileName     string    `json:"file_name"`
	AutoDownload bool      `json:"auto_download"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewExportJobID derives a stable ID from the query identity, the triggering
// user and the start time, so concurrent jobs never share an artifact path.
func NewExportJobID(query QuerySpec, userID string, startedAt time.Time) string {
	name := query.Identity() + "\x00" + userID + "\x00" + startedAt.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(exportNamespace, []byte(name)).String()
}

func (j ExportJob) ToJSON() ([]byte, error) {
	return json.Marshal(j)
}

func ExportJobFromJSON(data []byte) (ExportJob, error) {
	var job ExportJob
	err := json.Unmarshal(data, &job)
	return job, err
}

// IsSafeSegment reports whether s is used unchanged as a path element
func IsSafeSegment(s string) bool {
	return s != "" && SafeSegment(s) == s
}

// SafeSegment keeps a value usable as a single path element
func SafeSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "." || out == ".." {
		return "_"
	}
	return out
}
