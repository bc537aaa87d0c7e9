package usecases

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"insights-export/internal/core/domain"
	"insights-export/internal/core/ports"
)

// fakeRowSource serves rows "0".."total-1" with id and value columns
type fakeRowSource struct {
	total      int
	countCalls int
	fetches    [][2]int
	countFunc  func() (int, error)
	fetchFunc  func(offset, limit int) ([]domain.RenderedRow, error)
}

var _ ports.RowSource = (*fakeRowSource)(nil)

func (s *fakeRowSource) Count(ctx context.Context) (int, error) {
	s.countCalls++
	if s.countFunc != nil {
		return s.countFunc()
	}
	return s.total, nil
}

func (s *fakeRowSource) Fetch(ctx context.Context, offset, limit int) ([]domain.RenderedRow, error) {
	s.fetches = append(s.fetches, [2]int{offset, limit})
	if s.fetchFunc != nil {
		return s.fetchFunc(offset, limit)
	}
	var rows []domain.RenderedRow
	for i := offset; i < offset+limit && i < s.total; i++ {
		rows = append(rows, domain.NewRenderedRow([]string{"id", "value"}, []string{strconv.Itoa(i), fmt.Sprintf("row %d", i)}))
	}
	return rows, nil
}

// csvRenderer renders a header plus one record per row; it also serves JSON
type csvRenderer struct {
	renderFunc func(rows []domain.RenderedRow, format domain.Format) ([]byte, error)
}

var _ ports.Renderer = (*csvRenderer)(nil)

func (r *csvRenderer) Render(ctx context.Context, rows []domain.RenderedRow, format domain.Format) ([]byte, error) {
	if r.renderFunc != nil {
		return r.renderFunc(rows, format)
	}
	switch format {
	case domain.FormatCSV:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		_ = w.Write([]string{"id", "value"})
		for _, row := range rows {
			id, _ := row.Value("id")
			value, _ := row.Value("value")
			_ = w.Write([]string{id, value})
		}
		w.Flush()
		return buf.Bytes(), w.Error()
	case domain.FormatJSON:
		items := make([]string, 0, len(rows))
		for _, row := range rows {
			id, _ := row.Value("id")
			items = append(items, fmt.Sprintf(`{"id":%q}`, id))
		}
		return []byte("[" + strings.Join(items, ",") + "]"), nil
	default:
		return nil, fmt.Errorf("unsupported format %s", format)
	}
}

// memoryStore is an in-memory ArtifactStore
type memoryStore struct {
	mu          sync.Mutex
	files       map[string][]byte
	appendFunc  func(path string, data []byte) error
	prepareFunc func(path string) error
	appends     int
	rewrites    int
}

var _ ports.ArtifactStore = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	return &memoryStore{files: make(map[string][]byte)}
}

func (m *memoryStore) Prepare(ctx context.Context, path string) error {
	if m.prepareFunc != nil {
		if err := m.prepareFunc(path); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = nil
	return nil
}

func (m *memoryStore) Append(ctx context.Context, path string, data []byte) error {
	if m.appendFunc != nil {
		if err := m.appendFunc(path, data); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends++
	m.files[path] = append(m.files[path], data...)
	return nil
}

func (m *memoryStore) Rewrite(ctx context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rewrites++
	m.files[path] = append([]byte{}, data...)
	return nil
}

func (m *memoryStore) Read(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return nil, domain.ErrArtifactMissing
	}
	return append([]byte{}, data...), nil
}

func (m *memoryStore) Size(ctx context.Context, path string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return 0, domain.ErrArtifactMissing
	}
	return int64(len(data)), nil
}

func (m *memoryStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	data, err := m.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Remove(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; !ok {
		return domain.ErrArtifactMissing
	}
	delete(m.files, path)
	return nil
}

func (m *memoryStore) content(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.files[path])
}

type fakeGate struct {
	decision domain.AccessDecision
	err      error
	calls    int
}

var _ ports.AccessGate = (*fakeGate)(nil)

func (g *fakeGate) Check(ctx context.Context, artifactURI string) (domain.AccessDecision, error) {
	g.calls++
	return g.decision, g.err
}

type fakeResolver struct {
	binding ports.QueryBinding
	err     error
}

func (r *fakeResolver) Resolve(ctx context.Context, query domain.QuerySpec) (ports.QueryBinding, error) {
	return r.binding, r.err
}

type recordingNotifier struct {
	outcomes []domain.JobOutcome
}

func (n *recordingNotifier) ExportFinished(ctx context.Context, job domain.ExportJob, outcome domain.JobOutcome) error {
	n.outcomes = append(n.outcomes, outcome)
	return nil
}

type memoryJobs struct {
	jobs map[string]domain.ExportJob
}

func newMemoryJobs() *memoryJobs {
	return &memoryJobs{jobs: make(map[string]domain.ExportJob)}
}

func (r *memoryJobs) Save(ctx context.Context, job domain.ExportJob) error {
	r.jobs[job.ID] = job
	return nil
}

func (r *memoryJobs) FindByID(ctx context.Context, id string) (domain.ExportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return domain.ExportJob{}, domain.ErrJobNotFound
	}
	return job, nil
}

func (r *memoryJobs) FindAll(ctx context.Context) ([]domain.ExportJob, error) {
	var jobs []domain.ExportJob
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (r *memoryJobs) FindByOrgID(ctx context.Context, orgID string) ([]domain.ExportJob, error) {
	var jobs []domain.ExportJob
	for _, job := range r.jobs {
		if job.OrgID == orgID {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (r *memoryJobs) Delete(ctx context.Context, id string) error {
	if _, ok := r.jobs[id]; !ok {
		return domain.ErrJobNotFound
	}
	delete(r.jobs, id)
	return nil
}

type memoryRuns struct {
	runs     map[string]domain.ExportRun
	saveFunc func(run domain.ExportRun) error
}

func newMemoryRuns() *memoryRuns {
	return &memoryRuns{runs: make(map[string]domain.ExportRun)}
}

func (r *memoryRuns) Save(ctx context.Context, run domain.ExportRun) error {
	if r.saveFunc != nil {
		if err := r.saveFunc(run); err != nil {
			return err
		}
	}
	r.runs[run.JobID] = run
	return nil
}

func (r *memoryRuns) FindByJobID(ctx context.Context, jobID string) (domain.ExportRun, error) {
	run, ok := r.runs[jobID]
	if !ok {
		return domain.ExportRun{}, domain.ErrRunNotFound
	}
	return run, nil
}

func (r *memoryRuns) FindByStatus(ctx context.Context, statuses ...domain.RunStatus) ([]domain.ExportRun, error) {
	var runs []domain.ExportRun
	for _, run := range r.runs {
		for _, s := range statuses {
			if run.Status == s {
				runs = append(runs, run)
				break
			}
		}
	}
	return runs, nil
}

func (r *memoryRuns) Delete(ctx context.Context, jobID string) error {
	if _, ok := r.runs[jobID]; !ok {
		return domain.ErrRunNotFound
	}
	delete(r.runs, jobID)
	return nil
}

var errBoom = errors.New("boom")

func csvRequest() domain.ExportRequest {
	return domain.ExportRequest{
		Query:    domain.QuerySpec{Name: "systems", Source: domain.SourceSQLite, Columns: []string{"id", "value"}},
		Format:   domain.FormatCSV,
		OrgID:    "org-1",
		Username: "jdoe",
		UserID:   "user-1",
	}
}
