package pipeline

import (
	"sync"
	"time"
)

// JobStatus is the state of an async ingest job. The in-flight states
// mirror the run stages.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusFetching  JobStatus = JobStatus(StageFetching)
	StatusParsing   JobStatus = JobStatus(StageParsing)
	StatusWriting   JobStatus = JobStatus(StageWriting)
	StatusIndexing  JobStatus = JobStatus(StageIndexing)
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job tracks one queued dump ingest. Workers mutate it while API handlers
// read it, so all access goes through the mutex; handlers serve Snapshot().
type Job struct {
	mu sync.Mutex

	ID       string
	Source   string
	Filename string

	Status JobStatus
	Error  string
	Result JobResult

	CreatedAt time.Time
	UpdatedAt time.Time

	// Uploaded dump bytes; nil for URL jobs. Dropped once the run finishes.
	data []byte
}

// JobResult is the JSON-safe outcome of a finished job.
type JobResult struct {
	RunID      string   `json:"run_id,omitempty"`
	Statements int      `json:"statements"`
	Rows       int      `json:"rows"`
	Categories int      `json:"categories"`
	Files      []string `json:"files,omitempty"`
	Indexed    int      `json:"indexed"`
	ElapsedMs  int64    `json:"elapsed_ms"`
}

// NewJob returns a queued job. Exactly one of url or data should be set;
// filename labels uploads.
func NewJob(id, url, filename string, data []byte) *Job {
	now := time.Now()
	source := url
	if source == "" {
		source = filename
	}
	return &Job{
		ID:        id,
		Source:    source,
		Filename:  filename,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		data:      data,
	}
}

// SetStatus updates the job state.
func (j *Job) SetStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.UpdatedAt = time.Now()
}

// SetResult marks the job completed and records the run outcome.
func (j *Job) SetResult(res Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusCompleted
	j.Result = jobResult(res)
	j.UpdatedAt = time.Now()
	j.data = nil
}

// Fail marks the job failed. Partial counts from the run are kept so the
// poller can see how far it got.
func (j *Job) Fail(res Result, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusFailed
	j.Error = err.Error()
	j.Result = jobResult(res)
	j.UpdatedAt = time.Now()
	j.data = nil
}

// Data returns the uploaded dump bytes, if any.
func (j *Job) Data() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.data
}

func jobResult(res Result) JobResult {
	return JobResult{
		RunID:      res.RunID,
		Statements: res.Stats.Statements,
		Rows:       res.Stats.Rows,
		Categories: res.Stats.Categories,
		Files:      res.Files,
		Indexed:    res.Indexed,
		ElapsedMs:  res.Elapsed.Milliseconds(),
	}
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	Source    string    `json:"source"`
	Filename  string    `json:"filename,omitempty"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	Result    JobResult `json:"result"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobSnapshot{
		ID:        j.ID,
		Source:    j.Source,
		Filename:  j.Filename,
		Status:    j.Status,
		Error:     j.Error,
		Result:    j.Result,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes jobs idle for longer than the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		idle := now.Sub(job.UpdatedAt)
		job.mu.Unlock()
		if idle > s.ttl {
			delete(s.jobs, id)
		}
	}
}
