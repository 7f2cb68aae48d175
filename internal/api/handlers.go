package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"kbsync/internal/ledger"
	"kbsync/internal/pipeline"
)

// submitRequest is the JSON body form of POST /api/dumps.
type submitRequest struct {
	URL string `json:"url"`
}

// handleSubmitDump accepts a dump either as a multipart upload (field
// "file") or as a JSON body naming a URL to fetch, and queues a job.
func (s *Server) handleSubmitDump(w http.ResponseWriter, r *http.Request) {
	var (
		job *pipeline.Job
		ok  bool
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		job, ok = s.uploadJob(w, r)
	} else {
		job, ok = s.urlJob(w, r)
	}
	if !ok {
		return
	}

	if err := s.orch.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	snap := job.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   snap.ID,
		"status":   snap.Status,
		"poll_url": "/api/dumps/" + snap.ID,
	})
}

func (s *Server) uploadJob(w http.ResponseWriter, r *http.Request) (*pipeline.Job, bool) {
	// Extra headroom for the form framing around the file.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read upload", http.StatusInternalServerError)
		return nil, false
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("upload exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return nil, false
	}

	return pipeline.NewJob(uuid.NewString(), "", sanitizeFilename(header.Filename), data), true
}

func (s *Server) urlJob(w http.ResponseWriter, r *http.Request) (*pipeline.Job, bool) {
	var req submitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}

	u, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		jsonError(w, "url must be absolute http(s)", http.StatusBadRequest)
		return nil, false
	}

	return pipeline.NewJob(uuid.NewString(), u.String(), "", nil), true
}

// handleDumpStatus serves the poll endpoint: the full job snapshot.
func (s *Server) handleDumpStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orch.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

// runJSON is the wire form of a ledger row.
type runJSON struct {
	ID         string    `json:"id"`
	Job        string    `json:"job"`
	Source     string    `json:"source"`
	Statements int       `json:"statements"`
	Rows       int       `json:"rows"`
	Categories int       `json:"categories"`
	Files      int       `json:"files"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		jsonError(w, "run ledger is not configured", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := s.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		jsonError(w, "query runs: "+err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]runJSON, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunJSON(run))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"runs": out})
}

func toRunJSON(run ledger.Run) runJSON {
	return runJSON{
		ID:         run.ID,
		Job:        run.Job,
		Source:     run.Source,
		Statements: run.Statements,
		Rows:       run.Rows,
		Categories: run.Categories,
		Files:      run.Files,
		Status:     run.Status,
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// sanitizeFilename strips path components so uploads cannot smuggle paths.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "upload.sql"
	}
	return name
}
