// Package metrics defines the minimal metrics surface the sync pipeline
// emits to, decoupled from any vendor.
//
// The pipeline records against a process-wide Backend. The default backend
// is a nop, so library code can record unconditionally; commands that want
// real metrics install a backend at startup (see internal/metrics/datadog).
//
// Metric names used by the helpers:
//
//	sync_step_total                     counter   {step, status}
//	sync_step_duration_seconds          histogram {step, status}
//	sync_records_total                  counter   {kind}
//	sync_runs_total                     counter   {status}
//	sync_http_requests_total            counter   {job, status}
//	sync_http_errors_total              counter   {job, status}
//	sync_http_request_duration_seconds  histogram {job, status}
//	sync_http_response_duration_seconds histogram {job, status}
//	sync_http_download_bytes            histogram {job, status}
//
// Backends are free to ignore names or labels they do not understand.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Labels are metric dimension key/value pairs.
type Labels map[string]string

// Backend receives recorded metrics. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. Passing nil restores
// the nop backend.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush flushes the active backend if it supports flushing; otherwise it is
// a no-op.
func Flush() error {
	if f, ok := current().(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// RecordStep records one pipeline step outcome and its duration.
func RecordStep(step string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	lb := Labels{"step": step, "status": status}

	b := current()
	b.IncCounter("sync_step_total", 1, lb)
	b.ObserveHistogram("sync_step_duration_seconds", d.Seconds(), lb)
}

// RecordRecords counts n processed records of one kind (e.g. "rows",
// "items", "files"). Non-positive n is ignored.
func RecordRecords(kind string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter("sync_records_total", float64(n), Labels{"kind": kind})
}

// RecordRun counts one finished pipeline run by outcome.
func RecordRun(err error) {
	status := "completed"
	if err != nil {
		status = "failed"
	}
	current().IncCounter("sync_runs_total", 1, Labels{"status": status})
}

// RecordHTTP records one HTTP attempt: a request counter, an error counter
// when the attempt failed (transport error, status 0, or status >= 400),
// and duration/size histograms. Negative durations or sizes mean "not
// measured" and are skipped.
func RecordHTTP(job string, status int, err error, reqDur, respDur time.Duration, size int64) {
	lb := Labels{"job": job, "status": strconv.Itoa(status)}

	b := current()
	b.IncCounter("sync_http_requests_total", 1, lb)
	if err != nil || status == 0 || status >= 400 {
		b.IncCounter("sync_http_errors_total", 1, lb)
	}
	if reqDur >= 0 {
		b.ObserveHistogram("sync_http_request_duration_seconds", reqDur.Seconds(), lb)
	}
	if respDur >= 0 {
		b.ObserveHistogram("sync_http_response_duration_seconds", respDur.Seconds(), lb)
	}
	if size >= 0 {
		b.ObserveHistogram("sync_http_download_bytes", float64(size), lb)
	}
}
