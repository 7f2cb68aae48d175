package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// waitStatus polls until the job settles or the deadline passes.
func waitStatus(t *testing.T, o *Orchestrator, id string) JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job := o.GetJob(id)
		if job == nil {
			t.Fatalf("job %s vanished", id)
		}
		snap := job.Snapshot()
		if snap.Status == StatusCompleted || snap.Status == StatusFailed {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not settle", id)
	return JobSnapshot{}
}

func TestOrchestratorProcessesURLJob(t *testing.T) {
	t.Parallel()

	src := &fakeSource{buf: []byte(sampleDump)}
	st := &fakeStore{files: []string{"a.json"}}
	r := newTestRunner(src, st, &fakeIndexer{n: 3})

	o := NewOrchestrator(r, OrchestratorConfig{Workers: 1, QueueSize: 4}, nil)
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("j1", "https://kb.example.com/dump.sql", "", nil)
	if err := o.Submit(job); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	snap := waitStatus(t, o, "j1")
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %q (%s)", snap.Status, snap.Error)
	}
	if snap.Result.Rows != 4 || snap.Result.Indexed != 3 {
		t.Errorf("result = %+v", snap.Result)
	}
	if len(src.refs) != 1 || src.refs[0] != "https://kb.example.com/dump.sql" {
		t.Errorf("source refs = %v", src.refs)
	}
}

func TestOrchestratorProcessesUpload(t *testing.T) {
	t.Parallel()

	src := &fakeSource{err: errors.New("must not fetch")}
	st := &fakeStore{files: []string{"a.json"}}
	r := newTestRunner(src, st, nil)

	o := NewOrchestrator(r, OrchestratorConfig{Workers: 1}, nil)
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("j1", "", "dump.sql", []byte(sampleDump))
	if err := o.Submit(job); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	snap := waitStatus(t, o, "j1")
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %q (%s)", snap.Status, snap.Error)
	}
	if len(src.refs) != 0 {
		t.Errorf("upload job hit the source: %v", src.refs)
	}
}

func TestOrchestratorFailedJob(t *testing.T) {
	t.Parallel()

	src := &fakeSource{err: errors.New("gateway timeout")}
	r := newTestRunner(src, &fakeStore{}, nil)

	o := NewOrchestrator(r, OrchestratorConfig{Workers: 1}, nil)
	o.Start(context.Background())
	defer o.Stop()

	if err := o.Submit(NewJob("j1", "u", "", nil)); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	snap := waitStatus(t, o, "j1")
	if snap.Status != StatusFailed || !strings.Contains(snap.Error, "gateway timeout") {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestSubmitQueueFull(t *testing.T) {
	t.Parallel()

	r := newTestRunner(&fakeSource{}, &fakeStore{}, nil)
	// Never started: nothing drains the queue.
	o := NewOrchestrator(r, OrchestratorConfig{Workers: 1, QueueSize: 1}, nil)

	if err := o.Submit(NewJob("j1", "u", "", nil)); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	err := o.Submit(NewJob("j2", "u", "", nil))
	if err == nil || !strings.Contains(err.Error(), "queue is full") {
		t.Fatalf("second Submit err = %v", err)
	}

	snap := o.GetJob("j2").Snapshot()
	if snap.Status != StatusFailed {
		t.Errorf("rejected job status = %q", snap.Status)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("queue depth = %d, want 1", o.QueueDepth())
	}
}

func TestOrchestratorStagesReachJob(t *testing.T) {
	t.Parallel()

	src := &fakeSource{buf: []byte(sampleDump)}
	r := newTestRunner(src, &fakeStore{files: []string{"a.json"}}, nil)

	o := NewOrchestrator(r, OrchestratorConfig{Workers: 1}, nil)
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("j1", "u", "", nil)
	if err := o.Submit(job); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	snap := waitStatus(t, o, "j1")
	// The job passed through the run stages on its way to completed; the
	// final snapshot carries the result either way.
	if snap.Status != StatusCompleted || snap.Result.Categories != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
}
