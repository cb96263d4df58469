package storage

import (
	"testing"
	"time"

	"minutegen/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestCreateJobAssignsIDAndState(t *testing.T) {
	store := newTestStore(t)

	job, err := store.CreateJob(domain.PipelineJob{AudioPath: "/tmp/a.wav"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if job.ID == "" {
		t.Fatal("expected a generated ID")
	}
	if job.State != domain.StateQueued {
		t.Fatalf("state = %q, want queued", job.State)
	}
	if job.CreatedAt == 0 || job.UpdatedAt == 0 {
		t.Fatal("timestamps not set")
	}

	got, err := store.GetJob(job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AudioPath != "/tmp/a.wav" {
		t.Fatalf("audio path = %q", got.AudioPath)
	}
}

func TestUpdateJobUnknownIDFails(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.UpdateJob(domain.PipelineJob{ID: "missing"}); err == nil {
		t.Fatal("expected an error")
	}
}

func TestStoreSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	job, err := store.CreateJob(domain.PipelineJob{State: domain.StateTranscribing})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	reopened, err := NewStore(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}

	got, err := reopened.GetJob(job.ID)
	if err != nil {
		t.Fatalf("get after reload: %v", err)
	}
	if got.State != domain.StateTranscribing {
		t.Fatalf("state after reload = %q", got.State)
	}
}

func TestPendingJobsSkipsTerminalStates(t *testing.T) {
	store := newTestStore(t)

	mk := func(state domain.JobState, createdAt int64) domain.PipelineJob {
		job, err := store.CreateJob(domain.PipelineJob{State: state, CreatedAt: createdAt})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		return job
	}

	older := mk(domain.StateTranscribing, 100)
	newer := mk(domain.StateQueued, 200)
	mk(domain.StateCompleted, 150)
	mk(domain.StateFailed, 150)

	pending := store.PendingJobs()
	if len(pending) != 2 {
		t.Fatalf("got %d pending jobs, want 2", len(pending))
	}
	if pending[0].ID != older.ID || pending[1].ID != newer.ID {
		t.Fatal("pending jobs not ordered oldest first")
	}
}

func TestListJobsNewestFirst(t *testing.T) {
	store := newTestStore(t)

	first, _ := store.CreateJob(domain.PipelineJob{CreatedAt: 100})
	second, _ := store.CreateJob(domain.PipelineJob{CreatedAt: 200})

	jobs := store.ListJobs()
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].ID != second.ID || jobs[1].ID != first.ID {
		t.Fatal("jobs not ordered newest first")
	}
}

func TestExpiredJobs(t *testing.T) {
	store := newTestStore(t)

	done, err := store.CreateJob(domain.PipelineJob{State: domain.StateCompleted})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateJob(domain.PipelineJob{State: domain.StateTranscribing}); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Nothing is older than an hour yet.
	if got := store.ExpiredJobs(time.Hour); len(got) != 0 {
		t.Fatalf("expected no expired jobs, got %d", len(got))
	}

	// With zero retention every terminal job older than now qualifies;
	// push UpdatedAt into the past to avoid same-second flakiness.
	done.UpdatedAt = time.Now().Add(-time.Minute).Unix()
	store.mu.Lock()
	store.data.Jobs[done.ID] = done
	store.mu.Unlock()

	got := store.ExpiredJobs(0)
	if len(got) != 1 || got[0].ID != done.ID {
		t.Fatalf("expected only the terminal job, got %+v", got)
	}
}

func TestDeleteJob(t *testing.T) {
	store := newTestStore(t)

	job, _ := store.CreateJob(domain.PipelineJob{})
	if err := store.DeleteJob(job.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetJob(job.ID); err == nil {
		t.Fatal("job still present after delete")
	}
	if err := store.DeleteJob(job.ID); err == nil {
		t.Fatal("expected an error deleting twice")
	}
}
