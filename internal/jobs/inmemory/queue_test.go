package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/academy-cashbook/internal/domain"
	"github.com/dvloznov/academy-cashbook/internal/jobs"
)

var day = civil.Date{Year: 2024, Month: time.March, Day: 5}

// waitForStatus polls the store until the job reaches status.
func waitForStatus(t *testing.T, store *Store, jobID string, status jobs.JobStatus) *jobs.CloseDayJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == status {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %s did not reach %s, last state %+v", jobID, status, job)
	return nil
}

func TestQueue_ProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 2, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		j := job.(*jobs.CloseDayJob)
		j.Result = &jobs.CloseDayResult{CashInHand: "150.00"}
		return nil
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.CloseDayJob{Date: day}
	if err := q.PublishCloseDay(ctx, job); err != nil {
		t.Fatalf("PublishCloseDay: %v", err)
	}
	if job.JobID == "" || job.MaxRetries != jobs.DefaultMaxRetries || job.CreatedAt.IsZero() {
		t.Errorf("defaults not applied: %+v", job)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.Result == nil || done.Result.CashInHand != "150.00" {
		t.Errorf("result not stored: %+v", done.Result)
	}
	if job.Status != jobs.JobStatusPending || job.StartedAt != nil || job.Result != nil {
		t.Errorf("worker mutated the caller's job: %+v", job)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Error("timestamps not set")
	}

	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestQueue_RetriesThenSucceeds(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store).WithRetryBackoff(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts int32
	_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("notion unavailable")
		}
		return nil
	})

	job := &jobs.CloseDayJob{Date: day}
	_ = q.PublishCloseDay(ctx, job)

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", done.RetryCount)
	}
	if done.Error != "" {
		t.Errorf("error should be cleared on success, got %q", done.Error)
	}
	_ = q.Close()
}

func TestQueue_FailsAfterMaxRetries(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store).WithRetryBackoff(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts int32
	_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("store unavailable")
	})

	job := &jobs.CloseDayJob{Date: day, MaxRetries: 2}
	_ = q.PublishCloseDay(ctx, job)

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.Error != "store unavailable" {
		t.Errorf("Error = %q", failed.Error)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	_ = q.Close()
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := NewQueue(1, 1, NewStore())
	_ = q.Close()

	if err := q.PublishCloseDay(context.Background(), &jobs.CloseDayJob{Date: day}); err == nil {
		t.Error("expected error publishing to a closed queue")
	}
	if err := q.Start(context.Background(), func(context.Context, jobs.Job) error { return nil }); err == nil {
		t.Error("expected error starting a closed queue")
	}
}

func TestStore_ListAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2024, 3, 5, 20, 0, 0, 0, time.UTC)
	other := day.AddDays(-1)

	_ = store.SaveJob(ctx, &jobs.CloseDayJob{JobID: "a", Date: day, Status: jobs.JobStatusCompleted, CreatedAt: base})
	_ = store.SaveJob(ctx, &jobs.CloseDayJob{JobID: "b", Date: day, Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Minute)})
	_ = store.SaveJob(ctx, &jobs.CloseDayJob{JobID: "c", Date: other, Status: jobs.JobStatusCompleted, CreatedAt: base.Add(2 * time.Minute)})

	all, _ := store.ListJobs(ctx, jobs.JobFilter{})
	if len(all) != 3 || all[0].JobID != "c" || all[2].JobID != "a" {
		t.Errorf("expected newest first, got %v", ids(all))
	}

	byDate, _ := store.ListJobs(ctx, jobs.JobFilter{Date: &day})
	if len(byDate) != 2 {
		t.Errorf("date filter: got %v", ids(byDate))
	}

	byStatus, _ := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusCompleted, Limit: 1})
	if len(byStatus) != 1 || byStatus[0].JobID != "c" {
		t.Errorf("status+limit filter: got %v", ids(byStatus))
	}

	page, _ := store.ListJobs(ctx, jobs.JobFilter{Offset: 5})
	if page == nil || len(page) != 0 {
		t.Errorf("offset past end should be empty, got %v", ids(page))
	}

	if _, err := store.GetJob(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.SaveJob(ctx, &jobs.CloseDayJob{}); err == nil {
		t.Error("expected error for job without ID")
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.SaveJob(ctx, &jobs.CloseDayJob{JobID: "a", Result: &jobs.CloseDayResult{CashInHand: "1.00"}})

	got, _ := store.GetJob(ctx, "a")
	got.Result.CashInHand = "999.00"
	got.Status = jobs.JobStatusFailed

	again, _ := store.GetJob(ctx, "a")
	if again.Result.CashInHand != "1.00" || again.Status != "" {
		t.Errorf("stored job was mutated: %+v", again)
	}
}

func ids(js []*jobs.CloseDayJob) []string {
	out := make([]string, len(js))
	for i, j := range js {
		out[i] = j.JobID
	}
	return out
}
