package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/academy-cashbook/internal/domain"
	"github.com/dvloznov/academy-cashbook/internal/jobs"
	jobsmem "github.com/dvloznov/academy-cashbook/internal/jobs/inmemory"
	"github.com/dvloznov/academy-cashbook/internal/ledger"
	"github.com/dvloznov/academy-cashbook/internal/logger"
	"github.com/dvloznov/academy-cashbook/internal/reconcile"
	"github.com/dvloznov/academy-cashbook/internal/records"
	"github.com/dvloznov/academy-cashbook/internal/records/inmemory"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

var (
	testDay = civil.Date{Year: 2024, Month: time.March, Day: 5}
	fixedAt = time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC)
)

// recordingPublisher stores published jobs without running them.
type recordingPublisher struct {
	jobs []*jobs.CloseDayJob
	err  error
}

func (p *recordingPublisher) PublishCloseDay(ctx context.Context, job *jobs.CloseDayJob) error {
	if p.err != nil {
		return p.err
	}
	job.JobID = "job-1"
	job.Status = jobs.JobStatusPending
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// failingReports always returns the configured error.
type failingReports struct{ err error }

func (f failingReports) Report(ctx context.Context, date civil.Date) (*reconcile.Report, error) {
	return nil, f.err
}

type testServer struct {
	handler   http.Handler
	store     *inmemory.Store
	publisher *recordingPublisher
	jobStore  *jobsmem.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := inmemory.NewStore()
	if err := store.PutRegisterSession(domain.RegisterSession{ID: "reg-1", RegisterDate: testDay, Status: domain.RegisterOpen, OpeningAmount: decimal.RequireFromString("100")}); err != nil {
		t.Fatalf("PutRegisterSession: %v", err)
	}
	if err := store.AddIncome(records.KindTuitionPayment, domain.IncomeRecord{ID: "t1", Amount: decimal.RequireFromString("50"), Method: "Efectivo", OccurredOn: testDay}); err != nil {
		t.Fatalf("AddIncome: %v", err)
	}

	ids := 0
	l := ledger.New(store,
		ledger.WithClock(func() time.Time { return fixedAt }),
		ledger.WithIDGenerator(func() string {
			ids++
			return "mov-" + string(rune('0'+ids))
		}),
	)

	ts := &testServer{
		store:     store,
		publisher: &recordingPublisher{},
		jobStore:  jobsmem.NewStore(),
	}
	ts.handler = NewRouter(Deps{
		Reports:  reconcile.NewEngine(store, time.UTC),
		Ledger:   l,
		Closings: ts.publisher,
		Jobs:     ts.jobStore,
		Location: time.UTC,
		Now:      func() time.Time { return fixedAt },
	}, logger.NewWithWriter(io.Discard))
	return ts
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestReconciliation_DefaultsToToday(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/reconciliation", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var got struct {
		Date       string `json:"date"`
		CashInHand string `json:"cash_in_hand"`
	}
	decode(t, rec, &got)
	if got.Date != "2024-03-05" {
		t.Errorf("date = %q, want 2024-03-05", got.Date)
	}
	if got.CashInHand != "150" {
		t.Errorf("cash_in_hand = %q, want 150", got.CashInHand)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestReconciliation_InvalidDate(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/reconciliation?date=05/03/2024", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestReconciliation_PartialData(t *testing.T) {
	partial := &domain.PartialDataError{Failures: []domain.SourceFailure{{Source: "sales", Err: errors.New("timeout")}}}
	h := NewRouter(Deps{Reports: failingReports{err: partial}, Location: time.UTC}, logger.NewWithWriter(io.Discard))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reconciliation?date=2024-03-05", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var got struct {
		FailedSources []string `json:"failed_sources"`
	}
	decode(t, rec, &got)
	if diff := cmp.Diff([]string{"sales"}, got.FailedSources); diff != "" {
		t.Errorf("failed_sources mismatch (-want +got):\n%s", diff)
	}
}

func TestMovements_RecordListVoid(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/registers/reg-1/movements", `{"type":"deposit","amount":"30.00","bank":"Galicia"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("record status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created domain.CashMovement
	decode(t, rec, &created)
	if created.ID != "mov-1" || created.Bank != "Galicia" {
		t.Errorf("created = %+v", created)
	}

	rec = ts.do(t, http.MethodGet, "/api/registers/reg-1/movements", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listed struct {
		Movements []domain.CashMovement `json:"movements"`
		Totals    domain.MovementTotals `json:"totals"`
		Count     int                   `json:"count"`
	}
	decode(t, rec, &listed)
	if listed.Count != 1 || !listed.Totals.DepositsTotal.Equal(decimal.RequireFromString("30")) {
		t.Errorf("listed = %+v", listed)
	}

	rec = ts.do(t, http.MethodGet, "/api/reconciliation?date=2024-03-05", "")
	var report struct {
		CashInHand string `json:"cash_in_hand"`
	}
	decode(t, rec, &report)
	if report.CashInHand != "120" {
		t.Errorf("cash_in_hand after deposit = %q, want 120", report.CashInHand)
	}

	rec = ts.do(t, http.MethodDelete, "/api/movements/mov-1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("void status = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodDelete, "/api/movements/mov-1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second void status = %d, want 404", rec.Code)
	}
}

func TestMovements_RecordRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero amount", `{"type":"deposit","amount":"0"}`},
		{"negative amount", `{"type":"deposit","amount":-5}`},
		{"unknown type", `{"type":"refund","amount":"10"}`},
		{"malformed body", `{"type":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rec := ts.do(t, http.MethodPost, "/api/registers/reg-1/movements", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}

			movements, err := ts.store.ListMovements(context.Background(), records.MovementFilter{RegisterID: "reg-1"})
			if err != nil {
				t.Fatalf("ListMovements: %v", err)
			}
			if len(movements) != 0 {
				t.Errorf("rejected request stored %d movements", len(movements))
			}
		})
	}
}

func TestClosings_Enqueue(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/closings", `{"date":"2024-03-04","requested_by":"front-desk"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got map[string]string
	decode(t, rec, &got)
	want := map[string]string{"job_id": "job-1", "date": "2024-03-04", "status": "pending"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
	if len(ts.publisher.jobs) != 1 || ts.publisher.jobs[0].RequestedBy != "front-desk" {
		t.Errorf("published jobs = %+v", ts.publisher.jobs)
	}
}

func TestClosings_EmptyBodyClosesToday(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/closings", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := ts.publisher.jobs[0].Date; got != testDay {
		t.Errorf("date = %v, want %v", got, testDay)
	}
}

func TestClosings_PublishFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.publisher.err = errors.New("queue is closed")

	rec := ts.do(t, http.MethodPost, "/api/closings", `{}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestClosings_ConcurrentWithRunningQueue(t *testing.T) {
	jobStore := jobsmem.NewStore()
	queue := jobsmem.NewQueue(10, 2, jobStore)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := queue.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		job.(*jobs.CloseDayJob).Result = &jobs.CloseDayResult{CashInHand: "150.00"}
		return nil
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	handler := NewRouter(Deps{
		Reports:  reconcile.NewEngine(inmemory.NewStore(), time.UTC),
		Ledger:   ledger.New(inmemory.NewStore()),
		Closings: queue,
		Jobs:     jobStore,
		Location: time.UTC,
		Now:      func() time.Time { return fixedAt },
	}, logger.NewWithWriter(io.Discard))

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/closings", strings.NewReader(`{"date":"2024-03-05"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("request %d: status = %d, body %s", i, rec.Code, rec.Body.String())
		}
		var got map[string]string
		decode(t, rec, &got)
		if got["status"] != string(jobs.JobStatusPending) {
			t.Errorf("request %d: status = %q, want pending", i, got["status"])
		}
		if got["job_id"] == "" || seen[got["job_id"]] {
			t.Fatalf("request %d: job id %q missing or repeated", i, got["job_id"])
		}
		seen[got["job_id"]] = true
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := queue.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestJobs_GetAndList(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	job := &jobs.CloseDayJob{JobID: "j1", Date: testDay, Status: jobs.JobStatusCompleted, CreatedAt: fixedAt}
	if err := ts.jobStore.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	rec := ts.do(t, http.MethodGet, "/api/jobs/j1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/jobs/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/jobs?date=2024-03-05&status=completed", "")
	var listed struct {
		Count int `json:"count"`
	}
	decode(t, rec, &listed)
	if listed.Count != 1 {
		t.Errorf("count = %d, want 1", listed.Count)
	}

	rec = ts.do(t, http.MethodGet, "/api/jobs?date=2024-03-06", "")
	decode(t, rec, &listed)
	if listed.Count != 0 {
		t.Errorf("count for other day = %d, want 0", listed.Count)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodOptions, "/api/reconciliation", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
