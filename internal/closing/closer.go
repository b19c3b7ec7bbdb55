// Package closing runs the day-close job: reconcile the day, archive the
// report and publish its summary.
package closing

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/academy-cashbook/internal/archive"
	"github.com/dvloznov/academy-cashbook/internal/domain"
	"github.com/dvloznov/academy-cashbook/internal/jobs"
	"github.com/dvloznov/academy-cashbook/internal/logger"
	"github.com/dvloznov/academy-cashbook/internal/notionsync"
	"github.com/dvloznov/academy-cashbook/internal/reconcile"
)

// ReportSource produces the report of a day.
type ReportSource interface {
	Report(ctx context.Context, date civil.Date) (*reconcile.Report, error)
}

// SnapshotStore archives a closed day.
type SnapshotStore interface {
	Store(ctx context.Context, snap archive.Snapshot) (string, error)
}

// SummaryPublisher publishes a closed day's summary.
type SummaryPublisher interface {
	PublishClosing(ctx context.Context, report *reconcile.Report, snapshotURI string, closedAt time.Time) (notionsync.PublishResult, error)
}

// Closer closes business days. The archive and the publisher are optional.
type Closer struct {
	reports   ReportSource
	snapshots SnapshotStore
	publisher SummaryPublisher
	now       func() time.Time
}

// Option configures a Closer.
type Option func(*Closer)

// WithArchive stores a snapshot of every closed day.
func WithArchive(s SnapshotStore) Option {
	return func(c *Closer) { c.snapshots = s }
}

// WithPublisher publishes every closed day.
func WithPublisher(p SummaryPublisher) Option {
	return func(c *Closer) { c.publisher = p }
}

// WithClock overrides the clock used for closing timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Closer) { c.now = now }
}

// New creates a Closer.
func New(reports ReportSource, opts ...Option) *Closer {
	c := &Closer{reports: reports, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close reconciles date, then archives and publishes it. The archive runs
// before the publisher so the published summary can link the snapshot.
func (c *Closer) Close(ctx context.Context, date civil.Date, jobID string) (*jobs.CloseDayResult, error) {
	log := logger.FromContext(ctx).With().Str("date", date.String()).Logger()

	report, err := c.reports.Report(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("Close: reconcile %s: %w", date, err)
	}

	closedAt := c.now()
	result := &jobs.CloseDayResult{
		CashInHand: domain.FormatMoney(report.CashInHand),
		InBank:     domain.FormatMoney(report.InBank),
		NetBalance: domain.FormatMoney(report.NetBalance),
	}

	if c.snapshots != nil {
		uri, err := c.snapshots.Store(ctx, archive.Snapshot{ClosedAt: closedAt, JobID: jobID, Report: report})
		if err != nil {
			return nil, fmt.Errorf("Close: archive %s: %w", date, err)
		}
		result.SnapshotURI = uri
	}

	if c.publisher != nil {
		res, err := c.publisher.PublishClosing(ctx, report, result.SnapshotURI, closedAt)
		if err != nil {
			return nil, fmt.Errorf("Close: publish %s: %w", date, err)
		}
		result.NotionPageID = res.PageID
	}

	log.Info().
		Str("cash_in_hand", result.CashInHand).
		Str("in_bank", result.InBank).
		Str("snapshot_uri", result.SnapshotURI).
		Str("notion_page_id", result.NotionPageID).
		Msg("Day closed")

	return result, nil
}

// Handle is a jobs.JobHandler for day-close jobs.
func (c *Closer) Handle(ctx context.Context, job jobs.Job) error {
	closeJob, ok := job.(*jobs.CloseDayJob)
	if !ok {
		return fmt.Errorf("unexpected job type: %T", job)
	}

	result, err := c.Close(ctx, closeJob.Date, closeJob.JobID)
	if err != nil {
		return err
	}
	closeJob.Result = result
	return nil
}
