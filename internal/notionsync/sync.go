package notionsync

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/academy-cashbook/internal/logger"
	"github.com/dvloznov/academy-cashbook/internal/reconcile"
	"github.com/jomei/notionapi"
)

// Publisher writes day-close summaries into a Notion closings database.
type Publisher struct {
	client     NotionService
	databaseID string
	dryRun     bool
}

// NewPublisher creates a Publisher for the given database.
func NewPublisher(client NotionService, databaseID string) *Publisher {
	return &Publisher{client: client, databaseID: databaseID}
}

// WithDryRun returns a copy of the publisher that only logs what it would do.
func (p *Publisher) WithDryRun(dryRun bool) *Publisher {
	cp := *p
	cp.dryRun = dryRun
	return &cp
}

// PublishResult describes the outcome of a publish.
type PublishResult struct {
	PageID  string `json:"page_id,omitempty"`
	Created bool   `json:"created"`
}

// PublishClosing upserts the page of report.Date: an existing page with the
// same day title is updated, otherwise a new page is created. Re-closing a
// day therefore never duplicates its page. Duplicates left by earlier runs
// are archived, keeping the first match.
func (p *Publisher) PublishClosing(ctx context.Context, report *reconcile.Report, snapshotURI string, closedAt time.Time) (PublishResult, error) {
	log := logger.FromContext(ctx)
	day := report.Date.String()

	pages, err := queryAllNotionPages(ctx, p.client, p.databaseID)
	if err != nil {
		return PublishResult{}, fmt.Errorf("PublishClosing: query closings: %w", err)
	}

	var matches []string
	for _, page := range pages {
		if extractDay(page) == day {
			matches = append(matches, string(page.ID))
		}
	}

	props := ClosingToNotionProperties(report, snapshotURI, closedAt)

	if p.dryRun {
		log.Info().
			Str("date", day).
			Int("existing_pages", len(matches)).
			Msg("[DRY RUN] Would publish closing to Notion")
		return PublishResult{Created: len(matches) == 0}, nil
	}

	if len(matches) == 0 {
		page, err := p.client.CreatePage(ctx, p.databaseID, props)
		if err != nil {
			return PublishResult{}, fmt.Errorf("PublishClosing: create page: %w", err)
		}
		log.Info().Str("date", day).Str("page_id", string(page.ID)).Msg("Created Notion closing page")
		return PublishResult{PageID: string(page.ID), Created: true}, nil
	}

	pageID := matches[0]
	if _, err := p.client.UpdatePage(ctx, pageID, props); err != nil {
		return PublishResult{}, fmt.Errorf("PublishClosing: update page %s: %w", pageID, err)
	}
	log.Info().Str("date", day).Str("page_id", pageID).Msg("Updated Notion closing page")

	for _, dup := range matches[1:] {
		if err := p.client.ArchivePage(ctx, dup); err != nil {
			log.Warn().Err(err).Str("date", day).Str("page_id", dup).Msg("Failed to archive duplicate closing page")
			continue
		}
		log.Warn().Str("date", day).Str("page_id", dup).Msg("Archived duplicate closing page")
	}

	return PublishResult{PageID: pageID}, nil
}

// queryAllNotionPages reads every page of a database, following cursors.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		resp, err := notionClient.QueryPages(ctx, databaseID, cursor)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}

// ReportSource produces the report of a day.
type ReportSource interface {
	Report(ctx context.Context, date civil.Date) (*reconcile.Report, error)
}

// SyncStats counts the outcome of a SyncClosings run.
type SyncStats struct {
	Created int
	Updated int
	Failed  int
}

// SyncClosings recomputes and publishes every day from start to end,
// inclusive. A day that cannot be reconciled or published is logged and
// counted as failed; the remaining days are still published.
func SyncClosings(ctx context.Context, reports ReportSource, p *Publisher, start, end civil.Date, now func() time.Time) (SyncStats, error) {
	if end.Before(start) {
		return SyncStats{}, fmt.Errorf("SyncClosings: end %s is before start %s", end, start)
	}

	log := logger.FromContext(ctx)
	var stats SyncStats

	for day := start; !day.After(end); day = day.AddDays(1) {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("SyncClosings: %w", err)
		}

		report, err := reports.Report(ctx, day)
		if err != nil {
			log.Warn().Err(err).Str("date", day.String()).Msg("Skipping day that could not be reconciled")
			stats.Failed++
			continue
		}

		res, err := p.PublishClosing(ctx, report, "", now())
		if err != nil {
			log.Warn().Err(err).Str("date", day.String()).Msg("Failed to publish closing")
			stats.Failed++
			continue
		}
		if res.Created {
			stats.Created++
		} else {
			stats.Updated++
		}
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("failed", stats.Failed).
		Msg("Notion closings sync finished")

	return stats, nil
}
