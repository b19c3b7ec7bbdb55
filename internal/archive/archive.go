// Package archive keeps a JSON snapshot of every closed business day.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/academy-cashbook/internal/logger"
	"github.com/dvloznov/academy-cashbook/internal/reconcile"
)

const contentType = "application/json"

// Snapshot is the archived form of a closed day.
type Snapshot struct {
	ClosedAt time.Time         `json:"closed_at"`
	JobID    string            `json:"job_id,omitempty"`
	Report   *reconcile.Report `json:"report"`
}

// Archive stores day-close snapshots in a bucket.
type Archive struct {
	store  ObjectStore
	bucket string
}

// New creates an Archive writing to bucket through store.
func New(store ObjectStore, bucket string) *Archive {
	return &Archive{store: store, bucket: bucket}
}

// ObjectName returns the object path of a day's snapshot,
// closings/YYYY/MM/YYYY-MM-DD.json.
func ObjectName(date civil.Date) string {
	return fmt.Sprintf("closings/%04d/%02d/%s.json", date.Year, int(date.Month), date.String())
}

// Store writes the snapshot and returns its gs:// URI. A second close of
// the same day replaces the earlier snapshot.
func (a *Archive) Store(ctx context.Context, snap Snapshot) (string, error) {
	if snap.Report == nil {
		return "", fmt.Errorf("Archive.Store: snapshot has no report")
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("Archive.Store: marshal snapshot: %w", err)
	}

	object := ObjectName(snap.Report.Date)
	if err := a.store.Put(ctx, a.bucket, object, contentType, data); err != nil {
		return "", fmt.Errorf("Archive.Store: upload %s: %w", object, err)
	}

	uri := fmt.Sprintf("gs://%s/%s", a.bucket, object)
	log := logger.FromContext(ctx)
	log.Info().
		Str("date", snap.Report.Date.String()).
		Str("uri", uri).
		Int("bytes", len(data)).
		Msg("Day-close snapshot archived")
	return uri, nil
}

// Load reads the snapshot of date.
func (a *Archive) Load(ctx context.Context, date civil.Date) (*Snapshot, error) {
	return a.LoadURI(ctx, fmt.Sprintf("gs://%s/%s", a.bucket, ObjectName(date)))
}

// LoadURI reads a snapshot from a gs:// URI.
func (a *Archive) LoadURI(ctx context.Context, uri string) (*Snapshot, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Archive.Load: %w", err)
	}

	data, err := a.store.Get(ctx, bucket, object)
	if err != nil {
		return nil, fmt.Errorf("Archive.Load: download %s: %w", FilenameFromGCSURI(uri), err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("Archive.Load: decode %s: %w", FilenameFromGCSURI(uri), err)
	}
	return &snap, nil
}
