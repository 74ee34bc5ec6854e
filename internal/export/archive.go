package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/JaimeStill/patrol/pkg/storage"
)

// Archive is a stored export.
type Archive struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Rows      int       `json:"rows"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Archiver uploads rendered exports to blob storage under
// <prefix><run id>/<file name>. A nil store disables archiving.
type Archiver struct {
	store  storage.System
	prefix string
	logger *slog.Logger
}

// NewArchiver creates an Archiver. store may be nil.
func NewArchiver(store storage.System, prefix string, logger *slog.Logger) *Archiver {
	return &Archiver{
		store:  store,
		prefix: prefix,
		logger: logger.With("system", "archive"),
	}
}

// Enabled reports whether archiving has a backing store.
func (a *Archiver) Enabled() bool {
	return a != nil && a.store != nil
}

// Key returns the blob key for a run's export file.
func (a *Archiver) Key(runID, name string) string {
	return a.prefix + path.Join(runID, name)
}

// Store uploads file for runID.
func (a *Archiver) Store(ctx context.Context, runID string, file *File, at time.Time) (*Archive, error) {
	if !a.Enabled() {
		return nil, ErrArchiveOff
	}

	key := a.Key(runID, file.Name)
	if err := a.store.Upload(ctx, key, bytes.NewReader(file.Data), file.ContentType); err != nil {
		return nil, fmt.Errorf("archive %s: %w", file.Name, err)
	}

	a.logger.InfoContext(ctx, "export archived", "key", key, "rows", file.Rows, "size", len(file.Data))

	return &Archive{
		Key:       key,
		Name:      file.Name,
		Rows:      file.Rows,
		Size:      len(file.Data),
		CreatedAt: at,
	}, nil
}

// List returns archived exports for runID, one page at a time.
func (a *Archiver) List(ctx context.Context, runID, marker string, maxResults int32) (*storage.BlobList, error) {
	if !a.Enabled() {
		return nil, ErrArchiveOff
	}
	return a.store.List(ctx, a.prefix+runID+"/", marker, maxResults)
}
