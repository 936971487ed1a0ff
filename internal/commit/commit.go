package commit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"vigil/internal/appearance"
	"vigil/internal/backend"
	"vigil/internal/logging"
)

// ErrCommitFailed marks a batch that did not reach the server or was refused
// wholesale. No partial success is asserted when it fires.
var ErrCommitFailed = errors.New("commit failed")

// Outcome summarizes one committed batch.
type Outcome struct {
	UpdatedCount       int
	DroppedProvisional int
	ItemErrors         []backend.BatchItemResult
}

// Backend is the slice of the HTTP client the coordinator needs.
type Backend interface {
	BatchUpdate(ctx context.Context, mediaID int64, updates []backend.CommitUpdate) (backend.BatchResult, error)
}

// Coordinator builds and sends batch updates.
type Coordinator struct {
	backend Backend
	logger  *slog.Logger
}

// Option customizes the coordinator.
type Option func(*Coordinator)

// WithLogger attaches a logger for commit diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "commit")
		}
	}
}

// New constructs a coordinator over the given backend.
func New(b Backend, opts ...Option) *Coordinator {
	coordinator := &Coordinator{backend: b, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(coordinator)
	}
	return coordinator
}

// Commit sends the verified set as one batch update for the media record.
// Entries still carrying a provisional appearance ID are dropped first; the
// server never issued them an identity, so there is nothing to update. The
// batch is sent even when every entry was dropped, which clears any
// server-side review lock for the media record. Identical inputs build
// identical request bodies.
func (c *Coordinator) Commit(ctx context.Context, mediaID int64, results []appearance.ReviewResult) (Outcome, error) {
	outcome := Outcome{}
	updates := make([]backend.CommitUpdate, 0, len(results))
	for _, result := range results {
		id, ok := result.ID.Authoritative()
		if !ok {
			outcome.DroppedProvisional++
			continue
		}
		updates = append(updates, buildUpdate(id, result))
	}
	if outcome.DroppedProvisional > 0 {
		c.logger.Info("dropped provisional appearances from commit",
			logging.Int("count", outcome.DroppedProvisional),
			logging.Int64(logging.FieldMediaID, mediaID))
	}

	result, err := c.backend.BatchUpdate(ctx, mediaID, updates)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}

	for _, item := range result.Updated {
		if item.Error != "" {
			outcome.ItemErrors = append(outcome.ItemErrors, item)
			continue
		}
		outcome.UpdatedCount++
	}
	c.logger.Info("batch update committed",
		logging.Int64(logging.FieldMediaID, mediaID),
		logging.Int("updated", outcome.UpdatedCount),
		logging.Int("item_errors", len(outcome.ItemErrors)))
	return outcome, nil
}

func buildUpdate(id int64, result appearance.ReviewResult) backend.CommitUpdate {
	return backend.CommitUpdate{
		AppearanceID: id,
		Verified:     true,
		Badge:        coalesce(result.Overrides.Badge, result.Raw.Badge),
		Name:         coalesce(result.Overrides.Name, result.Raw.Name),
		Force:        coalesce(result.Overrides.Force, result.Raw.Force),
		Rank:         coalesce(result.Overrides.Rank, result.Raw.Rank),
		Role:         coalesce(result.Overrides.Role, result.Raw.Role),
		Notes:        coalesce(result.Overrides.Notes, result.Raw.Notes),
	}
}

// coalesce picks the reviewer's override over the detected value; when both
// are empty the field serializes as JSON null.
func coalesce(override, raw string) *string {
	if override != "" {
		return &override
	}
	if raw != "" {
		return &raw
	}
	return nil
}
