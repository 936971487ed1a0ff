package reconcile

import (
	"log/slog"

	"vigil/internal/appearance"
	"vigil/internal/backend"
	"vigil/internal/logging"
)

// Outcome summarizes one reconciliation pass.
type Outcome struct {
	// Degraded is set when the server list could not serve as the source of
	// truth and the streamed buffer was kept as-is.
	Degraded bool
	// Warning carries reviewer-facing text for degraded passes.
	Warning string

	Inserted           int
	Updated            int
	DroppedProvisional int
}

// Merge builds a new buffer from the server's pending list, carrying over
// reviewer state from the streamed buffer. Matching is by appearance ID:
// matched candidates keep their overrides, decision, and reviewed flag while
// the server's detection fields overwrite the streamed ones. Unmatched
// server records insert as deferred and unreviewed. Provisional candidates
// are dropped once the server has returned a non-empty list.
//
// When the fetch errored, or it returned nothing while the stream produced
// candidates, the streamed buffer is returned unchanged with a degraded
// outcome. That is a fallback, not an error.
func Merge(buf *appearance.Buffer, serverList []backend.PendingAppearance, fetchErr error, logger *slog.Logger) (*appearance.Buffer, Outcome) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if buf == nil {
		buf = appearance.NewBuffer()
	}

	if fetchErr != nil && buf.Len() > 0 {
		logger.Warn("pending appearance fetch failed, keeping streamed candidates",
			logging.Error(fetchErr))
		return buf, Outcome{
			Degraded: true,
			Warning:  "Could not confirm results with the server; showing candidates from the live stream.",
		}
	}
	if len(serverList) == 0 && buf.Len() > 0 {
		logger.Warn("server returned no pending appearances, keeping streamed candidates")
		return buf, Outcome{
			Degraded: true,
			Warning:  "The server has not persisted any appearances yet; showing candidates from the live stream.",
		}
	}

	next := appearance.NewBuffer()
	outcome := Outcome{}

	for _, pending := range serverList {
		incoming := pending.Candidate()
		if existing, ok := buf.Get(incoming.ID); ok {
			// Insert the streamed candidate first so its reviewer state
			// survives the server upsert.
			next.Upsert(existing)
			next.Upsert(incoming)
			outcome.Updated++
			continue
		}
		next.Upsert(incoming)
		outcome.Inserted++
	}

	for _, candidate := range buf.Snapshot() {
		if candidate.ID.IsProvisional() {
			outcome.DroppedProvisional++
		}
	}
	if outcome.DroppedProvisional > 0 {
		logger.Info("dropped provisional candidates superseded by server records",
			logging.Int("count", outcome.DroppedProvisional))
	}

	carryGroups(buf, next, logger)
	return next, outcome
}

// carryGroups re-applies merge groups whose members all survived
// reconciliation.
func carryGroups(from, to *appearance.Buffer, logger *slog.Logger) {
	for _, group := range from.Groups() {
		intact := true
		for _, member := range group.Members {
			if _, ok := to.Get(member); !ok {
				intact = false
				break
			}
		}
		if !intact {
			continue
		}
		if err := to.CreateMerge(group.Members, group.Primary); err != nil {
			logger.Warn("could not carry merge group across reconciliation",
				logging.String("primary", group.Primary.String()),
				logging.Error(err))
		}
	}
}
