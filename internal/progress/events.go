package progress

import (
	"encoding/json"
	"fmt"

	"vigil/internal/appearance"
)

// Kind enumerates progress event types.
type Kind string

const (
	KindProgress  Kind = "progress"
	KindCandidate Kind = "candidate"
	KindWarning   Kind = "warning"
	KindCompleted Kind = "completed"
	KindFailed    Kind = "failed"
)

// TimeoutReason is the failure reason of the synthetic event emitted when
// the stream goes silent past the idle window.
const TimeoutReason = "timeout"

// Event is one update from the analysis stream.
type Event struct {
	Kind Kind

	// progress
	Stage      string
	Percent    float64
	HasPercent bool
	Message    string

	// candidate
	Candidate *appearance.Candidate

	// completed
	MediaID int64
	Final   []appearance.Candidate

	// failed
	Reason string
}

// Terminal reports whether no further events follow.
func (e Event) Terminal() bool {
	return e.Kind == KindCompleted || e.Kind == KindFailed
}

type wireCandidate struct {
	AppearanceID appearance.ID `json:"appearance_id"`
	OfficerID    *int64        `json:"officer_id"`
	Timestamp    string        `json:"timestamp"`
	Confidence   float64       `json:"confidence"`
	FaceCrop     string        `json:"face_crop"`
	BodyCrop     string        `json:"body_crop"`
	Crop         string        `json:"crop"`
	Badge        string        `json:"badge"`
	Name         string        `json:"name"`
	Force        string        `json:"force"`
	Rank         string        `json:"rank"`
	Role         string        `json:"role"`
}

func (w wireCandidate) candidate() appearance.Candidate {
	id := w.AppearanceID
	if id.IsZero() {
		// The stream occasionally emits candidates before the analyzer has
		// assigned any identifier at all; mint a placeholder so the buffer
		// can still track them.
		id = appearance.NewProvisionalID()
	}
	return appearance.Candidate{
		ID:         id,
		OfficerID:  w.OfficerID,
		Timestamp:  w.Timestamp,
		Confidence: w.Confidence,
		Crops: appearance.CropSet{
			Face:    w.FaceCrop,
			Body:    w.BodyCrop,
			Generic: w.Crop,
		},
		Raw: appearance.Fields{
			Badge: w.Badge,
			Name:  w.Name,
			Force: w.Force,
			Rank:  w.Rank,
			Role:  w.Role,
		},
		Decision: appearance.DecisionDeferred,
	}
}

// parseEvent decodes one SSE payload. Unknown event names are skipped so the
// backend can add kinds without breaking older clients.
func parseEvent(name, data string) (Event, bool, error) {
	switch Kind(name) {
	case KindProgress:
		var payload struct {
			Stage   string   `json:"stage"`
			Percent *float64 `json:"percent"`
			Message string   `json:"message"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return Event{}, false, fmt.Errorf("decode progress event: %w", err)
		}
		evt := Event{Kind: KindProgress, Stage: payload.Stage, Message: payload.Message}
		if payload.Percent != nil {
			evt.Percent = *payload.Percent
			evt.HasPercent = true
		}
		return evt, true, nil
	case KindCandidate:
		var payload wireCandidate
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return Event{}, false, fmt.Errorf("decode candidate event: %w", err)
		}
		c := payload.candidate()
		return Event{Kind: KindCandidate, Candidate: &c}, true, nil
	case KindWarning:
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return Event{}, false, fmt.Errorf("decode warning event: %w", err)
		}
		return Event{Kind: KindWarning, Message: payload.Message}, true, nil
	case KindCompleted:
		var payload struct {
			MediaID    int64           `json:"media_id"`
			Candidates []wireCandidate `json:"candidates"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return Event{}, false, fmt.Errorf("decode completed event: %w", err)
		}
		final := make([]appearance.Candidate, 0, len(payload.Candidates))
		for _, wc := range payload.Candidates {
			final = append(final, wc.candidate())
		}
		return Event{Kind: KindCompleted, MediaID: payload.MediaID, Final: final}, true, nil
	case KindFailed:
		var payload struct {
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return Event{}, false, fmt.Errorf("decode failed event: %w", err)
		}
		return Event{Kind: KindFailed, Reason: payload.Reason}, true, nil
	default:
		return Event{}, false, nil
	}
}
