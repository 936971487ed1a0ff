package backend

import "vigil/internal/appearance"

// PendingAppearance is the server's authoritative analogue of a streamed
// candidate: a non-provisional appearance ID plus detection output.
type PendingAppearance struct {
	AppearanceID int64   `json:"appearance_id"`
	OfficerID    *int64  `json:"officer_id,omitempty"`
	Timestamp    string  `json:"timestamp,omitempty"`
	Confidence   float64 `json:"confidence"`
	FaceCrop     string  `json:"face_crop,omitempty"`
	BodyCrop     string  `json:"body_crop,omitempty"`
	Crop         string  `json:"crop,omitempty"`
	Badge        string  `json:"badge,omitempty"`
	Name         string  `json:"name,omitempty"`
	Force        string  `json:"force,omitempty"`
	Rank         string  `json:"rank,omitempty"`
	Role         string  `json:"role,omitempty"`
}

// Candidate converts the wire record into the buffer's model. Server records
// arrive unreviewed and deferred.
func (p PendingAppearance) Candidate() appearance.Candidate {
	return appearance.Candidate{
		ID:         appearance.AuthoritativeID(p.AppearanceID),
		OfficerID:  p.OfficerID,
		Timestamp:  p.Timestamp,
		Confidence: p.Confidence,
		Crops: appearance.CropSet{
			Face:    p.FaceCrop,
			Body:    p.BodyCrop,
			Generic: p.Crop,
		},
		Raw: appearance.Fields{
			Badge: p.Badge,
			Name:  p.Name,
			Force: p.Force,
			Rank:  p.Rank,
			Role:  p.Role,
		},
		Decision: appearance.DecisionDeferred,
	}
}

// CommitUpdate is one verified appearance in the batch-update request body.
// Override fields are pointers so absent values serialize as JSON null.
type CommitUpdate struct {
	AppearanceID int64   `json:"appearance_id"`
	Verified     bool    `json:"verified"`
	Badge        *string `json:"badge"`
	Name         *string `json:"name"`
	Force        *string `json:"force"`
	Rank         *string `json:"rank"`
	Role         *string `json:"role"`
	Notes        *string `json:"notes"`
}

// BatchItemResult is the per-item outcome of a batch update.
type BatchItemResult struct {
	AppearanceID int64  `json:"appearance_id"`
	Error        string `json:"error,omitempty"`
}

// BatchResult is the response of the batch-update endpoint.
type BatchResult struct {
	Updated []BatchItemResult `json:"updated"`
}

// UploadResult is the response of a direct file upload. The backend assigns
// the media record immediately and starts an analysis task for it.
type UploadResult struct {
	MediaID int64  `json:"media_id"`
	TaskID  string `json:"task_id"`
}

// IngestResult is the response of a single-URL ingestion.
type IngestResult struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

// BulkTask pairs a queued URL with its analysis task.
type BulkTask struct {
	URL    string `json:"url"`
	TaskID string `json:"task_id"`
}

// BulkError reports a URL the server refused.
type BulkError struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// BulkResult is the response of a bulk ingestion.
type BulkResult struct {
	Tasks   []BulkTask  `json:"tasks"`
	Errors  []BulkError `json:"errors"`
	Message string      `json:"message"`
}

// Protest is one entry of the protest listing used by intake.
type Protest struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Date     string `json:"date,omitempty"`
}
