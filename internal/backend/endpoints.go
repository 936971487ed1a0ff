package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
)

// UploadRequest carries a direct file submission.
type UploadRequest struct {
	Filename     string
	Data         io.Reader
	DeclaredType string
	ProtestID    *int64
	CaptchaToken string
}

type urlIngestBody struct {
	URL            string            `json:"url"`
	ProtestID      *int64            `json:"protest_id"`
	Answers        map[string]string `json:"answers"`
	TurnstileToken string            `json:"turnstile_token"`
}

type bulkIngestBody struct {
	URLs           []string          `json:"urls"`
	ProtestID      *int64            `json:"protest_id"`
	Answers        map[string]string `json:"answers"`
	TurnstileToken string            `json:"turnstile_token"`
}

// Upload posts file bytes as a multipart submission and returns the assigned
// media record and analysis task.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", req.Filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, req.Data); err != nil {
		return UploadResult{}, fmt.Errorf("copy file into request: %w", err)
	}
	if err := writer.WriteField("type", req.DeclaredType); err != nil {
		return UploadResult{}, fmt.Errorf("write type field: %w", err)
	}
	if req.ProtestID != nil {
		if err := writer.WriteField("protest_id", strconv.FormatInt(*req.ProtestID, 10)); err != nil {
			return UploadResult{}, fmt.Errorf("write protest_id field: %w", err)
		}
	}
	if err := writer.WriteField("turnstile_token", req.CaptchaToken); err != nil {
		return UploadResult{}, fmt.Errorf("write token field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("finalize multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")

	var result UploadResult
	if err := c.do(httpReq, &result); err != nil {
		return UploadResult{}, err
	}
	return result, nil
}

// IngestURL submits a single URL for analysis.
func (c *Client) IngestURL(ctx context.Context, url string, protestID *int64, answers map[string]string, captchaToken string) (IngestResult, error) {
	if answers == nil {
		answers = map[string]string{}
	}
	var result IngestResult
	err := c.postJSON(ctx, "/ingest/url", urlIngestBody{
		URL:            url,
		ProtestID:      protestID,
		Answers:        answers,
		TurnstileToken: captchaToken,
	}, &result)
	if err != nil {
		return IngestResult{}, err
	}
	return result, nil
}

// IngestBulk submits up to ten URLs for analysis in one request.
func (c *Client) IngestBulk(ctx context.Context, urls []string, protestID *int64, answers map[string]string, captchaToken string) (BulkResult, error) {
	if answers == nil {
		answers = map[string]string{}
	}
	var result BulkResult
	err := c.postJSON(ctx, "/ingest/bulk", bulkIngestBody{
		URLs:           urls,
		ProtestID:      protestID,
		Answers:        answers,
		TurnstileToken: captchaToken,
	}, &result)
	if err != nil {
		return BulkResult{}, err
	}
	return result, nil
}

// PendingOfficers fetches the authoritative appearance list for a media
// record. A 404 means analysis produced nothing and is treated as empty.
func (c *Client) PendingOfficers(ctx context.Context, mediaID int64) ([]PendingAppearance, error) {
	var payload struct {
		Officers []PendingAppearance `json:"officers"`
	}
	err := c.getJSON(ctx, fmt.Sprintf("/media/%d/officers/pending", mediaID), &payload)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return payload.Officers, nil
}

// BatchUpdate sends the verified appearance updates for a media record.
func (c *Client) BatchUpdate(ctx context.Context, mediaID int64, updates []CommitUpdate) (BatchResult, error) {
	if updates == nil {
		updates = []CommitUpdate{}
	}
	body := struct {
		Updates []CommitUpdate `json:"updates"`
	}{Updates: updates}

	var result BatchResult
	if err := c.postJSON(ctx, fmt.Sprintf("/media/%d/officers/batch-update", mediaID), body, &result); err != nil {
		return BatchResult{}, err
	}
	return result, nil
}

// Protests fetches the protest listing used by intake.
func (c *Client) Protests(ctx context.Context) ([]Protest, error) {
	var payload []Protest
	if err := c.getJSON(ctx, "/protests", &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
