package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"vigil/internal/backend"
	"vigil/internal/logging"
)

// ErrValidation marks submissions rejected before dispatch. Use errors.Is to
// distinguish them from transport failures.
var ErrValidation = errors.New("invalid submission")

// Validation codes.
const (
	CodeCaptchaMissing = "captcha_missing"
	CodeNoFile         = "no_file"
	CodeBadType        = "bad_type"
	CodeNoURL          = "no_url"
	CodeNoURLs         = "no_urls"
	CodeTooMany        = "too_many"
	CodeBadScheme      = "bad_scheme"
)

// MaxBulkURLs bounds one bulk submission.
const MaxBulkURLs = 10

// ValidationError is a client-side rejection with a stable code the UI can
// key messages off.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationErr(code, message string) error {
	return &ValidationError{Code: code, Message: message}
}

// FileSubmission is a direct upload of media bytes.
type FileSubmission struct {
	Filename     string
	Data         io.Reader
	DeclaredType string
	ProtestID    *int64
	CaptchaToken string
}

// URLSubmission points the backend at externally hosted media, with optional
// protest association and free-form questionnaire answers.
type URLSubmission struct {
	URL          string
	ProtestID    *int64
	Answers      map[string]string
	CaptchaToken string
}

// BulkSubmission carries up to MaxBulkURLs URLs in one dispatch.
type BulkSubmission struct {
	URLs         []string
	ProtestID    *int64
	Answers      map[string]string
	CaptchaToken string
}

// Dispatch is the handle for a single queued analysis.
type Dispatch struct {
	TaskID  string
	MediaID int64
	Message string
}

// RejectedURL reports one bulk URL that was not queued, whether the client
// or the server refused it.
type RejectedURL struct {
	URL    string
	Reason string
}

// BulkDispatch is the combined outcome of a bulk submission.
type BulkDispatch struct {
	Tasks    []backend.BulkTask
	Rejected []RejectedURL
	Message  string
}

// Backend is the slice of the HTTP client intake needs.
type Backend interface {
	Upload(ctx context.Context, req backend.UploadRequest) (backend.UploadResult, error)
	IngestURL(ctx context.Context, url string, protestID *int64, answers map[string]string, captchaToken string) (backend.IngestResult, error)
	IngestBulk(ctx context.Context, urls []string, protestID *int64, answers map[string]string, captchaToken string) (backend.BulkResult, error)
}

// Intake validates submissions and hands them to the backend.
type Intake struct {
	backend Backend
	logger  *slog.Logger
}

// Option customizes the intake.
type Option func(*Intake)

// WithLogger attaches a logger for dispatch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Intake) {
		if logger != nil {
			i.logger = logging.NewComponentLogger(logger, "intake")
		}
	}
}

// New constructs an intake over the given backend.
func New(b Backend, opts ...Option) *Intake {
	intake := &Intake{backend: b, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(intake)
	}
	return intake
}

// DispatchFile validates and uploads a file submission.
func (i *Intake) DispatchFile(ctx context.Context, sub FileSubmission) (Dispatch, error) {
	if strings.TrimSpace(sub.CaptchaToken) == "" {
		return Dispatch{}, validationErr(CodeCaptchaMissing, "a captcha token is required")
	}
	if sub.Data == nil || strings.TrimSpace(sub.Filename) == "" {
		return Dispatch{}, validationErr(CodeNoFile, "no file selected")
	}
	switch sub.DeclaredType {
	case "image", "video":
	default:
		return Dispatch{}, validationErr(CodeBadType, fmt.Sprintf("declared type must be image or video, got %q", sub.DeclaredType))
	}

	result, err := i.backend.Upload(ctx, backend.UploadRequest{
		Filename:     sub.Filename,
		Data:         sub.Data,
		DeclaredType: sub.DeclaredType,
		ProtestID:    sub.ProtestID,
		CaptchaToken: sub.CaptchaToken,
	})
	if err != nil {
		return Dispatch{}, err
	}
	i.logger.Info("file submission dispatched",
		logging.String("filename", sub.Filename),
		logging.String(logging.FieldTaskID, result.TaskID),
		logging.Int64(logging.FieldMediaID, result.MediaID))
	return Dispatch{TaskID: result.TaskID, MediaID: result.MediaID}, nil
}

// DispatchURL validates and submits a single URL.
func (i *Intake) DispatchURL(ctx context.Context, sub URLSubmission) (Dispatch, error) {
	if strings.TrimSpace(sub.CaptchaToken) == "" {
		return Dispatch{}, validationErr(CodeCaptchaMissing, "a captcha token is required")
	}
	url := strings.TrimSpace(sub.URL)
	if url == "" {
		return Dispatch{}, validationErr(CodeNoURL, "no URL provided")
	}
	if !hasHTTPScheme(url) {
		return Dispatch{}, validationErr(CodeBadScheme, fmt.Sprintf("%s does not start with http:// or https://", url))
	}

	result, err := i.backend.IngestURL(ctx, url, sub.ProtestID, sub.Answers, sub.CaptchaToken)
	if err != nil {
		return Dispatch{}, err
	}
	i.logger.Info("url submission dispatched",
		logging.String("url", url),
		logging.String(logging.FieldTaskID, result.TaskID))
	return Dispatch{TaskID: result.TaskID, Message: result.Message}, nil
}

// DispatchBulk validates the URL list, drops URLs with a bad scheme, and
// submits the rest in one request. Client-side rejections and server-side
// refusals come back merged in the same list.
func (i *Intake) DispatchBulk(ctx context.Context, sub BulkSubmission) (BulkDispatch, error) {
	if strings.TrimSpace(sub.CaptchaToken) == "" {
		return BulkDispatch{}, validationErr(CodeCaptchaMissing, "a captcha token is required")
	}

	raw := make([]string, 0, len(sub.URLs))
	for _, url := range sub.URLs {
		if trimmed := strings.TrimSpace(url); trimmed != "" {
			raw = append(raw, trimmed)
		}
	}
	if len(raw) == 0 {
		return BulkDispatch{}, validationErr(CodeNoURLs, "no URLs provided")
	}
	if len(raw) > MaxBulkURLs {
		return BulkDispatch{}, validationErr(CodeTooMany, fmt.Sprintf("at most %d URLs per submission, got %d", MaxBulkURLs, len(raw)))
	}

	valid := make([]string, 0, len(raw))
	var rejected []RejectedURL
	for _, url := range raw {
		if !hasHTTPScheme(url) {
			rejected = append(rejected, RejectedURL{URL: url, Reason: "must start with http:// or https://"})
			continue
		}
		valid = append(valid, url)
	}
	if len(valid) == 0 {
		return BulkDispatch{}, validationErr(CodeBadScheme, "no URL starts with http:// or https://")
	}
	if len(rejected) > 0 {
		i.logger.Warn("excluded bulk URLs before dispatch", logging.Int("count", len(rejected)))
	}

	result, err := i.backend.IngestBulk(ctx, valid, sub.ProtestID, sub.Answers, sub.CaptchaToken)
	if err != nil {
		return BulkDispatch{}, err
	}
	for _, refusal := range result.Errors {
		rejected = append(rejected, RejectedURL{URL: refusal.URL, Reason: refusal.Error})
	}
	i.logger.Info("bulk submission dispatched",
		logging.Int("queued", len(result.Tasks)),
		logging.Int("rejected", len(rejected)))
	return BulkDispatch{Tasks: result.Tasks, Rejected: rejected, Message: result.Message}, nil
}

func hasHTTPScheme(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}
