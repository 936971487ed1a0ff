package intake

import (
	"context"
	"errors"
	"strings"
	"testing"

	"vigil/internal/backend"
)

type fakeBackend struct {
	uploadErr   error
	bulkResult  backend.BulkResult
	lastUpload  *backend.UploadRequest
	lastURL     string
	lastBulk    []string
	lastToken   string
	lastAnswers map[string]string
}

func (f *fakeBackend) Upload(_ context.Context, req backend.UploadRequest) (backend.UploadResult, error) {
	f.lastUpload = &req
	if f.uploadErr != nil {
		return backend.UploadResult{}, f.uploadErr
	}
	return backend.UploadResult{MediaID: 5, TaskID: "tsk-file"}, nil
}

func (f *fakeBackend) IngestURL(_ context.Context, url string, _ *int64, answers map[string]string, token string) (backend.IngestResult, error) {
	f.lastURL = url
	f.lastToken = token
	f.lastAnswers = answers
	return backend.IngestResult{TaskID: "tsk-url"}, nil
}

func (f *fakeBackend) IngestBulk(_ context.Context, urls []string, _ *int64, _ map[string]string, token string) (backend.BulkResult, error) {
	f.lastBulk = urls
	f.lastToken = token
	return f.bulkResult, nil
}

func TestDispatchFileRequiresCaptcha(t *testing.T) {
	fake := &fakeBackend{}
	intake := New(fake)

	_, err := intake.DispatchFile(context.Background(), FileSubmission{
		Filename:     "march.mp4",
		Data:         strings.NewReader("bytes"),
		DeclaredType: "video",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Code != CodeCaptchaMissing {
		t.Errorf("code = %v, want %s", err, CodeCaptchaMissing)
	}
	if fake.lastUpload != nil {
		t.Error("invalid submission must not reach the backend")
	}
}

func TestDispatchFileRejectsUnknownType(t *testing.T) {
	intake := New(&fakeBackend{})
	_, err := intake.DispatchFile(context.Background(), FileSubmission{
		Filename:     "notes.pdf",
		Data:         strings.NewReader("bytes"),
		DeclaredType: "document",
		CaptchaToken: "tok",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Code != CodeBadType {
		t.Fatalf("err = %v, want %s", err, CodeBadType)
	}
}

func TestDispatchFileSuccess(t *testing.T) {
	fake := &fakeBackend{}
	intake := New(fake)

	dispatch, err := intake.DispatchFile(context.Background(), FileSubmission{
		Filename:     "march.mp4",
		Data:         strings.NewReader("bytes"),
		DeclaredType: "video",
		CaptchaToken: "tok",
	})
	if err != nil {
		t.Fatal(err)
	}
	if dispatch.TaskID != "tsk-file" || dispatch.MediaID != 5 {
		t.Errorf("dispatch = %+v", dispatch)
	}
	if fake.lastUpload == nil || fake.lastUpload.CaptchaToken != "tok" {
		t.Error("captcha token should be forwarded")
	}
}

func TestDispatchURLSchemeCheck(t *testing.T) {
	intake := New(&fakeBackend{})
	_, err := intake.DispatchURL(context.Background(), URLSubmission{
		URL:          "ftp://example.org/video.mp4",
		CaptchaToken: "tok",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Code != CodeBadScheme {
		t.Fatalf("err = %v, want %s", err, CodeBadScheme)
	}
}

func TestDispatchURLForwardsAnswers(t *testing.T) {
	fake := &fakeBackend{}
	intake := New(fake)

	answers := map[string]string{"units_present": "mounted"}
	dispatch, err := intake.DispatchURL(context.Background(), URLSubmission{
		URL:          "https://example.org/video.mp4",
		Answers:      answers,
		CaptchaToken: "tok",
	})
	if err != nil {
		t.Fatal(err)
	}
	if dispatch.TaskID != "tsk-url" {
		t.Errorf("task id = %q", dispatch.TaskID)
	}
	if fake.lastAnswers["units_present"] != "mounted" {
		t.Error("questionnaire answers should be forwarded")
	}
}

func TestDispatchBulkBounds(t *testing.T) {
	intake := New(&fakeBackend{})

	_, err := intake.DispatchBulk(context.Background(), BulkSubmission{CaptchaToken: "tok"})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Code != CodeNoURLs {
		t.Errorf("empty list: err = %v, want %s", err, CodeNoURLs)
	}

	urls := make([]string, MaxBulkURLs+1)
	for i := range urls {
		urls[i] = "https://example.org/v"
	}
	_, err = intake.DispatchBulk(context.Background(), BulkSubmission{URLs: urls, CaptchaToken: "tok"})
	if !errors.As(err, &verr) || verr.Code != CodeTooMany {
		t.Errorf("oversized list: err = %v, want %s", err, CodeTooMany)
	}
}

func TestDispatchBulkFiltersAndMergesRejections(t *testing.T) {
	fake := &fakeBackend{
		bulkResult: backend.BulkResult{
			Tasks:  []backend.BulkTask{{URL: "https://ok.example/1", TaskID: "tsk-1"}},
			Errors: []backend.BulkError{{URL: "https://dup.example/2", Error: "already ingested"}},
		},
	}
	intake := New(fake)

	result, err := intake.DispatchBulk(context.Background(), BulkSubmission{
		URLs:         []string{"https://ok.example/1", "file:///etc/passwd", "https://dup.example/2"},
		CaptchaToken: "tok",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(fake.lastBulk) != 2 {
		t.Errorf("dispatched %d URLs, want 2 (scheme filter applied)", len(fake.lastBulk))
	}
	if len(result.Rejected) != 2 {
		t.Fatalf("rejected = %+v, want client and server rejections merged", result.Rejected)
	}
	if result.Rejected[0].URL != "file:///etc/passwd" {
		t.Errorf("first rejection = %+v, want the scheme failure", result.Rejected[0])
	}
	if result.Rejected[1].Reason != "already ingested" {
		t.Errorf("second rejection = %+v, want the server refusal", result.Rejected[1])
	}
	if len(result.Tasks) != 1 || result.Tasks[0].TaskID != "tsk-1" {
		t.Errorf("tasks = %+v", result.Tasks)
	}
}

func TestDispatchBulkAllBadSchemes(t *testing.T) {
	intake := New(&fakeBackend{})
	_, err := intake.DispatchBulk(context.Background(), BulkSubmission{
		URLs:         []string{"ftp://a", "file://b"},
		CaptchaToken: "tok",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Code != CodeBadScheme {
		t.Fatalf("err = %v, want %s", err, CodeBadScheme)
	}
}
