package history

import (
	"context"
	"errors"
	"testing"

	"vigil/internal/testsupport"
)

func TestJournalRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	record, err := store.Add(ctx, KindURL, "https://example.org/march.mp4", "tsk-1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != StatusDispatched || record.ID == "" {
		t.Fatalf("record = %+v", record)
	}

	if err := store.AttachMedia(ctx, record.ID, 42); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateStatus(ctx, record.ID, StatusAnalysed, ""); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordCommit(ctx, record.ID, 3); err != nil {
		t.Fatal(err)
	}

	records, err := store.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	got := records[0]
	if got.Status != StatusCommitted || got.UpdatedCount != 3 {
		t.Errorf("record = %+v, want committed with 3 updates", got)
	}
	if got.MediaID == nil || *got.MediaID != 42 {
		t.Errorf("media id = %v, want 42", got.MediaID)
	}
	if got.Reference != "https://example.org/march.mp4" {
		t.Errorf("reference = %q", got.Reference)
	}
}

func TestListNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	for _, task := range []string{"tsk-1", "tsk-2", "tsk-3"} {
		if _, err := store.Add(ctx, KindFile, "clip.mp4", task, nil); err != nil {
			t.Fatal(err)
		}
	}

	records, err := store.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want limit applied", len(records))
	}
}

func TestUpdateUnknownSubmission(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.UpdateStatus(context.Background(), "missing", StatusFailed, "nope"); err == nil {
		t.Error("updating an unknown submission should fail")
	}
}

func TestOpenRefusesSecondWriter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := Open(cfg); !errors.Is(err, ErrLocked) {
		t.Fatalf("err = %v, want ErrLocked", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Add(context.Background(), KindBulk, "3 urls", "", nil); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	records, err := reopened.List(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("records = %d after reopen, want 1", len(records))
	}
}
