package progress

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"vigil/internal/config"
)

func testConfig(baseURL string) *config.Config {
	cfg := config.Default()
	cfg.Backend.BaseURL = baseURL
	cfg.Ingest.ProgressIdleTimeout = 1
	cfg.Ingest.ReconnectBaseDelay = 1
	cfg.Ingest.ReconnectMaxDelay = 1
	return &cfg
}

func collect(t *testing.T, sub *Subscription, want int) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for len(events) < want {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				t.Fatalf("stream closed after %d events, wanted %d", len(events), want)
			}
			events = append(events, evt)
		case <-timeout:
			t.Fatalf("timed out after %d events, wanted %d", len(events), want)
		}
	}
	return events
}

func TestSubscribeDeliversEventsInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ingest/tasks/tsk-1/events" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if accept := r.Header.Get("Accept"); accept != "text/event-stream" {
			t.Errorf("Accept = %q, want text/event-stream", accept)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: progress\ndata: {\"stage\":\"detecting\",\"percent\":40,\"message\":\"scanning frames\"}\n\n")
		fmt.Fprint(w, "event: candidate\ndata: {\"appearance_id\":7,\"timestamp\":\"00:01:12\",\"confidence\":0.91,\"face_crop\":\"crops/7f.jpg\",\"badge\":\"A113\"}\n\n")
		fmt.Fprint(w, "event: completed\ndata: {\"media_id\":42,\"candidates\":[{\"appearance_id\":7,\"confidence\":0.91}]}\n\n")
	}))
	defer server.Close()

	channel := NewChannel(testConfig(server.URL))
	sub := channel.Subscribe(context.Background(), "tsk-1")
	defer sub.Close()

	events := collect(t, sub, 3)

	if events[0].Kind != KindProgress || events[0].Stage != "detecting" {
		t.Errorf("first event = %+v, want progress/detecting", events[0])
	}
	if !events[0].HasPercent || events[0].Percent != 40 {
		t.Errorf("first event percent = %v (has=%v), want 40", events[0].Percent, events[0].HasPercent)
	}

	if events[1].Kind != KindCandidate {
		t.Fatalf("second event kind = %s, want candidate", events[1].Kind)
	}
	cand := events[1].Candidate
	if cand == nil {
		t.Fatal("candidate event carried no candidate")
	}
	if got, ok := cand.ID.Authoritative(); !ok || got != 7 {
		t.Errorf("candidate id = %s, want authoritative 7", cand.ID)
	}
	if cand.Raw.Badge != "A113" {
		t.Errorf("candidate badge = %q, want A113", cand.Raw.Badge)
	}
	if cand.Crops.Face != "crops/7f.jpg" {
		t.Errorf("candidate face crop = %q", cand.Crops.Face)
	}

	if events[2].Kind != KindCompleted || events[2].MediaID != 42 {
		t.Errorf("third event = %+v, want completed/media 42", events[2])
	}
	if len(events[2].Final) != 1 {
		t.Errorf("final roster length = %d, want 1", len(events[2].Final))
	}

	if _, ok := <-sub.Events(); ok {
		t.Error("stream still open after terminal event")
	}
}

func TestSubscribeMintsProvisionalIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: candidate\ndata: {\"confidence\":0.5}\n\n")
		fmt.Fprint(w, "event: completed\ndata: {\"media_id\":1}\n\n")
	}))
	defer server.Close()

	channel := NewChannel(testConfig(server.URL))
	sub := channel.Subscribe(context.Background(), "tsk-2")
	defer sub.Close()

	events := collect(t, sub, 2)
	cand := events[0].Candidate
	if cand == nil || !cand.ID.IsProvisional() {
		t.Fatalf("candidate without server id should get a provisional id, got %+v", cand)
	}
}

func TestSubscribeReconnectsAfterDrop(t *testing.T) {
	var connections atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		if connections.Add(1) == 1 {
			fmt.Fprint(w, "event: progress\ndata: {\"stage\":\"uploading\"}\n\n")
			return
		}
		fmt.Fprint(w, "event: failed\ndata: {\"reason\":\"corrupt media\"}\n\n")
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Ingest.ProgressIdleTimeout = 10
	channel := NewChannel(cfg)
	sub := channel.Subscribe(context.Background(), "tsk-3")
	defer sub.Close()

	events := collect(t, sub, 2)
	if events[0].Kind != KindProgress {
		t.Errorf("first event kind = %s, want progress", events[0].Kind)
	}
	if events[1].Kind != KindFailed || events[1].Reason != "corrupt media" {
		t.Errorf("second event = %+v, want failed/corrupt media", events[1])
	}
	if connections.Load() < 2 {
		t.Errorf("connections = %d, want at least 2", connections.Load())
	}
}

func TestSubscribeIdleTimeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: progress\ndata: {\"stage\":\"queued\"}\n\n")
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
		<-block
	}))
	defer server.Close()
	defer close(block)

	channel := NewChannel(testConfig(server.URL))
	sub := channel.Subscribe(context.Background(), "tsk-4")
	defer sub.Close()

	events := collect(t, sub, 2)
	if events[1].Kind != KindFailed || events[1].Reason != TimeoutReason {
		t.Errorf("idle stream should fail with timeout, got %+v", events[1])
	}
	if _, ok := <-sub.Events(); ok {
		t.Error("stream still open after idle timeout")
	}
}

func TestSubscribeKeepaliveResetsIdleWindow(t *testing.T) {
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for i := 0; i < 4; i++ {
			fmt.Fprint(w, ": keepalive\n\n")
			if flusher != nil {
				flusher.Flush()
			}
			time.Sleep(400 * time.Millisecond)
		}
		fmt.Fprint(w, "event: completed\ndata: {\"media_id\":9}\n\n")
		close(done)
	}))
	defer server.Close()

	channel := NewChannel(testConfig(server.URL))
	sub := channel.Subscribe(context.Background(), "tsk-5")
	defer sub.Close()

	events := collect(t, sub, 1)
	if events[0].Kind != KindCompleted {
		t.Errorf("event kind = %s, want completed (keepalives should hold the window open)", events[0].Kind)
	}
	<-done
}

func TestCloseIsIdempotent(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
		<-block
	}))
	defer server.Close()
	defer close(block)

	cfg := testConfig(server.URL)
	cfg.Ingest.ProgressIdleTimeout = 30
	channel := NewChannel(cfg)
	sub := channel.Subscribe(context.Background(), "tsk-6")

	sub.Close()
	sub.Close()

	if _, ok := <-sub.Events(); ok {
		t.Error("stream still open after Close")
	}
}

func TestParseEventSkipsUnknownKinds(t *testing.T) {
	if _, ok, err := parseEvent("heartbeat", "{}"); ok || err != nil {
		t.Errorf("unknown kind: ok=%v err=%v, want skipped without error", ok, err)
	}
	if _, ok, err := parseEvent("progress", "{not json"); ok || err == nil {
		t.Errorf("malformed payload: ok=%v err=%v, want error", ok, err)
	}
}
