package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vigil/internal/appearance"
	"vigil/internal/backend"
	"vigil/internal/commit"
	"vigil/internal/progress"
)

type fakeSubscription struct {
	events chan progress.Event

	mu     sync.Mutex
	closed bool
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{events: make(chan progress.Event, 16)}
}

func (f *fakeSubscription) Events() <-chan progress.Event { return f.events }

func (f *fakeSubscription) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSubscription) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeFetcher struct {
	list []backend.PendingAppearance
	err  error
}

func (f *fakeFetcher) PendingOfficers(context.Context, int64) ([]backend.PendingAppearance, error) {
	return f.list, f.err
}

type fakeCommitter struct {
	mu    sync.Mutex
	errs  []error
	calls int
	last  []appearance.ReviewResult
	block chan struct{}
}

func (f *fakeCommitter) Commit(_ context.Context, _ int64, results []appearance.ReviewResult) (commit.Outcome, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = results
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return commit.Outcome{}, err
		}
	}
	return commit.Outcome{UpdatedCount: len(results)}, nil
}

func newController(sub *fakeSubscription, fetcher *fakeFetcher, committer *fakeCommitter) *Controller {
	return New(
		SubscriberFunc(func(context.Context, string) Subscription { return sub }),
		fetcher,
		committer,
	)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func awaitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestFullRunThroughCommit(t *testing.T) {
	sub := newFakeSubscription()
	fetcher := &fakeFetcher{list: []backend.PendingAppearance{
		{AppearanceID: 1, Confidence: 0.9, Badge: "A1"},
		{AppearanceID: 2, Confidence: 0.8},
	}}
	committer := &fakeCommitter{}
	controller := newController(sub, fetcher, committer)

	if err := controller.BeginIntake(); err != nil {
		t.Fatal(err)
	}
	if err := controller.Dispatched(context.Background(), "tsk-1", 0); err != nil {
		t.Fatal(err)
	}
	if got := controller.Stage(); got != StageDispatched {
		t.Fatalf("stage = %s, want dispatched", got)
	}

	sub.events <- progress.Event{Kind: progress.KindProgress, Stage: "detecting"}
	waitFor(t, "analysing stage", func() bool { return controller.Stage() == StageAnalysing })

	sub.events <- progress.Event{Kind: progress.KindCandidate, Candidate: &appearance.Candidate{
		ID:         appearance.AuthoritativeID(1),
		Confidence: 0.7,
	}}
	sub.events <- progress.Event{Kind: progress.KindCompleted, MediaID: 42}

	stage, err := controller.AwaitReview(awaitCtx(t))
	if err != nil {
		t.Fatal(err)
	}
	if stage != StageReview {
		t.Fatalf("settled in %s, want review", stage)
	}
	if mediaID, ok := controller.MediaID(); !ok || mediaID != 42 {
		t.Errorf("media record = %d/%v, want 42", mediaID, ok)
	}
	if outcome := controller.ReconcileOutcome(); outcome.Degraded {
		t.Errorf("reconcile outcome = %+v, want authoritative", outcome)
	}
	if got := len(controller.Snapshot()); got != 2 {
		t.Fatalf("buffer length = %d, want 2 after reconciliation", got)
	}

	if err := controller.SetDecision(appearance.AuthoritativeID(1), appearance.DecisionAccepted); err != nil {
		t.Fatal(err)
	}
	if err := controller.ConfirmReview(); err != nil {
		t.Fatal(err)
	}
	if err := controller.SetOverrides(appearance.AuthoritativeID(1), appearance.Fields{Name: "Jane Doe"}); err != nil {
		t.Fatal(err)
	}
	if err := controller.ConfirmDetails(); err != nil {
		t.Fatal(err)
	}
	if got := controller.Stage(); got != StagePreview {
		t.Fatalf("stage = %s, want preview", got)
	}

	outcome, err := controller.Commit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if outcome.UpdatedCount != 1 {
		t.Errorf("outcome = %+v, want 1 update", outcome)
	}
	if controller.Stage() != StageDone {
		t.Errorf("stage = %s, want done", controller.Stage())
	}
	if len(committer.last) != 1 || committer.last[0].Overrides.Name != "Jane Doe" {
		t.Errorf("committed set = %+v, want the edited candidate", committer.last)
	}
}

func TestAnalysisFailureAndRecovery(t *testing.T) {
	sub := newFakeSubscription()
	controller := newController(sub, &fakeFetcher{}, &fakeCommitter{})

	if err := controller.BeginIntake(); err != nil {
		t.Fatal(err)
	}
	if err := controller.Dispatched(context.Background(), "tsk-1", 0); err != nil {
		t.Fatal(err)
	}
	sub.events <- progress.Event{Kind: progress.KindCandidate, Candidate: &appearance.Candidate{
		ID: appearance.AuthoritativeID(1),
	}}
	sub.events <- progress.Event{Kind: progress.KindFailed, Reason: "corrupt media"}

	stage, err := controller.AwaitReview(awaitCtx(t))
	if err != nil {
		t.Fatal(err)
	}
	if stage != StageAnalysisError {
		t.Fatalf("settled in %s, want analysis_error", stage)
	}
	if controller.FailureReason() != "corrupt media" {
		t.Errorf("reason = %q", controller.FailureReason())
	}

	// Returning to intake starts over with nothing carried.
	if err := controller.BeginIntake(); err != nil {
		t.Fatal(err)
	}
	if got := len(controller.Snapshot()); got != 0 {
		t.Errorf("buffer length = %d after recovery, want 0", got)
	}
}

func TestCancelDiscardsLateEvents(t *testing.T) {
	sub := newFakeSubscription()
	controller := newController(sub, &fakeFetcher{}, &fakeCommitter{})

	if err := controller.BeginIntake(); err != nil {
		t.Fatal(err)
	}
	if err := controller.Dispatched(context.Background(), "tsk-1", 0); err != nil {
		t.Fatal(err)
	}
	sub.events <- progress.Event{Kind: progress.KindCandidate, Candidate: &appearance.Candidate{
		ID: appearance.AuthoritativeID(1),
	}}
	waitFor(t, "first candidate", func() bool { return len(controller.Snapshot()) == 1 })

	controller.Cancel()
	if controller.Stage() != StageIdle {
		t.Fatalf("stage = %s, want idle", controller.Stage())
	}
	if !sub.isClosed() {
		t.Error("cancel should close the stream")
	}

	// The consumer goroutine is still draining; late events must not touch
	// the reset controller.
	sub.events <- progress.Event{Kind: progress.KindCandidate, Candidate: &appearance.Candidate{
		ID: appearance.AuthoritativeID(2),
	}}
	sub.events <- progress.Event{Kind: progress.KindCompleted, MediaID: 9}
	close(sub.events)

	time.Sleep(50 * time.Millisecond)
	if got := len(controller.Snapshot()); got != 0 {
		t.Errorf("buffer length = %d after cancel, want 0", got)
	}
	if controller.Stage() != StageIdle {
		t.Errorf("stage = %s, want idle", controller.Stage())
	}
	if _, ok := controller.MediaID(); ok {
		t.Error("late completion must not assign a media record")
	}
}

func TestCommitFailureReturnsToPreview(t *testing.T) {
	sub := newFakeSubscription()
	fetcher := &fakeFetcher{list: []backend.PendingAppearance{{AppearanceID: 1, Confidence: 0.9}}}
	committer := &fakeCommitter{errs: []error{errors.New("502 from upstream"), nil}}
	controller := newController(sub, fetcher, committer)

	mustReachPreview(t, controller, sub)

	if _, err := controller.Commit(context.Background()); err == nil {
		t.Fatal("first commit should fail")
	}
	if controller.Stage() != StagePreview {
		t.Fatalf("stage = %s after failed commit, want preview", controller.Stage())
	}
	if got := controller.Results(); len(got) != 1 {
		t.Fatalf("verified set = %d entries after failure, want 1 preserved", len(got))
	}

	if _, err := controller.Commit(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if controller.Stage() != StageDone {
		t.Errorf("stage = %s, want done", controller.Stage())
	}
	if committer.calls != 2 {
		t.Errorf("committer calls = %d, want 2", committer.calls)
	}
}

func TestCancelDuringCommitKeepsWorkflowIdle(t *testing.T) {
	sub := newFakeSubscription()
	fetcher := &fakeFetcher{list: []backend.PendingAppearance{{AppearanceID: 1, Confidence: 0.9}}}
	committer := &fakeCommitter{block: make(chan struct{})}
	controller := newController(sub, fetcher, committer)

	mustReachPreview(t, controller, sub)

	done := make(chan error, 1)
	go func() {
		_, err := controller.Commit(context.Background())
		done <- err
	}()
	waitFor(t, "committing stage", func() bool { return controller.Stage() == StageCommitting })

	controller.Cancel()
	close(committer.block)

	if err := <-done; err != nil {
		t.Fatalf("commit after cancel returned %v, want nil", err)
	}
	if controller.Stage() != StageIdle {
		t.Fatalf("stage = %s after cancel, want idle", controller.Stage())
	}
	if _, ok := controller.CommitOutcome(); ok {
		t.Error("late commit response must not record an outcome")
	}
	if got := len(controller.Snapshot()); got != 0 {
		t.Errorf("buffer has %d candidates after cancel, want 0", got)
	}
}

func TestBackNavigationKeepsBuffer(t *testing.T) {
	sub := newFakeSubscription()
	fetcher := &fakeFetcher{list: []backend.PendingAppearance{{AppearanceID: 1, Confidence: 0.9}}}
	controller := newController(sub, fetcher, &fakeCommitter{})

	mustReachPreview(t, controller, sub)

	if err := controller.Back(); err != nil {
		t.Fatal(err)
	}
	if controller.Stage() != StageDetails {
		t.Fatalf("stage = %s, want details", controller.Stage())
	}
	if err := controller.Back(); err != nil {
		t.Fatal(err)
	}
	if controller.Stage() != StageReview {
		t.Fatalf("stage = %s, want review", controller.Stage())
	}
	if got := controller.Results(); len(got) != 0 {
		t.Error("leaving details should discard the derived verified set")
	}
	if got := len(controller.Snapshot()); got != 1 {
		t.Errorf("buffer length = %d, want 1 (buffer survives back-navigation)", got)
	}

	if err := controller.Back(); err != nil {
		t.Fatal(err)
	}
	if controller.Stage() != StageIntake {
		t.Fatalf("stage = %s, want intake", controller.Stage())
	}
}

func TestEmptyReviewNeedsExplicitConfirmation(t *testing.T) {
	sub := newFakeSubscription()
	fetcher := &fakeFetcher{list: []backend.PendingAppearance{{AppearanceID: 1, Confidence: 0.9}}}
	controller := newController(sub, fetcher, &fakeCommitter{})

	mustReachReview(t, controller, sub)

	if err := controller.ConfirmReview(); !errors.Is(err, ErrEmptyReview) {
		t.Fatalf("err = %v, want ErrEmptyReview with nothing accepted", err)
	}
	if err := controller.ConfirmEmpty(); err != nil {
		t.Fatal(err)
	}
	if controller.Stage() != StageDetails {
		t.Errorf("stage = %s, want details", controller.Stage())
	}
	if got := controller.Results(); len(got) != 0 {
		t.Errorf("verified set = %d entries, want 0", len(got))
	}
}

func mustReachReview(t *testing.T, controller *Controller, sub *fakeSubscription) {
	t.Helper()
	if err := controller.BeginIntake(); err != nil {
		t.Fatal(err)
	}
	if err := controller.Dispatched(context.Background(), "tsk-1", 7); err != nil {
		t.Fatal(err)
	}
	sub.events <- progress.Event{Kind: progress.KindCompleted, MediaID: 7}
	stage, err := controller.AwaitReview(awaitCtx(t))
	if err != nil {
		t.Fatal(err)
	}
	if stage != StageReview {
		t.Fatalf("settled in %s, want review", stage)
	}
}

func mustReachPreview(t *testing.T, controller *Controller, sub *fakeSubscription) {
	t.Helper()
	mustReachReview(t, controller, sub)
	if err := controller.SetDecision(appearance.AuthoritativeID(1), appearance.DecisionAccepted); err != nil {
		t.Fatal(err)
	}
	if err := controller.ConfirmReview(); err != nil {
		t.Fatal(err)
	}
	if err := controller.ConfirmDetails(); err != nil {
		t.Fatal(err)
	}
}
