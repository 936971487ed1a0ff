package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"vigil/internal/appearance"
	"vigil/internal/backend"
	"vigil/internal/commit"
	"vigil/internal/logging"
	"vigil/internal/progress"
	"vigil/internal/reconcile"
	"vigil/internal/review"
)

var (
	// ErrBadTransition marks a trigger fired in the wrong stage.
	ErrBadTransition = errors.New("transition not permitted")
	// ErrEmptyReview marks a review confirmation with nothing accepted;
	// callers confirm an empty set explicitly with ConfirmEmpty.
	ErrEmptyReview = errors.New("no accepted candidates")
	// ErrNoMediaRecord marks a commit attempted before the server assigned
	// a media record.
	ErrNoMediaRecord = errors.New("no media record")
)

// Subscription is the slice of a progress subscription the controller uses.
type Subscription interface {
	Events() <-chan progress.Event
	Close()
}

// Subscriber opens progress streams.
type Subscriber interface {
	Subscribe(ctx context.Context, taskID string) Subscription
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, taskID string) Subscription

func (f SubscriberFunc) Subscribe(ctx context.Context, taskID string) Subscription {
	return f(ctx, taskID)
}

// ChannelSubscriber adapts a progress channel to the Subscriber interface.
func ChannelSubscriber(channel *progress.Channel) Subscriber {
	return SubscriberFunc(func(ctx context.Context, taskID string) Subscription {
		return channel.Subscribe(ctx, taskID)
	})
}

// Fetcher retrieves the authoritative pending list after analysis.
type Fetcher interface {
	PendingOfficers(ctx context.Context, mediaID int64) ([]backend.PendingAppearance, error)
}

// Committer sends the verified set.
type Committer interface {
	Commit(ctx context.Context, mediaID int64, results []appearance.ReviewResult) (commit.Outcome, error)
}

// Controller is the workflow state machine. All methods are safe for
// concurrent use; the event consumer runs on its own goroutine.
type Controller struct {
	subscriber Subscriber
	fetcher    Fetcher
	committer  Committer
	logger     *slog.Logger
	observer   func(progress.Event)

	mu       sync.Mutex
	stage    Stage
	epoch    uint64
	taskID   string
	mediaID  int64
	hasMedia bool
	buffer   *appearance.Buffer
	results  []appearance.ReviewResult

	reconcileOutcome reconcile.Outcome
	commitOutcome    *commit.Outcome
	failureReason    string

	sub     Subscription
	settled chan Stage
}

// Option customizes the controller.
type Option func(*Controller)

// WithLogger attaches a logger for stage diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "workflow")
		}
	}
}

// WithObserver registers a callback invoked for every stream event the
// controller consumes. Used by the CLI to render live progress.
func WithObserver(fn func(progress.Event)) Option {
	return func(c *Controller) { c.observer = fn }
}

// New constructs an idle controller.
func New(subscriber Subscriber, fetcher Fetcher, committer Committer, opts ...Option) *Controller {
	controller := &Controller{
		subscriber: subscriber,
		fetcher:    fetcher,
		committer:  committer,
		logger:     logging.NewNop(),
		stage:      StageIdle,
		buffer:     appearance.NewBuffer(),
	}
	for _, opt := range opts {
		opt(controller)
	}
	return controller
}

// Stage returns the current stage.
func (c *Controller) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// TaskID returns the analysis task currently driving the workflow.
func (c *Controller) TaskID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.taskID
}

// MediaID returns the server-assigned media record, when one exists.
func (c *Controller) MediaID() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mediaID, c.hasMedia
}

// Snapshot returns copies of the buffered candidates in order.
func (c *Controller) Snapshot() []appearance.Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.Snapshot()
}

// Groups returns the current merge groups.
func (c *Controller) Groups() []appearance.MergeGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.Groups()
}

// View projects the review view model from current buffer state.
func (c *Controller) View() review.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return review.Project(c.buffer.Snapshot(), c.buffer.Groups())
}

// ReconcileOutcome reports how the last reconciliation went.
func (c *Controller) ReconcileOutcome() reconcile.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconcileOutcome
}

// CommitOutcome reports the last successful commit, if any.
func (c *Controller) CommitOutcome() (commit.Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.commitOutcome == nil {
		return commit.Outcome{}, false
	}
	return *c.commitOutcome, true
}

// FailureReason returns the analysis failure text, when in analysis_error.
func (c *Controller) FailureReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failureReason
}

// Results returns the verified set carried into details and preview.
func (c *Controller) Results() []appearance.ReviewResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]appearance.ReviewResult(nil), c.results...)
}

// BeginIntake moves to the intake stage. From the error sinks it starts
// over with a fresh buffer.
func (c *Controller) BeginIntake() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !canTransition(c.stage, StageIntake) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, c.stage, StageIntake)
	}
	if c.stage == StageIntakeError || c.stage == StageAnalysisError || c.stage == StageIdle {
		c.resetLocked()
	}
	c.setStageLocked(StageIntake)
	return nil
}

// Dispatched records a successful dispatch and opens the progress stream.
// A zero mediaID means the server has not assigned a record yet.
func (c *Controller) Dispatched(ctx context.Context, taskID string, mediaID int64) error {
	c.mu.Lock()
	if !canTransition(c.stage, StageDispatched) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, c.stage, StageDispatched)
	}
	c.epoch++
	epoch := c.epoch
	c.taskID = taskID
	if mediaID > 0 {
		c.mediaID = mediaID
		c.hasMedia = true
	}
	c.setStageLocked(StageDispatched)
	sub := c.subscriber.Subscribe(ctx, taskID)
	c.sub = sub
	c.settled = make(chan Stage, 1)
	c.mu.Unlock()

	go c.consume(ctx, epoch, taskID, sub)
	return nil
}

// DispatchFailed records an intake rejection the server returned.
func (c *Controller) DispatchFailed(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !canTransition(c.stage, StageIntakeError) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, c.stage, StageIntakeError)
	}
	c.failureReason = reason
	c.setStageLocked(StageIntakeError)
	return nil
}

// AwaitReview blocks until analysis settles into review or analysis_error.
func (c *Controller) AwaitReview(ctx context.Context) (Stage, error) {
	c.mu.Lock()
	settled := c.settled
	c.mu.Unlock()
	if settled == nil {
		return "", fmt.Errorf("%w: nothing dispatched", ErrBadTransition)
	}
	select {
	case stage := <-settled:
		return stage, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Controller) consume(ctx context.Context, epoch uint64, taskID string, sub Subscription) {
	for event := range sub.Events() {
		if c.observer != nil {
			c.observer(event)
		}
		c.handleEvent(ctx, epoch, taskID, event)
		if event.Terminal() {
			return
		}
	}
}

func (c *Controller) handleEvent(ctx context.Context, epoch uint64, taskID string, event progress.Event) {
	c.mu.Lock()
	if epoch != c.epoch || taskID != c.taskID {
		c.mu.Unlock()
		c.logger.Debug("ignoring stale stream event",
			logging.String(logging.FieldTaskID, taskID),
			logging.String(logging.FieldEventType, string(event.Kind)))
		return
	}

	if c.stage == StageDispatched {
		c.setStageLocked(StageAnalysing)
	}

	switch event.Kind {
	case progress.KindCandidate:
		if c.stage == StageAnalysing && event.Candidate != nil {
			c.buffer.Upsert(*event.Candidate)
		}
		c.mu.Unlock()
	case progress.KindCompleted:
		if c.stage != StageAnalysing {
			c.mu.Unlock()
			return
		}
		if event.MediaID > 0 {
			c.mediaID = event.MediaID
			c.hasMedia = true
		}
		for _, candidate := range event.Final {
			c.buffer.Upsert(candidate)
		}
		mediaID := c.mediaID
		hasMedia := c.hasMedia
		c.mu.Unlock()

		c.completeAnalysis(ctx, epoch, mediaID, hasMedia)
	case progress.KindFailed:
		if c.stage != StageAnalysing && c.stage != StageDispatched {
			c.mu.Unlock()
			return
		}
		c.failureReason = event.Reason
		c.setStageLocked(StageAnalysisError)
		c.settleLocked(StageAnalysisError)
		c.mu.Unlock()
	default:
		c.mu.Unlock()
	}
}

// completeAnalysis fetches the authoritative pending list and reconciles it
// with the streamed buffer. The fetch runs unlocked; a reset or cancel in
// the meantime discards the response.
func (c *Controller) completeAnalysis(ctx context.Context, epoch uint64, mediaID int64, hasMedia bool) {
	var serverList []backend.PendingAppearance
	var fetchErr error
	if hasMedia {
		serverList, fetchErr = c.fetcher.PendingOfficers(ctx, mediaID)
	} else {
		fetchErr = errors.New("analysis completed without a media record")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch || c.stage != StageAnalysing {
		c.logger.Debug("discarding late pending-list response",
			logging.Int64(logging.FieldMediaID, mediaID))
		return
	}
	next, outcome := reconcile.Merge(c.buffer, serverList, fetchErr, c.logger)
	c.buffer = next
	c.reconcileOutcome = outcome
	c.setStageLocked(StageReview)
	c.settleLocked(StageReview)
}

func (c *Controller) settleLocked(stage Stage) {
	if c.settled != nil {
		select {
		case c.settled <- stage:
		default:
		}
	}
}

// SetDecision records a review call. Allowed in review and details.
func (c *Controller) SetDecision(id appearance.ID, decision appearance.Decision) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireStageLocked(StageReview, StageDetails); err != nil {
		return err
	}
	return c.buffer.SetDecision(id, decision)
}

// SetOverrides merges reviewer field edits. Allowed in review and details.
func (c *Controller) SetOverrides(id appearance.ID, edit appearance.Fields) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireStageLocked(StageReview, StageDetails); err != nil {
		return err
	}
	return c.buffer.SetOverrides(id, edit)
}

// CreateMerge forms a merge group during review.
func (c *Controller) CreateMerge(ids []appearance.ID, primary appearance.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireStageLocked(StageReview); err != nil {
		return err
	}
	return c.buffer.CreateMerge(ids, primary)
}

// Unmerge splits a subset out of a group, dissolving the remainder when it
// would drop below two members.
func (c *Controller) Unmerge(primary appearance.ID, subset []appearance.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireStageLocked(StageReview); err != nil {
		return err
	}
	group, ok := c.buffer.GroupFor(primary)
	if !ok {
		return fmt.Errorf("%w: no merge group with primary %s", appearance.ErrNotFound, primary)
	}
	proposal, err := review.ValidateUnmerge(group, subset)
	if err != nil {
		return err
	}
	if err := c.buffer.DissolveMerge(group.Primary); err != nil {
		return err
	}
	if proposal.DissolveRemainder {
		return nil
	}
	remaining := make([]appearance.ID, 0, len(group.Members)-len(proposal.Remove))
	removed := make(map[string]struct{}, len(proposal.Remove))
	for _, id := range proposal.Remove {
		removed[id.String()] = struct{}{}
	}
	for _, member := range group.Members {
		if _, gone := removed[member.String()]; !gone {
			remaining = append(remaining, member)
		}
	}
	primaryID := group.Primary
	if _, gone := removed[primaryID.String()]; gone {
		primaryID = remaining[0]
	}
	return c.buffer.CreateMerge(remaining, primaryID)
}

// ConfirmReview derives the verified set and moves to details. An empty set
// is refused; use ConfirmEmpty to proceed with nothing accepted.
func (c *Controller) ConfirmReview() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !canTransition(c.stage, StageDetails) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, c.stage, StageDetails)
	}
	results := c.buffer.Finalize()
	if len(results) == 0 {
		return ErrEmptyReview
	}
	c.results = results
	c.setStageLocked(StageDetails)
	return nil
}

// ConfirmEmpty moves to details with an explicitly empty verified set.
func (c *Controller) ConfirmEmpty() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !canTransition(c.stage, StageDetails) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, c.stage, StageDetails)
	}
	c.results = nil
	c.setStageLocked(StageDetails)
	return nil
}

// ConfirmDetails re-derives the verified set with current overrides and
// moves to preview.
func (c *Controller) ConfirmDetails() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !canTransition(c.stage, StagePreview) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, c.stage, StagePreview)
	}
	if c.results != nil {
		c.results = c.buffer.Finalize()
	}
	c.setStageLocked(StagePreview)
	return nil
}

// Commit sends the verified set. On success the workflow is done; on
// failure it returns to preview with all state preserved so the user can
// retry or navigate back.
func (c *Controller) Commit(ctx context.Context) (commit.Outcome, error) {
	c.mu.Lock()
	if !canTransition(c.stage, StageCommitting) {
		c.mu.Unlock()
		return commit.Outcome{}, fmt.Errorf("%w: %s -> %s", ErrBadTransition, c.stage, StageCommitting)
	}
	if !c.hasMedia {
		c.mu.Unlock()
		return commit.Outcome{}, ErrNoMediaRecord
	}
	epoch := c.epoch
	mediaID := c.mediaID
	results := append([]appearance.ReviewResult(nil), c.results...)
	c.setStageLocked(StageCommitting)
	c.mu.Unlock()

	outcome, err := c.committer.Commit(ctx, mediaID, results)

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch || c.stage != StageCommitting {
		c.logger.Debug("discarding late commit response",
			logging.Int64(logging.FieldMediaID, mediaID))
		return commit.Outcome{}, err
	}
	if err != nil {
		c.setStageLocked(StagePreview)
		return commit.Outcome{}, err
	}
	c.commitOutcome = &outcome
	c.setStageLocked(StageDone)
	return outcome, nil
}

// Back navigates one stage backward. The buffer is kept; derived state of
// the departed stage is discarded.
func (c *Controller) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var target Stage
	switch c.stage {
	case StageReview:
		target = StageIntake
	case StageDetails:
		target = StageReview
	case StagePreview:
		target = StageDetails
	default:
		return fmt.Errorf("%w: no backward move from %s", ErrBadTransition, c.stage)
	}
	switch c.stage {
	case StageReview:
		// Leaving review for intake abandons the current task; late events
		// and responses must not resurrect it.
		c.epoch++
		c.closeSubscriptionLocked()
		c.results = nil
	case StageDetails:
		c.results = nil
	case StagePreview:
	}
	c.setStageLocked(target)
	return nil
}

// Cancel resets to idle from any stage and closes the stream.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.setStageLocked(StageIdle)
}

func (c *Controller) resetLocked() {
	c.epoch++
	c.closeSubscriptionLocked()
	c.buffer = appearance.NewBuffer()
	c.results = nil
	c.taskID = ""
	c.mediaID = 0
	c.hasMedia = false
	c.reconcileOutcome = reconcile.Outcome{}
	c.commitOutcome = nil
	c.failureReason = ""
	c.settled = nil
}

func (c *Controller) closeSubscriptionLocked() {
	if c.sub != nil {
		sub := c.sub
		c.sub = nil
		// Close waits for the stream goroutines, which may be blocked on
		// this mutex; release it for the duration.
		c.mu.Unlock()
		sub.Close()
		c.mu.Lock()
	}
}

func (c *Controller) requireStageLocked(stages ...Stage) error {
	for _, stage := range stages {
		if c.stage == stage {
			return nil
		}
	}
	return fmt.Errorf("%w: not available in %s", ErrBadTransition, c.stage)
}

func (c *Controller) setStageLocked(stage Stage) {
	if c.stage == stage {
		return
	}
	c.logger.Info("stage change",
		logging.String(logging.FieldStage, string(stage)),
		logging.String("from", string(c.stage)))
	c.stage = stage
}
