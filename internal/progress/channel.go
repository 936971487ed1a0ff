package progress

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"vigil/internal/config"
	"vigil/internal/logging"
)

const (
	defaultIdleTimeout    = 45 * time.Second
	defaultReconnectBase  = 1 * time.Second
	defaultReconnectMax   = 10 * time.Second
	maxEventPayloadBytes  = 1 << 20
	initialScanBufferSize = 64 * 1024
)

// HTTPDoer describes the HTTP client used for stream connections.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Channel opens analysis progress streams against the backend.
type Channel struct {
	baseURL       string
	httpClient    HTTPDoer
	logger        *slog.Logger
	idleTimeout   time.Duration
	reconnectBase time.Duration
	reconnectMax  time.Duration
}

// Option customizes the channel.
type Option func(*Channel)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Channel) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger for stream diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "progress")
		}
	}
}

// NewChannel constructs a progress channel from configuration.
func NewChannel(cfg *config.Config, opts ...Option) *Channel {
	baseURL := ""
	idle := defaultIdleTimeout
	base := defaultReconnectBase
	max := defaultReconnectMax
	if cfg != nil {
		baseURL = cfg.Backend.BaseURL
		if cfg.Ingest.ProgressIdleTimeout > 0 {
			idle = time.Duration(cfg.Ingest.ProgressIdleTimeout) * time.Second
		}
		if cfg.Ingest.ReconnectBaseDelay > 0 {
			base = time.Duration(cfg.Ingest.ReconnectBaseDelay) * time.Second
		}
		if cfg.Ingest.ReconnectMaxDelay > 0 {
			max = time.Duration(cfg.Ingest.ReconnectMaxDelay) * time.Second
		}
	}
	if max < base {
		max = base
	}
	channel := &Channel{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		// Streams stay open well past any sane request timeout, so the
		// stream client carries no deadline of its own.
		httpClient:    &http.Client{},
		logger:        logging.NewNop(),
		idleTimeout:   idle,
		reconnectBase: base,
		reconnectMax:  max,
	}
	for _, opt := range opts {
		opt(channel)
	}
	return channel
}

// Subscription is a single-consumer view of one task's event stream. The
// events channel closes after a terminal event, an idle timeout, or Close.
type Subscription struct {
	events    chan Event
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

// Events returns the stream of parsed events.
func (s *Subscription) Events() <-chan Event { return s.events }

// Close tears down the stream. Safe to call more than once and after the
// events channel has closed.
func (s *Subscription) Close() {
	s.closeOnce.Do(s.cancel)
	<-s.done
}

// Subscribe opens the event stream for the given task. The subscription
// reconnects transparently on transport failures and emits a synthetic
// failure event when the stream stays silent past the idle window.
func (c *Channel) Subscribe(ctx context.Context, taskID string) *Subscription {
	streamCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		events: make(chan Event, 16),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	raw := make(chan rawEvent)
	go c.read(streamCtx, taskID, raw)
	go c.run(streamCtx, sub, raw)
	return sub
}

type rawEvent struct {
	keepalive bool
	event     Event
}

func (c *Channel) run(ctx context.Context, sub *Subscription, raw <-chan rawEvent) {
	defer close(sub.done)
	defer close(sub.events)
	defer sub.cancel()

	idle := time.NewTimer(c.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-idle.C:
			c.logger.Warn("progress stream idle, giving up",
				logging.Duration("idle_timeout", c.idleTimeout))
			select {
			case sub.events <- Event{Kind: KindFailed, Reason: TimeoutReason}:
			case <-ctx.Done():
			}
			return
		case r, ok := <-raw:
			if !ok {
				return
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(c.idleTimeout)
			if r.keepalive {
				continue
			}
			select {
			case sub.events <- r.event:
			case <-ctx.Done():
				return
			}
			if r.event.Terminal() {
				return
			}
		}
	}
}

// read connects to the stream and reconnects with exponential backoff until
// a terminal event arrives or the context is canceled.
func (c *Channel) read(ctx context.Context, taskID string, out chan<- rawEvent) {
	defer close(out)

	delay := c.reconnectBase
	for {
		if ctx.Err() != nil {
			return
		}
		gotEvent, terminal, err := c.stream(ctx, taskID, out)
		if terminal || ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Debug("progress stream interrupted",
				logging.String(logging.FieldTaskID, taskID),
				logging.Error(err))
		}
		if gotEvent {
			delay = c.reconnectBase
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.reconnectMax {
			delay = c.reconnectMax
		}
	}
}

func (c *Channel) stream(ctx context.Context, taskID string, out chan<- rawEvent) (bool, bool, error) {
	url := fmt.Sprintf("%s/ingest/tasks/%s/events", c.baseURL, taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, false, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return false, false, fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, initialScanBufferSize), maxEventPayloadBytes)

	gotEvent := false
	name := ""
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if name == "" && data.Len() == 0 {
				continue
			}
			event, ok, perr := parseEvent(name, data.String())
			name = ""
			data.Reset()
			if perr != nil {
				c.logger.Warn("skipping malformed stream event", logging.Error(perr))
				continue
			}
			if !ok {
				continue
			}
			if !c.send(ctx, out, rawEvent{event: event}) {
				return gotEvent, false, nil
			}
			gotEvent = true
			if event.Terminal() {
				return gotEvent, true, nil
			}
		case strings.HasPrefix(line, ":"):
			// Keepalive comment. Resets the idle window without surfacing
			// anything to the consumer.
			if !c.send(ctx, out, rawEvent{keepalive: true}) {
				return gotEvent, false, nil
			}
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return gotEvent, false, scanner.Err()
}

func (c *Channel) send(ctx context.Context, out chan<- rawEvent, r rawEvent) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}
