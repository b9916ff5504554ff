package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/microsafety/microsafety/internal/observability"
	"github.com/microsafety/microsafety/internal/telemetry"
)

// ErrAlreadyRunning is returned when Run is called on a client that is
// running or has already been torn down.
var ErrAlreadyRunning = errors.New("feed client already running")

// DefaultReconnectDelay is the fixed wait between a disconnect and the next dial.
const DefaultReconnectDelay = 2 * time.Second

// ClientConfig holds configuration for the feed client.
type ClientConfig struct {
	// Dialer opens feed connections. Required.
	Dialer Dialer

	// Logger for connection lifecycle events.
	Logger zerolog.Logger

	// Clock drives the reconnect timer.
	// Default: real clock
	Clock clockwork.Clock

	// ReconnectDelay is the constant delay before redialing.
	// Default: 2 seconds
	ReconnectDelay time.Duration

	// Metrics is optional.
	Metrics *observability.Metrics
}

type eventKind int

const (
	eventOpened eventKind = iota
	eventMessage
	eventClosed
)

// event is the only way dial and read goroutines talk to the loop.
// attempt identifies the connection it belongs to; events from a
// superseded attempt are discarded.
type event struct {
	kind    eventKind
	attempt uint64
	conn    Conn
	payload []byte
	err     error
}

// Client keeps one connection to the feed open and publishes every valid
// snapshot it receives. Transport failures are never returned to the caller;
// they show up as Connected=false until the next successful dial.
type Client struct {
	dialer  Dialer
	logger  zerolog.Logger
	clock   clockwork.Clock
	backoff backoff.BackOff
	metrics *observability.Metrics

	mu      sync.RWMutex
	state   State
	running bool
	done    bool
	subs    map[chan State]struct{}
}

// NewClient creates a feed client. Call Run to start it.
func NewClient(cfg ClientConfig) *Client {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}

	return &Client{
		dialer:  cfg.Dialer,
		logger:  cfg.Logger,
		clock:   clock,
		backoff: backoff.NewConstantBackOff(delay),
		metrics: cfg.Metrics,
		state:   State{Conn: StateDisconnected},
		subs:    make(map[chan State]struct{}),
	}
}

// State returns the latest snapshot and connectivity.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateLocked()
}

// Latest returns the latest snapshot, or nil before the first valid payload.
func (c *Client) Latest() *Snapshot {
	return c.State().Snapshot
}

// Connected reports whether a feed connection is currently open.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Connected
}

// Subscribe returns a channel that receives the current state immediately and
// then every change. Slow readers only ever see the most recent state.
// The channel is closed when the client is torn down or cancel is called.
func (c *Client) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done {
		ch <- c.stateLocked()
		close(ch)
		return ch, func() {}
	}

	c.subs[ch] = struct{}{}
	ch <- c.stateLocked()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
}

// Run connects and keeps reconnecting until ctx is cancelled. It always
// returns ctx.Err() except when the client was already started.
// After Run returns no further state changes happen.
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running || c.done {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.mu.Unlock()

	events := make(chan event)

	var (
		attempt uint64
		active  uint64
		conn    Conn
		timer   clockwork.Timer
		timerC  <-chan time.Time
	)

	dial := func() {
		attempt++
		active = attempt
		c.transition(StateConnecting)
		go c.dial(ctx, attempt, events)
	}

	dial()

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			if conn != nil {
				_ = conn.Close()
			}
			c.shutdown()
			c.logger.Info().Msg("feed client stopped")
			return ctx.Err()

		case <-timerC:
			timer, timerC = nil, nil
			if ctx.Err() != nil {
				continue
			}
			dial()

		case ev := <-events:
			if ctx.Err() != nil {
				if ev.kind == eventOpened && ev.conn != conn {
					_ = ev.conn.Close()
				}
				continue
			}
			if ev.attempt != active {
				if ev.kind == eventOpened {
					_ = ev.conn.Close()
				}
				continue
			}

			switch ev.kind {
			case eventOpened:
				conn = ev.conn
				c.backoff.Reset()
				c.transition(StateConnected)
				if c.metrics != nil {
					c.metrics.FeedConnects.Inc()
				}
				c.logger.Info().Uint64("attempt", ev.attempt).Msg("feed connected")
				go c.read(ctx, ev.attempt, conn, events)

			case eventMessage:
				c.handlePayload(ev.payload)

			case eventClosed:
				active = 0
				if conn != nil {
					_ = conn.Close()
					conn = nil
					if c.metrics != nil {
						c.metrics.FeedDisconnects.Inc()
					}
				} else if c.metrics != nil {
					c.metrics.FeedDialErrors.Inc()
				}
				c.transition(StateDisconnected)

				if timer == nil {
					delay := c.backoff.NextBackOff()
					timer = c.clock.NewTimer(delay)
					timerC = timer.Chan()
					c.logger.Warn().
						Err(ev.err).
						Dur("retry_in", delay).
						Msg("feed disconnected")
				}
			}
		}
	}
}

func (c *Client) dial(ctx context.Context, attempt uint64, events chan<- event) {
	dialCtx, span := telemetry.Tracer("microsafety/feed").Start(ctx, "feed.dial",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int64("feed.attempt", int64(attempt))),
	)
	conn, err := c.dialer.Dial(dialCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
	}
	span.End()

	ev := event{kind: eventOpened, attempt: attempt, conn: conn}
	if err != nil {
		ev = event{kind: eventClosed, attempt: attempt, err: err}
	}

	select {
	case events <- ev:
	case <-ctx.Done():
		if conn != nil {
			_ = conn.Close()
		}
	}
}

func (c *Client) read(ctx context.Context, attempt uint64, conn Conn, events chan<- event) {
	for {
		payload, err := conn.Read(ctx)

		ev := event{kind: eventMessage, attempt: attempt, payload: payload}
		if err != nil {
			ev = event{kind: eventClosed, attempt: attempt, err: err}
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}

		if err != nil {
			return
		}
	}
}

// handlePayload decodes a payload and publishes it. Malformed payloads are
// dropped and the previous snapshot stays in place.
func (c *Client) handlePayload(payload []byte) {
	snap, err := Decode(payload)
	if err != nil {
		if c.metrics != nil {
			c.metrics.FeedDecodeErrors.Inc()
		}
		c.logger.Debug().Err(err).Int("bytes", len(payload)).Msg("dropping malformed feed payload")
		return
	}

	c.mu.Lock()
	c.state.Snapshot = snap
	c.publishLocked()
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.FeedMessages.Inc()
		c.metrics.FeedTick.Set(float64(snap.Tick))
	}
}

func (c *Client) transition(to ConnState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Conn == to {
		return
	}
	c.state.Conn = to
	c.state.Connected = to == StateConnected
	c.publishLocked()

	if c.metrics != nil {
		if c.state.Connected {
			c.metrics.FeedConnected.Set(1)
		} else {
			c.metrics.FeedConnected.Set(0)
		}
	}
}

func (c *Client) shutdown() {
	c.transition(StateDisconnected)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.done = true
	for ch := range c.subs {
		close(ch)
	}
	c.subs = nil
}

func (c *Client) stateLocked() State {
	s := c.state
	s.Snapshot = s.Snapshot.Clone()
	return s
}

func (c *Client) publishLocked() {
	for ch := range c.subs {
		// Drop any unread state so the send below never blocks.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- c.stateLocked():
		default:
		}
	}
}
