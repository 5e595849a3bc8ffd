package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/genvid/genvid/engine/job"
	"github.com/genvid/genvid/pkg/logger"
	"github.com/sethvargo/go-retry"
)

// ErrTransport wraps connection and framing failures. It is only logged;
// consumers of a Channel never see it.
var ErrTransport = errors.New("transport: connection failure")

var (
	ErrNoToken     = errors.New("transport: token is required")
	ErrAlreadyOpen = errors.New("transport: channel already open")
)

const (
	DefaultReconnectDelay    = 1500 * time.Millisecond
	DefaultMaxReconnectDelay = 30 * time.Second
	DefaultBufferSize        = 64
)

// Kind selects how job updates reach the client.
type Kind string

const (
	KindSSE    Kind = "sse"
	KindSocket Kind = "socket"
	KindPoll   Kind = "poll"
)

func (k Kind) IsValid() bool {
	return k == KindSSE || k == KindSocket || k == KindPoll
}

type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateReconnectWait
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateReconnectWait:
		return "RECONNECT_WAIT"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Connector performs a single connection attempt. It calls onOpen once the
// connection is established and emit for every complete message, blocking
// until the connection ends. emit returns false when the channel is shutting
// down.
type Connector interface {
	Connect(ctx context.Context, token string, onOpen func(), emit func(msg []byte) bool) error
}

// Channel turns a Connector into an endless stream of job snapshots. Failures
// schedule a reconnect; only Close or context cancellation end the stream.
type Channel struct {
	connector     Connector
	delay         time.Duration
	maxDelay      time.Duration
	exponential   bool
	bufferSize    int
	onStateChange func(State)

	state  atomic.Int32
	mu     sync.Mutex
	opened bool
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Channel)

// WithReconnectDelay sets the wait between a failure and the next attempt.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithExponentialBackoff doubles the reconnect delay after each failed
// attempt, capped at maxDelay. The delay resets once a connection opens.
func WithExponentialBackoff(maxDelay time.Duration) Option {
	return func(c *Channel) {
		c.exponential = true
		if maxDelay > 0 {
			c.maxDelay = maxDelay
		}
	}
}

func WithBufferSize(n int) Option {
	return func(c *Channel) {
		if n >= 0 {
			c.bufferSize = n
		}
	}
}

// WithStateHook observes every state transition.
func WithStateHook(fn func(State)) Option {
	return func(c *Channel) {
		c.onStateChange = fn
	}
}

func NewChannel(connector Connector, opts ...Option) *Channel {
	c := &Channel{
		connector:  connector,
		delay:      DefaultReconnectDelay,
		maxDelay:   DefaultMaxReconnectDelay,
		bufferSize: DefaultBufferSize,
	}
	c.state.Store(int32(StateClosed))
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Channel) State() State {
	return State(c.state.Load())
}

// Open starts the connection loop and returns the snapshot stream. The stream
// is closed after Close or when ctx ends.
func (c *Channel) Open(ctx context.Context, token string) (<-chan job.Snapshot, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened {
		return nil, ErrAlreadyOpen
	}
	c.opened = true
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	out := make(chan job.Snapshot, c.bufferSize)
	c.setState(StateConnecting)
	go c.run(loopCtx, token, out)
	return out, nil
}

// Close stops the loop and waits for it to exit. It is safe to call more than
// once.
func (c *Channel) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (c *Channel) run(ctx context.Context, token string, out chan<- job.Snapshot) {
	log := logger.FromContext(ctx)
	defer func() {
		c.setState(StateClosed)
		close(out)
		close(c.done)
	}()
	backoff := c.newBackoff()
	for attempt := 1; ; attempt++ {
		c.setState(StateConnecting)
		opened := false
		err := c.connector.Connect(ctx, token, func() {
			opened = true
			c.setState(StateOpen)
		}, func(msg []byte) bool {
			return c.deliver(ctx, msg, out)
		})
		if ctx.Err() != nil {
			return
		}
		if opened {
			backoff = c.newBackoff()
			attempt = 1
		}
		wait, stop := backoff.Next()
		if stop {
			wait = c.delay
		}
		log.Debug(
			"job channel disconnected, reconnecting",
			"attempt", attempt,
			"wait", wait,
			"error", fmt.Errorf("%w: %w", ErrTransport, errOrEnded(err)),
		)
		c.setState(StateReconnectWait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (c *Channel) deliver(ctx context.Context, msg []byte, out chan<- job.Snapshot) bool {
	snaps, err := Normalize(msg)
	if err != nil {
		logger.FromContext(ctx).Debug("dropping malformed job message", "error", err, "size", len(msg))
		return ctx.Err() == nil
	}
	for _, snap := range snaps {
		select {
		case out <- snap:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (c *Channel) newBackoff() retry.Backoff {
	if c.exponential {
		return retry.WithCappedDuration(c.maxDelay, retry.NewExponential(c.delay))
	}
	return retry.NewConstant(c.delay)
}

func (c *Channel) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	if prev != s && c.onStateChange != nil {
		c.onStateChange(s)
	}
}

var errStreamEnded = errors.New("stream ended")

func errOrEnded(err error) error {
	if err == nil {
		return errStreamEnded
	}
	return err
}
