package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultCommandTimeout bounds the wait for one reply.
	DefaultCommandTimeout = 30 * time.Second

	defaultHandshakeTimeout = 5 * time.Second
	notifyTimeout           = 5 * time.Second
	closeGracePeriod        = time.Second
)

// Config configures a Client.
type Config struct {
	URL              string
	CommandTimeout   time.Duration
	HandshakeTimeout time.Duration

	// DryRun answers every command locally with ok:true.
	DryRun bool
}

// Logger is the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Client speaks the Agent command protocol over a websocket.
//
// Each Send gets the next integer id; replies are matched by id and may
// arrive in any order. Messages without an id go to subscribers, anything
// unparseable or unmatched is dropped.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	cfg    Config
	logger Logger

	writeMu sync.Mutex

	nextID atomic.Int64

	mu          sync.Mutex
	link        *link
	pending     map[int64]chan Reply
	subscribers []func(Event)
}

// link is one websocket connection. A client reconnects by replacing its
// link; a dead link never affects its successor.
type link struct {
	conn *websocket.Conn

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newLink(conn *websocket.Conn) *link {
	return &link{conn: conn, done: make(chan struct{})}
}

func (l *link) alive() bool {
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

// New creates a Client. Call Connect before Send unless cfg.DryRun is set.
func New(cfg Config) *Client {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &Client{
		cfg:     cfg,
		logger:  noopLogger{},
		pending: make(map[int64]chan Reply),
	}
}

// SetLogger sets the logger.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// DryRun reports whether the client answers commands locally.
func (c *Client) DryRun() bool {
	return c.cfg.DryRun
}

// Connect opens the websocket and starts the read loop. It is a no-op while
// a live connection exists, and dials afresh once the previous one dropped.
// In dry-run mode it does nothing.
func (c *Client) Connect(ctx context.Context) error {
	if c.cfg.DryRun {
		c.logger.Debug("agent dry-run, not connecting")
		return nil
	}

	c.mu.Lock()
	current := c.link
	c.mu.Unlock()
	if current != nil && current.alive() {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck // handshake body is unused
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, c.cfg.URL, err)
	}

	l := newLink(conn)
	c.mu.Lock()
	if c.link != nil && c.link.alive() {
		// Lost a race with a concurrent Connect.
		c.mu.Unlock()
		conn.Close() //nolint:errcheck // duplicate connection
		return nil
	}
	c.link = l
	c.mu.Unlock()

	go c.readLoop(l)

	c.logger.Debug("agent connected", "url", c.cfg.URL)
	return nil
}

// Send issues action with params and waits for its reply.
//
// An ok:false reply yields *CommandError. With no reply within the command
// timeout the handler is dropped and ErrTimeout returned; the connection
// stays open for other commands.
func (c *Client) Send(ctx context.Context, action string, params Params) (Reply, error) {
	id := c.nextID.Add(1)

	if c.cfg.DryRun {
		c.logger.Debug("agent dry-run command", "id", id, "action", action)
		return Reply{ID: id, OK: true, raw: json.RawMessage(`{"ok":true}`)}, nil
	}

	c.mu.Lock()
	l := c.link
	if l == nil {
		c.mu.Unlock()
		return Reply{}, ErrNotConnected
	}
	if !l.alive() {
		c.mu.Unlock()
		return Reply{}, l.closedError()
	}
	ch := make(chan Reply, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	data, err := encodeCommand(id, action, params)
	if err != nil {
		c.forget(id)
		return Reply{}, fmt.Errorf("encoding %s: %w", action, err)
	}

	c.writeMu.Lock()
	err = l.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return Reply{}, fmt.Errorf("%w: writing %s: %w", ErrConnectionFailed, action, err)
	}

	timer := time.NewTimer(c.cfg.CommandTimeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		if !reply.OK {
			return reply, &CommandError{Action: action, Message: reply.Error}
		}
		return reply, nil
	case <-timer.C:
		c.forget(id)
		return Reply{}, fmt.Errorf("%w: %s (id %d) after %v", ErrTimeout, action, id, c.cfg.CommandTimeout)
	case <-ctx.Done():
		c.forget(id)
		return Reply{}, fmt.Errorf("%s: %w", action, ctx.Err())
	case <-l.done:
		c.forget(id)
		return Reply{}, l.closedError()
	}
}

// Notify sends action without waiting on the caller's goroutine.
// Failures are logged at debug level and otherwise ignored.
func (c *Client) Notify(action string, params Params) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if _, err := c.Send(ctx, action, params); err != nil {
			c.logger.Debug("agent notify failed", "action", action, "error", err)
		}
	}()
}

// Subscribe registers fn for unsolicited events. fn runs on the read loop
// and must not block.
func (c *Client) Subscribe(fn func(Event)) {
	c.mu.Lock()
	c.subscribers = append(c.subscribers, fn)
	c.mu.Unlock()
}

// Pending returns the number of commands awaiting a reply.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close closes the connection. Commands in flight fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	l := c.link
	c.mu.Unlock()
	if l == nil || !l.alive() {
		return nil
	}
	l.shutdown(nil)
	conn := l.conn

	c.writeMu.Lock()
	//nolint:errcheck // Best-effort close frame
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeGracePeriod))
	c.writeMu.Unlock()

	if err := conn.Close(); err != nil {
		return fmt.Errorf("closing agent connection: %w", err)
	}
	return nil
}

// readLoop dispatches incoming messages until the connection fails.
func (c *Client) readLoop(l *link) {
	for {
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			if l.alive() && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("agent connection lost", "error", err)
			}
			l.shutdown(err)
			l.conn.Close() //nolint:errcheck // already failed
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Debug("ignoring non-JSON agent message", "bytes", len(data))
		return
	}

	if env.ID == nil {
		evType := env.Event
		if evType == "" {
			evType = env.Type
		}
		c.mu.Lock()
		subs := append([]func(Event){}, c.subscribers...)
		c.mu.Unlock()
		for _, fn := range subs {
			fn(Event{Type: evType, Raw: json.RawMessage(data)})
		}
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[*env.ID]
	delete(c.pending, *env.ID)
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("ignoring reply for unknown id", "id", *env.ID)
		return
	}
	ch <- Reply{ID: *env.ID, OK: env.OK, Error: env.Error, raw: json.RawMessage(data)}
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (l *link) shutdown(cause error) {
	l.closeOnce.Do(func() {
		l.closeErr = cause
		close(l.done)
	})
}

// closedError must only be called once done is closed.
func (l *link) closedError() error {
	if l.closeErr != nil {
		return fmt.Errorf("%w: %w", ErrClosed, l.closeErr)
	}
	return ErrClosed
}
