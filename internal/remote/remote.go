// Package remote drives the authenticate-then-operate session with one
// television: connect the socket, ask the user for permission, then submit
// key presses. It composes the protocol codec and the transport connection
// behind a three-operation facade and enforces call ordering through an
// explicit state machine.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tvkit/samremote/internal/protocol"
	"github.com/tvkit/samremote/internal/transport"
)

var (
	ErrAccessDenied         = errors.New("access denied by the television")
	ErrAuthTimeout          = errors.New("authorization prompt timed out on the television")
	ErrUnrecognizedResponse = errors.New("unrecognized response payload")
	ErrInvalidState         = errors.New("operation not allowed in current state")
	ErrAuthAborted          = errors.New("connection lost before authorization completed")
)

// State is the session's position in the handshake lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateAuthPending
	StateAuthenticated // terminal success: key sends accepted
	StateAuthFailed    // terminal failure: denied or timed out
	StateAuthAborted   // terminal failure: socket lost mid-handshake
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateAuthPending:
		return "auth-pending"
	case StateAuthenticated:
		return "authenticated"
	case StateAuthFailed:
		return "auth-failed"
	case StateAuthAborted:
		return "auth-aborted"
	default:
		return "invalid"
	}
}

// Config holds client construction options.
type Config struct {
	// Port overrides the well-known service port. 0 means the default;
	// tests point this at loopback fakes.
	Port int

	// KeyDelay is honored after each successful key send. Some TVs drop
	// rapid consecutive key events; a small delay here papers over that.
	// The delay blocks only the issuing call, not the connection.
	KeyDelay time.Duration

	// Logger for session diagnostics. nil discards everything.
	Logger *slog.Logger
}

// Client is the remote-control session facade. One Client owns at most one
// TCP connection for its lifetime; a fresh attempt after failure means a
// fresh Client or a new Connect after the old connection is torn down.
type Client struct {
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	state   State
	conn    *transport.Conn
	pending chan error // waiting-continuation slot for the one outstanding authenticate
}

// New creates a disconnected client.
func New(cfg Config) *Client {
	log := cfg.Logger
	if log == nil {
		log = slog.New(discardHandler{})
	}
	return &Client{
		cfg:   cfg,
		log:   log.With("component", "remote"),
		state: StateDisconnected,
	}
}

// State reports the current session state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LocalIP returns the connected socket's local IP literal, or "" when
// disconnected. This is the address to present in Authenticate.
func (c *Client) LocalIP() string {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ""
	}
	return conn.LocalIP()
}

// Connect opens the TCP link to the television at ip and starts the single
// response listener for this connection. Valid only from the disconnected
// state.
func (c *Client) Connect(ctx context.Context, ip string) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: connect while %s", ErrInvalidState, state)
	}
	c.mu.Unlock()

	conn, err := transport.Dial(ctx, ip, c.cfg.Port)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != StateDisconnected {
		// Lost a race with a concurrent Connect; keep the first winner.
		state := c.state
		c.mu.Unlock()
		conn.Close()
		return fmt.Errorf("%w: connect while %s", ErrInvalidState, state)
	}
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()

	c.log.Debug("connected", "tv", ip)
	go c.readLoop(conn)
	return nil
}

// Authenticate sends the access request and blocks until the television
// answers. ip is the controller's own address (see LocalIP), id a unique
// identifier for this controller, name the label shown on the permission
// prompt. At most one Authenticate may be outstanding per connection;
// out-of-order or concurrent calls fail with ErrInvalidState.
func (c *Client) Authenticate(ctx context.Context, ip, id, name string) error {
	payload, err := protocol.EncodeAuthPayload(ip, id, name)
	if err != nil {
		return err
	}
	frame, err := protocol.EncodeEnvelope(payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != StateConnected {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: authenticate while %s", ErrInvalidState, state)
	}
	conn := c.conn
	done := make(chan error, 1)
	c.pending = done
	c.state = StateAuthPending
	c.mu.Unlock()

	if err := conn.WriteFrame(frame); err != nil {
		c.abort(conn, err)
		return err
	}
	c.log.Debug("authorization requested", "name", name)

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// The request is already on the wire; the only clean way out is
		// to drop the connection, same as any mid-handshake loss.
		c.abort(conn, ctx.Err())
		return ctx.Err()
	}
}

// SendKey submits one key press. The TV does not acknowledge individual
// keys, so a successful return means the frame was flushed to the socket,
// nothing more. A failed write invalidates the connection; any other
// failure leaves the session authenticated.
func (c *Client) SendKey(ctx context.Context, key string) error {
	payload, err := protocol.EncodeKeyPayload(key)
	if err != nil {
		return err
	}
	frame, err := protocol.EncodeEnvelope(payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != StateAuthenticated {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: send key while %s", ErrInvalidState, state)
	}
	conn := c.conn
	c.mu.Unlock()

	if err := conn.WriteFrame(frame); err != nil {
		c.teardown(conn)
		return err
	}
	c.log.Debug("key sent", "key", key)

	if c.cfg.KeyDelay > 0 {
		timer := time.NewTimer(c.cfg.KeyDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close drops the connection. An outstanding Authenticate resolves with
// ErrAuthAborted rather than hanging forever.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	if c.state == StateAuthPending {
		c.state = StateAuthAborted
		c.resolveLocked(ErrAuthAborted)
	} else if c.state != StateAuthFailed && c.state != StateAuthAborted {
		c.state = StateDisconnected
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// readLoop is the single active listener for one connection. It decodes
// each inbound envelope, classifies the payload, and resolves at most one
// pending authenticate call. Exits when the socket errors or closes.
func (c *Client) readLoop(conn *transport.Conn) {
	for {
		payload, err := conn.ReadPayload()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}

		kind := protocol.Classify(payload)
		c.mu.Lock()
		if c.conn != conn {
			// Stale listener from a torn-down connection.
			c.mu.Unlock()
			return
		}
		if c.state != StateAuthPending {
			c.mu.Unlock()
			c.log.Debug("frame outside handshake ignored", "kind", kind)
			continue
		}

		switch kind {
		case protocol.ResponseGranted:
			c.state = StateAuthenticated
			c.resolveLocked(nil)
		case protocol.ResponseDenied:
			c.state = StateAuthFailed
			c.resolveLocked(ErrAccessDenied)
		case protocol.ResponseTimeout:
			c.state = StateAuthFailed
			c.resolveLocked(ErrAuthTimeout)
		case protocol.ResponseAwait:
			// Prompt is on screen; the user has not answered yet.
			c.mu.Unlock()
			c.log.Debug("awaiting user confirmation on the television")
			continue
		default:
			// The original firmware client would hang forever here.
			// Failing fast keeps the caller's authenticate from never
			// resolving.
			c.state = StateAuthFailed
			c.resolveLocked(fmt.Errorf("%w: % x", ErrUnrecognizedResponse, payload))
		}
		c.mu.Unlock()
	}
}

// handleDisconnect reacts to the listener's read error: a loss during
// AuthPending aborts the handshake, any later loss just invalidates the
// connection.
func (c *Client) handleDisconnect(conn *transport.Conn, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return
	}
	c.conn = nil
	conn.Close()
	if c.state == StateAuthPending {
		c.state = StateAuthAborted
		c.resolveLocked(fmt.Errorf("%w: %v", ErrAuthAborted, err))
	} else {
		c.state = StateDisconnected
	}
	c.log.Debug("connection lost", "err", err)
}

// abort tears the connection down after a handshake-phase failure.
func (c *Client) abort(conn *transport.Conn, cause error) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.state = StateAuthAborted
	}
	c.pending = nil
	c.mu.Unlock()
	conn.Close()
	c.log.Debug("handshake aborted", "err", cause)
}

// teardown invalidates the connection after a post-handshake write failure.
func (c *Client) teardown(conn *transport.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.state = StateDisconnected
	}
	c.mu.Unlock()
	conn.Close()
}

// resolveLocked completes the pending authenticate call exactly once.
// Duplicate or out-of-order frames cannot resolve the same call twice:
// the slot is cleared on first use. Caller holds c.mu.
func (c *Client) resolveLocked(err error) {
	if c.pending == nil {
		return
	}
	c.pending <- err
	c.pending = nil
}
