package uplink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"uplinkhub/pkg/models"
	"uplinkhub/pkg/protocol"
)

// HandlerFunc is a function this uplink exposes to the hosted backend
type HandlerFunc func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

type Options struct {
	URL         string
	Dialer      Dialer        // nil = WebsocketDialer
	Logger      *slog.Logger  // nil = slog.Default()
	CallTimeout time.Duration // 0 = wait until ctx is done
}

// Client is one uplink connection, explicitly owned by the caller.
// Pair every successful Connect with a deferred Disconnect.
type Client struct {
	url         string
	dialer      Dialer
	logger      *slog.Logger
	callTimeout time.Duration

	mu        sync.Mutex // guards everything below except writeMu/callMu
	state     State
	conn      Conn
	sessionID string
	ticket    string
	pending   map[string]chan *protocol.Message // call id -> response slot
	handlers  map[string]HandlerFunc
	done      chan struct{} // closed when the read loop exits
	readErr   error
	cancel    context.CancelFunc // stops handlers started by the server

	writeMu sync.Mutex // gorilla allows one concurrent writer
	callMu  sync.Mutex // one invocation at a time
}

// constructor for Client
func NewClient(opts Options) *Client {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = WebsocketDialer{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:         opts.URL,
		dialer:      dialer,
		logger:      logger,
		callTimeout: opts.CallTimeout,
		state:       StateIdle,
		pending:     make(map[string]chan *protocol.Message),
		handlers:    make(map[string]HandlerFunc),
	}
}

// Connect creates a client and connects it in one step
func Connect(ctx context.Context, key string, opts Options) (*Client, error) {
	c := NewClient(opts)
	if err := c.Connect(ctx, key); err != nil {
		return nil, err
	}
	return c, nil
}

// State returns the current protocol state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the id the server assigned at AUTH_OK
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Connect authenticates against the bridge with key.
// A blank key or URL fails with ErrConfiguration before anything is dialed.
func (c *Client) Connect(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: uplink key is empty", ErrConfiguration)
	}
	if c.url == "" {
		return fmt.Errorf("%w: uplink url is empty", ErrConfiguration)
	}

	c.mu.Lock()
	switch c.state {
	case StateIdle:
	case StateFailed:
		c.mu.Unlock()
		return fmt.Errorf("%w: client failed earlier, create a new one", ErrConnection)
	default:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot connect while %s", ErrConnection, state)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	c.logger.Info("uplink_connecting", "url", c.url)

	conn, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		c.setState(StateFailed)
		c.logger.Error("uplink_dial_failed", "url", c.url, "error", err)
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	reply, err := c.handshake(ctx, conn, key)
	if err != nil {
		conn.Close()
		c.setState(StateFailed)
		c.logger.Error("uplink_handshake_failed", "url", c.url, "error", err)
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	if reply.Type != protocol.TypeAuthOK {
		conn.Close()
		c.setState(StateFailed)
		reason := "unexpected reply " + string(reply.Type)
		if reply.Error != nil {
			reason = reply.Error.Message
		}
		c.logger.Error("uplink_auth_rejected", "url", c.url, "reason", reason)
		return fmt.Errorf("%w: credential rejected: %s", ErrConnection, reason)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.conn = conn
	c.sessionID = reply.SessionID
	c.ticket = reply.Ticket
	c.readErr = nil
	c.done = make(chan struct{})
	c.cancel = cancel
	c.state = StateConnected
	names := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		names = append(names, name)
	}
	done := c.done
	c.mu.Unlock()

	go c.readLoop(loopCtx, conn, done)

	for _, name := range names {
		if err := c.write(conn, &protocol.Message{Type: protocol.TypeRegister, Command: name}); err != nil {
			c.logger.Warn("uplink_register_failed", "function", name, "error", err)
		}
	}

	c.logger.Info("uplink_connected", "url", c.url, "session_id", reply.SessionID)
	return nil
}

// handshake sends AUTH and waits for the first reply, honoring ctx
func (c *Client) handshake(ctx context.Context, conn Conn, key string) (*protocol.Message, error) {
	if err := c.write(conn, protocol.NewAuth(key)); err != nil {
		return nil, fmt.Errorf("send auth: %w", err)
	}

	type result struct {
		msg *protocol.Message
		err error
	}
	ch := make(chan result, 1)
	go func() {
		var msg protocol.Message
		err := conn.ReadJSON(&msg)
		ch <- result{&msg, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("read auth reply: %w", r.err)
		}
		return r.msg, nil
	case <-ctx.Done():
		// closing unblocks the reader goroutine
		conn.Close()
		return nil, ctx.Err()
	}
}

// Register exposes fn to the hosted backend under name.
// Handlers registered before Connect are announced right after AUTH_OK.
func (c *Client) Register(name string, fn HandlerFunc) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("function name is empty")
	}
	if fn == nil {
		return errors.New("handler is nil")
	}

	c.mu.Lock()
	c.handlers[name] = fn
	conn := c.conn
	connected := c.state == StateConnected || c.state == StateInvoking
	c.mu.Unlock()

	if !connected {
		return nil
	}
	if err := c.write(conn, &protocol.Message{Type: protocol.TypeRegister, Command: name}); err != nil {
		return fmt.Errorf("%w: register %s: %w", ErrConnection, name, err)
	}
	return nil
}

// Call invokes a remote procedure once and returns its raw response.
// Remote failures come back as *RemoteError; the connection stays usable.
func (c *Client) Call(ctx context.Context, procedure string, args ...any) (any, error) {
	if strings.TrimSpace(procedure) == "" {
		return nil, &RemoteError{Procedure: procedure, Type: protocol.ErrTypeInvalidRequest, Message: "procedure name is empty"}
	}

	c.callMu.Lock()
	defer c.callMu.Unlock()

	c.mu.Lock()
	if c.state != StateConnected {
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w (state %s)", ErrNotConnected, state)
	}
	if c.readErr != nil {
		readErr := c.readErr
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: connection lost: %w", ErrConnection, readErr)
	}
	id := uuid.NewString()
	slot := make(chan *protocol.Message, 1)
	c.pending[id] = slot
	c.state = StateInvoking
	conn, ticket := c.conn, c.ticket
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		if c.state == StateInvoking {
			c.state = StateConnected
		}
		c.mu.Unlock()
	}()

	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	if args == nil {
		args = []any{}
	}
	c.logger.Debug("uplink_call_started", "procedure", procedure, "call_id", id)
	if err := c.write(conn, protocol.NewCall(id, ticket, procedure, args, nil)); err != nil {
		return nil, fmt.Errorf("%w: send call %s: %w", ErrConnection, procedure, err)
	}

	select {
	case resp, ok := <-slot:
		if !ok {
			return nil, fmt.Errorf("%w: connection lost during %s", ErrConnection, procedure)
		}
		if resp.Error != nil {
			c.logger.Warn("uplink_call_failed",
				"procedure", procedure,
				"error_type", resp.Error.Type,
				"error", resp.Error.Message,
			)
			return nil, &RemoteError{Procedure: procedure, Type: resp.Error.Type, Message: resp.Error.Message}
		}
		c.logger.Debug("uplink_call_succeeded", "procedure", procedure, "call_id", id)
		return resp.Response, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", ErrRemoteExecution, procedure, ctx.Err())
	}
}

// Invoke calls a diagnostic procedure and decodes its ConnectionResult
func (c *Client) Invoke(ctx context.Context, procedure string) (*models.ConnectionResult, error) {
	resp, err := c.Call(ctx, procedure)
	if err != nil {
		return nil, err
	}
	raw, ok := resp.(map[string]any)
	if !ok {
		return nil, &RemoteError{
			Procedure: procedure,
			Type:      protocol.ErrTypeInvalidResult,
			Message:   fmt.Sprintf("expected a mapping, got %T", resp),
		}
	}
	result, err := models.ConnectionResultFromMap(raw)
	if err != nil {
		return nil, &RemoteError{Procedure: procedure, Type: protocol.ErrTypeInvalidResult, Message: err.Error()}
	}
	return result, nil
}

// Disconnect says goodbye and closes the socket.
// It is a no-op on a client that is idle, failed, or already disconnecting.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.state != StateConnected && c.state != StateInvoking {
		c.mu.Unlock()
		return nil
	}
	c.state = StateDisconnecting
	conn, done, cancel := c.conn, c.done, c.cancel
	c.mu.Unlock()

	c.logger.Info("uplink_disconnecting", "url", c.url)

	if err := c.write(conn, &protocol.Message{Type: protocol.TypeBye}); err != nil {
		c.logger.Debug("uplink_bye_failed", "error", err)
	}
	if err := conn.Close(); err != nil {
		c.logger.Debug("uplink_close_failed", "error", err)
	}
	cancel()
	<-done

	c.mu.Lock()
	c.conn = nil
	c.sessionID = ""
	c.ticket = ""
	c.state = StateIdle
	c.mu.Unlock()

	c.logger.Info("uplink_disconnected", "url", c.url)
	return nil
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) write(conn Conn, msg *protocol.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// readLoop is the only reader of conn after the handshake
func (c *Client) readLoop(ctx context.Context, conn Conn, done chan struct{}) {
	defer close(done)

	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			if c.state != StateDisconnecting {
				c.logger.Warn("uplink_read_failed", "error", err)
			}
			c.readErr = err
			for id, slot := range c.pending {
				close(slot)
				delete(c.pending, id)
			}
			c.mu.Unlock()
			return
		}

		switch msg.Type {
		case protocol.TypeResponse:
			c.mu.Lock()
			slot, ok := c.pending[msg.ID]
			if ok {
				delete(c.pending, msg.ID)
			}
			c.mu.Unlock()
			if !ok {
				c.logger.Warn("uplink_orphan_response", "call_id", msg.ID)
				continue
			}
			slot <- &msg
		case protocol.TypeCall:
			go c.serveCall(ctx, conn, msg)
		case protocol.TypeTicket:
			c.mu.Lock()
			if msg.Ticket != "" && (msg.SessionID == "" || msg.SessionID == c.sessionID) {
				c.ticket = msg.Ticket
			}
			c.mu.Unlock()
			c.logger.Debug("uplink_ticket_renewed", "session_id", msg.SessionID)
		case protocol.TypeRegistered:
			if msg.Error != nil {
				c.logger.Warn("uplink_function_rejected", "function", msg.Command, "error", msg.Error.Message)
				continue
			}
			c.logger.Debug("uplink_function_registered", "function", msg.Command)
		default:
			c.logger.Warn("uplink_unexpected_message", "type", msg.Type)
		}
	}
}

// serveCall runs a server-initiated call against a registered handler
func (c *Client) serveCall(ctx context.Context, conn Conn, msg protocol.Message) {
	c.mu.Lock()
	fn, ok := c.handlers[msg.Command]
	c.mu.Unlock()

	var reply *protocol.Message
	if !ok {
		reply = protocol.NewErrorResponse(msg.ID, protocol.ErrTypeNoServerFunction,
			fmt.Sprintf("no uplink function registered as %q", msg.Command))
	} else {
		result, err := runHandler(ctx, fn, msg.Args, msg.Kwargs)
		if err != nil {
			reply = protocol.NewErrorResponse(msg.ID, protocol.ErrTypeExecution, err.Error())
		} else {
			reply = protocol.NewResponse(msg.ID, result)
		}
	}

	if err := c.write(conn, reply); err != nil {
		c.logger.Warn("uplink_reply_failed", "function", msg.Command, "error", err)
	}
}

func runHandler(ctx context.Context, fn HandlerFunc, args []any, kwargs map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return fn(ctx, args, kwargs)
}
