package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"uplinkhub/pkg/protocol"
)

const (
	WriteWait      = 10 * time.Second // max time to write a frame to the uplink
	AuthTimeout    = 10 * time.Second // the AUTH frame must arrive within this
	MaxMessageSize = 1024 * 1024      // 1MB max frame size
)

// ErrSessionClosed is returned for calls into an uplink that went away
var ErrSessionClosed = errors.New("uplink session closed")

// CallError is a failure reported by the uplink for a forwarded call
type CallError struct {
	Type    string
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Session is one authenticated uplink connection
type Session struct {
	ID          string
	RemoteAddr  string
	ConnectedAt time.Time
	Limiter     *rate.Limiter // calls from this uplink

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu        sync.Mutex
	pending   map[string]chan *protocol.Message // server -> uplink calls awaiting RESPONSE
	functions map[string]struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// constructor for Session
func NewSession(conn *websocket.Conn, remoteAddr string, limit rate.Limit, burst int) *Session {
	return &Session{
		ID:          uuid.NewString(),
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now().UTC(),
		Limiter:     rate.NewLimiter(limit, burst),
		conn:        conn,
		pending:     make(map[string]chan *protocol.Message),
		functions:   make(map[string]struct{}),
		closed:      make(chan struct{}),
	}
}

// Send writes one frame; safe for concurrent use
func (s *Session) Send(msg *protocol.Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return writeFrame(s.conn, msg)
}

// writeFrame encodes msg as one text frame, bounded by WriteWait
func writeFrame(conn *websocket.Conn, msg *protocol.Message) error {
	data, err := msg.ToJSON()
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(WriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", msg.Type, err)
	}
	return nil
}

// Call runs a function the uplink registered and waits for its RESPONSE
func (s *Session) Call(ctx context.Context, command string, args []any, kwargs map[string]any) (any, error) {
	id := uuid.NewString()
	slot := make(chan *protocol.Message, 1)

	s.mu.Lock()
	select {
	case <-s.closed:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	default:
	}
	s.pending[id] = slot
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if args == nil {
		args = []any{}
	}
	if err := s.Send(protocol.NewCall(id, "", command, args, kwargs)); err != nil {
		return nil, err
	}

	select {
	case resp, ok := <-slot:
		if !ok {
			return nil, ErrSessionClosed
		}
		if resp.Error != nil {
			return nil, &CallError{Type: resp.Error.Type, Message: resp.Error.Message}
		}
		return resp.Response, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// deliver hands a RESPONSE from the uplink to the waiting Call
func (s *Session) deliver(msg *protocol.Message) bool {
	s.mu.Lock()
	slot, ok := s.pending[msg.ID]
	if ok {
		delete(s.pending, msg.ID)
	}
	s.mu.Unlock()
	if ok {
		slot <- msg
	}
	return ok
}

func (s *Session) addFunction(name string) {
	s.mu.Lock()
	s.functions[name] = struct{}{}
	s.mu.Unlock()
}

// Functions returns the names this uplink registered, sorted
func (s *Session) Functions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.functions))
	for name := range s.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Session) record() *SessionRecord {
	return &SessionRecord{
		ID:          s.ID,
		RemoteAddr:  s.RemoteAddr,
		ConnectedAt: s.ConnectedAt,
		Functions:   s.Functions(),
	}
}

// Close drops the socket and fails every call waiting on this uplink
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		close(s.closed)
		for id, slot := range s.pending {
			close(slot)
			delete(s.pending, id)
		}
		s.mu.Unlock()
		s.conn.Close()
	})
}
