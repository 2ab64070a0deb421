package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"uplinkhub/pkg/protocol"
)

// Hub tracks live uplink sessions and routes calls between them
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session // key: session ID
	owners   map[string]*Session // uplink function name -> session serving it

	registry       *Registry
	store          SessionStore
	logger         *slog.Logger
	forwardTimeout time.Duration
}

// constructor for Hub
func NewHub(registry *Registry, store SessionStore, logger *slog.Logger) *Hub {
	if store == nil {
		store = NewMemorySessionStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		sessions:       make(map[string]*Session),
		owners:         make(map[string]*Session),
		registry:       registry,
		store:          store,
		logger:         logger,
		forwardTimeout: 30 * time.Second,
	}
}

func (h *Hub) Add(ctx context.Context, s *Session) {
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()

	if err := h.store.Save(ctx, s.record()); err != nil {
		h.logger.Warn("session_store_save_failed", "session_id", s.ID, "error", err)
	}
	h.logger.Info("uplink_session_added", "session_id", s.ID, "remote_addr", s.RemoteAddr)
}

// Remove unregisters a session, its functions, and closes it
func (h *Hub) Remove(ctx context.Context, s *Session) {
	h.mu.Lock()
	delete(h.sessions, s.ID)
	for name, owner := range h.owners {
		if owner == s {
			delete(h.owners, name)
		}
	}
	h.mu.Unlock()

	s.Close()
	if err := h.store.Delete(ctx, s.ID); err != nil {
		h.logger.Warn("session_store_delete_failed", "session_id", s.ID, "error", err)
	}
	h.logger.Info("uplink_session_removed", "session_id", s.ID)
}

// Touch saves the presence entry of a live session again, which also refreshes its expiry
func (h *Hub) Touch(ctx context.Context, s *Session) {
	h.mu.RLock()
	_, live := h.sessions[s.ID]
	h.mu.RUnlock()
	if !live {
		return
	}
	if err := h.store.Save(ctx, s.record()); err != nil {
		h.logger.Warn("session_store_save_failed", "session_id", s.ID, "error", err)
	}
}

// RegisterFunction makes name callable on s. Server callables can't be shadowed.
func (h *Hub) RegisterFunction(ctx context.Context, s *Session, name string) error {
	if name == "" {
		return errors.New("function name is empty")
	}
	if _, taken := h.registry.Lookup(name); taken {
		return fmt.Errorf("%q is a server function", name)
	}

	h.mu.Lock()
	if _, live := h.sessions[s.ID]; !live {
		h.mu.Unlock()
		return ErrSessionClosed
	}
	previous := h.owners[name]
	h.owners[name] = s
	h.mu.Unlock()

	s.addFunction(name)
	if previous != nil && previous != s {
		h.logger.Info("uplink_function_reassigned", "function", name, "from", previous.ID, "to", s.ID)
	}
	if err := h.store.Save(ctx, s.record()); err != nil {
		h.logger.Warn("session_store_save_failed", "session_id", s.ID, "error", err)
	}
	h.logger.Info("uplink_function_registered", "function", name, "session_id", s.ID)
	return nil
}

func (h *Hub) owner(name string) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.owners[name]
}

// Dispatch answers a CALL: server callables first, then uplink functions
func (h *Hub) Dispatch(ctx context.Context, caller *Session, msg *protocol.Message) *protocol.Message {
	start := time.Now()

	if fn, ok := h.registry.Lookup(msg.Command); ok {
		result, err := invoke(ctx, fn, msg.Args, msg.Kwargs)
		if err != nil {
			h.logger.Warn("server_callable_failed", "function", msg.Command, "session_id", caller.ID, "error", err)
			return protocol.NewErrorResponse(msg.ID, protocol.ErrTypeExecution, err.Error())
		}
		h.logger.Info("server_callable_served",
			"function", msg.Command,
			"session_id", caller.ID,
			"duration", time.Since(start),
		)
		return protocol.NewResponse(msg.ID, result)
	}

	if target := h.owner(msg.Command); target != nil {
		fctx, cancel := context.WithTimeout(ctx, h.forwardTimeout)
		defer cancel()
		result, err := target.Call(fctx, msg.Command, msg.Args, msg.Kwargs)
		if err != nil {
			return h.forwardError(msg, caller, target, err)
		}
		h.logger.Info("uplink_call_forwarded",
			"function", msg.Command,
			"from", caller.ID,
			"to", target.ID,
			"duration", time.Since(start),
		)
		return protocol.NewResponse(msg.ID, result)
	}

	h.logger.Warn("unknown_function_called", "function", msg.Command, "session_id", caller.ID)
	return protocol.NewErrorResponse(msg.ID, protocol.ErrTypeNoServerFunction,
		fmt.Sprintf("No server function matching %q has been registered", msg.Command))
}

func (h *Hub) forwardError(msg *protocol.Message, caller, target *Session, err error) *protocol.Message {
	h.logger.Warn("uplink_call_forward_failed",
		"function", msg.Command,
		"from", caller.ID,
		"to", target.ID,
		"error", err,
	)
	var callErr *CallError
	if errors.As(err, &callErr) {
		return protocol.NewErrorResponse(msg.ID, callErr.Type, callErr.Message)
	}
	return protocol.NewErrorResponse(msg.ID, protocol.ErrTypeExecution, err.Error())
}

// CallUplink lets the server call a function some uplink registered
func (h *Hub) CallUplink(ctx context.Context, name string, args ...any) (any, error) {
	target := h.owner(name)
	if target == nil {
		return nil, fmt.Errorf("no uplink serves %q", name)
	}
	return target.Call(ctx, name, args, nil)
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Functions returns the uplink-served function names, sorted
func (h *Hub) Functions() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.owners))
	for name := range h.owners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CloseAll closes every session; their listen loops do the removal
func (h *Hub) CloseAll() {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		s.Close()
		h.logger.Info("uplink_session_closed", "session_id", s.ID)
	}
}
