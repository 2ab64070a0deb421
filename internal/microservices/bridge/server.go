package bridge

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"uplinkhub/internal/middleware/auth"
	"uplinkhub/pkg/protocol"
)

const UplinkPath = "/_/uplink"

type Options struct {
	Addr      string
	Keys      *KeyAuthenticator
	Tickets   *TicketService
	Registry  *Registry    // nil = empty registry
	Store     SessionStore // nil = in-memory
	Logger    *slog.Logger
	CallRate  rate.Limit // per session; 0 = 10/s
	CallBurst int        // 0 = 20
	// how often a live session gets a fresh ticket and presence entry; 0 = a third of the ticket TTL
	RefreshInterval time.Duration
}

// Server is the hosted-backend side of the uplink bridge
type Server struct {
	Addr string

	hub      *Hub
	registry *Registry
	keys     *KeyAuthenticator
	tickets  *TicketService
	store    SessionStore
	logger   *slog.Logger

	callRate     rate.Limit
	callBurst    int
	refreshEvery time.Duration

	upgrader   websocket.Upgrader
	engine     *gin.Engine
	httpServer *http.Server
}

// constructor for Server
func NewServer(opts Options) *Server {
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	store := opts.Store
	if store == nil {
		store = NewMemorySessionStore()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	callRate, callBurst := opts.CallRate, opts.CallBurst
	if callRate == 0 {
		callRate = rate.Limit(10)
	}
	if callBurst == 0 {
		callBurst = 20
	}
	refreshEvery := opts.RefreshInterval
	if refreshEvery <= 0 && opts.Tickets != nil {
		refreshEvery = opts.Tickets.TTL() / 3
	}
	if refreshEvery <= 0 {
		refreshEvery = time.Minute
	}

	s := &Server{
		Addr:      opts.Addr,
		hub:       NewHub(registry, store, logger),
		registry:  registry,
		keys:      opts.Keys,
		tickets:   opts.Tickets,
		store:     store,
		logger:    logger,
		callRate:     callRate,
		callBurst:    callBurst,
		refreshEvery: refreshEvery,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// uplinks are processes, not browsers
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.engine = s.routes()
	s.httpServer = &http.Server{
		Addr:              s.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))

	r.GET("/healthz", s.handleHealth)
	r.GET(UplinkPath, s.handleUplink)
	r.GET(UplinkPath+"/sessions", auth.RequireTicket(s.tickets), s.handleSessions)
	return r
}

// Handler exposes the routes, httptest servers mount this directly
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// Start listens on Addr until Stop is called
func (s *Server) Start() error {
	s.logger.Info("uplink_bridge_started", "addr", s.Addr, "callables", s.registry.Names())
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes every uplink session, then the HTTP listener.
// Safe to call when Start never ran (httptest mounts Handler instead).
func (s *Server) Stop(ctx context.Context) error {
	s.hub.CloseAll()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"sessions":         s.hub.SessionCount(),
		"callables":        s.registry.Names(),
		"uplink_functions": s.hub.Functions(),
	})
}

func (s *Server) handleSessions(c *gin.Context) {
	sessions, err := s.store.List(c.Request.Context())
	if err != nil {
		s.logger.Error("session_store_list_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// handleUplink upgrades to WebSocket and runs the session until it ends
func (s *Server) handleUplink(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already answered with an HTTP error
		s.logger.Warn("uplink_upgrade_failed", "remote_addr", c.Request.RemoteAddr, "error", err)
		return
	}
	s.serve(conn, c.Request.RemoteAddr)
}

func (s *Server) serve(conn *websocket.Conn, remoteAddr string) {
	defer conn.Close()
	conn.SetReadLimit(MaxMessageSize)

	session, ok := s.authenticate(conn, remoteAddr)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.hub.Add(ctx, session)
	defer s.hub.Remove(context.Background(), session)

	ticket, err := s.tickets.Issue(session.ID)
	if err != nil {
		s.logger.Error("ticket_issue_failed", "session_id", session.ID, "error", err)
		return
	}
	if err := session.Send(&protocol.Message{
		Type:      protocol.TypeAuthOK,
		SessionID: session.ID,
		Ticket:    ticket,
	}); err != nil {
		s.logger.Warn("uplink_auth_reply_failed", "session_id", session.ID, "error", err)
		return
	}

	renewed := make(chan struct{})
	go func() {
		defer close(renewed)
		s.keepAlive(ctx, session)
	}()

	s.listen(ctx, session)

	// stop renewing before Remove so presence is not saved again afterwards
	cancel()
	<-renewed
}

// keepAlive hands the uplink a fresh ticket and refreshes its presence entry
// until ctx is done, so a session outlives the ticket TTL
func (s *Server) keepAlive(ctx context.Context, session *Session) {
	ticker := time.NewTicker(s.refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		ticket, err := s.tickets.Issue(session.ID)
		if err != nil {
			s.logger.Error("ticket_issue_failed", "session_id", session.ID, "error", err)
			continue
		}
		if err := session.Send(&protocol.Message{
			Type:      protocol.TypeTicket,
			SessionID: session.ID,
			Ticket:    ticket,
		}); err != nil {
			s.logger.Debug("ticket_renewal_failed", "session_id", session.ID, "error", err)
			return
		}
		s.hub.Touch(ctx, session)
	}
}

// authenticate reads the AUTH frame and answers AUTH_FAILED on any problem
func (s *Server) authenticate(conn *websocket.Conn, remoteAddr string) (*Session, bool) {
	conn.SetReadDeadline(time.Now().Add(AuthTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		s.logger.Warn("uplink_auth_read_failed", "remote_addr", remoteAddr, "error", err)
		return nil, false
	}
	conn.SetReadDeadline(time.Time{})

	reject := func(reason string) (*Session, bool) {
		s.logger.Warn("uplink_auth_failed", "remote_addr", remoteAddr, "reason", reason)
		writeFrame(conn, &protocol.Message{
			Type:  protocol.TypeAuthFailed,
			Error: &protocol.Error{Type: protocol.ErrTypeAuthentication, Message: reason},
		})
		return nil, false
	}

	hello, err := protocol.MessageFromJSON(data)
	if err != nil {
		return reject("malformed AUTH frame")
	}

	switch {
	case hello.Type != protocol.TypeAuth:
		return reject("expected AUTH, got " + string(hello.Type))
	case hello.Version != protocol.Version:
		return reject("unsupported protocol version")
	case hello.Key == "" || !s.keys.Verify(hello.Key):
		return reject("invalid uplink key")
	}

	return NewSession(conn, remoteAddr, s.callRate, s.callBurst), true
}

// listen is the only reader of the session socket
func (s *Server) listen(ctx context.Context, session *Session) {
	for {
		_, data, err := session.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("uplink_read_error", "session_id", session.ID, "error", err)
			}
			return
		}
		msg, err := protocol.MessageFromJSON(data)
		if err != nil {
			s.logger.Warn("uplink_bad_frame", "session_id", session.ID, "error", err)
			continue
		}

		switch msg.Type {
		case protocol.TypeCall:
			s.handleCall(ctx, session, *msg)
		case protocol.TypeResponse:
			if !session.deliver(msg) {
				s.logger.Warn("uplink_orphan_response", "session_id", session.ID, "call_id", msg.ID)
			}
		case protocol.TypeRegister:
			reply := &protocol.Message{Type: protocol.TypeRegistered, Command: msg.Command}
			if err := s.hub.RegisterFunction(ctx, session, msg.Command); err != nil {
				reply.Error = &protocol.Error{Type: protocol.ErrTypeInvalidRequest, Message: err.Error()}
			}
			if err := session.Send(reply); err != nil {
				s.logger.Warn("uplink_send_failed", "session_id", session.ID, "error", err)
			}
		case protocol.TypeBye:
			s.logger.Info("uplink_said_bye", "session_id", session.ID)
			return
		default:
			s.logger.Warn("uplink_unexpected_message", "session_id", session.ID, "type", msg.Type)
		}
	}
}

func (s *Server) handleCall(ctx context.Context, session *Session, msg protocol.Message) {
	reply := func(m *protocol.Message) {
		if err := session.Send(m); err != nil {
			s.logger.Warn("uplink_send_failed", "session_id", session.ID, "error", err)
		}
	}

	if sid, err := s.tickets.Validate(msg.Ticket); err != nil || sid != session.ID {
		s.logger.Warn("uplink_ticket_rejected", "session_id", session.ID, "error", err)
		reply(protocol.NewErrorResponse(msg.ID, protocol.ErrTypeAuthentication, "invalid or expired session ticket"))
		return
	}
	if msg.Command == "" {
		reply(protocol.NewErrorResponse(msg.ID, protocol.ErrTypeInvalidRequest, "missing command"))
		return
	}
	if !session.Limiter.Allow() {
		s.logger.Warn("rate_limit_exceeded", "session_id", session.ID)
		reply(protocol.NewErrorResponse(msg.ID, protocol.ErrTypeRateLimit, "Rate limit exceeded"))
		return
	}

	// calls may wait on another uplink, keep reading meanwhile
	go func() {
		reply(s.hub.Dispatch(ctx, session, &msg))
	}()
}

// requestLogger logs plain HTTP requests with slog, the upgrade route logs itself
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.FullPath() == UplinkPath {
			return
		}
		logger.Info("http_request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
