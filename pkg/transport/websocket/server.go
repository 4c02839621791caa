package websocket

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/astralfield/realtime/internal/logging"
	"github.com/astralfield/realtime/pkg/hub"
)

// ServerOptions represents websocket server options
type ServerOptions struct {
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
	Session         SessionOptions
}

// ServerOption is a function that configures ServerOptions
type ServerOption func(*ServerOptions)

// WithCheckOrigin sets the check origin function
func WithCheckOrigin(checkOrigin func(r *http.Request) bool) ServerOption {
	return func(o *ServerOptions) {
		o.CheckOrigin = checkOrigin
	}
}

// WithSessionOptions sets the per-connection transport options
func WithSessionOptions(opts SessionOptions) ServerOption {
	return func(o *ServerOptions) {
		o.Session = opts
	}
}

// Server upgrades HTTP requests and hands authenticated connections to
// the hub gateway.
type Server struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
	logger   *logging.Logger
	options  ServerOptions
}

// NewServer creates a new WebSocket server
func NewServer(h *hub.Hub, logger *logging.Logger, opts ...ServerOption) *Server {
	options := ServerOptions{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // Allow all origins by default (configure for production)
		},
		Session: DefaultSessionOptions(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  options.ReadBufferSize,
			WriteBufferSize: options.WriteBufferSize,
			CheckOrigin:     options.CheckOrigin,
		},
		hub:     h,
		logger:  logger,
		options: options,
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := extractToken(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade error",
			"error", err,
			"remote_addr", r.RemoteAddr,
		)
		return
	}

	client, err := s.hub.Accept(r.Context(), token)
	if err != nil {
		s.logger.Warn("handshake rejected",
			"error", err,
			"remote_addr", r.RemoteAddr,
		)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed"))
		conn.Close()
		return
	}

	session := NewSession(conn, client, s.hub, s.logger, s.options.Session)
	session.Start()

	s.logger.Info("client connected",
		"conn_id", client.ID(),
		"remote_addr", r.RemoteAddr,
	)

	session.Wait()

	s.logger.Info("client disconnected", "conn_id", client.ID())
}

// extractToken pulls the bearer token from the query string or the
// Authorization header.
func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}
