package wsenv

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	urlobserver "github.com/vango-dev/urlobserver"
	"github.com/vango-dev/urlobserver/internal/errors"
	"github.com/vango-dev/urlobserver/pkg/protocol"
)

// Factory builds the observer for a new connection. It must not call
// Observe; the handler does that once the read loop is ready.
type Factory func(c *Conn) *urlobserver.Observer

// Hooks observe the connection lifecycle.
type Hooks struct {
	OnOpen  func(c *Conn)
	OnClose func(c *Conn, entries int)
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithAllowedOrigins restricts the Origin header of upgrade requests. An
// empty list keeps gorilla's same-host check. "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		if len(origins) == 0 {
			h.upgrader.CheckOrigin = nil
			return
		}
		allowed := make(map[string]bool, len(origins))
		for _, o := range origins {
			allowed[strings.ToLower(strings.TrimSuffix(o, "/"))] = true
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			if allowed["*"] {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
		}
	}
}

// WithHandshakeTimeout overrides protocol.HandshakeTimeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.handshakeTimeout = d
		}
	}
}

// WithHooks sets lifecycle hooks.
func WithHooks(hooks Hooks) Option {
	return func(h *Handler) {
		h.hooks = hooks
	}
}

// Handler upgrades HTTP requests to WebSocket connections and runs one
// observer per connection.
type Handler struct {
	upgrader         websocket.Upgrader
	factory          Factory
	routes           func() []*regexp.Regexp
	logger           *slog.Logger
	handshakeTimeout time.Duration
	hooks            Hooks
}

// NewHandler returns a handler that builds observers with factory and
// observes the patterns returned by routes at connect time.
func NewHandler(factory Factory, routes func() []*regexp.Regexp, opts ...Option) *Handler {
	h := &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		factory:          factory,
		routes:           routes,
		logger:           slog.Default(),
		handshakeTimeout: protocol.HandshakeTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler. It blocks until the socket closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	ws.SetReadLimit(protocol.MaxFrameSize)
	ws.SetReadDeadline(time.Now().Add(h.handshakeTimeout))

	hello, err := h.readHello(ws)
	if err != nil {
		h.reject(ws, err)
		return
	}
	ws.SetReadDeadline(time.Time{})

	conn, err := newConn(uuid.NewString(), ws, hello, h.logger)
	if err != nil {
		h.reject(ws, err)
		return
	}
	defer conn.close()

	if h.hooks.OnOpen != nil {
		h.hooks.OnOpen(conn)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	obs := h.factory(conn)
	defer func() {
		entries := obs.EntryList().Len()
		obs.Disconnect()
		if h.hooks.OnClose != nil {
			h.hooks.OnClose(conn, entries)
		}
		conn.logger.Debug("connection closed", "entries", entries)
	}()

	var patterns []*regexp.Regexp
	if h.routes != nil {
		patterns = h.routes()
	}
	if err := obs.Observe(ctx, patterns); err != nil {
		conn.logger.Warn("initial navigation failed", "error", err)
	}
	conn.logger.Debug("connection open", "href", hello.Href)

	conn.readLoop(ctx)
}

func (h *Handler) readHello(ws *websocket.Conn) (protocol.Hello, error) {
	_, msg, err := ws.ReadMessage()
	if err != nil {
		return protocol.Hello{}, errors.New("E302").Wrap(err)
	}
	frame, err := protocol.Decode(msg)
	if err != nil {
		return protocol.Hello{}, err
	}
	if frame.Type != protocol.FrameHello {
		return protocol.Hello{}, errors.New("E302").WithDetail("got %s frame", frame.Type)
	}
	var hello protocol.Hello
	if err := frame.Into(&hello); err != nil {
		return protocol.Hello{}, err
	}
	return hello, nil
}

func (h *Handler) reject(ws *websocket.Conn, err error) {
	h.logger.Warn("handshake rejected", "error", err)
	if msg, encErr := protocol.Encode(protocol.FrameError, protocol.ErrorFrame(err, true)); encErr == nil {
		ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		ws.WriteMessage(websocket.TextMessage, msg)
	}
	ws.Close()
}
