// Package gateway is the WebSocket side of the chat: it authenticates a
// connection once, then relays each sendMessage turn through the
// conversation store and the completion bridge back to that connection.
package gateway

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dmitrijs2005/healthchat/internal/logging"
	"github.com/dmitrijs2005/healthchat/internal/server/auth"
	"github.com/dmitrijs2005/healthchat/internal/server/completion"
	"github.com/dmitrijs2005/healthchat/internal/server/contextcache"
	"github.com/dmitrijs2005/healthchat/internal/server/metrics"
	"github.com/dmitrijs2005/healthchat/internal/server/models"
)

// Verifier resolves a bearer token to a user.
type Verifier interface {
	Verify(ctx context.Context, token string) (*models.User, error)
}

type Options struct {
	// AllowedOrigins limits the Origin header; "*" or empty allows any.
	AllowedOrigins []string
	WriteWait      time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
	// QueueSize bounds the requests waiting behind the in-flight turn.
	QueueSize      int
	MaxMessageSize int64
	PersistTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		AllowedOrigins: []string{"*"},
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingInterval:   54 * time.Second,
		QueueSize:      16,
		MaxMessageSize: 64 << 10,
		PersistTimeout: 10 * time.Second,
	}
}

type Gateway struct {
	verifier Verifier
	turns    *turnRunner
	upgrader websocket.Upgrader
	opts     Options
	logger   logging.Logger
}

func New(v Verifier, store ConversationStore, cache contextcache.Cache, bridge completion.Streamer, logger logging.Logger, opts Options) *Gateway {
	logger = logger.With("module", "gateway")
	g := &Gateway{
		verifier: v,
		turns: &turnRunner{
			store:          store,
			cache:          cache,
			bridge:         bridge,
			logger:         logger,
			persistTimeout: opts.PersistTimeout,
		},
		opts:   opts,
		logger: logger,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(g.opts.AllowedOrigins) == 0 || slices.Contains(g.opts.AllowedOrigins, "*") {
		return true
	}
	return slices.ContainsFunc(g.opts.AllowedOrigins, func(o string) bool { return strings.EqualFold(o, origin) })
}

// handshakeToken reads the credential from the Authorization header or,
// for browsers, the token query parameter.
func handshakeToken(r *http.Request) string {
	if tok := auth.BearerToken(r.Header.Get("Authorization")); tok != "" {
		return tok
	}
	return r.URL.Query().Get("token")
}

// ServeHTTP upgrades the request and runs the session until the client
// disconnects or the server shuts down.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		g.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	sessionID := uuid.NewString()
	log := g.logger.With("session_id", sessionID, "remote_addr", r.RemoteAddr)

	user, err := g.verifier.Verify(r.Context(), handshakeToken(r))
	if err != nil {
		metrics.AuthFailures.Inc()
		log.Info(r.Context(), "connection rejected", "error", err)
		g.reject(conn)
		return
	}

	s := newSession(sessionID, user, conn, g.turns, g.opts, log.With("user_id", user.ID))
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	s.logger.Info(r.Context(), "client connected", "email", user.Email)
	s.run(r.Context())
	s.logger.Info(r.Context(), "client disconnected")
}

func (g *Gateway) reject(conn *websocket.Conn) {
	defer conn.Close()
	deadline := time.Now().Add(g.opts.WriteWait)
	if msg, err := encodeEvent(EventError, UnauthorizedText); err == nil {
		_ = conn.SetWriteDeadline(deadline)
		_ = conn.WriteMessage(websocket.TextMessage, msg)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, UnauthorizedText), deadline)
}
