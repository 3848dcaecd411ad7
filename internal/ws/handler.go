package ws

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/tasklane/convo/internal/metrics"
	"github.com/tasklane/convo/internal/models"
)

// TokenResolver resolves a handshake bearer token to its identity. The
// store implements it.
type TokenResolver interface {
	GetUserByToken(ctx context.Context, token string) (*models.User, error)
}

// Handler upgrades HTTP requests to websocket connections. The credential
// is verified before the upgrade completes: a missing or unknown token
// refuses the handshake, and that failure is terminal for the attempt
// without touching the user's other connections.
type Handler struct {
	hub            *Hub
	tokens         TokenResolver
	auth           Authorizer
	originPatterns []string
	log            zerolog.Logger
}

// NewHandler creates the websocket endpoint handler.
func NewHandler(hub *Hub, tokens TokenResolver, auth Authorizer, originPatterns []string, log zerolog.Logger) *Handler {
	return &Handler{
		hub:            hub,
		tokens:         tokens,
		auth:           auth,
		originPatterns: originPatterns,
		log:            log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		metrics.HandshakesRejected.Inc()
		http.Error(w, "missing credentials", http.StatusUnauthorized)
		return
	}

	user, err := h.tokens.GetUserByToken(r.Context(), token)
	if err != nil {
		h.log.Error().Err(err).Msg("token lookup failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		metrics.HandshakesRejected.Inc()
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket accept failed")
		return
	}

	c := newConn(*user, sock, h.hub, h.auth, h.log)
	metrics.ConnectionsActive.Inc()
	h.log.Info().Stringer("user_id", user.ID).Msg("connection opened")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.writeLoop(ctx)

	err = c.readLoop(ctx)

	h.hub.Drop(c)
	metrics.ConnectionsActive.Dec()
	sock.Close(websocket.StatusNormalClosure, "")

	if err != nil && !isExpectedClose(err) {
		h.log.Debug().Err(err).Stringer("user_id", user.ID).Msg("connection closed")
	} else {
		h.log.Info().Stringer("user_id", user.ID).Msg("connection closed")
	}
}

// bearerToken extracts the handshake credential: Authorization header
// first, "token" query parameter as the browser fallback (the header is
// not settable from the browser websocket API).
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer ")
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
