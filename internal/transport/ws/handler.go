package ws

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"haikuslam/internal/app"
)

// Handler upgrades authenticated requests to a command channel
type Handler struct {
	service  *app.Service
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new WebSocket handler. When allowAnyOrigin is false the
// upgrader only accepts same-host origins.
func NewHandler(service *app.Service, logger *slog.Logger, allowAnyOrigin bool) *Handler {
	h := &Handler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
	if allowAnyOrigin {
		h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	return h
}

// ServeHTTP handles WebSocket upgrade requests. Browsers cannot set headers on
// a WebSocket handshake, so the token may also come as access_token.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("access_token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}

	user, err := h.service.Authenticate(r.Context(), token)
	if err != nil {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, h.service, user, h.logger)
	h.logger.Info("websocket connected", "playerID", user.ID)

	client.sendConnected()
	client.Run(r.Context())

	h.logger.Info("websocket disconnected", "playerID", user.ID)
}
