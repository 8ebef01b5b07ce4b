package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Ashy-21/TWINK/internal/config"
	"github.com/Ashy-21/TWINK/internal/models"
	"github.com/Ashy-21/TWINK/internal/services"
	ws "github.com/Ashy-21/TWINK/internal/websocket"
	"github.com/Ashy-21/TWINK/pkg/logger"

	"github.com/gorilla/websocket"
)

const defaultRoom = "general"

type WebSocketHandlers struct {
	auth           Authenticator
	messageService *services.MessageService
	engine         *ws.Engine
	relay          config.RelayConfig
	upgrader       websocket.Upgrader
}

func NewWebSocketHandlers(auth Authenticator, messageService *services.MessageService, engine *ws.Engine, cfg *config.Config) *WebSocketHandlers {
	return &WebSocketHandlers{
		auth:           auth,
		messageService: messageService,
		engine:         engine,
		relay:          cfg.Relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.Server.AllowedOrigins),
		},
	}
}

// originChecker allows requests without an Origin header (non-browser clients)
// and any origin when the list contains "*".
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[strings.TrimRight(origin, "/")]
	}
}

// roomFromRequest reads the room from /ws/chat/{room}/ or ?room=.
func roomFromRequest(r *http.Request) string {
	if room := strings.TrimSpace(r.PathValue("room")); room != "" {
		return room
	}
	if room := strings.TrimSpace(r.URL.Query().Get("room")); room != "" {
		return room
	}
	return defaultRoom
}

func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// A missing token is an anonymous visitor; a bad one is refused.
	identity, err := identify(h.auth, r)
	if err != nil {
		logger.Warn("Rejected websocket from %s: %v", r.RemoteAddr, err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	room := roomFromRequest(r)
	history := h.history(r, identity, room)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	client := ws.NewClient(h.engine, conn, h.relay.SendBuffer, h.relay.MaxMessageSize)
	if err := client.Start(room, identity, history); err != nil {
		logger.Error("Error starting client for room %s: %v", room, err)
	}
}

// history loads the replay for a new connection. Readers who may not see the
// room's stored messages still join, they just start without a replay.
func (h *WebSocketHandlers) history(r *http.Request, identity models.Identity, room string) []*models.Message {
	if h.relay.HistoryOnConnect <= 0 || !identity.Authenticated() {
		return nil
	}
	messages, err := h.messageService.History(r.Context(), identity, room, h.relay.HistoryOnConnect)
	if errors.Is(err, services.ErrForbidden) {
		logger.Debug("No history replay for %s in room %s", identity.Username, room)
		return nil
	}
	if err != nil {
		logger.Error("Error loading history for room %s: %v", room, err)
		return nil
	}
	return messages
}
