package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Ashy-21/TWINK/internal/models"
	"github.com/Ashy-21/TWINK/internal/services"
	ws "github.com/Ashy-21/TWINK/internal/websocket"
	"github.com/Ashy-21/TWINK/pkg/logger"
)

type RoomHandlers struct {
	roomService *services.RoomService
	auth        Authenticator
	presence    *ws.PresenceTracker
}

func NewRoomHandlers(roomService *services.RoomService, auth Authenticator, presence *ws.PresenceTracker) *RoomHandlers {
	return &RoomHandlers{
		roomService: roomService,
		auth:        auth,
		presence:    presence,
	}
}

func (h *RoomHandlers) PersonalRoom(w http.ResponseWriter, r *http.Request) {
	me, ok := requireUser(h.auth, w, r)
	if !ok {
		return
	}

	room, err := h.roomService.PersonalRoom(r.Context(), me, r.URL.Query().Get("username"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			writeError(w, http.StatusBadRequest, "missing username")
		case errors.Is(err, services.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			logger.Error("Personal room error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, room)
}

func (h *RoomHandlers) CreateGroup(w http.ResponseWriter, r *http.Request) {
	me, ok := requireUser(h.auth, w, r)
	if !ok {
		return
	}

	var req models.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	group, err := h.roomService.CreateGroup(r.Context(), me, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrUserNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			logger.Error("Create group error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, group)
}

func (h *RoomHandlers) ListGroups(w http.ResponseWriter, r *http.Request) {
	me, ok := requireUser(h.auth, w, r)
	if !ok {
		return
	}

	groups, err := h.roomService.ListGroups(r.Context(), me)
	if err != nil {
		logger.Error("List groups error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"groups": groups})
}

func (h *RoomHandlers) SearchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.roomService.SearchUsers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		logger.Error("Search users error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"results": users})
}

func (h *RoomHandlers) UsernameCheck(w http.ResponseWriter, r *http.Request) {
	exists, err := h.roomService.UsernameExists(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		logger.Error("Username check error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

// Presence lists online users, or reports one user with ?username=.
func (h *RoomHandlers) Presence(w http.ResponseWriter, r *http.Request) {
	if username := r.URL.Query().Get("username"); username != "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"username": username,
			"online":   h.presence.IsOnline(username),
		})
		return
	}

	online := h.presence.Online()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"online": online,
		"count":  len(online),
	})
}
