package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Ashy-21/TWINK/internal/models"
	"github.com/Ashy-21/TWINK/internal/services"
	"github.com/Ashy-21/TWINK/pkg/logger"
)

type MessageHandlers struct {
	messageService *services.MessageService
	auth           Authenticator
}

func NewMessageHandlers(messageService *services.MessageService, auth Authenticator) *MessageHandlers {
	return &MessageHandlers{
		messageService: messageService,
		auth:           auth,
	}
}

// SendMessage is the fallback for clients without a live socket. The message is
// stored but not relayed to the room.
func (h *MessageHandlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	sender, ok := requireUser(h.auth, w, r)
	if !ok {
		return
	}

	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	saved, err := h.messageService.Send(r.Context(), sender, &req)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			writeError(w, http.StatusBadRequest, "missing room or message")
			return
		}
		logger.Error("Error saving message to room %s: %v", req.Room, err)
		writeError(w, http.StatusInternalServerError, "could not save message")
		return
	}

	writeJSON(w, http.StatusOK, models.SendMessageResponse{OK: true, Message: saved.Saved()})
}

// Messages returns stored history to a caller who may read the room.
func (h *MessageHandlers) Messages(w http.ResponseWriter, r *http.Request) {
	reader, ok := requireUser(h.auth, w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	messages, err := h.messageService.History(r.Context(), reader, r.URL.Query().Get("room"), limit)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			writeError(w, http.StatusBadRequest, "missing room")
			return
		case errors.Is(err, services.ErrUnauthenticated):
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		case errors.Is(err, services.ErrForbidden):
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		logger.Error("History error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}
