package handlers

import (
	"net/http"

	ws "github.com/Ashy-21/TWINK/internal/websocket"
)

type HealthHandlers struct {
	engine *ws.Engine
}

func NewHealthHandlers(engine *ws.Engine) *HealthHandlers {
	return &HealthHandlers{engine: engine}
}

func (h *HealthHandlers) WSTest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ws-test OK"))
}

func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": h.engine.Sessions(),
		"topics":   h.engine.Hub().Topics(),
	})
}
