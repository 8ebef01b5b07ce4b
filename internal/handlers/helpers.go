package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Ashy-21/TWINK/internal/models"
	"github.com/Ashy-21/TWINK/pkg/logger"
)

// Authenticator resolves a bearer token to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Identity, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// tokenFromRequest reads ?token= first, then an Authorization: Bearer header.
func tokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// identify returns the anonymous identity when no token is presented and an
// error when the presented token is not trusted.
func identify(a Authenticator, r *http.Request) (models.Identity, error) {
	token := tokenFromRequest(r)
	if token == "" {
		return models.Identity{}, nil
	}
	return a.Authenticate(r.Context(), token)
}

// requireUser writes 401 and returns false unless the request carries a valid token.
func requireUser(a Authenticator, w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	id, err := identify(a, r)
	if err != nil || !id.Authenticated() {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return models.Identity{}, false
	}
	return id, true
}
