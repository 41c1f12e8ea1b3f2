package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/paventhan183/dr-appointment/libs/auth"
	"github.com/paventhan183/dr-appointment/libs/httpx"
)

type AuthHandler struct {
	issuer *auth.Issuer
	logger *slog.Logger
}

func NewAuthHandler(issuer *auth.Issuer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{issuer: issuer, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, err := h.issuer.Login(strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("token signing failed", "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loginResponse{Token: token})
}

// publicRoute reports the /api routes reachable without a token.
func publicRoute(r *http.Request) bool {
	path := r.URL.Path
	switch {
	case path == "/api/auth/login", path == "/api/keepwake":
		return true
	case strings.HasPrefix(path, "/api/bill-details/"):
		return true
	}
	return !strings.HasPrefix(path, "/api/")
}
