package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/replydesk/server/internal/auth"
	"github.com/replydesk/server/internal/backend"
	"github.com/replydesk/server/internal/logger"
	"github.com/replydesk/server/internal/middleware"
	"github.com/replydesk/server/internal/model"
	"github.com/replydesk/server/internal/session"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService   *auth.Service
	logger        *slog.Logger
	secureCookies bool
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.Service, logger *slog.Logger, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		logger:        logger,
		secureCookies: secureCookies,
	}
}

// loginRequest is the request body for POST /auth/login
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// devLoginRequest is the request body for POST /auth/dev_login
type devLoginRequest struct {
	Email          string `json:"email"`
	Role           string `json:"role"`
	WhatsAppStatus string `json:"whatsapp_status"`
}

// sessionResponse describes the current session without exposing the token
type sessionResponse struct {
	User      *model.UserProfile `json:"user"`
	Role      string             `json:"role,omitempty"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	key, sess, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.WarnContext(r.Context(), "login failed", "email", logger.MaskEmail(req.Email), "error", err)

		var httpErr *backend.HTTPError
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			respondWithError(w, http.StatusUnauthorized, "invalid email or password")
		case errors.As(err, &httpErr) && httpErr.StatusCode < 500:
			respondWithError(w, http.StatusUnauthorized, httpErr.PublicMessage())
		default:
			respondWithError(w, http.StatusBadGateway, "login service unavailable")
		}
		return
	}

	middleware.SetSessionCookie(w, key, h.secureCookies)
	respondJSON(w, http.StatusOK, h.describe(sess))
}

// HandleDevLogin handles POST /auth/dev_login. It is only routed in DEV_MODE.
func (h *AuthHandler) HandleDevLogin(w http.ResponseWriter, r *http.Request) {
	var req devLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		respondWithError(w, http.StatusBadRequest, "email is required")
		return
	}
	if req.Role == "" {
		req.Role = "business"
	}

	key, sess, err := h.authService.DevLogin(r.Context(), auth.DevLoginParams{
		Email:          req.Email,
		Role:           req.Role,
		WhatsAppStatus: req.WhatsAppStatus,
	})
	if err != nil {
		if errors.Is(err, auth.ErrDevModeDisabled) {
			respondWithError(w, http.StatusNotFound, "not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "dev login failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	middleware.SetSessionCookie(w, key, h.secureCookies)
	respondJSON(w, http.StatusOK, h.describe(sess))
}

// HandleRefresh handles POST /auth/refresh (session required)
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	key, _ := middleware.GetSessionKey(r.Context())

	sess, err := h.authService.Refresh(r.Context(), key)
	if err != nil {
		if errors.Is(err, auth.ErrSessionExpired) {
			middleware.ClearSessionCookie(w, h.secureCookies)
			respondWithError(w, http.StatusUnauthorized, "session expired")
			return
		}
		h.logger.WarnContext(r.Context(), "profile refresh failed", "error", err)
		if backend.IsStatus(err, http.StatusUnauthorized) {
			respondWithError(w, http.StatusUnauthorized, "session rejected by backend")
			return
		}
		respondWithError(w, http.StatusBadGateway, "failed to refresh profile")
		return
	}

	respondJSON(w, http.StatusOK, h.describe(sess))
}

// HandleLogout handles POST /auth/logout. Logging out without a session succeeds.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(session.CookieName); err == nil {
		if err := h.authService.Logout(r.Context(), c.Value); err != nil {
			h.logger.ErrorContext(r.Context(), "logout failed", "error", err)
			respondWithError(w, http.StatusInternalServerError, "failed to clear session")
			return
		}
	}

	middleware.ClearSessionCookie(w, h.secureCookies)
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe handles GET /me (session required)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSession(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	respondJSON(w, http.StatusOK, h.describe(sess))
}

func (h *AuthHandler) describe(sess model.Session) sessionResponse {
	resp := sessionResponse{
		User: sess.Profile,
		Role: auth.ResolveRole(sess.Profile, sess.Token),
	}
	if exp, ok := auth.ExpiresAt(sess.Token); ok {
		resp.ExpiresAt = &exp
	}
	return resp
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}
