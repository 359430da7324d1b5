package api

import (
	"log/slog"
	"net/http"

	"github.com/stackmesh/commerce-api/internal/api/shared"
	"github.com/stackmesh/commerce-api/internal/service"
)

// AuthHandler serves the authentication endpoints.
type AuthHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(users *service.UserService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		logger: log.With(slog.String("handler", "auth")),
	}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithError(w, http.StatusBadRequest, service.CodeValidation, err.Error(), nil)
		return
	}
	if err := validateRequest(req); err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	user, err := h.users.Register(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	shared.RespondWithJSON(w, http.StatusCreated, "user registered", NewUserResponse(user))
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithError(w, http.StatusBadRequest, service.CodeValidation, err.Error(), nil)
		return
	}
	if err := validateRequest(req); err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	_, pair, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	shared.RespondWithJSON(w, http.StatusOK, "login successful", TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
	})
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithError(w, http.StatusBadRequest, service.CodeValidation, err.Error(), nil)
		return
	}
	if err := validateRequest(req); err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	pair, err := h.users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	shared.RespondWithJSON(w, http.StatusOK, "token refreshed", TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
	})
}
