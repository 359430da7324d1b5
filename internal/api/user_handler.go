package api

import (
	"log/slog"
	"net/http"

	"github.com/stackmesh/commerce-api/internal/api/shared"
	"github.com/stackmesh/commerce-api/internal/service"
	"github.com/stackmesh/commerce-api/internal/store"
)

// UserHandler serves the user management endpoints.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users *service.UserService, log *slog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: log.With(slog.String("handler", "user")),
	}
}

// Me handles GET /users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		shared.RespondWithError(w, http.StatusUnauthorized,
			service.CodeUnauthorized, "authentication required", nil)
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusOK, "", NewUserResponse(user))
}

// Get handles GET /users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusOK, "", NewUserResponse(user))
}

// List handles GET /users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOptions(r)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	result, err := h.users.List(r.Context(), opts)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithPage(w, "", NewUserResponses(result.Items), pageMeta(result))
}

// Update handles PATCH /users/{id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	var req UpdateUserRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithError(w, http.StatusBadRequest, service.CodeValidation, err.Error(), nil)
		return
	}
	if err := validateRequest(req); err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	user, err := h.users.Update(r.Context(), store.UserPatch{
		ID:       id,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
		IsActive: req.IsActive,
	})
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusOK, "user updated", NewUserResponse(user))
}

// Delete handles DELETE /users/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusOK, "user deleted", nil)
}
