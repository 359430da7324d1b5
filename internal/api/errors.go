// Package api implements the HTTP handlers and routing for the REST API.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/stackmesh/commerce-api/internal/api/shared"
	"github.com/stackmesh/commerce-api/internal/service"
	"github.com/stackmesh/commerce-api/internal/store"
	"github.com/stackmesh/commerce-api/internal/task"
)

// storeErrToService lifts raw store errors into the service taxonomy for
// handlers that talk to the task dispatcher directly.
func storeErrToService(err error) error {
	if _, ok := service.AsServiceError(err); ok {
		return err
	}
	if store.IsNotFoundError(err) {
		return service.NewNotFoundError("task", err)
	}
	return err
}

// RespondWithServiceError maps a service-layer error onto an HTTP status
// and writes the error envelope. Unknown errors are logged and returned
// as an opaque 500 so internals never leak to clients.
func RespondWithServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	if svcErr, ok := service.AsServiceError(err); ok {
		status := statusForCode(svcErr.Code)
		if status == http.StatusInternalServerError {
			log.Error("request failed", "error", err)
		}
		shared.RespondWithError(w, status, svcErr.Code, svcErr.Message, svcErr.Fields)
		return
	}

	if errors.Is(err, task.ErrNotRevocable) {
		shared.RespondWithError(w, http.StatusConflict, service.CodeConflict, err.Error(), nil)
		return
	}

	log.Error("unhandled error", "error", err)
	shared.RespondWithError(w, http.StatusInternalServerError,
		service.CodeInternal, "internal server error", nil)
}

// statusForCode maps the stable service error codes to HTTP statuses.
// Conflicts are 409, not 422: a duplicate email is a state collision,
// not a malformed request.
func statusForCode(code string) int {
	switch code {
	case service.CodeValidation:
		return http.StatusUnprocessableEntity
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeConflict:
		return http.StatusConflict
	case service.CodeBusinessRule:
		return http.StatusBadRequest
	case service.CodeUnauthorized:
		return http.StatusUnauthorized
	case service.CodeForbidden:
		return http.StatusForbidden
	case service.CodeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
