package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/stackmesh/commerce-api/internal/api/shared"
	"github.com/stackmesh/commerce-api/internal/task"
)

// TaskHandler serves background task status and revocation.
type TaskHandler struct {
	dispatcher *task.Dispatcher
	logger     *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(dispatcher *task.Dispatcher, log *slog.Logger) *TaskHandler {
	return &TaskHandler{
		dispatcher: dispatcher,
		logger:     log.With(slog.String("handler", "task")),
	}
}

// Status handles GET /tasks/{id}.
func (h *TaskHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	info, err := h.dispatcher.Status(r.Context(), id)
	if err != nil {
		RespondWithServiceError(w, h.logger, storeErrToService(err))
		return
	}

	resp := TaskStatusResponse{
		TaskID: info.TaskID,
		Status: string(info.Status),
		Error:  info.Error,
	}
	if len(info.Result) > 0 {
		resp.Result = json.RawMessage(info.Result)
	}
	shared.RespondWithJSON(w, http.StatusOK, "", resp)
}

// Revoke handles POST /tasks/{id}/revoke.
func (h *TaskHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	if err := h.dispatcher.Revoke(r.Context(), id); err != nil {
		RespondWithServiceError(w, h.logger, storeErrToService(err))
		return
	}
	shared.RespondWithJSON(w, http.StatusOK, "task revoked", nil)
}
