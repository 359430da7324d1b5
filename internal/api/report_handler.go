package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/stackmesh/commerce-api/internal/api/shared"
	"github.com/stackmesh/commerce-api/internal/service"
)

// maxReportWait caps how long a result request may block.
const maxReportWait = 30 * time.Second

// ReportHandler serves the on-demand report endpoints backed by the
// in-process compute pool.
type ReportHandler struct {
	reports *service.ReportService
	logger  *slog.Logger
}

// NewReportHandler creates a ReportHandler.
func NewReportHandler(reports *service.ReportService, log *slog.Logger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		logger:  log.With(slog.String("handler", "report")),
	}
}

// ReportSubmitResponse carries the job reference of a queued report.
type ReportSubmitResponse struct {
	JobID uuid.UUID `json:"job_id"`
}

// Submit handles POST /reports/sales.
func (h *ReportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := h.reports.SubmitSalesReport(r.Context())
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusAccepted, "report queued", ReportSubmitResponse{JobID: id})
}

// Status handles GET /reports/sales/{id}.
func (h *ReportHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	info, err := h.reports.ReportStatus(id)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusOK, "", map[string]any{
		"job_id": info.ID,
		"status": string(info.Status),
		"error":  info.Error,
	})
}

// Result handles GET /reports/sales/{id}/result. An optional "wait"
// query parameter (seconds) bounds how long the request blocks.
func (h *ReportHandler) Result(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	wait := 5 * time.Second
	if raw := r.URL.Query().Get("wait"); raw != "" {
		seconds, err := parseIntParam(raw, "wait")
		if err != nil {
			RespondWithServiceError(w, h.logger, err)
			return
		}
		wait = time.Duration(seconds) * time.Second
		if wait > maxReportWait {
			wait = maxReportWait
		}
	}

	report, err := h.reports.ReportResult(id, wait)
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusOK, "", report)
}

// Cancel handles POST /reports/sales/{id}/cancel.
func (h *ReportHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}

	if err := h.reports.CancelReport(id); err != nil {
		RespondWithServiceError(w, h.logger, err)
		return
	}
	shared.RespondWithJSON(w, http.StatusOK, "report cancelled", nil)
}
