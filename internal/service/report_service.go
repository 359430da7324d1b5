package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stackmesh/commerce-api/internal/domain"
	"github.com/stackmesh/commerce-api/internal/store"
	"github.com/stackmesh/commerce-api/internal/worker"
)

// SalesReport is the output of a sales summary computation.
type SalesReport struct {
	GeneratedAt     time.Time `json:"generated_at"`
	TotalOrders     int       `json:"total_orders"`
	PendingOrders   int       `json:"pending_orders"`
	CancelledOrders int       `json:"cancelled_orders"`
	ActiveProducts  int       `json:"active_products"`
	ActiveUsers     int       `json:"active_users"`
}

// ReportService runs summary computations on the in-process pool so an
// expensive aggregation never blocks the request that asked for it.
// Results live only in memory; callers poll with the returned job ID.
type ReportService struct {
	pool     *worker.Pool
	orders   store.OrderStore
	products store.ProductStore
	users    store.UserStore
	logger   *slog.Logger
}

// NewReportService creates a ReportService.
func NewReportService(
	pool *worker.Pool,
	orders store.OrderStore,
	products store.ProductStore,
	users store.UserStore,
	log *slog.Logger,
) *ReportService {
	return &ReportService{
		pool:     pool,
		orders:   orders,
		products: products,
		users:    users,
		logger:   log.With(slog.String("component", "report_service")),
	}
}

// SubmitSalesReport queues a sales summary computation and returns the
// job ID to poll.
func (s *ReportService) SubmitSalesReport(ctx context.Context) (uuid.UUID, error) {
	id, err := s.pool.Submit(func(jobCtx context.Context) (any, error) {
		return s.buildSalesReport(jobCtx)
	})
	if err != nil {
		if errors.Is(err, worker.ErrQueueFull) {
			return uuid.Nil, NewBusinessRuleError("report queue is full, try again later", err)
		}
		return uuid.Nil, NewExternalError("failed to queue report", err)
	}

	s.logger.Info("sales report queued", "job_id", id)
	return id, nil
}

// ReportStatus returns the job's state without waiting.
func (s *ReportService) ReportStatus(id uuid.UUID) (worker.JobInfo, error) {
	info, err := s.pool.Status(id)
	if err != nil {
		if errors.Is(err, worker.ErrJobNotFound) {
			return worker.JobInfo{}, NewNotFoundError("report", err)
		}
		return worker.JobInfo{}, NewExternalError("failed to get report status", err)
	}
	return info, nil
}

// ReportResult waits up to timeout for the report. On timeout the
// computation keeps running and the result stays available for a later
// poll.
func (s *ReportService) ReportResult(id uuid.UUID, timeout time.Duration) (*SalesReport, error) {
	result, err := s.pool.Result(id, timeout)
	if err != nil {
		switch {
		case errors.Is(err, worker.ErrJobNotFound):
			return nil, NewNotFoundError("report", err)
		case errors.Is(err, worker.ErrResultTimeout):
			return nil, NewBusinessRuleError("report is still running", err)
		default:
			return nil, NewExternalError("report failed", err)
		}
	}

	report, ok := result.(*SalesReport)
	if !ok {
		return nil, NewInternalError(errors.New("unexpected report result type"))
	}
	return report, nil
}

// CancelReport cancels a queued report that has not started yet.
func (s *ReportService) CancelReport(id uuid.UUID) error {
	if err := s.pool.Cancel(id); err != nil {
		switch {
		case errors.Is(err, worker.ErrJobNotFound):
			return NewNotFoundError("report", err)
		case errors.Is(err, worker.ErrNotCancelable):
			return NewBusinessRuleError("report has already started", err)
		default:
			return NewExternalError("failed to cancel report", err)
		}
	}
	return nil
}

func (s *ReportService) buildSalesReport(ctx context.Context) (*SalesReport, error) {
	report := &SalesReport{GeneratedAt: time.Now().UTC()}

	var err error
	if report.TotalOrders, err = s.orders.Count(ctx, nil); err != nil {
		return nil, err
	}
	if report.PendingOrders, err = s.orders.Count(ctx, store.Filters{
		"status": string(domain.OrderStatusPending),
	}); err != nil {
		return nil, err
	}
	if report.CancelledOrders, err = s.orders.Count(ctx, store.Filters{
		"status": string(domain.OrderStatusCancelled),
	}); err != nil {
		return nil, err
	}
	if report.ActiveProducts, err = s.products.Count(ctx, store.Filters{
		"is_active": true,
	}); err != nil {
		return nil, err
	}
	if report.ActiveUsers, err = s.users.Count(ctx, store.Filters{
		"is_active": true,
	}); err != nil {
		return nil, err
	}

	return report, nil
}
