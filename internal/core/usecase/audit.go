package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/billed-app/billed/internal/core/domain"
	"github.com/billed-app/billed/internal/core/ports"
)

// BillAuditUseCase records bill lifecycle events consumed by the worker.
type BillAuditUseCase struct {
	repo   ports.BillRepository
	logger *slog.Logger
}

func NewBillAuditUseCase(repo ports.BillRepository, logger *slog.Logger) *BillAuditUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillAuditUseCase{repo: repo, logger: logger}
}

// Handle logs the event against the current bill record and returns the
// per-status totals across all bills.
func (uc *BillAuditUseCase) Handle(ctx context.Context, event domain.BillEvent) (map[domain.BillStatus]int, error) {
	bill, err := uc.repo.GetByID(ctx, event.BillID)
	if err != nil {
		return nil, fmt.Errorf("load bill for event: %w", err)
	}

	uc.logger.Info("bill_event",
		"type", event.Type,
		"bill_id", bill.ID,
		"email", bill.Email,
		"event_status", event.Status,
		"current_status", bill.Status,
		"occurred_at", event.OccurredAt,
	)

	bills, err := uc.repo.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list bills for totals: %w", err)
	}
	return CountByStatus(bills), nil
}
