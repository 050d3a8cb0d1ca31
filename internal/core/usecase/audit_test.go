package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/billed-app/billed/internal/core/domain"
)

func TestAuditHandleReturnsGlobalTotals(t *testing.T) {
	repo := newBillRepoFake(
		domain.Bill{ID: "1", Email: "a@a", Status: domain.BillStatusPending},
		domain.Bill{ID: "2", Email: "a@a", Status: domain.BillStatusRefused},
		domain.Bill{ID: "3", Email: "a@a", Status: domain.BillStatusRefused},
		domain.Bill{ID: "4", Email: "b@b", Status: domain.BillStatusAccepted},
	)
	uc := NewBillAuditUseCase(repo, nil)

	counts, err := uc.Handle(context.Background(), domain.BillEvent{
		Type:       domain.BillEventUpdated,
		BillID:     "1",
		Status:     domain.BillStatusPending,
		OccurredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if counts[domain.BillStatusPending] != 1 || counts[domain.BillStatusRefused] != 2 || counts[domain.BillStatusAccepted] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestAuditHandleUnknownBill(t *testing.T) {
	uc := NewBillAuditUseCase(newBillRepoFake(), nil)

	_, err := uc.Handle(context.Background(), domain.BillEvent{Type: domain.BillEventCreated, BillID: "missing"})
	if !domain.IsKind(err, domain.ErrBillNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
