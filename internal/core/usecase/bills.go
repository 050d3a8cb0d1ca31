package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/billed-app/billed/internal/core/domain"
	"github.com/billed-app/billed/internal/core/ports"
)

type BillsUseCase struct {
	store ports.BillStore
}

func NewBillsUseCase(store ports.BillStore) *BillsUseCase {
	return &BillsUseCase{store: store}
}

// List returns the employee's bills, most recent first.
func (uc *BillsUseCase) List(ctx context.Context) ([]domain.Bill, error) {
	bills, err := uc.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return SortBillsByDateDesc(bills), nil
}

// SortBillsByDateDesc returns a sorted copy; equal dates keep their input order.
func SortBillsByDateDesc(bills []domain.Bill) []domain.Bill {
	out := make([]domain.Bill, len(bills))
	copy(out, bills)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date > out[j].Date
	})
	return out
}

// CountByStatus counts bills per recognized status.
func CountByStatus(bills []domain.Bill) map[domain.BillStatus]int {
	counts := map[domain.BillStatus]int{
		domain.BillStatusPending:  0,
		domain.BillStatusAccepted: 0,
		domain.BillStatusRefused:  0,
	}
	for _, bill := range bills {
		if bill.Status.Known() {
			counts[bill.Status]++
		}
	}
	return counts
}
