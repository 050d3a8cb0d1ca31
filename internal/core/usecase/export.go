package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/billed-app/billed/internal/core/ports"
)

type BillExportUseCase struct {
	repo   ports.BillRepository
	writer ports.BillSheetWriter
}

func NewBillExportUseCase(repo ports.BillRepository, writer ports.BillSheetWriter) *BillExportUseCase {
	return &BillExportUseCase{repo: repo, writer: writer}
}

func (uc *BillExportUseCase) Export(ctx context.Context, email string, w io.Writer) error {
	bills, err := uc.repo.List(ctx, email)
	if err != nil {
		return fmt.Errorf("list bills for export: %w", err)
	}
	if err := uc.writer.WriteBills(w, SortBillsByDateDesc(bills)); err != nil {
		return fmt.Errorf("write bill sheet: %w", err)
	}
	return nil
}
