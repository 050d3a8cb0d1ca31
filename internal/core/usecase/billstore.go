package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/billed-app/billed/internal/core/domain"
	"github.com/billed-app/billed/internal/core/ports"
)

// BillStoreUseCase backs the bills store API: proof upload, record
// finalization and listing.
type BillStoreUseCase struct {
	repo        ports.BillRepository
	storage     ports.ObjectStorage
	queue       ports.EventQueue
	fileBaseURL string
	now         func() time.Time
}

func NewBillStoreUseCase(
	repo ports.BillRepository,
	storage ports.ObjectStorage,
	queue ports.EventQueue,
	fileBaseURL string,
) *BillStoreUseCase {
	return &BillStoreUseCase{
		repo:        repo,
		storage:     storage,
		queue:       queue,
		fileBaseURL: strings.TrimRight(fileBaseURL, "/"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (uc *BillStoreUseCase) Create(
	ctx context.Context,
	email, filename, mimeType string,
	body io.Reader,
) (domain.CreateResult, error) {
	baseName := domain.ProofBaseName(filename)
	if !domain.HasAllowedProofExtension(baseName) {
		return domain.CreateResult{}, domain.WrapError(
			domain.ErrInvalidInput,
			"create bill",
			fmt.Errorf("unsupported proof file %q (%s)", baseName, mimeType),
		)
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(baseName))
	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return domain.CreateResult{}, fmt.Errorf("save proof to object storage: %w", err)
	}

	bill := &domain.Bill{
		ID:         id,
		Email:      email,
		FileName:   baseName,
		FileURL:    uc.proofURL(id),
		Pct:        domain.DefaultPct,
		Status:     domain.BillStatusPending,
		StorageKey: storageKey,
	}
	if err := uc.repo.Create(ctx, bill); err != nil {
		if delErr := uc.storage.Delete(context.WithoutCancel(ctx), storageKey); delErr != nil {
			slog.Error("orphan_proof_cleanup_failed", "storage_key", storageKey, "error", delErr)
		}
		return domain.CreateResult{}, fmt.Errorf("create bill record: %w", err)
	}

	// The record is committed; a lost event must not turn it into a failed create.
	uc.publish(ctx, domain.BillEventCreated, bill)

	return domain.CreateResult{FileURL: bill.FileURL, Key: id}, nil
}

func (uc *BillStoreUseCase) Update(ctx context.Context, id string, bill domain.Bill) (*domain.Bill, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update bill", errors.New("empty selector"))
	}
	existing, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch bill by id: %w", err)
	}

	merged := mergeBill(*existing, bill)
	if !merged.Status.Known() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "update bill", fmt.Errorf("unknown status %q", merged.Status))
	}
	if err := uc.repo.Update(ctx, &merged); err != nil {
		return nil, fmt.Errorf("update bill record: %w", err)
	}

	uc.publish(ctx, domain.BillEventUpdated, &merged)
	return &merged, nil
}

func (uc *BillStoreUseCase) List(ctx context.Context, email string) ([]domain.Bill, error) {
	bills, err := uc.repo.List(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return SortBillsByDateDesc(bills), nil
}

func (uc *BillStoreUseCase) GetByID(ctx context.Context, id string) (*domain.Bill, error) {
	bill, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch bill by id: %w", err)
	}
	return bill, nil
}

func (uc *BillStoreUseCase) OpenProof(ctx context.Context, id string) (io.ReadCloser, *domain.Bill, error) {
	bill, err := uc.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if bill.StorageKey == "" {
		return nil, nil, domain.WrapError(domain.ErrBillNotFound, "open proof", fmt.Errorf("bill %s has no proof", id))
	}
	rc, err := uc.storage.Open(ctx, bill.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("open proof: %w", err)
	}
	return rc, bill, nil
}

func (uc *BillStoreUseCase) proofURL(id string) string {
	return fmt.Sprintf("%s/v1/bills/%s/file", uc.fileBaseURL, id)
}

// publish is best-effort: failures are logged, the write stands.
func (uc *BillStoreUseCase) publish(ctx context.Context, eventType string, bill *domain.Bill) {
	if uc.queue == nil {
		return
	}
	event := domain.BillEvent{
		Type:       eventType,
		BillID:     bill.ID,
		Email:      bill.Email,
		Status:     bill.Status,
		OccurredAt: uc.now(),
	}
	if err := uc.queue.PublishBillEvent(ctx, event); err != nil {
		slog.Error("bill_event_publish_failed", "type", eventType, "bill_id", bill.ID, "error", err)
	}
}

// mergeBill applies an update on top of the stored record. Identity and
// proof location always come from the stored record.
func mergeBill(existing, update domain.Bill) domain.Bill {
	out := update
	out.ID = existing.ID
	out.StorageKey = existing.StorageKey
	if out.Status == "" {
		out.Status = existing.Status
	}
	if out.FileURL == "" {
		out.FileURL = existing.FileURL
	}
	if out.FileName == "" {
		out.FileName = existing.FileName
	}
	if out.Email == "" {
		out.Email = existing.Email
	}
	return out
}

func sanitizeFilename(name string) string {
	base := strings.ReplaceAll(name, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "proof.bin"
	}
	return base
}
