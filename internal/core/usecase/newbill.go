package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/billed-app/billed/internal/core/domain"
	"github.com/billed-app/billed/internal/core/ports"
)

var errNoBillStore = errors.New("no bill store configured")

var _ ports.BillSubmission = (*BillSubmissionUseCase)(nil)

type NewBillOptions struct {
	// AwaitPersist delays navigation until the update step succeeded.
	// When false the listing opens right after create and update runs in the background.
	AwaitPersist bool
	Logger       *slog.Logger
}

// BillSubmissionUseCase drives one NewBill form: attach a proof, then submit.
// State only moves forward; a fresh instance is needed to start over.
type BillSubmissionUseCase struct {
	store     ports.BillStore
	navigator ports.Navigator
	session   ports.Session
	opts      NewBillOptions
	logger    *slog.Logger

	mu            sync.Mutex
	phase         domain.WorkflowPhase
	fileName      string
	fileURL       string
	billID        string
	uploadPayload *domain.UploadPayload

	background sync.WaitGroup
}

func NewBillSubmissionUseCase(
	store ports.BillStore,
	navigator ports.Navigator,
	session ports.Session,
	opts NewBillOptions,
) *BillSubmissionUseCase {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BillSubmissionUseCase{
		store:     store,
		navigator: navigator,
		session:   session,
		opts:      opts,
		logger:    logger,
		phase:     domain.PhaseIdle,
	}
}

func (uc *BillSubmissionUseCase) AttachFile(_ context.Context, selection domain.FileSelection) error {
	if selection.DisplayName() == "" {
		return nil
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	uc.uploadPayload = nil
	if !domain.HasAllowedProofExtension(selection.DisplayName()) {
		return &domain.Notice{
			Field:      domain.FieldFile,
			Message:    domain.MsgInvalidProofExtension,
			ResetField: true,
		}
	}

	user, err := CurrentUser(uc.session)
	if err != nil {
		return fmt.Errorf("attach file: %w", err)
	}

	uc.fileName = selection.BaseName()
	uc.uploadPayload = &domain.UploadPayload{
		FileName: uc.fileName,
		MimeType: selection.MimeType,
		Content:  selection.Content,
		Email:    user.Email,
	}
	return nil
}

func (uc *BillSubmissionUseCase) Submit(ctx context.Context, form domain.BillForm) error {
	uc.mu.Lock()
	if uc.phase == domain.PhaseUploading || uc.phase == domain.PhasePersisting {
		uc.mu.Unlock()
		return domain.WrapError(domain.ErrSubmissionInFlight, "submit bill", fmt.Errorf("phase=%s", uc.phase))
	}
	if form.Name == "" {
		uc.mu.Unlock()
		return &domain.Notice{Field: domain.FieldExpenseName, Message: domain.MsgMissingExpenseName}
	}
	if uc.uploadPayload == nil {
		uc.mu.Unlock()
		return &domain.Notice{Field: domain.FieldFile, Message: domain.MsgMissingProof}
	}
	user, err := CurrentUser(uc.session)
	if err != nil {
		uc.mu.Unlock()
		return fmt.Errorf("submit bill: %w", err)
	}
	payload := *uc.uploadPayload
	uc.phase = domain.PhaseUploading
	uc.mu.Unlock()

	result, err := uc.create(ctx, payload)
	if err != nil {
		uc.logger.Error("bill_create_failed", "file_name", payload.FileName, "error", err)
		uc.setPhase(domain.PhaseFailed)
		return err
	}

	uc.mu.Lock()
	uc.billID = result.Key
	uc.fileURL = result.FileURL
	bill := domain.NewPendingBill(form, user.Email, uc.fileURL, uc.fileName)
	uc.phase = domain.PhasePersisting
	uc.mu.Unlock()

	if uc.opts.AwaitPersist {
		return uc.updateBill(ctx, bill)
	}

	uc.background.Add(1)
	go func() {
		defer uc.background.Done()
		_ = uc.updateBill(context.WithoutCancel(ctx), bill)
	}()
	uc.navigator.Navigate(domain.RouteBills)
	return nil
}

func (uc *BillSubmissionUseCase) create(ctx context.Context, payload domain.UploadPayload) (domain.CreateResult, error) {
	if uc.store == nil {
		return domain.CreateResult{}, fmt.Errorf("create bill: %w", errNoBillStore)
	}
	result, err := uc.store.Create(ctx, payload, domain.StoreHeaders{NoContentType: true})
	if err != nil {
		return domain.CreateResult{}, fmt.Errorf("create bill: %w", err)
	}
	return result, nil
}

// updateBill is best-effort: failures are logged and the user stays on the form.
func (uc *BillSubmissionUseCase) updateBill(ctx context.Context, bill domain.Bill) error {
	if uc.store == nil {
		return nil
	}

	data, err := json.Marshal(bill)
	if err != nil {
		uc.setPhase(domain.PhaseFailed)
		return fmt.Errorf("marshal bill: %w", err)
	}

	selector := uc.BillID()
	if _, err := uc.store.Update(ctx, data, selector); err != nil {
		uc.logger.Error("bill_update_failed", "bill_id", selector, "error", err)
		uc.setPhase(domain.PhaseFailed)
		return fmt.Errorf("update bill: %w", err)
	}

	uc.setPhase(domain.PhaseDone)
	uc.navigator.Navigate(domain.RouteBills)
	return nil
}

// Wait blocks until a background update step has settled.
func (uc *BillSubmissionUseCase) Wait() {
	uc.background.Wait()
}

func (uc *BillSubmissionUseCase) Phase() domain.WorkflowPhase {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.phase
}

func (uc *BillSubmissionUseCase) FileName() string {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.fileName
}

func (uc *BillSubmissionUseCase) FileURL() string {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.fileURL
}

func (uc *BillSubmissionUseCase) BillID() string {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.billID
}

// UploadPayload returns a copy of the pending payload, nil when no valid file is attached.
func (uc *BillSubmissionUseCase) UploadPayload() *domain.UploadPayload {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.uploadPayload == nil {
		return nil
	}
	payload := *uc.uploadPayload
	return &payload
}

func (uc *BillSubmissionUseCase) setPhase(phase domain.WorkflowPhase) {
	uc.mu.Lock()
	uc.phase = phase
	uc.mu.Unlock()
}
