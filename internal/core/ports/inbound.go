package ports

import (
	"context"
	"io"

	"github.com/billed-app/billed/internal/core/domain"
)

// BillSubmission is the inbound contract of one NewBill form instance.
type BillSubmission interface {
	AttachFile(ctx context.Context, selection domain.FileSelection) error
	Submit(ctx context.Context, form domain.BillForm) error
	Phase() domain.WorkflowPhase
	// UploadPayload is nil until a valid proof is attached.
	UploadPayload() *domain.UploadPayload
}

// BillLister is the inbound read model behind the Bills view.
type BillLister interface {
	List(ctx context.Context) ([]domain.Bill, error)
}

// BillStoreService is the inbound contract of the bills store API.
type BillStoreService interface {
	Create(ctx context.Context, email, filename, mimeType string, body io.Reader) (domain.CreateResult, error)
	Update(ctx context.Context, id string, bill domain.Bill) (*domain.Bill, error)
	List(ctx context.Context, email string) ([]domain.Bill, error)
	GetByID(ctx context.Context, id string) (*domain.Bill, error)
	OpenProof(ctx context.Context, id string) (io.ReadCloser, *domain.Bill, error)
}

// BillExportService renders a bill listing into a downloadable document.
type BillExportService interface {
	Export(ctx context.Context, email string, w io.Writer) error
}
