package ports

import (
	"context"
	"io"

	"github.com/billed-app/billed/internal/core/domain"
)

// BillStore is the remote store the employee module delegates all I/O to.
type BillStore interface {
	List(ctx context.Context) ([]domain.Bill, error)
	Create(ctx context.Context, payload domain.UploadPayload, headers domain.StoreHeaders) (domain.CreateResult, error)
	Update(ctx context.Context, data []byte, selector string) (*domain.Bill, error)
}

// Navigator moves the visible view to a named route.
type Navigator interface {
	Navigate(route domain.Route)
}

// Session is the key-value store holding the connected user.
type Session interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Clear()
}

// BillRepository persists bill records behind the store API.
type BillRepository interface {
	Create(ctx context.Context, bill *domain.Bill) error
	GetByID(ctx context.Context, id string) (*domain.Bill, error)
	Update(ctx context.Context, bill *domain.Bill) error
	List(ctx context.Context, email string) ([]domain.Bill, error)
}

// ObjectStorage stores proof files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// EventQueue publishes/consumes bill lifecycle events.
type EventQueue interface {
	PublishBillEvent(ctx context.Context, event domain.BillEvent) error
	SubscribeBillEvents(ctx context.Context, handler func(context.Context, domain.BillEvent) error) error
}

// BillSheetWriter writes bills as a spreadsheet.
type BillSheetWriter interface {
	WriteBills(w io.Writer, bills []domain.Bill) error
}
