package domain

import "time"

type BillStatus string

const (
	BillStatusPending  BillStatus = "pending"
	BillStatusAccepted BillStatus = "accepted"
	BillStatusRefused  BillStatus = "refused"
)

// Known reports whether s is one of the three statuses the listing renders.
func (s BillStatus) Known() bool {
	switch s {
	case BillStatusPending, BillStatusAccepted, BillStatusRefused:
		return true
	default:
		return false
	}
}

// DefaultPct applies when the pct field is empty, unparseable or zero.
const DefaultPct = 20

type Bill struct {
	ID           string     `json:"id,omitempty" yaml:"id"`
	Email        string     `json:"email" yaml:"email"`
	Type         string     `json:"type" yaml:"type"`
	Name         string     `json:"name" yaml:"name"`
	Amount       *int       `json:"amount" yaml:"amount"`
	Date         string     `json:"date" yaml:"date"`
	VAT          string     `json:"vat" yaml:"vat"`
	Pct          int        `json:"pct" yaml:"pct"`
	Commentary   string     `json:"commentary" yaml:"commentary"`
	CommentAdmin string     `json:"commentAdmin,omitempty" yaml:"commentAdmin"`
	FileURL      string     `json:"fileUrl" yaml:"fileUrl"`
	FileName     string     `json:"fileName" yaml:"fileName"`
	Status       BillStatus `json:"status" yaml:"status"`

	// StorageKey locates the proof in object storage; never serialized.
	StorageKey string `json:"-" yaml:"-"`
}

// BillForm holds the raw NewBill form values as typed by the employee.
type BillForm struct {
	Type       string
	Name       string
	Amount     string
	Date       string
	VAT        string
	Pct        string
	Commentary string
}

// NewPendingBill assembles the record persisted after a successful upload.
func NewPendingBill(form BillForm, email, fileURL, fileName string) Bill {
	var amount *int
	if n, ok := ParseLeadingInt(form.Amount); ok {
		amount = &n
	}
	pct, ok := ParseLeadingInt(form.Pct)
	if !ok || pct == 0 {
		pct = DefaultPct
	}
	return Bill{
		Email:      email,
		Type:       form.Type,
		Name:       form.Name,
		Amount:     amount,
		Date:       form.Date,
		VAT:        form.VAT,
		Pct:        pct,
		Commentary: form.Commentary,
		FileURL:    fileURL,
		FileName:   fileName,
		Status:     BillStatusPending,
	}
}

type StoreHeaders struct {
	// NoContentType tells the transport to keep the payload's own content type.
	NoContentType bool
}

type CreateResult struct {
	FileURL string `json:"fileUrl" yaml:"fileUrl"`
	Key     string `json:"key" yaml:"key"`
}

const (
	BillEventCreated = "bill.created"
	BillEventUpdated = "bill.updated"
)

type BillEvent struct {
	Type       string     `json:"type"`
	BillID     string     `json:"bill_id"`
	Email      string     `json:"email"`
	Status     BillStatus `json:"status"`
	OccurredAt time.Time  `json:"occurred_at"`
}
