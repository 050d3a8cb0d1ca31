package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/billed-app/billed/internal/core/domain"
	"github.com/billed-app/billed/internal/core/usecase"
)

//go:embed templates/*.html
var templatesFS embed.FS

var expenseTypes = []string{
	"Transports",
	"Restaurants et bars",
	"Hôtel et logement",
	"Services en ligne",
	"IT et électronique",
	"Equipement et matériel",
	"Fournitures de bureau",
}

type templateRenderer struct {
	templates *template.Template
}

func newTemplateRenderer() (*templateRenderer, error) {
	tpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &templateRenderer{templates: tpl}, nil
}

func (r *templateRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

type loginView struct {
	Email string
	Error string
}

type billRow struct {
	ID      string
	Type    string
	Name    string
	Date    string
	Amount  string
	Status  string
	FileURL string
}

type billTotals struct {
	Pending  int
	Accepted int
	Refused  int
}

type billsView struct {
	Rows   []billRow
	Totals billTotals
	Proof  *domain.Bill
	Error  string
}

type newBillView struct {
	Form         domain.BillForm
	ExpenseTypes []string
	FileName     string
	Notice       *domain.Notice
	Error        string
}

func newBillsView(bills []domain.Bill, proofID string) billsView {
	counts := usecase.CountByStatus(bills)
	view := billsView{
		Rows: make([]billRow, 0, len(bills)),
		Totals: billTotals{
			Pending:  counts[domain.BillStatusPending],
			Accepted: counts[domain.BillStatusAccepted],
			Refused:  counts[domain.BillStatusRefused],
		},
	}
	for i := range bills {
		bill := bills[i]
		view.Rows = append(view.Rows, billRow{
			ID:      bill.ID,
			Type:    bill.Type,
			Name:    bill.Name,
			Date:    bill.Date,
			Amount:  formatAmount(bill.Amount),
			Status:  statusLabel(bill.Status),
			FileURL: bill.FileURL,
		})
		if proofID != "" && bill.ID == proofID {
			view.Proof = &bill
		}
	}
	return view
}

func formatAmount(amount *int) string {
	if amount == nil {
		return "-"
	}
	return strconv.Itoa(*amount) + " €"
}

func statusLabel(status domain.BillStatus) string {
	switch status {
	case domain.BillStatusPending:
		return "En attente"
	case domain.BillStatusAccepted:
		return "Accepté"
	case domain.BillStatusRefused:
		return "Refusé"
	default:
		return string(status)
	}
}
