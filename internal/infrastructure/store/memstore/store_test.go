package memstore

import (
	"context"
	"testing"

	"github.com/billed-app/billed/internal/core/domain"
)

func TestNewSeedsFixtureBills(t *testing.T) {
	store, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	bills, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(bills) != 4 {
		t.Fatalf("expected 4 fixture bills, got %d", len(bills))
	}

	counts := map[domain.BillStatus]int{}
	for _, bill := range bills {
		counts[bill.Status]++
	}
	if counts[domain.BillStatusPending] != 1 || counts[domain.BillStatusAccepted] != 1 || counts[domain.BillStatusRefused] != 2 {
		t.Fatalf("unexpected status distribution %v", counts)
	}
	if bills[0].Amount == nil || *bills[0].Amount != 400 || bills[0].Date != "2004-04-04" {
		t.Fatalf("unexpected first bill %+v", bills[0])
	}
}

func TestCreateResolvesFixedResultAndRecordsUpload(t *testing.T) {
	store, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	result, err := store.Create(context.Background(), domain.UploadPayload{FileName: "test.jpg", Email: "a@a"}, domain.StoreHeaders{NoContentType: true})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if result.Key != "1234" || result.FileURL != "https://localhost:3456/images/test.jpg" {
		t.Fatalf("unexpected result %+v", result)
	}
	if uploads := store.Uploads(); len(uploads) != 1 || uploads[0].FileName != "test.jpg" {
		t.Fatalf("unexpected uploads %+v", uploads)
	}
}

func TestUpdateUpsertsBySelector(t *testing.T) {
	store, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if _, err := store.Update(ctx, []byte(`{"name":"train","status":"pending","amount":null}`), "1234"); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	bills, _ := store.List(ctx)
	if len(bills) != 5 || bills[4].ID != "1234" || bills[4].Amount != nil {
		t.Fatalf("expected appended bill, got %+v", bills)
	}

	if _, err := store.Update(ctx, []byte(`{"name":"avion","status":"pending"}`), "1234"); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	bills, _ = store.List(ctx)
	if len(bills) != 5 || bills[4].Name != "avion" {
		t.Fatalf("expected replaced bill, got %+v", bills)
	}
}

func TestLoadRejectsUnknownStatus(t *testing.T) {
	_, err := Load([]byte("bills:\n  - id: x\n    status: archived\n"))
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestUpdateRejectsInvalidJSON(t *testing.T) {
	store, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = store.Update(context.Background(), []byte("{"), "1234")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
