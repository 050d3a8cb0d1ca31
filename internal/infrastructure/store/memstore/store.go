// Package memstore is the mocked bill store used for local runs and tests.
package memstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/billed-app/billed/internal/core/domain"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

type fixtures struct {
	Created domain.CreateResult `yaml:"created"`
	Bills   []domain.Bill       `yaml:"bills"`
}

// Store implements ports.BillStore in memory.
type Store struct {
	mu      sync.Mutex
	created domain.CreateResult
	bills   []domain.Bill
	uploads []domain.UploadPayload
}

// New returns a store seeded with the embedded fixture bills.
func New() (*Store, error) {
	return Load(defaultFixtures)
}

func Load(data []byte) (*Store, error) {
	var fx fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	for i, bill := range fx.Bills {
		if !bill.Status.Known() {
			return nil, fmt.Errorf("fixture bill %d: unknown status %q", i, bill.Status)
		}
	}
	return &Store{created: fx.Created, bills: fx.Bills}, nil
}

func (s *Store) List(_ context.Context) ([]domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Bill, len(s.bills))
	copy(out, s.bills)
	return out, nil
}

// Create records the upload and resolves the fixed fixture result.
func (s *Store) Create(_ context.Context, payload domain.UploadPayload, _ domain.StoreHeaders) (domain.CreateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.uploads = append(s.uploads, payload)
	return s.created, nil
}

// Update upserts the bill decoded from data under selector.
func (s *Store) Update(_ context.Context, data []byte, selector string) (*domain.Bill, error) {
	var bill domain.Bill
	if err := json.Unmarshal(data, &bill); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "memstore update", err)
	}
	bill.ID = selector

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.bills {
		if s.bills[i].ID == selector {
			s.bills[i] = bill
			return &bill, nil
		}
	}
	s.bills = append(s.bills, bill)
	return &bill, nil
}

// Uploads returns the payloads received by Create, oldest first.
func (s *Store) Uploads() []domain.UploadPayload {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.UploadPayload, len(s.uploads))
	copy(out, s.uploads)
	return out
}
