package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/billed-app/billed/internal/core/domain"
)

type billStoreFake struct {
	mu sync.Mutex

	bills     []domain.Bill
	listErr   error
	result    domain.CreateResult
	createErr error
	updateErr error
	block     chan struct{}

	createCalls   int
	createPayload domain.UploadPayload
	createHeaders domain.StoreHeaders
	updateCalls   int
	updateData    []byte
	selector      string
}

func (f *billStoreFake) List(context.Context) ([]domain.Bill, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.bills, nil
}

func (f *billStoreFake) Create(_ context.Context, payload domain.UploadPayload, headers domain.StoreHeaders) (domain.CreateResult, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.createPayload = payload
	f.createHeaders = headers
	if f.createErr != nil {
		return domain.CreateResult{}, f.createErr
	}
	return f.result, nil
}

func (f *billStoreFake) Update(_ context.Context, data []byte, selector string) (*domain.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	f.updateData = append([]byte(nil), data...)
	f.selector = selector
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &domain.Bill{ID: selector}, nil
}

func (f *billStoreFake) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls, f.updateCalls
}

type navigatorFake struct {
	mu     sync.Mutex
	routes []domain.Route
}

func (f *navigatorFake) Navigate(route domain.Route) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes = append(f.routes, route)
}

func (f *navigatorFake) visited() []domain.Route {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Route(nil), f.routes...)
}

type sessionFake struct {
	values map[string]string
}

func newSessionFake(user string) *sessionFake {
	s := &sessionFake{values: map[string]string{}}
	if user != "" {
		s.values[domain.SessionUserKey] = user
	}
	return s
}

func (s *sessionFake) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *sessionFake) Set(key, value string) { s.values[key] = value }
func (s *sessionFake) Clear()                { s.values = map[string]string{} }

var errStoreDown = errors.New("Erreur 500")
