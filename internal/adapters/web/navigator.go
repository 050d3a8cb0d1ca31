package web

import (
	"sync"

	"github.com/billed-app/billed/internal/core/domain"
)

var routePaths = map[domain.Route]string{
	domain.RouteLogin:   "/",
	domain.RouteBills:   "/employee/bills",
	domain.RouteNewBill: "/employee/bill/new",
}

// PathFor maps an application route to its URL path.
func PathFor(route domain.Route) string {
	if path, ok := routePaths[route]; ok {
		return path
	}
	return "/"
}

// Navigator remembers where the last action asked to go. The handler that
// triggered the action turns it into a redirect.
type Navigator struct {
	mu      sync.Mutex
	pending domain.Route
	visits  []domain.Route
}

func (n *Navigator) Navigate(route domain.Route) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending = route
	n.visits = append(n.visits, route)
}

// Take returns and clears the pending route.
func (n *Navigator) Take() (domain.Route, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	route := n.pending
	n.pending = ""
	return route, route != ""
}

// Visits lists every navigation requested so far.
func (n *Navigator) Visits() []domain.Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Route(nil), n.visits...)
}
