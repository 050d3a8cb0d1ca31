package web

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/billed-app/billed/internal/core/ports"
	"github.com/billed-app/billed/internal/infrastructure/session"
)

const sessionCookieName = "billed_session"

// newBillForm is one NewBill form instance with its own navigator, so a late
// background navigation never leaks into a later form.
type newBillForm struct {
	workflow  ports.BillSubmission
	navigator *Navigator
}

// browser is the per-cookie state: the key-value session plus the open form.
type browser struct {
	id      string
	session *session.Store

	mu   sync.Mutex
	form *newBillForm
}

func (b *browser) currentForm() *newBillForm {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.form
}

func (b *browser) replaceForm(form *newBillForm) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.form = form
}

type browsers struct {
	registry *session.Registry

	mu   sync.Mutex
	byID map[string]*browser
}

func newBrowsers(registry *session.Registry) *browsers {
	return &browsers{registry: registry, byID: make(map[string]*browser)}
}

// resolve finds the browser bound to the request cookie, starting a new
// session when the cookie is missing or expired.
func (bs *browsers) resolve(c echo.Context) *browser {
	if cookie, err := c.Cookie(sessionCookieName); err == nil {
		if store, ok := bs.registry.Lookup(cookie.Value); ok {
			bs.mu.Lock()
			defer bs.mu.Unlock()
			b, ok := bs.byID[cookie.Value]
			if !ok {
				b = &browser{id: cookie.Value, session: store}
				bs.byID[cookie.Value] = b
			}
			return b
		}
		bs.forget(cookie.Value)
	}

	id, store := bs.registry.Create()
	b := &browser{id: id, session: store}
	bs.mu.Lock()
	bs.byID[id] = b
	bs.mu.Unlock()

	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return b
}

func (bs *browsers) forget(id string) {
	bs.mu.Lock()
	delete(bs.byID, id)
	bs.mu.Unlock()
}

// sweep drops browsers whose session expired.
func (bs *browsers) sweep() int {
	bs.registry.Sweep()

	bs.mu.Lock()
	defer bs.mu.Unlock()
	removed := 0
	for id := range bs.byID {
		if !bs.registry.Alive(id) {
			delete(bs.byID, id)
			removed++
		}
	}
	return removed
}
