package usecase

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/billed-app/billed/internal/core/domain"
	"github.com/billed-app/billed/internal/core/ports"
)

// CurrentUser decodes the connected user from the session.
func CurrentUser(session ports.Session) (domain.User, error) {
	if session == nil {
		return domain.User{}, domain.WrapError(domain.ErrUnauthorized, "read session", errors.New("no session"))
	}
	raw, ok := session.Get(domain.SessionUserKey)
	if !ok || raw == "" {
		return domain.User{}, domain.WrapError(domain.ErrUnauthorized, "read session", errors.New("no user entry"))
	}
	var user domain.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return domain.User{}, domain.WrapError(domain.ErrUnauthorized, "read session", fmt.Errorf("decode user: %w", err))
	}
	return user, nil
}

// Logout forgets the connected user and returns to the login page.
func Logout(session ports.Session, navigator ports.Navigator) {
	if session != nil {
		session.Clear()
	}
	navigator.Navigate(domain.RouteLogin)
}
