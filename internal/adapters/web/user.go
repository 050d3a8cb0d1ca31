package web

import (
	"encoding/json"
	"fmt"

	"github.com/billed-app/billed/internal/core/domain"
)

func encodeUser(user domain.User) (string, error) {
	raw, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("encode session user: %w", err)
	}
	return string(raw), nil
}
