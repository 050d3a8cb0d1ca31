package domain

import (
	"errors"
	"fmt"
)

var (
	ErrBillNotFound       = errors.New("bill not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTemporary          = errors.New("temporary failure")
	ErrSubmissionInFlight = errors.New("submission already in flight")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// UserFacing is implemented by errors whose message can be shown as is.
type UserFacing interface {
	UserMessage() string
}

// DisplayMessage returns the first user-facing message in err's chain,
// falling back to err.Error().
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}
	var uf UserFacing
	if errors.As(err, &uf) {
		return uf.UserMessage()
	}
	return err.Error()
}
