package httpstore

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/billed-app/billed/internal/core/domain"
	"github.com/billed-app/billed/internal/infrastructure/resilience"
)

// HTTPStatusError renders as "Erreur <code>", which the Bills view shows as is.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "store status error"
	}
	return fmt.Sprintf("Erreur %d", e.StatusCode)
}

func (e *HTTPStatusError) UserMessage() string {
	return e.Error()
}

// Detail includes the response body for logs.
func (e *HTTPStatusError) Detail() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("store %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("store %s status: %s: %s", e.Operation, e.Status, body)
}

func classifyStoreError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyContext(err); ok {
		return class
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

// classifyCreateError never retries: a create the store already committed
// would come back as a second bill under a new key.
func classifyCreateError(err error) resilience.ErrorClassification {
	class := classifyStoreError(err)
	class.Retryable = false
	return class
}

func wrapKind(operation string, err error) error {
	if err == nil {
		return nil
	}
	op := "store " + operation

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusNotFound:
			return domain.WrapError(domain.ErrBillNotFound, op, err)
		case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
			return domain.WrapError(domain.ErrInvalidInput, op, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.WrapError(domain.ErrUnauthorized, op, err)
		}
	}
	if classifyStoreError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return err
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
