package resilience

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is returned when the circuit breaker is open and
// requests are being rejected without touching the upstream service.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// StatusError represents a non-2xx HTTP response from the upstream API.
// It carries the status code so retry logic can decide whether the
// failure is transient.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("upstream returned %d", e.StatusCode)
}

// Retryable status codes: server errors and rate limiting. Client
// errors (4xx other than 429) will not improve on retry.
func retryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}
