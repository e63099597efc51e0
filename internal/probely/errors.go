package probely

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCircuitOpen is returned once too many consecutive calls have failed.
var ErrCircuitOpen = errors.New("probely: circuit breaker open, API unavailable")

// StatusError is returned when the API answers with a status other than the
// one the operation expects. It keeps everything needed to diagnose the call.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Reason     string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d %s: %s", e.Method, e.URL, e.StatusCode, e.Reason, string(e.Body))
}

func newStatusError(method, url string, r *response) *StatusError {
	return &StatusError{
		Method:     method,
		URL:        url,
		StatusCode: r.status,
		Reason:     http.StatusText(r.status),
		Body:       r.body,
	}
}
