package fetch

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/policyscout/discovery-cli/internal/resilience"
)

// ErrKind categorizes a fetch failure.
type ErrKind string

const (
	KindTimeout    ErrKind = "timeout"
	KindNetwork    ErrKind = "network"
	KindHTTPStatus ErrKind = "http_status"
	KindBlocked    ErrKind = "blocked"
)

// FetchError describes why a URL could not be retrieved.
type FetchError struct {
	Kind       ErrKind
	URL        string
	StatusCode int       // set for KindHTTPStatus
	Block      BlockType // set for KindBlocked
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	case KindBlocked:
		return fmt.Sprintf("fetch %s: blocked (%s)", e.URL, e.Block)
	default:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsBlocked reports whether err carries a FetchError for an anti-bot block.
func IsBlocked(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == KindBlocked
}

// statusError builds the error for a non-2xx response. Retryable statuses
// wrap a resilience.TransientError so queue classification can tell them
// apart from hard client errors.
func statusError(rawURL string, code int) *FetchError {
	fe := &FetchError{Kind: KindHTTPStatus, URL: rawURL, StatusCode: code}
	if resilience.IsTransientHTTPStatus(code) {
		fe.Err = resilience.NewTransientError(eris.Errorf("http status %d", code), code)
	}
	return fe
}
