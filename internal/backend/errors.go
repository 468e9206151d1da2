package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrTimeout is returned when a request exceeds its deadline
	ErrTimeout = errors.New("backend request timed out")
	// ErrTransport is returned when the backend cannot be reached
	ErrTransport = errors.New("backend unreachable")
	// ErrDecode is returned when a response body is not the expected envelope
	ErrDecode = errors.New("backend response malformed")
	// ErrUnsupported is returned when an entity has no endpoint for an operation
	ErrUnsupported = errors.New("operation not supported for this table")
)

// ServerError is a 4xx/5xx answer from the backend
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

// Error kinds reported to table views
const (
	KindTimeout   = "timeout"
	KindTransport = "transport"
	KindServer    = "server"
	KindDecode    = "decode"
	KindCanceled  = "canceled"
	KindUnknown   = "unknown"
)

// Kind classifies err for display
func Kind(err error) string {
	var serverErr *ServerError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &serverErr):
		return KindServer
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrTransport):
		return KindTransport
	default:
		return KindUnknown
	}
}

// classify wraps low-level failures into the package's sentinel errors
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

func retryable(err error) bool {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.Status == 429 || serverErr.Status >= 500
	}
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrTimeout)
}
