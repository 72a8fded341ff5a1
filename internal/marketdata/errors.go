package marketdata

import (
    "context"
    "errors"
    "fmt"
)

// ErrUpstreamTimeout reports that an upstream call did not answer within
// its deadline. The in-flight request is aborted when this is raised.
var ErrUpstreamTimeout = errors.New("upstream timeout")

// StatusError is a non-success upstream response.
type StatusError struct {
    Code int
    Body string
}

func (e *StatusError) Error() string { return fmt.Sprintf("upstream status %d: %s", e.Code, e.Body) }

// BadRequestError is a caller mistake rejected before any I/O.
type BadRequestError struct {
    Reason string
}

func (e *BadRequestError) Error() string { return e.Reason }

// IsTransport reports whether err is a transport-level failure (timeout or
// non-success status) that a retry could plausibly recover from, as opposed
// to an empty-but-successful response.
func IsTransport(err error) bool {
    if err == nil { return false }
    var se *StatusError
    return errors.Is(err, ErrUpstreamTimeout) || errors.Is(err, context.DeadlineExceeded) || errors.As(err, &se)
}
