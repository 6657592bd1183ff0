package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Source tags where an Outcome's payload came from.
type Source string

const (
	// SourceLive marks a payload decoded from a successful remote response.
	SourceLive Source = "live"
	// SourceFallback marks the caller-supplied default payload.
	SourceFallback Source = "fallback"
)

// Cause explains why an Outcome fell back.
type Cause string

const (
	CauseNone         Cause = "none"
	CauseTimeout      Cause = "timeout"
	CauseHTTPStatus   Cause = "http_status"
	CauseNetwork      Cause = "network"
	CauseDecode       Cause = "decode"
	CauseRejected     Cause = "rejected"
	CauseCanceled     Cause = "canceled"
	CauseNotAttempted Cause = "not_attempted"
)

// DemoDataMessage is the advisory attached to every fallback outcome.
const DemoDataMessage = "Using demo data (backend not connected)"

// Outcome is the result of a facade call. Data is always populated, either
// from the remote service or from the fallback payload.
type Outcome[T any] struct {
	Source  Source `json:"source"`
	Cause   Cause  `json:"cause"`
	Status  int    `json:"status,omitempty"`
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
	Err     error  `json:"-"`
}

// Live reports whether the payload came from the remote service.
func (o Outcome[T]) Live() bool {
	return o.Source == SourceLive
}

// Error is returned by Client.Send. Cause classifies the failure.
type Error struct {
	Cause    Cause
	Status   int
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d): %v", e.Endpoint, e.Cause, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.Endpoint, e.Cause, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CauseOf classifies err. A nil error has CauseNone.
func CauseOf(err error) Cause {
	if err == nil {
		return CauseNone
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Cause
	}
	return classifyTransport(err)
}

func classifyTransport(err error) Cause {
	if errors.Is(err, context.DeadlineExceeded) {
		return CauseTimeout
	}
	if errors.Is(err, context.Canceled) {
		return CauseCanceled
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CauseTimeout
	}
	return CauseNetwork
}
