package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/valyala/fasthttp"
)

var (
	ErrRateLimited = errors.New("riot api rate limit exceeded")
	ErrUnavailable = errors.New("riot api temporarily unavailable")
	ErrNotFound    = errors.New("resource not found")
	ErrAuthInvalid = errors.New("riot api key invalid or expired")
	ErrTimeout     = errors.New("riot api connection timeout")
	ErrUnreachable = errors.New("cannot connect to riot api")
	ErrUnknown     = errors.New("unexpected riot api error")
)

// Error is returned by every RiotClient call. Kind is one of the sentinels
// above, Status is the HTTP status or 0 for transport failures.
type Error struct {
	Op     string
	Status int
	Kind   error
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// StatusOf returns the upstream HTTP status carried by err, 0 if none.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// KindName is a short label for metrics and logs.
func KindName(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAuthInvalid):
		return "auth_invalid"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	default:
		return "unknown"
	}
}

func classifyStatus(status int) error {
	switch {
	case status == fasthttp.StatusTooManyRequests:
		return ErrRateLimited
	case status == fasthttp.StatusNotFound:
		return ErrNotFound
	case status == fasthttp.StatusUnauthorized || status == fasthttp.StatusForbidden:
		return ErrAuthInvalid
	case status >= 500:
		return ErrUnavailable
	default:
		return ErrUnknown
	}
}

func classifyTransport(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, fasthttp.ErrTimeout),
		errors.Is(err, fasthttp.ErrDialTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return ErrTimeout
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.As(err, &dnsErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.As(err, &opErr),
		errors.Is(err, fasthttp.ErrConnectionClosed),
		errors.Is(err, fasthttp.ErrNoFreeConns):
		return ErrUnreachable
	}
	return ErrUnknown
}
