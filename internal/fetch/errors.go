package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"getpoetry/internal/config"
)

// ErrTimedOut is the error carried by a TimedOut outcome.
var ErrTimedOut = errors.New("deadline elapsed before the server closed the connection")

// Reason classifies a connect failure.
type Reason int

const (
	ReasonOther Reason = iota
	ReasonRefused
	ReasonUnreachable
	ReasonResolution
	ReasonTimeout
)

// String returns the string representation of Reason.
func (r Reason) String() string {
	switch r {
	case ReasonRefused:
		return "refused"
	case ReasonUnreachable:
		return "unreachable"
	case ReasonResolution:
		return "resolution failed"
	case ReasonTimeout:
		return "timed out"
	default:
		return "failed"
	}
}

// ConnectError is carried by a ConnectionFailed outcome.
type ConnectError struct {
	Addr   config.Address
	Reason Reason
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s %s: %v", e.Addr, e.Reason, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

func newConnectError(addr config.Address, err error) *ConnectError {
	return &ConnectError{Addr: addr, Reason: classify(err), Err: err}
}

func classify(err error) Reason {
	var dnsErr *net.DNSError
	var netErr net.Error

	switch {
	case errors.As(err, &dnsErr):
		return ReasonResolution
	case errors.Is(err, syscall.ECONNREFUSED):
		return ReasonRefused
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
		return ReasonUnreachable
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return ReasonTimeout
	default:
		return ReasonOther
	}
}
