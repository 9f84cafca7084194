package probe

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"syscall"
	"time"

	pkgerrors "hostwatch/pkg/errors"
)

// Reason is a short code describing why a probe failed.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonTimeout     Reason = "timeout"
	ReasonUnreachable Reason = "unreachable"
	ReasonPermission  Reason = "permission"
	ReasonResolution  Reason = "resolution"
	ReasonCanceled    Reason = "canceled"
	ReasonError       Reason = "error"
)

// Result is the outcome of one probe. Failures are values, never errors
// returned to the caller.
type Result struct {
	OK      bool
	Latency time.Duration
	Addr    netip.Addr // address actually probed; resolved for hostname targets
	Reason  Reason
	Err     error
	At      time.Time
}

// Classify maps a transport error to a Reason.
func Classify(err error) Reason {
	if err == nil {
		return ReasonNone
	}

	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, pkgerrors.ErrResolutionFailed), errors.As(err, &dnsErr):
		return ReasonResolution
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, pkgerrors.ErrProbeTimeout), os.IsTimeout(err):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, pkgerrors.ErrPermissionDenied), errors.Is(err, os.ErrPermission),
		errors.Is(err, syscall.EPERM), errors.Is(err, syscall.EACCES):
		return ReasonPermission
	case errors.Is(err, pkgerrors.ErrProbeUnreachable), errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return ReasonUnreachable
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ReasonUnreachable
	}
	return ReasonError
}

// reasonError returns the sentinel matching a reason, for wrapping.
func reasonError(r Reason) error {
	switch r {
	case ReasonTimeout:
		return pkgerrors.ErrProbeTimeout
	case ReasonPermission:
		return pkgerrors.ErrPermissionDenied
	case ReasonResolution:
		return pkgerrors.ErrResolutionFailed
	default:
		return pkgerrors.ErrProbeUnreachable
	}
}
