package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"hostwatch/internal/target"
	pkgerrors "hostwatch/pkg/errors"
)

// HostResolver is the subset of *net.Resolver used for forward lookups.
type HostResolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// ExecutorConfig holds configuration for the Executor.
type ExecutorConfig struct {
	Strategy Strategy
	Timeout  time.Duration
	Resolver HostResolver
}

// Executor runs single probes. It is stateless apart from its configuration
// and safe for concurrent use.
type Executor struct {
	config ExecutorConfig
}

// NewExecutor creates a new Executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}
	if cfg.Resolver == nil {
		cfg.Resolver = net.DefaultResolver
	}
	return &Executor{config: cfg}
}

// Timeout returns the per-probe timeout.
func (e *Executor) Timeout() time.Duration {
	return e.config.Timeout
}

// StrategyName returns the name of the configured transport.
func (e *Executor) StrategyName() string {
	return e.config.Strategy.Name()
}

// Probe checks one target. Hostname targets are resolved first, inside the
// same timeout budget. Every failure, including a panicking transport, comes
// back as a Result with OK false.
func (e *Executor) Probe(ctx context.Context, t target.Target) (result Result) {
	result.At = time.Now()

	defer func() {
		if r := recover(); r != nil {
			result = e.failure(t, result.At, result.Addr, fmt.Errorf("transport panic: %v", r))
		}
	}()

	probeCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	addr := t.Addr
	if t.IsHostname() {
		resolved, err := e.resolve(probeCtx, t.Host)
		if err != nil {
			return e.failure(t, result.At, netip.Addr{}, err)
		}
		addr = resolved
	}
	result.Addr = addr

	latency, err := e.config.Strategy.Probe(probeCtx, addr)
	if err != nil {
		return e.failure(t, result.At, addr, err)
	}

	result.OK = true
	result.Latency = latency
	return result
}

func (e *Executor) resolve(ctx context.Context, host string) (netip.Addr, error) {
	addrs, err := e.config.Resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return netip.Addr{}, err
		}
		return netip.Addr{}, fmt.Errorf("%w: %v", pkgerrors.ErrResolutionFailed, err)
	}
	if len(addrs) == 0 {
		return netip.Addr{}, fmt.Errorf("%w: no addresses for %s", pkgerrors.ErrResolutionFailed, host)
	}

	// Prefer IPv4: unprivileged ICMPv6 is the more commonly missing path.
	for _, a := range addrs {
		if a.Unmap().Is4() {
			return a.Unmap(), nil
		}
	}
	return addrs[0], nil
}

func (e *Executor) failure(t target.Target, at time.Time, addr netip.Addr, err error) Result {
	reason := Classify(err)
	if reason != ReasonCanceled && reason != ReasonError && !errors.Is(err, reasonError(reason)) {
		err = fmt.Errorf("%w: %v", reasonError(reason), err)
	}
	return Result{
		Addr:   addr,
		Reason: reason,
		At:     at,
		Err:    &pkgerrors.ProbeError{Target: t.Key(), Reason: string(reason), Err: err},
	}
}
