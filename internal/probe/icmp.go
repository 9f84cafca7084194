package probe

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/macrat/go-parallel-pinger"

	pkgerrors "hostwatch/pkg/errors"
)

// ICMPStrategy sends one echo request per probe. A single IPv4 and a single
// IPv6 pinger are shared by every concurrent probe; they start on first use
// and stop on Close.
type ICMPStrategy struct {
	mu         sync.Mutex
	privileged *bool
	v4         *pinger.Pinger
	v6         *pinger.Pinger
	stop       context.CancelFunc
}

// NewICMPStrategy creates an ICMP strategy. A nil privileged picks raw
// sockets when running as root and unprivileged datagram sockets otherwise.
func NewICMPStrategy(privileged *bool) *ICMPStrategy {
	return &ICMPStrategy{privileged: privileged}
}

func (s *ICMPStrategy) Name() string { return "icmp" }

func (s *ICMPStrategy) Probe(ctx context.Context, addr netip.Addr) (time.Duration, error) {
	p, err := s.pingerFor(addr)
	if err != nil {
		return 0, err
	}

	result, err := p.Ping(ctx, ipAddr(addr), 1, time.Second)
	if err != nil {
		return 0, err
	}
	if result.Recv == 0 {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, pkgerrors.ErrProbeUnreachable
	}
	return result.AvgRTT, nil
}

// ipAddr converts addr for the pinger, keeping the zone a link-local
// address needs to pick its interface.
func ipAddr(addr netip.Addr) *net.IPAddr {
	return &net.IPAddr{IP: net.IP(addr.AsSlice()), Zone: addr.Zone()}
}

// Close stops the shared pingers. The strategy restarts them if used again.
func (s *ICMPStrategy) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		s.stop()
	}
	s.stop = nil
	s.v4 = nil
	s.v6 = nil
	return nil
}

func (s *ICMPStrategy) pingerFor(addr netip.Addr) (*pinger.Pinger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop == nil {
		if err := s.start(); err != nil {
			return nil, err
		}
	}
	if addr.Is4() {
		return s.v4, nil
	}
	if s.v6 == nil {
		return nil, fmt.Errorf("%w: ipv6 ping is not available", pkgerrors.ErrProbeUnreachable)
	}
	return s.v6, nil
}

// start must be called with s.mu held.
func (s *ICMPStrategy) start() error {
	privileged := defaultPrivileged()
	if s.privileged != nil {
		privileged = *s.privileged
	}

	v4 := pinger.NewIPv4()
	v6 := pinger.NewIPv6()
	v4.SetPrivileged(privileged)
	v6.SetPrivileged(privileged)

	ctx, stop := context.WithCancel(context.Background())

	err := v4.Start(ctx)
	if err != nil && s.privileged == nil {
		// Raw sockets and ping sockets are permitted independently; try the other.
		v4.SetPrivileged(!privileged)
		v6.SetPrivileged(!privileged)
		err = v4.Start(ctx)
	}
	if err != nil {
		stop()
		return &pkgerrors.ProbeError{Target: "icmp", Reason: string(ReasonPermission), Err: fmt.Errorf("%w: %v", pkgerrors.ErrPermissionDenied, err)}
	}
	if err := v6.Start(ctx); err != nil {
		// IPv6 may be unavailable on the host; IPv6 probes will then fail
		// individually while IPv4 keeps working.
		v6 = nil
	}

	s.v4 = v4
	s.v6 = v6
	s.stop = stop
	return nil
}
