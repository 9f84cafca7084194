package probe

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"time"
)

// Strategy defines how a single reachability check is performed.
type Strategy interface {
	// Name returns the strategy identifier ("icmp" or "tcp").
	Name() string
	// Probe performs one check against addr and returns the round-trip time.
	// Implementations must honour ctx cancellation.
	Probe(ctx context.Context, addr netip.Addr) (time.Duration, error)
}

// StrategyOptions carries transport-specific knobs for NewStrategy.
type StrategyOptions struct {
	// TCPPort is the port dialled by the tcp strategy.
	TCPPort int
	// Privileged forces raw-socket ICMP on or off. Nil picks automatically.
	Privileged *bool
}

// TCPStrategy measures latency via a TCP handshake to addr:port.
// Fast, needs no privileges, but only sees hosts with a listening or
// firewalled-closed port.
type TCPStrategy struct {
	Port int
}

func (s *TCPStrategy) Name() string { return "tcp" }

func (s *TCPStrategy) Probe(ctx context.Context, addr netip.Addr) (time.Duration, error) {
	address := net.JoinHostPort(addr.String(), strconv.Itoa(s.Port))

	start := time.Now()
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return 0, fmt.Errorf("tcp handshake failed: %w", err)
	}
	elapsed := time.Since(start)
	conn.Close()

	return elapsed, nil
}

// NewStrategy creates a Strategy by name. Valid names: "icmp", "tcp".
func NewStrategy(name string, opts StrategyOptions) (Strategy, error) {
	switch name {
	case "icmp", "ping", "":
		return NewICMPStrategy(opts.Privileged), nil
	case "tcp":
		port := opts.TCPPort
		if port <= 0 {
			port = 80
		}
		if port > 65535 {
			return nil, fmt.Errorf("invalid tcp port: %d", port)
		}
		return &TCPStrategy{Port: port}, nil
	default:
		return nil, fmt.Errorf("unknown probe strategy: %s (available: icmp, tcp)", name)
	}
}
