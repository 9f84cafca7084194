package target

import (
	"fmt"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	pkgerrors "hostwatch/pkg/errors"
)

// DefaultMaxAddresses bounds how many targets one spec may expand to.
const DefaultMaxAddresses = 65536

// hardHostBits caps enumeration even when MaxAddresses is unlimited, so an
// IPv6 /64 cannot spin forever.
const hardHostBits = 24

// Expander turns raw specs into a flat, de-duplicated list of targets.
// Expansion performs no network I/O.
type Expander struct {
	// MaxAddresses is the largest number of targets a single spec may
	// produce. Zero means no limit beyond the built-in hard cap.
	MaxAddresses int
}

// NewExpander creates an Expander with the default address limit.
func NewExpander() *Expander {
	return &Expander{MaxAddresses: DefaultMaxAddresses}
}

// Expand expands every spec. A spec that fails is reported as a
// *errors.SpecError and skipped; the remaining specs are still expanded.
// Targets are returned in order of first appearance with duplicates removed.
func (e *Expander) Expand(specs []Spec) ([]Target, []error) {
	var (
		targets []Target
		errs    []error
	)
	seen := make(map[string]struct{})

	for _, spec := range specs {
		expanded, err := e.expandOne(spec.Text)
		if err != nil {
			errs = append(errs, &pkgerrors.SpecError{Line: spec.Line, Spec: spec.Text, Err: err})
			continue
		}
		for _, t := range expanded {
			t.Spec = spec.Text
			if _, dup := seen[t.Key()]; dup {
				continue
			}
			seen[t.Key()] = struct{}{}
			targets = append(targets, t)
		}
	}

	return targets, errs
}

func (e *Expander) expandOne(spec string) ([]Target, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, pkgerrors.ErrInvalidSpec
	}

	if strings.Contains(spec, "://") {
		return expandURL(spec)
	}

	if strings.Contains(spec, "/") {
		return e.expandPrefix(spec)
	}

	if lo, hi, ok, err := splitRange(spec); ok {
		if err != nil {
			return nil, err
		}
		return e.expandRange(lo, hi)
	}

	return expandHost(spec)
}

// expandURL reduces a URL to its host and classifies that host.
func expandURL(spec string) ([]Target, error) {
	u, err := url.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInvalidSpec, err)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: URL has no host", pkgerrors.ErrInvalidSpec)
	}
	return expandHost(host)
}

// expandHost handles a single literal address or hostname.
func expandHost(spec string) ([]Target, error) {
	if addr, err := netip.ParseAddr(spec); err == nil {
		return []Target{{Addr: normalize(addr)}}, nil
	}
	if !validHostname(spec) {
		return nil, fmt.Errorf("%w: not an address or hostname", pkgerrors.ErrInvalidSpec)
	}
	return []Target{{Host: strings.TrimSuffix(strings.ToLower(spec), ".")}}, nil
}

func (e *Expander) expandPrefix(spec string) ([]Target, error) {
	prefix, err := netip.ParsePrefix(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInvalidSpec, err)
	}
	if prefix.Addr().Is4In6() && prefix.Bits() >= 96 {
		prefix = netip.PrefixFrom(prefix.Addr().Unmap(), prefix.Bits()-96)
	}
	prefix = prefix.Masked()

	hostBits := prefix.Addr().BitLen() - prefix.Bits()
	if hostBits > hardHostBits {
		return nil, pkgerrors.ErrTooManyAddresses
	}
	total := 1 << hostBits

	// IPv4 blocks below /31 lose network and broadcast. IPv6 blocks below
	// /127 lose the subnet-router anycast address.
	skipFirst, skipLast := false, false
	if prefix.Addr().Is4() && prefix.Bits() < 31 {
		skipFirst, skipLast = true, true
	} else if prefix.Addr().Is6() && prefix.Bits() < 127 {
		skipFirst = true
	}

	usable := total
	if skipFirst {
		usable--
	}
	if skipLast {
		usable--
	}
	if e.MaxAddresses > 0 && usable > e.MaxAddresses {
		return nil, fmt.Errorf("%w: %d addresses (limit %d)", pkgerrors.ErrTooManyAddresses, usable, e.MaxAddresses)
	}

	targets := make([]Target, 0, usable)
	addr := prefix.Addr()
	for i := 0; i < total; i++ {
		if !(skipFirst && i == 0) && !(skipLast && i == total-1) {
			targets = append(targets, Target{Addr: addr})
		}
		addr = addr.Next()
	}
	return targets, nil
}

func (e *Expander) expandRange(lo, hi netip.Addr) ([]Target, error) {
	if lo.Is4() != hi.Is4() {
		return nil, fmt.Errorf("%w: address families differ", pkgerrors.ErrInvalidRange)
	}
	if hi.Less(lo) {
		return nil, fmt.Errorf("%w: %s is below %s", pkgerrors.ErrInvalidRange, hi, lo)
	}

	limit := 1 << hardHostBits
	if e.MaxAddresses > 0 && e.MaxAddresses < limit {
		limit = e.MaxAddresses
	}

	var targets []Target
	for addr := lo; addr.IsValid() && !hi.Less(addr); addr = addr.Next() {
		if len(targets) == limit {
			return nil, fmt.Errorf("%w: range exceeds %d addresses", pkgerrors.ErrTooManyAddresses, limit)
		}
		targets = append(targets, Target{Addr: addr})
	}
	return targets, nil
}

// splitRange recognises "a-b" and the short IPv4 form "a.b.c.d-e". It only
// claims the spec when the left side is an address, so hyphenated hostnames
// fall through to hostname handling.
func splitRange(spec string) (lo, hi netip.Addr, ok bool, err error) {
	left, right, found := strings.Cut(spec, "-")
	if !found {
		return lo, hi, false, nil
	}
	lo, perr := netip.ParseAddr(strings.TrimSpace(left))
	if perr != nil {
		return lo, hi, false, nil
	}
	lo = normalize(lo)
	right = strings.TrimSpace(right)

	if hi, perr = netip.ParseAddr(right); perr == nil {
		return lo, normalize(hi), true, nil
	}

	if lo.Is4() {
		if octet, perr := strconv.ParseUint(right, 10, 8); perr == nil {
			b := lo.As4()
			b[3] = byte(octet)
			return lo, netip.AddrFrom4(b), true, nil
		}
	}

	return lo, hi, true, fmt.Errorf("%w: %q is not an address", pkgerrors.ErrInvalidRange, right)
}

// normalize folds IPv4-mapped IPv6 addresses to IPv4. A zone is kept: it
// selects the interface a link-local address is reached through.
func normalize(addr netip.Addr) netip.Addr {
	return addr.Unmap()
}

// validHostname checks RFC 1123 label syntax, relaxed to allow underscores as
// LAN resolvers commonly serve them. Names whose last label is numeric are
// mistyped addresses rather than hostnames.
func validHostname(name string) bool {
	name = strings.TrimSuffix(name, ".")
	if name == "" || len(name) > 253 {
		return false
	}
	labels := strings.Split(name, ".")
	for _, label := range labels {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, c := range label {
			switch {
			case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			default:
				return false
			}
		}
	}
	last := labels[len(labels)-1]
	if _, err := strconv.Atoi(last); err == nil {
		return false
	}
	return true
}
