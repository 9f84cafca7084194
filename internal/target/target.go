package target

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"strings"
)

// Target is one concrete endpoint being monitored. Hostname targets carry no
// address until a probe resolves them.
type Target struct {
	Addr netip.Addr
	Host string
	Spec string // the line this target was expanded from
}

// Key identifies the target in sets and in the metrics store: the address for
// address targets, the lower-cased hostname otherwise.
func (t Target) Key() string {
	if t.Host != "" {
		return t.Host
	}
	return t.Addr.String()
}

// IsHostname reports whether the target must be resolved before probing.
func (t Target) IsHostname() bool {
	return t.Host != ""
}

// DisplayName returns the hostname when known, otherwise the address.
func (t Target) DisplayName() string {
	return t.Key()
}

func (t Target) String() string {
	return t.Key()
}

// Spec is one raw target line together with its position in the input.
// Line is zero for specs that did not come from a file.
type Spec struct {
	Line int
	Text string
}

// ParseLines reads one spec per line. Blank lines and lines starting with
// '#' are ignored; surrounding whitespace is trimmed.
func ParseLines(r io.Reader) ([]Spec, error) {
	var specs []Spec
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		specs = append(specs, Spec{Line: line, Text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read target specs: %w", err)
	}
	return specs, nil
}

// FromStrings wraps plain strings (CLI arguments, YAML lists) as specs.
func FromStrings(ss []string) []Spec {
	specs := make([]Spec, 0, len(ss))
	for _, s := range ss {
		s = strings.TrimSpace(s)
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		specs = append(specs, Spec{Text: s})
	}
	return specs
}

// Keys returns the keys of targets in order.
func Keys(targets []Target) []string {
	keys := make([]string, len(targets))
	for i, t := range targets {
		keys[i] = t.Key()
	}
	return keys
}
