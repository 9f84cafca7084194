package target

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeResolver struct {
	names map[string][]string
	delay time.Duration
}

func (f *fakeResolver) LookupAddr(ctx context.Context, addr string) ([]string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if names, ok := f.names[addr]; ok {
		return names, nil
	}
	return nil, errors.New("no PTR record")
}

func TestAnnotator_Run(t *testing.T) {
	resolver := &fakeResolver{names: map[string][]string{
		"8.8.8.8": {"dns.google."},
		"1.1.1.1": {"one.one.one.one.", "alias.example."},
	}}
	a := &Annotator{Resolver: resolver, Workers: 2, Timeout: time.Second}

	targets := []Target{
		{Addr: netip.MustParseAddr("8.8.8.8")},
		{Addr: netip.MustParseAddr("1.1.1.1")},
		{Addr: netip.MustParseAddr("10.9.9.9")},
		{Host: "example.com"},
	}

	var mu sync.Mutex
	got := map[string]string{}
	a.Run(context.Background(), targets, func(key, name string) {
		mu.Lock()
		defer mu.Unlock()
		got[key] = name
	})

	assert.Equal(t, map[string]string{
		"8.8.8.8": "dns.google",
		"1.1.1.1": "one.one.one.one",
	}, got)
}

func TestAnnotator_RespectsTimeout(t *testing.T) {
	resolver := &fakeResolver{
		names: map[string][]string{"8.8.8.8": {"dns.google."}},
		delay: time.Second,
	}
	a := &Annotator{Resolver: resolver, Workers: 1, Timeout: 10 * time.Millisecond}

	start := time.Now()
	called := false
	a.Run(context.Background(), []Target{{Addr: netip.MustParseAddr("8.8.8.8")}}, func(string, string) {
		called = true
	})

	assert.False(t, called)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
