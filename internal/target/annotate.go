package target

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// AddrResolver is the subset of *net.Resolver used for reverse lookups.
type AddrResolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// AnnotateFunc receives the reverse-DNS name found for a target key.
type AnnotateFunc func(key, hostname string)

// Annotator looks up hostnames for address targets. Lookups are best-effort:
// failures are dropped and the target keeps its address as display name.
type Annotator struct {
	Resolver AddrResolver
	Workers  int64
	Timeout  time.Duration
}

// NewAnnotator creates an Annotator backed by the system resolver.
func NewAnnotator() *Annotator {
	return &Annotator{
		Resolver: net.DefaultResolver,
		Workers:  8,
		Timeout:  2 * time.Second,
	}
}

// Run resolves every address target and reports each hit through fn. It
// blocks until all lookups finish or ctx is cancelled, so callers run it in
// its own goroutine alongside the scheduler.
func (a *Annotator) Run(ctx context.Context, targets []Target, fn AnnotateFunc) {
	workers := a.Workers
	if workers <= 0 {
		workers = 8
	}
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	sem := semaphore.NewWeighted(workers)
	var wg sync.WaitGroup

	for _, t := range targets {
		if t.IsHostname() || !t.Addr.IsValid() {
			continue
		}
		wg.Add(1)
		go func(t Target) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			lookupCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			names, err := a.Resolver.LookupAddr(lookupCtx, t.Addr.String())
			if err != nil || len(names) == 0 {
				return
			}
			name := strings.TrimSuffix(names[0], ".")
			if name != "" {
				fn(t.Key(), name)
			}
		}(t)
	}

	wg.Wait()
}
