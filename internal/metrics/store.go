package metrics

import (
	"fmt"
	"net/netip"
	"sync"
	"time"

	"hostwatch/internal/probe"
	"hostwatch/internal/target"
	pkgerrors "hostwatch/pkg/errors"
)

const (
	DefaultWindowSize = 20
	DefaultEpsilon    = 500 * time.Microsecond
)

// Options configures the rolling window and trend sensitivity.
type Options struct {
	WindowSize int
	Epsilon    time.Duration
}

// record is the mutable per-target state. Every field is guarded by mu so a
// reader never sees a half-applied result.
type record struct {
	mu sync.Mutex

	key      string
	spec     string
	hostname string
	address  netip.Addr

	window     window
	attempts   uint64
	successes  uint64
	last       time.Duration
	previous   time.Duration
	status     Status
	lastReason probe.Reason
	lastError  string
	failStreak int
	updatedAt  time.Time
}

// Store owns the metrics of every target in a monitoring session. The set
// of targets is fixed at construction, so the map itself is never written
// after NewStore and only the per-record locks are taken at runtime.
type Store struct {
	opts    Options
	order   []string
	records map[string]*record
}

// NewStore creates one record per target.
func NewStore(targets []target.Target, opts Options) *Store {
	if opts.WindowSize <= 0 {
		opts.WindowSize = DefaultWindowSize
	}
	if opts.Epsilon < 0 {
		opts.Epsilon = 0
	}

	s := &Store{
		opts:    opts,
		order:   make([]string, 0, len(targets)),
		records: make(map[string]*record, len(targets)),
	}
	for _, t := range targets {
		key := t.Key()
		if _, dup := s.records[key]; dup {
			continue
		}
		rec := &record{
			key:     key,
			spec:    t.Spec,
			address: t.Addr,
			window:  newWindow(opts.WindowSize),
		}
		if t.IsHostname() {
			rec.hostname = t.Host
		}
		s.records[key] = rec
		s.order = append(s.order, key)
	}
	return s
}

// Len returns the number of targets tracked.
func (s *Store) Len() int {
	return len(s.order)
}

// Options returns the effective options.
func (s *Store) Options() Options {
	return s.opts
}

// Record applies one probe result to its target. It is the only path that
// mutates metrics.
func (s *Store) Record(key string, res probe.Result) error {
	rec, ok := s.records[key]
	if !ok {
		return fmt.Errorf("%w: %s", pkgerrors.ErrUnknownTarget, key)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.attempts++
	rec.updatedAt = res.At
	if rec.updatedAt.IsZero() {
		rec.updatedAt = time.Now()
	}
	if res.Addr.IsValid() {
		rec.address = res.Addr
	}

	if res.OK {
		rec.successes++
		rec.window.push(res.Latency)
		rec.previous = rec.last
		rec.last = res.Latency
		rec.status = StatusUp
		rec.lastReason = probe.ReasonNone
		rec.lastError = ""
		rec.failStreak = 0
		return nil
	}

	// A failure leaves the window and the last/previous pair untouched.
	rec.status = StatusDown
	rec.lastReason = res.Reason
	rec.failStreak++
	if res.Err != nil {
		rec.lastError = res.Err.Error()
	} else {
		rec.lastError = string(res.Reason)
	}
	return nil
}

// Annotate sets the reverse-DNS name shown for an address target.
func (s *Store) Annotate(key, hostname string) error {
	rec, ok := s.records[key]
	if !ok {
		return fmt.Errorf("%w: %s", pkgerrors.ErrUnknownTarget, key)
	}

	rec.mu.Lock()
	rec.hostname = hostname
	rec.mu.Unlock()
	return nil
}

// Snapshot copies every record, one lock at a time, and derives jitter,
// trend, average and success rate from the copies.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		TakenAt: time.Now(),
		Rows:    make([]Row, 0, len(s.order)),
	}
	for _, key := range s.order {
		row := s.records[key].row(s.opts.Epsilon)
		snap.Summary.add(row.Status)
		snap.Rows = append(snap.Rows, row)
	}
	snap.Summary.Total = len(snap.Rows)
	return snap
}

// Row returns the current row of a single target.
func (s *Store) Row(key string) (Row, bool) {
	rec, ok := s.records[key]
	if !ok {
		return Row{}, false
	}
	return rec.row(s.opts.Epsilon), true
}

func (r *record) row(epsilon time.Duration) Row {
	r.mu.Lock()
	history := r.window.values()
	row := Row{
		Key:                 r.key,
		Spec:                r.spec,
		Hostname:            r.hostname,
		Address:             r.address,
		Status:              r.status,
		Latency:             r.last,
		Attempts:            r.attempts,
		Successes:           r.successes,
		LastReason:          r.lastReason,
		LastError:           r.lastError,
		ConsecutiveFailures: r.failStreak,
		UpdatedAt:           r.updatedAt,
		History:             history,
	}
	previous := r.previous
	r.mu.Unlock()

	row.DisplayName = row.Key
	if row.Hostname != "" {
		row.DisplayName = row.Hostname
	}
	row.Average = Average(history)
	row.Jitter, row.JitterKnown = Jitter(history)
	row.SuccessRate, row.RateKnown = SuccessRate(row.Successes, row.Attempts)
	row.Trend = TrendOf(previous, row.Latency, row.Successes, epsilon)
	return row
}
