package metrics

import (
	"net/netip"
	"sort"
	"time"

	"hostwatch/internal/probe"
)

// Snapshot is an immutable point-in-time copy of every target's metrics.
// Nothing in it aliases live store state.
type Snapshot struct {
	TakenAt time.Time
	Rows    []Row
	Summary Summary
}

// Row is one target's metrics plus the values derived from them.
type Row struct {
	Key         string
	Spec        string
	DisplayName string
	Hostname    string
	Address     netip.Addr

	Status  Status
	Latency time.Duration // most recent successful round trip
	Average time.Duration

	Jitter      time.Duration
	JitterKnown bool

	SuccessRate float64 // 0..1
	RateKnown   bool

	Trend Trend

	Attempts            uint64
	Successes           uint64
	LastReason          probe.Reason
	LastError           string
	ConsecutiveFailures int
	UpdatedAt           time.Time

	// History holds the latency window, oldest first.
	History []time.Duration
}

// Summary counts targets by status.
type Summary struct {
	Total   int
	Up      int
	Down    int
	Unknown int
}

func (s *Summary) add(status Status) {
	switch status {
	case StatusUp:
		s.Up++
	case StatusDown:
		s.Down++
	default:
		s.Unknown++
	}
}

// SortKey selects the row order of a sorted snapshot.
type SortKey int

const (
	SortByTarget SortKey = iota // expansion order
	SortByStatus
	SortByLatency
	SortBySuccess
	sortKeyCount
)

func (k SortKey) String() string {
	switch k {
	case SortByStatus:
		return "status"
	case SortByLatency:
		return "latency"
	case SortBySuccess:
		return "success"
	default:
		return "target"
	}
}

// Next cycles through the sort keys.
func (k SortKey) Next() SortKey {
	return (k + 1) % sortKeyCount
}

// Sorted returns a copy of the snapshot with rows re-ordered. The sort is
// stable, so ties keep expansion order.
func (s Snapshot) Sorted(by SortKey) Snapshot {
	rows := make([]Row, len(s.Rows))
	copy(rows, s.Rows)

	var less func(a, b Row) bool
	switch by {
	case SortByStatus:
		// Down first, then unknown, then up: problems float to the top.
		rank := map[Status]int{StatusDown: 0, StatusUnknown: 1, StatusUp: 2}
		less = func(a, b Row) bool { return rank[a.Status] < rank[b.Status] }
	case SortByLatency:
		less = func(a, b Row) bool {
			if (a.Status == StatusUp) != (b.Status == StatusUp) {
				return a.Status == StatusUp
			}
			return a.Average < b.Average
		}
	case SortBySuccess:
		less = func(a, b Row) bool {
			if a.RateKnown != b.RateKnown {
				return a.RateKnown
			}
			return a.SuccessRate < b.SuccessRate
		}
	default:
		return Snapshot{TakenAt: s.TakenAt, Rows: rows, Summary: s.Summary}
	}

	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
	return Snapshot{TakenAt: s.TakenAt, Rows: rows, Summary: s.Summary}
}
