package metrics

import (
	"fmt"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostwatch/internal/probe"
	"hostwatch/internal/target"
	pkgerrors "hostwatch/pkg/errors"
)

func ms(n float64) time.Duration {
	return time.Duration(n * float64(time.Millisecond))
}

func success(latency time.Duration) probe.Result {
	return probe.Result{OK: true, Latency: latency, At: time.Now()}
}

func failure(reason probe.Reason) probe.Result {
	return probe.Result{Reason: reason, At: time.Now()}
}

func newTestStore(t *testing.T, opts Options, addrs ...string) *Store {
	t.Helper()
	targets := make([]target.Target, 0, len(addrs))
	for _, a := range addrs {
		targets = append(targets, target.Target{Addr: netip.MustParseAddr(a), Spec: a})
	}
	return NewStore(targets, opts)
}

func TestStore_InitialState(t *testing.T) {
	s := newTestStore(t, Options{}, "10.0.0.1", "10.0.0.2")
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, DefaultWindowSize, s.Options().WindowSize)

	snap := s.Snapshot()
	require.Len(t, snap.Rows, 2)
	assert.Equal(t, Summary{Total: 2, Unknown: 2}, snap.Summary)

	row := snap.Rows[0]
	assert.Equal(t, "10.0.0.1", row.Key)
	assert.Equal(t, "10.0.0.1", row.DisplayName)
	assert.Equal(t, StatusUnknown, row.Status)
	assert.False(t, row.RateKnown)
	assert.False(t, row.JitterKnown)
	assert.Equal(t, TrendUnknown, row.Trend)
	assert.Empty(t, row.History)
}

func TestStore_SuccessRate(t *testing.T) {
	s := newTestStore(t, Options{}, "10.0.0.1")

	for _, res := range []probe.Result{success(ms(10)), failure(probe.ReasonTimeout), success(ms(11)), failure(probe.ReasonTimeout)} {
		require.NoError(t, s.Record("10.0.0.1", res))
	}

	row, found := s.Row("10.0.0.1")
	require.True(t, found)
	assert.True(t, row.RateKnown)
	assert.InDelta(t, 0.5, row.SuccessRate, 1e-9)
	assert.Equal(t, uint64(4), row.Attempts)
	assert.Equal(t, uint64(2), row.Successes)
}

func TestStore_Jitter(t *testing.T) {
	s := newTestStore(t, Options{}, "10.0.0.1")
	for _, l := range []float64{10, 20, 15} {
		require.NoError(t, s.Record("10.0.0.1", success(ms(l))))
	}

	row, _ := s.Row("10.0.0.1")
	require.True(t, row.JitterKnown)
	assert.Equal(t, ms(7.5), row.Jitter)
	assert.Equal(t, ms(15), row.Average)
	assert.Equal(t, ms(15), row.Latency)
}

func TestStore_Trend(t *testing.T) {
	tests := []struct {
		name     string
		previous float64
		last     float64
		want     Trend
	}{
		{"rising", 20, 30, TrendUp},
		{"falling", 30, 20, TrendDown},
		{"equal", 20, 20, TrendFlat},
		{"within epsilon", 20, 20.4, TrendFlat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, Options{Epsilon: DefaultEpsilon}, "10.0.0.1")
			require.NoError(t, s.Record("10.0.0.1", success(ms(tt.previous))))

			row, _ := s.Row("10.0.0.1")
			assert.Equal(t, TrendUnknown, row.Trend, "one sample is not a trend")

			require.NoError(t, s.Record("10.0.0.1", success(ms(tt.last))))
			row, _ = s.Row("10.0.0.1")
			assert.Equal(t, tt.want, row.Trend)
		})
	}
}

func TestStore_WindowKeepsMostRecent(t *testing.T) {
	const n = 5
	s := newTestStore(t, Options{WindowSize: n}, "10.0.0.1")
	for i := 1; i <= n+1; i++ {
		require.NoError(t, s.Record("10.0.0.1", success(ms(float64(i)))))
	}

	row, _ := s.Row("10.0.0.1")
	want := []time.Duration{ms(2), ms(3), ms(4), ms(5), ms(6)}
	if diff := cmp.Diff(want, row.History); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint64(n+1), row.Successes)
}

func TestStore_FailureBetweenSuccesses(t *testing.T) {
	s := newTestStore(t, Options{}, "10.0.0.1")
	require.NoError(t, s.Record("10.0.0.1", success(ms(20))))
	require.NoError(t, s.Record("10.0.0.1", success(ms(30))))

	before, _ := s.Row("10.0.0.1")

	require.NoError(t, s.Record("10.0.0.1", failure(probe.ReasonTimeout)))
	down, _ := s.Row("10.0.0.1")
	assert.Equal(t, StatusDown, down.Status)
	assert.Equal(t, probe.ReasonTimeout, down.LastReason)
	assert.Equal(t, 1, down.ConsecutiveFailures)
	assert.Equal(t, before.Jitter, down.Jitter)
	assert.Equal(t, before.Trend, down.Trend)
	assert.Equal(t, before.History, down.History)

	require.NoError(t, s.Record("10.0.0.1", success(ms(30))))
	up, _ := s.Row("10.0.0.1")
	assert.Equal(t, StatusUp, up.Status)
	assert.Equal(t, TrendFlat, up.Trend)
	assert.Equal(t, 0, up.ConsecutiveFailures)
	assert.Empty(t, up.LastError)
	// 20, 30, 30: |10| + |0| over two gaps.
	assert.Equal(t, ms(5), up.Jitter)
}

func TestStore_FailureRecordsError(t *testing.T) {
	s := newTestStore(t, Options{}, "10.0.0.1")
	res := failure(probe.ReasonUnreachable)
	res.Err = &pkgerrors.ProbeError{Target: "10.0.0.1", Reason: "unreachable", Err: pkgerrors.ErrProbeUnreachable}
	require.NoError(t, s.Record("10.0.0.1", res))

	row, _ := s.Row("10.0.0.1")
	assert.Contains(t, row.LastError, "unreachable")
	assert.True(t, row.RateKnown)
	assert.Zero(t, row.SuccessRate)
	assert.False(t, row.JitterKnown)
}

func TestStore_ResolvedAddress(t *testing.T) {
	s := NewStore([]target.Target{{Host: "example.com", Spec: "example.com"}}, Options{})

	row, _ := s.Row("example.com")
	assert.Equal(t, "example.com", row.Hostname)
	assert.False(t, row.Address.IsValid())

	res := success(ms(3))
	res.Addr = netip.MustParseAddr("93.184.216.34")
	require.NoError(t, s.Record("example.com", res))

	row, _ = s.Row("example.com")
	assert.Equal(t, netip.MustParseAddr("93.184.216.34"), row.Address)
}

func TestStore_UnknownKey(t *testing.T) {
	s := newTestStore(t, Options{}, "10.0.0.1")

	err := s.Record("10.9.9.9", success(ms(1)))
	assert.ErrorIs(t, err, pkgerrors.ErrUnknownTarget)

	err = s.Annotate("10.9.9.9", "nowhere")
	assert.ErrorIs(t, err, pkgerrors.ErrUnknownTarget)

	_, found := s.Row("10.9.9.9")
	assert.False(t, found)
}

func TestStore_Annotate(t *testing.T) {
	s := newTestStore(t, Options{}, "10.0.0.1")
	require.NoError(t, s.Annotate("10.0.0.1", "gw.lan"))

	row, _ := s.Row("10.0.0.1")
	assert.Equal(t, "gw.lan", row.Hostname)
	assert.Equal(t, "gw.lan", row.DisplayName)
	assert.Equal(t, "10.0.0.1", row.Key)
}

func TestStore_DuplicateTargets(t *testing.T) {
	s := newTestStore(t, Options{}, "10.0.0.1", "10.0.0.1", "10.0.0.2")
	assert.Equal(t, 2, s.Len())
}

func TestStore_SnapshotIsDetached(t *testing.T) {
	s := newTestStore(t, Options{}, "10.0.0.1")
	require.NoError(t, s.Record("10.0.0.1", success(ms(10))))

	snap := s.Snapshot()
	snap.Rows[0].History[0] = ms(999)

	row, _ := s.Row("10.0.0.1")
	assert.Equal(t, ms(10), row.History[0])
}

func TestStore_Summary(t *testing.T) {
	s := newTestStore(t, Options{}, "10.0.0.1", "10.0.0.2", "10.0.0.3")
	require.NoError(t, s.Record("10.0.0.1", success(ms(1))))
	require.NoError(t, s.Record("10.0.0.2", failure(probe.ReasonTimeout)))

	assert.Equal(t, Summary{Total: 3, Up: 1, Down: 1, Unknown: 1}, s.Snapshot().Summary)
}

func TestStore_ConcurrentRecord(t *testing.T) {
	const (
		targets = 16
		perKey  = 200
	)
	addrs := make([]string, targets)
	for i := range addrs {
		addrs[i] = fmt.Sprintf("10.0.1.%d", i+1)
	}
	s := newTestStore(t, Options{WindowSize: 8}, addrs...)

	var wg sync.WaitGroup
	for _, a := range addrs {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			for i := 0; i < perKey; i++ {
				if i%4 == 0 {
					_ = s.Record(key, failure(probe.ReasonTimeout))
				} else {
					_ = s.Record(key, success(ms(float64(i%7+1))))
				}
			}
		}(a)
	}

	// Readers run alongside writers; every row must be internally consistent.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			for _, row := range s.Snapshot().Rows {
				assert.LessOrEqual(t, row.Successes, row.Attempts)
				assert.LessOrEqual(t, len(row.History), 8)
			}
		}
	}()

	wg.Wait()
	<-done

	for _, row := range s.Snapshot().Rows {
		assert.Equal(t, uint64(perKey), row.Attempts, row.Key)
		assert.Equal(t, uint64(perKey*3/4), row.Successes, row.Key)
	}
}

func TestSnapshot_Sorted(t *testing.T) {
	s := newTestStore(t, Options{}, "10.0.0.1", "10.0.0.2", "10.0.0.3")
	require.NoError(t, s.Record("10.0.0.1", success(ms(30))))
	require.NoError(t, s.Record("10.0.0.2", failure(probe.ReasonTimeout)))
	require.NoError(t, s.Record("10.0.0.3", success(ms(5))))

	snap := s.Snapshot()
	keys := func(sn Snapshot) []string {
		out := make([]string, 0, len(sn.Rows))
		for _, r := range sn.Rows {
			out = append(out, r.Key)
		}
		return out
	}

	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}, keys(snap.Sorted(SortByTarget)))
	assert.Equal(t, []string{"10.0.0.2", "10.0.0.1", "10.0.0.3"}, keys(snap.Sorted(SortByStatus)))
	assert.Equal(t, []string{"10.0.0.3", "10.0.0.1", "10.0.0.2"}, keys(snap.Sorted(SortByLatency)))
	assert.Equal(t, []string{"10.0.0.2", "10.0.0.1", "10.0.0.3"}, keys(snap.Sorted(SortBySuccess)))

	// The original order survives sorting.
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}, keys(snap))
}

func TestSortKey_Next(t *testing.T) {
	k := SortByTarget
	seen := []string{}
	for i := 0; i < 5; i++ {
		seen = append(seen, k.String())
		k = k.Next()
	}
	assert.Equal(t, []string{"target", "status", "latency", "success", "target"}, seen)
}
