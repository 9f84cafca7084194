package monitor

import (
	"context"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostwatch/internal/metrics"
	"hostwatch/internal/probe"
	"hostwatch/internal/target"
	pkgerrors "hostwatch/pkg/errors"
)

type proberFunc func(ctx context.Context, t target.Target) probe.Result

func (f proberFunc) Probe(ctx context.Context, t target.Target) probe.Result {
	return f(ctx, t)
}

func makeTargets(n int) []target.Target {
	out := make([]target.Target, n)
	for i := range out {
		out[i] = target.Target{Addr: netip.AddrFrom4([4]byte{10, 0, byte(i / 256), byte(i % 256)})}
	}
	return out
}

func up(latency time.Duration) probe.Result {
	return probe.Result{OK: true, Latency: latency, At: time.Now()}
}

func TestOptions_Validate(t *testing.T) {
	assert.NoError(t, Options{Interval: 2 * time.Second, Timeout: time.Second, Workers: 1}.Validate())

	err := Options{Interval: time.Second, Timeout: time.Second, Workers: 1}.Validate()
	assert.ErrorIs(t, err, pkgerrors.ErrTimeoutNotBelowInterval)

	assert.Error(t, Options{Interval: time.Second, Timeout: 100 * time.Millisecond, Workers: 0}.Validate())
	assert.Error(t, Options{Interval: 0, Timeout: 0, Workers: 4}.Validate())
}

func TestNew_NoTargets(t *testing.T) {
	store := metrics.NewStore(nil, metrics.Options{})
	_, err := New(store, proberFunc(nil), nil, Options{Interval: time.Second, Timeout: 100 * time.Millisecond, Workers: 1})
	assert.ErrorIs(t, err, pkgerrors.ErrNoTargets)
}

func TestRunCycle_ProbesEveryTargetOnce(t *testing.T) {
	const workers = 3
	targets := makeTargets(25)
	store := metrics.NewStore(targets, metrics.Options{})

	var inflight, peak atomic.Int32
	var mu sync.Mutex
	calls := map[string]int{}

	prober := proberFunc(func(ctx context.Context, tg target.Target) probe.Result {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		mu.Lock()
		calls[tg.Key()]++
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		return up(5 * time.Millisecond)
	})

	s, err := New(store, prober, targets, Options{Interval: time.Second, Timeout: 500 * time.Millisecond, Workers: workers})
	require.NoError(t, err)
	defer s.Stop()

	stats, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CycleStats{Cycle: 1, Dispatched: 25, Completed: 25}, stats)

	assert.Len(t, calls, 25)
	for key, n := range calls {
		assert.Equal(t, 1, n, key)
	}
	assert.LessOrEqual(t, peak.Load(), int32(workers))

	for _, row := range store.Snapshot().Rows {
		assert.Equal(t, uint64(1), row.Attempts, row.Key)
		assert.Equal(t, metrics.StatusUp, row.Status, row.Key)
	}
}

func TestRunCycle_Repeated(t *testing.T) {
	targets := makeTargets(4)
	store := metrics.NewStore(targets, metrics.Options{})
	s, err := New(store, proberFunc(func(ctx context.Context, tg target.Target) probe.Result {
		return up(time.Millisecond)
	}), targets, Options{Interval: time.Second, Timeout: 100 * time.Millisecond, Workers: 2})
	require.NoError(t, err)
	defer s.Stop()

	for i := 0; i < 3; i++ {
		_, err := s.RunCycle(context.Background())
		require.NoError(t, err)
	}

	for _, row := range store.Snapshot().Rows {
		assert.Equal(t, uint64(3), row.Attempts)
	}
	stats := s.Stats()
	assert.Equal(t, uint64(3), stats.Cycle)
	assert.Equal(t, 12, stats.Completed)
}

func TestRunCycle_AbandonsStuckProbe(t *testing.T) {
	targets := makeTargets(2)
	stuck := targets[0].Key()
	store := metrics.NewStore(targets, metrics.Options{})

	release := make(chan struct{})
	var first atomic.Bool
	prober := proberFunc(func(ctx context.Context, tg target.Target) probe.Result {
		if tg.Key() == stuck && first.CompareAndSwap(false, true) {
			// Ignores ctx, like a transport that never honours cancellation.
			<-release
			return up(999 * time.Millisecond)
		}
		return up(3 * time.Millisecond)
	})

	opts := Options{Interval: time.Second, Timeout: 20 * time.Millisecond, Workers: 2}
	s, err := New(store, prober, targets, opts)
	require.NoError(t, err)
	defer s.Stop()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	stats, err := s.RunCycle(ctx)
	cancel()
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, stats.Completed)

	stats, err = s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Abandoned)
	assert.Equal(t, 2, stats.Dispatched)
	assert.Equal(t, 2, stats.Completed)

	release <- struct{}{}
	require.Eventually(t, func() bool {
		return s.Stats().Discarded == 1
	}, time.Second, 5*time.Millisecond)

	row, ok := store.Row(stuck)
	require.True(t, ok)
	assert.Equal(t, uint64(1), row.Attempts)
	assert.Equal(t, 3*time.Millisecond, row.Latency)
}

func TestRunCycle_SkipsTargetStillRunning(t *testing.T) {
	targets := makeTargets(1)
	store := metrics.NewStore(targets, metrics.Options{})

	started := make(chan struct{})
	release := make(chan struct{})
	prober := proberFunc(func(ctx context.Context, tg target.Target) probe.Result {
		close(started)
		<-release
		return up(time.Millisecond)
	})

	s, err := New(store, prober, targets, Options{Interval: 10 * time.Second, Timeout: 5 * time.Second, Workers: 1})
	require.NoError(t, err)

	done := make(chan CycleStats)
	go func() {
		st, _ := s.RunCycle(context.Background())
		done <- st
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	stats, _ := s.RunCycle(ctx)
	cancel()
	assert.Equal(t, CycleStats{Cycle: 2, Skipped: 1}, stats)

	close(release)
	first := <-done
	assert.Equal(t, 1, first.Completed)
	require.NoError(t, s.Stop())
}

func TestRunCycle_DiscardsCanceled(t *testing.T) {
	targets := makeTargets(3)
	store := metrics.NewStore(targets, metrics.Options{})
	s, err := New(store, proberFunc(func(ctx context.Context, tg target.Target) probe.Result {
		return probe.Result{Reason: probe.ReasonCanceled, Err: context.Canceled, At: time.Now()}
	}), targets, Options{Interval: time.Second, Timeout: 100 * time.Millisecond, Workers: 3})
	require.NoError(t, err)
	defer s.Stop()

	stats, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Discarded)
	assert.Zero(t, stats.Completed)

	for _, row := range store.Snapshot().Rows {
		assert.Zero(t, row.Attempts)
		assert.Equal(t, metrics.StatusUnknown, row.Status)
	}
}

func TestStartStop(t *testing.T) {
	targets := makeTargets(5)
	store := metrics.NewStore(targets, metrics.Options{})
	s, err := New(store, proberFunc(func(ctx context.Context, tg target.Target) probe.Result {
		return up(time.Millisecond)
	}), targets, Options{Interval: 30 * time.Millisecond, Timeout: 10 * time.Millisecond, Workers: 2})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), pkgerrors.ErrSchedulerRunning)

	require.Eventually(t, func() bool {
		for _, row := range store.Snapshot().Rows {
			if row.Attempts < 2 {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())

	after := s.Stats()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, after, s.Stats(), "no cycles after Stop")

	assert.ErrorIs(t, s.Stop(), pkgerrors.ErrSchedulerStopped)
	assert.ErrorIs(t, s.Start(context.Background()), pkgerrors.ErrSchedulerStopped)
	_, err = s.RunCycle(context.Background())
	assert.ErrorIs(t, err, pkgerrors.ErrSchedulerStopped)
}

func TestStop_DrainsInFlight(t *testing.T) {
	targets := makeTargets(1)
	store := metrics.NewStore(targets, metrics.Options{})

	started := make(chan struct{}, 1)
	var finished atomic.Bool
	prober := proberFunc(func(ctx context.Context, tg target.Target) probe.Result {
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(40 * time.Millisecond)
		finished.Store(true)
		return up(40 * time.Millisecond)
	})

	s, err := New(store, prober, targets, Options{Interval: time.Second, Timeout: 500 * time.Millisecond, Workers: 1})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	<-started
	require.NoError(t, s.Stop())
	assert.True(t, finished.Load(), "Stop returned before the probe finished")

	row, _ := store.Row(targets[0].Key())
	assert.Equal(t, uint64(1), row.Attempts)
}

func TestStop_BoundedByTimeout(t *testing.T) {
	targets := makeTargets(2)
	store := metrics.NewStore(targets, metrics.Options{})

	hang := make(chan struct{})
	var started sync.WaitGroup
	started.Add(len(targets))
	prober := proberFunc(func(ctx context.Context, tg target.Target) probe.Result {
		started.Done()
		<-hang // ignores ctx
		return up(time.Millisecond)
	})

	s, err := New(store, prober, targets, Options{Interval: 200 * time.Millisecond, Timeout: 50 * time.Millisecond, Workers: 2})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	started.Wait()

	begin := time.Now()
	require.NoError(t, s.Stop())
	assert.Less(t, time.Since(begin), time.Second)
	assert.Equal(t, 2, s.Stats().Abandoned)

	// Results that arrive after Stop are not recorded.
	close(hang)
	require.Eventually(t, func() bool {
		return s.Stats().Discarded == 2
	}, time.Second, 5*time.Millisecond)
	for _, row := range store.Snapshot().Rows {
		assert.Zero(t, row.Attempts)
	}
}

func TestScheduler_ManyTargetsFewWorkers(t *testing.T) {
	const m, w = 200, 8
	targets := makeTargets(m)
	store := metrics.NewStore(targets, metrics.Options{})

	var total atomic.Int64
	s, err := New(store, proberFunc(func(ctx context.Context, tg target.Target) probe.Result {
		total.Add(1)
		return up(time.Millisecond)
	}), targets, Options{Interval: time.Second, Timeout: 100 * time.Millisecond, Workers: w})
	require.NoError(t, err)
	defer s.Stop()

	stats, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, m, stats.Completed)
	assert.Equal(t, int64(m), total.Load())
	assert.Equal(t, m, store.Snapshot().Summary.Up)
}
