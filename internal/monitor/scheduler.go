package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"hostwatch/internal/metrics"
	"hostwatch/internal/probe"
	"hostwatch/internal/target"
	pkgerrors "hostwatch/pkg/errors"
)

// Prober runs one probe against one target. *probe.Executor satisfies it.
type Prober interface {
	Probe(ctx context.Context, t target.Target) probe.Result
}

// Recorder receives probe results. *metrics.Store satisfies it.
type Recorder interface {
	Record(key string, res probe.Result) error
}

// SnapshotSource is what a renderer reads from. *metrics.Store satisfies it.
type SnapshotSource interface {
	Snapshot() metrics.Snapshot
}

// Options configures the probing cadence and concurrency.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	Workers  int
	Verbose  bool // log a line per cycle
}

// Validate checks the invariants the scheduler relies on.
func (o Options) Validate() error {
	if o.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", o.Interval)
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", o.Timeout)
	}
	if o.Timeout >= o.Interval {
		return fmt.Errorf("%w: timeout %s, interval %s", pkgerrors.ErrTimeoutNotBelowInterval, o.Timeout, o.Interval)
	}
	if o.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", o.Workers)
	}
	return nil
}

// CycleStats counts what happened to the tasks of one cycle, or of every
// cycle so far when returned by Stats.
type CycleStats struct {
	Cycle      uint64
	Dispatched int
	Skipped    int
	Abandoned  int
	Completed  int
	Discarded  int
}

type slotState int

const (
	slotIdle slotState = iota
	slotQueued
	slotRunning
)

// slot tracks the single outstanding task a target may have.
type slot struct {
	target     target.Target
	state      slotState
	generation uint64
	cycle      uint64
	startedAt  time.Time
}

type task struct {
	idx        int
	generation uint64
	cycle      uint64
}

// cycleTracker lets RunCycle wait for the tasks of one cycle.
type cycleTracker struct {
	stats   CycleStats
	pending int
	done    chan struct{}
}

// Scheduler probes every target once per interval with a fixed pool of
// workers. A target never has more than one queued or running task, so the
// queue is bounded by the number of targets.
type Scheduler struct {
	opts     Options
	recorder Recorder
	prober   Prober

	mu       sync.Mutex
	slots    []slot
	queue    chan task
	cycle    uint64
	totals   CycleStats
	trackers map[uint64]*cycleTracker
	running  bool
	stopped  bool
	started  bool // workers launched

	cron    gocron.Scheduler
	baseCtx context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup
}

// New creates a scheduler. It fails on zero targets or invalid options.
func New(recorder Recorder, prober Prober, targets []target.Target, opts Options) (*Scheduler, error) {
	if len(targets) == 0 {
		return nil, pkgerrors.ErrNoTargets
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	slots := make([]slot, len(targets))
	for i, t := range targets {
		slots[i].target = t
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		opts:     opts,
		recorder: recorder,
		prober:   prober,
		slots:    slots,
		queue:    make(chan task, len(targets)),
		trackers: make(map[uint64]*cycleTracker),
		baseCtx:  ctx,
		cancel:   cancel,
	}, nil
}

// Start launches the workers and a gocron job that dispatches a cycle every
// interval, starting now. Cancelling ctx aborts in-flight probes.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return pkgerrors.ErrSchedulerStopped
	}
	if s.running {
		return pkgerrors.ErrSchedulerRunning
	}

	cron, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = cron.NewJob(
		gocron.DurationJob(s.opts.Interval),
		gocron.NewTask(func() {
			s.dispatch()
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create probe job: %w", err)
	}

	context.AfterFunc(ctx, s.cancel)
	s.startWorkersLocked()
	cron.Start()

	s.cron = cron
	s.running = true
	return nil
}

// stopGrace is how long past the probe timeout Stop waits for in-flight
// probes before giving up on them.
const stopGrace = 250 * time.Millisecond

// Stop halts dispatching, drops queued tasks and waits for in-flight probes
// to finish, for at most the probe timeout plus stopGrace. Probes still
// running after that are cancelled and their results discarded.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return pkgerrors.ErrSchedulerStopped
	}
	s.stopped = true
	s.running = false
	cron := s.cron
	close(s.queue)
	s.mu.Unlock()

	var err error
	if cron != nil {
		if shutdownErr := cron.Shutdown(); shutdownErr != nil {
			err = fmt.Errorf("failed to stop scheduler: %w", shutdownErr)
		}
	}

	drained := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(drained)
	}()

	timer := time.NewTimer(s.opts.Timeout + stopGrace)
	defer timer.Stop()

	select {
	case <-drained:
		s.cancel()
	case <-timer.C:
		s.cancel()
		s.abandonRunning()
	}

	s.mu.Lock()
	for id, tr := range s.trackers {
		close(tr.done)
		delete(s.trackers, id)
	}
	s.mu.Unlock()
	return err
}

// abandonRunning detaches every running task from its slot so that a result
// arriving after Stop is discarded.
func (s *Scheduler) abandonRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.slots {
		sl := &s.slots[i]
		if sl.state != slotRunning {
			continue
		}
		log.Printf("Stopped waiting for probe of %s after %s", sl.target.Key(), time.Since(sl.startedAt).Round(time.Millisecond))
		sl.generation++
		sl.state = slotIdle
		s.totals.Abandoned++
	}
}

// IsRunning reports whether the periodic job is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats returns totals across every cycle so far.
func (s *Scheduler) Stats() CycleStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.totals
	st.Cycle = s.cycle
	return st
}

// RunCycle dispatches one cycle and waits until each of its tasks has
// completed or been abandoned. It works with or without Start.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleStats, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return CycleStats{}, pkgerrors.ErrSchedulerStopped
	}
	s.startWorkersLocked()
	tr := s.dispatchLocked()
	s.mu.Unlock()

	select {
	case <-tr.done:
	case <-ctx.Done():
		return s.trackerStats(tr), ctx.Err()
	}
	return s.trackerStats(tr), nil
}

func (s *Scheduler) trackerStats(tr *cycleTracker) CycleStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tr.stats
}

func (s *Scheduler) startWorkersLocked() {
	if s.started {
		return
	}
	s.started = true
	for i := 0; i < s.opts.Workers; i++ {
		s.workers.Add(1)
		go s.worker()
	}
}

func (s *Scheduler) dispatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.dispatchLocked()
}

// dispatchLocked starts a new cycle. For each target: a queued task is left
// alone, a running task past its deadline is abandoned and replaced, a
// running task within its deadline is skipped, and an idle target gets a
// new task.
func (s *Scheduler) dispatchLocked() *cycleTracker {
	s.cycle++
	cycle := s.cycle
	tr := &cycleTracker{
		stats: CycleStats{Cycle: cycle},
		done:  make(chan struct{}),
	}

	now := time.Now()
	for i := range s.slots {
		sl := &s.slots[i]
		switch sl.state {
		case slotQueued:
			tr.stats.Skipped++
			continue
		case slotRunning:
			if now.Before(sl.startedAt.Add(s.opts.Timeout)) {
				tr.stats.Skipped++
				continue
			}
			tr.stats.Abandoned++
			log.Printf("Abandoning probe of %s after %s", sl.target.Key(), now.Sub(sl.startedAt).Round(time.Millisecond))
			s.settleLocked(sl.cycle)
		}

		sl.generation++
		sl.state = slotQueued
		sl.cycle = cycle
		select {
		case s.queue <- task{idx: i, generation: sl.generation, cycle: cycle}:
			tr.stats.Dispatched++
			tr.pending++
		default:
			// Unreachable while each target holds at most one queued task.
			sl.state = slotIdle
			tr.stats.Skipped++
		}
	}

	s.totals.Dispatched += tr.stats.Dispatched
	s.totals.Skipped += tr.stats.Skipped
	s.totals.Abandoned += tr.stats.Abandoned

	if s.opts.Verbose {
		log.Printf("Cycle %d: dispatched=%d skipped=%d abandoned=%d",
			cycle, tr.stats.Dispatched, tr.stats.Skipped, tr.stats.Abandoned)
	}

	if tr.pending == 0 {
		close(tr.done)
	} else {
		s.trackers[cycle] = tr
	}
	return tr
}

// settleLocked marks one task of a cycle as finished.
func (s *Scheduler) settleLocked(cycle uint64) *cycleTracker {
	tr, ok := s.trackers[cycle]
	if !ok {
		return nil
	}
	tr.pending--
	if tr.pending == 0 {
		close(tr.done)
		delete(s.trackers, cycle)
	}
	return tr
}

func (s *Scheduler) worker() {
	defer s.workers.Done()
	for t := range s.queue {
		s.run(t)
	}
}

func (s *Scheduler) run(t task) {
	s.mu.Lock()
	sl := &s.slots[t.idx]
	if s.stopped || sl.generation != t.generation {
		if sl.generation == t.generation {
			sl.state = slotIdle
			s.settleLocked(t.cycle)
		}
		s.mu.Unlock()
		return
	}
	sl.state = slotRunning
	sl.startedAt = time.Now()
	tgt := sl.target
	s.mu.Unlock()

	res := s.prober.Probe(s.baseCtx, tgt)

	s.mu.Lock()
	defer s.mu.Unlock()

	current := sl.generation == t.generation
	var tr *cycleTracker
	if current {
		sl.state = slotIdle
		tr = s.settleLocked(t.cycle)
	}

	// A late result from an abandoned task, or one cut short by shutdown,
	// says nothing about the target.
	if !current || res.Reason == probe.ReasonCanceled {
		s.totals.Discarded++
		if tr != nil {
			tr.stats.Discarded++
		}
		return
	}

	if err := s.recorder.Record(tgt.Key(), res); err != nil {
		log.Printf("Failed to record result for %s: %v", tgt.Key(), err)
		return
	}
	s.totals.Completed++
	if tr != nil {
		tr.stats.Completed++
	}
}
