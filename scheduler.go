package promo

import (
	"context"
	"sync"
	"time"
)

// RunState is the lifecycle state of one animated run
type RunState int

const (
	RunIdle RunState = iota
	RunAnimating
	RunFinalizing
	RunDone
	RunCancelled
)

// String returns the state name
func (s RunState) String() string {
	switch s {
	case RunIdle:
		return "idle"
	case RunAnimating:
		return "animating"
	case RunFinalizing:
		return "finalizing"
	case RunDone:
		return "done"
	case RunCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// FrameKind distinguishes progress frames
type FrameKind int

const (
	// FrameShuffle carries a throwaway display permutation
	FrameShuffle FrameKind = iota
	// FrameRound carries the displayed round counter
	FrameRound
)

// Frame is one cosmetic progress event. Frames are never authoritative.
type Frame struct {
	Kind          FrameKind     `json:"kind"`
	Order         []string      `json:"order,omitempty"`
	Round         int           `json:"round,omitempty"`
	TotalRounds   int           `json:"totalRounds"`
	Elapsed       time.Duration `json:"elapsed"`
	Authoritative bool          `json:"authoritative"`
}

// pipeline is the authoritative draw the scheduler invokes once per run
type pipeline interface {
	Validate(req DrawRequest) error
	finish(ctx context.Context, req DrawRequest) (PromotionResult, error)
}

// AnimationScheduler drives the fixed-duration progress sequence of animated runs.
// At most one run is in flight at a time.
type AnimationScheduler struct {
	pipeline pipeline
	clock    Clock
	preview  *ShuffleEngine
	timing   AnimationConfig
	logger   Logger
	monitor  *PerformanceMonitor

	mu         sync.Mutex
	inProgress bool
}

// NewAnimationScheduler creates a scheduler invoking p when a run's duration expires
func NewAnimationScheduler(p pipeline, clock Clock, timing AnimationConfig, logger Logger, monitor *PerformanceMonitor) *AnimationScheduler {
	if clock == nil {
		clock = NewRealClock()
	}
	if logger == nil {
		logger = NewSilentLogger()
	}
	if monitor == nil {
		monitor = NewPerformanceMonitor()
	}
	return &AnimationScheduler{
		pipeline: p,
		clock:    clock,
		preview:  NewShuffleEngine(NewRandomSource()), // cosmetic frames use a private source
		timing:   timing.withDefaults(),
		logger:   logger,
		monitor:  monitor,
	}
}

// InProgress reports whether a run currently holds the scheduler
func (s *AnimationScheduler) InProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inProgress
}

// Start validates req, captures a copy of it and begins animating.
// onFrame may be nil. It is called from the run goroutine.
func (s *AnimationScheduler) Start(ctx context.Context, req DrawRequest, onFrame FrameFunc) (*Run, error) {
	if err := s.pipeline.Validate(req); err != nil {
		return nil, err
	}

	if !s.tryAcquire() {
		return nil, ErrRunInProgress
	}

	captured := req.clone()
	runCtx, stop := context.WithCancel(ctx)
	run := &Run{
		state: RunAnimating,
		stop:  stop,
		done:  make(chan struct{}),
	}

	s.monitor.RecordRunStarted()
	s.logger.Info("Run started: name=%q, entries=%d, rounds=%d, winners=%d, duration=%v",
		captured.Name, len(captured.Entries), captured.Rounds, captured.Winners, s.timing.Duration)

	go s.loop(runCtx, ctx, run, captured, onFrame)
	return run, nil
}

// roundInterval is max(MinRoundInterval, duration/rounds)
func (s *AnimationScheduler) roundInterval(rounds int) time.Duration {
	interval := s.timing.Duration / time.Duration(rounds)
	if interval < s.timing.MinRoundInterval {
		interval = s.timing.MinRoundInterval
	}
	return interval
}

func (s *AnimationScheduler) loop(runCtx, parent context.Context, run *Run, req DrawRequest, onFrame FrameFunc) {
	start := s.clock.Now()
	total := s.clock.NewTimer(s.timing.Duration)
	shuffleTicker := s.clock.NewTicker(s.timing.ShuffleInterval)
	roundTicker := s.clock.NewTicker(s.roundInterval(req.Rounds))

	teardown := func() {
		total.Stop()
		shuffleTicker.Stop()
		roundTicker.Stop()
	}

	emit := func(f Frame) {
		if onFrame == nil {
			return
		}
		run.frameMu.Lock()
		defer run.frameMu.Unlock()
		if run.State() != RunAnimating {
			return
		}
		f.TotalRounds = req.Rounds
		f.Elapsed = s.clock.Now().Sub(start)
		onFrame(f)
	}

	round := 0
	for {
		select {
		case <-runCtx.Done():
			run.transition(RunAnimating, RunCancelled)
			teardown()
			s.release()
			s.monitor.RecordRunCancelled()
			s.logger.Info("Run cancelled after %v at round %d/%d", s.clock.Now().Sub(start), round, req.Rounds)
			run.finish(PromotionResult{}, ErrRunCancelled)
			return

		case <-shuffleTicker.C():
			emit(Frame{Kind: FrameShuffle, Order: s.preview.Preview(req.Entries)})

		case <-roundTicker.C():
			if round < req.Rounds {
				round++
				emit(Frame{Kind: FrameRound, Round: round})
				s.logger.Debug("Round frame %d/%d", round, req.Rounds)
			}

		case <-total.C():
			teardown()
			if !run.transition(RunAnimating, RunFinalizing) {
				// Cancel won the race; it already owns the state
				s.release()
				s.monitor.RecordRunCancelled()
				run.finish(PromotionResult{}, ErrRunCancelled)
				return
			}

			result, err := s.pipeline.finish(context.WithoutCancel(parent), req)
			run.transition(RunFinalizing, RunDone)
			s.release()
			run.finish(result, err)
			return
		}
	}
}

// tryAcquire takes the in-progress flag; instant draws and animated runs share it
func (s *AnimationScheduler) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inProgress {
		return false
	}
	s.inProgress = true
	return true
}

func (s *AnimationScheduler) release() {
	s.mu.Lock()
	s.inProgress = false
	s.mu.Unlock()
}

// ================================================================================

// Run is the handle of one animated run
type Run struct {
	mu    sync.Mutex
	state RunState

	// frameMu is held while a frame is delivered; Cancel takes it to flip the state
	frameMu sync.Mutex

	stop context.CancelFunc
	done chan struct{}

	result PromotionResult
	err    error
}

// State returns the current lifecycle state
func (r *Run) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Cancel aborts the run if it is still animating and waits for teardown.
// It reports whether the run was cancelled by this call.
func (r *Run) Cancel() bool {
	r.frameMu.Lock()
	cancelled := r.transition(RunAnimating, RunCancelled)
	r.frameMu.Unlock()
	if !cancelled {
		return false
	}
	r.stop()
	<-r.done
	return true
}

// Done is closed once the run reaches a terminal state
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run finishes and returns its result, or ErrRunCancelled
func (r *Run) Wait(ctx context.Context) (PromotionResult, error) {
	select {
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.result.Clone(), r.err
	case <-ctx.Done():
		return PromotionResult{}, ctx.Err()
	}
}

func (r *Run) transition(from, to RunState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != from {
		return false
	}
	r.state = to
	return true
}

func (r *Run) finish(result PromotionResult, err error) {
	r.mu.Lock()
	r.result = result
	r.err = err
	r.mu.Unlock()
	r.stop()
	close(r.done)
}
