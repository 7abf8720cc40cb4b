package promo

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DrawRequest carries the validated inputs of one drawing
type DrawRequest struct {
	Name    string   `json:"promoName"`
	Entries []string `json:"entries"`
	Rounds  int      `json:"rounds"`
	Winners int      `json:"winners"`
}

func (r DrawRequest) clone() DrawRequest {
	c := r
	c.Entries = append([]string(nil), r.Entries...)
	return c
}

// Engine owns the randomization pipeline, the round determiner, the history and the scheduler
type Engine struct {
	config   *Config
	logger   Logger
	src      Source
	clock    Clock
	ids      IDGenerator
	monitor  *PerformanceMonitor
	consumer ResultConsumer

	shuffler  *ShuffleEngine
	recorder  *Recorder
	history   *HistoryStore
	rounds    *RoundDeterminer
	scheduler *AnimationScheduler
}

// Option configures an Engine
type Option func(*Engine)

// WithConfig sets the configuration; nil sections fall back to defaults
func WithConfig(config *Config) Option {
	return func(e *Engine) { e.config = config }
}

// WithLogger sets the logger
func WithLogger(logger Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithSource sets the randomness source for shuffles and dice
func WithSource(src Source) Option {
	return func(e *Engine) { e.src = src }
}

// WithHistory sets the history store
func WithHistory(history *HistoryStore) Option {
	return func(e *Engine) { e.history = history }
}

// WithClock sets the clock used for timestamps, dice and animation
func WithClock(clock Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithIDGenerator sets the result id generator
func WithIDGenerator(ids IDGenerator) Option {
	return func(e *Engine) { e.ids = ids }
}

// WithMonitor shares a performance monitor
func WithMonitor(monitor *PerformanceMonitor) Option {
	return func(e *Engine) { e.monitor = monitor }
}

// WithResultConsumer registers the callback notified of every completed result
func WithResultConsumer(consumer ResultConsumer) Option {
	return func(e *Engine) { e.consumer = consumer }
}

// NewEngine creates an Engine. Without WithHistory the history lives in memory only.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}

	if e.config == nil {
		e.config = DefaultConfig()
	}
	if err := e.config.Validate(); err != nil {
		return nil, err
	}
	if e.logger == nil {
		e.logger = NewSilentLogger()
	}
	if e.clock == nil {
		e.clock = NewRealClock()
	}
	if e.ids == nil {
		e.ids = NewUUID
	}
	if e.monitor == nil {
		e.monitor = NewPerformanceMonitor()
	}
	if e.src == nil {
		src, err := NewSourceFromConfig(e.config.Promo.RandomSource)
		if err != nil {
			return nil, err
		}
		e.src = src
	}
	if e.history == nil {
		e.history = NewHistoryStore(NewMemoryStorage(),
			WithHistoryKey(e.config.Storage.Key),
			WithHistoryLogger(e.logger),
			WithHistoryMonitor(e.monitor),
		)
	}

	e.shuffler = NewShuffleEngine(e.src)
	e.recorder = NewRecorder(e.ids, e.clock)
	e.rounds = NewRoundDeterminer(e.src, e.clock, e.config.Promo.MaxDice, e.config.Animation.DiceRollDuration, e.logger)
	e.scheduler = NewAnimationScheduler(e, e.clock, *e.config.Animation, e.logger, e.monitor)

	return e, nil
}

// Config returns the engine configuration
func (e *Engine) Config() *Config { return e.config }

// Logger returns the engine logger
func (e *Engine) Logger() Logger { return e.logger }

// History returns the history store
func (e *Engine) History() *HistoryStore { return e.history }

// RoundDeterminer returns the round determiner shared with the setup flow
func (e *Engine) RoundDeterminer() *RoundDeterminer { return e.rounds }

// Scheduler returns the animation scheduler
func (e *Engine) Scheduler() *AnimationScheduler { return e.scheduler }

// Monitor returns the performance monitor
func (e *Engine) Monitor() *PerformanceMonitor { return e.monitor }

// PerformanceMetrics 获取性能指标
func (e *Engine) PerformanceMetrics() PerformanceMetrics { return e.monitor.GetMetrics() }

// ParseEntries parses newline-delimited entries against the configured cap
func (e *Engine) ParseEntries(text string) ([]string, error) {
	entries, err := ParseEntries(text, e.config.Promo.MaxEntries)
	if err != nil {
		e.monitor.RecordValidationFailure()
		e.logger.Debug("ParseEntries rejected input: %v", err)
		return nil, err
	}
	return entries, nil
}

// Prepare builds a request from raw entry text and the round determiner's committed value
func (e *Engine) Prepare(name, entriesText string, winners int) (DrawRequest, error) {
	entries, err := e.ParseEntries(entriesText)
	if err != nil {
		return DrawRequest{}, err
	}
	rounds, ok := e.rounds.Committed()
	if !ok {
		e.monitor.RecordValidationFailure()
		return DrawRequest{}, ErrInvalidRounds
	}

	req := DrawRequest{Name: name, Entries: entries, Rounds: rounds, Winners: winners}
	if err := e.Validate(req); err != nil {
		return DrawRequest{}, err
	}
	return req, nil
}

// Validate checks req at the boundary and returns the first failure:
// entries present, entry cap, rounds, then winner count.
func (e *Engine) Validate(req DrawRequest) error {
	err := e.validate(req)
	if err != nil {
		e.monitor.RecordValidationFailure()
		e.logger.Debug("Validate rejected request: %v", err)
	}
	return err
}

func (e *Engine) validate(req DrawRequest) error {
	if err := ValidateEntryCount(len(req.Entries), e.config.Promo.MaxEntries); err != nil {
		return err
	}
	for i, entry := range req.Entries {
		if entry == "" || entry != strings.TrimSpace(entry) {
			return ErrInvalidParameters.WithDetails(fmt.Sprintf("entry %d must be trimmed and non-empty", i+1))
		}
	}
	if err := ValidateRounds(req.Rounds); err != nil {
		return err
	}
	return ValidateWinnerCount(req.Winners, len(req.Entries))
}

// Execute runs shuffle, winner selection and result construction as one step.
// Nothing is persisted and the consumer is not notified.
func (e *Engine) Execute(req DrawRequest) (PromotionResult, error) {
	if err := e.Validate(req); err != nil {
		return PromotionResult{}, err
	}

	ranked, err := e.shuffler.Shuffle(req.Entries, req.Rounds)
	if err != nil {
		return PromotionResult{}, err
	}
	winners, err := SelectWinners(ranked, req.Winners)
	if err != nil {
		return PromotionResult{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = e.config.Promo.DefaultName
	}
	return e.recorder.Record(name, req.Rounds, ranked, winners), nil
}

// Draw is the instant variant: validate, execute, append to history and notify the consumer
func (e *Engine) Draw(ctx context.Context, req DrawRequest) (PromotionResult, error) {
	e.logger.Debug("Draw called with name=%q, entries=%d, rounds=%d, winners=%d",
		req.Name, len(req.Entries), req.Rounds, req.Winners)

	if err := e.Validate(req); err != nil {
		e.logger.Error("Draw validation failed: %v", err)
		return PromotionResult{}, err
	}
	if !e.scheduler.tryAcquire() {
		return PromotionResult{}, ErrRunInProgress
	}
	defer e.scheduler.release()

	e.monitor.RecordRunStarted()
	return e.finish(ctx, req.clone())
}

// StartAnimated begins an animated run; the pipeline runs once when the animation expires
func (e *Engine) StartAnimated(ctx context.Context, req DrawRequest, onFrame FrameFunc) (*Run, error) {
	return e.scheduler.Start(ctx, req, onFrame)
}

// finish is the authoritative pipeline followed by persistence and notification
func (e *Engine) finish(ctx context.Context, req DrawRequest) (PromotionResult, error) {
	startTime := time.Now()

	result, err := e.Execute(req)
	if err != nil {
		e.logger.Error("Draw pipeline failed: %v", err)
		return PromotionResult{}, err
	}

	if err := e.history.Append(ctx, result); err != nil {
		// Append only rejects invalid or duplicate results; persistence failures are absorbed
		e.logger.Error("History append rejected result %s: %v", result.ID, err)
		return PromotionResult{}, err
	}

	if e.consumer != nil {
		e.consumer(result.Clone())
	}

	duration := time.Since(startTime)
	e.monitor.RecordRunCompleted(duration)
	e.logger.Info("Draw successful: id=%s, name=%q, entries=%d, rounds=%d, winners=%v, duration=%v",
		result.ID, result.Name, len(result.RankedList), result.Rounds, result.Winners, duration)

	return result, nil
}
