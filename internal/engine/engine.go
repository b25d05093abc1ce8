// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickseq/api/schemas"
	"github.com/xkilldash9x/clickseq/internal/activity"
	"github.com/xkilldash9x/clickseq/internal/config"
	"github.com/xkilldash9x/clickseq/internal/events"
)

// ErrAlreadyRunning is returned by Start while a run is in progress.
var ErrAlreadyRunning = errors.New("a run is already in progress")

// reportTimeout bounds publishing the final report once the run is over.
const reportTimeout = 5 * time.Second

// -- Interfaces for Dependency Inversion --

// Clicker performs a single step against the live page.
type Clicker interface {
	ClickSelector(ctx context.Context, selector string) error
	ClickPoint(ctx context.Context, x, y int) error
}

// Engine replays a RunConfiguration step by step on its own goroutine. Each
// run gets its own RunState and is reported exactly once on the bus.
type Engine struct {
	cfg       config.RunnerConfig
	logger    *zap.Logger
	clicker   Clicker
	publisher events.Publisher
	guard     *activity.Guard

	// startMu guards state and loopActive, and orders Start against the end
	// of the previous run.
	startMu sync.Mutex
	// state is the lifecycle of the latest run.
	state *RunState
	// loopActive is true from Start until the run goroutine has reported and
	// released the guard, including a stopped run finishing its last step.
	loopActive bool
	wg         sync.WaitGroup
}

// New creates an Engine. guard is shared with the picker.
func New(
	cfg config.RunnerConfig,
	logger *zap.Logger,
	clicker Clicker,
	publisher events.Publisher,
	guard *activity.Guard,
) (*Engine, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if clicker == nil {
		return nil, errors.New("clicker cannot be nil")
	}
	if publisher == nil {
		return nil, errors.New("publisher cannot be nil")
	}
	if guard == nil {
		return nil, errors.New("activity guard cannot be nil")
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 15 * time.Second
	}

	return &Engine{
		cfg:       cfg,
		logger:    logger.Named("engine"),
		clicker:   clicker,
		publisher: publisher,
		guard:     guard,
		state:     NewRunState(),
	}, nil
}

// Start validates runCfg and begins a run, returning its ID. While a run is
// in progress, or a stopped run is still finishing its last step, Start
// changes nothing and returns ErrAlreadyRunning. Cancelling ctx stops the run
// as if Stop had been called.
func (e *Engine) Start(ctx context.Context, runCfg schemas.RunConfiguration) (string, error) {
	if err := runCfg.Validate(); err != nil {
		return "", fmt.Errorf("invalid run configuration: %w", err)
	}

	e.startMu.Lock()
	defer e.startMu.Unlock()

	if e.loopActive {
		e.logger.Warn("Start requested, but a run is already in progress.", zap.Stringer("phase", e.state.Phase()))
		return "", ErrAlreadyRunning
	}
	acquired, err := e.guard.Acquire(activity.Run)
	if err != nil {
		return "", err
	}
	if !acquired {
		// Only a live run loop may hold the guard for Run.
		return "", ErrAlreadyRunning
	}

	state := NewRunState()
	if !state.Begin() {
		e.guard.Release(activity.Run)
		return "", ErrAlreadyRunning
	}
	e.state = state
	e.loopActive = true

	runID := uuid.NewString()
	e.wg.Add(1)
	go e.run(ctx, runID, state, runCfg)
	return runID, nil
}

// Stop requests the current run to end. The step in flight completes; no
// further step starts. It reports whether a run was actually stopped.
func (e *Engine) Stop() bool {
	if e.current().RequestStop() {
		e.logger.Info("Stop requested.")
		return true
	}
	return false
}

// Running reports whether a run goroutine is live, stopped or not.
func (e *Engine) Running() bool {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	return e.loopActive
}

// Phase exposes the lifecycle of the latest run for status reporting.
func (e *Engine) Phase() Phase {
	return e.current().Phase()
}

func (e *Engine) current() *RunState {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	return e.state
}

// Wait blocks until the current run goroutine, if any, has exited.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) run(ctx context.Context, runID string, state *RunState, runCfg schemas.RunConfiguration) {
	defer e.wg.Done()
	logger := e.logger.With(zap.String("run_id", runID))

	stopOnCancel := context.AfterFunc(ctx, func() {
		if state.RequestStop() {
			logger.Info("Run context cancelled, stopping.")
		}
	})
	defer stopOnCancel()

	started := time.Now()
	report := schemas.RunReport{RunID: runID}
	logger.Info("Run started.",
		zap.Stringer("repeats", runCfg.Repeat),
		zap.Int("targets", len(runCfg.Targets)),
		zap.Duration("delay", runCfg.Delay),
	)

repetitions:
	for rep := 0; runCfg.Repeat.Allows(rep); rep++ {
		if !state.Running() {
			break
		}
		report.Repetitions++
		logger.Debug("Repetition started.", zap.Int("repetition", rep+1))

		for i, target := range runCfg.Targets {
			if !state.Running() {
				break repetitions
			}

			report.Attempted++
			if err := e.execute(ctx, target); err != nil {
				report.Failed++
				e.logStepFailure(logger, i, target, err)
			} else {
				logger.Debug("Step executed.", zap.Int("step", i), zap.Stringer("target", target))
			}

			// Wait between steps only while the run is still live.
			if state.Running() {
				state.Sleep(runCfg.Delay)
			}
		}
	}

	// Free the page before reporting so a listener can start the next
	// activity as soon as the report arrives.
	phase := state.Finish()
	e.startMu.Lock()
	e.guard.Release(activity.Run)
	e.loopActive = false
	e.startMu.Unlock()

	report.Outcome = schemas.OutcomeStopped
	if phase == PhaseFinished {
		report.Outcome = schemas.OutcomeFinished
	}
	report.Duration = time.Since(started)

	logger.Info("Run ended.",
		zap.Stringer("outcome", report.Outcome),
		zap.Int("attempted", report.Attempted),
		zap.Int("failed", report.Failed),
		zap.Int("repetitions", report.Repetitions),
		zap.Duration("duration", report.Duration),
	)

	// The report must go out even when ctx is what ended the run.
	postCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()
	if err := e.publisher.Post(postCtx, events.TypeRunReport, report); err != nil {
		logger.Error("Failed to publish run report.", zap.Error(err))
	}
}

// execute runs one step. The step context ignores cancellation of the run so
// that a step in flight always completes, bounded by the step timeout.
func (e *Engine) execute(ctx context.Context, target schemas.Target) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: recovered from panic: %v", schemas.ErrDispatch, r)
		}
	}()

	stepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.StepTimeout)
	defer cancel()

	switch t := target.(type) {
	case schemas.SelectorTarget:
		return e.clicker.ClickSelector(stepCtx, t.Selector)
	case schemas.CoordinateTarget:
		return e.clicker.ClickPoint(stepCtx, t.X, t.Y)
	default:
		return fmt.Errorf("unsupported target type %T", target)
	}
}

func (e *Engine) logStepFailure(logger *zap.Logger, step int, target schemas.Target, err error) {
	fields := []zap.Field{zap.Int("step", step), zap.Stringer("target", target), zap.Error(err)}
	if schemas.IsLookupFailure(err) {
		logger.Warn("Target not found, skipping step.", fields...)
		return
	}
	logger.Error("Step failed, skipping.", fields...)
}
