// Package picker implements interactive element picking: the user hovers
// elements, which get outlined, and clicks one to turn it into a selector.
package picker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/clickseq/api/schemas"
	"github.com/xkilldash9x/clickseq/internal/activity"
	"github.com/xkilldash9x/clickseq/internal/browser/dom"
	"github.com/xkilldash9x/clickseq/internal/config"
	"github.com/xkilldash9x/clickseq/internal/events"
)

// cleanupTimeout bounds the page calls made while leaving picking mode.
const cleanupTimeout = 5 * time.Second

// Surface is the page side of picking.
type Surface interface {
	// Attach installs the observers. Reports arrive on the returned channel
	// until Detach closes it.
	Attach(ctx context.Context) (<-chan schemas.PickerEvent, error)
	Detach(ctx context.Context) error
	// Outline marks the element tagged ref; an empty style clears the mark.
	Outline(ctx context.Context, ref, style string) error
	Notify(ctx context.Context, text string, d time.Duration) error
	// Resolve returns a snapshot of the page and the element tagged ref in it.
	Resolve(ctx context.Context, ref string) (*dom.Document, *html.Node, error)
}

// Sink stores picked selectors.
type Sink interface {
	AppendSelector(ctx context.Context, selector string) error
}

// State of the picker.
type State int

const (
	StateIdle State = iota
	StatePicking
	// StateClosing is held while the surface is being cleaned up.
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePicking:
		return "picking"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Picker runs one picking session at a time over a Surface.
type Picker struct {
	cfg       config.PickerConfig
	surface   Surface
	sink      Sink
	publisher events.Publisher
	guard     *activity.Guard
	logger    *zap.Logger
	hoverLog  rate.Sometimes

	mu      sync.Mutex
	state   State
	mode    schemas.PickMode
	hovered string
	wg      sync.WaitGroup
}

// New creates an idle Picker. guard is shared with the engine.
func New(
	cfg config.PickerConfig,
	surface Surface,
	sink Sink,
	publisher events.Publisher,
	guard *activity.Guard,
	logger *zap.Logger,
) (*Picker, error) {
	if surface == nil || sink == nil || publisher == nil || guard == nil || logger == nil {
		return nil, errors.New("picker dependencies cannot be nil")
	}
	return &Picker{
		cfg:       cfg,
		surface:   surface,
		sink:      sink,
		publisher: publisher,
		guard:     guard,
		logger:    logger.Named("picker"),
		hoverLog:  rate.Sometimes{First: 1, Interval: time.Second},
	}, nil
}

// State reports the picker state.
func (p *Picker) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start enters picking mode with the given synthesis mode. It does nothing
// while a pick is already in progress and fails with activity.ErrBusy while
// a run holds the page. Cancelling ctx cancels the pick.
func (p *Picker) Start(ctx context.Context, mode schemas.PickMode) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle {
		p.logger.Debug("Start ignored, picker is busy.", zap.Stringer("state", p.state))
		return nil
	}
	acquired, err := p.guard.Acquire(activity.Pick)
	if err != nil {
		return err
	}
	if !acquired {
		// An idle picker never holds the guard, so someone else does.
		return fmt.Errorf("%w: a pick already holds the page", activity.ErrBusy)
	}

	reports, err := p.surface.Attach(ctx)
	if err != nil {
		p.guard.Release(activity.Pick)
		return fmt.Errorf("failed to attach picker: %w", err)
	}

	p.state = StatePicking
	p.mode = mode
	p.hovered = ""
	p.logger.Info("Picker started.", zap.Stringer("mode", mode))

	if err := p.surface.Notify(ctx, fmt.Sprintf("Picker Active (%s). Click element. %s to cancel.", mode, p.cancelKeyLabel()), 0); err != nil {
		p.logger.Warn("Could not show picker toast.", zap.Error(err))
	}

	p.wg.Add(1)
	go p.consume(ctx, reports)
	return nil
}

// Cancel ends the current pick with no result. It does nothing when no pick
// is in progress.
func (p *Picker) Cancel(ctx context.Context) {
	p.mu.Lock()
	if p.state != StatePicking {
		p.mu.Unlock()
		return
	}
	p.state = StateClosing
	mode := p.mode
	hovered := p.hovered
	p.mu.Unlock()

	p.logger.Info("Picker cancelled.", zap.Stringer("mode", mode))
	p.exit(ctx, hovered, "Picker Cancelled", p.cfg.CancelToastDuration)
	p.publish(ctx, schemas.PickResult{Mode: mode, Cancelled: true})
}

// Wait blocks until the current pick, if any, has fully ended.
func (p *Picker) Wait() {
	p.wg.Wait()
}

func (p *Picker) consume(ctx context.Context, reports <-chan schemas.PickerEvent) {
	defer p.wg.Done()

	var timeout <-chan time.Time
	if p.cfg.Timeout > 0 {
		timer := time.NewTimer(p.cfg.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}
	done := ctx.Done()

	for {
		select {
		case ev, ok := <-reports:
			if !ok {
				return
			}
			p.HandleEvent(ctx, ev)
		case <-timeout:
			timeout = nil
			p.logger.Info("Picker timed out.", zap.Duration("timeout", p.cfg.Timeout))
			p.Cancel(ctx)
		case <-done:
			done = nil
			p.Cancel(ctx)
		}
	}
}

// HandleEvent applies one observer report.
func (p *Picker) HandleEvent(ctx context.Context, ev schemas.PickerEvent) {
	switch ev.Kind {
	case schemas.PickerHover:
		p.hover(ctx, ev.Ref)
	case schemas.PickerClick:
		p.pick(ctx, ev.Ref)
	case schemas.PickerKey:
		if ev.Key == p.cfg.CancelKey {
			p.Cancel(ctx)
		}
	default:
		p.logger.Debug("Unknown picker report.", zap.String("kind", string(ev.Kind)))
	}
}

func (p *Picker) hover(ctx context.Context, ref string) {
	p.mu.Lock()
	if p.state != StatePicking || ref == "" || ref == p.hovered {
		p.mu.Unlock()
		return
	}
	prev := p.hovered
	p.hovered = ref
	p.mu.Unlock()

	if prev != "" {
		if err := p.surface.Outline(ctx, prev, ""); err != nil {
			p.logger.Debug("Could not clear outline.", zap.String("ref", prev), zap.Error(err))
		}
	}
	if err := p.surface.Outline(ctx, ref, p.cfg.OutlineStyle); err != nil {
		p.logger.Debug("Could not outline element.", zap.String("ref", ref), zap.Error(err))
	}
	p.hoverLog.Do(func() {
		p.logger.Debug("Hovering.", zap.String("ref", ref))
	})
}

func (p *Picker) pick(ctx context.Context, ref string) {
	p.mu.Lock()
	if p.state != StatePicking {
		p.mu.Unlock()
		return
	}
	p.state = StateClosing
	mode := p.mode
	hovered := p.hovered
	p.mu.Unlock()

	selector, err := p.synthesize(ctx, ref, mode)
	if err != nil {
		p.logger.Error("Could not build a selector for the picked element.", zap.String("ref", ref), zap.Error(err))
		p.exit(ctx, hovered, "Picker Cancelled", p.cfg.CancelToastDuration)
		p.publish(ctx, schemas.PickResult{Mode: mode, Cancelled: true})
		return
	}

	if err := p.sink.AppendSelector(ctx, selector); err != nil {
		p.logger.Error("Could not save picked selector.", zap.String("selector", selector), zap.Error(err))
	}
	p.logger.Info("Selector picked.", zap.String("selector", selector), zap.Stringer("mode", mode))

	p.exit(ctx, hovered, "Saved: "+selector, p.cfg.SavedToastDuration)
	p.publish(ctx, schemas.PickResult{Selector: selector, Mode: mode})
}

func (p *Picker) synthesize(ctx context.Context, ref string, mode schemas.PickMode) (string, error) {
	doc, node, err := p.surface.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	return dom.NewSynthesizer(doc, p.logger).Synthesize(node, mode)
}

// exit clears the marking, removes the observers, and frees the page. Page
// calls outlive ctx so cleanup happens even when ctx ended the pick.
func (p *Picker) exit(ctx context.Context, hovered, toast string, toastFor time.Duration) {
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if hovered != "" {
		if err := p.surface.Outline(opCtx, hovered, ""); err != nil {
			p.logger.Debug("Could not clear outline.", zap.String("ref", hovered), zap.Error(err))
		}
	}
	if err := p.surface.Detach(opCtx); err != nil {
		p.logger.Warn("Could not remove picker observers.", zap.Error(err))
	}
	if err := p.surface.Notify(opCtx, toast, toastFor); err != nil {
		p.logger.Debug("Could not show picker toast.", zap.Error(err))
	}

	// Release and go idle together so a Start that sees Idle also finds the
	// guard free.
	p.mu.Lock()
	p.guard.Release(activity.Pick)
	p.state = StateIdle
	p.hovered = ""
	p.mu.Unlock()
}

func (p *Picker) publish(ctx context.Context, result schemas.PickResult) {
	postCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := p.publisher.Post(postCtx, events.TypePickResult, result); err != nil {
		p.logger.Error("Failed to publish pick result.", zap.Error(err))
	}
}

func (p *Picker) cancelKeyLabel() string {
	if p.cfg.CancelKey == "Escape" {
		return "ESC"
	}
	return p.cfg.CancelKey
}
