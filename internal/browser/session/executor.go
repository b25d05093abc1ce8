// internal/browser/session/executor.go
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/clickseq/api/schemas"
	"github.com/xkilldash9x/clickseq/internal/config"
)

// Statuses reported by clickScript.
const (
	statusOK            = "ok"
	statusNotFound      = "not_found"
	statusNoElement     = "no_element"
	statusDispatchError = "dispatch_error"
)

type highlightSpec struct {
	Style      string `json:"style"`
	DurationMs int64  `json:"durationMs"`
}

type indicatorSpec struct {
	Color      string `json:"color"`
	Size       int    `json:"size"`
	DurationMs int64  `json:"durationMs"`
}

// clickSpec is the argument of clickScript. Exactly one of Selector and
// Point is set.
type clickSpec struct {
	Selector  *string                  `json:"selector,omitempty"`
	Point     *schemas.Point           `json:"point,omitempty"`
	Events    []schemas.MouseEventData `json:"events"`
	Highlight *highlightSpec           `json:"highlight,omitempty"`
	Indicator *indicatorSpec           `json:"indicator,omitempty"`
}

type clickResult struct {
	Status  string `json:"status"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// Executor performs click steps in the live page. It satisfies the engine's
// Clicker.
type Executor struct {
	runner ScriptRunner
	cfg    config.RunnerConfig
	logger *zap.Logger
}

// NewExecutor creates an Executor over runner.
func NewExecutor(runner ScriptRunner, cfg config.RunnerConfig, logger *zap.Logger) *Executor {
	return &Executor{
		runner: runner,
		cfg:    cfg,
		logger: logger.Named("executor"),
	}
}

// ClickSelector clicks the first element matching selector at its center,
// after scrolling it into view and highlighting it.
func (e *Executor) ClickSelector(ctx context.Context, selector string) error {
	spec := clickSpec{
		Selector: &selector,
		// The page replaces the coordinates with the element's center.
		Events: schemas.ClickSequence(0, 0),
	}
	if e.cfg.HighlightStyle != "" {
		spec.Highlight = &highlightSpec{Style: e.cfg.HighlightStyle, DurationMs: millis(e.cfg.HighlightDuration)}
	}
	return e.click(ctx, spec, zap.String("selector", selector))
}

// ClickPoint clicks whatever element is at the viewport coordinate (x, y)
// and shows a short-lived dot there.
func (e *Executor) ClickPoint(ctx context.Context, x, y int) error {
	point := schemas.Point{X: float64(x), Y: float64(y)}
	spec := clickSpec{
		Point:  &point,
		Events: schemas.ClickSequence(point.X, point.Y),
	}
	if e.cfg.IndicatorSize > 0 {
		spec.Indicator = &indicatorSpec{
			Color:      e.cfg.IndicatorColor,
			Size:       e.cfg.IndicatorSize,
			DurationMs: millis(e.cfg.IndicatorDuration),
		}
	}
	return e.click(ctx, spec, zap.Int("x", x), zap.Int("y", y))
}

func (e *Executor) click(ctx context.Context, spec clickSpec, fields ...zap.Field) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: recovered from panic: %v", schemas.ErrDispatch, r)
		}
	}()

	script, err := invoke(clickScript, spec)
	if err != nil {
		return err
	}

	var res clickResult
	if err := e.runner.ExecuteScript(ctx, script, &res); err != nil {
		return fmt.Errorf("click script failed: %w", err)
	}

	switch res.Status {
	case statusOK:
		e.logger.Debug("Clicked.", append(fields, zap.String("tag", res.Tag))...)
		return nil
	case statusNotFound:
		if spec.Selector != nil {
			return fmt.Errorf("%w: %s", schemas.ErrTargetNotFound, *spec.Selector)
		}
		return schemas.ErrTargetNotFound
	case statusNoElement:
		if spec.Point != nil {
			return fmt.Errorf("%w: (%g, %g)", schemas.ErrNoElementAtPoint, spec.Point.X, spec.Point.Y)
		}
		return schemas.ErrNoElementAtPoint
	case statusDispatchError:
		return fmt.Errorf("%w: %s", schemas.ErrDispatch, res.Message)
	default:
		return fmt.Errorf("%w: unexpected click status %q", schemas.ErrDispatch, res.Status)
	}
}

// invoke renders script applied to arg as JSON.
func invoke(script string, arg interface{}) (string, error) {
	payload, err := json.Marshal(arg)
	if err != nil {
		return "", fmt.Errorf("failed to encode script argument: %w", err)
	}
	return fmt.Sprintf("(%s)(%s)", script, payload), nil
}

func millis(d time.Duration) int64 {
	return d.Milliseconds()
}
