// Package control maps the JSON command protocol onto the engine and the
// picker, and streams their outcomes back as events.
package control

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/clickseq/api/schemas"
	"github.com/xkilldash9x/clickseq/internal/store"
)

// ErrUnknownAction is returned for commands this dispatcher does not know.
var ErrUnknownAction = errors.New("unknown action")

// Runner is the engine side of the protocol.
type Runner interface {
	Start(ctx context.Context, cfg schemas.RunConfiguration) (string, error)
	Stop() bool
	Wait()
}

// Picker is the picker side of the protocol.
type Picker interface {
	Start(ctx context.Context, mode schemas.PickMode) error
	Wait()
}

// SettingsSaver remembers the options of the last started run.
type SettingsSaver interface {
	Save(ctx context.Context, settings store.Settings) error
}

// Dispatcher routes commands. It is safe for concurrent use as long as its
// dependencies are.
type Dispatcher struct {
	runner   Runner
	picker   Picker
	settings SettingsSaver
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher. settings may be nil.
func NewDispatcher(runner Runner, picker Picker, settings SettingsSaver, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		runner:   runner,
		picker:   picker,
		settings: settings,
		logger:   logger.Named("control"),
	}
}

// Handle executes one command. Outcomes of runs and picks are published on
// the event bus later; Handle only reports whether the command was accepted.
func (d *Dispatcher) Handle(ctx context.Context, cmd schemas.Command) error {
	d.logger.Debug("Command received.", zap.String("action", string(cmd.Action)))

	switch cmd.Action {
	case schemas.ActionStartClicking:
		return d.startClicking(ctx, cmd)
	case schemas.ActionStopClicking:
		if !d.runner.Stop() {
			d.logger.Debug("Stop ignored, no run in progress.")
		}
		return nil
	case schemas.ActionStartPicking:
		return d.picker.Start(ctx, schemas.ModeFromSmart(cmd.Smart))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}

func (d *Dispatcher) startClicking(ctx context.Context, cmd schemas.Command) error {
	runCfg, err := cmd.RunConfiguration()
	if err != nil {
		return err
	}
	runID, err := d.runner.Start(ctx, runCfg)
	if err != nil {
		return err
	}
	d.logger.Info("Run accepted.", zap.String("run_id", runID))

	if d.settings != nil {
		if err := d.settings.Save(ctx, store.SettingsFromCommand(cmd, cmd.Smart)); err != nil {
			d.logger.Warn("Could not save settings.", zap.Error(err))
		}
	}
	return nil
}

// quiesce blocks until every run and pick started through d has ended and
// published its outcome. Their contexts must already be cancelled.
func (d *Dispatcher) quiesce() {
	d.runner.Wait()
	d.picker.Wait()
}
