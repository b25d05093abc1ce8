// File: cmd/app.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/clickseq/internal/activity"
	"github.com/xkilldash9x/clickseq/internal/browser/session"
	"github.com/xkilldash9x/clickseq/internal/config"
	"github.com/xkilldash9x/clickseq/internal/engine"
	"github.com/xkilldash9x/clickseq/internal/events"
	"github.com/xkilldash9x/clickseq/internal/picker"
	"github.com/xkilldash9x/clickseq/internal/store"
)

// errBrowserClosed is the cause of a command context ended by the user
// closing the browser window.
var errBrowserClosed = errors.New("browser window closed")

// busBuffer is the per-subscriber buffer of the in-process event bus.
const busBuffer = 16

// app holds the wired components of one browser session.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	session *session.Session
	bus     *events.Bus
	guard   *activity.Guard
	engine  *engine.Engine
	picker  *picker.Picker
	store   *store.FileStore
}

// newApp launches the browser, opens url and wires the engine and picker to
// the page. The browser outlives cancellation of ctx until Close, so a run
// interrupted by a signal still reports before the tab goes away.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, url string) (*app, error) {
	settings, err := store.New(cfg.Store().Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings store: %w", err)
	}

	sess, err := session.New(context.WithoutCancel(ctx), cfg.Browser(), logger)
	if err != nil {
		return nil, err
	}
	if err := sess.Navigate(ctx, url); err != nil {
		_ = sess.Close()
		return nil, err
	}

	bus := events.NewBus(logger, busBuffer)
	guard := &activity.Guard{}

	executor := session.NewExecutor(sess, cfg.Runner(), logger)
	eng, err := engine.New(cfg.Runner(), logger, executor, bus, guard)
	if err != nil {
		bus.Shutdown()
		_ = sess.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	surface := session.NewPageSurface(sess, logger)
	pick, err := picker.New(cfg.Picker(), surface, settings, bus, guard, logger)
	if err != nil {
		bus.Shutdown()
		_ = sess.Close()
		return nil, fmt.Errorf("failed to create picker: %w", err)
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		session: sess,
		bus:     bus,
		guard:   guard,
		engine:  eng,
		picker:  pick,
		store:   settings,
	}, nil
}

// Close ends any activity, drains the bus and closes the browser.
func (a *app) Close() error {
	a.engine.Stop()
	a.engine.Wait()

	cancelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	a.picker.Cancel(cancelCtx)
	cancel()
	a.picker.Wait()

	a.bus.Shutdown()
	return a.session.Close()
}

// await blocks for the next message on msgs and acknowledges it.
func await(bus *events.Bus, msgs <-chan events.Message) (events.Message, bool) {
	msg, ok := <-msgs
	if ok {
		bus.Acknowledge(msg)
	}
	return msg, ok
}

// untilClosed returns a child of ctx cancelled with errBrowserClosed once
// closed is closed.
func untilClosed(ctx context.Context, closed <-chan struct{}) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(ctx)
	go func() {
		select {
		case <-closed:
			cancel(errBrowserClosed)
		case <-ctx.Done():
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}
