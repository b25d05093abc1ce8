// internal/browser/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickseq/internal/config"
)

// ErrSessionClosed is returned for any action on a closed session.
var ErrSessionClosed = errors.New("browser session is closed")

// Session is one Chrome tab driven over CDP. It owns the browser process
// when it created the allocator itself.
type Session struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	mu       sync.Mutex
	isClosed bool
}

var _ Page = (*Session)(nil)

// AllocatorFlags maps the browser configuration onto Chrome command line
// flags. Entries from cfg.Args win over the defaults.
func AllocatorFlags(cfg config.BrowserConfig) map[string]interface{} {
	flags := map[string]interface{}{
		"no-first-run":             true,
		"no-default-browser-check": true,
		"disable-gpu":              true,
		"disable-dev-shm-usage":    true,
		"headless":                 cfg.Headless,
		"hide-scrollbars":          cfg.Headless,
		"mute-audio":               cfg.Headless,
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		flags["window-size"] = fmt.Sprintf("%d,%d", cfg.WindowWidth, cfg.WindowHeight)
	}

	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if key == "" {
			continue
		}
		if found {
			flags[key] = value
		} else {
			flags[key] = true
		}
	}
	return flags
}

// AllocatorOptions builds the exec allocator options for cfg.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	flags := AllocatorFlags(cfg)
	opts := make([]chromedp.ExecAllocatorOption, 0, len(flags)+2)
	for key, value := range flags {
		opts = append(opts, chromedp.Flag(key, value))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	return opts
}

// New launches a browser with cfg and opens a tab. The tab lives until Close
// or until parent is cancelled.
func New(parent context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	id := uuid.NewString()
	log := logger.Named("session").With(zap.String("session_id", id))

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, AllocatorOptions(cfg)...)

	ctxOpts := []chromedp.ContextOption{
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			log.Debug("chromedp error.", zap.String("detail", fmt.Sprintf(format, args...)))
		}),
	}
	if cfg.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(func(format string, args ...interface{}) {
			log.Debug(fmt.Sprintf(format, args...))
		}))
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	// The first Run starts the browser and attaches to the tab.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	log.Info("Browser session started.", zap.Bool("headless", cfg.Headless))
	return &Session{
		cfg:         cfg,
		logger:      log,
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
	}, nil
}

// Navigate loads url and waits for the body to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx := ctx
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}

	s.logger.Info("Navigating.", zap.String("url", url))
	if err := s.RunActions(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// RunActions executes actions bounded by both the session and ctx.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	if s.closed() {
		return ErrSessionClosed
	}
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", context.Cause(ctx), err)
	}
	return err
}

// ExecuteScript evaluates script in the current document. Promises are
// awaited and the result is returned by value.
func (s *Session) ExecuteScript(ctx context.Context, script string, res interface{}) error {
	return s.RunActions(ctx, chromedp.Evaluate(script, res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithAwaitPromise(true)
	}))
}

// Listen registers fn for the tab's CDP events.
func (s *Session) Listen(fn func(ev interface{})) {
	chromedp.ListenTarget(s.ctx, fn)
}

// Done is closed when the tab goes away, including when the user closes the
// browser window.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Close shuts the tab and, with it, the browser. It is safe to call twice.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), 5*time.Second)
	defer cancel()
	// chromedp.Cancel closes the browser gracefully when this context owns it.
	err := chromedp.Cancel(closeCtx)
	s.cancel()
	s.allocCancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close browser session: %w", err)
	}
	return nil
}

func (s *Session) closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isClosed
}
