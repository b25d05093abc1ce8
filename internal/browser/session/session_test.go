// internal/browser/session/session_test.go
package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/clickseq/internal/config"
)

func TestAllocatorFlags(t *testing.T) {
	t.Run("Headless", func(t *testing.T) {
		flags := AllocatorFlags(config.BrowserConfig{Headless: true, WindowWidth: 1280, WindowHeight: 900})
		assert.Equal(t, true, flags["headless"])
		assert.Equal(t, true, flags["hide-scrollbars"])
		assert.Equal(t, "1280,900", flags["window-size"])
		assert.Equal(t, true, flags["no-first-run"])
	})

	t.Run("Visible", func(t *testing.T) {
		flags := AllocatorFlags(config.BrowserConfig{Headless: false})
		assert.Equal(t, false, flags["headless"])
		assert.NotContains(t, flags, "window-size")
	})

	t.Run("CustomArgs", func(t *testing.T) {
		flags := AllocatorFlags(config.BrowserConfig{
			Args: []string{"--proxy-server=http://127.0.0.1:8080", "--disable-gpu=false", "no-sandbox", "--"},
		})
		assert.Equal(t, "http://127.0.0.1:8080", flags["proxy-server"])
		assert.Equal(t, "false", flags["disable-gpu"], "args override defaults")
		assert.Equal(t, true, flags["no-sandbox"])
		assert.NotContains(t, flags, "")
	})
}

func TestAllocatorOptions(t *testing.T) {
	cfg := config.BrowserConfig{ExecPath: "/opt/chrome/chrome", UserDataDir: t.TempDir()}
	opts := AllocatorOptions(cfg)
	assert.Len(t, opts, len(AllocatorFlags(cfg))+2)
}

func TestSession_ClosedSessionRejectsActions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		logger:      zaptest.NewLogger(t),
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: func() {},
		isClosed:    true,
	}
	defer cancel()

	require.ErrorIs(t, s.RunActions(context.Background()), ErrSessionClosed)
	require.ErrorIs(t, s.ExecuteScript(context.Background(), "1", nil), ErrSessionClosed)
	assert.NoError(t, s.Close(), "closing twice is a no-op")
}
