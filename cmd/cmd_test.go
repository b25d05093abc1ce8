// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/clickseq/internal/config"
)

// executeCommand runs a fresh root command and captures its output.
func executeCommand(t *testing.T, root *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// executeCommandNoPreRun is for testing argument and flag validation without
// triggering the config loading in PersistentPreRunE.
func executeCommandNoPreRun(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	root.PersistentPreRunE = nil
	return executeCommand(t, root, args...)
}

// createTempConfig writes content to a config file in a test directory.
func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// findCommand returns the subcommand whose name is name.
func findCommand(t *testing.T, root *cobra.Command, name string) *cobra.Command {
	t.Helper()
	for _, c := range root.Commands() {
		if c.Name() == name {
			return c
		}
	}
	t.Fatalf("command %q not registered", name)
	return nil
}

// captureConfig replaces the RunE of name with one that records the loaded config.
func captureConfig(t *testing.T, root *cobra.Command, name string) **config.Config {
	t.Helper()
	var captured *config.Config
	findCommand(t, root, name).RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromContext(cmd.Context())
		captured = cfg
		return err
	}
	return &captured
}

func TestConfigFileAndFlagOverride(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "settings.yaml")
	configFile := createTempConfig(t, `
runner:
  default_delay: 250ms
  default_repeats: 3
browser:
  headless: false
store:
  path: `+storePath+`
`)

	root := NewRootCommand()
	captured := captureConfig(t, root, "run")

	_, err := executeCommand(t, root, "run", "https://example.com", "--config", configFile, "--headless", "--log-level", "debug")
	require.NoError(t, err)
	require.NotNil(t, *captured)

	cfg := *captured
	assert.Equal(t, int64(250), cfg.Runner().DefaultDelay.Milliseconds())
	assert.Equal(t, 3, cfg.Runner().DefaultRepeats)
	assert.True(t, cfg.Browser().Headless, "the flag overrides the file")
	assert.Equal(t, "debug", cfg.Logger().Level)
	assert.Equal(t, storePath, cfg.Store().Path)
	assert.Equal(t, "Escape", cfg.Picker().CancelKey, "unset keys keep their defaults")
}

func TestEnvironmentOverride(t *testing.T) {
	configFile := createTempConfig(t, "runner:\n  default_repeats: 2\n")
	t.Setenv("CLICKSEQ_RUNNER_DEFAULT_REPEATS", "7")

	root := NewRootCommand()
	captured := captureConfig(t, root, "run")

	_, err := executeCommand(t, root, "run", "https://example.com", "--config", configFile)
	require.NoError(t, err)
	assert.Equal(t, 7, (*captured).Runner().DefaultRepeats)
}

func TestInvalidConfigIsRejected(t *testing.T) {
	configFile := createTempConfig(t, "runner:\n  default_repeats: 0\n")

	root := NewRootCommand()
	captured := captureConfig(t, root, "run")

	_, err := executeCommand(t, root, "run", "https://example.com", "--config", configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_repeats")
	assert.Nil(t, *captured, "the command must not run with a bad config")
}

func TestMissingExplicitConfigFails(t *testing.T) {
	root := NewRootCommand()
	captureConfig(t, root, "run")

	_, err := executeCommand(t, root, "run", "https://example.com", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize configuration")
}

func TestCommands_RequiredArgs(t *testing.T) {
	for _, name := range []string{"run", "pick", "serve"} {
		t.Run(name, func(t *testing.T) {
			_, err := executeCommandNoPreRun(t, name)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "accepts 1 arg(s), received 0")
		})
	}
}

func TestRunCmd_ExclusiveFlags(t *testing.T) {
	_, err := executeCommandNoPreRun(t, "run", "https://example.com", "--repeats", "2", "--infinite")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")

	_, err = executeCommandNoPreRun(t, "run", "https://example.com", "-t", "#go", "--targets-file", "x.txt")
	require.Error(t, err)
}

func TestSynthCmd_RequiredFlags(t *testing.T) {
	_, err := executeCommandNoPreRun(t, "synth", "--css", "button")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "file" not set`)

	_, err = executeCommandNoPreRun(t, "synth", "--file", "page.html")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one of the flags")
}

func TestConfigFromContext_Missing(t *testing.T) {
	_, err := configFromContext(context.Background())
	assert.Error(t, err)
}
