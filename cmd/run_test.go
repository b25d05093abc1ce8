// File: cmd/run_test.go
package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/clickseq/api/schemas"
	"github.com/xkilldash9x/clickseq/internal/config"
	"github.com/xkilldash9x/clickseq/internal/store"
)

func testRunnerDefaults() config.RunnerConfig {
	return config.RunnerConfig{DefaultDelay: 750 * time.Millisecond, DefaultRepeats: 2}
}

func TestRunOptions_Command(t *testing.T) {
	saved := store.Settings{Selectors: "#saved\n10,20", DelayMs: 300, Repeats: 4}

	tests := []struct {
		name     string
		opts     runOptions
		saved    store.Settings
		expected schemas.Command
	}{
		{
			name:  "saved profile replayed",
			saved: saved,
			expected: schemas.Command{
				Action:    schemas.ActionStartClicking,
				Selectors: []string{"#saved", "10,20"},
				DelayMs:   300,
				Repeats:   4,
			},
		},
		{
			name:  "flags override the profile",
			opts:  runOptions{targets: []string{"#a", "#b"}, delayMs: 50, repeats: 9},
			saved: saved,
			expected: schemas.Command{
				Action:    schemas.ActionStartClicking,
				Selectors: []string{"#a", "#b"},
				DelayMs:   50,
				Repeats:   9,
			},
		},
		{
			name:  "infinite wins",
			opts:  runOptions{targets: []string{"#a"}, infinite: true},
			saved: store.Settings{Repeats: 3, DelayMs: 100},
			expected: schemas.Command{
				Action:    schemas.ActionStartClicking,
				Selectors: []string{"#a"},
				DelayMs:   100,
				Repeats:   3,
				Loop:      true,
			},
		},
		{
			name:  "repeats turn a saved loop off",
			opts:  runOptions{repeats: 2},
			saved: store.Settings{Selectors: "#x", Infinite: true, DelayMs: 100},
			expected: schemas.Command{
				Action:    schemas.ActionStartClicking,
				Selectors: []string{"#x"},
				DelayMs:   100,
				Repeats:   2,
			},
		},
		{
			name:  "configured defaults fill an empty profile",
			opts:  runOptions{targets: []string{"5,5"}},
			saved: store.Settings{SmartSelector: true},
			expected: schemas.Command{
				Action:    schemas.ActionStartClicking,
				Selectors: []string{"5,5"},
				DelayMs:   750,
				Repeats:   2,
				Smart:     true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.opts.command(testRunnerDefaults(), tt.saved)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("command mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunOptions_TargetsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.txt")
	require.NoError(t, os.WriteFile(path, []byte("#login\n\n  400,300 \n"), 0o644))

	opts := runOptions{targetsFile: path}
	got, err := opts.command(testRunnerDefaults(), store.DefaultSettings())
	require.NoError(t, err)

	runCfg, err := got.RunConfiguration()
	require.NoError(t, err)
	assert.Equal(t, []schemas.Target{
		schemas.SelectorTarget{Selector: "#login"},
		schemas.CoordinateTarget{X: 400, Y: 300},
	}, runCfg.Targets)
	assert.Equal(t, 1000*time.Millisecond, runCfg.Delay, "the saved default delay is kept")
}

func TestRunOptions_Errors(t *testing.T) {
	_, err := (&runOptions{}).command(testRunnerDefaults(), store.DefaultSettings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no targets")

	_, err = (&runOptions{targetsFile: filepath.Join(t.TempDir(), "missing")}).command(testRunnerDefaults(), store.DefaultSettings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read targets file")
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, schemas.RunReport{
		RunID:       "r1",
		Outcome:     schemas.OutcomeStopped,
		Attempted:   5,
		Failed:      1,
		Repetitions: 2,
		Duration:    1234567 * time.Microsecond,
	})
	assert.Equal(t, "Run r1 stopped: 5 steps attempted, 1 failed, 2 repetitions in 1.235s\n", out.String())
}
