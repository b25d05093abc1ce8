// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickseq/api/schemas"
	"github.com/xkilldash9x/clickseq/internal/config"
	"github.com/xkilldash9x/clickseq/internal/events"
	"github.com/xkilldash9x/clickseq/internal/observability"
	"github.com/xkilldash9x/clickseq/internal/store"
)

// runOptions are the flags of the run command.
type runOptions struct {
	targets     []string
	targetsFile string
	delayMs     int
	repeats     int
	infinite    bool
	save        bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	runCmd := &cobra.Command{
		Use:   "run [url]",
		Short: "Open a page and click through a target sequence",
		Long: `Opens the URL in a browser and clicks each target in order, waiting the
delay after every step. A target is a CSS selector or an "x,y" viewport
coordinate. Without --target or --targets-file the saved sequence is replayed.
Interrupting the command stops the run after the step in flight.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			settings, err := store.New(cfg.Store().Path, logger)
			if err != nil {
				return err
			}
			saved, err := settings.Load(ctx)
			if err != nil {
				return fmt.Errorf("failed to load saved settings: %w", err)
			}

			command, err := opts.command(cfg.Runner(), saved)
			if err != nil {
				return err
			}
			runCfg, err := command.RunConfiguration()
			if err != nil {
				return err
			}
			if opts.save {
				if err := settings.Save(ctx, store.SettingsFromCommand(command, saved.SmartSelector)); err != nil {
					return fmt.Errorf("failed to save settings: %w", err)
				}
			}

			return runSequence(ctx, cmd.OutOrStdout(), cfg, logger, args[0], runCfg)
		},
	}

	runCmd.Flags().StringArrayVarP(&opts.targets, "target", "t", nil, `target to click, a CSS selector or "x,y" (repeatable)`)
	runCmd.Flags().StringVarP(&opts.targetsFile, "targets-file", "f", "", "file with one target per line")
	runCmd.Flags().IntVarP(&opts.delayMs, "delay", "d", 0, "delay after each step in milliseconds")
	runCmd.Flags().IntVarP(&opts.repeats, "repeats", "r", 0, "number of passes over the sequence")
	runCmd.Flags().BoolVar(&opts.infinite, "infinite", false, "repeat until interrupted")
	runCmd.Flags().BoolVar(&opts.save, "save", false, "save the sequence and options as the new profile")
	runCmd.MarkFlagsMutuallyExclusive("target", "targets-file")
	runCmd.MarkFlagsMutuallyExclusive("repeats", "infinite")
	return runCmd
}

// command merges the flags over the saved profile. Flags that were not set
// keep the saved value; a profile without a delay takes the configured one.
func (o *runOptions) command(defaults config.RunnerConfig, saved store.Settings) (schemas.Command, error) {
	command := saved.Command()

	switch {
	case len(o.targets) > 0:
		command.Selectors = o.targets
	case o.targetsFile != "":
		blob, err := os.ReadFile(o.targetsFile)
		if err != nil {
			return schemas.Command{}, fmt.Errorf("failed to read targets file: %w", err)
		}
		command.Selectors = strings.Split(string(blob), "\n")
	}

	if command.DelayMs <= 0 {
		command.DelayMs = int(defaults.DefaultDelay.Milliseconds())
	}
	if o.delayMs > 0 {
		command.DelayMs = o.delayMs
	}

	if command.Repeats <= 0 {
		command.Repeats = defaults.DefaultRepeats
	}
	switch {
	case o.infinite:
		command.Loop = true
	case o.repeats > 0:
		command.Loop = false
		command.Repeats = o.repeats
	}

	if len(schemas.ParseTargetLines(command.Selectors)) == 0 {
		return schemas.Command{}, errors.New("no targets: pass --target, --targets-file or save a sequence first")
	}
	return command, nil
}

// runSequence opens url, runs runCfg to completion and prints the report.
func runSequence(ctx context.Context, out io.Writer, cfg *config.Config, logger *zap.Logger, url string, runCfg schemas.RunConfiguration) error {
	a, err := newApp(ctx, cfg, logger, url)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("Failed to close browser session cleanly.", zap.Error(err))
		}
	}()

	reports, unsubscribe := a.bus.Subscribe(events.TypeRunReport)
	defer unsubscribe()

	runID, err := a.engine.Start(ctx, runCfg)
	if err != nil {
		return err
	}

	// The engine reports every run, stopped or not.
	for {
		msg, ok := await(a.bus, reports)
		if !ok {
			return errors.New("event bus closed before the run reported")
		}
		report, isReport := msg.Payload.(schemas.RunReport)
		if !isReport || report.RunID != runID {
			continue
		}
		printReport(out, report)
		if report.Outcome == schemas.OutcomeStopped && ctx.Err() != nil {
			return context.Cause(ctx)
		}
		return nil
	}
}

func printReport(out io.Writer, r schemas.RunReport) {
	fmt.Fprintf(out, "Run %s %s: %d steps attempted, %d failed, %d repetitions in %s\n",
		r.RunID, r.Outcome, r.Attempted, r.Failed, r.Repetitions, r.Duration.Round(time.Millisecond))
}
