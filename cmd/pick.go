// File: cmd/pick.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickseq/api/schemas"
	"github.com/xkilldash9x/clickseq/internal/events"
	"github.com/xkilldash9x/clickseq/internal/observability"
)

// errPickCancelled is returned when the user leaves the picker without a pick.
var errPickCancelled = errors.New("pick cancelled")

func newPickCmd() *cobra.Command {
	var smart bool

	pickCmd := &cobra.Command{
		Use:   "pick [url]",
		Short: "Pick an element in a live page and save its selector",
		Long: `Opens the URL in a visible browser and enters picking mode. Hover to
outline an element and click it to synthesize a selector. The selector is
appended to the saved sequence and printed. The cancel key (ESC by default)
leaves without picking.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			// Picking needs a human at the window.
			cfg.SetBrowserHeadless(false)

			a, err := newApp(ctx, cfg, logger, args[0])
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Warn("Failed to close browser session cleanly.", zap.Error(err))
				}
			}()

			// Closing the window cancels the pick.
			ctx, cancel := untilClosed(ctx, a.session.Done())
			defer cancel()

			results, unsubscribe := a.bus.Subscribe(events.TypePickResult)
			defer unsubscribe()

			if err := a.picker.Start(ctx, schemas.ModeFromSmart(smart)); err != nil {
				return fmt.Errorf("failed to start picker: %w", err)
			}

			msg, ok := await(a.bus, results)
			if !ok {
				return errors.New("event bus closed before the pick ended")
			}
			result, _ := msg.Payload.(schemas.PickResult)
			if result.Cancelled {
				if ctx.Err() != nil {
					return context.Cause(ctx)
				}
				return errPickCancelled
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Selector)
			return nil
		},
	}

	pickCmd.Flags().BoolVar(&smart, "smart", false, "synthesize a short selector from stable attributes")
	return pickCmd
}
