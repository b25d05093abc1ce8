// File: cmd/serve.go
package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickseq/internal/control"
	"github.com/xkilldash9x/clickseq/internal/observability"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve [url]",
		Short: "Drive a page with JSON commands on stdin",
		Long: `Opens the URL in a browser and reads one JSON command per line from
standard input, for example:

  {"action":"start_clicking","selectors":["#go","120,80"],"delay":500,"repeats":3}
  {"action":"stop_clicking"}
  {"action":"start_picking","smart":true}

Outcomes are written to standard output as one JSON event per line. Closing
standard input stops any run or pick and closes the browser. Closing the
browser window ends the session the same way.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			a, err := newApp(ctx, cfg, logger, args[0])
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Warn("Failed to close browser session cleanly.", zap.Error(err))
				}
			}()

			ctx, cancel := untilClosed(ctx, a.session.Done())
			defer cancel()

			d := control.NewDispatcher(a.engine, a.picker, a.store, logger)
			logger.Info("Serving commands on stdin.", zap.String("url", args[0]))
			err = control.Serve(ctx, d, a.bus, cmd.InOrStdin(), cmd.OutOrStdout())
			if errors.Is(context.Cause(ctx), errBrowserClosed) {
				logger.Info("Browser window closed, stopped serving.")
			}
			return err
		},
	}
}
