package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/rodrick-mpofu/teachback-ai/internal/temporalx"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a Temporal worker that serves remote turn execution",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBase(cmd)
		if err != nil {
			return err
		}
		defer b.close()

		if !b.cfg.Temporal.Enabled() {
			return errors.New("temporal.address is not configured")
		}
		ctx := cmd.Context()

		model, _, err := b.model(ctx)
		if err != nil {
			return err
		}
		c, err := temporalx.Dial(ctx, b.cfg.Temporal, b.log)
		if err != nil {
			return err
		}
		defer c.Close()

		w, err := temporalx.NewWorker(c, b.cfg.Temporal, model, b.log)
		if err != nil {
			return err
		}
		return temporalx.Run(ctx, w, b.log)
	},
}
