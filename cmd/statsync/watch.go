package main

import (
	"time"

	"github.com/spf13/cobra"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	flags := &syncFlags{}
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run sync periodically until interrupted",
		Long:  "Runs a complete sync on start and then every interval, and sweeps ledger entries of deleted report files once a day.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := root.openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			engine, err := app.NewEngine(flags.overrides())
			if err != nil {
				return &exitError{code: 1, msg: err.Error()}
			}

			scheduler := app.NewScheduler(engine, flags.options(), interval)
			if err := scheduler.Start(); err != nil {
				return err
			}
			<-cmd.Context().Done()
			scheduler.Stop()
			return nil
		},
	}

	flags.bind(cmd)
	cmd.Flags().DurationVar(&interval, "interval", 0, "Time between runs (default from config jobintervalseconds)")
	return cmd
}
