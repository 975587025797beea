package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/bahaipedia/server-scripts/internal"
	"github.com/bahaipedia/server-scripts/internal/config"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "statsync",
		Short:         "Load AWStats reports into the statistics database",
		Long:          "statsync reconciles AWStats monthly report files from every server directory into per-site daily, monthly and per-URL statistics.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default: statsync/config.yaml in the XDG config dirs)")

	cmd.AddCommand(newSyncCmd(opts))
	cmd.AddCommand(newPurgeCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newReportCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	return cmd
}

// openApp loads configuration, opens the store and makes sure the schema exists. One-shot
// commands pass stderr so logs stay out of their table output; a nil logs writer hands
// logging to cartridge.
func (o *rootOptions) openApp(cmd *cobra.Command, logs io.Writer) (*internal.Application, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, &exitError{code: 1, msg: err.Error()}
	}
	config.SetConfig(cfg)

	app, err := internal.NewAppWithConfig(cfg, logs)
	if err != nil {
		return nil, err
	}
	if err := app.DBManager.MigrateDatabase(); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}
