package main

import (
	"github.com/spf13/cobra"

	"github.com/bahaipedia/server-scripts/internal/analytics"
	"github.com/bahaipedia/server-scripts/internal/config"
	"github.com/bahaipedia/server-scripts/internal/ledger"
)

func newStatusCmd(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show row counts and the most recently processed files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := root.openApp(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			db := app.DBManager.GetConnection()
			counts, err := analytics.CountRows(db)
			if err != nil {
				return err
			}
			entries, err := ledger.Count(db)
			if err != nil {
				return err
			}
			renderRowCounts(cmd.OutOrStdout(), counts, entries)

			recent, err := ledger.ListRecent(db, limit)
			if err != nil {
				return err
			}
			if len(recent) > 0 {
				renderLedger(cmd.OutOrStdout(), recent, serverNames(app.Config.Servers))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of recent ledger entries to show")
	return cmd
}

func serverNames(servers []config.Server) map[uint]string {
	names := make(map[uint]string, len(servers))
	for _, s := range servers {
		names[s.ID] = s.Name
	}
	return names
}
