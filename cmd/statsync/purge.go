package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bahaipedia/server-scripts/internal/config"
	"github.com/bahaipedia/server-scripts/internal/ingest"
)

func newPurgeCmd(root *rootOptions) *cobra.Command {
	var (
		website string
		server  string
		file    string
		all     bool
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete per-URL statistics so the next sync adds them again",
		Long: `Deletes per-URL statistics for a website, a server, a single report file or everything,
removes URLs left without statistics and forgets the matching ledger entries. Daily and
monthly totals are not touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := root.openApp(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			target := ingest.PurgeTarget{Website: website, File: file, All: all}
			if server != "" {
				servers, err := config.FilterServers(app.Config.Servers, server)
				if err != nil {
					return &exitError{code: 1, msg: err.Error()}
				}
				if len(servers) != 1 {
					return &exitError{code: 1, msg: fmt.Sprintf("--server %q matches %d servers", server, len(servers))}
				}
				target.Server = &servers[0].ID
			}

			result, err := ingest.Purge(app.DBManager, app.Logger, app.Config.ReportPrefix, target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s url stats and %s urls; forgot %s ledger entries\n",
				count(result.Stats), count(result.URLs), count(result.LedgerEntries))
			return nil
		},
	}

	cmd.Flags().StringVarP(&website, "website", "w", "", "Purge every statistic of this site")
	cmd.Flags().StringVarP(&server, "server", "s", "", "Purge every statistic of this server (with --file: limit the file to it)")
	cmd.Flags().StringVar(&file, "file", "", "Purge the site and month of this report filename")
	cmd.Flags().BoolVar(&all, "all", false, "Purge all per-URL statistics")
	return cmd
}
