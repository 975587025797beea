package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bahaipedia/server-scripts/internal/analytics"
	"github.com/bahaipedia/server-scripts/internal/websites"
)

func newReportCmd(root *rootOptions) *cobra.Command {
	var (
		website string
		year    int
		month   int
		top     int
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print monthly totals per server and the top URLs of a site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if month < 0 || month > 12 {
				return &exitError{code: 1, msg: fmt.Sprintf("invalid month %d", month)}
			}

			app, err := root.openApp(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			db := app.DBManager.GetConnection()
			site, err := websites.GetWebsiteByName(db, website)
			var notFound *websites.WebsiteNotFoundError
			if errors.As(err, &notFound) {
				return &exitError{code: 1, msg: err.Error()}
			}
			if err != nil {
				return err
			}

			rollups, err := analytics.GetMonthlyRollups(db, site.ID, year, month)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rollups) == 0 {
				fmt.Fprintf(out, "No statistics for %s in the selected period\n", site.Name)
				return nil
			}
			renderRollups(out, rollups, serverNames(app.Config.Servers))

			urls, err := analytics.GetTopURLs(db, site.ID, year, month, top)
			if err != nil {
				return err
			}
			if len(urls) > 0 {
				renderTopURLs(out, urls)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&website, "website", "w", "", "Site name")
	cmd.Flags().IntVarP(&year, "year", "y", time.Now().Year(), "Year")
	cmd.Flags().IntVarP(&month, "month", "m", 0, "Month (0 for the whole year)")
	cmd.Flags().IntVarP(&top, "top", "t", 20, "Number of URLs to list")
	_ = cmd.MarkFlagRequired("website")
	return cmd
}
