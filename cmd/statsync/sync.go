package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bahaipedia/server-scripts/internal"
	"github.com/bahaipedia/server-scripts/internal/ingest"
)

type syncFlags struct {
	force       bool
	server      string
	file        string
	website     string
	kinds       []string
	filterMode  string
	ignoreFile  string
	failOnError bool
	quiet       bool
}

func (f *syncFlags) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.force, "force", "f", false, "Reprocess files even when the ledger says they are unchanged")
	cmd.Flags().StringVarP(&f.server, "server", "s", "", "Only process servers whose name or directory contains this value")
	cmd.Flags().StringVar(&f.file, "file", "", "Only process this report filename")
	cmd.Flags().StringVarP(&f.website, "website", "w", "", "Only process reports of this site")
	cmd.Flags().StringSliceVarP(&f.kinds, "kind", "k", nil, "Report kinds to process: summary, urls (default both)")
	cmd.Flags().StringVar(&f.filterMode, "filter-mode", "", "URL filter: allowlist or denylist (default from config)")
	cmd.Flags().StringVar(&f.ignoreFile, "ignore-file", "", "Ignore prefix list for denylist mode (default from config)")
	cmd.Flags().BoolVar(&f.failOnError, "fail-on-error", false, "Exit with status 2 when any file failed")
}

func (f *syncFlags) options() ingest.Options {
	return ingest.Options{
		Force:   f.force,
		Server:  f.server,
		File:    f.file,
		Website: f.website,
		Kinds:   f.kinds,
	}
}

func (f *syncFlags) overrides() internal.FilterOverrides {
	return internal.FilterOverrides{Mode: f.filterMode, IgnoreFile: f.ignoreFile}
}

func newSyncCmd(root *rootOptions) *cobra.Command {
	flags := &syncFlags{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Ingest new and changed report files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := root.openApp(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			engine, err := app.NewEngine(flags.overrides())
			if err != nil {
				return &exitError{code: 1, msg: err.Error()}
			}

			summary, runErr := engine.Run(cmd.Context(), flags.options())
			if summary != nil && !flags.quiet {
				renderRunSummary(cmd.OutOrStdout(), summary)
			}
			if runErr != nil {
				return runErr
			}
			if flags.failOnError && summary.HasFailures() {
				return &exitError{code: 2, msg: fmt.Sprintf("%d file(s) failed", summary.Failed)}
			}
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "Do not print the results table")
	return cmd
}
