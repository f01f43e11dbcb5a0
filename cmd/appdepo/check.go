package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/appdepo/internal/application"
)

var flagCheckAll bool

var checkCmd = &cobra.Command{
	Use:   "check [id|owner/repo]",
	Short: "Check tracked apps for new releases",
	Long: `Check GitHub for the latest release of tracked apps. Without arguments only
apps not checked within APPDEPO_STALE_AFTER are checked; --all forces every
app. Naming an app checks just that one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := wire(cmd.Context(), cfg, wireOptions{})
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx := cmd.Context()

		if len(args) == 1 {
			app, err := svc.resolveApp(ctx, args[0])
			if err != nil {
				return err
			}
			outcome, err := svc.checks.CheckApp(ctx, *app)
			if err != nil {
				return err
			}
			updated, err := svc.track.Get(ctx, app.ID)
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(cmd.OutOrStdout(), updated)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", updated.FullName(), outcome)
			printAppLine(cmd, *updated)
			return nil
		}

		var summary application.CheckSummary
		if flagCheckAll {
			summary, err = svc.checks.CheckAll(ctx)
		} else {
			summary, err = svc.checks.CheckStale(ctx)
		}
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), summary)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Checked %d apps in %s: %d updated, %d failed, %d skipped\n",
			summary.Checked, summary.Duration, summary.Updated, summary.Failed, summary.Skipped)

		apps, err := svc.track.List(ctx)
		if err != nil {
			return err
		}
		for _, app := range apps {
			if app.HasUpdate() {
				printAppLine(cmd, app)
			}
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&flagCheckAll, "all", false, "check every app regardless of when it was last checked")
	rootCmd.AddCommand(checkCmd)
}
