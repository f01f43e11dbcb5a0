package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search GitHub repositories, forks included",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := wire(cmd.Context(), cfg, wireOptions{})
		if err != nil {
			return err
		}
		defer svc.Close()

		result, err := svc.track.Search(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), result)
		}
		if len(result.Items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No repositories found (queries need at least 3 characters).")
			return nil
		}

		tw := newTable(cmd.OutOrStdout(), "REPOSITORY\tSTARS\tLANGUAGE\tDESCRIPTION")
		for _, repo := range result.Items {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", repo.FullName, repo.Stars, repo.Language, truncate(repo.Description, 60))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d results\n", len(result.Items), result.TotalCount)
		return nil
	},
}

var featuredCmd = &cobra.Command{
	Use:   "featured",
	Short: "Show the curated list of TV apps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, err := wire(cmd.Context(), cfg, wireOptions{})
		if err != nil {
			return err
		}
		defer svc.Close()

		apps, err := svc.track.Featured(cmd.Context())
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), apps)
		}

		tw := newTable(cmd.OutOrStdout(), "NAME\tREPOSITORY\tTAGS\tDESCRIPTION")
		for _, app := range apps {
			fmt.Fprintf(tw, "%s\t%s/%s\t%s\t%s\n", app.Name, app.Owner, app.Repo, strings.Join(app.Tags, ","), truncate(app.Description, 60))
		}
		return tw.Flush()
	},
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}

func init() {
	rootCmd.AddCommand(searchCmd, featuredCmd)
}
