package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/appdepo/internal/domain/model"
)

var (
	flagUpdatesOnly bool
	flagClear       bool
)

var addCmd = &cobra.Command{
	Use:   "add <owner/repo>",
	Short: "Start tracking a GitHub repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := wire(cmd.Context(), cfg, wireOptions{})
		if err != nil {
			return err
		}
		defer svc.Close()

		app, err := svc.track.AddByOwnerRepo(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		// Record the latest release right away; a failure here is not fatal.
		if _, err := svc.checks.CheckApp(cmd.Context(), *app); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not check latest release: %v\n", err)
		}
		if refreshed, err := svc.track.Get(cmd.Context(), app.ID); err == nil {
			app = refreshed
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), app)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Tracking %s (id %d), latest release %s\n", app.FullName(), app.ID, orDash(app.LatestKnownReleaseTag))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tracked apps",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, err := wire(cmd.Context(), cfg, wireOptions{})
		if err != nil {
			return err
		}
		defer svc.Close()

		apps, err := svc.track.List(cmd.Context())
		if err != nil {
			return err
		}
		if flagUpdatesOnly {
			filtered := apps[:0]
			for _, app := range apps {
				if app.HasUpdate() {
					filtered = append(filtered, app)
				}
			}
			apps = filtered
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), apps)
		}
		if len(apps) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No apps tracked.")
			return nil
		}

		tw := newTable(cmd.OutOrStdout(), "ID\tREPOSITORY\tINSTALLED\tLATEST\tSTATUS\tCHECKED")
		for _, app := range apps {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
				app.ID, app.FullName(), orDash(app.InstalledVersionTag), orDash(app.LatestKnownReleaseTag),
				appStatus(app), ago(app.LastCheckedAt))
		}
		return tw.Flush()
	},
}

var removeCmd = &cobra.Command{
	Use:     "remove <id|owner/repo>",
	Aliases: []string{"rm"},
	Short:   "Stop tracking an app",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := wire(cmd.Context(), cfg, wireOptions{})
		if err != nil {
			return err
		}
		defer svc.Close()

		app, err := svc.resolveApp(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := svc.track.Delete(cmd.Context(), app.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", app.FullName())
		return nil
	},
}

var installedCmd = &cobra.Command{
	Use:   "installed <id|owner/repo> [tag]",
	Short: "Record or clear the installed version of an app",
	Long: `Record which release tag is installed on the device. Updates are reported
whenever the latest known release tag differs from this value. Use --clear
to forget the installed version.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !flagClear && len(args) != 2 {
			return fmt.Errorf("a tag is required unless --clear is given")
		}

		svc, err := wire(cmd.Context(), cfg, wireOptions{})
		if err != nil {
			return err
		}
		defer svc.Close()

		app, err := svc.resolveApp(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if flagClear {
			err = svc.track.ClearInstalled(cmd.Context(), app.ID)
		} else {
			err = svc.track.MarkInstalled(cmd.Context(), app.ID, args[1])
		}
		if err != nil {
			return err
		}

		updated, err := svc.track.Get(cmd.Context(), app.ID)
		if err != nil {
			return err
		}
		printAppLine(cmd, *updated)
		return nil
	},
}

func printAppLine(cmd *cobra.Command, app model.TrackedApp) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: installed %s, latest %s (%s)\n",
		app.FullName(), orDash(app.InstalledVersionTag), orDash(app.LatestKnownReleaseTag), appStatus(app))
}

func init() {
	listCmd.Flags().BoolVar(&flagUpdatesOnly, "updates", false, "only show apps with an update available")
	installedCmd.Flags().BoolVar(&flagClear, "clear", false, "forget the installed version")

	rootCmd.AddCommand(addCmd, listCmd, removeCmd, installedCmd)
}
