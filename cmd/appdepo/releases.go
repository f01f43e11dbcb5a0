package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var releasesCmd = &cobra.Command{
	Use:   "releases <id|owner/repo>",
	Short: "List installable releases of an app",
	Args:  cobra.ExactArgs(1),
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

		releases, err := svc.releases.Releases(cmd.Context(), app.ID)
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), releases)
		}
		if len(releases) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s has no releases with an APK.\n", app.FullName())
			return nil
		}

		tw := newTable(cmd.OutOrStdout(), "TAG\tPUBLISHED\tASSET ID\tAPK\tSIZE")
		for _, rel := range releases {
			tag := rel.TagName
			if rel.Prerelease {
				tag += " (pre)"
			}
			if app.InstalledVersionTag != nil && *app.InstalledVersionTag == rel.TagName {
				tag += " *"
			}
			for _, asset := range rel.Assets {
				if !asset.IsAPK() {
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					tag, rel.PublishedAt.Format("2006-01-02"), asset.ID, asset.Name, humanBytes(asset.Size))
				tag = ""
			}
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(releasesCmd)
}
