package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/appdepo/internal/domain/model"
)

var (
	flagTag       string
	flagAssetID   int64
	flagNoInstall bool
)

var downloadCmd = &cobra.Command{
	Use:   "download <id|owner/repo>",
	Short: "Download an APK, then run the installer command if configured",
	Long: `Download an APK asset of a tracked app into APPDEPO_DOWNLOAD_DIR/apks.
Without --tag the newest installable release is used; without --asset-id its
first APK. When APPDEPO_INSTALL_COMMAND is set the file is passed to it and
the release tag is recorded as installed. Ctrl-C cancels the download and
removes the partial file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := wire(ctx, cfg, wireOptions{noInstall: flagNoInstall})
		if err != nil {
			return err
		}
		defer svc.Close()

		app, err := svc.resolveApp(ctx, args[0])
		if err != nil {
			return err
		}

		rel, asset, err := svc.releases.Resolve(ctx, app.ID, flagTag, flagAssetID)
		if err != nil {
			return err
		}

		out := cmd.ErrOrStderr()
		fmt.Fprintf(out, "Downloading %s %s (%s)\n", app.FullName(), rel.TagName, asset.Name)

		progress := func(d model.Download) {
			if d.State != model.DownloadStateDownloading {
				return
			}
			if d.TotalBytes > 0 {
				fmt.Fprintf(out, "\r  %3.0f%%  %s / %s", d.Progress*100, humanBytes(d.BytesCopied), humanBytes(d.TotalBytes))
			} else {
				fmt.Fprintf(out, "\r  %s", humanBytes(d.BytesCopied))
			}
		}

		if _, err := svc.downloads.Start(ctx, app.ID, rel, asset, progress); err != nil {
			return err
		}

		final, err := svc.downloads.Wait(ctx, app.ID)
		if errors.Is(err, context.Canceled) {
			_ = svc.downloads.Cancel(app.ID)
			waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			final, err = svc.downloads.Wait(waitCtx, app.ID)
		}
		fmt.Fprintln(out)
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), final)
		}

		switch final.State {
		case model.DownloadStateDownloaded:
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", final.FilePath, humanBytes(final.BytesCopied))
		case model.DownloadStateIdle:
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s and started installation of %s\n", final.FilePath, final.ReleaseTag)
		case model.DownloadStateCancelled:
			return errors.New("download cancelled")
		default:
			return fmt.Errorf("download failed: %s", final.Error)
		}
		return nil
	},
}

func init() {
	downloadCmd.Flags().StringVar(&flagTag, "tag", "", "release tag to download (default newest)")
	downloadCmd.Flags().Int64Var(&flagAssetID, "asset-id", 0, "asset ID to download (default first APK)")
	downloadCmd.Flags().BoolVar(&flagNoInstall, "no-install", false, "skip the configured installer command")
	rootCmd.AddCommand(downloadCmd)
}
