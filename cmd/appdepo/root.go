package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/appdepo/internal/config"
)

var (
	cfg *config.Config

	flagDBPath      string
	flagDownloadDir string
	flagLogLevel    string
	flagLogFormat   string
	flagJSON        bool
)

var rootCmd = &cobra.Command{
	Use:   "appdepo",
	Short: "Track GitHub repositories that publish Android APKs",
	Long: `appdepo follows GitHub repositories that ship Android APK releases.
It remembers which version you installed, checks for newer releases, and
downloads the APK asset, optionally handing it to an installer command such
as "adb install -r".

Configuration comes from APPDEPO_* environment variables; the flags below
override them for a single invocation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if err := applyFlags(cmd, loaded); err != nil {
			return err
		}
		cfg = loaded

		slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg))
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagDBPath, "db", "", "SQLite database path (APPDEPO_DB_PATH)")
	pf.StringVar(&flagDownloadDir, "download-dir", "", "directory APKs are written to (APPDEPO_DOWNLOAD_DIR)")
	pf.StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error (APPDEPO_LOG_LEVEL)")
	pf.StringVar(&flagLogFormat, "log-format", "", "text or json (APPDEPO_LOG_FORMAT)")
	pf.BoolVar(&flagJSON, "json", false, "print command output as JSON")
}

func applyFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("db") {
		c.DBPath = flagDBPath
	}
	if flags.Changed("download-dir") {
		c.DownloadDir = flagDownloadDir
	}
	if flags.Changed("log-level") {
		if err := c.LogLevel.UnmarshalText([]byte(flagLogLevel)); err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
	}
	if flags.Changed("log-format") {
		switch flagLogFormat {
		case config.LogFormatText, config.LogFormatJSON:
			c.LogFormat = flagLogFormat
		default:
			return fmt.Errorf("--log-format must be %q or %q", config.LogFormatText, config.LogFormatJSON)
		}
	}
	return nil
}

func newLogger(w io.Writer, c *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
