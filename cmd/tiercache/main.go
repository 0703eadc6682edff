// Command tiercache inspects and maintains the client caches from a shell:
// read or write single entries, invalidate keys, clear on logout and report
// disk usage.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/tiercache/appcache"
	"github.com/unkn0wn-root/tiercache/internal/config"
	charmlog "github.com/unkn0wn-root/tiercache/log/charm"
	"github.com/unkn0wn-root/tiercache/sloghooks"
)

var (
	// Version as provided by goreleaser.
	Version = ""

	configFile string
	envFile    string

	settings *config.Settings
	logger   *log.Logger
	logClose = func() error { return nil }

	rootCmd = &cobra.Command{
		Use:           "tiercache",
		Short:         "Inspect and maintain the audio and profile caches",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			s, err := config.Load(config.LoadOptions{ConfigFile: configFile, EnvFile: envFile})
			if err != nil {
				return err
			}
			settings = s
			return setupLog(s.Log)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return logClose()
		},
	}
)

func setupLog(cfg config.Logging) error {
	_ = logClose()
	logClose = func() error { return nil }
	var w io.Writer = os.Stderr
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		w = f
		logClose = f.Close
	}
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	formatter := log.TextFormatter
	switch cfg.Format {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}
	logger = log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "tiercache",
	})
	return nil
}

// cacheOptions routes facade logs and hook events to the command's logger.
func cacheOptions() []appcache.Option {
	return []appcache.Option{
		appcache.WithLogger(charmlog.Logger{L: logger}),
		appcache.WithHooks(sloghooks.New(slog.New(logger), sloghooks.Options{})),
	}
}

func init() {
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: tiercache.yml in the user config dir)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	rootCmd.AddCommand(getCmd, putCmd, invalidateCmd, clearCmd, statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error("command failed", "err", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		_ = logClose()
		os.Exit(1)
	}
}
