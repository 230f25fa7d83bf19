// Package cmd provides the CLI entry point.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/seedreap/postreap/internal/config"
)

// Version information - set at build time via ldflags.
//
//nolint:gochecknoglobals // build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
	BuiltBy   = "unknown"
)

//nolint:gochecknoglobals // cobra CLI flags require package-level variables
var (
	cfgFile   string
	logLevel  string
	logPretty bool

	appConfig config.Config
	logCloser io.Closer
)

// skipConfigLoad marks commands that run without a config file.
const skipConfigLoad = "skipConfigLoad"

// rootCmd represents the base command.
//
//nolint:gochecknoglobals // cobra requires package-level command variable
var rootCmd = &cobra.Command{
	Use:   "postreap",
	Short: "Hand finished downloads to your media managers",
	Long: `postreap runs after a download client finishes a download. It finds
the content, extracts archives, removes samples, optionally transcodes
the video and asks the media manager for the category (CouchPotato,
SickBeard, Sonarr, Radarr or Gamez) to import it. Torrents are paused
while their files are processed and resumed or removed afterwards.

Call it from NZBGet, SABnzbd or a torrent client, or run "postreap scan"
to process every pending download by hand.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

// exitError ends the process with a specific exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit code %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// Execute runs the root command.
func Execute() {
	// Check for version flag early to avoid config loading
	for _, arg := range os.Args[1:] {
		if arg == "-V" || arg == "--version" {
			printVersion()
			return
		}
	}

	os.Exit(exitCode(rootCmd.Execute()))
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			log.Error().Err(exit.err).Int("exit_code", exit.code).Msg("processing did not succeed")
		}
		return exit.code
	}

	log.Error().Err(err).Msg("command failed")
	return 1
}

//nolint:gochecknoinits // cobra requires init for flag registration
func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.postreap.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "log-pretty", false, "enable pretty (human-readable) logging")
	rootCmd.Flags().BoolP("version", "V", false, "print version information and exit")

	rootCmd.AddCommand(
		newProcessCommand(),
		newNZBGetCommand(),
		newSABnzbdCommand(),
		newTorrentCommand(),
		newScanCommand(),
		newConfigCommand(),
		newVersionCommand(),
	)
}

func initConfig(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[skipConfigLoad] == "true" {
		return setupLogging(cmd, config.LoggingConfig{})
	}

	// Load config from file and environment variables
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: cfgFile,
	})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	appConfig = cfg

	return setupLogging(cmd, cfg.Logging)
}
