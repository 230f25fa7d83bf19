package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/seedreap/postreap/internal/config"
)

// setupLogging configures the global logger. Command-line flags win over
// the logging section of the config file.
func setupLogging(cmd *cobra.Command, lc config.LoggingConfig) error {
	level := lc.Level
	if level == "" || cmd.Flags().Changed("log-level") {
		level = logLevel
	}

	// Set log level based on CLI flag
	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	var out io.Writer = os.Stderr
	if logPretty || lc.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	if lc.File != "" {
		dir := filepath.Dir(lc.File)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}

		rotator := &lumberjack.Logger{
			Filename:   lc.File,
			MaxSize:    max(lc.MaxSizeMB, 1),
			MaxBackups: max(lc.MaxBackups, 0),
		}
		out = io.MultiWriter(out, rotator)
		logCloser = rotator
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger() //nolint:reassign // standard zerolog pattern
	return nil
}
