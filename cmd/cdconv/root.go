package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"cdconv/internal/config"
	"cdconv/internal/errors"
	"cdconv/internal/slogutil"
	"cdconv/internal/version"
)

var (
	configFlag  string
	verboseFlag int
	quietFlag   bool
	logFileFlag string
)

// Set by the root pre-run for every subcommand.
var (
	cfg       *config.Config
	logger    = slogutil.NewDiscardLogger()
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "cdconv",
	Short: "cdconv - SNOMED CT concrete domain converter",
	Long: `cdconv rewrites OWL axioms that express numeric attributes as links to number
concepts into concrete data values, and writes the changed rows as an RF2 delta.

The dependency snapshot is read first, then the extension and delta archives, so the
most specific release wins.`,
	Version:           version.Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.SetVersionTemplate("cdconv version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Tool config file (default: cdconv.toml in . or ~/.cdconv)")
	rootCmd.PersistentFlags().CountVarP(&verboseFlag, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress log output")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "Also write debug logs to this file (size rotated)")
}

// setup loads the tool config and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	level := slogutil.LevelFromVerbosity(verboseFlag, quietFlag, slogutil.LevelFromString(cfg.Logging.Level))
	l, closer, err := slogutil.Setup(slogutil.Options{
		Level:      level,
		Format:     cfg.Logging.Format,
		Console:    os.Stderr,
		File:       logFileFlag,
		FileLevel:  slog.LevelDebug,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return errors.New(errors.ConfigInvalid, "cannot open log file", err)
	}
	logger = l
	logCloser = closer
	logger.Debug("Configuration loaded", "config", cfg.String())
	return nil
}

func closeLogger() {
	if logCloser != nil {
		_ = logCloser.Close()
		logCloser = nil
	}
}
