package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"cdconv/internal/config"
	"cdconv/internal/convert"
	"cdconv/internal/errors"
	"cdconv/internal/history"
	"cdconv/internal/paths"
	"cdconv/internal/rf2"
)

// convertOptions holds the convert command flags.
type convertOptions struct {
	Dependency   string
	Extension    string
	Delta        string
	AttributeMap string
	OutputDir    string
	Date         string
	Format       string
	MetricsFile  string
	NoHistory    bool
	DryRun       bool
}

var convertOpts convertOptions

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert number concept links into concrete values",
	Long: `Read the dependency snapshot, optional extension and optional delta archives,
rewrite every OWL axiom that refers to a number concept through a mapped attribute,
and write the changed rows as a delta fileset.

Examples:
  cdconv convert -s SnomedCT_InternationalRF2.zip
  cdconv convert -s int.zip -e ext.zip -d delta.zip -o out --date 20210131
  cdconv convert -s int.zip --dry-run --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyConvertFlags(cmd, cfg, convertOpts)
		return runConvert(cmd.Context(), cmd.OutOrStdout(), cfg, convertOpts, logger)
	},
}

func init() {
	f := convertCmd.Flags()
	f.StringVarP(&convertOpts.Dependency, "snapshot", "s", "", "Dependency snapshot archive (.zip, required)")
	f.StringVarP(&convertOpts.Extension, "extension", "e", "", "Extension snapshot archive (.zip)")
	f.StringVarP(&convertOpts.Delta, "delta", "d", "", "Delta archive (.zip)")
	f.StringVarP(&convertOpts.AttributeMap, "attributes", "c", "", "Attribute map file (default: config.txt)")
	f.StringVarP(&convertOpts.OutputDir, "output", "o", "", "Output directory (default: output)")
	f.StringVar(&convertOpts.Date, "date", "", "Release date stamped into file names, YYYYMMDD (default: today)")
	f.StringVar(&convertOpts.Format, "format", "human", "Summary format (human, json, yaml)")
	f.StringVar(&convertOpts.MetricsFile, "metrics-file", "", "Write run metrics in Prometheus textfile format")
	f.BoolVar(&convertOpts.NoHistory, "no-history", false, "Do not record the run in the history ledger")
	f.BoolVar(&convertOpts.DryRun, "dry-run", false, "Resolve number concepts only, write nothing")
	rootCmd.AddCommand(convertCmd)
}

// applyConvertFlags lets explicitly set flags override the loaded config.
func applyConvertFlags(cmd *cobra.Command, c *config.Config, opts convertOptions) {
	if cmd.Flags().Changed("attributes") {
		c.AttributeMap = opts.AttributeMap
	}
	if cmd.Flags().Changed("output") {
		c.Output.Dir = opts.OutputDir
	}
	if cmd.Flags().Changed("date") {
		c.Output.Date = opts.Date
	}
	if cmd.Flags().Changed("metrics-file") {
		c.Metrics.Textfile = opts.MetricsFile
	}
	if opts.NoHistory {
		c.History.Enabled = false
	}
}

func runConvert(ctx context.Context, w io.Writer, c *config.Config, opts convertOptions, logger *slog.Logger) error {
	format, err := parseFormat(opts.Format)
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}

	for _, archive := range []string{opts.Dependency, opts.Extension, opts.Delta} {
		if archive == "" {
			continue
		}
		if err := paths.CheckReadableFile(archive, ".zip"); err != nil {
			return errors.New(errors.ConfigInvalid, "cannot use release archive", err)
		}
	}
	layers, err := rf2.NewLayers(opts.Dependency, opts.Extension, opts.Delta)
	if err != nil {
		return errors.New(errors.ConfigInvalid, "missing release archive", err)
	}

	attributes, err := config.LoadAttributeMap(paths.ExpandHome(c.AttributeMap))
	if err != nil {
		return err
	}
	logger.Info("Attribute map loaded", "file", c.AttributeMap, "attributes", attributes.Len())

	session, err := convert.NewSession(convert.Options{
		Layers:      layers,
		Attributes:  attributes,
		Families:    c.RF2Families(),
		NumberID:    c.Concepts.Number,
		IsAID:       c.Concepts.IsA,
		OutputDir:   c.Output.Dir,
		ReleaseDate: c.Output.Date,
		Fs:          afero.NewOsFs(),
	}, logger)
	if err != nil {
		return err
	}

	var summary *convert.Summary
	if opts.DryRun {
		if err := session.Analyze(ctx); err != nil {
			return err
		}
		summary = session.Summary()
	} else {
		if summary, err = session.Run(ctx); err != nil {
			return err
		}
	}

	if c.Metrics.Textfile != "" {
		if err := session.Metrics().WriteTextfile(c.Metrics.Textfile); err != nil {
			return errors.New(errors.OutputFailure, "write metrics textfile", err)
		}
	}
	if c.History.Enabled && !opts.DryRun {
		recordHistory(ctx, c, summary, logger)
	}

	out, err := FormatResponse(summary, format)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

// recordHistory adds the run to the ledger. Failures are logged and otherwise ignored.
func recordHistory(ctx context.Context, c *config.Config, summary *convert.Summary, logger *slog.Logger) {
	path, err := historyPath(c)
	if err != nil {
		logger.Warn("Run not recorded", "error", err)
		return
	}
	db, err := history.Open(path, logger)
	if err != nil {
		logger.Warn("Run not recorded", "ledger", path, "error", err)
		return
	}
	defer func() { _ = db.Close() }()

	if err := db.RecordRun(ctx, summary); err != nil {
		logger.Warn("Run not recorded", "ledger", path, "error", err)
		return
	}
	logger.Debug("Run recorded", "ledger", path, "run", summary.RunID)
}

func historyPath(c *config.Config) (string, error) {
	if c.History.Path != "" {
		return paths.ExpandHome(c.History.Path), nil
	}
	return paths.DefaultHistoryPath()
}
