package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"cdconv/internal/config"
	"cdconv/internal/errors"
	"cdconv/internal/history"
)

var (
	historyLimit      int
	historyFormat     string
	historyUnresolved string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded conversion runs",
	Long: `List the conversion runs recorded in the history ledger, newest first.

Examples:
  cdconv history                 # Last 20 runs
  cdconv history -n 0            # Every run
  cdconv history --unresolved <run-id>`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistory(cmd.Context(), cmd.OutOrStdout(), cfg, historyLimit, historyUnresolved, historyFormat)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show (0 for all)")
	historyCmd.Flags().StringVar(&historyFormat, "format", "human", "Output format (human, json, yaml)")
	historyCmd.Flags().StringVar(&historyUnresolved, "unresolved", "", "List the number concepts a run could not resolve")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(ctx context.Context, w io.Writer, c *config.Config, limit int, runID, formatFlag string) error {
	format, err := parseFormat(formatFlag)
	if err != nil {
		return err
	}
	path, err := historyPath(c)
	if err != nil {
		return errors.New(errors.ConfigInvalid, "cannot locate history ledger", err)
	}
	db, err := history.Open(path, logger)
	if err != nil {
		return errors.New(errors.OutputFailure, "cannot open history ledger "+path, err)
	}
	defer func() { _ = db.Close() }()

	var resp interface{}
	if runID != "" {
		concepts, err := db.Unresolved(ctx, runID)
		if err != nil {
			return errors.New(errors.InternalError, "read history ledger", err)
		}
		resp = &unresolvedResponse{RunID: runID, Concepts: concepts}
	} else {
		runs, err := db.ListRuns(ctx, limit)
		if err != nil {
			return errors.New(errors.InternalError, "read history ledger", err)
		}
		if runs == nil {
			runs = []history.Run{}
		}
		resp = runs
	}

	out, err := FormatResponse(resp, format)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}
