package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"cdconv/internal/classify"
)

var applyDeltaFormat string

var applyDeltaCmd = &cobra.Command{
	Use:   "apply-delta <classifier output> <relationship delta>",
	Short: "Merge classifier output into a relationship delta",
	Long: `Replace the rows of a relationship delta that the classifier re-issued.

Rows of the delta whose id appears in the classifier output are removed, then every
classifier row after its header is appended. The delta is rewritten in place.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := parseFormat(applyDeltaFormat)
		if err != nil {
			return err
		}
		res, err := classify.Apply(afero.NewOsFs(), args[0], args[1])
		if err != nil {
			return err
		}
		logger.Info("Classifier output applied", "delta", args[1],
			"suppressed", res.Suppressed, "appended", res.Appended)

		out, err := FormatResponse(res, format)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
		return err
	},
}

func init() {
	applyDeltaCmd.Flags().StringVar(&applyDeltaFormat, "format", "human", "Output format (human, json, yaml)")
	rootCmd.AddCommand(applyDeltaCmd)
}
