package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"cdconv/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	closeLogger()

	if err != nil {
		reportError(os.Stderr, err)
		os.Exit(errors.ExitCode(err))
	}
}

// reportError prints the error and the fixes suggested for its code.
func reportError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)

	var cdErr *errors.CdError
	if !stderrors.As(err, &cdErr) || len(cdErr.SuggestedFixes) == 0 {
		return
	}
	fmt.Fprintln(w, "Suggested fixes:")
	for _, fix := range cdErr.SuggestedFixes {
		switch {
		case fix.Command != "" && fix.Description != "":
			fmt.Fprintf(w, "  - %s: %s\n", fix.Description, fix.Command)
		case fix.Command != "":
			fmt.Fprintf(w, "  - %s\n", fix.Command)
		default:
			fmt.Fprintf(w, "  - %s\n", fix.Description)
		}
	}
}
