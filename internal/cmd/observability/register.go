package observability

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Register adds all observability-related commands to the given parent command.
// This is the main entry point for integrating the observability subpackage with
// the root command.
func Register(parent *cobra.Command) {
	RegisterLogsCmd(parent)
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
