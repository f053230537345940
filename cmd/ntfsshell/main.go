// Command ntfsshell is an interactive shell over an NTFS volume image,
// demonstrating the read path exposed by pkg/ntfs and internal/ntfs. It is
// a demonstrator collaborator, not part of the core contract: cobra parses
// the command line (the image path and --version) the way the teacher's
// settings-driven flag layer does for cmd/bdinfo; the shell's own commands
// are dispatched by the REPL loop in shell.go, which prints to stdout/stderr.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "ntfsshell <image>",
		Short:   "Interactive shell over an NTFS volume image",
		Version: version,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(args[0])
		},
	}
	return root
}
