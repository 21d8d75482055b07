package main

import (
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
)

// logger carries progress messages; it is silent unless --verbose is set.
var logger = log.New(io.Discard, "impc: ", 0)

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "impc",
		Short: "impc compiles imp programs to WebAssembly text",
		Long: `impc is the compiler for the imp teaching language.

Commands:
  build   Compile (.imp) source files into (.wat) modules
  tokens  Print the token stream of a source file
  ast     Print the resolved syntax tree of a source file
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger.SetOutput(cmd.ErrOrStderr())
			} else {
				logger.SetOutput(io.Discard)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log progress to stderr")

	root.AddCommand(newBuildCmd(), newTokensCmd(), newASTCmd())
	return root
}

// readSource reads path, or standard input when path is "-".
func readSource(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}
