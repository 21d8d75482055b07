package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chceswieta/inz-wasm-compiler/pkg/compiler"
)

func newTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens [file.imp]",
		Short: "Print the token stream of a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			tokens, err := compiler.Lex(src)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), formatDiagnostic(args[0], err, colorEnabled(cmd.ErrOrStderr())))
				return fmt.Errorf("lexing failed")
			}
			out := cmd.OutOrStdout()
			for _, tok := range tokens {
				fmt.Fprintln(out, tok)
			}
			logger.Printf("%s: %d tokens", args[0], len(tokens))
			return nil
		},
	}
}

func newASTCmd() *cobra.Command {
	var symbols bool

	cmd := &cobra.Command{
		Use:   "ast [file.imp]",
		Short: "Print the resolved syntax tree of a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			prog, err := parseSource(src)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), formatDiagnostic(args[0], err, colorEnabled(cmd.ErrOrStderr())))
				return fmt.Errorf("parsing failed")
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, prog)
			if !symbols {
				return nil
			}
			for _, proc := range prog.Procedures {
				fmt.Fprintln(out)
				fmt.Fprint(out, proc.Symbols)
			}
			fmt.Fprintln(out)
			fmt.Fprint(out, prog.Main.Symbols)
			return nil
		},
	}
	cmd.Flags().BoolVar(&symbols, "symbols", false, "also print each procedure's symbol table")
	return cmd
}

func parseSource(src string) (*compiler.Program, error) {
	tokens, err := compiler.Lex(src)
	if err != nil {
		return nil, err
	}
	return compiler.Parse(tokens)
}
