package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chceswieta/inz-wasm-compiler/pkg/compiler"
	"github.com/chceswieta/inz-wasm-compiler/pkg/utils"
)

type buildOptions struct {
	outDir       string
	importModule string
	comments     bool
	jobs         int
}

func newBuildCmd() *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:   "build [file.imp ...]",
		Short: "Compile (.imp) source files into (.wat) modules",
		Long: `Compile each source file into a module written next to it, or into
the --out directory. A single "-" reads standard input and writes the
module to standard output.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "output directory for .wat files (default: next to each source)")
	cmd.Flags().StringVar(&opts.importModule, "import-module", compiler.DefaultImportModule, "module name the read/write imports come from")
	cmd.Flags().BoolVar(&opts.comments, "comments", false, "annotate the output with source line comments")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", runtime.NumCPU(), "number of files compiled in parallel")
	return cmd
}

func runBuild(cmd *cobra.Command, opts buildOptions, files []string) error {
	copts := compiler.Options{ImportModule: opts.importModule, LineComments: opts.comments}
	color := colorEnabled(cmd.ErrOrStderr())

	if len(files) == 1 && files[0] == "-" {
		src, err := readSource(cmd, "-")
		if err != nil {
			return err
		}
		out, err := compiler.Compile(src, copts)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), formatDiagnostic("<stdin>", err, color))
			return fmt.Errorf("compilation failed")
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	}

	if opts.outDir != "" {
		if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
			return err
		}
	}

	// Diagnostics are collected per file and printed in argument order so
	// the report does not depend on scheduling. A failing file never stops
	// the others from being compiled and written.
	diags := make([]error, len(files))
	dsts := make([]string, len(files))
	owner := make(map[string]int, len(files))
	for i, path := range files {
		dst, err := utils.OutputPath(path, opts.outDir, ".wat")
		if err != nil {
			diags[i] = err
			continue
		}
		if j, taken := owner[dst]; taken {
			diags[i] = fmt.Errorf("output %s is also written by %s", dst, files[j])
			continue
		}
		owner[dst] = i
		dsts[i] = dst
	}

	var g errgroup.Group
	if opts.jobs > 0 {
		g.SetLimit(opts.jobs)
	}
	for i, path := range files {
		if diags[i] != nil {
			continue
		}
		g.Go(func() error {
			diags[i] = buildFile(path, dsts[i], copts)
			return nil
		})
	}
	g.Wait()

	failed := 0
	for i, err := range diags {
		if err == nil {
			continue
		}
		failed++
		fmt.Fprintln(cmd.ErrOrStderr(), formatDiagnostic(files[i], err, color))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed to compile", failed, len(files))
	}
	logger.Printf("compiled %d file(s)", len(files))
	return nil
}

// buildFile compiles path and writes the module to dst. Nothing is written
// when compilation fails.
func buildFile(path, dst string, copts compiler.Options) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	mod, err := compiler.Build(string(src), copts)
	if err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := mod.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Printf("%s -> %s (%d functions)", path, dst, len(mod.Funcs))
	return nil
}
