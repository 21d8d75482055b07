package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/chceswieta/inz-wasm-compiler/pkg/compiler"
)

const (
	ansiRed   = "\033[31m"
	ansiBold  = "\033[1m"
	ansiReset = "\033[0m"
)

// colorEnabled reports whether w is a terminal and NO_COLOR is unset.
func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// formatDiagnostic renders err as "file:line: error[CODE]: message".
// Errors that carry no code are printed as "file: error: message".
func formatDiagnostic(path string, err error, color bool) string {
	var diag compiler.Diagnostic
	if !errors.As(err, &diag) {
		return paint(color, fmt.Sprintf("%s: error: %v", path, err))
	}
	msg := diag.Error()
	loc := path
	if line := diag.SourceLine(); line > 0 {
		msg = strings.TrimPrefix(msg, fmt.Sprintf("line %d: ", line))
		loc = fmt.Sprintf("%s:%d", path, line)
	}
	return paint(color, fmt.Sprintf("%s: error[%s]: %s", loc, diag.Code(), msg))
}

func paint(color bool, s string) string {
	if !color {
		return s
	}
	head, tail, ok := strings.Cut(s, ": error")
	if !ok {
		return ansiRed + s + ansiReset
	}
	return ansiBold + head + ansiReset + ": " + ansiRed + "error" + ansiReset + tail
}
