// Command impc compiles imp source files into WebAssembly text modules.
//
//	impc build prog.imp            writes prog.wat next to the source
//	impc build -o out -j 4 *.imp   compiles in parallel into out/
//	impc tokens prog.imp           prints the token stream
//	impc ast --symbols prog.imp    prints the resolved tree and scopes
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "impc:", err)
		os.Exit(1)
	}
}
