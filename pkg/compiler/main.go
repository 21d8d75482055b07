// Package compiler translates the small imperative "imp" language into
// WebAssembly text format.
//
// Pipeline: source → Lex → Parse (with per-procedure symbol tables) → Generate → wat.Module → text
//
// Every stage stops at the first problem and returns one of the error types
// in errors.go; a failed compilation produces no output.
package compiler
