package compiler

import (
	"github.com/chceswieta/inz-wasm-compiler/pkg/wat"
)

// Build runs the front end and the generator and returns the structured
// module.
func Build(src string, opts Options) (*wat.Module, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, err
	}
	prog, err := Parse(tokens)
	if err != nil {
		return nil, err
	}
	return Generate(prog, opts)
}

// Compile translates src into module text. Identical input and options give
// byte-identical output.
func Compile(src string, opts Options) (string, error) {
	mod, err := Build(src, opts)
	if err != nil {
		return "", err
	}
	return mod.String(), nil
}
