// Package wat builds WebAssembly text-format modules as explicit instruction
// trees and serializes them in one pass.
//
// Code generators append Instr values to a Func body instead of writing text,
// so ordering and nesting can be checked in tests without looking at layout.
package wat

import (
	"fmt"
	"strconv"
)

// ValType is a WebAssembly value type.
type ValType string

const (
	I32 ValType = "i32"
	I64 ValType = "i64"
	F64 ValType = "f64"
)

// Kind tells the serializer how an Instr is laid out.
type Kind int

const (
	Plain Kind = iota // op followed by immediates on one line
	Block             // block ... end
	Loop              // loop ... end
	If                // if ... [else ...] end
	Comment           // ";; text", no effect on execution
)

// Instr is one instruction. Structured instructions carry their nested
// bodies; Else is only used by If.
type Instr struct {
	Kind Kind
	Op   string
	Imm  []string
	Body []Instr
	Else []Instr
}

// Local is a named parameter or local slot.
type Local struct {
	ID   string
	Type ValType
}

// Func is a function definition.
type Func struct {
	ID     string
	Params []Local
	Locals []Local
	Body   []Instr
}

// AddLocal declares a local unless one with the same ID already exists.
func (f *Func) AddLocal(id string, t ValType) {
	for _, l := range f.Locals {
		if l.ID == id {
			return
		}
	}
	f.Locals = append(f.Locals, Local{ID: id, Type: t})
}

// Emit appends instructions to the function body.
func (f *Func) Emit(ins ...Instr) {
	f.Body = append(f.Body, ins...)
}

// Import is a host function import.
type Import struct {
	Module  string
	Name    string
	ID      string
	Params  []ValType
	Results []ValType
}

// Export exposes a function under Name.
type Export struct {
	Name string
	Func string
}

// Module is a whole text-format module.
type Module struct {
	Imports []Import
	Memory  int // pages; 0 means no memory section
	Funcs   []*Func
	Exports []Export
}

// Func returns the function with the given ID, or nil.
func (m *Module) Func(id string) *Func {
	for _, f := range m.Funcs {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// Import returns the import with the given ID, or nil.
func (m *Module) Import(id string) *Import {
	for i := range m.Imports {
		if m.Imports[i].ID == id {
			return &m.Imports[i]
		}
	}
	return nil
}

//  Instruction constructors

func Op(op string, imm ...string) Instr { return Instr{Kind: Plain, Op: op, Imm: imm} }

func I32Const(v int32) Instr { return Op("i32.const", strconv.FormatInt(int64(v), 10)) }
func I64Const(v int64) Instr { return Op("i64.const", strconv.FormatInt(v, 10)) }
func F64Const(v float64) Instr { return Op("f64.const", FormatFloat(v)) }

func LocalGet(id string) Instr { return Op("local.get", id) }
func LocalSet(id string) Instr { return Op("local.set", id) }
func Call(id string) Instr     { return Op("call", id) }

func Br(depth int) Instr   { return Op("br", strconv.Itoa(depth)) }
func BrIf(depth int) Instr { return Op("br_if", strconv.Itoa(depth)) }

// Load reads a value of type t from the i32 address on the stack.
func Load(t ValType) Instr { return Op(string(t) + ".load") }

// Store writes the value on top of the stack to the i32 address below it.
func Store(t ValType) Instr { return Op(string(t) + ".store") }

func NewBlock(body ...Instr) Instr { return Instr{Kind: Block, Op: "block", Body: body} }
func NewLoop(body ...Instr) Instr  { return Instr{Kind: Loop, Op: "loop", Body: body} }

// NewIf consumes an i32 from the stack; els may be nil.
func NewIf(then, els []Instr) Instr {
	return Instr{Kind: If, Op: "if", Body: then, Else: els}
}

// Note returns a comment line.
func Note(text string) Instr { return Instr{Kind: Comment, Op: ";;", Imm: []string{text}} }

// FormatFloat renders v so that it always reads back as a float literal.
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	for _, c := range s {
		if c == '.' || c == 'e' || c == 'n' || c == 'N' {
			return s
		}
	}
	return s + ".0"
}

func (i Instr) String() string {
	switch i.Kind {
	case Block, Loop:
		return fmt.Sprintf("%s(%d)", i.Op, len(i.Body))
	case If:
		return fmt.Sprintf("if(%d, %d)", len(i.Body), len(i.Else))
	}
	s := i.Op
	for _, imm := range i.Imm {
		s += " " + imm
	}
	return s
}
