package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// Type is the static type of a declaration or value.
type Type int

const (
	Int64 Type = iota
	Float64
)

func (t Type) String() string {
	switch t {
	case Int64:
		return "int"
	case Float64:
		return "float"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Decl is a parameter or local declaration.
//
//	with int x, float buf[4]
//	     ^^^^^  Decl{Name: "x", Type: Int64}
//	            ^^^^^^^^^^^^  Decl{Name: "buf", Type: Float64, Length: 4}
type Decl struct {
	Name   string
	Type   Type
	Length int // element count for arrays, 0 for scalars
	Line   int
}

func (d Decl) IsArray() bool { return d.Length > 0 }

func (d Decl) String() string {
	if d.IsArray() {
		return fmt.Sprintf("%s %s[%d]", d.Type, d.Name, d.Length)
	}
	return fmt.Sprintf("%s %s", d.Type, d.Name)
}

//  Value nodes

// Expr is implemented by every node that can stand on the right of "=".
type Expr interface {
	exprNode()
	String() string
}

// Value is a leaf operand: a constant, a scalar local or an array element.
type Value interface {
	Expr
	ValueType() Type
}

// LValue is a Value that can be assigned to or read into.
type LValue interface {
	Value
	lvalueNode()
}

// Const is a literal. Int holds the value for Int64, Float for Float64.
type Const struct {
	Type  Type
	Int   int64
	Float float64
}

func IntConst(v int64) *Const     { return &Const{Type: Int64, Int: v} }
func FloatConst(v float64) *Const { return &Const{Type: Float64, Float: v} }

func (*Const) exprNode()         {}
func (c *Const) ValueType() Type { return c.Type }
func (c *Const) String() string {
	if c.Type == Float64 {
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	}
	return strconv.FormatInt(c.Int, 10)
}

// Local is a resolved scalar variable.
type Local struct {
	Name string
	Type Type
}

func (*Local) exprNode()         {}
func (*Local) lvalueNode()       {}
func (l *Local) ValueType() Type { return l.Type }
func (l *Local) String() string  { return l.Name }

// ArrayRef is a resolved array element. Index is a *Const or a *Local.
//
//	a[i]
//	^ ^
//	| Index
//	Name
type ArrayRef struct {
	Name  string
	Type  Type // element type
	Index Value
}

func (*ArrayRef) exprNode()         {}
func (*ArrayRef) lvalueNode()       {}
func (a *ArrayRef) ValueType() Type { return a.Type }
func (a *ArrayRef) String() string  { return fmt.Sprintf("%s[%s]", a.Name, a.Index) }

// ArithOp is a binary arithmetic operator.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
)

var arithNames = [...]string{OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod"}
var arithSymbols = [...]string{OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%"}

func (op ArithOp) String() string { return arithNames[op] }

// BinaryOp is the only compound expression: exactly one operator between
// two Values.
type BinaryOp struct {
	Op    ArithOp
	Left  Value
	Right Value
}

func (*BinaryOp) exprNode() {}
func (b *BinaryOp) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, arithSymbols[b.Op], b.Right)
}

// CmpOp is a relational operator.
type CmpOp int

const (
	CmpEq CmpOp = iota
	CmpNe
	CmpLt
	CmpGt
	CmpLe
	CmpGe
)

var cmpNames = [...]string{CmpEq: "eq", CmpNe: "ne", CmpLt: "lt", CmpGt: "gt", CmpLe: "le", CmpGe: "ge"}
var cmpSymbols = [...]string{CmpEq: "==", CmpNe: "!=", CmpLt: "<", CmpGt: ">", CmpLe: "<=", CmpGe: ">="}

func (op CmpOp) String() string { return cmpNames[op] }

// Condition guards if/while. It never nests.
type Condition struct {
	Op    CmpOp
	Left  Value
	Right Value
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %s", c.Left, cmpSymbols[c.Op], c.Right)
}

//  Command nodes

// Command is implemented by every statement node. The set is closed: the
// generator switches over all of them and fails on anything else.
type Command interface {
	commandNode()
	SourceLine() int
	String() string
}

// Assign represents  target = expr
type Assign struct {
	Target LValue
	Expr   Expr
	Line   int
}

// If represents  if cond { then }
type If struct {
	Cond Condition
	Then []Command
	Line int
}

// IfElse represents  if cond { then } else { else }
type IfElse struct {
	Cond Condition
	Then []Command
	Else []Command
	Line int
}

// While represents  while cond { body }
type While struct {
	Cond Condition
	Body []Command
	Line int
}

// ForUp represents  for v from a to b { body }
type ForUp struct {
	Var  *Local
	From Value
	To   Value
	Body []Command
	Line int
}

// ForDown represents  for v from a downto b { body }
type ForDown struct {
	Var    *Local
	From   Value
	Downto Value
	Body   []Command
	Line   int
}

// Read represents  read target
type Read struct {
	Target LValue
	Line   int
}

// Write represents  write value
type Write struct {
	Value Value
	Line  int
}

// Call represents  call name(args). Params holds the callee's parameter
// types once the program has been fully parsed.
type Call struct {
	Callee string
	Args   []Value
	Params []Type
	Line   int
}

func (*Assign) commandNode()  {}
func (*If) commandNode()      {}
func (*IfElse) commandNode()  {}
func (*While) commandNode()   {}
func (*ForUp) commandNode()   {}
func (*ForDown) commandNode() {}
func (*Read) commandNode()    {}
func (*Write) commandNode()   {}
func (*Call) commandNode()    {}

func (c *Assign) SourceLine() int  { return c.Line }
func (c *If) SourceLine() int      { return c.Line }
func (c *IfElse) SourceLine() int  { return c.Line }
func (c *While) SourceLine() int   { return c.Line }
func (c *ForUp) SourceLine() int   { return c.Line }
func (c *ForDown) SourceLine() int { return c.Line }
func (c *Read) SourceLine() int    { return c.Line }
func (c *Write) SourceLine() int   { return c.Line }
func (c *Call) SourceLine() int    { return c.Line }

func (c *Assign) String() string { return fmt.Sprintf("Assign(%s = %s)", c.Target, c.Expr) }
func (c *If) String() string {
	return fmt.Sprintf("If(%s, then=%d)", c.Cond, len(c.Then))
}
func (c *IfElse) String() string {
	return fmt.Sprintf("IfElse(%s, then=%d, else=%d)", c.Cond, len(c.Then), len(c.Else))
}
func (c *While) String() string {
	return fmt.Sprintf("While(%s, body=%d)", c.Cond, len(c.Body))
}
func (c *ForUp) String() string {
	return fmt.Sprintf("ForUp(%s from %s to %s, body=%d)", c.Var, c.From, c.To, len(c.Body))
}
func (c *ForDown) String() string {
	return fmt.Sprintf("ForDown(%s from %s downto %s, body=%d)", c.Var, c.From, c.Downto, len(c.Body))
}
func (c *Read) String() string  { return fmt.Sprintf("Read(%s)", c.Target) }
func (c *Write) String() string { return fmt.Sprintf("Write(%s)", c.Value) }
func (c *Call) String() string  { return fmt.Sprintf("Call(%s, args=%v)", c.Callee, c.Args) }

//  Top level

// Procedure is a user procedure: def name(params) with locals { body }
type Procedure struct {
	Name    string
	Params  []Decl
	Locals  []Decl
	Body    []Command
	Symbols *SymbolTable // params and locals, as the parser resolved them
	Line    int
}

// Main is the entry point: def main() with locals { body }
type Main struct {
	Locals  []Decl
	Body    []Command
	Symbols *SymbolTable
	Line    int
}

// Program owns every procedure and the entry point.
type Program struct {
	Procedures []*Procedure
	Main       *Main
}

// Procedure returns the procedure called name, or nil.
func (p *Program) Procedure(name string) *Procedure {
	for _, proc := range p.Procedures {
		if proc.Name == name {
			return proc
		}
	}
	return nil
}

// String returns an indented dump of the whole tree.
func (p *Program) String() string {
	var sb strings.Builder
	for _, proc := range p.Procedures {
		fmt.Fprintf(&sb, "Procedure %s(%s) with %s\n", proc.Name, declList(proc.Params), declList(proc.Locals))
		dumpCommands(&sb, proc.Body, 1)
	}
	if p.Main != nil {
		fmt.Fprintf(&sb, "Main with %s\n", declList(p.Main.Locals))
		dumpCommands(&sb, p.Main.Body, 1)
	}
	return sb.String()
}

func declList(ds []Decl) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = d.String()
	}
	return strings.Join(parts, ", ")
}

func dumpCommands(sb *strings.Builder, cmds []Command, depth int) {
	pad := strings.Repeat("  ", depth)
	for _, c := range cmds {
		fmt.Fprintf(sb, "%s%s\n", pad, c)
		switch n := c.(type) {
		case *If:
			dumpCommands(sb, n.Then, depth+1)
		case *IfElse:
			dumpCommands(sb, n.Then, depth+1)
			fmt.Fprintf(sb, "%selse\n", pad)
			dumpCommands(sb, n.Else, depth+1)
		case *While:
			dumpCommands(sb, n.Body, depth+1)
		case *ForUp:
			dumpCommands(sb, n.Body, depth+1)
		case *ForDown:
			dumpCommands(sb, n.Body, depth+1)
		}
	}
}
