package compiler

import "fmt"

// Diagnostic codes, stable across releases so tools can match on them.
const (
	CodeLexical         = "E101"
	CodeSyntax          = "E102"
	CodeUndeclaredVar   = "E201"
	CodeUndeclaredArray = "E202"
	CodeRedeclaration   = "E203"
	CodeUnknownProc     = "E301"
	CodeArgCount        = "E302"
	CodeDuplicateProc   = "E303"
	CodeTypeMismatch    = "E401"
)

// Diagnostic is implemented by every error the pipeline returns.
type Diagnostic interface {
	error
	Code() string
	SourceLine() int // 0 when the error is not tied to a line
}

// LexicalError reports a character that starts no token.
type LexicalError struct {
	Char rune
	Line int
}

func (e *LexicalError) Error() string {
	return fmt.Sprintf("line %d: illegal character %q", e.Line, e.Char)
}
func (e *LexicalError) Code() string    { return CodeLexical }
func (e *LexicalError) SourceLine() int { return e.Line }

// SyntaxError reports the first token the grammar could not accept.
type SyntaxError struct {
	Token string
	Line  int
	// Reason is optional extra context, e.g. "expected RBRACE".
	Reason string
}

func (e *SyntaxError) Error() string {
	tok := e.Token
	if tok == "" {
		tok = "end of input"
	}
	if e.Reason != "" {
		return fmt.Sprintf("line %d: syntax error at %q: %s", e.Line, tok, e.Reason)
	}
	return fmt.Sprintf("line %d: syntax error at %q", e.Line, tok)
}
func (e *SyntaxError) Code() string    { return CodeSyntax }
func (e *SyntaxError) SourceLine() int { return e.Line }

type UndeclaredVariableError struct {
	Name string
	Line int
}

func (e *UndeclaredVariableError) Error() string {
	return fmt.Sprintf("line %d: undeclared variable %q", e.Line, e.Name)
}
func (e *UndeclaredVariableError) Code() string    { return CodeUndeclaredVar }
func (e *UndeclaredVariableError) SourceLine() int { return e.Line }

type UndeclaredArrayError struct {
	Name string
	Line int
}

func (e *UndeclaredArrayError) Error() string {
	return fmt.Sprintf("line %d: undeclared array %q", e.Line, e.Name)
}
func (e *UndeclaredArrayError) Code() string    { return CodeUndeclaredArray }
func (e *UndeclaredArrayError) SourceLine() int { return e.Line }

// RedeclarationError reports a name declared twice in one procedure.
type RedeclarationError struct {
	Name string
	Line int
}

func (e *RedeclarationError) Error() string {
	return fmt.Sprintf("line %d: %q is already declared in this procedure", e.Line, e.Name)
}
func (e *RedeclarationError) Code() string    { return CodeRedeclaration }
func (e *RedeclarationError) SourceLine() int { return e.Line }

type UnknownProcedureError struct {
	Name string
	Line int
}

func (e *UnknownProcedureError) Error() string {
	return fmt.Sprintf("line %d: call to unknown procedure %q", e.Line, e.Name)
}
func (e *UnknownProcedureError) Code() string    { return CodeUnknownProc }
func (e *UnknownProcedureError) SourceLine() int { return e.Line }

type ArgumentCountError struct {
	Name     string
	Expected int
	Actual   int
	Line     int
}

func (e *ArgumentCountError) Error() string {
	return fmt.Sprintf("line %d: procedure %q takes %d argument(s), got %d", e.Line, e.Name, e.Expected, e.Actual)
}
func (e *ArgumentCountError) Code() string    { return CodeArgCount }
func (e *ArgumentCountError) SourceLine() int { return e.Line }

type DuplicateProcedureError struct {
	Name string
	Line int
}

func (e *DuplicateProcedureError) Error() string {
	return fmt.Sprintf("line %d: procedure %q is already defined", e.Line, e.Name)
}
func (e *DuplicateProcedureError) Code() string    { return CodeDuplicateProc }
func (e *DuplicateProcedureError) SourceLine() int { return e.Line }

// TypeMismatchError is raised by the generator when operand or slot types
// cannot be reconciled.
type TypeMismatchError struct {
	Context string
	Line    int
}

func (e *TypeMismatchError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: type mismatch: %s", e.Line, e.Context)
	}
	return "type mismatch: " + e.Context
}
func (e *TypeMismatchError) Code() string    { return CodeTypeMismatch }
func (e *TypeMismatchError) SourceLine() int { return e.Line }
