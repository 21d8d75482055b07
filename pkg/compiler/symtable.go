package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// Symbol is one declared name of a procedure.
type Symbol struct {
	Type   Type
	Length int // 0 for scalars
	Line   int // declaration line
}

func (s Symbol) IsArray() bool { return s.Length > 0 }

// SymbolTable maps the names visible inside one procedure to their
// declarations. The parser opens a fresh table for every procedure and drops
// it at the closing brace, so nothing leaks between procedures.
type SymbolTable struct {
	owner   string
	symbols map[string]Symbol
}

func NewSymbolTable(owner string) *SymbolTable {
	return &SymbolTable{owner: owner, symbols: make(map[string]Symbol)}
}

// Owner is the name of the procedure the table belongs to.
func (s *SymbolTable) Owner() string { return s.owner }

// Len reports the number of declarations.
func (s *SymbolTable) Len() int { return len(s.symbols) }

// Declare adds d. Parameters and locals share one namespace.
func (s *SymbolTable) Declare(d Decl) error {
	if _, ok := s.symbols[d.Name]; ok {
		return &RedeclarationError{Name: d.Name, Line: d.Line}
	}
	s.symbols[d.Name] = Symbol{Type: d.Type, Length: d.Length, Line: d.Line}
	return nil
}

// Lookup returns the symbol and whether it was found.
func (s *SymbolTable) Lookup(name string) (Symbol, bool) {
	sym, ok := s.symbols[name]
	return sym, ok
}

// ResolveScalar turns a bare name into a typed Local.
func (s *SymbolTable) ResolveScalar(name string, line int) (*Local, error) {
	sym, ok := s.symbols[name]
	if !ok || sym.IsArray() {
		return nil, &UndeclaredVariableError{Name: name, Line: line}
	}
	return &Local{Name: name, Type: sym.Type}, nil
}

// ResolveArray turns an array name into a typed ArrayRef with no index yet.
// The caller resolves the index afterwards so that a missing array is
// reported before a missing index variable.
func (s *SymbolTable) ResolveArray(name string, line int) (*ArrayRef, error) {
	sym, ok := s.symbols[name]
	if !ok || !sym.IsArray() {
		return nil, &UndeclaredArrayError{Name: name, Line: line}
	}
	return &ArrayRef{Name: name, Type: sym.Type}, nil
}

// String returns a deterministically ordered dump of the table.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Scope %s:\n", s.owner)
	if len(s.symbols) == 0 {
		sb.WriteString("  (empty)\n")
		return sb.String()
	}
	names := make([]string, 0, len(s.symbols))
	for name := range s.symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sym := s.symbols[name]
		if sym.IsArray() {
			fmt.Fprintf(&sb, "  %-20s  %s[%d] (line %d)\n", name, sym.Type, sym.Length, sym.Line)
		} else {
			fmt.Fprintf(&sb, "  %-20s  %s (line %d)\n", name, sym.Type, sym.Line)
		}
	}
	return sb.String()
}
