package compiler

import (
	"errors"
	"strings"
	"testing"
)

func TestSymbolTable(t *testing.T) {
	t.Run("DeclareAndLookup", func(t *testing.T) {
		s := NewSymbolTable("p")
		if err := s.Declare(Decl{Name: "x", Type: Int64, Line: 1}); err != nil {
			t.Fatalf("declare x: %v", err)
		}
		if err := s.Declare(Decl{Name: "buf", Type: Float64, Length: 4, Line: 1}); err != nil {
			t.Fatalf("declare buf: %v", err)
		}

		sym, ok := s.Lookup("x")
		if !ok || sym.Type != Int64 || sym.IsArray() {
			t.Errorf("x: got %+v, ok=%v", sym, ok)
		}
		sym, ok = s.Lookup("buf")
		if !ok || sym.Type != Float64 || sym.Length != 4 {
			t.Errorf("buf: got %+v, ok=%v", sym, ok)
		}
		if _, ok := s.Lookup("y"); ok {
			t.Error("y should not be found")
		}
		if s.Len() != 2 {
			t.Errorf("expected 2 symbols, got %d", s.Len())
		}
	})

	t.Run("Redeclaration", func(t *testing.T) {
		s := NewSymbolTable("p")
		_ = s.Declare(Decl{Name: "x", Type: Int64, Line: 1})
		err := s.Declare(Decl{Name: "x", Type: Float64, Line: 2})
		var redecl *RedeclarationError
		if !errors.As(err, &redecl) {
			t.Fatalf("expected *RedeclarationError, got %v", err)
		}
		if redecl.Name != "x" || redecl.Line != 2 {
			t.Errorf("unexpected error fields: %+v", redecl)
		}
		sym, _ := s.Lookup("x")
		if sym.Type != Int64 {
			t.Error("failed redeclaration must not overwrite the original entry")
		}
	})

	t.Run("ResolveScalar", func(t *testing.T) {
		s := NewSymbolTable("p")
		_ = s.Declare(Decl{Name: "f", Type: Float64})
		_ = s.Declare(Decl{Name: "a", Type: Int64, Length: 3})

		loc, err := s.ResolveScalar("f", 5)
		if err != nil {
			t.Fatalf("resolve f: %v", err)
		}
		if loc.Name != "f" || loc.Type != Float64 {
			t.Errorf("unexpected local %+v", loc)
		}

		var undecl *UndeclaredVariableError
		if _, err := s.ResolveScalar("a", 6); !errors.As(err, &undecl) {
			t.Errorf("array used as scalar: expected *UndeclaredVariableError, got %v", err)
		}
		if _, err := s.ResolveScalar("nope", 7); !errors.As(err, &undecl) || undecl.Line != 7 {
			t.Errorf("missing scalar: expected *UndeclaredVariableError on line 7, got %v", err)
		}
	})

	t.Run("ResolveArray", func(t *testing.T) {
		s := NewSymbolTable("p")
		_ = s.Declare(Decl{Name: "a", Type: Float64, Length: 3})
		_ = s.Declare(Decl{Name: "x", Type: Int64})

		ref, err := s.ResolveArray("a", 1)
		if err != nil {
			t.Fatalf("resolve a: %v", err)
		}
		if ref.Type != Float64 || ref.Index != nil {
			t.Errorf("unexpected ref %+v", ref)
		}

		var undecl *UndeclaredArrayError
		if _, err := s.ResolveArray("x", 2); !errors.As(err, &undecl) {
			t.Errorf("scalar used as array: expected *UndeclaredArrayError, got %v", err)
		}
	})

	t.Run("Isolation", func(t *testing.T) {
		first := NewSymbolTable("first")
		second := NewSymbolTable("second")
		_ = first.Declare(Decl{Name: "v", Type: Float64})
		if _, ok := second.Lookup("v"); ok {
			t.Error("declaration leaked into another table")
		}
	})

	t.Run("String", func(t *testing.T) {
		s := NewSymbolTable("p")
		_ = s.Declare(Decl{Name: "zeta", Type: Int64, Line: 1})
		_ = s.Declare(Decl{Name: "alpha", Type: Float64, Length: 2, Line: 1})
		out := s.String()
		if !strings.HasPrefix(out, "Scope p:") {
			t.Errorf("missing header:\n%s", out)
		}
		if strings.Index(out, "alpha") > strings.Index(out, "zeta") {
			t.Errorf("entries not sorted:\n%s", out)
		}
		if !strings.Contains(out, "float[2]") {
			t.Errorf("array entry not rendered:\n%s", out)
		}
		if got := NewSymbolTable("e").String(); !strings.Contains(got, "(empty)") {
			t.Errorf("empty table: %q", got)
		}
	})
}
