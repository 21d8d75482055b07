package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/chceswieta/inz-wasm-compiler/pkg/wat"
)

func compileOrFail(t *testing.T, src string) string {
	t.Helper()
	out, err := Compile(src, Options{})
	if err != nil {
		t.Fatalf("compile failed: %v\nsource:\n%s", err, src)
	}
	return out
}

func assertContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Errorf("expected output to contain %q\n---\n%s", want, out)
	}
}

func assertNotContains(t *testing.T, out, unwanted string) {
	t.Helper()
	if strings.Contains(out, unwanted) {
		t.Errorf("expected output NOT to contain %q\n---\n%s", unwanted, out)
	}
}

// assertSequence checks that the given instruction lines appear in order,
// one per line, with nothing else between them.
func assertSequence(t *testing.T, out string, want ...string) {
	t.Helper()
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		lines = append(lines, strings.TrimSpace(l))
	}
	for i := 0; i+len(want) <= len(lines); i++ {
		match := true
		for j, w := range want {
			if lines[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return
		}
	}
	t.Errorf("expected consecutive lines %q\n---\n%s", want, out)
}

func TestGenerateMain(t *testing.T) {
	out := compileOrFail(t, "def main() with int x { x = 1 write x }")
	want := `(module
  (import "imports" "write" (func $~write_int (param i64)))
  (import "imports" "write" (func $~write_float (param f64)))
  (func $main (local $x i64)
    i64.const 1
    local.set $x
    local.get $x
    call $~write_int
  )
  (export "main" (func $main))
)
`
	if out != want {
		t.Errorf("output mismatch:\n got:\n%s\nwant:\n%s", out, want)
	}
}

func TestGenerateArrayAddress(t *testing.T) {
	out := compileOrFail(t, "def main() with int b[2], int a[5] { a[3] = 7 }")
	assertContains(t, out, "(memory 1)")
	assertSequence(t, out,
		"i32.const 16",
		"i32.const 3",
		"i32.const 8",
		"i32.mul",
		"i32.add",
		"i64.const 7",
		"i64.store",
	)
}

func TestGenerateVariableIndex(t *testing.T) {
	out := compileOrFail(t, "def main() with int i, float a[4] { i = 2 write a[i] }")
	assertSequence(t, out,
		"i32.const 0",
		"local.get $i",
		"i32.wrap_i64",
		"i32.const 8",
		"i32.mul",
		"i32.add",
		"f64.load",
		"call $~write_float",
	)
}

func TestGenerateArraysAreDisjointAcrossProcedures(t *testing.T) {
	src := `def p() with int a[3] { a[0] = 1 }
def main() with int b[2] { b[0] = 2 call p() }`
	mod, err := Build(src, Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	out := mod.String()
	// p's region is bytes 0..23, main's starts at 24.
	assertSequence(t, out, "i32.const 0", "i32.const 0", "i32.const 8")
	assertSequence(t, out, "i32.const 24", "i32.const 0", "i32.const 8")
	if mod.Memory != 1 {
		t.Errorf("expected 1 memory page, got %d", mod.Memory)
	}
}

func TestGenerateNoMemoryWithoutArrays(t *testing.T) {
	out := compileOrFail(t, "def main() with int x { x = 1 }")
	assertNotContains(t, out, "(memory")
}

func TestGenerateMemoryPages(t *testing.T) {
	mod, err := Build("def main() with float a[8193] { a[0] = 1.0 }", Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if mod.Memory != 2 {
		t.Errorf("8193 elements need 2 pages, got %d", mod.Memory)
	}
}

func TestGeneratePromotion(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "Int Plus Float",
			src:  "def main() with int x, float y, float z { z = x + y }",
			want: []string{"local.get $x", "f64.convert_i64_s", "local.get $y", "f64.add", "local.set $z"},
		},
		{
			name: "Int Plus Float Constant",
			src:  "def main() with int x, float z { z = x + 1.5 }",
			want: []string{"local.get $x", "f64.convert_i64_s", "f64.const 1.5", "f64.add", "local.set $z"},
		},
		{
			name: "Float Plus Int Constant",
			src:  "def main() with float y, float z { z = y * 2 }",
			want: []string{"local.get $y", "i64.const 2", "f64.convert_i64_s", "f64.mul", "local.set $z"},
		},
		{
			name: "Int Into Float Slot",
			src:  "def main() with int x, float z { z = x }",
			want: []string{"local.get $x", "f64.convert_i64_s", "local.set $z"},
		},
		{
			name: "Mixed Comparison",
			src:  "def main() with int x, float y { if x < y { write x } }",
			want: []string{"local.get $x", "f64.convert_i64_s", "local.get $y", "f64.lt", "if"},
		},
		{
			name: "Int Argument To Float Parameter",
			src:  "def p(float f) { write f }\ndef main() { call p(3) }",
			want: []string{"i64.const 3", "f64.convert_i64_s", "call $p"},
		},
		{
			name: "Read Float",
			src:  "def main() with float f { read f }",
			want: []string{"call $~read_float", "local.set $f"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := compileOrFail(t, tt.src)
			assertSequence(t, out, tt.want...)
		})
	}
}

func TestGenerateIntegerOps(t *testing.T) {
	ops := map[string]string{
		"+": "i64.add",
		"-": "i64.sub",
		"*": "i64.mul",
		"/": "i64.div_s",
		"%": "i64.rem_s",
	}
	for sym, op := range ops {
		t.Run(op, func(t *testing.T) {
			out := compileOrFail(t, "def main() with int x { x = x "+sym+" 3 }")
			assertSequence(t, out, "local.get $x", "i64.const 3", op, "local.set $x")
		})
	}
}

func TestGenerateFloatMod(t *testing.T) {
	out := compileOrFail(t, "def main() with float a, float b { a = a % b a = b % a }")
	assertContains(t, out, "(local $~fmod_lhs f64) (local $~fmod_rhs f64)")
	if n := strings.Count(out, "(local $~fmod_lhs f64)"); n != 1 {
		t.Errorf("scratch local declared %d times", n)
	}
	assertSequence(t, out,
		"local.set $~fmod_rhs",
		"local.set $~fmod_lhs",
		"local.get $~fmod_lhs",
		"local.get $~fmod_lhs",
		"local.get $~fmod_rhs",
		"f64.div",
		"f64.trunc",
		"local.get $~fmod_rhs",
		"f64.mul",
		"f64.sub",
	)
}

func TestGenerateLoops(t *testing.T) {
	t.Run("While", func(t *testing.T) {
		out := compileOrFail(t, "def main() with int x { while x > 0 { x = x - 1 } }")
		assertSequence(t, out,
			"block",
			"loop",
			"local.get $x",
			"i64.const 0",
			"i64.gt_s",
			"i32.eqz",
			"br_if 1",
		)
		assertSequence(t, out, "local.set $x", "br 0", "end", "end")
	})

	t.Run("For To", func(t *testing.T) {
		out := compileOrFail(t, "def main() with int i { for i from 1 to 3 { write i } }")
		assertSequence(t, out, "i64.const 1", "local.set $i", "block", "loop")
		assertSequence(t, out, "local.get $i", "i64.const 3", "i64.le_s", "i32.eqz", "br_if 1")
		assertSequence(t, out, "local.get $i", "i64.const 3", "i64.eq", "br_if 1", "local.get $i", "i64.const 1", "i64.add")
		assertSequence(t, out, "local.get $i", "i64.const 1", "i64.add", "local.set $i", "br 0")
	})

	t.Run("For Downto", func(t *testing.T) {
		out := compileOrFail(t, "def main() with int i { for i from 3 downto 1 { write i } }")
		assertSequence(t, out, "local.get $i", "i64.const 1", "i64.ge_s", "i32.eqz", "br_if 1")
		assertSequence(t, out, "local.get $i", "i64.const 1", "i64.eq", "br_if 1", "local.get $i", "i64.const 1", "i64.sub")
		assertSequence(t, out, "local.get $i", "i64.const 1", "i64.sub", "local.set $i", "br 0")
	})

	t.Run("Float Counter", func(t *testing.T) {
		out := compileOrFail(t, "def main() with float f { for f from 0 to 2 { write f } }")
		assertSequence(t, out, "i64.const 0", "f64.convert_i64_s", "local.set $f")
		assertSequence(t, out, "local.get $f", "f64.const 1.0", "f64.add", "local.set $f")
	})
}

func TestGenerateIfElse(t *testing.T) {
	out := compileOrFail(t, "def main() with int x { if x == 1 { write 1 } else { write 2 } }")
	assertSequence(t, out, "i64.eq", "if", "i64.const 1", "call $~write_int", "else", "i64.const 2", "call $~write_int", "end")
}

func TestGenerateProcedureSignature(t *testing.T) {
	src := `def p(int a, float b) with int c { c = a }
def main() { call p(1, 2.5) }`
	out := compileOrFail(t, src)
	assertContains(t, out, "(func $p (param $a i64) (param $b f64) (local $c i64)")
	assertSequence(t, out, "i64.const 1", "f64.const 2.5", "call $p")
	if strings.Index(out, "(func $p") > strings.Index(out, "(func $main") {
		t.Error("procedures must precede main")
	}
	assertContains(t, out, `(export "main" (func $main))`)
}

func TestGenerateImports(t *testing.T) {
	t.Run("Read Imports Only When Used", func(t *testing.T) {
		out := compileOrFail(t, "def main() with int x { x = 1 }")
		assertNotContains(t, out, `"read"`)
		assertContains(t, out, `(import "imports" "write" (func $~write_int (param i64)))`)
	})

	t.Run("Read Int", func(t *testing.T) {
		out := compileOrFail(t, "def main() with int x { read x }")
		assertContains(t, out, `(import "imports" "read" (func $~read_int (result i64)))`)
		assertNotContains(t, out, "$~read_float (result")
	})

	t.Run("Custom Module", func(t *testing.T) {
		out, err := Compile("def main() with int x { read x }", Options{ImportModule: "env"})
		if err != nil {
			t.Fatal(err)
		}
		assertContains(t, out, `(import "env" "write"`)
		assertContains(t, out, `(import "env" "read"`)
		assertNotContains(t, out, `"imports"`)
	})
}

func TestGenerateLineComments(t *testing.T) {
	out, err := Compile("def main() with int x {\n  x = 1\n  write x\n}", Options{LineComments: true})
	if err != nil {
		t.Fatal(err)
	}
	assertSequence(t, out, ";; line 2", "i64.const 1", "local.set $x", ";; line 3", "local.get $x")
}

func TestGenerateDeterministic(t *testing.T) {
	src := `def p(int n) with float f, int a[2] { f = n % 2.0 a[1] = n }
def main() with int i, float g[3] { for i from 0 to 2 { g[i] = i call p(i) } read i write g[1] }`
	first := compileOrFail(t, src)
	for i := 0; i < 10; i++ {
		if again := compileOrFail(t, src); again != first {
			t.Fatalf("run %d produced different output", i)
		}
	}
}

func TestGenerateTypeMismatch(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"Float Into Int", "def main() with int x, float f { x = f }"},
		{"Float Expression Into Int", "def main() with int x, float f { x = x + f }"},
		{"Float Into Int Array", "def main() with int a[2] { a[0] = 1.5 }"},
		{"Float Index", "def main() with float i, int a[2] { a[i] = 1 }"},
		{"Float Argument To Int Parameter", "def p(int n) { write n }\ndef main() { call p(1.5) }"},
		{"Float For Bound Into Int Counter", "def main() with int i { for i from 0.5 to 2 { write i } }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.src, Options{})
			var e *TypeMismatchError
			if !errors.As(err, &e) {
				t.Fatalf("expected *TypeMismatchError, got %v", err)
			}
			if e.Code() != CodeTypeMismatch || e.Line == 0 {
				t.Errorf("unexpected error %v (code %s)", e, e.Code())
			}
		})
	}
}

func TestCompileStopsAtFirstError(t *testing.T) {
	out, err := Compile("def main() with int x { x = 1 & 2 }", Options{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if out != "" {
		t.Errorf("expected no output on failure, got %q", out)
	}
}

func TestGenerateNilProgram(t *testing.T) {
	if _, err := Generate(&Program{}, Options{}); err == nil {
		t.Error("expected error for program without main")
	}
}

func TestGenerateModuleShape(t *testing.T) {
	mod, err := Build("def p() { write 1 }\ndef main() { call p() }", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(mod.Funcs) != 2 || mod.Funcs[0].ID != "$p" || mod.Funcs[1].ID != "$main" {
		t.Errorf("unexpected functions %v", mod.Funcs)
	}
	if mod.Import("$~write_int") == nil || mod.Import("$~write_float") == nil {
		t.Error("write imports missing")
	}
	if mod.Import("$~read_int") != nil {
		t.Error("unused read import present")
	}
	body := mod.Func("$main").Body
	if len(body) != 1 || body[0].Kind != wat.Plain || body[0].Op != "call" {
		t.Errorf("unexpected main body %v", body)
	}
}
