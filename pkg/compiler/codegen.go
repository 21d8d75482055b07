package compiler

import (
	"fmt"
	"math"

	"github.com/chceswieta/inz-wasm-compiler/pkg/wat"
)

// elemSize is the byte width of one array element of either type.
const elemSize = 8

const pageSize = 65536

// Identifiers the compiler introduces. They contain '~', which the lexer
// never accepts, so they cannot clash with user names.
const (
	writeIntID   = "$~write_int"
	writeFloatID = "$~write_float"
	readIntID    = "$~read_int"
	readFloatID  = "$~read_float"
	fmodLhsID    = "$~fmod_lhs"
	fmodRhsID    = "$~fmod_rhs"
)

// DefaultImportModule is the module name host imports are taken from.
const DefaultImportModule = "imports"

// Options tunes code generation. The zero value is ready to use.
type Options struct {
	// ImportModule names the host module providing read/write.
	ImportModule string
	// LineComments emits ";; line N" before every lowered command.
	LineComments bool
}

func (o Options) importModule() string {
	if o.ImportModule == "" {
		return DefaultImportModule
	}
	return o.ImportModule
}

// CodeGen lowers a Program into a wat.Module.
type CodeGen struct {
	opts Options
	prog *Program

	fn       *wat.Func
	arrays   map[string]int32 // base address of each array in fn
	nextAddr int              // first free byte of linear memory
	line     int              // source line of the command being lowered

	readsInt   bool
	readsFloat bool
}

func newCodeGen(prog *Program, opts Options) *CodeGen {
	return &CodeGen{opts: opts, prog: prog}
}

func valType(t Type) wat.ValType {
	if t == Float64 {
		return wat.F64
	}
	return wat.I64
}

func slotID(name string) string { return "$" + name }

func (cg *CodeGen) mismatch(format string, args ...any) error {
	return &TypeMismatchError{Context: fmt.Sprintf(format, args...), Line: cg.line}
}

// beginFunc opens a function, declares scalar slots and reserves a memory
// region for every array in declaration order.
func (cg *CodeGen) beginFunc(name string, params, locals []Decl) error {
	cg.fn = &wat.Func{ID: slotID(name)}
	cg.arrays = make(map[string]int32)
	for _, d := range params {
		cg.fn.Params = append(cg.fn.Params, wat.Local{ID: slotID(d.Name), Type: valType(d.Type)})
	}
	for _, d := range locals {
		if !d.IsArray() {
			cg.fn.Locals = append(cg.fn.Locals, wat.Local{ID: slotID(d.Name), Type: valType(d.Type)})
			continue
		}
		if d.Length > (math.MaxInt32-cg.nextAddr)/elemSize {
			return fmt.Errorf("line %d: array %s does not fit in linear memory", d.Line, d.Name)
		}
		cg.arrays[d.Name] = int32(cg.nextAddr)
		cg.nextAddr += d.Length * elemSize
	}
	return nil
}

// convert emits whatever turns a value of type from into type to.
// Only widening from int to float is allowed.
func (cg *CodeGen) convert(from, to Type, context string) ([]wat.Instr, error) {
	switch {
	case from == to:
		return nil, nil
	case from == Int64 && to == Float64:
		return []wat.Instr{wat.Op("f64.convert_i64_s")}, nil
	}
	return nil, cg.mismatch("%s: cannot use %s value as %s", context, from, to)
}

// unify returns the common type of a mixed pair of operands.
func (cg *CodeGen) unify(a, b Type) (Type, error) {
	if a == b {
		return a, nil
	}
	if (a == Int64 || a == Float64) && (b == Int64 || b == Float64) {
		return Float64, nil
	}
	return a, cg.mismatch("cannot combine %s and %s", a, b)
}

// genAddress leaves the i32 byte address of a[i] on the stack:
// base + index*elemSize.
func (cg *CodeGen) genAddress(a *ArrayRef) ([]wat.Instr, error) {
	base, ok := cg.arrays[a.Name]
	if !ok {
		return nil, fmt.Errorf("line %d: array %q has no storage in %s", cg.line, a.Name, cg.fn.ID)
	}
	code := []wat.Instr{wat.I32Const(base)}
	switch idx := a.Index.(type) {
	case *Const:
		if idx.Type != Int64 {
			return nil, cg.mismatch("index of %s must be int", a.Name)
		}
		if idx.Int >= math.MinInt32 && idx.Int <= math.MaxInt32 {
			code = append(code, wat.I32Const(int32(idx.Int)))
		} else {
			code = append(code, wat.I64Const(idx.Int), wat.Op("i32.wrap_i64"))
		}
	case *Local:
		if idx.Type != Int64 {
			return nil, cg.mismatch("index of %s must be int, %s is %s", a.Name, idx.Name, idx.Type)
		}
		code = append(code, wat.LocalGet(slotID(idx.Name)), wat.Op("i32.wrap_i64"))
	default:
		return nil, fmt.Errorf("line %d: unsupported index %T", cg.line, a.Index)
	}
	return append(code, wat.I32Const(elemSize), wat.Op("i32.mul"), wat.Op("i32.add")), nil
}

// genValue pushes v and reports its type.
func (cg *CodeGen) genValue(v Value) ([]wat.Instr, Type, error) {
	switch n := v.(type) {
	case *Const:
		if n.Type == Float64 {
			return []wat.Instr{wat.F64Const(n.Float)}, Float64, nil
		}
		return []wat.Instr{wat.I64Const(n.Int)}, Int64, nil
	case *Local:
		return []wat.Instr{wat.LocalGet(slotID(n.Name))}, n.Type, nil
	case *ArrayRef:
		code, err := cg.genAddress(n)
		if err != nil {
			return nil, 0, err
		}
		return append(code, wat.Load(valType(n.Type))), n.Type, nil
	}
	return nil, 0, fmt.Errorf("line %d: unsupported value %T", cg.line, v)
}

// genOperands pushes both operands converted to their common type.
func (cg *CodeGen) genOperands(left, right Value) ([]wat.Instr, Type, error) {
	lc, lt, err := cg.genValue(left)
	if err != nil {
		return nil, 0, err
	}
	rc, rt, err := cg.genValue(right)
	if err != nil {
		return nil, 0, err
	}
	t, err := cg.unify(lt, rt)
	if err != nil {
		return nil, 0, err
	}
	lconv, err := cg.convert(lt, t, "left operand")
	if err != nil {
		return nil, 0, err
	}
	rconv, err := cg.convert(rt, t, "right operand")
	if err != nil {
		return nil, 0, err
	}
	code := append(lc, lconv...)
	code = append(code, rc...)
	return append(code, rconv...), t, nil
}

var intArith = [...]string{OpAdd: "i64.add", OpSub: "i64.sub", OpMul: "i64.mul", OpDiv: "i64.div_s", OpMod: "i64.rem_s"}
var floatArith = [...]string{OpAdd: "f64.add", OpSub: "f64.sub", OpMul: "f64.mul", OpDiv: "f64.div"}

// genExpr pushes the value of e and reports its type.
func (cg *CodeGen) genExpr(e Expr) ([]wat.Instr, Type, error) {
	b, ok := e.(*BinaryOp)
	if !ok {
		v, ok := e.(Value)
		if !ok {
			return nil, 0, fmt.Errorf("line %d: unsupported expression %T", cg.line, e)
		}
		return cg.genValue(v)
	}

	code, t, err := cg.genOperands(b.Left, b.Right)
	if err != nil {
		return nil, 0, err
	}
	if t == Int64 {
		return append(code, wat.Op(intArith[b.Op])), t, nil
	}
	if b.Op != OpMod {
		return append(code, wat.Op(floatArith[b.Op])), t, nil
	}

	// There is no f64.rem; compute lhs - trunc(lhs/rhs)*rhs.
	cg.fn.AddLocal(fmodLhsID, wat.F64)
	cg.fn.AddLocal(fmodRhsID, wat.F64)
	return append(code,
		wat.LocalSet(fmodRhsID),
		wat.LocalSet(fmodLhsID),
		wat.LocalGet(fmodLhsID),
		wat.LocalGet(fmodLhsID),
		wat.LocalGet(fmodRhsID),
		wat.Op("f64.div"),
		wat.Op("f64.trunc"),
		wat.LocalGet(fmodRhsID),
		wat.Op("f64.mul"),
		wat.Op("f64.sub"),
	), t, nil
}

var intCmp = [...]string{CmpEq: "i64.eq", CmpNe: "i64.ne", CmpLt: "i64.lt_s", CmpGt: "i64.gt_s", CmpLe: "i64.le_s", CmpGe: "i64.ge_s"}
var floatCmp = [...]string{CmpEq: "f64.eq", CmpNe: "f64.ne", CmpLt: "f64.lt", CmpGt: "f64.gt", CmpLe: "f64.le", CmpGe: "f64.ge"}

// genCondition leaves an i32 truth value on the stack.
func (cg *CodeGen) genCondition(c Condition) ([]wat.Instr, error) {
	code, t, err := cg.genOperands(c.Left, c.Right)
	if err != nil {
		return nil, err
	}
	if t == Int64 {
		return append(code, wat.Op(intCmp[c.Op])), nil
	}
	return append(code, wat.Op(floatCmp[c.Op])), nil
}

// genStore stores the value produced by value (of type vt) into target.
func (cg *CodeGen) genStore(target LValue, value []wat.Instr, vt Type) ([]wat.Instr, error) {
	conv, err := cg.convert(vt, target.ValueType(), "assignment to "+target.String())
	if err != nil {
		return nil, err
	}
	switch n := target.(type) {
	case *Local:
		code := append(value, conv...)
		return append(code, wat.LocalSet(slotID(n.Name))), nil
	case *ArrayRef:
		code, err := cg.genAddress(n)
		if err != nil {
			return nil, err
		}
		code = append(code, value...)
		code = append(code, conv...)
		return append(code, wat.Store(valType(n.Type))), nil
	}
	return nil, fmt.Errorf("line %d: unsupported assignment target %T", cg.line, target)
}

// genLoop wraps body in block/loop and exits when test is false.
func genLoop(test, body, step []wat.Instr) wat.Instr {
	inner := append(test, wat.Op("i32.eqz"), wat.BrIf(1))
	inner = append(inner, body...)
	inner = append(inner, step...)
	inner = append(inner, wat.Br(0))
	return wat.NewBlock(wat.NewLoop(inner...))
}

// genFor lowers both counting loops: v = from; while v cmp bound { body; v = v + delta }.
// The loop also leaves once v reaches bound, so a bound at the edge of the
// int64 range ends the loop instead of wrapping v past it.
func (cg *CodeGen) genFor(v *Local, from, bound Value, cmp CmpOp, delta ArithOp, body []Command) ([]wat.Instr, error) {
	fc, ft, err := cg.genValue(from)
	if err != nil {
		return nil, err
	}
	init, err := cg.genStore(v, fc, ft)
	if err != nil {
		return nil, err
	}
	test, err := cg.genCondition(Condition{Op: cmp, Left: v, Right: bound})
	if err != nil {
		return nil, err
	}
	bc, err := cg.genCommands(body)
	if err != nil {
		return nil, err
	}
	one := IntConst(1)
	if v.Type == Float64 {
		one = FloatConst(1)
	}
	sc, st, err := cg.genExpr(&BinaryOp{Op: delta, Left: v, Right: one})
	if err != nil {
		return nil, err
	}
	store, err := cg.genStore(v, sc, st)
	if err != nil {
		return nil, err
	}
	step, err := cg.genCondition(Condition{Op: CmpEq, Left: v, Right: bound})
	if err != nil {
		return nil, err
	}
	step = append(step, wat.BrIf(1))
	step = append(step, store...)
	return append(init, genLoop(test, bc, step)), nil
}

func (cg *CodeGen) genCommands(cmds []Command) ([]wat.Instr, error) {
	var code []wat.Instr
	for _, c := range cmds {
		cc, err := cg.genCommand(c)
		if err != nil {
			return nil, err
		}
		code = append(code, cc...)
	}
	return code, nil
}

func (cg *CodeGen) genCommand(c Command) ([]wat.Instr, error) {
	cg.line = c.SourceLine()
	var code []wat.Instr
	if cg.opts.LineComments {
		code = append(code, wat.Note(fmt.Sprintf("line %d", cg.line)))
	}

	switch n := c.(type) {
	case *Assign:
		ec, et, err := cg.genExpr(n.Expr)
		if err != nil {
			return nil, err
		}
		st, err := cg.genStore(n.Target, ec, et)
		if err != nil {
			return nil, err
		}
		return append(code, st...), nil

	case *If:
		cond, err := cg.genCondition(n.Cond)
		if err != nil {
			return nil, err
		}
		then, err := cg.genCommands(n.Then)
		if err != nil {
			return nil, err
		}
		code = append(code, cond...)
		return append(code, wat.NewIf(then, nil)), nil

	case *IfElse:
		cond, err := cg.genCondition(n.Cond)
		if err != nil {
			return nil, err
		}
		then, err := cg.genCommands(n.Then)
		if err != nil {
			return nil, err
		}
		els, err := cg.genCommands(n.Else)
		if err != nil {
			return nil, err
		}
		code = append(code, cond...)
		return append(code, wat.NewIf(then, els)), nil

	case *While:
		test, err := cg.genCondition(n.Cond)
		if err != nil {
			return nil, err
		}
		body, err := cg.genCommands(n.Body)
		if err != nil {
			return nil, err
		}
		return append(code, genLoop(test, body, nil)), nil

	case *ForUp:
		fc, err := cg.genFor(n.Var, n.From, n.To, CmpLe, OpAdd, n.Body)
		if err != nil {
			return nil, err
		}
		return append(code, fc...), nil

	case *ForDown:
		fc, err := cg.genFor(n.Var, n.From, n.Downto, CmpGe, OpSub, n.Body)
		if err != nil {
			return nil, err
		}
		return append(code, fc...), nil

	case *Read:
		t := n.Target.ValueType()
		id := readIntID
		if t == Float64 {
			id = readFloatID
			cg.readsFloat = true
		} else {
			cg.readsInt = true
		}
		st, err := cg.genStore(n.Target, []wat.Instr{wat.Call(id)}, t)
		if err != nil {
			return nil, err
		}
		return append(code, st...), nil

	case *Write:
		vc, t, err := cg.genValue(n.Value)
		if err != nil {
			return nil, err
		}
		id := writeIntID
		if t == Float64 {
			id = writeFloatID
		}
		code = append(code, vc...)
		return append(code, wat.Call(id)), nil

	case *Call:
		params := n.Params
		if params == nil {
			proc := cg.prog.Procedure(n.Callee)
			if proc == nil {
				return nil, &UnknownProcedureError{Name: n.Callee, Line: n.Line}
			}
			for _, d := range proc.Params {
				params = append(params, d.Type)
			}
		}
		if len(params) != len(n.Args) {
			return nil, &ArgumentCountError{Name: n.Callee, Expected: len(params), Actual: len(n.Args), Line: n.Line}
		}
		for i, arg := range n.Args {
			ac, at, err := cg.genValue(arg)
			if err != nil {
				return nil, err
			}
			conv, err := cg.convert(at, params[i], fmt.Sprintf("argument %d of %s", i+1, n.Callee))
			if err != nil {
				return nil, err
			}
			code = append(code, ac...)
			code = append(code, conv...)
		}
		return append(code, wat.Call(slotID(n.Callee))), nil
	}
	return nil, fmt.Errorf("line %d: unsupported command %T", cg.line, c)
}

func (cg *CodeGen) imports() []wat.Import {
	mod := cg.opts.importModule()
	ims := []wat.Import{
		{Module: mod, Name: "write", ID: writeIntID, Params: []wat.ValType{wat.I64}},
		{Module: mod, Name: "write", ID: writeFloatID, Params: []wat.ValType{wat.F64}},
	}
	if cg.readsInt {
		ims = append(ims, wat.Import{Module: mod, Name: "read", ID: readIntID, Results: []wat.ValType{wat.I64}})
	}
	if cg.readsFloat {
		ims = append(ims, wat.Import{Module: mod, Name: "read", ID: readFloatID, Results: []wat.ValType{wat.F64}})
	}
	return ims
}

// Generate lowers prog into a module: imports, optional memory, one function
// per procedure in source order, then the exported main.
func Generate(prog *Program, opts Options) (*wat.Module, error) {
	if prog == nil || prog.Main == nil {
		return nil, fmt.Errorf("program has no main")
	}
	cg := newCodeGen(prog, opts)
	mod := &wat.Module{}

	for _, proc := range prog.Procedures {
		if err := cg.beginFunc(proc.Name, proc.Params, proc.Locals); err != nil {
			return nil, err
		}
		body, err := cg.genCommands(proc.Body)
		if err != nil {
			return nil, err
		}
		cg.fn.Emit(body...)
		mod.Funcs = append(mod.Funcs, cg.fn)
	}

	if err := cg.beginFunc("main", nil, prog.Main.Locals); err != nil {
		return nil, err
	}
	body, err := cg.genCommands(prog.Main.Body)
	if err != nil {
		return nil, err
	}
	cg.fn.Emit(body...)
	mod.Funcs = append(mod.Funcs, cg.fn)
	mod.Exports = []wat.Export{{Name: "main", Func: cg.fn.ID}}

	mod.Imports = cg.imports()
	if cg.nextAddr > 0 {
		mod.Memory = (cg.nextAddr + pageSize - 1) / pageSize
	}
	return mod, nil
}
