// Package wattest runs wat.Module values on a small stack machine so tests
// can check what generated code does, not only what it looks like.
//
// Only the instruction subset produced by the compiler is supported. Imports
// named "write" append to Writes (and Output, when set); imports named
// "read" consume Input in order.
package wattest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/chceswieta/inz-wasm-compiler/pkg/wat"
)

const pageSize = 65536

// DefaultStepLimit bounds the number of executed instructions per Run.
const DefaultStepLimit = 1_000_000

var (
	ErrStepLimit   = errors.New("step limit exceeded")
	ErrDivideZero  = errors.New("integer divide by zero")
	ErrOutOfBounds = errors.New("out of bounds memory access")
	ErrNoInput     = errors.New("read with no input left")
)

// Value is a typed stack slot.
type Value struct {
	Type wat.ValType
	I    int64 // i32 and i64
	F    float64
}

func (v Value) String() string {
	if v.Type == wat.F64 {
		return wat.FormatFloat(v.F)
	}
	return strconv.FormatInt(v.I, 10)
}

func Int(v int64) Value     { return Value{Type: wat.I64, I: v} }
func Float(v float64) Value { return Value{Type: wat.F64, F: v} }

// Machine executes one module.
type Machine struct {
	Module *wat.Module
	Memory []byte

	Input  []Value
	Writes []string

	// Output receives one line per write when non-nil.
	Output io.Writer

	StepLimit int
	steps     int
	stack     []Value
}

func New(m *wat.Module, input ...Value) *Machine {
	return &Machine{
		Module:    m,
		Memory:    make([]byte, m.Memory*pageSize),
		Input:     input,
		StepLimit: DefaultStepLimit,
	}
}

// Run calls the exported function name with no arguments.
func Run(m *wat.Module, name string, input ...Value) ([]string, error) {
	vm := New(m, input...)
	err := vm.Invoke(name)
	return vm.Writes, err
}

// Invoke calls an exported function.
func (vm *Machine) Invoke(export string, args ...Value) error {
	for _, ex := range vm.Module.Exports {
		if ex.Name == export {
			return vm.call(ex.Func, args)
		}
	}
	return fmt.Errorf("no export %q", export)
}

func (vm *Machine) push(v Value) { vm.stack = append(vm.stack, v) }

func (vm *Machine) pop() Value {
	if len(vm.stack) == 0 {
		panic("wattest: stack underflow")
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *Machine) call(id string, args []Value) error {
	if im := vm.Module.Import(id); im != nil {
		return vm.host(im, args)
	}
	f := vm.Module.Func(id)
	if f == nil {
		return fmt.Errorf("call to unknown function %s", id)
	}
	if len(args) != len(f.Params) {
		return fmt.Errorf("%s: expected %d arguments, got %d", id, len(f.Params), len(args))
	}
	locals := make(map[string]Value, len(f.Params)+len(f.Locals))
	for i, p := range f.Params {
		locals[p.ID] = args[i]
	}
	for _, l := range f.Locals {
		locals[l.ID] = Value{Type: l.Type}
	}
	_, err := vm.exec(f.Body, locals)
	return err
}

func (vm *Machine) host(im *wat.Import, args []Value) error {
	switch im.Name {
	case "write":
		for _, a := range args {
			s := a.String()
			vm.Writes = append(vm.Writes, s)
			if vm.Output != nil {
				fmt.Fprintln(vm.Output, s)
			}
		}
		return nil
	case "read":
		if len(vm.Input) == 0 {
			return ErrNoInput
		}
		in := vm.Input[0]
		vm.Input = vm.Input[1:]
		if len(im.Results) == 1 && im.Results[0] == wat.F64 && in.Type != wat.F64 {
			in = Float(float64(in.I))
		}
		if len(im.Results) == 1 && im.Results[0] == wat.I64 && in.Type == wat.F64 {
			in = Int(int64(in.F))
		}
		vm.push(in)
		return nil
	}
	return fmt.Errorf("unsupported import %s.%s", im.Module, im.Name)
}

// exec runs body and returns the number of labels still to unwind when a
// branch escapes it, or -1 when control falls off the end.
func (vm *Machine) exec(body []wat.Instr, locals map[string]Value) (int, error) {
	for _, ins := range body {
		vm.steps++
		if vm.StepLimit > 0 && vm.steps > vm.StepLimit {
			return -1, ErrStepLimit
		}
		switch ins.Kind {
		case wat.Comment:
			continue
		case wat.Block:
			br, err := vm.exec(ins.Body, locals)
			if err != nil || br > 0 {
				return br - 1, err
			}
		case wat.Loop:
			for {
				br, err := vm.exec(ins.Body, locals)
				if err != nil {
					return -1, err
				}
				if br == 0 {
					continue
				}
				if br > 0 {
					return br - 1, nil
				}
				break
			}
		case wat.If:
			arm := ins.Else
			if vm.pop().I != 0 {
				arm = ins.Body
			}
			br, err := vm.exec(arm, locals)
			if err != nil || br > 0 {
				return br - 1, err
			}
		default:
			br, err := vm.step(ins, locals)
			if err != nil || br >= 0 {
				return br, err
			}
		}
	}
	return -1, nil
}

func (vm *Machine) step(ins wat.Instr, locals map[string]Value) (int, error) {
	imm := func() string {
		if len(ins.Imm) == 0 {
			return ""
		}
		return ins.Imm[0]
	}
	switch ins.Op {
	case "i32.const":
		n, err := strconv.ParseInt(imm(), 10, 32)
		if err != nil {
			return -1, err
		}
		vm.push(Value{Type: wat.I32, I: n})
	case "i64.const":
		n, err := strconv.ParseInt(imm(), 10, 64)
		if err != nil {
			return -1, err
		}
		vm.push(Int(n))
	case "f64.const":
		f, err := strconv.ParseFloat(imm(), 64)
		if err != nil {
			return -1, err
		}
		vm.push(Float(f))
	case "local.get":
		v, ok := locals[imm()]
		if !ok {
			return -1, fmt.Errorf("unknown local %s", imm())
		}
		vm.push(v)
	case "local.set":
		if _, ok := locals[imm()]; !ok {
			return -1, fmt.Errorf("unknown local %s", imm())
		}
		locals[imm()] = vm.pop()
	case "call":
		return -1, vm.invoke(imm())
	case "br":
		return strconv.Atoi(imm())
	case "br_if":
		if vm.pop().I != 0 {
			return strconv.Atoi(imm())
		}
	case "i32.eqz":
		vm.push(boolean(vm.pop().I == 0))
	case "i32.wrap_i64":
		vm.push(Value{Type: wat.I32, I: int64(int32(vm.pop().I))})
	case "f64.convert_i64_s":
		vm.push(Float(float64(vm.pop().I)))
	case "f64.trunc":
		vm.push(Float(math.Trunc(vm.pop().F)))
	case "i64.load", "f64.load":
		addr := vm.pop().I
		if addr < 0 || addr+8 > int64(len(vm.Memory)) {
			return -1, ErrOutOfBounds
		}
		bits := binary.LittleEndian.Uint64(vm.Memory[addr:])
		if ins.Op == "f64.load" {
			vm.push(Float(math.Float64frombits(bits)))
		} else {
			vm.push(Int(int64(bits)))
		}
	case "i64.store", "f64.store":
		v := vm.pop()
		addr := vm.pop().I
		if addr < 0 || addr+8 > int64(len(vm.Memory)) {
			return -1, ErrOutOfBounds
		}
		bits := uint64(v.I)
		if ins.Op == "f64.store" {
			bits = math.Float64bits(v.F)
		}
		binary.LittleEndian.PutUint64(vm.Memory[addr:], bits)
	default:
		return -1, vm.arith(ins.Op)
	}
	return -1, nil
}

func (vm *Machine) invoke(id string) error {
	var n int
	if im := vm.Module.Import(id); im != nil {
		n = len(im.Params)
	} else if f := vm.Module.Func(id); f != nil {
		n = len(f.Params)
	} else {
		return fmt.Errorf("call to unknown function %s", id)
	}
	args := make([]Value, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = vm.pop()
	}
	return vm.call(id, args)
}

func (vm *Machine) arith(op string) error {
	b := vm.pop()
	a := vm.pop()
	switch op {
	case "i32.add":
		vm.push(Value{Type: wat.I32, I: int64(int32(a.I + b.I))})
	case "i32.mul":
		vm.push(Value{Type: wat.I32, I: int64(int32(a.I * b.I))})
	case "i64.add":
		vm.push(Int(a.I + b.I))
	case "i64.sub":
		vm.push(Int(a.I - b.I))
	case "i64.mul":
		vm.push(Int(a.I * b.I))
	case "i64.div_s", "i64.rem_s":
		if b.I == 0 {
			return ErrDivideZero
		}
		if op == "i64.div_s" {
			vm.push(Int(a.I / b.I))
		} else {
			vm.push(Int(a.I % b.I))
		}
	case "f64.add":
		vm.push(Float(a.F + b.F))
	case "f64.sub":
		vm.push(Float(a.F - b.F))
	case "f64.mul":
		vm.push(Float(a.F * b.F))
	case "f64.div":
		vm.push(Float(a.F / b.F))
	case "i64.eq":
		vm.push(boolean(a.I == b.I))
	case "i64.ne":
		vm.push(boolean(a.I != b.I))
	case "i64.lt_s":
		vm.push(boolean(a.I < b.I))
	case "i64.gt_s":
		vm.push(boolean(a.I > b.I))
	case "i64.le_s":
		vm.push(boolean(a.I <= b.I))
	case "i64.ge_s":
		vm.push(boolean(a.I >= b.I))
	case "f64.eq":
		vm.push(boolean(a.F == b.F))
	case "f64.ne":
		vm.push(boolean(a.F != b.F))
	case "f64.lt":
		vm.push(boolean(a.F < b.F))
	case "f64.gt":
		vm.push(boolean(a.F > b.F))
	case "f64.le":
		vm.push(boolean(a.F <= b.F))
	case "f64.ge":
		vm.push(boolean(a.F >= b.F))
	default:
		return fmt.Errorf("unsupported instruction %q", op)
	}
	return nil
}

func boolean(b bool) Value {
	if b {
		return Value{Type: wat.I32, I: 1}
	}
	return Value{Type: wat.I32}
}
