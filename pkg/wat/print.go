package wat

import (
	"io"
	"strconv"
	"strings"
)

const indentUnit = "  "

type printer struct {
	sb strings.Builder
}

func (p *printer) line(depth int, parts ...string) {
	for i := 0; i < depth; i++ {
		p.sb.WriteString(indentUnit)
	}
	for _, s := range parts {
		p.sb.WriteString(s)
	}
	p.sb.WriteByte('\n')
}

func (p *printer) instrs(depth int, body []Instr) {
	for _, ins := range body {
		switch ins.Kind {
		case Block, Loop:
			p.line(depth, ins.Op)
			p.instrs(depth+1, ins.Body)
			p.line(depth, "end")
		case If:
			p.line(depth, "if")
			p.instrs(depth+1, ins.Body)
			if len(ins.Else) > 0 {
				p.line(depth, "else")
				p.instrs(depth+1, ins.Else)
			}
			p.line(depth, "end")
		case Comment:
			p.line(depth, ";; ", strings.Join(ins.Imm, " "))
		default:
			p.line(depth, ins.String())
		}
	}
}

func signature(params, results []ValType) string {
	var sb strings.Builder
	if len(params) > 0 {
		sb.WriteString(" (param")
		for _, t := range params {
			sb.WriteString(" " + string(t))
		}
		sb.WriteString(")")
	}
	if len(results) > 0 {
		sb.WriteString(" (result")
		for _, t := range results {
			sb.WriteString(" " + string(t))
		}
		sb.WriteString(")")
	}
	return sb.String()
}

func slots(kind string, ls []Local) string {
	var sb strings.Builder
	for _, l := range ls {
		sb.WriteString(" (" + kind + " " + l.ID + " " + string(l.Type) + ")")
	}
	return sb.String()
}

// String serializes the module. Output depends only on the module value.
func (m *Module) String() string {
	var p printer
	p.line(0, "(module")
	for _, im := range m.Imports {
		p.line(1, `(import "`, im.Module, `" "`, im.Name, `" (func `, im.ID, signature(im.Params, im.Results), "))")
	}
	if m.Memory > 0 {
		p.line(1, "(memory ", strconv.Itoa(m.Memory), ")")
	}
	for _, f := range m.Funcs {
		p.line(1, "(func ", f.ID, slots("param", f.Params), slots("local", f.Locals))
		p.instrs(2, f.Body)
		p.line(1, ")")
	}
	for _, ex := range m.Exports {
		p.line(1, `(export "`, ex.Name, `" (func `, ex.Func, "))")
	}
	p.line(0, ")")
	return p.sb.String()
}

// WriteTo writes the serialized module to w.
func (m *Module) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, m.String())
	return int64(n), err
}
