package format

import (
	"github.com/nikandfor/hacked/hfmt"

	"github.com/slowlang/jit/compiler/ir"
	"github.com/slowlang/jit/compiler/tp"
)

// Func appends the text form of f to b.
func Func(b []byte, f *ir.Func) []byte {
	b = app(b, 0, "func %s(", f.Name)

	for i, id := range f.In {
		if i != 0 {
			b = append(b, ", "...)
		}

		b = app(b, 0, "v%d %s", id, tp.String(f.EType[id]))
	}

	b = append(b, ")"...)

	if f.Sig != nil && f.Sig.Out != nil && f.Sig.Out.Kind() != tp.Void {
		b = app(b, 0, " %s", tp.String(f.Sig.Out))
	}

	b = append(b, " {\n"...)

	for _, id := range f.Code {
		d := 1
		if _, ok := f.Exprs[id].(ir.L); ok {
			d = 0
		}

		b = app(b, d, "")
		b = Insn(b, f, id)
		b = append(b, '\n')
	}

	if len(f.Pinned) != 0 {
		b = app(b, 1, "// pinned %v\n", f.Pinned)
	}

	b = append(b, "}\n"...)

	return b
}

// Insn appends the instruction defining id.
func Insn(b []byte, f *ir.Func, id ir.Expr) []byte {
	if id < 0 || int(id) >= len(f.Exprs) {
		return app(b, 0, "v%d: <bad value>", id)
	}

	t := tp.String(f.EType[id])

	switch x := f.Exprs[id].(type) {
	case ir.Slot:
		return app(b, 0, "v%d: %s", id, t)
	case ir.Param:
		return app(b, 0, "v%d = param %d: %s", id, x.N, t)
	case ir.Const:
		if k := f.EType[id].Kind(); k.IsFloat() || k == tp.Pointer || k == tp.Signature {
			return app(b, 0, "v%d = const %#x: %s", id, x.Bits, t)
		}

		return app(b, 0, "v%d = const %d: %s", id, int64(x.Bits), t)
	case ir.Dup:
		return app(b, 0, "v%d = dup v%d", id, x.X)
	case ir.Alloca:
		return app(b, 0, "v%d = alloca v%d", id, x.Size)
	case ir.Store:
		return app(b, 0, "store v%d, v%d", x.Dst, x.Src)
	case ir.StoreRel:
		return app(b, 0, "store_relative v%d+%d, v%d", x.Base, x.Off, x.Src)
	case ir.LoadRel:
		return app(b, 0, "v%d = load_relative v%d+%d: %s", id, x.Base, x.Off, t)
	case ir.Add:
		return app(b, 0, "v%d = add v%d, v%d", id, x.L, x.R)
	case ir.Sub:
		return app(b, 0, "v%d = sub v%d, v%d", id, x.L, x.R)
	case ir.Mul:
		return app(b, 0, "v%d = mul v%d, v%d", id, x.L, x.R)
	case ir.Div:
		return app(b, 0, "v%d = div v%d, v%d", id, x.L, x.R)
	case ir.Cmp:
		return app(b, 0, "v%d = cmp_%s v%d, v%d", id, x.Cond, x.L, x.R)
	case ir.Sqrt:
		return app(b, 0, "v%d = sqrt v%d: %s", id, x.X, t)
	case ir.Convert:
		if x.CheckOverflow {
			return app(b, 0, "v%d = convert_ovf v%d: %s", id, x.X, t)
		}

		return app(b, 0, "v%d = convert v%d: %s", id, x.X, t)
	case ir.Call:
		b = app(b, 0, "v%d = call v%d(", id, x.Func)

		for i, a := range x.Args {
			if i != 0 {
				b = append(b, ", "...)
			}

			b = app(b, 0, "v%d", a)
		}

		return append(b, ')')
	case ir.L:
		return app(b, 0, "L%d:", x.Label)
	case ir.B:
		return app(b, 0, "br L%d", x.Label)
	case ir.BCond:
		return app(b, 0, "br_if v%d, L%d", x.Expr, x.Label)
	case ir.Return:
		if x.X == ir.Nil {
			return app(b, 0, "return")
		}

		return app(b, 0, "return v%d", x.X)
	default:
		return app(b, 0, "v%d = %T", id, x)
	}
}

func app(b []byte, d int, f string, args ...any) []byte {
	const tabs = "\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t"
	b = append(b, tabs[:d]...)
	b = hfmt.Appendf(b, f, args...)
	return b
}
