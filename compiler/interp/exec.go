package interp

import (
	"context"
	"math"
	"reflect"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/jit/compiler/format"
	"github.com/slowlang/jit/compiler/ir"
	"github.com/slowlang/jit/compiler/native"
	"github.com/slowlang/jit/compiler/tp"
)

type (
	frame struct {
		f    *ir.Func
		regs [][]byte
		segs []int
	}
)

func (e *Engine) run(ctx context.Context, f *ir.Func, args [][]byte) (res []byte, err error) {
	tr := tlog.SpanFromContext(ctx)
	trace := tr.If("interp_trace")

	labels := e.labelsOf(f)

	fr := &frame{
		f:    f,
		regs: make([][]byte, len(f.Exprs)),
	}

	defer func() {
		for _, id := range fr.segs {
			e.mem.release(id)
		}
	}()

	for pc, steps := 0, 0; pc < len(f.Code); pc++ {
		steps++

		if steps > e.MaxSteps {
			return nil, errors.Wrap(ErrStepLimit, "%d steps", e.MaxSteps)
		}

		if steps%256 == 0 {
			if err = ctx.Err(); err != nil {
				return nil, err
			}
		}

		id := f.Code[pc]

		if trace {
			tr.Printw("exec", "pc", pc, "insn", string(format.Insn(nil, f, id)))
		}

		switch x := f.Exprs[id].(type) {
		case ir.Param:
			copy(fr.reg(id), args[x.N])
		case ir.Const:
			putU(fr.reg(id), x.Bits)
		case ir.Dup:
			copy(fr.reg(id), fr.reg(x.X))
		case ir.Alloca:
			n := getU(fr.reg(x.Size))

			if n > math.MaxInt32 {
				return nil, errors.Wrap(ErrOutOfMemory, "alloca %d bytes", n)
			}

			sid, err := e.mem.alloc(int(n))
			if err != nil {
				return nil, errors.Wrap(err, "v%d", id)
			}

			fr.segs = append(fr.segs, sid)
			putU(fr.reg(id), e.mem.base(sid))
		case ir.Store:
			copy(fr.reg(x.Dst), fr.reg(x.Src))
		case ir.StoreRel:
			src := fr.reg(x.Src)

			dst, err := e.relative(fr, x.Base, x.Off, len(src))
			if err != nil {
				return nil, errors.Wrap(err, "v%d", id)
			}

			copy(dst, src)
		case ir.LoadRel:
			dst := fr.reg(id)

			src, err := e.relative(fr, x.Base, x.Off, len(dst))
			if err != nil {
				return nil, errors.Wrap(err, "v%d", id)
			}

			copy(dst, src)
		case ir.Add, ir.Sub, ir.Mul, ir.Div:
			err = fr.arith(id, x)
			if err != nil {
				return nil, errors.Wrap(err, "v%d", id)
			}
		case ir.Cmp:
			fr.cmp(id, x)
		case ir.Sqrt:
			k := f.EType[x.X].Kind()

			var v float64
			if k.IsFloat() {
				v = getF(k, fr.reg(x.X))
			} else {
				v = fr.intAsFloat(x.X)
			}

			putF(f.EType[id].Kind(), fr.reg(id), math.Sqrt(v))
		case ir.Convert:
			err = fr.convert(id, x)
			if err != nil {
				return nil, errors.Wrap(err, "v%d", id)
			}
		case ir.Call:
			err = fr.call(id, x)
			if err != nil {
				return nil, errors.Wrap(err, "v%d", id)
			}
		case ir.L:
		case ir.B:
			pc, err = jump(labels, x.Label)
			if err != nil {
				return nil, err
			}
		case ir.BCond:
			if getU(fr.reg(x.Expr)) == 0 {
				break
			}

			pc, err = jump(labels, x.Label)
			if err != nil {
				return nil, err
			}
		case ir.Return:
			if x.X == ir.Nil {
				return nil, nil
			}

			r := fr.reg(x.X)

			return append([]byte{}, r...), nil
		default:
			return nil, errors.Wrap(ErrBadProgram, "v%d: unsupported instruction %T", id, x)
		}
	}

	return nil, errors.Wrap(ErrBadProgram, "%v: fell off the end", f.Name)
}

func (e *Engine) labelsOf(f *ir.Func) map[ir.Label]int {
	l, ok := e.labels[f]
	if !ok {
		l = f.Labels()
		e.labels[f] = l
	}

	return l
}

func jump(labels map[ir.Label]int, l ir.Label) (int, error) {
	pc, ok := labels[l]
	if !ok {
		return 0, errors.Wrap(ErrBadProgram, "label L%d not placed", l)
	}

	return pc, nil
}

// relative resolves n bytes at off from base: memory for a pointer base,
// the value's own storage for a struct base.
func (e *Engine) relative(fr *frame, base ir.Expr, off, n int) ([]byte, error) {
	switch fr.f.EType[base].Kind() {
	case tp.Pointer:
		addr := getU(fr.reg(base)) + uint64(off)

		return e.mem.slice(addr, n)
	case tp.StructKind:
		b := fr.reg(base)

		if off < 0 || off+n > len(b) {
			return nil, errors.Wrap(ErrBadProgram, "offset %d+%d out of %d bytes", off, n, len(b))
		}

		return b[off : off+n], nil
	default:
		return nil, errors.Wrap(ErrBadProgram, "relative access through %v", tp.String(fr.f.EType[base]))
	}
}

func (fr *frame) reg(id ir.Expr) []byte {
	if fr.regs[id] == nil {
		fr.regs[id] = make([]byte, fr.f.EType[id].Size())
	}

	return fr.regs[id]
}

func (fr *frame) intAsFloat(id ir.Expr) float64 {
	k := fr.f.EType[id].Kind()
	u := getI(k, fr.reg(id))

	if k.IsSigned() {
		return float64(int64(u))
	}

	return float64(u)
}

func (fr *frame) arith(id ir.Expr, x any) error {
	var l, r ir.Expr

	switch x := x.(type) {
	case ir.Add:
		l, r = x.L, x.R
	case ir.Sub:
		l, r = x.L, x.R
	case ir.Mul:
		l, r = x.L, x.R
	case ir.Div:
		l, r = x.L, x.R
	}

	k := fr.f.EType[id].Kind()
	dst := fr.reg(id)

	if k.IsFloat() {
		a, b := fr.float(l), fr.float(r)

		var v float64

		switch x.(type) {
		case ir.Add:
			v = a + b
		case ir.Sub:
			v = a - b
		case ir.Mul:
			v = a * b
		case ir.Div:
			v = a / b
		}

		putF(k, dst, v)

		return nil
	}

	a := getI(fr.f.EType[l].Kind(), fr.reg(l))
	b := getI(fr.f.EType[r].Kind(), fr.reg(r))

	var v uint64

	switch x.(type) {
	case ir.Add:
		v = a + b
	case ir.Sub:
		v = a - b
	case ir.Mul:
		v = a * b
	case ir.Div:
		if b == 0 {
			return ErrDivByZero
		}

		if k.IsSigned() {
			v = uint64(int64(a) / int64(b))
		} else {
			v = a / b
		}
	}

	putU(dst, v)

	return nil
}

func (fr *frame) float(id ir.Expr) float64 {
	k := fr.f.EType[id].Kind()

	if k.IsFloat() {
		return getF(k, fr.reg(id))
	}

	return fr.intAsFloat(id)
}

func (fr *frame) cmp(id ir.Expr, x ir.Cmp) {
	lk := fr.f.EType[x.L].Kind()
	rk := fr.f.EType[x.R].Kind()

	var c int

	switch {
	case lk.IsFloat() || rk.IsFloat():
		a, b := fr.float(x.L), fr.float(x.R)
		c = compare(a, b)
	case lk.IsSigned():
		a, b := int64(getI(lk, fr.reg(x.L))), int64(getI(rk, fr.reg(x.R)))
		c = compare(a, b)
	default:
		a, b := getI(lk, fr.reg(x.L)), getI(rk, fr.reg(x.R))
		c = compare(a, b)
	}

	var ok bool

	switch x.Cond {
	case ir.EQ:
		ok = c == 0
	case ir.NE:
		ok = c != 0
	case ir.LT:
		ok = c < 0
	case ir.LE:
		ok = c <= 0
	case ir.GT:
		ok = c > 0
	case ir.GE:
		ok = c >= 0
	}

	var v uint64
	if ok {
		v = 1
	}

	putU(fr.reg(id), v)
}

func compare[T int64 | uint64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (fr *frame) convert(id ir.Expr, x ir.Convert) error {
	sk := fr.f.EType[x.X].Kind()
	dk := fr.f.EType[id].Kind()
	dst := fr.reg(id)
	bits := 8 * len(dst)

	if dk.IsFloat() {
		putF(dk, dst, fr.float(x.X))
		return nil
	}

	if sk.IsFloat() {
		v := getF(sk, fr.reg(x.X))
		v = math.Trunc(v)

		if x.CheckOverflow {
			lo, hi := 0.0, math.Ldexp(1, bits)
			if dk.IsSigned() {
				lo, hi = -math.Ldexp(1, bits-1), math.Ldexp(1, bits-1)
			}

			if math.IsNaN(v) || v < lo || v >= hi {
				return errors.Wrap(ErrOverflow, "%v to %v", v, dk)
			}
		}

		if dk.IsSigned() || v < 0 {
			putU(dst, uint64(int64(v)))
		} else {
			putU(dst, uint64(v))
		}

		return nil
	}

	u := getI(sk, fr.reg(x.X))

	if x.CheckOverflow && bits < 64 || x.CheckOverflow && sk.IsSigned() != dk.IsSigned() {
		if !fits(u, sk.IsSigned(), bits, dk.IsSigned()) {
			return errors.Wrap(ErrOverflow, "%v to %v", sk, dk)
		}
	}

	putU(dst, u)

	return nil
}

// fits reports whether u, interpreted per srcSigned, is representable in bits of dst signedness.
func fits(u uint64, srcSigned bool, bits int, dstSigned bool) bool {
	if srcSigned && int64(u) < 0 {
		if !dstSigned {
			return false
		}

		return bits == 64 || int64(u) >= -(int64(1)<<(bits-1))
	}

	if dstSigned {
		return u <= uint64(1)<<(bits-1)-1
	}

	return bits == 64 || u < uint64(1)<<bits
}

func (fr *frame) call(id ir.Expr, x ir.Call) error {
	addr := getU(fr.reg(x.Func))

	fn, ok := native.Lookup(uintptr(addr))
	if !ok {
		return errors.Wrap(ErrBadAddress, "call %#x", addr)
	}

	ft := fn.Type()

	if ft.NumIn() != len(x.Args) {
		return errors.Wrap(ErrBadCall, "%v with %d args", ft, len(x.Args))
	}

	in := make([]reflect.Value, len(x.Args))

	for i, a := range x.Args {
		in[i] = reflect.New(ft.In(i)).Elem()

		err := decode(in[i], fr.reg(a))
		if err != nil {
			return errors.Wrap(err, "arg %d", i)
		}
	}

	out := fn.Call(in)

	if len(out) == 0 {
		return nil
	}

	return encode(fr.reg(id), out[0])
}
