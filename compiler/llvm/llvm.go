// Package llvm exports built functions as LLVM IR.
package llvm

import (
	"context"
	"math"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/jit/compiler/ir"
	"github.com/slowlang/jit/compiler/tp"
)

type (
	modContext struct {
		m *llir.Module

		sqrt map[tp.Kind]*llir.Func
	}

	funContext struct {
		*modContext

		f  *ir.Func
		lf *llir.Func

		slots  []value.Value // slot id -> alloca
		blocks map[ir.Label]*llir.Block

		cur *llir.Block
	}
)

var ErrUnsupported = errors.New("unsupported")

// Module translates funcs into one LLVM module.
// Every value slot becomes an entry block alloca.
func Module(ctx context.Context, funcs ...*ir.Func) (_ *llir.Module, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "llvm: module", "funcs", len(funcs))
	defer tr.Finish("err", &err)

	m := &modContext{
		m:    llir.NewModule(),
		sqrt: make(map[tp.Kind]*llir.Func),
	}

	for _, f := range funcs {
		err = m.function(ctx, f)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", f.Name)
		}
	}

	return m.m, nil
}

func (m *modContext) function(ctx context.Context, f *ir.Func) (err error) {
	params := make([]*llir.Param, len(f.Sig.In))

	for i, t := range f.Sig.In {
		params[i] = llir.NewParam("", Type(t))
	}

	fc := &funContext{
		modContext: m,
		f:          f,
		lf:         m.m.NewFunc(f.Name, Type(f.Sig.Out), params...),
		slots:      make([]value.Value, len(f.Exprs)),
		blocks:     make(map[ir.Label]*llir.Block),
	}

	entry := fc.lf.NewBlock("entry")

	for id, t := range f.EType {
		switch t.Kind() {
		case tp.Void:
			continue
		}

		if _, ok := f.Exprs[id].(ir.L); ok {
			continue
		}

		fc.slots[id] = entry.NewAlloca(Type(t))
	}

	for _, id := range f.Code {
		if l, ok := f.Exprs[id].(ir.L); ok {
			fc.blocks[l.Label] = fc.lf.NewBlock("")
		}
	}

	fc.cur = entry

	for _, id := range f.Code {
		err = fc.insn(id)
		if err != nil {
			return errors.Wrap(err, "v%d", id)
		}
	}

	if fc.cur.Term == nil {
		fc.cur.NewUnreachable()
	}

	if tlog.SpanFromContext(ctx).If("llvm_dump") {
		tlog.SpanFromContext(ctx).Printw("llvm func", "name", f.Name, "text", fc.lf.LLString())
	}

	return nil
}

func (fc *funContext) insn(id ir.Expr) error {
	f := fc.f

	if l, ok := f.Exprs[id].(ir.L); ok {
		next := fc.blocks[l.Label]

		if fc.cur.Term == nil {
			fc.cur.NewBr(next)
		}

		fc.cur = next

		return nil
	}

	if fc.cur.Term != nil {
		fc.cur = fc.lf.NewBlock("")
	}

	b := fc.cur
	t := f.EType[id]

	switch x := f.Exprs[id].(type) {
	case ir.Param:
		fc.store(id, fc.lf.Params[x.N])
	case ir.Const:
		c, err := Const(t, x.Bits)
		if err != nil {
			return err
		}

		fc.store(id, c)
	case ir.Dup:
		fc.store(id, fc.load(x.X))
	case ir.Alloca:
		a := b.NewAlloca(types.I8)
		a.NElems = fc.load(x.Size)

		fc.store(id, b.NewBitCast(a, Type(t)))
	case ir.Store:
		src := fc.load(x.Src)

		if !src.Type().Equal(Type(f.EType[x.Dst])) {
			src = b.NewBitCast(src, Type(f.EType[x.Dst]))
		}

		fc.store(x.Dst, src)
	case ir.StoreRel:
		p := fc.relative(x.Base, x.Off, f.EType[x.Src])

		b.NewStore(fc.load(x.Src), p)
	case ir.LoadRel:
		p := fc.relative(x.Base, x.Off, t)

		fc.store(id, b.NewLoad(Type(t), p))
	case ir.Add:
		fc.store(id, fc.arith(t, x.L, x.R, 'a'))
	case ir.Sub:
		fc.store(id, fc.arith(t, x.L, x.R, 's'))
	case ir.Mul:
		fc.store(id, fc.arith(t, x.L, x.R, 'm'))
	case ir.Div:
		fc.store(id, fc.arith(t, x.L, x.R, 'd'))
	case ir.Cmp:
		fc.store(id, fc.cmp(x))
	case ir.Sqrt:
		arg := fc.convert(fc.load(x.X), f.EType[x.X], t)

		fc.store(id, b.NewCall(fc.sqrtFunc(t), arg))
	case ir.Convert:
		fc.store(id, fc.convert(fc.load(x.X), f.EType[x.X], t))
	case ir.Call:
		fn := fc.load(x.Func)

		args := make([]value.Value, len(x.Args))
		for i, a := range x.Args {
			args[i] = fc.load(a)
		}

		call := b.NewCall(fn, args...)

		if t.Kind() != tp.Void {
			fc.store(id, call)
		}
	case ir.B:
		b.NewBr(fc.blocks[x.Label])
	case ir.BCond:
		v := fc.convert(fc.load(x.Expr), f.EType[x.Expr], tp.Of(tp.NUInt))
		cond := b.NewICmp(enum.IPredNE, v, constant.NewInt(types.I64, 0))
		next := fc.lf.NewBlock("")

		b.NewCondBr(cond, fc.blocks[x.Label], next)

		fc.cur = next
	case ir.Return:
		if x.X == ir.Nil || f.EType[x.X].Kind() == tp.Void {
			b.NewRet(nil)
			break
		}

		b.NewRet(fc.load(x.X))
	default:
		return errors.Wrap(ErrUnsupported, "instruction %T", x)
	}

	return nil
}

func (fc *funContext) load(id ir.Expr) value.Value {
	t := Type(fc.f.EType[id])

	return fc.cur.NewLoad(t, fc.slots[id])
}

func (fc *funContext) store(id ir.Expr, v value.Value) {
	if fc.slots[id] == nil {
		return
	}

	fc.cur.NewStore(v, fc.slots[id])
}

// relative returns a pointer of type *t at byte offset off from base.
func (fc *funContext) relative(base ir.Expr, off int, t tp.Type) value.Value {
	b := fc.cur
	bytePtr := types.NewPointer(types.I8)

	var p value.Value

	if fc.f.EType[base].Kind() == tp.Pointer {
		p = fc.load(base)
	} else {
		p = fc.slots[base]
	}

	p = b.NewBitCast(p, bytePtr)
	p = b.NewGetElementPtr(types.I8, p, constant.NewInt(types.I64, int64(off)))

	return b.NewBitCast(p, types.NewPointer(Type(t)))
}

func (fc *funContext) arith(t tp.Type, l, r ir.Expr, op byte) value.Value {
	b := fc.cur
	lv := fc.convert(fc.load(l), fc.f.EType[l], t)
	rv := fc.convert(fc.load(r), fc.f.EType[r], t)

	k := t.Kind()

	if k == tp.Pointer || k == tp.Signature {
		li := b.NewPtrToInt(lv, types.I64)
		ri := b.NewPtrToInt(rv, types.I64)

		var v value.Value

		switch op {
		case 'a':
			v = b.NewAdd(li, ri)
		case 's':
			v = b.NewSub(li, ri)
		case 'm':
			v = b.NewMul(li, ri)
		default:
			v = b.NewUDiv(li, ri)
		}

		return b.NewIntToPtr(v, Type(t))
	}

	if k.IsFloat() {
		switch op {
		case 'a':
			return b.NewFAdd(lv, rv)
		case 's':
			return b.NewFSub(lv, rv)
		case 'm':
			return b.NewFMul(lv, rv)
		default:
			return b.NewFDiv(lv, rv)
		}
	}

	switch op {
	case 'a':
		return b.NewAdd(lv, rv)
	case 's':
		return b.NewSub(lv, rv)
	case 'm':
		return b.NewMul(lv, rv)
	}

	if k.IsSigned() {
		return b.NewSDiv(lv, rv)
	}

	return b.NewUDiv(lv, rv)
}

func (fc *funContext) cmp(x ir.Cmp) value.Value {
	b := fc.cur
	lt, rt := fc.f.EType[x.L], fc.f.EType[x.R]
	l, r := fc.load(x.L), fc.convert(fc.load(x.R), rt, lt)

	var c value.Value

	if lt.Kind().IsFloat() {
		pred := map[ir.Cond]enum.FPred{
			ir.EQ: enum.FPredOEQ, ir.NE: enum.FPredONE,
			ir.LT: enum.FPredOLT, ir.LE: enum.FPredOLE,
			ir.GT: enum.FPredOGT, ir.GE: enum.FPredOGE,
		}[x.Cond]

		c = b.NewFCmp(pred, l, r)
	} else {
		signed := lt.Kind().IsSigned()

		pred := map[ir.Cond]enum.IPred{
			ir.EQ: enum.IPredEQ, ir.NE: enum.IPredNE,
			ir.LT: enum.IPredULT, ir.LE: enum.IPredULE,
			ir.GT: enum.IPredUGT, ir.GE: enum.IPredUGE,
		}[x.Cond]

		if signed {
			pred = map[ir.Cond]enum.IPred{
				ir.EQ: enum.IPredEQ, ir.NE: enum.IPredNE,
				ir.LT: enum.IPredSLT, ir.LE: enum.IPredSLE,
				ir.GT: enum.IPredSGT, ir.GE: enum.IPredSGE,
			}[x.Cond]
		}

		c = b.NewICmp(pred, l, r)
	}

	return b.NewZExt(c, types.I8)
}

// convert converts v from type from to type to.
func (fc *funContext) convert(v value.Value, from, to tp.Type) value.Value {
	b := fc.cur
	fk, tk := from.Kind(), to.Kind()
	lt := Type(to)

	if v.Type().Equal(lt) {
		return v
	}

	switch {
	case fk.IsFloat() && tk.IsFloat():
		if from.Size() < to.Size() {
			return b.NewFPExt(v, lt)
		}

		return b.NewFPTrunc(v, lt)
	case fk.IsFloat():
		if tk.IsSigned() {
			return b.NewFPToSI(v, lt)
		}

		return b.NewFPToUI(v, lt)
	case tk.IsFloat():
		if fk.IsSigned() {
			return b.NewSIToFP(v, lt)
		}

		return b.NewUIToFP(v, lt)
	case fk == tp.Pointer || fk == tp.Signature:
		if tk == tp.Pointer || tk == tp.Signature {
			return b.NewBitCast(v, lt)
		}

		return b.NewPtrToInt(v, lt)
	case tk == tp.Pointer || tk == tp.Signature:
		return b.NewIntToPtr(v, lt)
	case from.Size() < to.Size():
		if fk.IsSigned() {
			return b.NewSExt(v, lt)
		}

		return b.NewZExt(v, lt)
	case from.Size() > to.Size():
		return b.NewTrunc(v, lt)
	}

	return v
}

func (fc *funContext) sqrtFunc(t tp.Type) *llir.Func {
	k := t.Kind()

	if f, ok := fc.sqrt[k]; ok {
		return f
	}

	name := "llvm.sqrt.f64"
	if k == tp.Float32 {
		name = "llvm.sqrt.f32"
	}

	f := fc.m.NewFunc(name, Type(t), llir.NewParam("", Type(t)))
	fc.sqrt[k] = f

	return f
}

// Type returns the LLVM type matching t.
func Type(t tp.Type) types.Type {
	switch t := t.(type) {
	case *tp.Ptr:
		if t.X.Kind() == tp.Void {
			return types.NewPointer(types.I8)
		}

		return types.NewPointer(Type(t.X))
	case *tp.Struct:
		fields := make([]types.Type, len(t.Fields))

		for i, f := range t.Fields {
			fields[i] = Type(f.Type)
		}

		return types.NewStruct(fields...)
	case *tp.Func:
		params := make([]types.Type, len(t.In))

		for i, p := range t.In {
			params[i] = Type(p)
		}

		return types.NewPointer(types.NewFunc(Type(t.Out), params...))
	}

	switch t.Kind() {
	case tp.Void:
		return types.Void
	case tp.SByte, tp.UByte, tp.Bool:
		return types.I8
	case tp.Short, tp.UShort:
		return types.I16
	case tp.Int, tp.UInt, tp.Char:
		return types.I32
	case tp.NInt, tp.NUInt, tp.Long, tp.ULong:
		return types.I64
	case tp.Float32:
		return types.Float
	case tp.Float64:
		return types.Double
	}

	panic(t)
}

// Const returns an LLVM constant of type t with bit pattern bits.
func Const(t tp.Type, bits uint64) (constant.Constant, error) {
	k := t.Kind()
	lt := Type(t)

	switch {
	case k.IsFloat():
		return constant.NewFloat(lt.(*types.FloatType), fromBits(k, bits)), nil
	case k == tp.Pointer || k == tp.Signature:
		if bits == 0 {
			return constant.NewNull(lt.(*types.PointerType)), nil
		}

		return constant.NewIntToPtr(constant.NewInt(types.I64, int64(bits)), lt), nil
	case k.IsInt():
		return constant.NewInt(lt.(*types.IntType), int64(bits)), nil
	}

	return nil, errors.Wrap(ErrUnsupported, "constant of %v", tp.String(t))
}

func fromBits(k tp.Kind, bits uint64) float64 {
	if k == tp.Float32 {
		return float64(math.Float32frombits(uint32(bits)))
	}

	return math.Float64frombits(bits)
}
