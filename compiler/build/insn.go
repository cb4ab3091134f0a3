package build

import (
	"github.com/slowlang/jit/compiler/ir"
	"github.com/slowlang/jit/compiler/tp"
)

// Param returns the i-th parameter of the function.
func (f *Func) Param(i int) Value {
	f.alive()

	if i < 0 || i >= len(f.f.In) {
		abortf(ErrBadOperand, "param %d of %d", i, len(f.f.In))
	}

	return Value{f: f, id: f.f.In[i], gen: f.gen}
}

// Const materializes bits as a compile-time constant of type t.
// Constants are not block-local storage so they never count as temporaries.
func (f *Func) Const(t tp.Type, bits uint64) Value {
	f.alive()
	f.checkType(t)

	switch t.Kind() {
	case tp.Void, tp.StructKind:
		abortf(ErrBadOperand, "constant of type %v", tp.String(t))
	}

	v := f.add(ir.Const{Bits: bits}, t)
	f.temp.Clear(v.id)

	return v
}

// Dup copies v into a new temporary.
func (f *Func) Dup(v Value) Value {
	x := f.use(v)

	return f.add(ir.Dup{X: x}, f.f.EType[x])
}

// Alloca allocates size bytes on the stack of the generated function.
// The memory is released when the function returns.
func (f *Func) Alloca(size Value) Value {
	x := f.use(size)
	f.wantInt(x, "alloca size")

	return f.add(ir.Alloca{Size: x}, tp.NewPointer(tp.Of(tp.Void)))
}

// Store copies the contents of src into dst.
func (f *Func) Store(dst, src Value) {
	d, s := f.use(dst), f.use(src)

	if dt, st := f.f.EType[d], f.f.EType[s]; dt.Size() != st.Size() {
		abortf(ErrBadOperand, "store %v to %v", tp.String(st), tp.String(dt))
	}

	f.emit(ir.Store{Dst: d, Src: s})
}

// StoreRelative stores src at byte offset off from base.
// For a pointer base the store goes to the memory it points to,
// for a struct base it goes to the value's own storage.
func (f *Func) StoreRelative(base Value, off int, src Value) {
	b, s := f.use(base), f.use(src)

	f.wantRelative(b, off, f.f.EType[s].Size())

	f.emit(ir.StoreRel{Base: b, Off: off, Src: s})
}

// LoadRelative reads a value of type t at byte offset off from base.
func (f *Func) LoadRelative(base Value, off int, t tp.Type) Value {
	b := f.use(base)
	f.checkType(t)

	f.wantRelative(b, off, t.Size())

	return f.add(ir.LoadRel{Base: b, Off: off}, t)
}

// FieldOffset returns the byte offset of the named field of struct type t.
// A missing field aborts the session.
func (f *Func) FieldOffset(t tp.Type, name string) int {
	s, ok := t.(*tp.Struct)
	if !ok {
		abortf(ErrBadDescriptor, "field %q of non-struct %v", name, tp.String(t))
	}

	fl, err := s.FindName(name)
	if err != nil {
		abortf(err, "in %v", tp.String(t))
	}

	return fl.Offset
}

func (f *Func) Add(l, r Value) Value { return f.arith(l, r, func(l, r ir.Expr) any { return ir.Add{L: l, R: r} }) }
func (f *Func) Sub(l, r Value) Value { return f.arith(l, r, func(l, r ir.Expr) any { return ir.Sub{L: l, R: r} }) }
func (f *Func) Mul(l, r Value) Value { return f.arith(l, r, func(l, r ir.Expr) any { return ir.Mul{L: l, R: r} }) }
func (f *Func) Div(l, r Value) Value { return f.arith(l, r, func(l, r ir.Expr) any { return ir.Div{L: l, R: r} }) }

// Cmp compares l and r and produces a bool.
func (f *Func) Cmp(l, r Value, cond ir.Cond) Value {
	lx, rx := f.use(l), f.use(r)

	switch cond {
	case ir.EQ, ir.NE, ir.LT, ir.LE, ir.GT, ir.GE:
	default:
		abortf(ErrBadOperand, "condition %q", cond)
	}

	f.wantScalar(lx, "cmp")
	f.wantScalar(rx, "cmp")

	return f.add(ir.Cmp{L: lx, R: rx, Cond: cond}, tp.Of(tp.Bool))
}

// Sqrt computes the square root in floating point.
// Integer operands produce float64.
func (f *Func) Sqrt(v Value) Value {
	x := f.use(v)
	f.wantScalar(x, "sqrt")

	t := f.f.EType[x]
	if t.Kind() != tp.Float32 {
		t = tp.Of(tp.Float64)
	}

	return f.add(ir.Sqrt{X: x}, t)
}

// Convert converts v to type t.
// With checkOverflow the generated code fails when the result doesn't fit.
func (f *Func) Convert(v Value, t tp.Type, checkOverflow bool) Value {
	x := f.use(v)
	f.checkType(t)

	f.wantScalar(x, "convert")

	switch t.Kind() {
	case tp.Void, tp.StructKind:
		abortf(ErrBadOperand, "convert to %v", tp.String(t))
	}

	return f.add(ir.Convert{X: x, CheckOverflow: checkOverflow}, t)
}

// Call calls the function whose address fn holds.
func (f *Func) Call(fn Value, args ...Value) Value {
	x := f.use(fn)

	sig, ok := f.f.EType[x].(*tp.Func)
	if !ok {
		abortf(ErrBadOperand, "call of %v", tp.String(f.f.EType[x]))
	}

	if len(args) != len(sig.In) {
		abortf(ErrBadOperand, "call with %d args, want %d", len(args), len(sig.In))
	}

	ids := make([]ir.Expr, len(args))

	for i, a := range args {
		ids[i] = f.use(a)

		if !tp.Equal(f.f.EType[ids[i]], sig.In[i]) {
			abortf(ErrBadOperand, "call arg %d: %v, want %v", i, tp.String(f.f.EType[ids[i]]), tp.String(sig.In[i]))
		}
	}

	return f.add(ir.Call{Func: x, Args: ids}, sig.Out)
}

// NewLabel reserves a label to be placed later with Label.
func (f *Func) NewLabel() ir.Label {
	f.alive()

	l := f.nextLabel
	f.nextLabel++

	return l
}

// Label places l at the current position and starts a new block.
func (f *Func) Label(l ir.Label) {
	f.alive()

	if l < 0 || l >= f.nextLabel {
		abortf(ErrBadOperand, "label %d", l)
	}

	f.cur++
	f.emit(ir.L{Label: l})
}

func (f *Func) Branch(l ir.Label) {
	f.alive()

	f.emit(ir.B{Label: l})
	f.cur++
}

// BranchIf branches to l if v is not zero.
func (f *Func) BranchIf(v Value, l ir.Label) {
	x := f.use(v)
	f.wantScalar(x, "branch condition")

	f.emit(ir.BCond{Expr: x, Label: l})
	f.cur++
}

func (f *Func) Return(v Value) {
	x := f.use(v)

	if !tp.Equal(f.f.EType[x], f.f.Sig.Out) {
		abortf(ErrBadOperand, "return %v from func returning %v", tp.String(f.f.EType[x]), tp.String(f.f.Sig.Out))
	}

	f.emit(ir.Return{X: x})
	f.cur++
}

func (f *Func) ReturnVoid() {
	f.alive()

	if f.f.Sig.Out.Kind() != tp.Void {
		abortf(ErrBadOperand, "void return from func returning %v", tp.String(f.f.Sig.Out))
	}

	f.emit(ir.Return{X: ir.Nil})
	f.cur++
}

func (f *Func) arith(l, r Value, mk func(l, r ir.Expr) any) Value {
	lx, rx := f.use(l), f.use(r)

	f.wantScalar(lx, "arith")
	f.wantScalar(rx, "arith")

	return f.add(mk(lx, rx), f.f.EType[lx])
}

func (f *Func) wantInt(x ir.Expr, what string) {
	if k := f.f.EType[x].Kind(); !k.IsInt() {
		abortf(ErrBadOperand, "%v: %v", what, k)
	}
}

func (f *Func) wantScalar(x ir.Expr, what string) {
	switch k := f.f.EType[x].Kind(); k {
	case tp.Void, tp.StructKind:
		abortf(ErrBadOperand, "%v: %v", what, k)
	}
}

func (f *Func) wantRelative(base ir.Expr, off, size int) {
	switch t := f.f.EType[base].(type) {
	case *tp.Ptr:
		return
	case *tp.Struct:
		if off < 0 || off+size > t.Size() {
			abortf(ErrBadOperand, "offset %d size %d out of %v", off, size, tp.String(t))
		}
	default:
		abortf(ErrBadOperand, "relative access through %v", tp.String(t))
	}
}
