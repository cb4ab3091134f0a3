package build

import (
	"context"
	"sync/atomic"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/slowlang/jit/compiler/format"
	"github.com/slowlang/jit/compiler/ir"
	"github.com/slowlang/jit/compiler/set"
	"github.com/slowlang/jit/compiler/tp"
)

type (
	// Context hosts function construction sessions.
	Context struct {
		built int
	}

	// Func is one function construction session.
	// It owns the value arena every Value of it points into.
	// It must not be used from multiple goroutines at once.
	Func struct {
		f *ir.Func

		gen uint32

		blk  []int32  // defining block per slot
		from []loc.PC // creation site per slot

		temp   set.Bits[ir.Expr]
		pinned set.Bits[ir.Expr]

		cur       int32
		nextLabel ir.Label
	}
)

// generations is shared by all sessions so a torn down session never
// reuses a generation a live Value could carry.
var generations atomic.Uint32

func NewContext() *Context {
	return &Context{}
}

func (c *Context) Built() int { return c.built }

// BuildFunc runs body inside a fresh session for a function of signature sig.
// Contract violations inside body abort the session and are returned as *ContractError.
// Values created in the session must not be used after BuildFunc returns.
func (c *Context) BuildFunc(ctx context.Context, name string, sig *tp.Func, body func(f *Func)) (res *ir.Func, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "build func", "name", name)
	defer tr.Finish("err", &err)

	if sig == nil || sig.Out == nil {
		return nil, errors.Wrap(ErrBadDescriptor, "signature")
	}

	f := &Func{}
	defer f.close()

	defer func() {
		p := recover()
		if p == nil {
			return
		}

		ce, ok := p.(*ContractError)
		if !ok {
			panic(p)
		}

		res = nil
		err = errors.Wrap(ce, "build %v", name)
	}()

	f.init(name, sig)

	body(f)

	res, err = f.finish()
	if err != nil {
		return nil, err
	}

	if tr.If("dump_func") {
		tr.Printw("func built", "name", name, "temp", &f.temp, "pinned", &f.pinned, "text", string(format.Func(nil, res)))
	}

	c.built++

	return res, nil
}

func (f *Func) init(name string, sig *tp.Func) {
	f.f = &ir.Func{
		Name: name,
		Sig:  sig,
	}
	f.gen = generations.Add(1)

	for i, t := range sig.In {
		f.checkType(t)

		v := f.add(ir.Param{N: i}, t)
		f.temp.Clear(v.id)

		f.f.In = append(f.f.In, v.id)
	}
}

func (f *Func) finish() (*ir.Func, error) {
	code := f.f.Code

	terminated := false
	if len(code) != 0 {
		_, terminated = f.f.Exprs[code[len(code)-1]].(ir.Return)
	}

	if !terminated {
		if f.f.Sig.Out.Kind() != tp.Void {
			return nil, errors.Wrap(ErrMissingReturn, "func %v", f.f.Name)
		}

		f.ReturnVoid()
	}

	f.f.Pinned = f.pinned.Slice()

	return f.f, nil
}

func (f *Func) close() {
	f.gen = generations.Add(1)
	f.f = nil
	f.blk = nil
	f.from = nil
	f.temp.Reset()
	f.pinned.Reset()
}

func (f *Func) Name() string {
	f.alive()

	return f.f.Name
}

func (f *Func) Sig() *tp.Func {
	f.alive()

	return f.f.Sig
}

// Closed reports whether the session ended.
func (f *Func) Closed() bool { return f.f == nil }

// Dump renders the instructions emitted so far.
func (f *Func) Dump() string {
	f.alive()

	return string(format.Func(nil, f.f))
}

func (f *Func) add(x any, t tp.Type) Value {
	id := ir.Expr(len(f.f.Exprs))

	f.f.Exprs = append(f.f.Exprs, x)
	f.f.EType = append(f.f.EType, t)
	f.blk = append(f.blk, f.cur)
	f.from = append(f.from, loc.Caller(2))

	f.temp.Set(id)

	if _, ok := x.(ir.Slot); !ok {
		f.f.Code = append(f.f.Code, id)
	}

	return Value{f: f, id: id, gen: f.gen}
}

// emit appends an instruction that defines no value.
func (f *Func) emit(x any) {
	f.add(x, tp.Of(tp.Void))
}

func (f *Func) alive() {
	if f == nil || f.f == nil {
		abort(ErrStaleValue)
	}
}

// use validates v as an operand of f and returns its slot.
// A temporary used outside its defining block becomes function-wide.
func (f *Func) use(v Value) ir.Expr {
	f.check(v)

	if f.blk[v.id] != f.cur {
		f.temp.Clear(v.id)
	}

	return v.id
}

func (f *Func) check(v Value) {
	switch {
	case v.f == nil:
		abort(ErrZeroValue)
	case v.f != f:
		if v.f.f == nil || v.gen != v.f.gen {
			abortf(ErrStaleValue, "value v%d", v.id)
		}

		abortf(ErrForeignValue, "value v%d of %v used in %v", v.id, v.f.f.Name, f.name())
	case f.f == nil || v.gen != f.gen:
		abortf(ErrStaleValue, "value v%d", v.id)
	case v.id < 0 || int(v.id) >= len(f.f.Exprs):
		abortf(ErrStaleValue, "value v%d out of arena", v.id)
	}
}

func (f *Func) checkType(t tp.Type) {
	if t == nil {
		abortf(ErrBadDescriptor, "nil")
	}

	switch t := t.(type) {
	case *tp.Prim:
		if t.K >= tp.Pointer {
			abortf(ErrBadDescriptor, "primitive of kind %v", t.K)
		}
	case *tp.Ptr:
		if t.X == nil {
			abortf(ErrBadDescriptor, "pointer to nil")
		}
	case *tp.Struct:
		for _, fl := range t.Fields {
			if fl.Type == nil {
				abortf(ErrBadDescriptor, "field %v of nil type", fl.Name)
			}
		}
	case *tp.Func:
		if t.Out == nil {
			abortf(ErrBadDescriptor, "signature without result")
		}
	default:
		abortf(ErrBadDescriptor, "%T", t)
	}
}

func (f *Func) name() string {
	if f.f == nil {
		return "<closed>"
	}

	return f.f.Name
}
