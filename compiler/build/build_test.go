package build

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tlog.app/go/tlog"

	"github.com/slowlang/jit/compiler/ir"
	"github.com/slowlang/jit/compiler/tp"
)

var (
	nint = tp.Of(tp.NInt)
	void = tp.Of(tp.Void)
)

func sig(out tp.Type, in ...tp.Type) *tp.Func {
	return &tp.Func{In: in, Out: out}
}

func TestBuildFunc(t *testing.T) {
	ctx := context.Background()
	c := NewContext()

	res, err := c.BuildFunc(ctx, "add1", sig(nint, nint), func(f *Func) {
		x := f.Add(f.Param(0), f.Const(nint, 1))

		f.Return(x)
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "add1", res.Name)
	assert.Len(t, res.In, 1)
	assert.Len(t, res.Code, 4)
	assert.Equal(t, 1, c.Built())

	_, ok := res.Exprs[res.Code[len(res.Code)-1]].(ir.Return)
	assert.True(t, ok)
}

func TestImplicitVoidReturn(t *testing.T) {
	res, err := NewContext().BuildFunc(context.Background(), "nop", sig(void), func(f *Func) {})
	require.NoError(t, err)

	require.Len(t, res.Code, 1)
	assert.Equal(t, ir.Return{X: ir.Nil}, res.Exprs[res.Code[0]])
}

func TestMissingReturn(t *testing.T) {
	_, err := NewContext().BuildFunc(context.Background(), "bad", sig(nint), func(f *Func) {
		f.Const(nint, 1)
	})
	assert.ErrorIs(t, err, ErrMissingReturn)
}

func TestBadSignature(t *testing.T) {
	_, err := NewContext().BuildFunc(context.Background(), "bad", nil, func(f *Func) {})
	assert.ErrorIs(t, err, ErrBadDescriptor)

	_, err = NewContext().BuildFunc(context.Background(), "bad", sig(void, nil), func(f *Func) {})
	assert.ErrorIs(t, err, ErrBadDescriptor)
}

func TestStaleValue(t *testing.T) {
	ctx := context.Background()
	c := NewContext()

	var leaked Value

	_, err := c.BuildFunc(ctx, "first", sig(void), func(f *Func) {
		leaked = f.Const(nint, 1)
	})
	require.NoError(t, err)

	assert.Equal(t, "<stale value>", leaked.String())
	assert.Panics(t, func() { leaked.Type() })

	_, err = c.BuildFunc(ctx, "second", sig(nint), func(f *Func) {
		f.Return(leaked)
	})
	assert.ErrorIs(t, err, ErrStaleValue)

	var ce *ContractError
	assert.ErrorAs(t, err, &ce)
}

func TestForeignValue(t *testing.T) {
	ctx := context.Background()
	c := NewContext()

	res, err := c.BuildFunc(ctx, "outer", sig(nint), func(outer *Func) {
		x := outer.Const(nint, 1)

		_, err := c.BuildFunc(ctx, "inner", sig(void), func(inner *Func) {
			inner.Dup(x)
		})
		assert.ErrorIs(t, err, ErrForeignValue)

		outer.Return(x)
	})
	require.NoError(t, err)
	assert.NotNil(t, res)
}

func TestZeroValue(t *testing.T) {
	_, err := NewContext().BuildFunc(context.Background(), "zero", sig(void), func(f *Func) {
		f.Dup(Value{})
	})
	assert.ErrorIs(t, err, ErrZeroValue)

	assert.Equal(t, "<zero value>", Value{}.String())
}

func TestNoField(t *testing.T) {
	st := tp.NewStruct(
		tp.Field{Name: "a", Type: nint},
		tp.Field{Name: "b", Type: tp.Of(tp.Bool)},
	)

	var off int

	res, err := NewContext().BuildFunc(context.Background(), "fields", sig(void), func(f *Func) {
		off = f.FieldOffset(st, "b")

		f.FieldOffset(st, "c")
	})
	assert.ErrorIs(t, err, ErrNoField)
	assert.ErrorIs(t, err, tp.ErrNoField)
	assert.ErrorContains(t, err, `"c"`)
	assert.Nil(t, res)
	assert.Equal(t, 8, off)
}

func TestRelativeBounds(t *testing.T) {
	st := tp.NewStruct(
		tp.Field{Name: "a", Type: nint},
	)

	_, err := NewContext().BuildFunc(context.Background(), "bounds", sig(void), func(f *Func) {
		v := New(f, st)

		f.StoreRelative(v, 0, f.Const(nint, 1))
		f.StoreRelative(v, 4, f.Const(nint, 2))
	})
	assert.ErrorIs(t, err, ErrBadOperand)
}

func TestReturnType(t *testing.T) {
	_, err := NewContext().BuildFunc(context.Background(), "ret", sig(nint), func(f *Func) {
		f.Return(f.Const(tp.Of(tp.Float64), 0))
	})
	assert.ErrorIs(t, err, ErrBadOperand)
}

func TestSetAddressable(t *testing.T) {
	var id ir.Expr

	res, err := NewContext().BuildFunc(context.Background(), "pin", sig(void), func(f *Func) {
		v := New(f, nint)
		id = v.ID()

		assert.False(t, v.IsAddressable())

		v.SetAddressable()
		v.SetAddressable()

		assert.True(t, v.IsAddressable())
	})
	require.NoError(t, err)

	assert.Equal(t, []ir.Expr{id}, res.Pinned)
}

func TestTempPromotion(t *testing.T) {
	_, err := NewContext().BuildFunc(context.Background(), "temps", sig(nint, nint), func(f *Func) {
		one := f.Const(nint, 1)
		p := f.Param(0)

		assert.False(t, one.IsTemp())
		assert.False(t, p.IsTemp())

		x := f.Add(p, one)
		y := f.Add(p, one)

		assert.True(t, x.IsTemp())
		assert.True(t, y.IsTemp())

		l := f.NewLabel()
		f.Label(l)

		z := f.Add(x, one)

		assert.False(t, x.IsTemp())
		assert.True(t, y.IsTemp())
		assert.True(t, z.IsTemp())

		f.Return(z)
	})
	require.NoError(t, err)
}

func TestClone(t *testing.T) {
	res, err := NewContext().BuildFunc(context.Background(), "clone", sig(nint), func(f *Func) {
		v := f.Const(nint, 5)
		c := v.Clone()

		assert.NotEqual(t, v.ID(), c.ID())
		assert.True(t, tp.Equal(v.Type(), c.Type()))
		assert.True(t, c.IsTemp())
		assert.Equal(t, f, c.Func())

		assert.Contains(t, v.String(), "const 5")
		assert.Contains(t, c.String(), "dup v")

		f.Return(c)
	})
	require.NoError(t, err)

	assert.IsType(t, ir.Dup{}, res.Exprs[res.Code[1]])
}

func TestClosedSession(t *testing.T) {
	var sess *Func

	_, err := NewContext().BuildFunc(context.Background(), "sess", sig(void), func(f *Func) {
		sess = f

		assert.False(t, f.Closed())
		assert.Equal(t, "sess", f.Name())
		assert.Contains(t, f.Dump(), "func sess(")
	})
	require.NoError(t, err)

	assert.True(t, sess.Closed())
	assert.Panics(t, func() { sess.NewLabel() })
}

func TestDumpFuncLog(t *testing.T) {
	var buf bytes.Buffer

	l := tlog.New(tlog.NewConsoleWriter(&buf, 0))
	l.SetVerbosity("dump_func")

	ctx := tlog.ContextWithSpan(context.Background(), tlog.Span{Logger: l})

	_, err := NewContext().BuildFunc(ctx, "logged", sig(void), func(f *Func) {
		v := New(f, nint)
		v.SetAddressable()
	})
	require.NoError(t, err)

	out := buf.String()

	assert.Contains(t, out, "func built")
	assert.Contains(t, out, "logged")
	assert.Contains(t, out, "temp")
	assert.Contains(t, out, "pinned")
}
