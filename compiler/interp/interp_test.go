package interp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/jit/compiler/build"
	"github.com/slowlang/jit/compiler/ir"
	"github.com/slowlang/jit/compiler/tp"
)

var (
	nint  = tp.Of(tp.NInt)
	nuint = tp.Of(tp.NUInt)
)

func compile(t *testing.T, name string, sig *tp.Func, body func(f *build.Func)) *ir.Func {
	t.Helper()

	res, err := build.NewContext().BuildFunc(context.Background(), name, sig, body)
	require.NoError(t, err)

	return res
}

func TestSqrt(t *testing.T) {
	f := compile(t, "isqrt", &tp.Func{In: []tp.Type{nuint}, Out: nuint}, func(f *build.Func) {
		s := f.Sqrt(f.Param(0))

		f.Return(f.Convert(s, nuint, false))
	})

	e := New(Options{})
	ctx := context.Background()

	for x, want := range map[uint]uint{64: 8, 16: 4, 9: 3, 4: 2, 1: 1, 0: 0, 99: 9} {
		r, err := Call[uint](ctx, e, f, x)
		require.NoError(t, err)
		assert.Equal(t, want, r, "isqrt(%d)", x)
	}
}

func sumLoop(t *testing.T) *ir.Func {
	return compile(t, "sum", &tp.Func{In: []tp.Type{nint}, Out: nint}, func(f *build.Func) {
		n := f.Param(0)
		one := f.Const(nint, 1)

		acc := build.New(f, nint)
		f.Store(acc, f.Const(nint, 0))

		i := build.New(f, nint)
		f.Store(i, one)

		loop, done := f.NewLabel(), f.NewLabel()

		f.Label(loop)
		f.BranchIf(f.Cmp(i, n, ir.GT), done)

		f.Store(acc, f.Add(acc, i))
		f.Store(i, f.Add(i, one))
		f.Branch(loop)

		f.Label(done)
		f.Return(acc)
	})
}

func TestLoop(t *testing.T) {
	f := sumLoop(t)
	e := New(Options{})
	ctx := context.Background()

	for n, want := range map[int]int{0: 0, 1: 1, 10: 55, -5: 0} {
		r, err := Call[int](ctx, e, f, n)
		require.NoError(t, err)
		assert.Equal(t, want, r, "sum(%d)", n)
	}
}

func TestStepLimit(t *testing.T) {
	f := sumLoop(t)
	e := New(Options{MaxSteps: 1000})

	_, err := Call[int](context.Background(), e, f, 1_000_000)
	assert.ErrorIs(t, err, ErrStepLimit)
}

func TestCanceled(t *testing.T) {
	f := sumLoop(t)
	e := New(Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Call[int](ctx, e, f, 1_000_000)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiv(t *testing.T) {
	f := compile(t, "div", &tp.Func{In: []tp.Type{nint, nint}, Out: nint}, func(f *build.Func) {
		f.Return(f.Div(f.Param(0), f.Param(1)))
	})

	e := New(Options{})
	ctx := context.Background()

	r, err := Call[int](ctx, e, f, -7, 2)
	require.NoError(t, err)
	assert.Equal(t, -3, r)

	_, err = Call[int](ctx, e, f, 1, 0)
	assert.ErrorIs(t, err, ErrDivByZero)
}

func TestConvertOverflow(t *testing.T) {
	sbyte := tp.Of(tp.SByte)

	checked := compile(t, "checked", &tp.Func{In: []tp.Type{nint}, Out: sbyte}, func(f *build.Func) {
		f.Return(f.Convert(f.Param(0), sbyte, true))
	})

	wrapping := compile(t, "wrapping", &tp.Func{In: []tp.Type{nint}, Out: sbyte}, func(f *build.Func) {
		f.Return(f.Convert(f.Param(0), sbyte, false))
	})

	e := New(Options{})
	ctx := context.Background()

	for _, x := range []int{0, 100, -100, 127, -128} {
		r, err := Call[int8](ctx, e, checked, x)
		require.NoError(t, err)
		assert.Equal(t, int8(x), r)
	}

	for _, x := range []int{128, -129, 300} {
		_, err := Call[int8](ctx, e, checked, x)
		assert.ErrorIs(t, err, ErrOverflow, "%d", x)
	}

	r, err := Call[int8](ctx, e, wrapping, 300)
	require.NoError(t, err)
	assert.Equal(t, int8(44), r)

	toUint := compile(t, "to_uint", &tp.Func{In: []tp.Type{tp.Of(tp.Float64)}, Out: tp.Of(tp.UInt)}, func(f *build.Func) {
		f.Return(f.Convert(f.Param(0), tp.Of(tp.UInt), true))
	})

	u, err := Call[uint32](ctx, e, toUint, 3.7)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), u)

	_, err = Call[uint32](ctx, e, toUint, 1e10)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = Call[uint32](ctx, e, toUint, -1.0)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestFramesReleased(t *testing.T) {
	f := compile(t, "scratch", &tp.Func{In: []tp.Type{nuint}, Out: nuint}, func(f *build.Func) {
		p := f.Alloca(f.Const(nuint, 1024))

		f.StoreRelative(p, 1016, f.Param(0))

		f.Return(f.LoadRelative(p, 1016, nuint))
	})

	e := New(Options{MemLimit: 2048})
	ctx := context.Background()

	for i := uint(0); i < 10; i++ {
		r, err := Call[uint](ctx, e, f, i)
		require.NoError(t, err)
		assert.Equal(t, i, r)
	}

	assert.Equal(t, 0, e.mem.used)
	assert.Len(t, e.mem.segs, 1)
}

func TestOutOfMemory(t *testing.T) {
	f := compile(t, "big", &tp.Func{Out: tp.Of(tp.Void)}, func(f *build.Func) {
		f.Alloca(f.Const(nuint, 4096))
	})

	_, err := New(Options{MemLimit: 1024}).Call(context.Background(), f)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestBadCall(t *testing.T) {
	f := sumLoop(t)
	e := New(Options{})

	_, err := e.Call(context.Background(), f)
	assert.ErrorIs(t, err, ErrBadCall)

	_, err = e.Call(context.Background(), f, "str")
	assert.ErrorIs(t, err, ErrBadCall)
}

func TestMemory(t *testing.T) {
	m := newMemory(64)

	a, err := m.alloc(16)
	require.NoError(t, err)

	b, err := m.alloc(16)
	require.NoError(t, err)

	assert.Equal(t, uint64(memBase), m.base(a))
	assert.Equal(t, uint64(memBase+16), m.base(b))

	s, err := m.slice(m.base(b)+4, 12)
	require.NoError(t, err)
	assert.Len(t, s, 12)

	_, err = m.slice(m.base(b)+4, 13)
	assert.ErrorIs(t, err, ErrBadAddress)

	_, err = m.slice(memBase-1, 1)
	assert.ErrorIs(t, err, ErrBadAddress)

	m.release(a)
	m.release(a)
	assert.Equal(t, 16, m.used)

	_, err = m.slice(m.base(a), 1)
	assert.ErrorIs(t, err, ErrBadAddress)

	c, err := m.alloc(8)
	require.NoError(t, err)
	assert.Equal(t, a, c)
	assert.Equal(t, 24, m.used)

	_, err = m.slice(m.base(c)+8, 1)
	assert.ErrorIs(t, err, ErrBadAddress)

	_, err = m.alloc(41)
	assert.ErrorIs(t, err, ErrOutOfMemory)

	d, err := m.alloc(40)
	require.NoError(t, err)
	assert.Equal(t, 2, d)
	assert.Equal(t, 64, m.used)
}
