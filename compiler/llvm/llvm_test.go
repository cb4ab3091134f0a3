package llvm

import (
	"context"
	"testing"

	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/jit/compiler/build"
	"github.com/slowlang/jit/compiler/ir"
	"github.com/slowlang/jit/compiler/lower"
	"github.com/slowlang/jit/compiler/tp"
)

func compile(t *testing.T, c *build.Context, name string, sig tp.Type, body func(f *build.Func)) *ir.Func {
	t.Helper()

	res, err := c.BuildFunc(context.Background(), name, sig.(*tp.Func), body)
	require.NoError(t, err)

	return res
}

func TestModule(t *testing.T) {
	c := build.NewContext()

	isqrt := compile(t, c, "isqrt", lower.TypeOf[func(uint) uint](), func(f *build.Func) {
		s := f.Sqrt(f.Param(0))

		f.Return(f.Convert(s, lower.TypeOf[uint](), false))
	})

	strlen := compile(t, c, "strlen", lower.TypeOf[func() uint](), func(f *build.Func) {
		v := lower.Of(f, "hello")

		f.Return(f.LoadRelative(v, f.FieldOffset(v.Type(), "len"), lower.TypeOf[uint]()))
	})

	nint := lower.TypeOf[int]()

	maxFn := compile(t, c, "max", lower.TypeOf[func(int, int) int](), func(f *build.Func) {
		a, b := f.Param(0), f.Param(1)
		second := f.NewLabel()

		f.BranchIf(f.Cmp(a, b, ir.LT), second)
		f.Return(a)

		f.Label(second)
		f.Return(b)
	})

	neg := lower.Func1[int, int](func(x int) int { return -x })

	callNeg := compile(t, c, "call_neg", &tp.Func{In: []tp.Type{nint}, Out: nint}, func(f *build.Func) {
		f.Return(f.Call(lower.Of(f, neg), f.Param(0)))
	})

	m, err := Module(context.Background(), isqrt, strlen, maxFn, callNeg)
	require.NoError(t, err)

	text := m.String()

	assert.Contains(t, text, "define i64 @isqrt(")
	assert.Contains(t, text, "declare double @llvm.sqrt.f64(")
	assert.Contains(t, text, "call double @llvm.sqrt.f64(")
	assert.Contains(t, text, "uitofp i64")
	assert.Contains(t, text, "fptoui double")

	assert.Contains(t, text, "define i64 @strlen()")
	assert.Contains(t, text, "alloca i8, i64")
	assert.Contains(t, text, "getelementptr i8")

	assert.Contains(t, text, "define i64 @max(")
	assert.Contains(t, text, "icmp slt i64")
	assert.Contains(t, text, "br i1")

	assert.Contains(t, text, "define i64 @call_neg(")
	assert.Contains(t, text, "inttoptr")

	t.Logf("module:\n%s", text)
}

func TestType(t *testing.T) {
	assert.True(t, types.I64.Equal(Type(lower.TypeOf[int]())))
	assert.True(t, types.I8.Equal(Type(lower.TypeOf[bool]())))
	assert.True(t, types.I32.Equal(Type(lower.TypeOf[lower.Char]())))
	assert.True(t, types.Float.Equal(Type(lower.TypeOf[float32]())))
	assert.True(t, types.Void.Equal(Type(lower.TypeOf[lower.Unit]())))
	assert.True(t, types.NewPointer(types.I8).Equal(Type(lower.TypeOf[*byte]())))

	st := types.NewStruct(types.NewPointer(types.I8), types.I64)
	assert.True(t, st.Equal(Type(lower.TypeOf[string]())))
}

func TestConst(t *testing.T) {
	c, err := Const(tp.Of(tp.Float64), 0x3ff8000000000000)
	require.NoError(t, err)
	assert.Equal(t, types.Double, c.Type())

	c, err = Const(tp.NewPointer(tp.Of(tp.UByte)), 0)
	require.NoError(t, err)
	assert.Contains(t, c.String(), "null")

	_, err = Const(tp.NewStruct(), 0)
	assert.ErrorIs(t, err, ErrUnsupported)
}
