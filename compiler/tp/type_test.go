package tp

import (
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructFields(t *testing.T) {
	s := NewStruct(
		Field{Name: "first", Type: Of(Float64)},
		Field{Name: "second", Type: Of(Float64)},
	)

	f, err := s.FindName("first")
	require.NoError(t, err)
	assert.Equal(t, 0, f.Index)
	assert.Equal(t, 0, f.Offset)

	f, err = s.FindName("second")
	require.NoError(t, err)
	assert.Equal(t, 1, f.Index)
	assert.Equal(t, Of(Float64).Size(), f.Offset)

	var names []string
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}

	assert.Equal(t, []string{"first", "second"}, names)
	assert.Equal(t, 16, s.Size())

	_, err = s.FindName("third")
	assert.ErrorIs(t, err, ErrNoField)
}

func TestStructAlignment(t *testing.T) {
	s := NewStruct(
		Field{Name: "ptr", Type: NewPointer(Of(UByte))},
		Field{Name: "is_owned", Type: Of(Bool)},
	)

	f, err := s.FindName("is_owned")
	require.NoError(t, err)
	assert.Equal(t, 8, f.Offset)
	assert.Equal(t, 16, s.Size())
	assert.Equal(t, 8, s.Align())

	s = NewStruct(
		Field{Name: "a", Type: Of(UByte)},
		Field{Name: "b", Type: Of(Int)},
		Field{Name: "c", Type: Of(Short)},
	)

	assert.Equal(t, []int{0, 4, 8}, []int{s.Fields[0].Offset, s.Fields[1].Offset, s.Fields[2].Offset})
	assert.Equal(t, 12, s.Size())
}

func TestEqual(t *testing.T) {
	mk := func() Type {
		return NewStruct(
			Field{Name: "len", Type: Of(NUInt)},
			Field{Name: "cap", Type: Of(NUInt)},
			Field{Name: "ptr", Type: NewPointer(Of(UByte))},
		)
	}

	assert.True(t, Equal(mk(), mk()))
	assert.False(t, Equal(mk(), NewStruct(Field{Name: "len", Type: Of(NUInt)})))
	assert.False(t, Equal(NewPointer(Of(UByte)), NewPointer(Of(SByte))))

	assert.True(t, Equal(
		&Func{In: []Type{Of(NUInt)}, Out: Of(NUInt)},
		&Func{In: []Type{Of(NUInt)}, Out: Of(NUInt)},
	))

	assert.False(t, Equal(
		&Func{In: []Type{Of(NUInt)}, Out: Of(NUInt)},
		&Func{Out: Of(NUInt)},
	))

	assert.Same(t, Of(Int), Of(Int))
}

func TestRegistryMemo(t *testing.T) {
	var r Registry
	var calls int32

	build := func(rt reflect.Type) Type {
		atomic.AddInt32(&calls, 1)
		return Of(NUInt)
	}

	rt := reflect.TypeOf(uint(0))

	a := r.Resolve(rt, build)
	b := r.Resolve(rt, build)

	assert.Same(t, a, b)
	assert.EqualValues(t, 1, calls)
	assert.Equal(t, 1, r.Len())
}

func TestString(t *testing.T) {
	s := NewStruct(
		Field{Name: "ptr", Type: NewPointer(Of(UByte))},
		Field{Name: "len", Type: Of(NUInt)},
	)

	assert.Equal(t, "struct{ptr *ubyte, len nuint}", String(s))
	assert.Equal(t, "func(nuint, float64) void", String(&Func{In: []Type{Of(NUInt), Of(Float64)}, Out: Of(Void)}))
}
