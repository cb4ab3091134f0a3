package lower

import (
	"reflect"

	"github.com/slowlang/jit/compiler/build"
	"github.com/slowlang/jit/compiler/tp"
)

// Vec is a growable buffer of T.
// Go slices are lowered the same way.
type Vec[T any] []T

func (x Vec[T]) Lower(f *build.Func) build.Value {
	return vec(f, TypeOf[T](), len(x), func(i int) build.Value {
		return Of(f, x[i])
	})
}

func (Vec[T]) JITType() tp.Type {
	return vecType(TypeOf[T]())
}

func lowerSlice(f *build.Func, rv reflect.Value) build.Value {
	return vec(f, Type(rv.Type().Elem()), rv.Len(), func(i int) build.Value {
		return Of(f, rv.Index(i).Interface())
	})
}

// vec lowers n elements into a stack buffer and wraps it into a header.
// The buffer is exactly n elements long so cap equals len.
func vec(f *build.Func, et tp.Type, n int, elem func(i int) build.Value) build.Value {
	ptr := buffer(f, et, n, 0, elem)
	length := Of(f, uint(n))

	return header(f, vecType(et),
		field{"len", length},
		field{"cap", length},
		field{"ptr", ptr},
	)
}

func vecType(et tp.Type) tp.Type {
	return tp.NewStruct(
		tp.Field{Name: "len", Type: tp.Of(tp.NUInt)},
		tp.Field{Name: "cap", Type: tp.Of(tp.NUInt)},
		tp.Field{Name: "ptr", Type: tp.NewPointer(et)},
	)
}
