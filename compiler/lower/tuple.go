package lower

import (
	"github.com/slowlang/jit/compiler/build"
	"github.com/slowlang/jit/compiler/tp"
)

type (
	Tuple2[A, B any] struct {
		A A
		B B
	}

	Tuple3[A, B, C any] struct {
		A A
		B B
		C C
	}

	Tuple4[A, B, C, D any] struct {
		A A
		B B
		C C
		D D
	}

	Tuple5[A, B, C, D, E any] struct {
		A A
		B B
		C C
		D D
		E E
	}
)

func (x Tuple2[A, B]) Lower(f *build.Func) build.Value {
	return header(f, x.JITType(),
		field{"a", Of(f, x.A)},
		field{"b", Of(f, x.B)},
	)
}

func (Tuple2[A, B]) JITType() tp.Type {
	return tp.NewStruct(
		tp.Field{Name: "a", Type: TypeOf[A]()},
		tp.Field{Name: "b", Type: TypeOf[B]()},
	)
}

func (x Tuple3[A, B, C]) Lower(f *build.Func) build.Value {
	return header(f, x.JITType(),
		field{"a", Of(f, x.A)},
		field{"b", Of(f, x.B)},
		field{"c", Of(f, x.C)},
	)
}

func (Tuple3[A, B, C]) JITType() tp.Type {
	return tp.NewStruct(
		tp.Field{Name: "a", Type: TypeOf[A]()},
		tp.Field{Name: "b", Type: TypeOf[B]()},
		tp.Field{Name: "c", Type: TypeOf[C]()},
	)
}

func (x Tuple4[A, B, C, D]) Lower(f *build.Func) build.Value {
	return header(f, x.JITType(),
		field{"a", Of(f, x.A)},
		field{"b", Of(f, x.B)},
		field{"c", Of(f, x.C)},
		field{"d", Of(f, x.D)},
	)
}

func (Tuple4[A, B, C, D]) JITType() tp.Type {
	return tp.NewStruct(
		tp.Field{Name: "a", Type: TypeOf[A]()},
		tp.Field{Name: "b", Type: TypeOf[B]()},
		tp.Field{Name: "c", Type: TypeOf[C]()},
		tp.Field{Name: "d", Type: TypeOf[D]()},
	)
}

func (x Tuple5[A, B, C, D, E]) Lower(f *build.Func) build.Value {
	return header(f, x.JITType(),
		field{"a", Of(f, x.A)},
		field{"b", Of(f, x.B)},
		field{"c", Of(f, x.C)},
		field{"d", Of(f, x.D)},
		field{"e", Of(f, x.E)},
	)
}

func (Tuple5[A, B, C, D, E]) JITType() tp.Type {
	return tp.NewStruct(
		tp.Field{Name: "a", Type: TypeOf[A]()},
		tp.Field{Name: "b", Type: TypeOf[B]()},
		tp.Field{Name: "c", Type: TypeOf[C]()},
		tp.Field{Name: "d", Type: TypeOf[D]()},
		tp.Field{Name: "e", Type: TypeOf[E]()},
	)
}
