package lower

import (
	"reflect"

	"tlog.app/go/errors"

	"github.com/slowlang/jit/compiler/build"
	"github.com/slowlang/jit/compiler/native"
	"github.com/slowlang/jit/compiler/tp"
)

type (
	Func0[R any]             func() R
	Func1[A, R any]          func(A) R
	Func2[A, B, R any]       func(A, B) R
	Func3[A, B, C, R any]    func(A, B, C) R
	Func4[A, B, C, D, R any] func(A, B, C, D) R
)

// MaxArity is the largest number of parameters a lowered function reference may have.
const MaxArity = 4

func (x Func0[R]) Lower(f *build.Func) build.Value { return funcRef(f, reflect.ValueOf(x)) }

func (Func0[R]) JITType() tp.Type {
	return &tp.Func{Out: TypeOf[R]()}
}

func (x Func1[A, R]) Lower(f *build.Func) build.Value { return funcRef(f, reflect.ValueOf(x)) }

func (Func1[A, R]) JITType() tp.Type {
	return &tp.Func{In: []tp.Type{TypeOf[A]()}, Out: TypeOf[R]()}
}

func (x Func2[A, B, R]) Lower(f *build.Func) build.Value { return funcRef(f, reflect.ValueOf(x)) }

func (Func2[A, B, R]) JITType() tp.Type {
	return &tp.Func{In: []tp.Type{TypeOf[A](), TypeOf[B]()}, Out: TypeOf[R]()}
}

func (x Func3[A, B, C, R]) Lower(f *build.Func) build.Value { return funcRef(f, reflect.ValueOf(x)) }

func (Func3[A, B, C, R]) JITType() tp.Type {
	return &tp.Func{In: []tp.Type{TypeOf[A](), TypeOf[B](), TypeOf[C]()}, Out: TypeOf[R]()}
}

func (x Func4[A, B, C, D, R]) Lower(f *build.Func) build.Value { return funcRef(f, reflect.ValueOf(x)) }

func (Func4[A, B, C, D, R]) JITType() tp.Type {
	return &tp.Func{In: []tp.Type{TypeOf[A](), TypeOf[B](), TypeOf[C](), TypeOf[D]()}, Out: TypeOf[R]()}
}

// funcRef embeds the entry address of fn typed by its signature.
func funcRef(f *build.Func, fn reflect.Value) build.Value {
	if fn.IsNil() {
		build.Abort(errors.Wrap(ErrUnsupported, "nil func %v", fn.Type()))
	}

	t := Type(fn.Type())
	addr := native.Register(fn)

	return address(f, t, addr)
}

func funcType(rt reflect.Type) tp.Type {
	if rt.IsVariadic() || rt.NumIn() > MaxArity || rt.NumOut() > 1 {
		build.Abort(errors.Wrap(ErrUnsupported, "func type %v", rt))
	}

	t := &tp.Func{
		In:  make([]tp.Type, rt.NumIn()),
		Out: tp.Of(tp.Void),
	}

	for i := range t.In {
		t.In[i] = Type(rt.In(i))
	}

	if rt.NumOut() == 1 {
		t.Out = Type(rt.Out(0))
	}

	return t
}
