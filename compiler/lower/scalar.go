package lower

import (
	"unsafe"

	"github.com/slowlang/jit/compiler/build"
	"github.com/slowlang/jit/compiler/tp"
)

type (
	// Char is a unicode code point lowered as the 4-byte char kind.
	Char rune

	// Unit is the empty value. It lowers to a zero-sized void value.
	Unit struct{}

	// Ptr is a typed pointer lowered as an embedded address.
	// The pointee must outlive every invocation of the generated function.
	Ptr[T any] struct {
		P *T
	}
)

func scalar(f *build.Func, t tp.Type, bits uint64) build.Value {
	return f.Const(t, bits)
}

func Bool(f *build.Func, x bool) build.Value {
	var bits uint64
	if x {
		bits = 1
	}

	return f.Const(tp.Of(tp.Bool), bits)
}

func (x Char) Lower(f *build.Func) build.Value {
	return f.Const(tp.Of(tp.Char), uint64(uint32(x)))
}

func (Char) JITType() tp.Type { return tp.Of(tp.Char) }

func (Unit) Lower(f *build.Func) build.Value {
	return build.New(f, tp.Of(tp.Void))
}

func (Unit) JITType() tp.Type { return tp.Of(tp.Void) }

func (x Ptr[T]) Lower(f *build.Func) build.Value {
	return address(f, x.JITType(), uintptr(unsafe.Pointer(x.P)))
}

func (Ptr[T]) JITType() tp.Type {
	return tp.NewPointer(TypeOf[T]())
}

// address embeds a host address into the generated code.
func address(f *build.Func, t tp.Type, addr uintptr) build.Value {
	return f.Const(t, uint64(addr))
}
