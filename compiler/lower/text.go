package lower

import (
	"unsafe"

	"github.com/slowlang/jit/compiler/build"
	"github.com/slowlang/jit/compiler/tp"
)

type (
	// CStr points to a NUL-terminated byte sequence.
	// It's lowered as a copy on the stack of the generated function.
	CStr struct {
		p *byte
	}

	// CString is an owned C string. It's lowered as a struct
	// holding a stack copy of the bytes and an ownership flag.
	CString []byte

	// Str is a borrowed text slice.
	// Go strings are lowered the same way.
	Str string

	// OwnedString is an owned growable text buffer.
	OwnedString string

	field struct {
		name string
		v    build.Value
	}
)

// MakeCStr copies s into a new NUL-terminated buffer.
func MakeCStr(s string) CStr {
	b := make([]byte, len(s)+1)
	copy(b, s)

	return CStr{p: &b[0]}
}

// CStrAt wraps NUL-terminated memory starting at p.
func CStrAt(p *byte) CStr {
	return CStr{p: p}
}

// Bytes returns the bytes before the terminator.
func (x CStr) Bytes() []byte {
	if x.p == nil {
		return nil
	}

	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(x.p), n)) != 0 {
		n++
	}

	return unsafe.Slice(x.p, n)
}

func (x CStr) Len() int { return len(x.Bytes()) }

func (x CStr) Lower(f *build.Func) build.Value {
	return cstr(f, x.Bytes())
}

func (CStr) JITType() tp.Type {
	return tp.NewPointer(tp.Of(tp.UByte))
}

func (x CString) Lower(f *build.Func) build.Value {
	return header(f, x.JITType(),
		field{"ptr", cstr(f, x)},
		field{"is_owned", Bool(f, true)},
	)
}

func (CString) JITType() tp.Type {
	return tp.NewStruct(
		tp.Field{Name: "ptr", Type: tp.NewPointer(tp.Of(tp.UByte))},
		tp.Field{Name: "is_owned", Type: tp.Of(tp.Bool)},
	)
}

func (x Str) Lower(f *build.Func) build.Value {
	ptr := bytesBuffer(f, []byte(x), 0)

	return header(f, x.JITType(),
		field{"ptr", ptr},
		field{"len", Of(f, uint(len(x)))},
	)
}

func (Str) JITType() tp.Type {
	return strType()
}

func (x OwnedString) Lower(f *build.Func) build.Value {
	ptr := bytesBuffer(f, []byte(x), 0)
	length := Of(f, uint(len(x)))

	return header(f, x.JITType(),
		field{"len", length},
		field{"cap", length},
		field{"ptr", ptr},
	)
}

func (OwnedString) JITType() tp.Type {
	return vecType(tp.Of(tp.UByte))
}

func strType() tp.Type {
	return tp.NewStruct(
		tp.Field{Name: "ptr", Type: tp.NewPointer(tp.Of(tp.UByte))},
		tp.Field{Name: "len", Type: tp.Of(tp.NUInt)},
	)
}

// cstr copies b into a stack buffer of len(b)+1 bytes with a terminating zero.
func cstr(f *build.Func, b []byte) build.Value {
	ptr := bytesBuffer(f, b, 1)

	f.StoreRelative(ptr, len(b), Of(f, byte(0)))

	return ptr
}

// bytesBuffer allocates len(b)+extra bytes of stack and stores b at its start.
func bytesBuffer(f *build.Func, b []byte, extra int) build.Value {
	return buffer(f, tp.Of(tp.UByte), len(b), extra, func(i int) build.Value {
		return Of(f, b[i])
	})
}

// buffer allocates stack space for n elements of type et plus extra bytes
// and stores elem(i) at offset i*size in order.
func buffer(f *build.Func, et tp.Type, n, extra int, elem func(i int) build.Value) build.Value {
	ptr := build.New(f, tp.NewPointer(et))
	size := et.Size()

	f.Store(ptr, f.Alloca(Of(f, uint(n*size+extra))))

	for i := 0; i < n; i++ {
		f.StoreRelative(ptr, i*size, elem(i))
	}

	return ptr
}

// header creates a value of struct type t and stores each field at its named offset.
func header(f *build.Func, t tp.Type, fields ...field) build.Value {
	val := build.New(f, t)

	for _, fl := range fields {
		f.StoreRelative(val, f.FieldOffset(t, fl.name), fl.v)
	}

	return val
}
