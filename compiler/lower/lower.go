// Package lower converts host values into IR of a function under construction.
//
// Every host value family implements Lowerer, directly or through Of,
// which dispatches Go builtin types (scalars, string, slices, pointers, funcs)
// to the matching family.
//
// Pointers and function references are lowered by embedding the host address
// into the generated code. The referenced memory must outlive every invocation
// of the generated function. This is not checked.
package lower

import (
	"math"
	"reflect"
	"unsafe"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/jit/compiler/build"
	"github.com/slowlang/jit/compiler/tp"
)

type (
	// Lowerer is a host value that can be compiled into IR.
	// JITType must not depend on the receiver's contents:
	// it's called on the zero value to resolve the type statically.
	Lowerer interface {
		Lower(f *build.Func) build.Value
		JITType() tp.Type
	}
)

var ErrUnsupported = errors.New("unsupported host type")

var (
	registry tp.Registry

	lowererType = reflect.TypeOf((*Lowerer)(nil)).Elem()
)

// Of lowers x into f.
func Of(f *build.Func, x any) build.Value {
	switch x := x.(type) {
	case Lowerer:
		rv := reflect.ValueOf(x)

		if !lowerer(rv.Type()) {
			break
		}

		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			build.Abort(errors.Wrap(ErrUnsupported, "nil %v", rv.Type()))
		}

		return x.Lower(f)
	case bool:
		return Bool(f, x)
	case int:
		return scalar(f, TypeOf[int](), uint64(x))
	case uint:
		return scalar(f, TypeOf[uint](), uint64(x))
	case int8:
		return scalar(f, TypeOf[int8](), uint64(x))
	case uint8:
		return scalar(f, TypeOf[uint8](), uint64(x))
	case int16:
		return scalar(f, TypeOf[int16](), uint64(x))
	case uint16:
		return scalar(f, TypeOf[uint16](), uint64(x))
	case int32:
		return scalar(f, TypeOf[int32](), uint64(x))
	case uint32:
		return scalar(f, TypeOf[uint32](), uint64(x))
	case int64:
		return scalar(f, TypeOf[int64](), uint64(x))
	case uint64:
		return scalar(f, TypeOf[uint64](), x)
	case uintptr:
		return scalar(f, TypeOf[uintptr](), uint64(x))
	case float32:
		return scalar(f, TypeOf[float32](), uint64(math.Float32bits(x)))
	case float64:
		return scalar(f, TypeOf[float64](), math.Float64bits(x))
	case string:
		return Str(x).Lower(f)
	case unsafe.Pointer:
		return address(f, TypeOf[unsafe.Pointer](), uintptr(x))
	case nil:
		build.Abort(errors.Wrap(ErrUnsupported, "nil"))
	}

	return reflectOf(f, reflect.ValueOf(x))
}

// TypeOf returns the descriptor of host type T.
func TypeOf[T any]() tp.Type {
	return Type(reflect.TypeOf((*T)(nil)).Elem())
}

// Type returns the descriptor of host type rt.
// Descriptors are memoized process-wide.
func Type(rt reflect.Type) tp.Type {
	return registry.Resolve(rt, resolve)
}

func resolve(rt reflect.Type) tp.Type {
	if tlog.If("lower_types") {
		tlog.Printw("resolve type", "host", rt.String())
	}

	switch {
	case rt.Kind() == reflect.Interface:
		build.Abort(errors.Wrap(ErrUnsupported, "interface %v", rt))
	case lowerer(rt) && rt.Kind() == reflect.Pointer:
		return reflect.New(rt.Elem()).Interface().(Lowerer).JITType()
	case lowerer(rt):
		return reflect.Zero(rt).Interface().(Lowerer).JITType()
	case recursive(rt, nil):
		build.Abort(errors.Wrap(ErrUnsupported, "recursive type %v", rt))
	}

	switch rt.Kind() {
	case reflect.Bool:
		return tp.Of(tp.Bool)
	case reflect.Int:
		return tp.Of(tp.NInt)
	case reflect.Uint, reflect.Uintptr:
		return tp.Of(tp.NUInt)
	case reflect.Int8:
		return tp.Of(tp.SByte)
	case reflect.Uint8:
		return tp.Of(tp.UByte)
	case reflect.Int16:
		return tp.Of(tp.Short)
	case reflect.Uint16:
		return tp.Of(tp.UShort)
	case reflect.Int32:
		return tp.Of(tp.Int)
	case reflect.Uint32:
		return tp.Of(tp.UInt)
	case reflect.Int64:
		return tp.Of(tp.Long)
	case reflect.Uint64:
		return tp.Of(tp.ULong)
	case reflect.Float32:
		return tp.Of(tp.Float32)
	case reflect.Float64:
		return tp.Of(tp.Float64)
	case reflect.String:
		return strType()
	case reflect.UnsafePointer:
		return tp.NewPointer(tp.Of(tp.Void))
	case reflect.Pointer:
		return tp.NewPointer(Type(rt.Elem()))
	case reflect.Slice:
		return vecType(Type(rt.Elem()))
	case reflect.Func:
		return funcType(rt)
	case reflect.Struct:
		if rt.NumField() == 0 {
			return tp.Of(tp.Void)
		}
	}

	build.Abort(errors.Wrap(ErrUnsupported, "%v", rt))

	return nil
}

// lowerer reports whether rt is lowered by its own Lowerer methods.
// Pointers to value Lowerers are lowered as addresses.
func lowerer(rt reflect.Type) bool {
	if rt.Kind() == reflect.Interface || !rt.Implements(lowererType) {
		return false
	}

	return rt.Kind() != reflect.Pointer || !rt.Elem().Implements(lowererType)
}

// recursive reports whether rt refers to itself through pointers, slices or signatures.
func recursive(rt reflect.Type, path []reflect.Type) bool {
	if lowerer(rt) {
		return false
	}

	for _, p := range path {
		if p == rt {
			return true
		}
	}

	path = append(path, rt)

	switch rt.Kind() {
	case reflect.Pointer, reflect.Slice:
		return recursive(rt.Elem(), path)
	case reflect.Func:
		for i := 0; i < rt.NumIn(); i++ {
			if recursive(rt.In(i), path) {
				return true
			}
		}

		for i := 0; i < rt.NumOut(); i++ {
			if recursive(rt.Out(i), path) {
				return true
			}
		}
	}

	return false
}

func reflectOf(f *build.Func, rv reflect.Value) build.Value {
	rt := rv.Type()

	if tlog.If("lower") {
		tlog.Printw("lower", "host", rt.String(), "kind", rt.Kind().String())
	}

	switch rt.Kind() {
	case reflect.Bool:
		return Bool(f, rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return scalar(f, Type(rt), uint64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return scalar(f, Type(rt), rv.Uint())
	case reflect.Float32:
		return scalar(f, Type(rt), uint64(math.Float32bits(float32(rv.Float()))))
	case reflect.Float64:
		return scalar(f, Type(rt), math.Float64bits(rv.Float()))
	case reflect.String:
		return Str(rv.String()).Lower(f)
	case reflect.Pointer, reflect.UnsafePointer:
		return address(f, Type(rt), rv.Pointer())
	case reflect.Slice:
		return lowerSlice(f, rv)
	case reflect.Func:
		return funcRef(f, rv)
	case reflect.Struct:
		if rt.NumField() == 0 {
			return Unit{}.Lower(f)
		}
	}

	build.Abort(errors.Wrap(ErrUnsupported, "%v", rt))

	return build.Value{}
}
