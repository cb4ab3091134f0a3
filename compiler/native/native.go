// Package native keeps host functions whose entry addresses were embedded into generated code.
package native

import (
	"reflect"
	"sync"
)

var funcs sync.Map // uintptr -> reflect.Value

// Register records fn under its entry address and returns the address.
// Closures sharing code share an address; the last registration wins.
func Register(fn reflect.Value) uintptr {
	if fn.Kind() != reflect.Func || fn.IsNil() {
		panic(fn)
	}

	addr := fn.Pointer()

	funcs.Store(addr, fn)

	return addr
}

func Lookup(addr uintptr) (reflect.Value, bool) {
	fn, ok := funcs.Load(addr)
	if !ok {
		return reflect.Value{}, false
	}

	return fn.(reflect.Value), true
}
