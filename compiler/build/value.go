package build

import (
	"github.com/slowlang/jit/compiler/format"
	"github.com/slowlang/jit/compiler/ir"
	"github.com/slowlang/jit/compiler/tp"
)

// Value is a storage location inside a function under construction:
// a constant, a temporary result or a local variable.
// It is an index into the arena of the session that created it
// and is valid only until that session ends.
type Value struct {
	f   *Func
	id  ir.Expr
	gen uint32
}

// New creates a value of type t in the current block of f.
// The value starts as a block-local temporary.
// It becomes function-wide once it is referenced from another block.
func New(f *Func, t tp.Type) Value {
	f.alive()
	f.checkType(t)

	return f.add(ir.Slot{}, t)
}

func (v Value) ID() ir.Expr { return v.id }

func (v Value) Type() tp.Type {
	v.f.check(v)

	return v.f.f.EType[v.id]
}

// Func returns the session which made the value.
func (v Value) Func() *Func {
	v.f.check(v)

	return v.f
}

// IsTemp reports whether the value's scope is a single block.
func (v Value) IsTemp() bool {
	v.f.check(v)

	return v.f.temp.IsSet(v.id)
}

func (v Value) IsAddressable() bool {
	v.f.check(v)

	return v.f.pinned.IsSet(v.id)
}

// SetAddressable marks the value so that it is never kept only in a register across a call.
// Required before taking the value's address.
func (v Value) SetAddressable() {
	v.f.check(v)

	v.f.pinned.Set(v.id)
}

// Clone emits an instruction copying v into a new temporary of the same type.
func (v Value) Clone() Value {
	return v.Func().Dup(v)
}

func (v Value) String() string {
	if v.f == nil {
		return "<zero value>"
	}

	if v.f.f == nil || v.gen != v.f.gen {
		return "<stale value>"
	}

	return string(format.Insn(nil, v.f.f, v.id))
}
