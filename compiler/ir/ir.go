package ir

import (
	"github.com/slowlang/jit/compiler/tp"
)

type (
	// Expr identifies a value slot of a Func.
	// Exprs[id] is the instruction defining it, or Slot if it has none.
	Expr int

	Label int
	Cond  string

	Func struct {
		Name string
		Sig  *tp.Func

		In   []Expr
		Code []Expr

		// Pinned slots must never live only in a register across calls.
		Pinned []Expr

		Exprs []any
		EType []tp.Type
	}

	// Slot is storage without a defining instruction.
	Slot struct{}

	Param struct {
		N int
	}

	// Const holds the bit pattern of a scalar, pointer or function address.
	Const struct {
		Bits uint64
	}

	Dup struct {
		X Expr
	}

	Alloca struct {
		Size Expr
	}

	Store struct {
		Dst, Src Expr
	}

	StoreRel struct {
		Base Expr
		Off  int
		Src  Expr
	}

	LoadRel struct {
		Base Expr
		Off  int
	}

	Add struct {
		L, R Expr
	}

	Sub struct {
		L, R Expr
	}

	Mul struct {
		L, R Expr
	}

	Div struct {
		L, R Expr
	}

	Cmp struct {
		L, R Expr
		Cond Cond
	}

	Sqrt struct {
		X Expr
	}

	Convert struct {
		X Expr

		CheckOverflow bool
	}

	Call struct {
		Func Expr
		Args []Expr
	}

	L struct {
		Label Label
	}

	B struct {
		Label Label
	}

	BCond struct {
		Expr  Expr
		Label Label
	}

	Return struct {
		X Expr
	}
)

const (
	Nil Expr = -1
)

const (
	EQ Cond = "eq"
	NE Cond = "ne"
	LT Cond = "lt"
	LE Cond = "le"
	GT Cond = "gt"
	GE Cond = "ge"
)

// Type returns the type of the slot id.
func (f *Func) Type(id Expr) tp.Type {
	return f.EType[id]
}

// Labels maps each label to its position in Code.
func (f *Func) Labels() map[Label]int {
	m := make(map[Label]int)

	for i, id := range f.Code {
		if l, ok := f.Exprs[id].(L); ok {
			m[l.Label] = i
		}
	}

	return m
}
