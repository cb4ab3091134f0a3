package tp

import (
	"fmt"
	"strings"

	"tlog.app/go/errors"
)

type (
	Type interface {
		Kind() Kind
		Size() int
		Align() int
	}

	Kind uint8

	Prim struct {
		K Kind
	}

	Ptr struct {
		X Type
	}

	Struct struct {
		Fields []StructField

		size  int
		align int
	}

	StructField struct {
		Name   string
		Index  int
		Offset int
		Type   Type
	}

	// Field is an input to NewStruct.
	Field struct {
		Name string
		Type Type
	}

	Func struct {
		In  []Type
		Out Type
	}
)

const (
	Void Kind = iota
	SByte
	UByte
	Short
	UShort
	Int
	UInt
	NInt
	NUInt
	Long
	ULong
	Float32
	Float64
	Bool
	Char
	Pointer
	StructKind
	Signature

	numKinds
)

var ErrNoField = errors.New("no such field")

var kindInfo = [numKinds]struct {
	name string
	size int
}{
	Void:       {"void", 0},
	SByte:      {"sbyte", 1},
	UByte:      {"ubyte", 1},
	Short:      {"short", 2},
	UShort:     {"ushort", 2},
	Int:        {"int", 4},
	UInt:       {"uint", 4},
	NInt:       {"nint", 8},
	NUInt:      {"nuint", 8},
	Long:       {"long", 8},
	ULong:      {"ulong", 8},
	Float32:    {"float32", 4},
	Float64:    {"float64", 8},
	Bool:       {"bool", 1},
	Char:       {"char", 4},
	Pointer:    {"ptr", 8},
	StructKind: {"struct", 0},
	Signature:  {"signature", 8},
}

// prims is the process-wide primitive table. Entries are never modified.
var prims = func() (p [Pointer]Prim) {
	for k := range p {
		p[k] = Prim{K: Kind(k)}
	}

	return p
}()

// Of returns the shared primitive descriptor for k.
func Of(k Kind) Type {
	if k >= Pointer {
		panic(k)
	}

	return &prims[k]
}

func (k Kind) String() string {
	if k >= numKinds {
		return fmt.Sprintf("kind(%d)", int(k))
	}

	return kindInfo[k].name
}

func (k Kind) IsInt() bool {
	return k >= SByte && k <= ULong || k == Bool || k == Char
}

func (k Kind) IsFloat() bool {
	return k == Float32 || k == Float64
}

func (k Kind) IsSigned() bool {
	switch k {
	case SByte, Short, Int, NInt, Long, Char, Float32, Float64:
		return true
	}

	return false
}

func (x *Prim) Kind() Kind     { return x.K }
func (x *Prim) Size() int      { return kindInfo[x.K].size }
func (x *Prim) Align() int     { return max(x.Size(), 1) }
func (x *Prim) String() string { return x.K.String() }

func (x *Ptr) Kind() Kind { return Pointer }
func (x *Ptr) Size() int  { return 8 }
func (x *Ptr) Align() int { return 8 }

func (x *Ptr) String() string {
	return "*" + String(x.X)
}

func NewPointer(x Type) *Ptr {
	return &Ptr{X: x}
}

// NewStruct lays out fields in order, each at its natural alignment.
func NewStruct(fields ...Field) *Struct {
	s := &Struct{
		Fields: make([]StructField, len(fields)),
		align:  1,
	}

	off := 0

	for i, f := range fields {
		a := f.Type.Align()
		off = alignUp(off, a)

		s.Fields[i] = StructField{
			Name:   f.Name,
			Index:  i,
			Offset: off,
			Type:   f.Type,
		}

		off += f.Type.Size()
		s.align = max(s.align, a)
	}

	s.size = alignUp(off, s.align)

	return s
}

func (x *Struct) Kind() Kind { return StructKind }
func (x *Struct) Size() int  { return x.size }

func (x *Struct) Align() int {
	if x.align == 0 {
		return 1
	}

	return x.align
}

// FindName returns the field called name.
func (x *Struct) FindName(name string) (StructField, error) {
	for _, f := range x.Fields {
		if f.Name == name {
			return f, nil
		}
	}

	return StructField{}, errors.Wrap(ErrNoField, "%q", name)
}

func (x *Struct) String() string {
	var b strings.Builder

	b.WriteString("struct{")

	for i, f := range x.Fields {
		if i != 0 {
			b.WriteString(", ")
		}

		fmt.Fprintf(&b, "%s %s", f.Name, String(f.Type))
	}

	b.WriteString("}")

	return b.String()
}

func (x *Func) Kind() Kind { return Signature }
func (x *Func) Size() int  { return 8 }
func (x *Func) Align() int { return 8 }

func (x *Func) String() string {
	var b strings.Builder

	b.WriteString("func(")

	for i, t := range x.In {
		if i != 0 {
			b.WriteString(", ")
		}

		b.WriteString(String(t))
	}

	b.WriteString(") ")
	b.WriteString(String(x.Out))

	return b.String()
}

func String(t Type) string {
	if t == nil {
		return "<nil>"
	}

	if s, ok := t.(fmt.Stringer); ok {
		return s.String()
	}

	return t.Kind().String()
}

// Equal reports whether a and b describe the same layout.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}

	if a == b {
		return true
	}

	if a.Kind() != b.Kind() {
		return false
	}

	switch a := a.(type) {
	case *Prim:
		return true
	case *Ptr:
		return Equal(a.X, b.(*Ptr).X)
	case *Struct:
		b := b.(*Struct)

		if len(a.Fields) != len(b.Fields) || a.size != b.size {
			return false
		}

		for i, f := range a.Fields {
			g := b.Fields[i]

			if f.Name != g.Name || f.Offset != g.Offset || !Equal(f.Type, g.Type) {
				return false
			}
		}

		return true
	case *Func:
		b := b.(*Func)

		if len(a.In) != len(b.In) || !Equal(a.Out, b.Out) {
			return false
		}

		for i := range a.In {
			if !Equal(a.In[i], b.In[i]) {
				return false
			}
		}

		return true
	default:
		return false
	}
}

func alignUp(x, a int) int {
	return (x + a - 1) / a * a
}
