// Package interp executes built functions.
// It stands in for a native code generator: generated code runs against
// a virtual address space of stack segments so embedded host addresses
// can't be dereferenced, only called when they refer to registered functions.
package interp

import (
	"context"
	"encoding/binary"
	"math"
	"reflect"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/jit/compiler/ir"
	"github.com/slowlang/jit/compiler/tp"
)

type (
	Options struct {
		// MemLimit is the max number of stack bytes live at once.
		MemLimit int
		// MaxSteps is the max number of instructions executed by one Call.
		MaxSteps int
	}

	// Engine runs functions. It's not safe for concurrent use.
	Engine struct {
		Options

		mem    *memory
		labels map[*ir.Func]map[ir.Label]int
	}
)

const (
	DefaultMemLimit = 64 << 20
	DefaultMaxSteps = 1 << 24
)

var (
	ErrBadAddress  = errors.New("bad address")
	ErrOutOfMemory = errors.New("out of memory")
	ErrOverflow    = errors.New("overflow")
	ErrDivByZero   = errors.New("division by zero")
	ErrStepLimit   = errors.New("step limit exceeded")
	ErrBadCall     = errors.New("bad call")
	ErrBadProgram  = errors.New("bad program")
)

func New(opts Options) *Engine {
	if opts.MemLimit <= 0 {
		opts.MemLimit = DefaultMemLimit
	}

	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}

	return &Engine{
		Options: opts,
		mem:     newMemory(opts.MemLimit),
		labels:  make(map[*ir.Func]map[ir.Label]int),
	}
}

// Call runs f with host arguments args and returns the raw result bytes.
func (e *Engine) Call(ctx context.Context, f *ir.Func, args ...any) (res []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "interp: call", "name", f.Name, "args", len(args))
	defer tr.Finish("err", &err)

	if f.Sig == nil || len(args) != len(f.Sig.In) {
		return nil, errors.Wrap(ErrBadCall, "%v: %d args for %d params", f.Name, len(args), len(f.In))
	}

	in := make([][]byte, len(args))

	for i, a := range args {
		in[i] = make([]byte, f.Sig.In[i].Size())

		err = encode(in[i], reflect.ValueOf(a))
		if err != nil {
			return nil, errors.Wrap(err, "arg %d", i)
		}
	}

	return e.run(ctx, f, in)
}

// Call runs f and converts the result to R.
func Call[R any](ctx context.Context, e *Engine, f *ir.Func, args ...any) (r R, err error) {
	b, err := e.Call(ctx, f, args...)
	if err != nil {
		return r, err
	}

	rv := reflect.ValueOf(&r).Elem()

	err = decode(rv, b)
	if err != nil {
		return r, errors.Wrap(err, "result")
	}

	return r, nil
}

func encode(b []byte, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			putU(b, 1)
		} else {
			putU(b, 0)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		putU(b, uint64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		putU(b, rv.Uint())
	case reflect.Float32:
		putU(b, uint64(math.Float32bits(float32(rv.Float()))))
	case reflect.Float64:
		putU(b, math.Float64bits(rv.Float()))
	case reflect.Struct:
		if rv.NumField() != 0 {
			return errors.Wrap(ErrBadCall, "encode %v", rv.Type())
		}
	default:
		return errors.Wrap(ErrBadCall, "encode %v", rv.Kind())
	}

	return nil
}

func decode(rv reflect.Value, b []byte) error {
	u := getU(b)

	switch rv.Kind() {
	case reflect.Bool:
		rv.SetBool(u != 0)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		rv.SetInt(sext(u, len(b)))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		rv.SetUint(u)
	case reflect.Float32:
		rv.SetFloat(float64(math.Float32frombits(uint32(u))))
	case reflect.Float64:
		rv.SetFloat(math.Float64frombits(u))
	case reflect.Struct:
		if rv.NumField() != 0 {
			return errors.Wrap(ErrBadCall, "decode %v", rv.Type())
		}
	default:
		return errors.Wrap(ErrBadCall, "decode %v", rv.Kind())
	}

	return nil
}

func getU(b []byte) uint64 {
	var x [8]byte
	copy(x[:], b)

	return binary.LittleEndian.Uint64(x[:])
}

func putU(b []byte, v uint64) {
	var x [8]byte
	binary.LittleEndian.PutUint64(x[:], v)

	copy(b, x[:])
}

// sext sign extends the low size bytes of u.
func sext(u uint64, size int) int64 {
	if size <= 0 || size >= 8 {
		return int64(u)
	}

	sh := 64 - 8*size

	return int64(u<<sh) >> sh
}

// getI reads b as a value of kind k widened to 64 bits.
func getI(k tp.Kind, b []byte) uint64 {
	u := getU(b)

	if k.IsSigned() {
		return uint64(sext(u, len(b)))
	}

	return u
}

func getF(k tp.Kind, b []byte) float64 {
	if k == tp.Float32 {
		return float64(math.Float32frombits(uint32(getU(b))))
	}

	return math.Float64frombits(getU(b))
}

func putF(k tp.Kind, b []byte, v float64) {
	if k == tp.Float32 {
		putU(b, uint64(math.Float32bits(float32(v))))
		return
	}

	putU(b, math.Float64bits(v))
}
