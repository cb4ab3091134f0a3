package build

import (
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/loc"

	"github.com/slowlang/jit/compiler/tp"
)

type (
	// ContractError reports a caller contract violation.
	// It's raised with panic and aborts the construction session.
	ContractError struct {
		Err error
		PC  loc.PC
	}
)

var (
	ErrZeroValue     = errors.New("zero value")
	ErrStaleValue    = errors.New("value used after its session ended")
	ErrForeignValue  = errors.New("value belongs to another function")
	ErrBadDescriptor = errors.New("bad type descriptor")
	ErrNoField       = tp.ErrNoField
	ErrBadOperand    = errors.New("bad operand")
	ErrMissingReturn = errors.New("missing return")
)

func (e *ContractError) Error() string {
	if e.PC == 0 {
		return e.Err.Error()
	}

	name, file, line := e.PC.NameFileLine()

	return fmt.Sprintf("%v (at %s %s:%d)", e.Err, name, file, line)
}

func (e *ContractError) Unwrap() error { return e.Err }

func abort(err error) {
	panic(&ContractError{
		Err: err,
		PC:  loc.Caller(2),
	})
}

func abortf(base error, format string, args ...any) {
	panic(&ContractError{
		Err: errors.Wrap(base, format, args...),
		PC:  loc.Caller(2),
	})
}

// Abort aborts the current session reporting err as a contract violation.
func Abort(err error) {
	panic(&ContractError{
		Err: err,
		PC:  loc.Caller(1),
	})
}
