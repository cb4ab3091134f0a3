package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/jit/compiler/build"
	"github.com/slowlang/jit/compiler/format"
	"github.com/slowlang/jit/compiler/interp"
	"github.com/slowlang/jit/compiler/ir"
	"github.com/slowlang/jit/compiler/llvm"
	"github.com/slowlang/jit/compiler/lower"
	"github.com/slowlang/jit/compiler/tp"
)

func main() {
	logFlags := func() []*cli.Flag {
		return []*cli.Flag{
			cli.NewFlag("v", "", "verbosity topics (dump_func, llvm_dump, interp_trace, lower, lower_types)"),
		}
	}

	engineFlags := func() []*cli.Flag {
		return append(logFlags(),
			cli.NewFlag("mem-limit", interp.DefaultMemLimit, "interpreter stack memory limit in bytes"),
			cli.NewFlag("max-steps", interp.DefaultMaxSteps, "max instructions per call"),
		)
	}

	dumpCmd := &cli.Command{
		Name:        "dump",
		Description: "print built functions for the given strings",
		Action:      dumpAct,
		Args:        cli.Args{},
		Flags:       logFlags(),
	}

	llvmCmd := &cli.Command{
		Name:        "llvm",
		Description: "print built functions as llvm ir",
		Action:      llvmAct,
		Args:        cli.Args{},
		Flags:       logFlags(),
	}

	runCmd := &cli.Command{
		Name:        "run",
		Description: "compute integer square roots with a generated function",
		Action:      runAct,
		Args:        cli.Args{},
		Flags:       engineFlags(),
	}

	lenCmd := &cli.Command{
		Name:        "len",
		Description: "lower strings and read their length back from generated code",
		Action:      lenAct,
		Args:        cli.Args{},
		Flags:       engineFlags(),
	}

	app := &cli.Command{
		Name:        "jit",
		Description: "jit builds, dumps and runs functions with lowered host values",
		Commands: []*cli.Command{
			dumpCmd,
			llvmCmd,
			runCmd,
			lenCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func dumpAct(c *cli.Command) (err error) {
	ctx := rootContext(c)

	funcs, err := demoFuncs(ctx, c.Args)
	if err != nil {
		return err
	}

	for _, f := range funcs {
		fmt.Printf("%s\n", format.Func(nil, f))
	}

	return nil
}

func llvmAct(c *cli.Command) (err error) {
	ctx := rootContext(c)

	funcs, err := demoFuncs(ctx, c.Args)
	if err != nil {
		return err
	}

	m, err := llvm.Module(ctx, funcs...)
	if err != nil {
		return errors.Wrap(err, "llvm")
	}

	fmt.Printf("%s", m)

	return nil
}

func runAct(c *cli.Command) (err error) {
	ctx := rootContext(c)

	f, err := buildSqrt(ctx, build.NewContext())
	if err != nil {
		return errors.Wrap(err, "build")
	}

	e := engine(c)

	for _, a := range c.Args {
		x, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			return errors.Wrap(err, "parse %q", a)
		}

		r, err := interp.Call[uint](ctx, e, f, uint(x))
		if err != nil {
			return errors.Wrap(err, "sqrt %v", x)
		}

		fmt.Printf("isqrt(%d) = %d\n", x, r)
	}

	return nil
}

func lenAct(c *cli.Command) (err error) {
	ctx := rootContext(c)
	bc := build.NewContext()
	e := engine(c)

	for _, a := range c.Args {
		f, err := buildLen(ctx, bc, a)
		if err != nil {
			return errors.Wrap(err, "build %q", a)
		}

		r, err := interp.Call[uint](ctx, e, f)
		if err != nil {
			return errors.Wrap(err, "len %q", a)
		}

		fmt.Printf("len(%q) = %d\n", a, r)
	}

	return nil
}

func rootContext(c *cli.Command) context.Context {
	if v := c.String("v"); v != "" {
		tlog.SetVerbosity(v)
	}

	ctx := context.Background()

	return tlog.ContextWithSpan(ctx, tlog.Root())
}

func engine(c *cli.Command) *interp.Engine {
	return interp.New(interp.Options{
		MemLimit: c.Int("mem-limit"),
		MaxSteps: c.Int("max-steps"),
	})
}

func demoFuncs(ctx context.Context, args []string) (funcs []*ir.Func, err error) {
	bc := build.NewContext()

	f, err := buildSqrt(ctx, bc)
	if err != nil {
		return nil, errors.Wrap(err, "isqrt")
	}

	funcs = append(funcs, f)

	for _, a := range args {
		f, err = buildLen(ctx, bc, a)
		if err != nil {
			return nil, errors.Wrap(err, "len %q", a)
		}

		funcs = append(funcs, f)
	}

	return funcs, nil
}

// buildSqrt builds isqrt(x uint) uint.
func buildSqrt(ctx context.Context, bc *build.Context) (*ir.Func, error) {
	sig := lower.TypeOf[func(uint) uint]().(*tp.Func)

	return bc.BuildFunc(ctx, "isqrt", sig, func(f *build.Func) {
		s := f.Sqrt(f.Param(0))
		r := f.Convert(s, lower.TypeOf[uint](), false)

		f.Return(r)
	})
}

// buildLen builds a function returning the len field of an owned copy of s.
func buildLen(ctx context.Context, bc *build.Context, s string) (*ir.Func, error) {
	sig := lower.TypeOf[func() uint]().(*tp.Func)
	name := fmt.Sprintf("len%d", bc.Built())

	return bc.BuildFunc(ctx, name, sig, func(f *build.Func) {
		v := lower.Of(f, lower.OwnedString(s))
		t := v.Type()

		n := f.LoadRelative(v, f.FieldOffset(t, "len"), lower.TypeOf[uint]())

		f.Return(n)
	})
}
