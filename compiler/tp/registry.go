package tp

import (
	"reflect"
	"sync"
)

type (
	// Registry memoizes descriptors built for host types.
	// It's safe for concurrent use.
	Registry struct {
		m sync.Map // reflect.Type -> Type
	}
)

// Resolve returns the descriptor memoized for rt, calling build on the first request.
// build may call Resolve recursively for component types.
// Concurrent first requests may both build; the first stored result wins.
func (r *Registry) Resolve(rt reflect.Type, build func(reflect.Type) Type) Type {
	if t, ok := r.m.Load(rt); ok {
		return t.(Type)
	}

	t := build(rt)

	act, _ := r.m.LoadOrStore(rt, t)

	return act.(Type)
}

func (r *Registry) Len() (n int) {
	r.m.Range(func(_, _ any) bool {
		n++
		return true
	})

	return n
}
