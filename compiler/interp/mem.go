package interp

import (
	"nikand.dev/go/heap"
	"tlog.app/go/errors"

	"github.com/slowlang/jit/compiler/set"
)

type (
	// memory is a virtual address space of stack segments.
	// Segment ids grow with their base address.
	memory struct {
		segs []segment
		live set.Bits[int]
		free heap.Heap[int]

		next  uint64
		used  int
		limit int
	}

	segment struct {
		base uint64
		b    []byte
	}
)

const (
	memBase  = 0x10000
	segAlign = 16
)

func newMemory(limit int) *memory {
	m := &memory{
		next:  memBase,
		limit: limit,
	}

	m.free.Less = func(d []int, i, j int) bool {
		return d[i] < d[j]
	}

	return m
}

// alloc returns the id of a live zeroed segment of n bytes.
// The lowest freed segment is reused if it's big enough.
func (m *memory) alloc(n int) (int, error) {
	if n < 0 || m.used+n > m.limit {
		return -1, errors.Wrap(ErrOutOfMemory, "alloc %d bytes, used %d of %d", n, m.used, m.limit)
	}

	m.used += n

	if m.free.Len() != 0 {
		id := m.free.Pop()
		s := &m.segs[id]

		if cap(s.b) >= n {
			s.b = s.b[:n]
			clear(s.b)

			m.live.Set(id)

			return id, nil
		}

		m.free.Push(id)
	}

	id := len(m.segs)

	m.segs = append(m.segs, segment{
		base: m.next,
		b:    make([]byte, n),
	})

	m.next += uint64(max(n, 1)+segAlign-1) / segAlign * segAlign
	m.live.Set(id)

	return id, nil
}

func (m *memory) release(id int) {
	if !m.live.IsSet(id) {
		return
	}

	m.live.Clear(id)
	m.used -= len(m.segs[id].b)
	m.free.Push(id)
}

// slice returns n bytes of live memory at addr.
func (m *memory) slice(addr uint64, n int) ([]byte, error) {
	i, j := 0, len(m.segs)

	for i < j {
		h := int(uint(i+j) >> 1)

		if m.segs[h].base <= addr {
			i = h + 1
		} else {
			j = h
		}
	}

	id := i - 1

	if id < 0 {
		return nil, errors.Wrap(ErrBadAddress, "%#x", addr)
	}

	s := &m.segs[id]
	off := addr - s.base

	if off+uint64(n) > uint64(len(s.b)) {
		return nil, errors.Wrap(ErrBadAddress, "%#x+%d out of segment %#x+%d", addr, n, s.base, len(s.b))
	}

	if !m.live.IsSet(id) {
		return nil, errors.Wrap(ErrBadAddress, "%#x: segment released", addr)
	}

	return s.b[off : off+uint64(n)], nil
}

func (m *memory) base(id int) uint64 {
	return m.segs[id].base
}
