// Package container decodes foreign standard library containers from raw
// memory. Every call reads fresh bytes, results are returned only when the
// complete decode succeeded.
package container

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/retroenv/procmirror/internal/memory"
)

// MaxElements is the upper bound of elements a single decode accepts.
// Larger counts indicate a stale or incompatible layout.
var MaxElements = 100_000

// ErrInvariant is returned when foreign data violates a container invariant.
var ErrInvariant = errors.New("container invariant violated")

// Vector is the foreign layout of a dynamic array header.
type Vector struct {
	First memory.Address
	Last  memory.Address
	End   memory.Address
}

// List is the foreign layout of a doubly linked list header. Head points
// to a sentinel node that carries no payload.
type List struct {
	Head memory.Address
	Size uint64
}

// listNode is the foreign layout of a list node, the payload follows it.
type listNode struct {
	Next memory.Address
	Prev memory.Address
}

// Map is the foreign layout of an ordered tree map header. Head points to
// the nil sentinel node, its parent is the root of the tree.
type Map struct {
	Head memory.Address
	Size uint64
}

// treeNode is the foreign layout of a balanced tree node, the key value
// pair follows it at the next offset aligned for the pair.
type treeNode struct {
	Left   memory.Address
	Parent memory.Address
	Right  memory.Address
	Color  uint8
	IsNil  uint8
}

var (
	listNodeSize = memory.SizeOf[listNode]()
	treeNodeSize = memory.SizeOf[treeNode]()
)

// Pair is a decoded key value entry of an ordered map.
type Pair[K, V any] struct {
	Key   K
	Value V
}

func invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

func checkCount(count uint64) error {
	if count > uint64(MaxElements) {
		return invariantf("implausible element count %d", count)
	}
	return nil
}

// alignOf returns the foreign alignment of T, capped at pointer size.
func alignOf[T any]() int {
	align := reflect.TypeOf((*T)(nil)).Elem().Align()
	if align > memory.PointerSize {
		return memory.PointerSize
	}
	return align
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}
