// Package memtest builds synthetic foreign address spaces for tests.
package memtest

import (
	"bytes"
	"encoding/binary"
	"testing"
	"unicode/utf16"

	"github.com/retroenv/procmirror/internal/container"
	"github.com/retroenv/procmirror/internal/memory"
	"github.com/retroenv/retrogolib/assert"
)

// Space allocates foreign objects in a memory buffer.
type Space struct {
	t    *testing.T
	Buf  *memory.Buffer
	next memory.Address
}

// New returns an empty space.
func New(t *testing.T) *Space {
	t.Helper()
	return &Space{
		t:    t,
		Buf:  memory.NewBuffer(),
		next: 0x10000,
	}
}

// Alloc maps size zero bytes and returns their address. Allocations are
// separated by unmapped gaps.
func (s *Space) Alloc(size int) memory.Address {
	s.t.Helper()
	addr := s.next
	assert.NoError(s.t, s.Buf.Map(addr, make([]byte, size)))
	s.next += memory.Address((size + 0x1f) &^ 0xf)
	return addr
}

// Put encodes v at the address.
func (s *Space) Put(addr memory.Address, v any) {
	s.t.Helper()
	var b bytes.Buffer
	assert.NoError(s.t, binary.Write(&b, binary.LittleEndian, v))
	assert.NoError(s.t, s.Buf.Write(addr, b.Bytes()))
}

// Store allocates v and returns its address.
func (s *Space) Store(v any) memory.Address {
	s.t.Helper()
	addr := s.Alloc(binary.Size(v))
	s.Put(addr, v)
	return addr
}

// Array stores the elements and returns the vector header describing them.
func (s *Space) Array(elements any) container.Vector {
	s.t.Helper()
	size := binary.Size(elements)
	if size == 0 {
		first := s.Alloc(8)
		return container.Vector{First: first, Last: first, End: first}
	}
	first := s.Store(elements)
	last := first.Offset(int64(size))
	return container.Vector{First: first, Last: last, End: last}
}

// WideString returns a wide string header, texts longer than the inline
// capacity are stored in a heap buffer.
func (s *Space) WideString(text string) container.WideString {
	s.t.Helper()
	units := utf16.Encode([]rune(text))
	data := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(data[i*2:], u)
	}

	header := container.WideString{
		Length:   uint64(len(units)),
		Capacity: max(uint64(len(units)), container.InlineWideCapacity),
	}
	if header.Inline() {
		copy(header.Reserved[:], data)
		return header
	}
	buffer := s.Alloc(len(data))
	assert.NoError(s.t, s.Buf.Write(buffer, data))
	binary.LittleEndian.PutUint64(header.Reserved[:], uint64(buffer))
	return header
}

// NarrowString returns a narrow string header.
func (s *Space) NarrowString(text string) container.String {
	s.t.Helper()
	header := container.String{
		Length:   uint64(len(text)),
		Capacity: max(uint64(len(text)), container.InlineCapacity),
	}
	if header.Inline() {
		copy(header.Reserved[:], text)
		return header
	}
	buffer := s.Alloc(len(text))
	assert.NoError(s.t, s.Buf.Write(buffer, []byte(text)))
	binary.LittleEndian.PutUint64(header.Reserved[:], uint64(buffer))
	return header
}

type treeNode struct {
	Left   memory.Address
	Parent memory.Address
	Right  memory.Address
	Color  uint8
	IsNil  uint8
	_      [6]byte
}

// Tree stores an ordered map of 8 byte aligned keys and values. The keys
// have to be passed in ascending order, the nodes form a right leaning chain.
func Tree[K, V any](s *Space, keys []K, values []V) container.Map {
	s.t.Helper()
	assert.Equal(s.t, len(keys), len(values))

	var k K
	keySize := (binary.Size(&k) + 7) &^ 7
	var v V
	nodeSize := binary.Size(treeNode{}) + keySize + binary.Size(&v)

	head := s.Alloc(nodeSize)
	nodes := make([]memory.Address, len(keys))
	for i := range keys {
		nodes[i] = s.Alloc(nodeSize)
	}

	link := func(i int) memory.Address {
		if i < 0 || i >= len(nodes) {
			return head
		}
		return nodes[i]
	}

	s.Put(head, treeNode{Left: link(0), Parent: link(0), Right: link(len(nodes) - 1), IsNil: 1})
	for i, node := range nodes {
		s.Put(node, treeNode{Left: head, Parent: link(i - 1), Right: link(i + 1)})
		s.Put(node.Offset(32), keys[i])
		s.Put(node.Offset(int64(32+keySize)), values[i])
	}
	return container.Map{Head: head, Size: uint64(len(keys))}
}

// List stores a circular linked list of 8 byte aligned payloads behind a
// head sentinel.
func List[T any](s *Space, items []T) container.List {
	s.t.Helper()
	var v T
	nodeSize := 16 + binary.Size(&v)

	head := s.Alloc(nodeSize)
	nodes := []memory.Address{head}
	for range items {
		nodes = append(nodes, s.Alloc(nodeSize))
	}

	for i, node := range nodes {
		next := nodes[(i+1)%len(nodes)]
		prev := nodes[(i+len(nodes)-1)%len(nodes)]
		s.Put(node, [2]memory.Address{next, prev})
	}
	for i, item := range items {
		s.Put(nodes[i+1].Offset(16), item)
	}
	return container.List{Head: head, Size: uint64(len(items))}
}
