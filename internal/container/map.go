package container

import (
	"fmt"

	"github.com/retroenv/procmirror/internal/memory"
)

// DecodeOrderedMap decodes the entries of an ordered tree map using an
// explicit stack based in-order traversal. The existing key order of the
// foreign tree is kept. The payload of the nil sentinel is never read, an
// empty map returns an empty slice after reading only the sentinel header.
func DecodeOrderedMap[K, V any](r memory.Reader, m Map) ([]Pair[K, V], error) {
	if m.Head == 0 {
		return nil, invariantf("map without nil sentinel")
	}
	if err := checkCount(m.Size); err != nil {
		return nil, err
	}

	t := treeWalker[K, V]{
		r:     r,
		m:     m,
		nodes: map[memory.Address]treeNode{},
	}
	head, err := t.node(m.Head)
	if err != nil {
		return nil, fmt.Errorf("reading map sentinel: %w", err)
	}
	if head.IsNil == 0 {
		return nil, invariantf("map head %s is not a nil node", m.Head)
	}
	return t.walk(head.Parent)
}

type treeWalker[K, V any] struct {
	r     memory.Reader
	m     Map
	nodes map[memory.Address]treeNode // node headers read during this walk only
}

func (t *treeWalker[K, V]) node(addr memory.Address) (treeNode, error) {
	if n, ok := t.nodes[addr]; ok {
		return n, nil
	}
	n, err := memory.Read[treeNode](t.r, addr)
	if err != nil {
		return treeNode{}, err
	}
	t.nodes[addr] = n
	return n, nil
}

func (t *treeWalker[K, V]) isNil(addr memory.Address) (bool, error) {
	if addr == t.m.Head {
		return true, nil
	}
	if addr == 0 {
		return false, invariantf("tree node pointer is zero")
	}
	n, err := t.node(addr)
	if err != nil {
		return false, fmt.Errorf("reading tree node %s: %w", addr, err)
	}
	return n.IsNil != 0, nil
}

func (t *treeWalker[K, V]) walk(root memory.Address) ([]Pair[K, V], error) {
	limit := int(t.m.Size)
	result := make([]Pair[K, V], 0, limit)
	var stack []memory.Address

	current := root
	for {
		for {
			isNil, err := t.isNil(current)
			if err != nil {
				return nil, err
			}
			if isNil {
				break
			}
			if len(stack)+len(result) >= limit {
				return nil, invariantf("tree exceeds reported size %d", limit)
			}
			stack = append(stack, current)
			current = t.nodes[current].Left
		}

		if len(stack) == 0 {
			break
		}
		addr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		pair, err := t.pair(addr)
		if err != nil {
			return nil, err
		}
		result = append(result, pair)
		current = t.nodes[addr].Right
	}

	if len(result) != limit {
		return nil, invariantf("tree holds %d entries, reported size %d", len(result), limit)
	}
	return result, nil
}

func (t *treeWalker[K, V]) pair(addr memory.Address) (Pair[K, V], error) {
	var pair Pair[K, V]

	pairAlign := max(alignOf[K](), alignOf[V]())
	payload := alignUp(treeNodeSize, pairAlign)
	valueOffset := alignUp(memory.SizeOf[K](), alignOf[V]())
	size := valueOffset + memory.SizeOf[V]()

	data, err := t.r.ReadBytes(addr.Offset(int64(payload)), size)
	if err != nil {
		return pair, fmt.Errorf("reading tree node payload %s: %w", addr, err)
	}
	if pair.Key, err = memory.Decode[K](data); err != nil {
		return pair, err
	}
	if pair.Value, err = memory.Decode[V](data[valueOffset:]); err != nil {
		return pair, err
	}
	return pair, nil
}
