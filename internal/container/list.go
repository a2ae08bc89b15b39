package container

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/retroenv/procmirror/internal/memory"
)

// nodes walks the next pointers from the head sentinel until the walk
// returns to it and returns the addresses of all payload nodes.
func (l List) nodes(r memory.Reader) ([]memory.Address, error) {
	if l.Head == 0 {
		return nil, invariantf("list without head sentinel")
	}
	if err := checkCount(l.Size); err != nil {
		return nil, err
	}

	head, err := memory.Read[listNode](r, l.Head)
	if err != nil {
		return nil, fmt.Errorf("reading list head: %w", err)
	}

	nodes := make([]memory.Address, 0, l.Size)
	next := head.Next
	for next != l.Head {
		if next == 0 {
			return nil, invariantf("list node %d has no successor", len(nodes))
		}
		if uint64(len(nodes)) >= l.Size {
			return nil, invariantf("list exceeds reported size %d without reaching the sentinel", l.Size)
		}
		nodes = append(nodes, next)

		node, err := memory.Read[listNode](r, next)
		if err != nil {
			return nil, fmt.Errorf("reading list node %d: %w", len(nodes)-1, err)
		}
		next = node.Next
	}
	return nodes, nil
}

// listPayloadOffset returns the offset of the payload T inside a list node.
func listPayloadOffset[T any]() int64 {
	return int64(alignUp(listNodeSize, alignOf[T]()))
}

// DecodeLinkedList decodes the payloads of a circular linked list in list
// order. The head sentinel is excluded.
func DecodeLinkedList[T any](r memory.Reader, l List) ([]T, error) {
	nodes, err := l.nodes(r)
	if err != nil {
		return nil, err
	}

	offset := listPayloadOffset[T]()
	items := make([]T, len(nodes))
	for i, node := range nodes {
		item, err := memory.Read[T](r, node.Offset(offset))
		if err != nil {
			return nil, fmt.Errorf("reading list payload %d: %w", i, err)
		}
		items[i] = item
	}
	return items, nil
}

// DecodeLinkedListParallel decodes the list like DecodeLinkedList but reads
// the payloads on multiple workers. The node addresses are collected first,
// every worker then writes into its own pre-sized result slots.
// A workers value below 1 uses the number of CPUs.
func DecodeLinkedListParallel[T any](r memory.Reader, l List, workers int) ([]T, error) {
	nodes, err := l.nodes(r)
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if workers > len(nodes) {
		workers = len(nodes)
	}

	offset := listPayloadOffset[T]()
	items := make([]T, len(nodes))
	errs := make([]error, len(nodes))

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; i < len(nodes); i += workers {
				items[i], errs[i] = memory.Read[T](r, nodes[i].Offset(offset))
			}
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("reading list payload %d: %w", i, err)
		}
	}
	return items, nil
}
