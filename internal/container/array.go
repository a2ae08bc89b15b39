package container

import (
	"fmt"

	"github.com/retroenv/procmirror/internal/memory"
)

// Len returns the element count of the vector for the element size.
func (v Vector) Len(elementSize int) (int, error) {
	if elementSize <= 0 {
		return 0, fmt.Errorf("invalid element size %d", elementSize)
	}
	if v.First == v.Last {
		return 0, nil
	}
	if v.First == 0 || v.Last < v.First {
		return 0, invariantf("vector range %s-%s", v.First, v.Last)
	}
	if v.End != 0 && v.End < v.Last {
		return 0, invariantf("vector capacity end %s before last %s", v.End, v.Last)
	}

	span := uint64(v.Last - v.First)
	if span%uint64(elementSize) != 0 {
		return 0, invariantf("vector span %d not a multiple of element size %d", span, elementSize)
	}
	count := span / uint64(elementSize)
	if err := checkCount(count); err != nil {
		return 0, err
	}
	return int(count), nil
}

// DecodeArray decodes the elements of a dynamic array of fixed layout type T.
// An empty array (first == last) returns an empty slice without reading.
func DecodeArray[T any](r memory.Reader, v Vector) ([]T, error) {
	count, err := v.Len(memory.SizeOf[T]())
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []T{}, nil
	}

	items, err := memory.ReadArray[T](r, v.First, count)
	if err != nil {
		return nil, fmt.Errorf("reading %d vector elements: %w", count, err)
	}
	return items, nil
}

// ReadArray reads the array header at the address and decodes its elements.
func ReadArray[T any](r memory.Reader, addr memory.Address) ([]T, error) {
	v, err := memory.Read[Vector](r, addr)
	if err != nil {
		return nil, fmt.Errorf("reading vector header: %w", err)
	}
	return DecodeArray[T](r, v)
}
