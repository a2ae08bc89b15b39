package memory

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// PointerSize is the size of a foreign pointer in bytes.
const PointerSize = 8

// SizeOf returns the foreign size of the fixed layout type T.
// Blank padding fields are included, it returns -1 for types without a fixed size.
func SizeOf[T any]() int {
	var v T
	return binary.Size(&v)
}

// Decode maps the little endian bytes onto the fixed layout type T.
func Decode[T any](data []byte) (T, error) {
	var v T
	size := binary.Size(&v)
	if size < 0 {
		return v, fmt.Errorf("type %T has no fixed size", v)
	}
	if len(data) < size {
		return v, fmt.Errorf("decoding %T: need %d bytes, got %d", v, size, len(data))
	}
	if err := binary.Read(bytes.NewReader(data[:size]), binary.LittleEndian, &v); err != nil {
		return v, fmt.Errorf("decoding %T: %w", v, err)
	}
	return v, nil
}

// Read reads a value of the fixed layout type T from the address.
func Read[T any](r Reader, addr Address) (T, error) {
	var v T
	if addr == 0 {
		return v, ErrAddressZero
	}
	size := binary.Size(&v)
	if size < 0 {
		return v, fmt.Errorf("type %T has no fixed size", v)
	}
	data, err := r.ReadBytes(addr, size)
	if err != nil {
		return v, err
	}
	return Decode[T](data)
}

// ReadArray reads count consecutive values of the fixed layout type T.
func ReadArray[T any](r Reader, addr Address, count int) ([]T, error) {
	if count == 0 {
		return []T{}, nil
	}
	if count < 0 {
		return nil, fmt.Errorf("invalid element count %d", count)
	}
	if addr == 0 {
		return nil, ErrAddressZero
	}
	size := SizeOf[T]()
	if size <= 0 {
		var v T
		return nil, fmt.Errorf("type %T has no fixed size", v)
	}

	data, err := r.ReadBytes(addr, size*count)
	if err != nil {
		return nil, err
	}

	result := make([]T, count)
	for i := range result {
		v, err := Decode[T](data[i*size:])
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}
