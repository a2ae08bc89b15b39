package container

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/retroenv/procmirror/internal/memory"
	"golang.org/x/text/encoding/unicode"
)

const (
	// InlineWideCapacity is the largest capacity of a wide string whose
	// characters are stored in the inline reserved bytes.
	InlineWideCapacity = 8
	// InlineCapacity is the largest capacity of a narrow string stored inline.
	InlineCapacity = 15

	// MaxStringLength is the upper bound of characters a string decode accepts.
	MaxStringLength = 4096
)

// WideString is the foreign layout of a UTF-16 string header. Reserved
// holds either the inline characters or the heap buffer pointer.
type WideString struct {
	Reserved [16]byte
	Length   uint64
	Capacity uint64
}

// String is the foreign layout of a narrow string header.
type String struct {
	Reserved [16]byte
	Length   uint64
	Capacity uint64
}

// Inline returns whether the characters are stored in the reserved bytes.
func (s WideString) Inline() bool {
	return s.Capacity <= InlineWideCapacity
}

// Inline returns whether the characters are stored in the reserved bytes.
func (s String) Inline() bool {
	return s.Capacity <= InlineCapacity
}

// DecodeWideString decodes a UTF-16 little endian string. Strings with a
// capacity up to InlineWideCapacity are read from the reserved bytes,
// larger ones from the heap buffer, bounded by the length field.
func DecodeWideString(r memory.Reader, s WideString) (string, error) {
	if s.Length > s.Capacity {
		return "", invariantf("wide string length %d exceeds capacity %d", s.Length, s.Capacity)
	}
	if s.Length > MaxStringLength {
		return "", invariantf("implausible wide string length %d", s.Length)
	}

	var raw []byte
	if s.Inline() {
		length := min(int(s.Length), len(s.Reserved)/2)
		raw = s.Reserved[:length*2]
	} else {
		ptr := memory.Address(binary.LittleEndian.Uint64(s.Reserved[:]))
		if s.Length == 0 {
			return "", nil
		}
		var err error
		raw, err = r.ReadBytes(ptr, int(s.Length)*2)
		if err != nil {
			return "", fmt.Errorf("reading wide string buffer: %w", err)
		}
	}

	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decoding wide string: %w", err)
	}
	return strings.TrimRight(string(decoded), "\x00"), nil
}

// ReadWideString reads the wide string header at the address and decodes it.
func ReadWideString(r memory.Reader, addr memory.Address) (string, error) {
	s, err := memory.Read[WideString](r, addr)
	if err != nil {
		return "", fmt.Errorf("reading wide string header: %w", err)
	}
	return DecodeWideString(r, s)
}

// DecodeString decodes a narrow string using the same inline rules as
// DecodeWideString with a threshold of InlineCapacity.
func DecodeString(r memory.Reader, s String) (string, error) {
	if s.Length > s.Capacity {
		return "", invariantf("string length %d exceeds capacity %d", s.Length, s.Capacity)
	}
	if s.Length > MaxStringLength {
		return "", invariantf("implausible string length %d", s.Length)
	}

	if s.Inline() {
		length := min(int(s.Length), len(s.Reserved))
		return string(s.Reserved[:length]), nil
	}
	if s.Length == 0 {
		return "", nil
	}

	ptr := memory.Address(binary.LittleEndian.Uint64(s.Reserved[:]))
	raw, err := r.ReadBytes(ptr, int(s.Length))
	if err != nil {
		return "", fmt.Errorf("reading string buffer: %w", err)
	}
	return string(raw), nil
}

// ReadString reads the narrow string header at the address and decodes it.
func ReadString(r memory.Reader, addr memory.Address) (string, error) {
	s, err := memory.Read[String](r, addr)
	if err != nil {
		return "", fmt.Errorf("reading string header: %w", err)
	}
	return DecodeString(r, s)
}
