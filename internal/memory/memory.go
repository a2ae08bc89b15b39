// Package memory provides read-only access to the address space of a foreign process.
package memory

import (
	"errors"
	"fmt"
)

// Address is a pointer sized integer in the foreign address space.
// The zero value marks an unbound or invalid address.
type Address uint64

// String returns the address in hex notation.
func (a Address) String() string {
	return fmt.Sprintf("0x%X", uint64(a))
}

// Offset returns the address moved by the given signed byte offset.
func (a Address) Offset(offset int64) Address {
	return Address(int64(a) + offset)
}

// Reader reads raw bytes from a foreign address space.
// Implementations must not cache data between calls.
type Reader interface {
	ReadBytes(addr Address, length int) ([]byte, error)
}

var (
	// ErrAddressZero is returned for reads from the zero address.
	ErrAddressZero = errors.New("address is zero")
	// ErrHandleClosed is returned for reads on a released process handle.
	ErrHandleClosed = errors.New("process handle closed")
	// ErrReadFault matches every ReadFault using errors.Is.
	ErrReadFault = errors.New("read fault")
	// ErrUnsupportedPlatform is returned when no process backend exists for the OS.
	ErrUnsupportedPlatform = errors.New("process access not supported on this platform")
	// ErrRegionOverlap is returned when mapping overlapping buffer regions.
	ErrRegionOverlap = errors.New("memory region overlap")
	// ErrModuleNotFound is returned when a named module is not loaded in the process.
	ErrModuleNotFound = errors.New("module not found")
)

// ReadFault describes a failed read of an unmapped, protected or stale address.
type ReadFault struct {
	Address Address
	Length  int
	Err     error
}

func (e *ReadFault) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("reading %d bytes at %s failed", e.Length, e.Address)
	}
	return fmt.Sprintf("reading %d bytes at %s: %v", e.Length, e.Address, e.Err)
}

func (e *ReadFault) Unwrap() error {
	return e.Err
}

// Is reports whether the target is ErrReadFault.
func (e *ReadFault) Is(target error) bool {
	return target == ErrReadFault
}

// AttachError is returned when a process can not be opened.
type AttachError struct {
	PID int
	Err error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("attaching to process %d: %v", e.PID, e.Err)
}

func (e *AttachError) Unwrap() error {
	return e.Err
}

// Module describes an image loaded into the foreign process.
type Module struct {
	Name string
	Base Address
	Size int
}

// Contains returns whether the address is inside the module image.
func (m Module) Contains(addr Address) bool {
	return addr >= m.Base && addr < m.Base+Address(m.Size)
}
