package memory

import (
	"fmt"
	"strings"
	"sync"
)

// pageSize is the chunk size used when reading whole module images.
const pageSize = 0x1000

// Process is an open read-only handle to a foreign process.
// It is safe for concurrent reads from multiple goroutines.
type Process struct {
	pid int

	mu     sync.RWMutex
	handle handle
	closed bool
}

// Open opens the process with the given id for reading.
func Open(pid int) (*Process, error) {
	h, err := openHandle(pid)
	if err != nil {
		return nil, &AttachError{PID: pid, Err: err}
	}
	return &Process{
		pid:    pid,
		handle: h,
	}, nil
}

// PID returns the process id.
func (p *Process) PID() int {
	return p.pid
}

// ReadBytes reads length bytes at the address. The call blocks for the
// duration of the OS call, a released handle fails fast with ErrHandleClosed.
func (p *Process) ReadBytes(addr Address, length int) ([]byte, error) {
	if addr == 0 {
		return nil, ErrAddressZero
	}
	if length < 0 {
		return nil, fmt.Errorf("invalid read length %d", length)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrHandleClosed
	}

	data := make([]byte, length)
	if length == 0 {
		return data, nil
	}
	if err := p.handle.read(addr, data); err != nil {
		return nil, &ReadFault{Address: addr, Length: length, Err: err}
	}
	return data, nil
}

// Close releases the process handle, subsequent reads fail.
func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.handle.close(); err != nil {
		return fmt.Errorf("closing process %d: %w", p.pid, err)
	}
	return nil
}

// Module returns the loaded image with the given file name, the comparison
// ignores case. An empty name returns the main executable image.
func (p *Process) Module(name string) (Module, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return Module{}, ErrHandleClosed
	}

	modules, err := p.handle.modules(p.pid)
	if err != nil {
		return Module{}, fmt.Errorf("listing modules of process %d: %w", p.pid, err)
	}
	if len(modules) == 0 {
		return Module{}, ErrModuleNotFound
	}
	if name == "" {
		return modules[0], nil
	}
	for _, m := range modules {
		if strings.EqualFold(m.Name, name) {
			return m, nil
		}
	}
	return Module{}, fmt.Errorf("%s: %w", name, ErrModuleNotFound)
}

// ReadImage reads the complete module image page by page. Pages that can not
// be read are left zeroed, the number of failed pages is returned.
func ReadImage(r Reader, m Module) ([]byte, int) {
	image := make([]byte, m.Size)
	failed := 0
	for offset := 0; offset < m.Size; offset += pageSize {
		size := pageSize
		if offset+size > m.Size {
			size = m.Size - offset
		}
		data, err := r.ReadBytes(m.Base+Address(offset), size)
		if err != nil {
			failed++
			continue
		}
		copy(image[offset:], data)
	}
	return image, failed
}
