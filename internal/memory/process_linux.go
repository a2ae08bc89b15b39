//go:build linux

package memory

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

type handle struct {
	pid int
}

func openHandle(pid int) (handle, error) {
	if pid <= 0 {
		return handle{}, fmt.Errorf("invalid pid %d", pid)
	}
	if err := unix.Kill(pid, 0); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return handle{}, fmt.Errorf("process does not exist: %w", err)
		}
		return handle{}, fmt.Errorf("access denied: %w", err)
	}
	return handle{pid: pid}, nil
}

func (h handle) read(addr Address, data []byte) error {
	local := []unix.Iovec{{Base: &data[0]}}
	local[0].SetLen(len(data))
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(data)}}

	n, err := unix.ProcessVMReadv(h.pid, local, remote, 0)
	if err != nil {
		return fmt.Errorf("process_vm_readv: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("partial read of %d bytes", n)
	}
	return nil
}

func (h handle) close() error {
	return nil
}

// modules parses the memory map of the process. The main executable is
// returned first, the other images follow in address order.
func (h handle) modules(pid int) ([]Module, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, fmt.Errorf("opening memory map: %w", err)
	}
	defer func() { _ = f.Close() }()

	exe, _ := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))

	var ordered []string
	byPath := map[string]*Module{}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 || !strings.HasPrefix(fields[5], "/") {
			continue
		}
		start, end, ok := parseRange(fields[0])
		if !ok {
			continue
		}

		path := fields[5]
		m, ok := byPath[path]
		if !ok {
			m = &Module{Name: filepath.Base(path), Base: start}
			byPath[path] = m
			ordered = append(ordered, path)
		}
		if start < m.Base {
			m.Size += int(m.Base - start)
			m.Base = start
		}
		if size := int(end - m.Base); size > m.Size {
			m.Size = size
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading memory map: %w", err)
	}

	modules := make([]Module, 0, len(ordered))
	if m, ok := byPath[exe]; ok {
		modules = append(modules, *m)
	}
	for _, path := range ordered {
		if path != exe {
			modules = append(modules, *byPath[path])
		}
	}
	return modules, nil
}

func parseRange(s string) (Address, Address, bool) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, false
	}
	start, err := strconv.ParseUint(from, 16, 64)
	if err != nil {
		return 0, 0, false
	}
	end, err := strconv.ParseUint(to, 16, 64)
	if err != nil {
		return 0, 0, false
	}
	return Address(start), Address(end), true
}
