//go:build windows

package memory

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const maxModules = 1024

type handle struct {
	h windows.Handle
}

func openHandle(pid int) (handle, error) {
	h, err := windows.OpenProcess(windows.PROCESS_VM_READ|windows.PROCESS_QUERY_INFORMATION, false, uint32(pid))
	if err != nil {
		return handle{}, fmt.Errorf("OpenProcess: %w", err)
	}
	return handle{h: h}, nil
}

func (h handle) read(addr Address, data []byte) error {
	var read uintptr
	if err := windows.ReadProcessMemory(h.h, uintptr(addr), &data[0], uintptr(len(data)), &read); err != nil {
		return fmt.Errorf("ReadProcessMemory: %w", err)
	}
	if int(read) != len(data) {
		return fmt.Errorf("partial read of %d bytes", read)
	}
	return nil
}

func (h handle) close() error {
	return windows.CloseHandle(h.h)
}

// modules enumerates the loaded images, the main executable is always first.
func (h handle) modules(_ int) ([]Module, error) {
	handles := make([]windows.Handle, maxModules)
	var needed uint32
	size := uint32(len(handles)) * uint32(unsafe.Sizeof(handles[0]))
	if err := windows.EnumProcessModules(h.h, &handles[0], size, &needed); err != nil {
		return nil, fmt.Errorf("EnumProcessModules: %w", err)
	}

	count := int(needed / uint32(unsafe.Sizeof(handles[0])))
	if count > len(handles) {
		count = len(handles)
	}

	modules := make([]Module, 0, count)
	name := make([]uint16, windows.MAX_PATH)
	for _, mod := range handles[:count] {
		var info windows.ModuleInfo
		if err := windows.GetModuleInformation(h.h, mod, &info, uint32(unsafe.Sizeof(info))); err != nil {
			continue
		}
		if err := windows.GetModuleBaseName(h.h, mod, &name[0], uint32(len(name))); err != nil {
			continue
		}
		modules = append(modules, Module{
			Name: windows.UTF16ToString(name),
			Base: Address(info.BaseOfDll),
			Size: int(info.SizeOfImage),
		})
	}
	return modules, nil
}
