// Package loader handles offline memory dump loading operations.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/retroenv/procmirror/internal/memory"
	"github.com/retroenv/retrogolib/log"
)

const (
	regionSuffix = ".bin"
	moduleSuffix = ".module.bin"
)

// ErrNoModule is returned for a dump directory without module image.
var ErrNoModule = errors.New("dump contains no module image")

// Dump is an offline address space loaded from a dump directory.
type Dump struct {
	Buffer *memory.Buffer
	Module memory.Module
}

// Loader handles loading memory dumps from disk.
type Loader struct {
	logger *log.Logger
}

// New creates a new dump loader.
func New(logger *log.Logger) *Loader {
	return &Loader{
		logger: logger,
	}
}

// Load reads every region file of the directory into one address space.
// A region file is named by its hexadecimal start address, for example
// 7ff6a0001000.bin. Exactly one file has to use the .module.bin suffix,
// it is the image that the signatures are scanned in.
func (l *Loader) Load(dir string) (*Dump, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading dump directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), regionSuffix) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	dump := &Dump{
		Buffer: memory.NewBuffer(),
	}
	for _, name := range names {
		if err := l.loadRegion(dump, dir, name); err != nil {
			return nil, err
		}
	}

	if dump.Module.Base == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoModule)
	}
	l.logger.Debug("Loaded memory dump",
		log.String("directory", dir),
		log.Int("regions", len(dump.Buffer.Regions())),
		log.String("module", dump.Module.Base.String()))
	return dump, nil
}

func (l *Loader) loadRegion(dump *Dump, dir, name string) error {
	isModule := strings.HasSuffix(name, moduleSuffix)
	suffix := regionSuffix
	if isModule {
		suffix = moduleSuffix
	}

	addr, err := parseAddress(strings.TrimSuffix(name, suffix))
	if err != nil {
		return fmt.Errorf("region file %s: %w", name, err)
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("reading region file %s: %w", name, err)
	}
	if err := dump.Buffer.Map(addr, data); err != nil {
		return fmt.Errorf("mapping region file %s: %w", name, err)
	}

	if !isModule {
		return nil
	}
	if dump.Module.Base != 0 {
		return fmt.Errorf("second module image %s, first at %s", name, dump.Module.Base)
	}
	dump.Module = memory.Module{
		Name: name,
		Base: addr,
		Size: len(data),
	}
	return nil
}

func parseAddress(s string) (memory.Address, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	value, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing address '%s': %w", s, err)
	}
	if value == 0 {
		return 0, memory.ErrAddressZero
	}
	return memory.Address(value), nil
}
