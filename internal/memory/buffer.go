package memory

import (
	"fmt"
	"sort"
	"sync"
)

// Region is a contiguous block of a Buffer address space.
type Region struct {
	Start Address
	Data  []byte
}

// End returns the first address after the region.
func (r Region) End() Address {
	return r.Start + Address(len(r.Data))
}

// Buffer is a synthetic foreign address space made of mapped regions.
// It backs offline memory dumps and tests.
type Buffer struct {
	mu      sync.RWMutex
	regions []Region // sorted by start address
}

// NewBuffer returns an empty address space.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Map maps a copy of the data at the given address.
func (b *Buffer) Map(addr Address, data []byte) error {
	if addr == 0 {
		return ErrAddressZero
	}
	region := Region{
		Start: addr,
		Data:  append([]byte(nil), data...),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.regions {
		if region.Start < existing.End() && existing.Start < region.End() {
			return fmt.Errorf("mapping %s-%s: %w", region.Start, region.End(), ErrRegionOverlap)
		}
	}

	b.regions = append(b.regions, region)
	sort.Slice(b.regions, func(i, j int) bool {
		return b.regions[i].Start < b.regions[j].Start
	})
	return nil
}

// Write overwrites already mapped bytes, the write must not cross a region border.
func (b *Buffer) Write(addr Address, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	region, offset, ok := b.find(addr, len(data))
	if !ok {
		return &ReadFault{Address: addr, Length: len(data)}
	}
	copy(region.Data[offset:], data)
	return nil
}

// ReadBytes returns a copy of the bytes at the address. Reads crossing a
// region border or touching unmapped memory fail with a ReadFault.
func (b *Buffer) ReadBytes(addr Address, length int) ([]byte, error) {
	if addr == 0 {
		return nil, ErrAddressZero
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	region, offset, ok := b.find(addr, length)
	if !ok {
		return nil, &ReadFault{Address: addr, Length: length}
	}
	data := make([]byte, length)
	copy(data, region.Data[offset:])
	return data, nil
}

// Regions returns the mapped regions ordered by address.
func (b *Buffer) Regions() []Region {
	b.mu.RLock()
	defer b.mu.RUnlock()

	regions := make([]Region, len(b.regions))
	copy(regions, b.regions)
	return regions
}

func (b *Buffer) find(addr Address, length int) (Region, int, bool) {
	i := sort.Search(len(b.regions), func(i int) bool {
		return b.regions[i].End() > addr
	})
	if i == len(b.regions) {
		return Region{}, 0, false
	}
	region := b.regions[i]
	if addr < region.Start || addr+Address(length) > region.End() {
		return Region{}, 0, false
	}
	return region, int(addr - region.Start), true
}
