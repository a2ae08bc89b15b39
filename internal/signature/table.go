package signature

import (
	"fmt"
	"sort"
	"sync"

	"github.com/retroenv/procmirror/internal/memory"
	"github.com/retroenv/retrogolib/log"
)

// Table holds the resolved static addresses of one process run.
// It is written once by ResolveAll and is read-only afterwards.
type Table struct {
	addresses map[string]memory.Address
	missing   []string
}

// NewTable returns a table with the given resolved addresses.
func NewTable(addresses map[string]memory.Address) *Table {
	t := &Table{
		addresses: make(map[string]memory.Address, len(addresses)),
	}
	for name, addr := range addresses {
		t.addresses[name] = addr
	}
	return t
}

// Get returns the static address for the signature name. Unresolved names
// return the zero address.
func (t *Table) Get(name string) (memory.Address, bool) {
	if t == nil {
		return 0, false
	}
	addr, ok := t.addresses[name]
	return addr, ok
}

// Resolved returns the names of all resolved signatures in sorted order.
func (t *Table) Resolved() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.addresses))
	for name := range t.addresses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Missing returns the names of the signatures that did not match.
func (t *Table) Missing() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.missing...)
}

// ResolveAll resolves every signature independently. A failed signature
// only leaves its own name unresolved. The signatures are scanned in
// parallel, each worker writes to its own result slot.
func ResolveAll(logger *log.Logger, image []byte, base memory.Address, sigs []Signature) *Table {
	type result struct {
		addr memory.Address
		err  error
	}
	results := make([]result, len(sigs))

	var wg sync.WaitGroup
	for i, sig := range sigs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			addr, err := Resolve(image, base, sig)
			results[i] = result{addr: addr, err: err}
		}()
	}
	wg.Wait()

	t := &Table{
		addresses: make(map[string]memory.Address, len(sigs)),
	}
	for i, sig := range sigs {
		res := results[i]
		if res.err != nil {
			t.missing = append(t.missing, sig.Name)
			logger.Warn("Static address not resolved",
				log.String("name", sig.Name),
				log.Err(res.err))
			continue
		}
		t.addresses[sig.Name] = res.addr
		logger.Debug("Static address resolved",
			log.String("name", sig.Name),
			log.String("address", fmt.Sprintf("0x%X", uint64(res.addr))))
	}
	return t
}
