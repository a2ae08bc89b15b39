package state

import (
	"sync/atomic"

	"github.com/retroenv/procmirror/internal/memory"
)

type readerBox struct {
	reader memory.Reader
}

// switchReader forwards reads to the currently attached reader. The mirrored
// objects live for the whole run and keep this reader across attaches.
type switchReader struct {
	current atomic.Pointer[readerBox]
}

func (s *switchReader) set(r memory.Reader) {
	if r == nil {
		s.current.Store(nil)
		return
	}
	s.current.Store(&readerBox{reader: r})
}

// ReadBytes reads from the attached reader and fails fast while detached.
func (s *switchReader) ReadBytes(addr memory.Address, length int) ([]byte, error) {
	box := s.current.Load()
	if box == nil {
		return nil, memory.ErrHandleClosed
	}
	return box.reader.ReadBytes(addr, length)
}
