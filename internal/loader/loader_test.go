package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/retroenv/procmirror/internal/memory"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func TestLoad(t *testing.T) {
	t.Run("module and regions", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "140000000.module.bin", []byte{0x48, 0x8b, 0x05, 0x00})
		writeFile(t, dir, "0x20000.bin", []byte{1, 2, 3, 4})
		writeFile(t, dir, "notes.txt", []byte("ignored"))

		dump, err := New(log.NewTestLogger(t)).Load(dir)
		assert.NoError(t, err)
		assert.Equal(t, memory.Address(0x140000000), dump.Module.Base)
		assert.Equal(t, 4, dump.Module.Size)
		assert.Len(t, dump.Buffer.Regions(), 2)

		data, err := dump.Buffer.ReadBytes(0x20001, 2)
		assert.NoError(t, err)
		assert.Equal(t, []byte{2, 3}, data)
	})

	t.Run("missing module", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "20000.bin", []byte{1})

		_, err := New(log.NewTestLogger(t)).Load(dir)
		assert.True(t, errors.Is(err, ErrNoModule))
	})

	t.Run("two modules", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "10000.module.bin", []byte{1})
		writeFile(t, dir, "20000.module.bin", []byte{1})

		_, err := New(log.NewTestLogger(t)).Load(dir)
		assert.ErrorContains(t, err, "second module image")
	})

	t.Run("overlapping regions", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "10000.module.bin", []byte{1, 2, 3, 4})
		writeFile(t, dir, "10002.bin", []byte{1})

		_, err := New(log.NewTestLogger(t)).Load(dir)
		assert.True(t, errors.Is(err, memory.ErrRegionOverlap))
	})

	t.Run("invalid name", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "region.bin", []byte{1})

		_, err := New(log.NewTestLogger(t)).Load(dir)
		assert.ErrorContains(t, err, "parsing address")
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := New(log.NewTestLogger(t)).Load(filepath.Join(t.TempDir(), "missing"))
		assert.ErrorContains(t, err, "reading dump directory")
	})
}

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
}
