package memory

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

type testView struct {
	ID    uint32
	_     [4]byte
	Ptr   Address
	Flags uint16
	Kind  uint8
	Valid bool
}

func TestBufferReadBytes(t *testing.T) {
	buf := NewBuffer()
	assert.NoError(t, buf.Map(0x1000, []byte{1, 2, 3, 4}))
	assert.NoError(t, buf.Map(0x2000, []byte{5, 6}))

	data, err := buf.ReadBytes(0x1001, 2)
	assert.NoError(t, err)
	assert.Equal(t, []byte{2, 3}, data)

	_, err = buf.ReadBytes(0x1003, 2)
	assert.True(t, errors.Is(err, ErrReadFault))

	_, err = buf.ReadBytes(0x3000, 1)
	assert.True(t, errors.Is(err, ErrReadFault))

	_, err = buf.ReadBytes(0, 1)
	assert.True(t, errors.Is(err, ErrAddressZero))

	err = buf.Map(0x1002, []byte{0})
	assert.True(t, errors.Is(err, ErrRegionOverlap))
}

func TestBufferWrite(t *testing.T) {
	buf := NewBuffer()
	assert.NoError(t, buf.Map(0x1000, make([]byte, 8)))
	assert.NoError(t, buf.Write(0x1004, []byte{0xaa, 0xbb}))

	data, err := buf.ReadBytes(0x1004, 2)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0xaa, 0xbb}, data)

	assert.Error(t, buf.Write(0x1007, []byte{1, 2}))
}

func TestReadTypedView(t *testing.T) {
	data := make([]byte, 20)
	binary.LittleEndian.PutUint32(data[0:], 0x1234)
	binary.LittleEndian.PutUint32(data[4:], 0xffffffff) // padding
	binary.LittleEndian.PutUint64(data[8:], 0x7ff000)
	binary.LittleEndian.PutUint16(data[16:], 0x0102)
	data[18] = 7
	data[19] = 1

	buf := NewBuffer()
	assert.NoError(t, buf.Map(0x5000, data))

	assert.Equal(t, 20, SizeOf[testView]())

	v, err := Read[testView](buf, 0x5000)
	assert.NoError(t, err)
	assert.Equal(t, uint32(0x1234), v.ID)
	assert.Equal(t, Address(0x7ff000), v.Ptr)
	assert.Equal(t, uint16(0x0102), v.Flags)
	assert.Equal(t, uint8(7), v.Kind)
	assert.True(t, v.Valid)

	_, err = Read[testView](buf, 0)
	assert.True(t, errors.Is(err, ErrAddressZero))
}

func TestReadArray(t *testing.T) {
	data := make([]byte, 12)
	for i := range 3 {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(i+10))
	}
	buf := NewBuffer()
	assert.NoError(t, buf.Map(0x100, data))

	values, err := ReadArray[uint32](buf, 0x100, 3)
	assert.NoError(t, err)
	assert.Equal(t, []uint32{10, 11, 12}, values)

	values, err = ReadArray[uint32](buf, 0x100, 0)
	assert.NoError(t, err)
	assert.Len(t, values, 0)

	_, err = ReadArray[uint32](buf, 0x100, 4)
	assert.True(t, errors.Is(err, ErrReadFault))
}

func TestReadImage(t *testing.T) {
	buf := NewBuffer()
	page := make([]byte, pageSize)
	page[0] = 0x90
	assert.NoError(t, buf.Map(0x400000, page))

	image, failed := ReadImage(buf, Module{Name: "game", Base: 0x400000, Size: 2 * pageSize})
	assert.Equal(t, 1, failed)
	assert.Len(t, image, 2*pageSize)
	assert.Equal(t, byte(0x90), image[0])
}

func TestModuleContains(t *testing.T) {
	m := Module{Base: 0x1000, Size: 0x100}
	assert.True(t, m.Contains(0x1000))
	assert.True(t, m.Contains(0x10ff))
	assert.False(t, m.Contains(0x1100))
	assert.False(t, m.Contains(0xfff))
}
