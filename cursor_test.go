package oleforms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRead(t *testing.T) {
	stream := NewCursor([]byte{1, 2, 3, 4}, "test/f")

	data, err := stream.Read(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
	assert.Equal(t, 3, stream.Pos())
	assert.Equal(t, 1, stream.Remaining())

	_, err = stream.Read(2)
	require.Error(t, err)
	truncated, ok := err.(*StreamTruncated)
	require.True(t, ok)
	assert.Equal(t, "test/f", truncated.Path)
	assert.Equal(t, 3, truncated.Offset)
	assert.Equal(t, 2, truncated.Wanted)
	assert.Equal(t, 1, truncated.Remaining)

	// The failed read must not move the cursor.
	assert.Equal(t, 3, stream.Pos())
}

func TestCursorFields(t *testing.T) {
	stream := NewCursor([]byte{
		0x07, 0x01, 0x02, 0x00, 0x00, 0x00,
		0xEF, 0xBE, 0xAD, 0xDE, 0x00, 0x00, 0x00, 0x00,
	}, "test/f")

	value8, err := stream.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(7), value8)

	value16, err := stream.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0201), value16)

	_, err = stream.Read(3)
	require.NoError(t, err)

	value64, err := stream.ReadUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0xDEADBEEF), value64)
}

func TestCursorReadGUID(t *testing.T) {
	// {0BE35203-8F91-11CE-9DE300AA004BB851}: first three fields
	// little endian, last eight bytes big endian.
	stream := NewCursor([]byte{
		0x03, 0x52, 0xE3, 0x0B,
		0x91, 0x8F,
		0xCE, 0x11,
		0x9D, 0xE3, 0x00, 0xAA, 0x00, 0x4B, 0xB8, 0x51,
	}, "test/f")

	guid, err := stream.ReadGUID()
	require.NoError(t, err)
	assert.Equal(t, GUID_STD_FONT, guid)
}

func TestCursorExpect(t *testing.T) {
	stream := NewCursor([]byte{0x00, 0x04, 0x10, 0x00}, "test/f")

	require.NoError(t, stream.ExpectVersion("FormControl", 0, 4))

	err := stream.ExpectUint16("cbForm", 0x20)
	require.Error(t, err)
	violation, ok := err.(*FormatViolation)
	require.True(t, ok)
	assert.Equal(t, "test/f", violation.Path)
	assert.Equal(t, 2, violation.Offset)
	assert.Equal(t, "cbForm", violation.Field)
	assert.Equal(t, uint16(0x20), violation.Expected)
	assert.Equal(t, uint16(0x10), violation.Actual)
}

func TestCursorJumpRegion(t *testing.T) {
	stream := NewCursor(make([]byte, 10), "test/f")

	// The close lands exactly size bytes past the region start no
	// matter how much was consumed inside.
	stream.OpenJump(6)
	_, err := stream.Read(2)
	require.NoError(t, err)
	require.NoError(t, stream.CloseRegion())
	assert.Equal(t, 6, stream.Pos())

	// Consuming more than the declared size is a format violation.
	stream = NewCursor(make([]byte, 10), "test/f")
	stream.OpenJump(2)
	_, err = stream.Read(4)
	require.NoError(t, err)
	err = stream.CloseRegion()
	require.Error(t, err)
	_, ok := err.(*FormatViolation)
	assert.True(t, ok)

	// A declared size past the end of the stream surfaces as
	// truncation on close.
	stream = NewCursor(make([]byte, 4), "test/f")
	stream.OpenJump(100)
	err = stream.CloseRegion()
	require.Error(t, err)
	_, ok = err.(*StreamTruncated)
	assert.True(t, ok)
}

func TestCursorPadRegion(t *testing.T) {
	stream := NewCursor(make([]byte, 10), "test/f")

	stream.OpenPad(4)
	_, err := stream.Read(3)
	require.NoError(t, err)
	require.NoError(t, stream.CloseRegion())
	assert.Equal(t, 4, stream.Pos())

	// Already aligned: zero filler.
	stream.OpenPad(4)
	_, err = stream.Read(4)
	require.NoError(t, err)
	require.NoError(t, stream.CloseRegion())
	assert.Equal(t, 8, stream.Pos())
}

func TestCursorNestedRegions(t *testing.T) {
	stream := NewCursor(make([]byte, 20), "test/f")

	stream.OpenJump(16)
	_, err := stream.Read(4)
	require.NoError(t, err)

	stream.OpenPad(8)
	_, err = stream.Read(1)
	require.NoError(t, err)

	// Inner pad first (LIFO). The pad is relative to its region
	// start at 4, so the next 8 boundary is 12.
	require.NoError(t, stream.CloseRegion())
	assert.Equal(t, 12, stream.Pos())

	require.NoError(t, stream.CloseRegion())
	assert.Equal(t, 16, stream.Pos())
}
