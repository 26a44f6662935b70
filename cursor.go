package oleforms

import (
	"encoding/binary"
	"fmt"
)

const (
	JUMP_TO = iota
	PAD_TO
)

type region struct {
	start int
	kind  int
	size  int
}

// Cursor is a forward-only reader over one form stream. It tracks the
// absolute position since stream start and a stack of open regions.
// The MS-OFORMS layouts carry declared lengths so that readers can
// skip trailing fields they do not understand: a JUMP_TO region skips
// to a declared length on close, a PAD_TO region skips to the next
// alignment boundary. Regions close in LIFO order and the cursor
// never moves backward.
type Cursor struct {
	path    string
	data    []byte
	pos     int
	regions []region
}

func NewCursor(data []byte, path string) *Cursor {
	return &Cursor{path: path, data: data}
}

func (self *Cursor) Pos() int {
	return self.pos
}

func (self *Cursor) Remaining() int {
	return len(self.data) - self.pos
}

// Read returns the next size bytes. The result aliases the underlying
// buffer - no allocation happens, so a crafted length field can not
// make us allocate more than the stream actually holds.
func (self *Cursor) Read(size int) ([]byte, error) {
	if size < 0 || size > len(self.data)-self.pos {
		return nil, &StreamTruncated{
			Path:      self.path,
			Offset:    self.pos,
			Wanted:    size,
			Remaining: len(self.data) - self.pos,
		}
	}

	result := self.data[self.pos : self.pos+size]
	self.pos += size
	return result, nil
}

func (self *Cursor) ReadUint8() (uint8, error) {
	data, err := self.Read(1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

func (self *Cursor) ReadUint16() (uint16, error) {
	data, err := self.Read(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data), nil
}

func (self *Cursor) ReadUint32() (uint32, error) {
	data, err := self.Read(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

func (self *Cursor) ReadUint64() (uint64, error) {
	data, err := self.Read(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

// ReadGUID reads a 16 byte identifier: Data1/Data2/Data3 are little
// endian, the last 8 bytes are big endian. Rendered as
// XXXXXXXX-XXXX-XXXX-XXXXXXXXXXXXXXXX for comparison against the
// well known MS-OFORMS identifiers.
func (self *Cursor) ReadGUID() (string, error) {
	data, err := self.Read(16)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%08X-%04X-%04X-%016X",
		binary.LittleEndian.Uint32(data[0:4]),
		binary.LittleEndian.Uint16(data[4:6]),
		binary.LittleEndian.Uint16(data[6:8]),
		binary.BigEndian.Uint64(data[8:16])), nil
}

func (self *Cursor) violation(field string, expected, actual interface{}, back int) error {
	return &FormatViolation{
		Path:     self.path,
		Offset:   self.pos - back,
		Field:    field,
		Expected: expected,
		Actual:   actual,
	}
}

func (self *Cursor) ExpectUint8(field string, expected uint8) error {
	value, err := self.ReadUint8()
	if err != nil {
		return err
	}
	if value != expected {
		return self.violation(field, expected, value, 1)
	}
	return nil
}

func (self *Cursor) ExpectUint16(field string, expected uint16) error {
	value, err := self.ReadUint16()
	if err != nil {
		return err
	}
	if value != expected {
		return self.violation(field, expected, value, 2)
	}
	return nil
}

func (self *Cursor) ExpectUint32(field string, expected uint32) error {
	value, err := self.ReadUint32()
	if err != nil {
		return err
	}
	if value != expected {
		return self.violation(field, expected, value, 4)
	}
	return nil
}

// ExpectVersion checks the MinorVersion/MajorVersion byte pair that
// starts most OFORMS structures.
func (self *Cursor) ExpectVersion(field string, minor, major uint8) error {
	data, err := self.Read(2)
	if err != nil {
		return err
	}
	if data[0] != minor || data[1] != major {
		return self.violation(field+" (version)",
			fmt.Sprintf("(%d, %d)", minor, major),
			fmt.Sprintf("(%d, %d)", data[0], data[1]), 2)
	}
	return nil
}

// OpenJump starts a region which CloseRegion will advance to exactly
// size bytes past the current position.
func (self *Cursor) OpenJump(size int) {
	self.regions = append(self.regions, region{self.pos, JUMP_TO, size})
}

// OpenPad starts a region which CloseRegion will advance to the next
// multiple of modulus past the current position.
func (self *Cursor) OpenPad(modulus int) {
	self.regions = append(self.regions, region{self.pos, PAD_TO, modulus})
}

// CloseRegion pops the innermost region and consumes its filler
// bytes. Callers only reach the close on the success path - when a
// decode fails inside a region the cursor is discarded with the
// region still open, so the close can never mask the error.
func (self *Cursor) CloseRegion() error {
	r := self.regions[len(self.regions)-1]
	self.regions = self.regions[:len(self.regions)-1]

	consumed := self.pos - r.start
	switch r.kind {
	case JUMP_TO:
		if consumed > r.size {
			return self.violation("declared size", r.size, consumed, 0)
		}
		_, err := self.Read(r.size - consumed)
		return err

	case PAD_TO:
		align := consumed % r.size
		if align != 0 {
			_, err := self.Read(r.size - align)
			return err
		}
	}
	return nil
}
