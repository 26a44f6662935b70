package oleforms

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"
)

const (
	OLE_SIGNATURE = "\xD0\xCF\x11\xE0\xA1\xB1\x1A\xE1"

	FREESECT   = 0xFFFFFFFF
	ENDOFCHAIN = 0xFFFFFFFE
	NOSTREAM   = 0xFFFFFFFF

	STGTY_STORAGE = 1
	STGTY_STREAM  = 2
	STGTY_ROOT    = 5

	MAX_SECTOR_SHIFT = 20
	MAX_SECTORS      = 1000000
)

type OLEHeader struct {
	AbSig [8]byte
	Clid  [16]byte

	MinorVersion    uint16
	DllVersion      uint16
	ByteOrder       uint16
	SectorShift     uint16
	MiniSectorShift uint16
	Reserved        uint16

	Reserved1        uint32
	Reserved2        uint32
	CsectFat         uint32
	SectDirStart     uint32
	Signature        uint32
	MiniSectorCutoff uint32
	SectMiniFatStart uint32
	CsectMiniFat     uint32
	SectDifStart     uint32
	CsectDif         uint32

	SectFat [109]uint32
}

type DirectoryHeader struct {
	AB          [32]uint16
	CB          uint16
	Mse         byte
	Flags       byte
	SidLeftSib  uint32
	SidRightSib uint32
	SidChild    uint32
	ClsId       [16]byte
	UserFlags   uint32
	CreateTime  uint64
	ModifyTime  uint64
	SectStart   uint32
	Size        uint32
	PropType    uint16
}

// Directory is one entry of the compound file's directory table. Path
// is the full storage path ("Macros/UserForm1/f"), resolved by
// walking the sibling tree from the root entry.
type Directory struct {
	Header DirectoryHeader
	Index  uint32
	Name   string
	Path   string
}

func NewDirectory(data []byte, index uint32) (*Directory, error) {
	self := &Directory{Index: index}

	buffer := bytes.NewBuffer(data)
	err := binary.Read(buffer, binary.LittleEndian, &self.Header)
	if err != nil {
		return nil, err
	}

	self.Name = strings.TrimRight(
		string(utf16.Decode(self.Header.AB[:])), "\x00")

	return self, nil
}

// OLEFile is a read-only view over an OLE2 compound file. Streams are
// sequences of sectors chained through the FAT; small streams live in
// the ministream and are chained through the miniFAT instead.
type OLEFile struct {
	data           []byte
	ministream     []byte
	Header         OLEHeader
	SectorSize     int
	MiniSectorSize int
	FatSectors     []uint32
	Fat            []uint32
	MiniFat        []uint32
	Directory      []*Directory
}

func (self *OLEFile) ReadSector(sector uint32) []byte {
	start := 512 + self.SectorSize*int(sector)
	if start > len(self.data) {
		return nil
	}

	end := start + self.SectorSize
	if end > len(self.data) {
		end = len(self.data)
	}
	return self.data[start:end]
}

func (self *OLEFile) ReadMiniSector(sector uint32) []byte {
	start := self.MiniSectorSize * int(sector)
	if start > len(self.ministream) {
		return nil
	}

	end := start + self.MiniSectorSize
	if end > len(self.ministream) {
		end = len(self.ministream)
	}
	return self.ministream[start:end]
}

func (self *OLEFile) ReadFat(sector uint32) uint32 {
	if int(sector) >= len(self.Fat) {
		return ENDOFCHAIN
	}
	return self.Fat[sector]
}

func (self *OLEFile) ReadMiniFat(sector uint32) uint32 {
	if int(sector) >= len(self.MiniFat) {
		return ENDOFCHAIN
	}
	return self.MiniFat[sector]
}

func (self *OLEFile) ReadChain(start uint32) []byte {
	return self.readChain(start, self.ReadSector, self.ReadFat)
}

func (self *OLEFile) ReadMiniChain(start uint32) []byte {
	return self.readChain(start, self.ReadMiniSector, self.ReadMiniFat)
}

func (self *OLEFile) readChain(
	start uint32,
	read_sector func(uint32) []byte,
	read_fat func(uint32) uint32) []byte {

	seen := make(map[uint32]bool)
	var result []byte

	for sector := start; sector != ENDOFCHAIN && sector != FREESECT; {
		result = append(result, read_sector(sector)...)
		next := read_fat(sector)
		if seen[next] {
			DebugPrintf("chain loop detected at %v to %v starting at %v\n",
				sector, next, start)
			return result
		}
		seen[next] = true
		sector = next
	}
	return result
}

// GetStream returns the bytes of the stream at directory index,
// truncated to the directory-declared size.
func (self *OLEFile) GetStream(index uint32) []byte {
	if int(index) >= len(self.Directory) {
		return nil
	}

	d := self.Directory[index]

	var data []byte
	if d.Header.Size < self.Header.MiniSectorCutoff {
		data = self.ReadMiniChain(d.Header.SectStart)
	} else {
		data = self.ReadChain(d.Header.SectStart)
	}

	return data[:uint32_min(d.Header.Size, uint32(len(data)))]
}

// FindStreamByPath locates a stream by its full storage path.
func (self *OLEFile) FindStreamByPath(path string) *Directory {
	for _, d := range self.Directory {
		if d.Path == path && d.Header.Mse == STGTY_STREAM {
			return d
		}
	}
	return nil
}

func (self *OLEFile) OpenStreamByPath(path string) ([]byte, error) {
	d := self.FindStreamByPath(path)
	if d == nil {
		return nil, fmt.Errorf("stream %s not found", path)
	}
	return self.GetStream(d.Index), nil
}

// FormStorages lists the paths of storages that hold a UserForm: a
// storage counts if it has both an "f" (form definition) and an "o"
// (associated data) child stream.
func (self *OLEFile) FormStorages() []string {
	streams := make(map[string]bool)
	for _, d := range self.Directory {
		if d.Header.Mse == STGTY_STREAM {
			streams[d.Path] = true
		}
	}

	var result []string
	for _, d := range self.Directory {
		if d.Header.Mse != STGTY_STORAGE {
			continue
		}
		if streams[d.Path+"/f"] && streams[d.Path+"/o"] {
			result = append(result, d.Path)
		}
	}
	return result
}

// resolvePaths assigns each directory entry its full path. Entries
// under a storage form a binary tree: the storage points at one child
// and the rest hang off SidLeftSib/SidRightSib.
func (self *OLEFile) resolvePaths() {
	seen := make(map[uint32]bool)
	if len(self.Directory) > 0 {
		self.walkSiblings(self.Directory[0].Header.SidChild, "", seen)
	}
}

func (self *OLEFile) walkSiblings(sid uint32, prefix string, seen map[uint32]bool) {
	if sid == NOSTREAM || int(sid) >= len(self.Directory) || seen[sid] {
		return
	}
	seen[sid] = true

	d := self.Directory[sid]
	d.Path = prefix + d.Name

	self.walkSiblings(d.Header.SidLeftSib, prefix, seen)
	self.walkSiblings(d.Header.SidRightSib, prefix, seen)

	if d.Header.Mse == STGTY_STORAGE {
		self.walkSiblings(d.Header.SidChild, d.Path+"/", seen)
	}
}

func NewOLEFile(data []byte) (*OLEFile, error) {
	if len(data) < 8 || string(data[:8]) != OLE_SIGNATURE {
		return nil, errors.New("Invalid signature")
	}

	self := OLEFile{data: data}
	buffer := bytes.NewBuffer(data)
	err := binary.Read(buffer, binary.LittleEndian, &self.Header)
	if err != nil {
		return nil, err
	}

	if self.Header.SectorShift > MAX_SECTOR_SHIFT {
		return nil, fmt.Errorf(
			"Sector size too large: %v", self.Header.SectorShift)
	}

	self.SectorSize = 1 << self.Header.SectorShift
	if self.SectorSize < 8 {
		return nil, fmt.Errorf("Sector size too small: %v", self.SectorSize)
	}

	self.MiniSectorSize = 1 << self.Header.MiniSectorShift
	if (len(data)-512)%self.SectorSize != 0 {
		DebugPrintf("Last sector has invalid size\n")
	}

	for _, sect := range self.Header.SectFat {
		if sect != FREESECT {
			self.FatSectors = append(self.FatSectors, sect)
		}
	}

	// Large files keep additional FAT sector numbers in DIF sectors.
	sector := self.Header.SectDifStart
	seen := make(map[uint32]bool)
	for sector != FREESECT && sector != ENDOFCHAIN {
		dif_data := self.ReadSector(sector)
		dif_values := make([]uint32, self.SectorSize/4)
		err := binary.Read(bytes.NewBuffer(dif_data),
			binary.LittleEndian, dif_values)
		if err != nil {
			return nil, err
		}

		if len(dif_values) < 2 {
			return nil, errors.New("DIF sector too small")
		}

		// The last entry points at the next DIF sector.
		next := dif_values[len(dif_values)-1]
		for _, value := range dif_values[:len(dif_values)-2] {
			if value != FREESECT {
				self.FatSectors = append(self.FatSectors, value)
			}
		}

		if seen[next] || len(seen) > MAX_SECTORS {
			return nil, fmt.Errorf(
				"DIF loop detected at %v to %v", sector, next)
		}
		seen[next] = true
		sector = next
	}

	for _, fat_sect := range self.FatSectors {
		sect_longs := make([]uint32, self.SectorSize/4)
		err := binary.Read(bytes.NewBuffer(self.ReadSector(fat_sect)),
			binary.LittleEndian, sect_longs)
		if err != nil {
			return nil, err
		}
		self.Fat = append(self.Fat, sect_longs...)
	}

	dir_buffer := self.ReadChain(self.Header.SectDirStart)
	for index := 0; index*128 < len(dir_buffer); index++ {
		dir_obj, err := NewDirectory(dir_buffer[index*128:], uint32(index))
		if err != nil {
			return nil, err
		}
		self.Directory = append(self.Directory, dir_obj)
	}

	if len(self.Directory) == 0 {
		return nil, errors.New("Directory not found")
	}

	// The ministream holds the contents of all small streams and is
	// itself a regular chain rooted at the root directory entry.
	root_directory := self.Directory[0]
	if root_directory.Header.SectStart != ENDOFCHAIN {
		self.ministream = self.ReadChain(root_directory.Header.SectStart)
		if len(self.ministream) < int(root_directory.Header.Size) {
			return nil, fmt.Errorf(
				"ministream shorter than declared: %v", len(self.ministream))
		}
		self.ministream = self.ministream[:root_directory.Header.Size]

		minifat_data := self.ReadChain(self.Header.SectMiniFatStart)
		for i := 0; i+self.SectorSize <= len(minifat_data); i += self.SectorSize {
			chunk := make([]uint32, self.SectorSize/4)
			err := binary.Read(
				bytes.NewBuffer(minifat_data[i:i+self.SectorSize]),
				binary.LittleEndian, chunk)
			if err != nil {
				return nil, err
			}
			self.MiniFat = append(self.MiniFat, chunk...)
		}
	}

	self.resolvePaths()

	return &self, nil
}
