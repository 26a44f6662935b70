package oleforms

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"testing"
	"unicode/utf16"

	"github.com/sebdah/goldie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const FATSECT = 0xFFFFFFFD

func writeDirEntry(buf *bytes.Buffer, name string, mse byte,
	left, right, child, sect, size uint32) {

	d := DirectoryHeader{
		Mse:         mse,
		SidLeftSib:  left,
		SidRightSib: right,
		SidChild:    child,
		SectStart:   sect,
		Size:        size,
	}
	encoded := utf16.Encode([]rune(name))
	copy(d.AB[:], encoded)
	d.CB = uint16((len(encoded) + 1) * 2)

	binary.Write(buf, binary.LittleEndian, &d)
	// Directory entries are 128 bytes on disk.
	buf.Write([]byte{0, 0})
}

// buildTestDocument assembles a minimal compound file: one FAT
// sector, one directory sector, and the two form streams in one
// sector each. MiniSectorCutoff of 0 keeps everything out of the
// ministream.
func buildTestDocument(form_data, object_data []byte) []byte {
	header := OLEHeader{
		SectorShift:      9,
		MiniSectorShift:  6,
		CsectFat:         1,
		SectDirStart:     1,
		SectMiniFatStart: ENDOFCHAIN,
		SectDifStart:     ENDOFCHAIN,
	}
	copy(header.AbSig[:], OLE_SIGNATURE)
	for i := range header.SectFat {
		header.SectFat[i] = FREESECT
	}
	header.SectFat[0] = 0

	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, &header)

	fat := make([]uint32, 128)
	for i := range fat {
		fat[i] = FREESECT
	}
	fat[0] = FATSECT
	fat[1] = ENDOFCHAIN // directory
	fat[2] = ENDOFCHAIN // f
	fat[3] = ENDOFCHAIN // o
	binary.Write(buf, binary.LittleEndian, fat)

	writeDirEntry(buf, "Root Entry", STGTY_ROOT,
		NOSTREAM, NOSTREAM, 1, ENDOFCHAIN, 0)
	writeDirEntry(buf, "UserForm1", STGTY_STORAGE,
		NOSTREAM, NOSTREAM, 2, ENDOFCHAIN, 0)
	writeDirEntry(buf, "f", STGTY_STREAM,
		NOSTREAM, 3, NOSTREAM, 2, uint32(len(form_data)))
	writeDirEntry(buf, "o", STGTY_STREAM,
		NOSTREAM, NOSTREAM, NOSTREAM, 3, uint32(len(object_data)))

	sector := make([]byte, 512)
	copy(sector, form_data)
	buf.Write(sector)

	sector = make([]byte, 512)
	copy(sector, object_data)
	buf.Write(sector)

	return buf.Bytes()
}

func TestOLEFileFormStorages(t *testing.T) {
	form_data := buildFormStream([]byte{0, 1},
		buildSite("A", 7, 2, CLSID_CACHE_INDEX_MORPH_DATA))
	object_data := buildMorphStream("hello")

	ofdoc, err := NewOLEFile(buildTestDocument(form_data, object_data))
	require.NoError(t, err)

	assert.Equal(t, []string{"UserForm1"}, ofdoc.FormStorages())

	stream, err := ofdoc.OpenStreamByPath("UserForm1/f")
	require.NoError(t, err)
	assert.Equal(t, form_data, stream)

	_, err = ofdoc.OpenStreamByPath("UserForm1/x")
	require.Error(t, err)
}

func TestOLEFileBadSignature(t *testing.T) {
	_, err := NewOLEFile([]byte("not an ole file at all"))
	require.Error(t, err)
}

func TestFormVariablesGolden(t *testing.T) {
	form_data := buildFormStream([]byte{0, 1},
		buildSite("A", 7, 2, CLSID_CACHE_INDEX_MORPH_DATA))
	object_data := buildMorphStream("hello")

	variables, err := ParseBuffer(buildTestDocument(form_data, object_data))
	require.NoError(t, err)

	serialized, err := json.MarshalIndent(variables, " ", " ")
	require.NoError(t, err)
	goldie.Assert(t, "form_variables", serialized)
}

func TestDecodeFormString(t *testing.T) {
	assert.Equal(t, "hello", DecodeFormString([]byte("hello")))

	// 0x93/0x94 are the Windows-1252 curly quotes.
	assert.Equal(t, "“hi”", DecodeFormString([]byte{0x93, 'h', 'i', 0x94}))
}
