package oleforms

import (
	"archive/zip"
	"io"
	"io/ioutil"
	"os"
	"regexp"

	"golang.org/x/text/encoding/charmap"
)

var (
	BINFILE_NAME = regexp.MustCompile("(?i).bin$")
)

// ExtractFormVariables decodes one form. form_path is the storage
// holding the form's "f" and "o" streams. A FormatViolation or
// StreamTruncated from the site list makes the whole form
// undecodable; other forms in the document are unaffected.
func ExtractFormVariables(ofdoc *OLEFile, form_path string) ([]*FormVariable, error) {
	form_data, err := ofdoc.OpenStreamByPath(form_path + "/f")
	if err != nil {
		return nil, err
	}

	object_data, err := ofdoc.OpenStreamByPath(form_path + "/o")
	if err != nil {
		return nil, err
	}

	return extractVariables(form_data, object_data, form_path)
}

// ParseBuffer extracts the variables of every UserForm in an OLE
// compound document. Forms that fail to decode are skipped.
func ParseBuffer(data []byte) ([]*FormVariable, error) {
	ofdoc, err := NewOLEFile(data)
	if err != nil {
		return nil, err
	}

	var result []*FormVariable
	for _, form_path := range ofdoc.FormStorages() {
		variables, err := ExtractFormVariables(ofdoc, form_path)
		if err != nil {
			DebugPrintf("%s: %v\n", form_path, err)
			continue
		}
		result = append(result, variables...)
	}
	return result, nil
}

// ParseFile handles a raw OLE file, or a zip (modern Office document)
// whose embedded .bin parts carry the OLE payload.
func ParseFile(filename string) ([]*FormVariable, error) {
	fd, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	signature := make([]byte, len(OLE_SIGNATURE))
	_, err = io.ReadAtLeast(fd, signature, len(OLE_SIGNATURE))
	if err != nil {
		return nil, err
	}

	if string(signature) == OLE_SIGNATURE {
		fd.Seek(0, os.SEEK_SET)
		data, err := ioutil.ReadAll(fd)
		if err != nil {
			return nil, err
		}
		return ParseBuffer(data)
	}

	r, err := zip.OpenReader(filename)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var results []*FormVariable
	for _, f := range r.File {
		if BINFILE_NAME.MatchString(f.Name) {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			data, err := ioutil.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, err
			}
			variables, err := ParseBuffer(data)
			if err == nil {
				results = append(results, variables...)
			}
		}
	}
	return results, nil
}

// DecodeFormString renders compressed OFORMS string bytes (one byte
// per character) as UTF-8. Form streams do not carry a code page, so
// Windows-1252 is assumed like the rest of the office tooling does.
func DecodeFormString(data []byte) string {
	result, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(result)
}
