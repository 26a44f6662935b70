package oleforms

import "fmt"

// FormatViolation is returned when a fixed value embedded in a form
// stream (magic, version, GUID, reserved field) does not match what
// MS-OFORMS requires at that position. The layouts are positional and
// not self describing, so a single bad value makes everything after it
// meaningless.
type FormatViolation struct {
	Path     string
	Offset   int
	Field    string
	Expected interface{}
	Actual   interface{}
}

func (self *FormatViolation) Error() string {
	return fmt.Sprintf("%s:%d: invalid %s: expected %v got %v",
		self.Path, self.Offset, self.Field, self.Expected, self.Actual)
}

// StreamTruncated is returned when a read runs past the end of the
// stream - either the document is cut short or a declared length was
// larger than the bytes actually present.
type StreamTruncated struct {
	Path      string
	Offset    int
	Wanted    int
	Remaining int
}

func (self *StreamTruncated) Error() string {
	return fmt.Sprintf("%s:%d: stream truncated: wanted %d bytes, %d remain",
		self.Path, self.Offset, self.Wanted, self.Remaining)
}

// UnsupportedControlType marks a site whose stored value we can not
// decode. It is never fatal: the site keeps its metadata with a nil
// value and extraction of the remaining sites continues.
type UnsupportedControlType struct {
	Path            string
	Site            string
	ClsidCacheIndex uint16
}

func (self *UnsupportedControlType) Error() string {
	return fmt.Sprintf("%s: unsupported stored type %d for site %q",
		self.Path, self.ClsidCacheIndex, self.Site)
}
