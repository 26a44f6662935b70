package oleforms

import "strings"

// A PropertyMask turns a bit-packed integer into an ordered list of
// named boolean flags. Every bit gets a name, reserved and unused
// bits included, so decode steps can be written as a flat sequence
// gated on flag names and audited against the MS-OFORMS tables.
type PropertyMask struct {
	value uint64
	names []string
}

func NewPropertyMask(value uint64, names []string) PropertyMask {
	return PropertyMask{value: value, names: names}
}

// Bit reports bit i of the backing value, LSB first.
func (self PropertyMask) Bit(i int) bool {
	return self.value&(1<<uint(i)) != 0
}

// Flag reports the bit whose declared name matches. Unknown names are
// simply unset.
func (self PropertyMask) Flag(name string) bool {
	for i, n := range self.names {
		if n == name {
			return self.Bit(i)
		}
	}
	return false
}

func (self PropertyMask) String() string {
	var set []string
	for i, n := range self.names {
		if self.Bit(i) {
			set = append(set, n)
		}
	}
	return strings.Join(set, ", ")
}

// FormPropMask: MS-OFORMS 2.2.10.2
var FORM_PROP_MASK_NAMES = []string{
	"Unused1", "fBackColor", "fForeColor", "fNextAvailableID",
	"Unused2_0", "Unused2_1", "fBooleanProperties", "fBorderStyle",
	"fMousePointer", "fScrollBars", "fDisplayedSize", "fLogicalSize",
	"fScrollPosition", "fGroupCnt", "Reserved", "fMouseIcon", "fCycle",
	"fSpecialEffect", "fBorderColor", "fCaption", "fFont", "fPicture",
	"fZoom", "fPictureAlignment", "fPictureTiling", "fPictureSizeMode",
	"fShapeCookie", "fDrawBuffer",
}

// SitePropMask: MS-OFORMS 2.2.10.12.2
var SITE_PROP_MASK_NAMES = []string{
	"fName", "fTag", "fID", "fHelpContextID", "fBitFlags",
	"fObjectStreamSize", "fTabIndex", "fClsidCacheIndex", "fPosition",
	"fGroupID", "Unused1", "fControlTipText", "fRuntimeLicKey",
	"fControlSource", "fRowSource",
}

// MorphDataPropMask: MS-OFORMS 2.2.5.2
var MORPH_DATA_PROP_MASK_NAMES = []string{
	"fVariousPropertyBits", "fBackColor", "fForeColor", "fMaxLength",
	"fBorderStyle", "fScrollBars", "fDisplayStyle", "fMousePointer",
	"fSize", "fPasswordChar", "fListWidth", "fBoundColumn",
	"fTextColumn", "fColumnCount", "fListRows", "fcColumnInfo",
	"fMatchEntry", "fListStyle", "fShowDropButtonWhen", "UnusedBits1",
	"fDropButtonStyle", "fMultiSelect", "fValue", "fCaption",
	"fPicturePosition", "fBorderColor", "fSpecialEffect", "fMouseIcon",
	"fPicture", "fAccelerator", "UnusedBits2", "Reserved", "fGroupName",
}

func NewFormPropMask(value uint32) PropertyMask {
	return NewPropertyMask(uint64(value), FORM_PROP_MASK_NAMES)
}

func NewSitePropMask(value uint32) PropertyMask {
	return NewPropertyMask(uint64(value), SITE_PROP_MASK_NAMES)
}

func NewMorphDataPropMask(value uint64) PropertyMask {
	return NewPropertyMask(value, MORPH_DATA_PROP_MASK_NAMES)
}
