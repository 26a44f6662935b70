package oleforms

// Decoders for the MS-OFORMS structures stored in a UserForm's "f"
// (form definition) and "o" (associated data) streams. The layouts
// are positional: each structure starts with a version and usually a
// declared length, then a property mask whose bits say which optional
// fields follow. Fields must be consumed in exactly the documented
// order.

const (
	GUID_STD_FONT    = "0BE35203-8F91-11CE-9DE300AA004BB851"
	GUID_TEXT_PROPS  = "AFC20920-DA4E-11CE-B94300AA006887B4"
	GUID_STD_PICTURE = "0BE35204-8F91-11CE-9DE300AA004BB851"

	STD_PICTURE_PREAMBLE = 0x0000746C

	COMPRESSION_FLAG = 0x80000000

	// The only site control type whose stored value we know how to
	// decode (a MorphData control - text box, combo box etc).
	CLSID_CACHE_INDEX_MORPH_DATA = 23
)

// FormVariable is one embedded control of a UserForm. Value is nil
// unless the control is a MorphData control whose stored text was
// recovered from the "o" stream.
type FormVariable struct {
	Name            []byte
	Tag             []byte
	ID              uint32
	TabIndex        uint16
	ClsidCacheIndex uint16
	Value           []byte
}

// decodeCompressedCount reads a CountOfBytesWithCompressionFlag
// (MS-OFORMS 2.4.14.2): 32 bits, top bit is the compression flag, low
// 31 bits are the count. The flag must be set unless the whole field
// is zero - a clear flag with a non-zero count means an uncompressed
// (UTF-16) string, which this decoder does not handle.
func decodeCompressedCount(stream *Cursor) (int, error) {
	count, err := stream.ReadUint32()
	if err != nil {
		return 0, err
	}

	if count&COMPRESSION_FLAG == 0 && count != 0 {
		return 0, stream.violation("CountOfBytesWithCompressionFlag",
			"compressed string", "uncompressed string length", 4)
	}

	return int(count &^ COMPRESSION_FLAG), nil
}

// decodeTextProps consumes a TextProps structure (MS-OFORMS 2.3.1).
// The contents are opaque to us.
func decodeTextProps(stream *Cursor) error {
	err := stream.ExpectVersion("TextProps", 0, 2)
	if err != nil {
		return err
	}

	cb_text_props, err := stream.ReadUint16()
	if err != nil {
		return err
	}

	_, err = stream.Read(int(cb_text_props))
	return err
}

// decodeGuidAndFont consumes a GuidAndFont structure (MS-OFORMS
// 2.4.7). The GUID selects between a StdFont (2.4.12) and a
// TextProps rendition of the font.
func decodeGuidAndFont(stream *Cursor) error {
	guid, err := stream.ReadGUID()
	if err != nil {
		return err
	}

	switch guid {
	case GUID_STD_FONT:
		err := stream.ExpectUint8("StdFont (version)", 1)
		if err != nil {
			return err
		}

		// Skip sCharset, bFlags, sWeight, ulHeight.
		_, err = stream.Read(9)
		if err != nil {
			return err
		}

		face_len, err := stream.ReadUint8()
		if err != nil {
			return err
		}
		_, err = stream.Read(int(face_len))
		return err

	case GUID_TEXT_PROPS:
		return decodeTextProps(stream)
	}

	return stream.violation("GuidAndFont (UUID)",
		GUID_STD_FONT+" or "+GUID_TEXT_PROPS, guid, 16)
}

// decodeGuidAndPicture consumes a GuidAndPicture structure (MS-OFORMS
// 2.4.8) holding a StdPicture (2.4.13). The picture bytes are opaque.
func decodeGuidAndPicture(stream *Cursor) error {
	guid, err := stream.ReadGUID()
	if err != nil {
		return err
	}
	if guid != GUID_STD_PICTURE {
		return stream.violation("GuidAndPicture (UUID)",
			GUID_STD_PICTURE, guid, 16)
	}

	err = stream.ExpectUint32("StdPicture (Preamble)", STD_PICTURE_PREAMBLE)
	if err != nil {
		return err
	}

	size, err := stream.ReadUint32()
	if err != nil {
		return err
	}

	_, err = stream.Read(int(size))
	return err
}

// decodeSiteClassInfo skips one SiteClassInfo record (MS-OFORMS
// 2.2.10.10.1).
func decodeSiteClassInfo(stream *Cursor) error {
	err := stream.ExpectUint16("SiteClassInfo (version)", 0)
	if err != nil {
		return err
	}

	cb_class_table, err := stream.ReadUint16()
	if err != nil {
		return err
	}

	_, err = stream.Read(int(cb_class_table))
	return err
}

// decodeFormObjectDepthTypeCount reads one FormObjectDepthTypeCount
// record (MS-OFORMS 2.2.10.7) and returns the number of sites it
// accounts for.
func decodeFormObjectDepthTypeCount(stream *Cursor) (int, error) {
	// depth byte is not needed for extraction.
	_, err := stream.ReadUint8()
	if err != nil {
		return 0, err
	}

	mixed, err := stream.ReadUint8()
	if err != nil {
		return 0, err
	}

	if mixed&0x80 != 0 {
		err := stream.ExpectUint8("FormObjectDepthTypeCount (SITE_TYPE)", 1)
		if err != nil {
			return 0, err
		}

		count := int(mixed & 0x7F)
		if count == 0 {
			// A zero repeat count can never satisfy CountOfSites.
			return 0, stream.violation(
				"FormObjectDepthTypeCount (count)", "> 0", 0, 2)
		}
		return count, nil
	}

	if mixed != 1 {
		return 0, stream.violation(
			"FormObjectDepthTypeCount (SITE_TYPE)", 1, mixed, 1)
	}
	return 1, nil
}

// decodeOleSiteConcreteControl reads one site record (MS-OFORMS
// 2.2.10.12.1). The declared length covers the SiteDataBlock; the
// name and tag bytes follow it.
func decodeOleSiteConcreteControl(stream *Cursor) (*FormVariable, error) {
	err := stream.ExpectUint16("OleSiteConcreteControl (version)", 0)
	if err != nil {
		return nil, err
	}

	cb_site, err := stream.ReadUint16()
	if err != nil {
		return nil, err
	}

	stream.OpenJump(int(cb_site))

	mask_value, err := stream.ReadUint32()
	if err != nil {
		return nil, err
	}
	propmask := NewSitePropMask(mask_value)

	site := &FormVariable{}

	// SiteDataBlock: MS-OFORMS 2.2.10.12.3
	name_len := 0
	tag_len := 0
	if propmask.Flag("fName") {
		name_len, err = decodeCompressedCount(stream)
		if err != nil {
			return nil, err
		}
	}
	if propmask.Flag("fTag") {
		tag_len, err = decodeCompressedCount(stream)
		if err != nil {
			return nil, err
		}
	}
	if propmask.Flag("fID") {
		site.ID, err = stream.ReadUint32()
		if err != nil {
			return nil, err
		}
	}
	for _, prop := range []string{"fHelpContextID", "fBitFlags", "fObjectStreamSize"} {
		if propmask.Flag(prop) {
			_, err := stream.Read(4)
			if err != nil {
				return nil, err
			}
		}
	}

	stream.OpenPad(2)
	if propmask.Flag("fTabIndex") {
		site.TabIndex, err = stream.ReadUint16()
		if err != nil {
			return nil, err
		}
	}
	if propmask.Flag("fClsidCacheIndex") {
		site.ClsidCacheIndex, err = stream.ReadUint16()
		if err != nil {
			return nil, err
		}
	}
	if propmask.Flag("fGroupID") {
		_, err := stream.Read(2)
		if err != nil {
			return nil, err
		}
	}
	err = stream.CloseRegion()
	if err != nil {
		return nil, err
	}

	for _, prop := range []string{"fControlTipText", "fRuntimeLicKey",
		"fControlSource", "fRowSource"} {
		if propmask.Flag(prop) {
			_, err := stream.Read(4)
			if err != nil {
				return nil, err
			}
		}
	}

	err = stream.CloseRegion()
	if err != nil {
		return nil, err
	}

	// SiteExtraDataBlock: MS-OFORMS 2.2.10.12.4
	site.Name, err = stream.Read(name_len)
	if err != nil {
		return nil, err
	}
	site.Tag, err = stream.Read(tag_len)
	if err != nil {
		return nil, err
	}

	return site, nil
}

// decodeFormControl reads the FormControl structure at the start of
// the "f" stream (MS-OFORMS 2.2.10.1) and returns the form's sites in
// declaration order.
func decodeFormControl(stream *Cursor) ([]*FormVariable, error) {
	err := stream.ExpectVersion("FormControl", 0, 4)
	if err != nil {
		return nil, err
	}

	cb_form, err := stream.ReadUint16()
	if err != nil {
		return nil, err
	}

	stream.OpenJump(int(cb_form))

	mask_value, err := stream.ReadUint32()
	if err != nil {
		return nil, err
	}
	propmask := NewFormPropMask(mask_value)

	// FormDataBlock: MS-OFORMS 2.2.10.3
	for _, prop := range []string{"fBackColor", "fForeColor", "fNextAvailableID"} {
		if propmask.Flag(prop) {
			_, err := stream.Read(4)
			if err != nil {
				return nil, err
			}
		}
	}

	dont_save_class_table := false
	if propmask.Flag("fBooleanProperties") {
		boolean_properties, err := stream.ReadUint32()
		if err != nil {
			return nil, err
		}
		dont_save_class_table = boolean_properties&(1<<15) != 0
	}

	// Skip the rest of the DataBlock and the ExtraDataBlock.
	err = stream.CloseRegion()
	if err != nil {
		return nil, err
	}

	// FormStreamData: MS-OFORMS 2.2.10.5
	if propmask.Flag("fMouseIcon") {
		err := decodeGuidAndPicture(stream)
		if err != nil {
			return nil, err
		}
	}
	if propmask.Flag("fFont") {
		err := decodeGuidAndFont(stream)
		if err != nil {
			return nil, err
		}
	}
	if propmask.Flag("fPicture") {
		err := decodeGuidAndPicture(stream)
		if err != nil {
			return nil, err
		}
	}

	// FormSiteData: MS-OFORMS 2.2.10.6
	if !dont_save_class_table {
		count_of_site_class_info, err := stream.ReadUint16()
		if err != nil {
			return nil, err
		}
		for i := 0; i < int(count_of_site_class_info); i++ {
			err := decodeSiteClassInfo(stream)
			if err != nil {
				return nil, err
			}
		}
	}

	count_of_sites, err := stream.ReadUint32()
	if err != nil {
		return nil, err
	}

	// CountOfBytes - not needed.
	_, err = stream.ReadUint32()
	if err != nil {
		return nil, err
	}

	// Each site needs at least a version and a length word, so a
	// count beyond that bound is a crafted value.
	if int64(count_of_sites) > int64(stream.Remaining())/4 {
		return nil, stream.violation("CountOfSites",
			stream.Remaining()/4, count_of_sites, 8)
	}

	remaining_sites := int(count_of_sites)
	stream.OpenPad(4)
	for remaining_sites > 0 {
		count, err := decodeFormObjectDepthTypeCount(stream)
		if err != nil {
			return nil, err
		}
		remaining_sites -= count
	}
	err = stream.CloseRegion()
	if err != nil {
		return nil, err
	}

	sites := make([]*FormVariable, 0, count_of_sites)
	for i := 0; i < int(count_of_sites); i++ {
		site, err := decodeOleSiteConcreteControl(stream)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, nil
}

// decodeMorphDataControl reads one MorphDataControl (MS-OFORMS
// 2.2.5.1) from the "o" stream and returns its stored value bytes.
func decodeMorphDataControl(stream *Cursor) ([]byte, error) {
	err := stream.ExpectVersion("MorphDataControl", 0, 2)
	if err != nil {
		return nil, err
	}

	cb_morph_data, err := stream.ReadUint16()
	if err != nil {
		return nil, err
	}

	stream.OpenJump(int(cb_morph_data))

	mask_value, err := stream.ReadUint64()
	if err != nil {
		return nil, err
	}
	propmask := NewMorphDataPropMask(mask_value)

	// MorphDataDataBlock: MS-OFORMS 2.2.5.3
	for _, prop := range []string{"fVariousPropertyBits", "fBackColor",
		"fForeColor", "fMaxLength"} {
		if propmask.Flag(prop) {
			_, err := stream.Read(4)
			if err != nil {
				return nil, err
			}
		}
	}

	stream.OpenPad(4)
	for _, prop := range []string{"fBorderStyle", "fScrollBars",
		"fDisplayStyle", "fMousePointer"} {
		if propmask.Flag(prop) {
			_, err := stream.Read(1)
			if err != nil {
				return nil, err
			}
		}
	}
	err = stream.CloseRegion()
	if err != nil {
		return nil, err
	}

	// PasswordChar, BoundColumn, TextColumn, ColumnCount and ListRows
	// are 2 bytes plus padding, ListWidth is a plain 4 bytes - all
	// stored as 4.
	for _, prop := range []string{"fPasswordChar", "fListWidth",
		"fBoundColumn", "fTextColumn", "fColumnCount", "fListRows"} {
		if propmask.Flag(prop) {
			_, err := stream.Read(4)
			if err != nil {
				return nil, err
			}
		}
	}

	stream.OpenPad(4)
	if propmask.Flag("fcColumnInfo") {
		_, err := stream.Read(2)
		if err != nil {
			return nil, err
		}
	}
	for _, prop := range []string{"fMatchEntry", "fListStyle",
		"fShowDropButtonWhen", "fDropButtonStyle", "fMultiSelect"} {
		if propmask.Flag(prop) {
			_, err := stream.Read(1)
			if err != nil {
				return nil, err
			}
		}
	}
	err = stream.CloseRegion()
	if err != nil {
		return nil, err
	}

	value_size := 0
	if propmask.Flag("fValue") {
		value_size, err = decodeCompressedCount(stream)
		if err != nil {
			return nil, err
		}
	}

	for _, prop := range []string{"fCaption", "fPicturePosition",
		"fBorderColor", "fSpecialEffect", "fMouseIcon", "fPicture",
		"fAccelerator", "fGroupName"} {
		if propmask.Flag(prop) {
			_, err := stream.Read(4)
			if err != nil {
				return nil, err
			}
		}
	}

	// MorphDataExtraDataBlock: MS-OFORMS 2.2.5.4 - the Size field is
	// a fixed 8 byte block before the value.
	_, err = stream.Read(8)
	if err != nil {
		return nil, err
	}

	value, err := stream.Read(value_size)
	if err != nil {
		return nil, err
	}

	err = stream.CloseRegion()
	if err != nil {
		return nil, err
	}

	// MorphDataStreamData: MS-OFORMS 2.2.5.5
	if propmask.Flag("fMouseIcon") {
		err := decodeGuidAndPicture(stream)
		if err != nil {
			return nil, err
		}
	}
	if propmask.Flag("fPicture") {
		err := decodeGuidAndPicture(stream)
		if err != nil {
			return nil, err
		}
	}
	err = decodeTextProps(stream)
	if err != nil {
		return nil, err
	}

	return value, nil
}

// extractVariables pairs the form definition stream with the
// associated data stream: the "f" stream yields the ordered site
// list, then for each MorphData site one MorphDataControl is decoded
// from the "o" stream and attached as its value. The two cursors are
// one-shot - a failed site list is fatal for the form, but a failure
// while decoding one site's value only loses the values of that site
// and the sites after it (their metadata survives).
func extractVariables(form_data, object_data []byte, path string) ([]*FormVariable, error) {
	control := NewCursor(form_data, path+"/f")
	variables, err := decodeFormControl(control)
	if err != nil {
		return nil, err
	}

	data := NewCursor(object_data, path+"/o")
	for _, variable := range variables {
		if variable.ClsidCacheIndex != CLSID_CACHE_INDEX_MORPH_DATA {
			DebugPrintf("%v\n", &UnsupportedControlType{
				Path:            path,
				Site:            string(variable.Name),
				ClsidCacheIndex: variable.ClsidCacheIndex,
			})
			continue
		}

		value, err := decodeMorphDataControl(data)
		if err != nil {
			// Keep this site's metadata and move on. The data cursor
			// position is suspect after a failure, so later value
			// decodes may fail too - their metadata still survives.
			DebugPrintf("%s: %v\n", path, err)
			continue
		}
		variable.Value = value
	}
	return variables, nil
}
