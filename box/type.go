package box

import (
	"encoding/binary"
	"fmt"
)

// Type represents a 4-byte box type code.
type Type uint32

// Box type codes
const (
	// Signature and file type
	TypeJP2Signature Type = 0x6A502020 // "jP  " - JP2 signature box
	TypeFileType     Type = 0x66747970 // "ftyp" - File type box

	// JP2 header
	TypeJP2Header    Type = 0x6A703268 // "jp2h" - JP2 header super-box
	TypeImageHeader  Type = 0x69686472 // "ihdr" - Image header box
	TypeBitsPerComp  Type = 0x62706363 // "bpcc" - Bits per component box
	TypeColorSpec    Type = 0x636F6C72 // "colr" - Color specification box
	TypePalette      Type = 0x70636C72 // "pclr" - Palette box
	TypeComponentMap Type = 0x636D6170 // "cmap" - Component mapping box
	TypeChannelDef   Type = 0x63646566 // "cdef" - Channel definition box
	TypeResolution   Type = 0x72657320 // "res " - Resolution super-box
	TypeCaptureRes   Type = 0x72657363 // "resc" - Capture resolution box
	TypeDisplayRes   Type = 0x72657364 // "resd" - Default display resolution box

	// Codestream
	TypeContCodestream Type = 0x6A703263 // "jp2c" - Contiguous codestream box

	// Metadata
	TypeXML      Type = 0x786D6C20 // "xml " - XML box
	TypeUUID     Type = 0x75756964 // "uuid" - UUID box
	TypeUUIDInfo Type = 0x75696E66 // "uinf" - UUID info super-box
	TypeUUIDList Type = 0x756C7374 // "ulst" - UUID list box
	TypeURL      Type = 0x75726C20 // "url " - Data entry URL box

	// IPR
	TypeIPR Type = 0x6A703269 // "jp2i" - Intellectual property rights box
)

// BrandJP2 is the "jp2 " brand written in file type boxes.
const BrandJP2 Type = 0x6A703220

// String returns the 4-character type code.
func (t Type) String() string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(t))
	return string(b[:])
}

// ParseType packs a 4-character code into a Type. Trailing spaces are
// significant.
func ParseType(s string) (Type, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("box: type code %q is not 4 bytes", s)
	}
	return Type(binary.BigEndian.Uint32([]byte(s))), nil
}

// MustParseType is like ParseType but panics on error.
func MustParseType(s string) Type {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}
