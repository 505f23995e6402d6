package box

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/mrjoshuak/go-jp2/tree"
)

// signature is the content of the JP2 signature box.
var signature = []byte{0x0D, 0x0A, 0x87, 0x0A}

// SignatureBox is the fixed 12-byte box that starts every JP2 file.
type SignatureBox struct{}

// Len returns the size of the fixed signature.
func (b *SignatureBox) Len() int { return len(signature) }

// Parse validates the signature bytes.
func (b *SignatureBox) Parse(data []byte) error {
	if !bytes.Equal(data, signature) {
		return ErrBadSignature
	}
	return nil
}

// Bytes returns the box contents.
func (b *SignatureBox) Bytes() []byte {
	return append([]byte{}, signature...)
}

// AppendNode does nothing; the signature has no fields.
func (b *SignatureBox) AppendNode(n *tree.Node) {}

// ParseNode accepts any node.
func (b *SignatureBox) ParseNode(n *tree.Node) error { return nil }

// FileTypeBox represents the ftyp box.
type FileTypeBox struct {
	Brand         Type
	MinorVersion  uint32
	Compatibility []Type
}

// NewFileTypeBox returns the file type box for a plain JP2 file.
func NewFileTypeBox() *FileTypeBox {
	return &FileTypeBox{Brand: BrandJP2, Compatibility: []Type{BrandJP2}}
}

// Len returns the size of the encoded contents.
func (b *FileTypeBox) Len() int { return 8 + 4*len(b.Compatibility) }

// Parse parses the file type box.
func (b *FileTypeBox) Parse(data []byte) error {
	if len(data) < 8 || len(data)%4 != 0 {
		return fmt.Errorf("file type box of %d bytes: %w", len(data), ErrTruncated)
	}
	b.Brand = Type(binary.BigEndian.Uint32(data[0:4]))
	b.MinorVersion = binary.BigEndian.Uint32(data[4:8])

	numCompat := (len(data) - 8) / 4
	b.Compatibility = make([]Type, numCompat)
	for i := 0; i < numCompat; i++ {
		b.Compatibility[i] = Type(binary.BigEndian.Uint32(data[8+i*4:]))
	}
	return nil
}

// Bytes returns the box contents.
func (b *FileTypeBox) Bytes() []byte {
	data := make([]byte, b.Len())
	binary.BigEndian.PutUint32(data[0:4], uint32(b.Brand))
	binary.BigEndian.PutUint32(data[4:8], b.MinorVersion)
	for i, c := range b.Compatibility {
		binary.BigEndian.PutUint32(data[8+i*4:], uint32(c))
	}
	return data
}

func (b *FileTypeBox) fields() []field {
	return []field{
		typeField("Brand", &b.Brand),
		uint32Field("MinorVersion", &b.MinorVersion),
		typesField("CompatibilityList", &b.Compatibility),
	}
}

// AppendNode adds the fields of b to n.
func (b *FileTypeBox) AppendNode(n *tree.Node) { appendFields(n, b.fields()) }

// ParseNode sets the fields of b from the children of n.
func (b *FileTypeBox) ParseNode(n *tree.Node) error { return parseFields(n, b.fields()) }

// ImageHeaderBox represents the image header box.
type ImageHeaderBox struct {
	Height            uint32
	Width             uint32
	NumComponents     uint16
	BitsPerComponent  uint8 // (depth-1) | 0x80 if signed, or 0xFF for BPC box
	CompressionType   uint8 // Always 7 for JP2
	UnknownColorspace uint8
	IPR               uint8
}

// BitsPerComponentVary marks an image header whose component depths are
// given by a bits per component box.
const BitsPerComponentVary = 0xFF

// EncodeBitDepth packs a bit depth and sign flag the way image header and
// bits per component boxes store them.
func EncodeBitDepth(depth int, signed bool) uint8 {
	v := uint8(depth-1) & 0x7F
	if signed {
		v |= 0x80
	}
	return v
}

// DecodeBitDepth unpacks a stored bit depth.
func DecodeBitDepth(v uint8) (depth int, signed bool) {
	return int(v&0x7F) + 1, v&0x80 != 0
}

// Precision returns the component bit depth.
func (b *ImageHeaderBox) Precision() int {
	d, _ := DecodeBitDepth(b.BitsPerComponent)
	return d
}

// Signed reports whether components are signed.
func (b *ImageHeaderBox) Signed() bool {
	_, s := DecodeBitDepth(b.BitsPerComponent)
	return s
}

// BitsPerComponentVaries reports whether depths come from a bpcc box.
func (b *ImageHeaderBox) BitsPerComponentVaries() bool {
	return b.BitsPerComponent == BitsPerComponentVary
}

// Len returns the fixed size of an image header.
func (b *ImageHeaderBox) Len() int { return 14 }

// Parse parses the image header box contents.
func (b *ImageHeaderBox) Parse(data []byte) error {
	if len(data) != 14 {
		return fmt.Errorf("image header box of %d bytes: %w", len(data), ErrTruncated)
	}
	b.Height = binary.BigEndian.Uint32(data[0:4])
	b.Width = binary.BigEndian.Uint32(data[4:8])
	b.NumComponents = binary.BigEndian.Uint16(data[8:10])
	b.BitsPerComponent = data[10]
	b.CompressionType = data[11]
	b.UnknownColorspace = data[12]
	b.IPR = data[13]
	return nil
}

// Bytes returns the box contents.
func (b *ImageHeaderBox) Bytes() []byte {
	data := make([]byte, 14)
	binary.BigEndian.PutUint32(data[0:4], b.Height)
	binary.BigEndian.PutUint32(data[4:8], b.Width)
	binary.BigEndian.PutUint16(data[8:10], b.NumComponents)
	data[10] = b.BitsPerComponent
	data[11] = b.CompressionType
	data[12] = b.UnknownColorspace
	data[13] = b.IPR
	return data
}

func (b *ImageHeaderBox) fields() []field {
	return []field{
		uint32Field("Height", &b.Height),
		uint32Field("Width", &b.Width),
		uint16Field("NumComponents", &b.NumComponents),
		uint8Field("BitDepth", &b.BitsPerComponent),
		uint8Field("CompressionType", &b.CompressionType),
		uint8Field("UnknownColorspace", &b.UnknownColorspace),
		uint8Field("IntellectualProperty", &b.IPR),
	}
}

// AppendNode adds the fields of b to n.
func (b *ImageHeaderBox) AppendNode(n *tree.Node) { appendFields(n, b.fields()) }

// ParseNode sets the fields of b from the children of n.
func (b *ImageHeaderBox) ParseNode(n *tree.Node) error { return parseFields(n, b.fields()) }

// BitsPerCompBox represents per-component bit depth.
type BitsPerCompBox struct {
	BitsPerComponent []uint8
}

// Len returns the size of the encoded contents.
func (b *BitsPerCompBox) Len() int { return len(b.BitsPerComponent) }

// Parse parses the bits per component box.
func (b *BitsPerCompBox) Parse(data []byte) error {
	b.BitsPerComponent = make([]uint8, len(data))
	copy(b.BitsPerComponent, data)
	return nil
}

// Bytes returns the box contents.
func (b *BitsPerCompBox) Bytes() []byte {
	return append([]byte{}, b.BitsPerComponent...)
}

func (b *BitsPerCompBox) fields() []field {
	return []field{bytesField("BitDepth", &b.BitsPerComponent)}
}

// AppendNode adds the fields of b to n.
func (b *BitsPerCompBox) AppendNode(n *tree.Node) { appendFields(n, b.fields()) }

// ParseNode sets the fields of b from the children of n.
func (b *BitsPerCompBox) ParseNode(n *tree.Node) error { return parseFields(n, b.fields()) }
