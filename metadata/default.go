package metadata

import (
	"image/color"

	"github.com/mrjoshuak/go-jp2/box"
)

// ColorKind selects the color specification written for an image.
type ColorKind int

const (
	ColorUnknown ColorKind = iota // no color specification box
	ColorRGB                      // enumerated sRGB
	ColorGray                     // enumerated greyscale
	ColorYCC                      // enumerated sYCC
	ColorICC                      // restricted ICC profile
)

// ImageSpec describes the image a default collection is built for.
type ImageSpec struct {
	Width, Height int

	// BitDepths holds one entry per component, including alpha.
	BitDepths []int
	Signed    bool

	Color      ColorKind
	ICCProfile []byte

	// Alpha marks the last component as opacity.
	Alpha         bool
	Premultiplied bool

	// Palette, when set, makes the image a single index component.
	Palette color.Palette
}

// ForImage returns the boxes a JP2 writer emits for an image: signature,
// file type, color specification, channel definitions when there is an
// alpha channel, palette and component mapping when the image is indexed,
// bits per component when depths differ, and the image header.
func ForImage(spec ImageSpec, opts ...Option) *Metadata {
	m := New(opts...)
	m.Add(box.FromPayload(box.TypeJP2Signature, &box.SignatureBox{}))
	m.Add(box.FromPayload(box.TypeFileType, box.NewFileTypeBox()))

	switch spec.Color {
	case ColorRGB:
		m.Add(box.FromPayload(box.TypeColorSpec, box.NewEnumeratedColorSpec(box.CSSRGB)))
	case ColorGray:
		m.Add(box.FromPayload(box.TypeColorSpec, box.NewEnumeratedColorSpec(box.CSGray)))
	case ColorYCC:
		m.Add(box.FromPayload(box.TypeColorSpec, box.NewEnumeratedColorSpec(box.CSsYCC)))
	case ColorICC:
		m.Add(box.FromPayload(box.TypeColorSpec, box.NewICCColorSpec(spec.ICCProfile)))
	}

	numComps := len(spec.BitDepths)
	if spec.Alpha && numComps > 1 {
		m.Add(box.FromPayload(box.TypeChannelDef, box.NewChannelDefForAlpha(numComps-1, spec.Premultiplied)))
	}

	if len(spec.Palette) > 0 {
		pal := box.NewPaletteFromColors(spec.Palette, paletteHasAlpha(spec.Palette))
		m.Add(box.FromPayload(box.TypePalette, pal))
		m.Add(box.FromPayload(box.TypeComponentMap, box.NewPaletteMapping(pal.NumColumns())))
	}

	bpc := uint8(box.BitsPerComponentVary)
	if numComps > 0 && uniform(spec.BitDepths) {
		bpc = box.EncodeBitDepth(spec.BitDepths[0], spec.Signed)
	} else if numComps > 0 {
		bits := make([]uint8, numComps)
		for i, d := range spec.BitDepths {
			bits[i] = box.EncodeBitDepth(d, spec.Signed)
		}
		m.Add(box.FromPayload(box.TypeBitsPerComp, &box.BitsPerCompBox{BitsPerComponent: bits}))
	}

	hdr := &box.ImageHeaderBox{
		Height:           uint32(spec.Height),
		Width:            uint32(spec.Width),
		NumComponents:    uint16(numComps),
		BitsPerComponent: bpc,
		CompressionType:  7,
	}
	if spec.Color == ColorUnknown {
		hdr.UnknownColorspace = 1
	}
	if m.ElementOf(box.TypeIPR) != nil {
		hdr.IPR = 1
	}
	m.Add(box.FromPayload(box.TypeImageHeader, hdr))
	return m
}

func paletteHasAlpha(p color.Palette) bool {
	for _, c := range p {
		if _, _, _, a := c.RGBA(); a != 0xFFFF {
			return true
		}
	}
	return false
}
