package codestream

import (
	"fmt"
	"image"
)

// MaxComponents is the largest component count SIZ can signal.
const MaxComponents = 16384

// Header is the part of a codestream main header the container layer
// needs.
type Header struct {
	// SIZ
	Profile      uint16
	ImageWidth   uint32 // Xsiz: right edge of the reference grid
	ImageHeight  uint32 // Ysiz: bottom edge of the reference grid
	ImageXOffset uint32
	ImageYOffset uint32
	TileWidth    uint32
	TileHeight   uint32
	TileXOffset  uint32
	TileYOffset  uint32
	Components   []ComponentInfo

	// Derived by CalculateDerivedValues.
	NumTilesX uint32
	NumTilesY uint32

	CodingStyle CodingStyleDefault

	// Latin text comments, in codestream order.
	Comments []string
}

// ComponentInfo holds one SIZ component entry.
type ComponentInfo struct {
	// BitDepth is Ssiz: bit 7 is the sign, the rest depth-1.
	BitDepth     uint8
	SubsamplingX uint8
	SubsamplingY uint8
}

// Precision returns the bit precision (1-38).
func (c ComponentInfo) Precision() int {
	return int(c.BitDepth&0x7F) + 1
}

// IsSigned reports whether the component values are signed.
func (c ComponentInfo) IsSigned() bool {
	return c.BitDepth&0x80 != 0
}

// CodingStyleDefault holds the COD fields.
type CodingStyleDefault struct {
	CodingStyle         uint8
	ProgressionOrder    ProgressionOrder
	NumLayers           uint16
	MultipleComponentXf uint8
	NumDecompositions   uint8
	CodeBlockWidthExp   uint8
	CodeBlockHeightExp  uint8
	CodeBlockStyle      uint8
	WaveletTransform    uint8
	PrecinctSizes       []uint8
}

// NumResolutions returns the number of resolution levels.
func (c CodingStyleDefault) NumResolutions() int {
	return int(c.NumDecompositions) + 1
}

// IsReversible reports whether the 5-3 reversible wavelet is used.
func (c CodingStyleDefault) IsReversible() bool {
	return c.WaveletTransform == 1
}

// NumComponents returns the number of components.
func (h *Header) NumComponents() int {
	return len(h.Components)
}

// Bounds returns the image area on the reference grid.
func (h *Header) Bounds() image.Rectangle {
	return image.Rect(int(h.ImageXOffset), int(h.ImageYOffset), int(h.ImageWidth), int(h.ImageHeight))
}

// NumTiles returns the number of tiles in the grid.
func (h *Header) NumTiles() int {
	return int(h.NumTilesX) * int(h.NumTilesY)
}

// TileBounds returns the area of tile i on the reference grid, clipped to
// the image.
func (h *Header) TileBounds(i int) (image.Rectangle, error) {
	if i < 0 || i >= h.NumTiles() {
		return image.Rectangle{}, fmt.Errorf("%w: tile %d of %d", ErrTileIndex, i, h.NumTiles())
	}
	nx := int(h.NumTilesX)
	tx, ty := i%nx, i/nx
	tw, th := int(h.TileWidth), int(h.TileHeight)
	x0, y0 := int(h.TileXOffset)+tx*tw, int(h.TileYOffset)+ty*th
	r := image.Rect(x0, y0, x0+tw, y0+th)
	return r.Intersect(h.Bounds()), nil
}

// ComponentBounds maps r onto the sample grid of component c.
func (h *Header) ComponentBounds(c int, r image.Rectangle) image.Rectangle {
	ci := h.Components[c]
	dx, dy := int(ci.SubsamplingX), int(ci.SubsamplingY)
	return image.Rect(ceilDiv(r.Min.X, dx), ceilDiv(r.Min.Y, dy), ceilDiv(r.Max.X, dx), ceilDiv(r.Max.Y, dy))
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// Validate checks the header for consistency.
func (h *Header) Validate() error {
	if h.ImageWidth <= h.ImageXOffset || h.ImageHeight <= h.ImageYOffset {
		return fmt.Errorf("%w: image area %v is empty", ErrInvalidHeader, h.Bounds())
	}
	if h.TileWidth == 0 || h.TileHeight == 0 {
		return fmt.Errorf("%w: tile size %dx%d", ErrInvalidHeader, h.TileWidth, h.TileHeight)
	}
	if h.TileXOffset > h.ImageXOffset || h.TileYOffset > h.ImageYOffset ||
		uint64(h.TileXOffset)+uint64(h.TileWidth) <= uint64(h.ImageXOffset) ||
		uint64(h.TileYOffset)+uint64(h.TileHeight) <= uint64(h.ImageYOffset) {
		return fmt.Errorf("%w: first tile does not cover the image origin", ErrInvalidHeader)
	}
	if n := len(h.Components); n == 0 || n > MaxComponents {
		return fmt.Errorf("%w: %d components", ErrInvalidHeader, n)
	}
	for i, c := range h.Components {
		if c.SubsamplingX == 0 || c.SubsamplingY == 0 {
			return fmt.Errorf("%w: component %d subsampling %dx%d", ErrInvalidHeader, i, c.SubsamplingX, c.SubsamplingY)
		}
		if p := c.Precision(); p > 38 {
			return fmt.Errorf("%w: component %d precision %d", ErrInvalidHeader, i, p)
		}
	}
	return nil
}

// CalculateDerivedValues computes the tile grid size.
func (h *Header) CalculateDerivedValues() {
	if h.TileWidth > 0 && h.ImageWidth > h.TileXOffset {
		h.NumTilesX = (h.ImageWidth - h.TileXOffset + h.TileWidth - 1) / h.TileWidth
	}
	if h.TileHeight > 0 && h.ImageHeight > h.TileYOffset {
		h.NumTilesY = (h.ImageHeight - h.TileYOffset + h.TileHeight - 1) / h.TileHeight
	}
}
