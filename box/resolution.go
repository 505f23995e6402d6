package box

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/mrjoshuak/go-jp2/tree"
)

// ResolutionBox holds a capture or default display resolution in grid
// points per metre. Each value is Numerator * 10^Exponent / Denominator.
type ResolutionBox struct {
	VerticalNumerator     uint16
	VerticalDenominator   uint16
	HorizontalNumerator   uint16
	HorizontalDenominator uint16
	VerticalExponent      int8
	HorizontalExponent    int8
}

// NewResolution converts vertical and horizontal resolutions to their
// stored form.
func NewResolution(vRes, hRes float64) *ResolutionBox {
	b := &ResolutionBox{}
	b.VerticalNumerator, b.VerticalDenominator, b.VerticalExponent = toRational(vRes)
	b.HorizontalNumerator, b.HorizontalDenominator, b.HorizontalExponent = toRational(hRes)
	return b
}

// toRational picks the power of ten that keeps the most significant digits
// of v within a 16-bit numerator.
func toRational(v float64) (num, den uint16, exp int8) {
	if !(v > 0) || math.IsInf(v, 0) {
		return 0, 1, 0
	}
	e := 0
	for v > math.MaxUint16 && e < math.MaxInt8 {
		v /= 10
		e++
	}
	for e > math.MinInt8 && v*10 <= math.MaxUint16 && math.Abs(v-math.Round(v)) > 1e-9*v {
		v *= 10
		e--
	}
	r := math.Round(v)
	if r > math.MaxUint16 {
		r = math.MaxUint16
	}
	return uint16(r), 1, int8(e)
}

func fromRational(num, den uint16, exp int8) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) * math.Pow10(int(exp)) / float64(den)
}

// Vertical returns the vertical resolution.
func (b *ResolutionBox) Vertical() float64 {
	return fromRational(b.VerticalNumerator, b.VerticalDenominator, b.VerticalExponent)
}

// Horizontal returns the horizontal resolution.
func (b *ResolutionBox) Horizontal() float64 {
	return fromRational(b.HorizontalNumerator, b.HorizontalDenominator, b.HorizontalExponent)
}

func (b *ResolutionBox) Len() int { return 10 }

// Parse parses the resolution box.
func (b *ResolutionBox) Parse(data []byte) error {
	if len(data) != 10 {
		return fmt.Errorf("resolution box of %d bytes: %w", len(data), ErrTruncated)
	}
	b.VerticalNumerator = binary.BigEndian.Uint16(data[0:2])
	b.VerticalDenominator = binary.BigEndian.Uint16(data[2:4])
	b.HorizontalNumerator = binary.BigEndian.Uint16(data[4:6])
	b.HorizontalDenominator = binary.BigEndian.Uint16(data[6:8])
	b.VerticalExponent = int8(data[8])
	b.HorizontalExponent = int8(data[9])
	return nil
}

// Bytes returns the box contents.
func (b *ResolutionBox) Bytes() []byte {
	data := make([]byte, 10)
	binary.BigEndian.PutUint16(data[0:2], b.VerticalNumerator)
	binary.BigEndian.PutUint16(data[2:4], b.VerticalDenominator)
	binary.BigEndian.PutUint16(data[4:6], b.HorizontalNumerator)
	binary.BigEndian.PutUint16(data[6:8], b.HorizontalDenominator)
	data[8] = byte(b.VerticalExponent)
	data[9] = byte(b.HorizontalExponent)
	return data
}

func (b *ResolutionBox) fields() []field {
	return []field{
		uint16Field("VerticalResolutionNumerator", &b.VerticalNumerator),
		uint16Field("VerticalResolutionDenominator", &b.VerticalDenominator),
		uint16Field("HorizontalResolutionNumerator", &b.HorizontalNumerator),
		uint16Field("HorizontalResolutionDenominator", &b.HorizontalDenominator),
		int8Field("VerticalResolutionExponent", &b.VerticalExponent),
		int8Field("HorizontalResolutionExponent", &b.HorizontalExponent),
	}
}

func (b *ResolutionBox) AppendNode(n *tree.Node)      { appendFields(n, b.fields()) }
func (b *ResolutionBox) ParseNode(n *tree.Node) error { return parseFields(n, b.fields()) }
