package jp2

import (
	"fmt"
	"math"

	"github.com/mrjoshuak/go-jp2/box"
)

// ColorSpace is the color space of decoded samples.
type ColorSpace int

const (
	// ColorSpaceUnspecified means the file has no enumerated color space:
	// either no colr box, an ICC profile or UnknownColorspace set.
	ColorSpaceUnspecified ColorSpace = iota
	ColorSpaceSRGB
	ColorSpaceGray
	ColorSpaceSYCC
	ColorSpaceEYCC
	ColorSpaceCMYK
	ColorSpaceBilevel
	ColorSpaceYCbCr2 // BT.601, 625 lines
	ColorSpaceYCbCr3 // BT.601, 525 lines
	ColorSpacePhotoYCC
	ColorSpaceCMY
	ColorSpaceYCCK
	ColorSpaceCIELab
	ColorSpaceCIEJab
	ColorSpaceESRGB
	ColorSpaceROMMRGB
	ColorSpaceYPbPr60
	ColorSpaceYPbPr50

	// ColorSpaceUnknown is an enumerated value this package does not know.
	ColorSpaceUnknown ColorSpace = -1
)

var colorSpaceEnums = []struct {
	cs   ColorSpace
	enum uint32
	name string
}{
	{ColorSpaceSRGB, box.CSSRGB, "sRGB"},
	{ColorSpaceGray, box.CSGray, "Gray"},
	{ColorSpaceSYCC, box.CSsYCC, "sYCC"},
	{ColorSpaceSYCC, box.CSYCbCr1, "sYCC"},
	{ColorSpaceEYCC, box.CSeSYCC, "e-sYCC"},
	{ColorSpaceCMYK, box.CSCMYK, "CMYK"},
	{ColorSpaceBilevel, box.CSBilevel1, "Bilevel"},
	{ColorSpaceBilevel, box.CSBilevel2, "Bilevel"},
	{ColorSpaceYCbCr2, box.CSYCbCr2, "YCbCr(2)"},
	{ColorSpaceYCbCr3, box.CSYCbCr3, "YCbCr(3)"},
	{ColorSpacePhotoYCC, box.CSPhotoYCC, "PhotoYCC"},
	{ColorSpaceCMY, box.CSCMY, "CMY"},
	{ColorSpaceYCCK, box.CSYCCK, "YCCK"},
	{ColorSpaceCIELab, box.CSCIELab, "CIELab"},
	{ColorSpaceCIEJab, box.CSCIEJab, "CIEJab"},
	{ColorSpaceESRGB, box.CSeSRGB, "e-sRGB"},
	{ColorSpaceROMMRGB, box.CSROMMRGB, "ROMM-RGB"},
	{ColorSpaceYPbPr60, box.CSYPbPr1125, "YPbPr(1125/60)"},
	{ColorSpaceYPbPr50, box.CSYPbPr1250, "YPbPr(1250/50)"},
}

// ColorSpaceFromEnum maps an enumerated colorspace value (EnumCS) to a
// ColorSpace.
func ColorSpaceFromEnum(enum uint32) ColorSpace {
	for _, e := range colorSpaceEnums {
		if e.enum == enum {
			return e.cs
		}
	}
	return ColorSpaceUnknown
}

// Enum returns the EnumCS value written for cs. The first listed value
// wins where several map to the same color space.
func (cs ColorSpace) Enum() (uint32, bool) {
	for _, e := range colorSpaceEnums {
		if e.cs == cs {
			return e.enum, true
		}
	}
	return 0, false
}

func (cs ColorSpace) String() string {
	switch cs {
	case ColorSpaceUnspecified:
		return "Unspecified"
	case ColorSpaceUnknown:
		return "Unknown"
	}
	for _, e := range colorSpaceEnums {
		if e.cs == cs {
			return e.name
		}
	}
	return fmt.Sprintf("ColorSpace(%d)", int(cs))
}

// colorSpaceOf reads the color space from a colr payload.
func colorSpaceOf(c *box.ColorSpecBox) ColorSpace {
	if c == nil || c.Method != box.MethodEnumerated {
		return ColorSpaceUnspecified
	}
	return ColorSpaceFromEnum(c.EnumeratedColorspace)
}

// colorConversion converts color planes in place to sRGB and returns the
// planes that remain.
type colorConversion func(planes [][]int32, precision int) [][]int32

// getColorConversion returns nil when samples are used as they are.
func getColorConversion(cs ColorSpace) colorConversion {
	switch cs {
	case ColorSpaceSYCC, ColorSpaceEYCC, ColorSpaceYPbPr60, ColorSpaceYPbPr50:
		return convertYCC709ToRGB
	case ColorSpaceYCbCr2, ColorSpaceYCbCr3:
		return convertYCC601ToRGB
	case ColorSpaceCMY:
		return convertCMYToRGB
	case ColorSpaceCMYK:
		return convertCMYKToRGB
	case ColorSpaceCIELab:
		return convertCIELabToRGB
	}
	return nil
}

func convertYCC709ToRGB(planes [][]int32, precision int) [][]int32 {
	return convertYCC(planes, precision, 1.5748, 0.1873, 0.4681, 1.8556)
}

func convertYCC601ToRGB(planes [][]int32, precision int) [][]int32 {
	return convertYCC(planes, precision, 1.402, 0.344136, 0.714136, 1.772)
}

// convertYCC inverts a YCbCr matrix with chroma centred on half range.
func convertYCC(planes [][]int32, precision int, crR, cbG, crG, cbB float64) [][]int32 {
	if len(planes) < 3 {
		return planes
	}
	maxVal := float64(int32(1)<<precision - 1)
	half := float64(int32(1) << (precision - 1))
	for i := range planes[0] {
		y := float64(planes[0][i])
		cb := float64(planes[1][i]) - half
		cr := float64(planes[2][i]) - half
		planes[0][i] = clampToInt32(y+crR*cr, 0, maxVal)
		planes[1][i] = clampToInt32(y-cbG*cb-crG*cr, 0, maxVal)
		planes[2][i] = clampToInt32(y+cbB*cb, 0, maxVal)
	}
	return planes
}

func convertCMYToRGB(planes [][]int32, precision int) [][]int32 {
	if len(planes) < 3 {
		return planes
	}
	maxVal := int32(1)<<precision - 1
	for _, p := range planes[:3] {
		for i, v := range p {
			p[i] = maxVal - v
		}
	}
	return planes
}

// convertCMYKToRGB folds the key plane into the other three and drops it.
func convertCMYKToRGB(planes [][]int32, precision int) [][]int32 {
	if len(planes) < 4 {
		return planes
	}
	maxVal := float64(int32(1)<<precision - 1)
	for i := range planes[0] {
		k := 1 - float64(planes[3][i])/maxVal
		for c := 0; c < 3; c++ {
			v := (1 - float64(planes[c][i])/maxVal) * k * maxVal
			planes[c][i] = clampToInt32(v, 0, maxVal)
		}
	}
	return append(planes[:3:3], planes[4:]...)
}

// convertCIELabToRGB uses the default Lab range (L 0-100, a and b offset
// by 128) and the D50 white point.
func convertCIELabToRGB(planes [][]int32, precision int) [][]int32 {
	if len(planes) < 3 {
		return planes
	}
	maxVal := float64(int32(1)<<precision - 1)
	const xn, yn, zn = 0.96422, 1.0, 0.82521
	for i := range planes[0] {
		l := float64(planes[0][i]) / maxVal * 100
		a := float64(planes[1][i])/maxVal*255 - 128
		b := float64(planes[2][i])/maxVal*255 - 128

		fy := (l + 16) / 116
		x := xn * labInverseF(a/500+fy)
		y := yn * labInverseF(fy)
		z := zn * labInverseF(fy-b/200)

		r := 3.2404542*x - 1.5371385*y - 0.4985314*z
		g := -0.9692660*x + 1.8760108*y + 0.0415560*z
		bl := 0.0556434*x - 0.2040259*y + 1.0572252*z

		planes[0][i] = clampToInt32(srgbGamma(r)*maxVal, 0, maxVal)
		planes[1][i] = clampToInt32(srgbGamma(g)*maxVal, 0, maxVal)
		planes[2][i] = clampToInt32(srgbGamma(bl)*maxVal, 0, maxVal)
	}
	return planes
}

func labInverseF(t float64) float64 {
	const delta = 6.0 / 29.0
	if t > delta {
		return t * t * t
	}
	return 3 * delta * delta * (t - 4.0/29.0)
}

func srgbGamma(linear float64) float64 {
	if linear <= 0.0031308 {
		return 12.92 * linear
	}
	return 1.055*math.Pow(linear, 1/2.4) - 0.055
}

func clampToInt32(v, min, max float64) int32 {
	if v < min {
		return int32(min)
	}
	if v > max {
		return int32(max)
	}
	return int32(v + 0.5)
}
