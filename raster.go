package jp2

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// PixelFormat describes the components of a Raster.
type PixelFormat struct {
	// Depths holds the bit depth of every component, alpha included.
	Depths []int
	Signed bool

	// Alpha marks the last component as opacity.
	Alpha         bool
	Premultiplied bool

	// Palette, when set, makes the single component an index into it.
	Palette color.Palette

	ColorSpace ColorSpace
}

// NumComponents returns the number of components.
func (pf PixelFormat) NumComponents() int { return len(pf.Depths) }

// NumColors returns the number of components that are not opacity.
func (pf PixelFormat) NumColors() int {
	if pf.Alpha && len(pf.Depths) > 0 {
		return len(pf.Depths) - 1
	}
	return len(pf.Depths)
}

// Raster holds planar samples, one int32 slice per component in row-major
// order.
type Raster struct {
	Width, Height int
	Format        PixelFormat
	Planes        [][]int32
}

// NewRaster allocates a zeroed raster.
func NewRaster(width, height int, pf PixelFormat) *Raster {
	r := &Raster{Width: width, Height: height, Format: pf}
	r.Planes = make([][]int32, pf.NumComponents())
	for i := range r.Planes {
		r.Planes[i] = make([]int32, width*height)
	}
	return r
}

// Validate checks that the planes match the format and size.
func (r *Raster) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("jp2: raster size %dx%d", r.Width, r.Height)
	}
	if len(r.Planes) == 0 || len(r.Planes) != r.Format.NumComponents() {
		return fmt.Errorf("jp2: %d planes for %d components", len(r.Planes), r.Format.NumComponents())
	}
	for i, p := range r.Planes {
		if len(p) != r.Width*r.Height {
			return fmt.Errorf("jp2: plane %d has %d samples, want %d", i, len(p), r.Width*r.Height)
		}
		if d := r.Format.Depths[i]; d < 1 || d > 31 {
			return fmt.Errorf("jp2: component %d depth %d", i, d)
		}
	}
	if r.Format.Palette != nil && len(r.Planes) != 1 {
		return errors.New("jp2: a paletted raster has exactly one component")
	}
	return nil
}

// FromImage copies img into a raster. Gray and paletted images keep their
// form; everything else becomes 8 or 16 bit RGB, with alpha unless the
// image is opaque.
func FromImage(img image.Image) (*Raster, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("jp2: empty image %v", b)
	}

	switch m := img.(type) {
	case *image.Gray:
		r := NewRaster(w, h, PixelFormat{Depths: []int{8}, ColorSpace: ColorSpaceGray})
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r.Planes[0][y*w+x] = int32(m.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		return r, nil

	case *image.Gray16:
		r := NewRaster(w, h, PixelFormat{Depths: []int{16}, ColorSpace: ColorSpaceGray})
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r.Planes[0][y*w+x] = int32(m.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		return r, nil

	case *image.Paletted:
		if len(m.Palette) == 0 || len(m.Palette) > 256 {
			return nil, fmt.Errorf("jp2: palette of %d colors", len(m.Palette))
		}
		r := NewRaster(w, h, PixelFormat{Depths: []int{indexDepth(len(m.Palette))}, Palette: m.Palette, ColorSpace: ColorSpaceSRGB})
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r.Planes[0][y*w+x] = int32(m.ColorIndexAt(b.Min.X+x, b.Min.Y+y))
			}
		}
		return r, nil
	}

	alpha := true
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		alpha = false
	}
	depths := []int{8, 8, 8}
	if alpha {
		depths = append(depths, 8)
	}
	pf := PixelFormat{Depths: depths, Alpha: alpha, ColorSpace: ColorSpaceSRGB}

	switch img.(type) {
	case *image.RGBA64, *image.NRGBA64:
		for i := range pf.Depths {
			pf.Depths[i] = 16
		}
		dst := image.NewNRGBA64(image.Rect(0, 0, w, h))
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		r := NewRaster(w, h, pf)
		for i := 0; i < w*h; i++ {
			for c := range r.Planes {
				r.Planes[c][i] = int32(dst.Pix[8*i+2*c])<<8 | int32(dst.Pix[8*i+2*c+1])
			}
		}
		return r, nil
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	r := NewRaster(w, h, pf)
	for i := 0; i < w*h; i++ {
		for c := range r.Planes {
			r.Planes[c][i] = int32(dst.Pix[4*i+c])
		}
	}
	return r, nil
}

func indexDepth(n int) int {
	d := 1
	for 1<<d < n {
		d++
	}
	return d
}

// Image converts the raster to the closest standard image type. Samples
// are scaled to 8 bits when every depth is at most 8, else to 16 bits.
func (r *Raster) Image() (image.Image, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, r.Width, r.Height)
	pf := r.Format

	if pf.Palette != nil {
		img := image.NewPaletted(rect, pf.Palette)
		last := int32(len(pf.Palette) - 1)
		for i, v := range r.Planes[0] {
			img.Pix[i] = uint8(clampInt32(v, 0, last))
		}
		return img, nil
	}

	to := 8
	for _, d := range pf.Depths {
		if d > 8 {
			to = 16
		}
	}
	at := func(c, i int) uint32 {
		return scaleSample(r.Planes[c][i], pf.Depths[c], pf.Signed, to)
	}

	colors := pf.NumColors()
	alpha := -1
	if pf.Alpha {
		alpha = len(r.Planes) - 1
	}
	n := r.Width * r.Height

	if colors < 3 {
		switch {
		case alpha < 0 && to == 8:
			img := image.NewGray(rect)
			for i := 0; i < n; i++ {
				img.Pix[i] = uint8(at(0, i))
			}
			return img, nil
		case alpha < 0:
			img := image.NewGray16(rect)
			for i := 0; i < n; i++ {
				v := at(0, i)
				img.Pix[2*i], img.Pix[2*i+1] = uint8(v>>8), uint8(v)
			}
			return img, nil
		}
	}

	g, b := 1, 2
	if colors < 3 {
		g, b = 0, 0
	}
	if to == 8 {
		var pix []uint8
		var img image.Image
		if alpha >= 0 && !pf.Premultiplied {
			m := image.NewNRGBA(rect)
			pix, img = m.Pix, m
		} else {
			m := image.NewRGBA(rect)
			pix, img = m.Pix, m
		}
		for i := 0; i < n; i++ {
			a := uint32(0xFF)
			if alpha >= 0 {
				a = at(alpha, i)
			}
			pix[4*i], pix[4*i+1], pix[4*i+2], pix[4*i+3] = uint8(at(0, i)), uint8(at(g, i)), uint8(at(b, i)), uint8(a)
		}
		return img, nil
	}

	var pix []uint8
	var img image.Image
	if alpha >= 0 && !pf.Premultiplied {
		m := image.NewNRGBA64(rect)
		pix, img = m.Pix, m
	} else {
		m := image.NewRGBA64(rect)
		pix, img = m.Pix, m
	}
	for i := 0; i < n; i++ {
		a := uint32(0xFFFF)
		if alpha >= 0 {
			a = at(alpha, i)
		}
		for c, v := range [4]uint32{at(0, i), at(g, i), at(b, i), a} {
			pix[8*i+2*c], pix[8*i+2*c+1] = uint8(v>>8), uint8(v)
		}
	}
	return img, nil
}

// ColorModel returns the model of the image Image would return.
func (pf PixelFormat) ColorModel() color.Model {
	if pf.Palette != nil {
		return pf.Palette
	}
	wide := false
	for _, d := range pf.Depths {
		wide = wide || d > 8
	}
	switch {
	case pf.NumColors() < 3 && !pf.Alpha && wide:
		return color.Gray16Model
	case pf.NumColors() < 3 && !pf.Alpha:
		return color.GrayModel
	case pf.Alpha && !pf.Premultiplied && wide:
		return color.NRGBA64Model
	case pf.Alpha && !pf.Premultiplied:
		return color.NRGBAModel
	case wide:
		return color.RGBA64Model
	}
	return color.RGBAModel
}

// scaleSample level shifts signed samples, clamps to the component range
// and rescales to bits.
func scaleSample(v int32, depth int, signed bool, bits int) uint32 {
	if signed {
		v += 1 << (depth - 1)
	}
	maxIn := int64(1)<<depth - 1
	x := int64(clampInt32(v, 0, int32(maxIn)))
	if depth == bits {
		return uint32(x)
	}
	return uint32(x * (int64(1)<<bits - 1) / maxIn)
}

func clampInt32(v, min, max int32) int32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
