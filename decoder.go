package jp2

import (
	"errors"
	"fmt"
	"image"
	"io"

	"go.uber.org/zap"

	"github.com/mrjoshuak/go-jp2/box"
	"github.com/mrjoshuak/go-jp2/internal/codestream"
	"github.com/mrjoshuak/go-jp2/metadata"
	"github.com/mrjoshuak/go-jp2/stream"
)

var (
	// ErrNoCodestream is returned when a file has no codestream box.
	ErrNoCodestream = metadata.ErrNoCodestream

	// ErrFormat reports boxes that contradict each other or the codestream.
	ErrFormat = errors.New("jp2: invalid format")
)

// maxSamples bounds the planes a Reader allocates.
const maxSamples = 1 << 30

// Reader gives access to the metadata and pixels of a JP2 file. Metadata
// is read eagerly; the codestream is read when first needed.
type Reader struct {
	src  *stream.Reader
	md   *metadata.Metadata
	loc  *metadata.Codestream
	opts ReadOptions
	log  *zap.Logger

	header *codestream.Header
}

// NewReader reads the boxes of a JP2 file. Readers that can seek are used
// in place; others are buffered as they are read.
func NewReader(r io.Reader, opts *ReadOptions) (*Reader, error) {
	d := &Reader{src: stream.NewReader(r)}
	if opts != nil {
		d.opts = *opts
	}
	d.log = loggerOr(d.opts.Logger)

	mdOpts := []metadata.Option{metadata.WithLogger(d.log)}
	if d.opts.StrictBoxes {
		mdOpts = append(mdOpts, metadata.WithStrictBoxes())
	}
	md, loc, err := metadata.Read(d.src, mdOpts...)
	if err != nil {
		return nil, err
	}
	d.md, d.loc = md, loc
	if loc == nil {
		d.log.Warn("file has no codestream box")
	}
	return d, nil
}

// Metadata returns the boxes read from the file. Changes to it are not
// written back.
func (d *Reader) Metadata() *metadata.Metadata { return d.md }

// CodestreamLocation returns where the codestream contents are, or nil.
func (d *Reader) CodestreamLocation() *metadata.Codestream { return d.loc }

// Codestream reads the codestream contents.
func (d *Reader) Codestream() ([]byte, error) {
	if d.loc == nil {
		return nil, ErrNoCodestream
	}
	if _, err := d.src.Seek(d.loc.Offset, io.SeekStart); err != nil {
		return nil, err
	}
	data := make([]byte, d.loc.Length)
	if err := d.src.ReadFull(data); err != nil {
		return nil, fmt.Errorf("jp2: reading codestream: %w", err)
	}
	return data, nil
}

// CodestreamHeader parses the codestream main header.
func (d *Reader) CodestreamHeader() (*codestream.Header, error) {
	if d.header != nil {
		return d.header, nil
	}
	if d.loc == nil {
		return nil, ErrNoCodestream
	}
	if _, err := d.src.Seek(d.loc.Offset, io.SeekStart); err != nil {
		return nil, err
	}
	h, err := codestream.NewParser(io.LimitReader(d.src, d.loc.Length)).ReadHeader()
	if err != nil {
		return nil, fmt.Errorf("jp2: codestream header: %w", err)
	}
	d.header = h
	return h, nil
}

func (d *Reader) imageHeader() (*box.ImageHeaderBox, error) {
	b := d.md.ElementOf(box.TypeImageHeader)
	if b == nil {
		return nil, fmt.Errorf("%w: no image header box", ErrFormat)
	}
	hdr, ok := b.Payload().(*box.ImageHeaderBox)
	if !ok {
		return nil, fmt.Errorf("%w: unparsed image header box", ErrFormat)
	}
	return hdr, nil
}

// PixelFormat describes the image Image returns, from the header boxes
// alone.
func (d *Reader) PixelFormat() (PixelFormat, error) {
	hdr, err := d.imageHeader()
	if err != nil {
		return PixelFormat{}, err
	}
	depths, signed, err := d.componentDepths(hdr)
	if err != nil {
		return PixelFormat{}, err
	}
	pf := PixelFormat{Depths: depths, Signed: signed}
	if hdr.UnknownColorspace == 0 {
		pf.ColorSpace = colorSpaceOf(payload[*box.ColorSpecBox](d.md, box.TypeColorSpec))
	}

	if pal := payload[*box.PaletteBox](d.md, box.TypePalette); pal != nil {
		cmap := payload[*box.ComponentMapBox](d.md, box.TypeComponentMap)
		if cmap == nil {
			return PixelFormat{}, fmt.Errorf("%w: palette without component mapping", ErrFormat)
		}
		pf.Depths = pf.Depths[:0:0]
		for _, m := range cmap.Mappings {
			if m.MappingType == 1 {
				if int(m.PaletteColumn) >= len(pal.BitDepth) {
					return PixelFormat{}, fmt.Errorf("%w: mapping to palette column %d of %d", ErrFormat, m.PaletteColumn, len(pal.BitDepth))
				}
				dep, _ := box.DecodeBitDepth(pal.BitDepth[m.PaletteColumn])
				pf.Depths = append(pf.Depths, dep)
				continue
			}
			if int(m.Component) >= len(depths) {
				return PixelFormat{}, fmt.Errorf("%w: mapping to component %d of %d", ErrFormat, m.Component, len(depths))
			}
			pf.Depths = append(pf.Depths, depths[m.Component])
		}
	}

	if cdef := payload[*box.ChannelDefBox](d.md, box.TypeChannelDef); cdef != nil {
		order, alpha, premult := channelOrder(cdef, len(pf.Depths))
		reordered := make([]int, len(order))
		for i, ch := range order {
			reordered[i] = pf.Depths[ch]
		}
		pf.Depths, pf.Alpha, pf.Premultiplied = reordered, alpha, premult
	}
	if pf.ColorSpace == ColorSpaceCMYK && !d.opts.KeepColorSpace && pf.NumColors() >= 4 {
		pf.Depths = append(pf.Depths[:3:3], pf.Depths[4:]...)
	}
	return pf, nil
}

func (d *Reader) componentDepths(hdr *box.ImageHeaderBox) ([]int, bool, error) {
	n := int(hdr.NumComponents)
	depths := make([]int, n)
	if !hdr.BitsPerComponentVaries() {
		dep, signed := box.DecodeBitDepth(hdr.BitsPerComponent)
		for i := range depths {
			depths[i] = dep
		}
		return depths, signed, nil
	}
	bpcc := payload[*box.BitsPerCompBox](d.md, box.TypeBitsPerComp)
	if bpcc == nil || len(bpcc.BitsPerComponent) != n {
		return nil, false, fmt.Errorf("%w: image header defers to a missing or short bits per component box", ErrFormat)
	}
	signed := false
	for i, v := range bpcc.BitsPerComponent {
		depths[i], signed = box.DecodeBitDepth(v)
	}
	return depths, signed, nil
}

// Config returns the image dimensions and color model from the header
// boxes. It does not need an engine.
func (d *Reader) Config() (image.Config, error) {
	hdr, err := d.imageHeader()
	if err != nil {
		return image.Config{}, err
	}
	pf, err := d.PixelFormat()
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{
		ColorModel: pf.ColorModel(),
		Width:      int(hdr.Width),
		Height:     int(hdr.Height),
	}, nil
}

// Raster decodes the codestream with the engine and applies the header
// boxes: palette and component mapping, channel definitions and, unless
// KeepColorSpace is set, conversion to sRGB.
func (d *Reader) Raster() (*Raster, error) {
	eng, err := registeredEngine(d.opts.Engine)
	if err != nil {
		return nil, err
	}
	hdr, err := d.imageHeader()
	if err != nil {
		return nil, err
	}
	ch, err := d.CodestreamHeader()
	if err != nil {
		return nil, err
	}
	bounds := ch.Bounds()
	if bounds.Dx() != int(hdr.Width) || bounds.Dy() != int(hdr.Height) || ch.NumComponents() != int(hdr.NumComponents) {
		return nil, fmt.Errorf("%w: image header %dx%dx%d, codestream %dx%dx%d", ErrFormat,
			hdr.Width, hdr.Height, hdr.NumComponents, bounds.Dx(), bounds.Dy(), ch.NumComponents())
	}
	if n := int64(bounds.Dx()) * int64(bounds.Dy()) * int64(ch.NumComponents()); n > maxSamples {
		return nil, fmt.Errorf("%w: %d samples exceed the limit of %d", ErrFormat, n, maxSamples)
	}
	data, err := d.Codestream()
	if err != nil {
		return nil, err
	}
	dec, err := eng.Open(data)
	if err != nil {
		return nil, fmt.Errorf("jp2: opening codestream: %w", err)
	}

	planes, err := decodePlanes(dec, ch)
	if err != nil {
		return nil, err
	}
	depths := make([]int, len(ch.Components))
	signed := false
	for i, c := range ch.Components {
		depths[i] = c.Precision()
		signed = signed || c.IsSigned()
	}
	r := &Raster{Width: bounds.Dx(), Height: bounds.Dy(), Planes: planes,
		Format: PixelFormat{Depths: depths, Signed: signed}}
	if hdr.UnknownColorspace == 0 {
		r.Format.ColorSpace = colorSpaceOf(payload[*box.ColorSpecBox](d.md, box.TypeColorSpec))
	}

	if err := d.applyPalette(r); err != nil {
		return nil, err
	}
	if cdef := payload[*box.ChannelDefBox](d.md, box.TypeChannelDef); cdef != nil {
		applyChannelDefs(r, cdef)
	}
	if !d.opts.KeepColorSpace {
		d.convertColor(r)
	}
	return r, r.Validate()
}

// Image decodes the image. See Raster.
func (d *Reader) Image() (image.Image, error) {
	r, err := d.Raster()
	if err != nil {
		return nil, err
	}
	return r.Image()
}

// decodePlanes decodes every tile component and upsamples subsampled
// components onto the reference grid.
func decodePlanes(dec TileDecoder, h *codestream.Header) ([][]int32, error) {
	bounds := h.Bounds()
	w, ht := bounds.Dx(), bounds.Dy()
	planes := make([][]int32, h.NumComponents())
	for c := range planes {
		planes[c] = make([]int32, w*ht)
	}

	for t := 0; t < h.NumTiles(); t++ {
		tb, err := h.TileBounds(t)
		if err != nil {
			return nil, err
		}
		for c := range planes {
			want := h.ComponentBounds(c, tb)
			if want.Empty() {
				continue
			}
			blk, err := dec.DecodeTile(t, c)
			if err != nil {
				return nil, fmt.Errorf("jp2: decoding tile %d component %d: %w", t, c, err)
			}
			if blk.Rect != want || len(blk.Data) != want.Dx()*want.Dy() {
				return nil, fmt.Errorf("%w: tile %d component %d decoded as %v with %d samples, want %v",
					ErrFormat, t, c, blk.Rect, len(blk.Data), want)
			}
			ci := h.Components[c]
			dx, dy := int(ci.SubsamplingX), int(ci.SubsamplingY)
			for y := tb.Min.Y; y < tb.Max.Y; y++ {
				row := (nearest(y, dy, want.Min.Y, want.Max.Y) - want.Min.Y) * want.Dx()
				dst := planes[c][(y-bounds.Min.Y)*w:]
				for x := tb.Min.X; x < tb.Max.X; x++ {
					dst[x-bounds.Min.X] = blk.Data[row+nearest(x, dx, want.Min.X, want.Max.X)-want.Min.X]
				}
			}
		}
	}
	return planes, nil
}

// nearest returns the component sample covering reference coordinate v,
// clamped to [min, max).
func nearest(v, sub, min, max int) int {
	c := v / sub
	if c < min {
		return min
	}
	if c >= max {
		return max - 1
	}
	return c
}

// applyPalette replaces the planes by the channels of the component
// mapping box, looking indexed components up in the palette.
func (d *Reader) applyPalette(r *Raster) error {
	pal := payload[*box.PaletteBox](d.md, box.TypePalette)
	if pal == nil {
		return nil
	}
	cmap := payload[*box.ComponentMapBox](d.md, box.TypeComponentMap)
	if cmap == nil {
		return fmt.Errorf("%w: palette without component mapping", ErrFormat)
	}
	planes := make([][]int32, len(cmap.Mappings))
	depths := make([]int, len(cmap.Mappings))
	for i, m := range cmap.Mappings {
		if int(m.Component) >= len(r.Planes) {
			return fmt.Errorf("%w: mapping to component %d of %d", ErrFormat, m.Component, len(r.Planes))
		}
		src := r.Planes[m.Component]
		if m.MappingType != 1 {
			planes[i], depths[i] = src, r.Format.Depths[m.Component]
			continue
		}
		if int(m.PaletteColumn) >= pal.NumColumns() {
			return fmt.Errorf("%w: mapping to palette column %d of %d", ErrFormat, m.PaletteColumn, pal.NumColumns())
		}
		lut := pal.LUT[m.PaletteColumn]
		if len(lut) == 0 {
			return fmt.Errorf("%w: palette column %d has no entries", ErrFormat, m.PaletteColumn)
		}
		last := int32(len(lut) - 1)
		out := make([]int32, len(src))
		for j, v := range src {
			out[j] = int32(lut[clampInt32(v, 0, last)])
		}
		planes[i] = out
		depths[i], _ = box.DecodeBitDepth(pal.BitDepth[m.PaletteColumn])
	}
	r.Planes = planes
	r.Format.Depths = depths
	r.Format.Signed = false
	return nil
}

// channelOrder returns the channels to keep, colors ordered by association
// and then the first opacity channel.
func channelOrder(cdef *box.ChannelDefBox, n int) (order []int, alpha, premult bool) {
	colors := map[int]int{}
	maxAssoc := 0
	opacity := -1
	for _, def := range cdef.Definitions {
		ch := int(def.Channel)
		if ch >= n {
			continue
		}
		switch def.Type {
		case box.ChannelColor:
			a := int(def.Association)
			if a == 0 || a == 0xFFFF {
				continue
			}
			if _, dup := colors[a]; !dup {
				colors[a] = ch
			}
			if a > maxAssoc {
				maxAssoc = a
			}
		case box.ChannelOpacity, box.ChannelPremultiplied:
			if opacity < 0 {
				opacity = ch
				premult = def.Type == box.ChannelPremultiplied
			}
		}
	}
	for a := 1; a <= maxAssoc; a++ {
		if ch, ok := colors[a]; ok {
			order = append(order, ch)
		}
	}
	if len(order) == 0 {
		for ch := 0; ch < n; ch++ {
			if ch != opacity {
				order = append(order, ch)
			}
		}
	}
	if opacity >= 0 {
		order = append(order, opacity)
		return order, true, premult
	}
	return order, false, false
}

func applyChannelDefs(r *Raster, cdef *box.ChannelDefBox) {
	order, alpha, premult := channelOrder(cdef, len(r.Planes))
	planes := make([][]int32, len(order))
	depths := make([]int, len(order))
	for i, ch := range order {
		planes[i], depths[i] = r.Planes[ch], r.Format.Depths[ch]
	}
	r.Planes, r.Format.Depths = planes, depths
	r.Format.Alpha, r.Format.Premultiplied = alpha, premult
}

func (d *Reader) convertColor(r *Raster) {
	cs := r.Format.ColorSpace
	conv := getColorConversion(cs)
	if conv == nil {
		if cs == ColorSpaceUnknown {
			d.log.Warn("unknown enumerated color space, samples used as they are")
		}
		return
	}
	colors := r.Format.NumColors()
	prec := 0
	for _, dep := range r.Format.Depths[:colors] {
		if dep > prec {
			prec = dep
		}
	}
	converted := conv(r.Planes[:colors:colors], prec)
	planes := append(converted, r.Planes[colors:]...)
	depths := make([]int, 0, len(planes))
	for range converted {
		depths = append(depths, prec)
	}
	depths = append(depths, r.Format.Depths[colors:]...)
	r.Planes, r.Format.Depths = planes, depths
	r.Format.Signed = false
	r.Format.ColorSpace = ColorSpaceSRGB
	d.log.Debug("converted color space", zap.Stringer("from", cs))
}

// payload returns the typed payload of the last box of type t, or the zero
// value.
func payload[T box.Payload](md *metadata.Metadata, t box.Type) T {
	var zero T
	b := md.ElementOf(t)
	if b == nil {
		return zero
	}
	p, ok := b.Payload().(T)
	if !ok {
		return zero
	}
	return p
}
