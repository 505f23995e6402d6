package jp2

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"math"

	"go.uber.org/zap"

	"github.com/mrjoshuak/go-jp2/box"
	"github.com/mrjoshuak/go-jp2/internal/codestream"
	"github.com/mrjoshuak/go-jp2/metadata"
)

// ErrNoImageHeader is returned by WriteContainer for a collection without
// an image header box.
var ErrNoImageHeader = errors.New("jp2: no image header box")

// Encode writes m to w as a JP2 file.
func Encode(w io.Writer, m image.Image, o *Options) error {
	r, err := FromImage(m)
	if err != nil {
		return err
	}
	return EncodeRaster(w, r, o)
}

// EncodeRaster writes r to w as a JP2 file. The engine produces the
// codestream; the boxes are derived from the raster format and the
// options.
func EncodeRaster(w io.Writer, r *Raster, o *Options) error {
	if o == nil {
		o = DefaultOptions()
	}
	if err := r.Validate(); err != nil {
		return err
	}
	eng, err := registeredEngine(o.Engine)
	if err != nil {
		return err
	}
	log := loggerOr(o.Logger)

	cs, err := eng.Encode(r, o)
	if err != nil {
		return fmt.Errorf("jp2: encoding codestream: %w", err)
	}
	h, err := codestream.Peek(cs)
	if err != nil {
		return fmt.Errorf("jp2: engine output: %w", err)
	}
	if b := h.Bounds(); b.Dx() != r.Width || b.Dy() != r.Height || h.NumComponents() != r.Format.NumComponents() {
		return fmt.Errorf("%w: engine wrote %dx%dx%d for a %dx%dx%d raster", ErrFormat,
			b.Dx(), b.Dy(), h.NumComponents(), r.Width, r.Height, r.Format.NumComponents())
	}
	log.Debug("encoded codestream",
		zap.Int("bytes", len(cs)),
		zap.Int("tiles", h.NumTiles()))

	md, err := containerMetadata(r, o, log)
	if err != nil {
		return err
	}
	return WriteContainer(w, md, cs)
}

// containerMetadata builds the boxes for r and adds the extra boxes of o.
func containerMetadata(r *Raster, o *Options, log *zap.Logger) (*metadata.Metadata, error) {
	pf := r.Format
	cs := pf.ColorSpace
	if o.ColorSpace != ColorSpaceUnspecified {
		cs = o.ColorSpace
	}
	spec := metadata.ImageSpec{
		Width:         r.Width,
		Height:        r.Height,
		BitDepths:     pf.Depths,
		Signed:        pf.Signed,
		Alpha:         pf.Alpha,
		Premultiplied: pf.Premultiplied,
		Palette:       pf.Palette,
	}
	switch {
	case len(o.ICCProfile) > 0:
		spec.Color, spec.ICCProfile = metadata.ColorICC, o.ICCProfile
	case cs == ColorSpaceSRGB:
		spec.Color = metadata.ColorRGB
	case cs == ColorSpaceGray:
		spec.Color = metadata.ColorGray
	case cs == ColorSpaceSYCC:
		spec.Color = metadata.ColorYCC
	case cs == ColorSpaceUnspecified && pf.NumColors() >= 3:
		spec.Color = metadata.ColorRGB
	case cs == ColorSpaceUnspecified && pf.NumColors() > 0:
		spec.Color = metadata.ColorGray
	}

	md := metadata.ForImage(spec, metadata.WithLogger(log))
	if spec.Color == metadata.ColorUnknown {
		if enum, ok := cs.Enum(); ok {
			md.Add(box.FromPayload(box.TypeColorSpec, box.NewEnumeratedColorSpec(enum)))
			updateHeader(md, func(h *box.ImageHeaderBox) { h.UnknownColorspace = 0 })
		}
	}
	if res := o.Resolution; res.Horizontal > 0 && res.Vertical > 0 {
		md.Add(box.FromPayload(box.TypeCaptureRes, box.NewResolution(res.Vertical, res.Horizontal)))
	}
	if o.Metadata != nil {
		for _, b := range o.Metadata.Boxes() {
			switch b.Type() {
			case box.TypeIPR, box.TypeXML, box.TypeUUID, box.TypeUUIDList, box.TypeURL, box.TypeDisplayRes:
				md.Insert(b.Clone())
			default:
				log.Debug("option box not written", zap.Stringer("type", b.Type()))
			}
		}
	}
	if md.ElementOf(box.TypeIPR) != nil {
		updateHeader(md, func(h *box.ImageHeaderBox) { h.IPR = 1 })
	}
	return md, nil
}

func updateHeader(md *metadata.Metadata, f func(*box.ImageHeaderBox)) {
	b := md.ElementOf(box.TypeImageHeader)
	h := b.Payload().(*box.ImageHeaderBox)
	f(h)
	b.SetPayload(h)
}

// headerOrder is the order of the boxes inside the JP2 header box.
var headerOrder = []box.Type{
	box.TypeImageHeader,
	box.TypeBitsPerComp,
	box.TypeColorSpec,
	box.TypePalette,
	box.TypeComponentMap,
	box.TypeChannelDef,
}

// WriteContainer writes a JP2 file holding the boxes of md around
// codestream: signature, file type, the JP2 header (image header, bits per
// component, color specifications, palette, component mapping, channel
// definitions, resolution), IPR, XML and UUID boxes, UUID info boxes
// pairing each UUID list with the URL that follows it, and the
// contiguous codestream. A missing signature or file type box is supplied.
// Boxes with a length 0 field are written with their explicit length, and
// a box whose typed contents fail Validate aborts the write.
func WriteContainer(w io.Writer, md *metadata.Metadata, cs []byte) error {
	if md.ElementOf(box.TypeImageHeader) == nil {
		return ErrNoImageHeader
	}
	for _, b := range md.Boxes() {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("jp2: %w", err)
		}
	}

	out := []*box.Box{
		orDefault(md.ElementOf(box.TypeJP2Signature), box.TypeJP2Signature, &box.SignatureBox{}),
		orDefault(md.ElementOf(box.TypeFileType), box.TypeFileType, box.NewFileTypeBox()),
	}

	var jp2h []*box.Box
	for _, t := range headerOrder {
		if t == box.TypeColorSpec {
			jp2h = append(jp2h, elementsOf(md, t)...)
			continue
		}
		if b := md.ElementOf(t); b != nil {
			jp2h = append(jp2h, b)
		}
	}
	var res []*box.Box
	for _, t := range []box.Type{box.TypeCaptureRes, box.TypeDisplayRes} {
		if b := md.ElementOf(t); b != nil {
			res = append(res, b)
		}
	}
	if len(res) > 0 {
		jp2h = append(jp2h, box.NewSuperBox(box.TypeResolution, res...))
	}
	out = append(out, box.NewSuperBox(box.TypeJP2Header, jp2h...))

	out = append(out, elementsOf(md, box.TypeIPR)...)
	out = append(out, elementsOf(md, box.TypeXML)...)
	out = append(out, elementsOf(md, box.TypeUUID)...)
	out = append(out, uuidInfoBoxes(md)...)

	for _, b := range out {
		if b.Length() == 0 {
			b = b.Clone()
			b.ResolveLength()
		}
		if _, err := b.WriteTo(w); err != nil {
			return err
		}
	}
	return writeCodestreamBox(w, cs)
}

func orDefault(b *box.Box, t box.Type, p box.Payload) *box.Box {
	if b != nil {
		return b
	}
	return box.FromPayload(t, p)
}

func elementsOf(md *metadata.Metadata, t box.Type) []*box.Box {
	var out []*box.Box
	for _, b := range md.Boxes() {
		if b.Type() == t {
			out = append(out, b)
		}
	}
	return out
}

// uuidInfoBoxes groups UUID lists and URLs in collection order. A URL
// closes the group opened by the list before it; a list or URL without a
// partner gets a group of its own.
func uuidInfoBoxes(md *metadata.Metadata) []*box.Box {
	var (
		out  []*box.Box
		list *box.Box
	)
	for _, b := range md.Boxes() {
		switch b.Type() {
		case box.TypeUUIDList:
			if list != nil {
				out = append(out, box.NewSuperBox(box.TypeUUIDInfo, list))
			}
			list = b
		case box.TypeURL:
			if list != nil {
				out = append(out, box.NewSuperBox(box.TypeUUIDInfo, list, b))
				list = nil
			} else {
				out = append(out, box.NewSuperBox(box.TypeUUIDInfo, b))
			}
		}
	}
	if list != nil {
		out = append(out, box.NewSuperBox(box.TypeUUIDInfo, list))
	}
	return out
}

// writeCodestreamBox writes the codestream box header and contents without
// copying the codestream.
func writeCodestreamBox(w io.Writer, cs []byte) error {
	hdr := make([]byte, 0, 16)
	if size := uint64(len(cs)) + 8; size <= math.MaxUint32 {
		hdr = binary.BigEndian.AppendUint32(hdr, uint32(size))
		hdr = binary.BigEndian.AppendUint32(hdr, uint32(box.TypeContCodestream))
	} else {
		hdr = binary.BigEndian.AppendUint32(hdr, 1)
		hdr = binary.BigEndian.AppendUint32(hdr, uint32(box.TypeContCodestream))
		hdr = binary.BigEndian.AppendUint64(hdr, size+8)
	}
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	_, err := w.Write(cs)
	return err
}
