package metadata

import (
	"bytes"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/mrjoshuak/go-jp2/box"
	"github.com/mrjoshuak/go-jp2/tree"
)

// colorSpaceNames maps enumerated colorspaces to standard ColorSpaceType
// names.
var colorSpaceNames = []struct {
	cs   uint32
	name string
}{
	{box.CSSRGB, "RGB"},
	{box.CSGray, "GRAY"},
	{box.CSsYCC, "YCbCr"},
	{box.CSCMYK, "CMYK"},
	{box.CSCMY, "CMY"},
	{box.CSCIELab, "Lab"},
}

func element[T box.Payload](m *Metadata, name string) (T, bool) {
	var zero T
	b := m.Element(name)
	if b == nil {
		return zero, false
	}
	p, ok := b.Payload().(T)
	return p, ok
}

func valueNode(name, value string) *tree.Node {
	n := tree.New(name)
	n.SetAttr("value", value)
	return n
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// StandardTree returns the collection as a standard format tree.
func (m *Metadata) StandardTree() *tree.Node {
	root := tree.New(StandardFormatName)
	root.Append(m.chromaNode(), compressionNode(), m.dataNode())
	if n := m.dimensionNode(); n != nil {
		root.Append(n)
	}
	if n := m.textNode(); n != nil {
		root.Append(n)
	}
	if n := m.transparencyNode(); n != nil {
		root.Append(n)
	}
	return root
}

func (m *Metadata) chromaNode() *tree.Node {
	n := tree.New("Chroma")
	hdr, ok := element[*box.ImageHeaderBox](m, nameImageHdr)
	if !ok {
		return n
	}
	if hdr.UnknownColorspace == 0 {
		if colr, ok := element[*box.ColorSpecBox](m, nameColorSpec); ok && colr.Method == box.MethodEnumerated {
			for _, c := range colorSpaceNames {
				if c.cs == colr.EnumeratedColorspace {
					cs := tree.New("ColorSpaceType")
					cs.SetAttr("name", c.name)
					n.Append(cs)
					break
				}
			}
		}
	}

	channels := valueNode("NumChannels", strconv.Itoa(int(hdr.NumComponents)))
	n.Append(channels)

	pal, ok := element[*box.PaletteBox](m, namePalette)
	if !ok {
		return n
	}
	channels.SetAttr("value", strconv.Itoa(pal.NumColumns()))
	withAlpha := pal.NumColumns() == 2 || pal.NumColumns() == 4
	p := tree.New("Palette")
	for i, c := range pal.Colors() {
		nc := c.(color.NRGBA)
		e := tree.New("PaletteEntry")
		e.SetAttr("index", strconv.Itoa(i))
		e.SetAttr("red", strconv.Itoa(int(nc.R)))
		e.SetAttr("green", strconv.Itoa(int(nc.G)))
		e.SetAttr("blue", strconv.Itoa(int(nc.B)))
		if withAlpha {
			e.SetAttr("alpha", strconv.Itoa(int(nc.A)))
		}
		p.Append(e)
	}
	n.Append(p)
	return n
}

func compressionNode() *tree.Node {
	return tree.New("Compression").Append(valueNode("CompressionTypeName", "JPEG2000"))
}

func (m *Metadata) dataNode() *tree.Node {
	n := tree.New("Data")
	_, indexed := element[*box.PaletteBox](m, namePalette)
	if indexed {
		n.Append(valueNode("SampleFormat", "Index"))
	}

	var (
		depths []string
		signed bool
	)
	if bpcc, ok := element[*box.BitsPerCompBox](m, nameBitsPer); ok && len(bpcc.BitsPerComponent) > 0 {
		_, signed = box.DecodeBitDepth(bpcc.BitsPerComponent[0])
		for _, v := range bpcc.BitsPerComponent {
			d, _ := box.DecodeBitDepth(v)
			depths = append(depths, strconv.Itoa(d))
		}
	} else if hdr, ok := element[*box.ImageHeaderBox](m, nameImageHdr); ok {
		d, s := box.DecodeBitDepth(hdr.BitsPerComponent)
		signed = s
		for i := 0; i < int(hdr.NumComponents); i++ {
			depths = append(depths, strconv.Itoa(d))
		}
	}

	if depths != nil {
		n.Append(valueNode("BitsPerSample", strings.Join(depths, " ")))
	}
	n.Append(valueNode("PlanarConfiguration", "TileInterleaved"))
	if !indexed && depths != nil {
		format := "UnsignedIntegral"
		if signed {
			format = "SignedIntegral"
		}
		n.Append(valueNode("SampleFormat", format))
	}
	return n
}

func (m *Metadata) dimensionNode() *tree.Node {
	res, ok := element[*box.ResolutionBox](m, nameCaptureRes)
	if !ok {
		return nil
	}
	h, v := res.Horizontal(), res.Vertical()
	if h <= 0 || v <= 0 {
		return nil
	}
	return tree.New("Dimension").Append(
		valueNode("PixelAspectRatio", formatFloat(v/h)),
		valueNode("HorizontalPixelSize", formatFloat(1000/h)),
		valueNode("VerticalPixelSize", formatFloat(1000/v)),
	)
}

func (m *Metadata) transparencyNode() *tree.Node {
	cdef, ok := element[*box.ChannelDefBox](m, nameChannelDef)
	if !ok {
		return nil
	}
	alpha, premultiplied := cdef.HasAlpha()
	value := "none"
	switch {
	case premultiplied:
		value = "premultiplied"
	case alpha:
		value = "nonpremultiplied"
	}
	return tree.New("Transparency").Append(valueNode("Alpha", value))
}

func (m *Metadata) textNode() *tree.Node {
	var text *tree.Node
	for _, b := range m.boxes {
		x, ok := b.Payload().(*box.XMLBox)
		if !ok {
			continue
		}
		if text == nil {
			text = tree.New("Text")
		}
		text.Append(valueNode("TextEntry", x.Text()))
	}
	return text
}

// mergeStandard applies a standard format tree. Chroma is read before
// Data so that NumChannels can size the image header.
func (m *Metadata) mergeStandard(root *tree.Node) error {
	numComps := 0
	for _, n := range root.Children() {
		var err error
		switch n.Name {
		case "Chroma":
			numComps, err = m.mergeChroma(n, numComps)
		case "Compression":
			// Always JPEG 2000.
		case "Data":
			err = m.mergeData(n, numComps)
		case "Dimension":
			err = m.mergeDimension(n)
		case "Document", "Text":
			err = m.mergeText(n)
		case "Transparency":
			m.mergeTransparency(n)
		default:
			err = &TreeError{Node: n, Err: ErrUnsupportedNode}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func intAttr(n *tree.Node, key string, min, max int) (int, error) {
	s, ok := n.Attr(key)
	if !ok {
		return 0, &TreeError{Node: n, Err: fmt.Errorf("missing attribute %s", key)}
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &TreeError{Node: n, Err: fmt.Errorf("attribute %s: %w", key, err)}
	}
	if v < min || v > max {
		return 0, &TreeError{Node: n, Err: fmt.Errorf("attribute %s: %d out of range [%d, %d]", key, v, min, max)}
	}
	return v, nil
}

func (m *Metadata) mergeChroma(n *tree.Node, numComps int) (int, error) {
	for _, c := range n.Children() {
		switch c.Name {
		case "NumChannels":
			v, err := intAttr(c, "value", 1, 16384)
			if err != nil {
				return numComps, err
			}
			numComps = v
		case "ColorSpaceType":
			name, _ := c.Attr("name")
			for _, cs := range colorSpaceNames {
				if strings.EqualFold(cs.name, name) {
					m.Add(box.FromPayload(box.TypeColorSpec, box.NewEnumeratedColorSpec(cs.cs)))
					break
				}
			}
		case "Palette":
			if err := m.mergePalette(c); err != nil {
				return numComps, err
			}
		}
	}
	return numComps, nil
}

// mergePalette builds a palette sized to the next power of two above the
// largest index, plus the component mapping that routes the single index
// component through every palette column.
func (m *Metadata) mergePalette(n *tree.Node) error {
	type entry struct {
		index int
		c     color.NRGBA
	}
	var (
		entries  []entry
		maxIndex = -1
		hasAlpha bool
	)
	for _, e := range n.ChildrenNamed("PaletteEntry") {
		idx, err := intAttr(e, "index", 0, 1023)
		if err != nil {
			return err
		}
		var rgb [3]int
		for i, key := range [...]string{"red", "green", "blue"} {
			if rgb[i], err = intAttr(e, key, 0, 255); err != nil {
				return err
			}
		}
		c := color.NRGBA{R: uint8(rgb[0]), G: uint8(rgb[1]), B: uint8(rgb[2]), A: 0xFF}
		if _, ok := e.Attr("alpha"); ok {
			a, err := intAttr(e, "alpha", 0, 255)
			if err != nil {
				return err
			}
			c.A = uint8(a)
			hasAlpha = true
		}
		entries = append(entries, entry{idx, c})
		if idx > maxIndex {
			maxIndex = idx
		}
	}
	if maxIndex < 0 {
		return &TreeError{Node: n, Err: fmt.Errorf("palette has no entries")}
	}

	size := 1
	for size <= maxIndex {
		size <<= 1
	}
	p := make(color.Palette, size)
	for i := range p {
		p[i] = color.NRGBA{A: 0xFF}
	}
	for _, e := range entries {
		p[e.index] = e.c
	}
	pal := box.NewPaletteFromColors(p, hasAlpha)
	m.Add(box.FromPayload(box.TypePalette, pal))
	m.Add(box.FromPayload(box.TypeComponentMap, box.NewPaletteMapping(pal.NumColumns())))
	return nil
}

func (m *Metadata) mergeData(n *tree.Node, numComps int) error {
	var (
		depths []int
		signed bool
	)
	for _, c := range n.Children() {
		switch c.Name {
		case "BitsPerSample":
			s, _ := c.Attr("value")
			for _, f := range strings.Fields(s) {
				d, err := strconv.Atoi(f)
				if err != nil || d < 1 || d > 38 {
					return &TreeError{Node: c, Err: fmt.Errorf("bad bit depth %q", f)}
				}
				depths = append(depths, d)
			}
		case "SampleFormat":
			s, _ := c.Attr("value")
			signed = s == "SignedIntegral"
		}
	}

	hdr := &box.ImageHeaderBox{CompressionType: 7}
	if old, ok := element[*box.ImageHeaderBox](m, nameImageHdr); ok {
		*hdr = *old
	}
	switch {
	case numComps > 0:
		hdr.NumComponents = uint16(numComps)
	case len(depths) > 0:
		hdr.NumComponents = uint16(len(depths))
	}

	if len(depths) > 0 {
		if uniform(depths) {
			hdr.BitsPerComponent = box.EncodeBitDepth(depths[0], signed)
			m.Remove(nameBitsPer)
		} else {
			bits := make([]uint8, len(depths))
			for i, d := range depths {
				bits[i] = box.EncodeBitDepth(d, signed)
			}
			hdr.BitsPerComponent = box.BitsPerComponentVary
			m.Add(box.FromPayload(box.TypeBitsPerComp, &box.BitsPerCompBox{BitsPerComponent: bits}))
		}
	}

	hdr.UnknownColorspace = 0
	if m.Element(nameColorSpec) == nil {
		hdr.UnknownColorspace = 1
	}
	m.Add(box.FromPayload(box.TypeImageHeader, hdr))
	return nil
}

func uniform(v []int) bool {
	for _, x := range v[1:] {
		if x != v[0] {
			return false
		}
	}
	return true
}

// mergeDimension stores pixel sizes, given in millimetres, as a capture
// resolution in pixels per metre. A missing axis copies the other.
func (m *Metadata) mergeDimension(n *tree.Node) error {
	var h, v float64
	for _, c := range n.Children() {
		var dst *float64
		switch c.Name {
		case "HorizontalPixelSize":
			dst = &h
		case "VerticalPixelSize":
			dst = &v
		default:
			continue
		}
		s, _ := c.Attr("value")
		size, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || size <= 0 {
			return &TreeError{Node: c, Err: fmt.Errorf("bad pixel size %q", s)}
		}
		*dst = 1000 / size
	}
	switch {
	case h == 0 && v == 0:
		return nil
	case h == 0:
		h = v
	case v == 0:
		v = h
	}
	m.Add(box.FromPayload(box.TypeCaptureRes, box.NewResolution(v, h)))
	return nil
}

// mergeText stores the node itself, serialized as XML, in a new XML box.
func (m *Metadata) mergeText(n *tree.Node) error {
	var buf bytes.Buffer
	if err := tree.Encode(&buf, n); err != nil {
		return &TreeError{Node: n, Err: err}
	}
	m.Append(box.FromPayload(box.TypeXML, &box.XMLBox{Data: buf.Bytes()}))
	return nil
}

// mergeTransparency adds channel definitions when the tree asks for an
// alpha channel. The component count comes from the image header, or 3.
func (m *Metadata) mergeTransparency(n *tree.Node) {
	var alpha, premultiplied bool
	for _, c := range n.ChildrenNamed("Alpha") {
		switch v, _ := c.Attr("value"); v {
		case "premultiplied":
			alpha, premultiplied = true, true
		case "nonpremultiplied":
			alpha = true
		}
	}
	if !alpha {
		return
	}
	numComps := 3
	if hdr, ok := element[*box.ImageHeaderBox](m, nameImageHdr); ok && hdr.NumComponents > 0 {
		numComps = int(hdr.NumComponents)
	}
	m.Add(box.FromPayload(box.TypeChannelDef, &box.ChannelDefBox{
		Definitions: box.FillBasedOnBands(numComps, premultiplied),
	}))
}
