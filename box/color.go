package box

import (
	"encoding/binary"
	"fmt"
	"image/color"
	"math"

	"github.com/mrjoshuak/go-jp2/tree"
)

// Color specification methods.
const (
	MethodEnumerated    = 1 // Enumerated colorspace
	MethodRestrictedICC = 2 // Restricted ICC profile
	MethodAnyICC        = 3 // Any ICC method (full profile)
)

// Enumerated colorspace values per ISO/IEC 15444-1 Annex M
const (
	CSBilevel1  = 0  // Bi-level (black and white)
	CSYCbCr1    = 1  // YCbCr(1) - ITU-R BT.709-5 based (sRGB primaries)
	CSYCbCr2    = 3  // YCbCr(2) - ITU-R BT.601-5 for 625-line systems
	CSYCbCr3    = 4  // YCbCr(3) - ITU-R BT.601-5 for 525-line systems
	CSPhotoYCC  = 9  // PhotoYCC (Kodak Photo CD)
	CSCMY       = 11 // CMY (Cyan, Magenta, Yellow)
	CSCMYK      = 12 // CMYK (Cyan, Magenta, Yellow, Key/Black)
	CSYCCK      = 13 // YCCK (PhotoYCC with Key/Black)
	CSCIELab    = 14 // CIELab (D50 illuminant)
	CSBilevel2  = 15 // Bi-level(2) - alternative bi-level encoding
	CSSRGB      = 16 // sRGB (IEC 61966-2-1)
	CSGray      = 17 // Grayscale
	CSsYCC      = 18 // sYCC (IEC 61966-2-1 Annex G)
	CSCIEJab    = 19 // CIEJab (CIECAM02-based)
	CSeSRGB     = 20 // e-sRGB (extended sRGB, IEC 61966-2-1 Amendment 1)
	CSROMMRGB   = 21 // ROMM-RGB (Reference Output Medium Metric, ISO 22028-2)
	CSYPbPr1125 = 22 // YPbPr for 1125/60 systems (SMPTE 274M)
	CSYPbPr1250 = 23 // YPbPr for 1250/50 systems (ITU-R BT.1361)
	CSeSYCC     = 24 // e-sYCC (extended sYCC gamut)
)

// ColorSpecBox represents color specification.
type ColorSpecBox struct {
	Method               uint8
	Precedence           uint8
	Approximation        uint8
	EnumeratedColorspace uint32
	ICCProfile           []byte
}

// NewEnumeratedColorSpec returns a method 1 color specification.
func NewEnumeratedColorSpec(cs uint32) *ColorSpecBox {
	return &ColorSpecBox{Method: MethodEnumerated, EnumeratedColorspace: cs}
}

// NewICCColorSpec returns a restricted ICC color specification.
func NewICCColorSpec(profile []byte) *ColorSpecBox {
	return &ColorSpecBox{Method: MethodRestrictedICC, ICCProfile: append([]byte{}, profile...)}
}

// Len returns the size of the encoded contents.
func (b *ColorSpecBox) Len() int {
	if b.Method == MethodEnumerated {
		return 7
	}
	return 3 + len(b.ICCProfile)
}

// Parse parses the color specification box.
func (b *ColorSpecBox) Parse(data []byte) error {
	if len(data) < 3 {
		return fmt.Errorf("color specification box of %d bytes: %w", len(data), ErrTruncated)
	}
	b.Method = data[0]
	b.Precedence = data[1]
	b.Approximation = data[2]
	b.EnumeratedColorspace = 0
	b.ICCProfile = nil

	if b.Method == MethodEnumerated {
		if len(data) != 7 {
			return fmt.Errorf("enumerated color specification of %d bytes: %w", len(data), ErrTruncated)
		}
		b.EnumeratedColorspace = binary.BigEndian.Uint32(data[3:7])
		return nil
	}
	b.ICCProfile = append([]byte{}, data[3:]...)
	return nil
}

// Bytes returns the box contents.
func (b *ColorSpecBox) Bytes() []byte {
	data := make([]byte, b.Len())
	data[0] = b.Method
	data[1] = b.Precedence
	data[2] = b.Approximation
	if b.Method == MethodEnumerated {
		binary.BigEndian.PutUint32(data[3:7], b.EnumeratedColorspace)
		return data
	}
	copy(data[3:], b.ICCProfile)
	return data
}

func (b *ColorSpecBox) fields() []field {
	return []field{
		uint8Field("Method", &b.Method),
		uint8Field("Precedence", &b.Precedence),
		uint8Field("ApproximationAccuracy", &b.Approximation),
		uint32Field("EnumeratedColorSpace", &b.EnumeratedColorspace),
		bytesField("ICCProfile", &b.ICCProfile),
	}
}

// AppendNode adds the fields of b to n.
func (b *ColorSpecBox) AppendNode(n *tree.Node) { appendFields(n, b.fields()) }

// ParseNode sets the fields of b from the children of n.
func (b *ColorSpecBox) ParseNode(n *tree.Node) error { return parseFields(n, b.fields()) }

// MaxPaletteEntries is the largest number of entries a palette may hold.
const MaxPaletteEntries = 1024

// PaletteBox represents a color palette. Only palettes whose columns are
// at most 8 bits deep are supported.
type PaletteBox struct {
	BitDepth []uint8  // per column, packed like EncodeBitDepth
	LUT      [][]byte // LUT[column][entry]
}

// NewPaletteFromColors builds an 8-bit palette with three columns, or four
// when hasAlpha is set.
func NewPaletteFromColors(p color.Palette, hasAlpha bool) *PaletteBox {
	cols := 3
	if hasAlpha {
		cols = 4
	}
	b := &PaletteBox{BitDepth: make([]uint8, cols), LUT: make([][]byte, cols)}
	for c := range b.LUT {
		b.BitDepth[c] = EncodeBitDepth(8, false)
		b.LUT[c] = make([]byte, len(p))
	}
	for i, c := range p {
		nc := color.NRGBAModel.Convert(c).(color.NRGBA)
		b.LUT[0][i] = nc.R
		b.LUT[1][i] = nc.G
		b.LUT[2][i] = nc.B
		if hasAlpha {
			b.LUT[3][i] = nc.A
		}
	}
	return b
}

// NumEntries returns the number of palette entries.
func (b *PaletteBox) NumEntries() int {
	if len(b.LUT) == 0 {
		return 0
	}
	return len(b.LUT[0])
}

// NumColumns returns the number of palette columns.
func (b *PaletteBox) NumColumns() int { return len(b.LUT) }

// Colors returns the palette as colors. One or two columns are read as
// gray and gray plus alpha.
func (b *PaletteBox) Colors() color.Palette {
	n := b.NumEntries()
	out := make(color.Palette, n)
	for i := 0; i < n; i++ {
		c := color.NRGBA{A: 0xFF}
		switch len(b.LUT) {
		case 1, 2:
			c.R, c.G, c.B = b.LUT[0][i], b.LUT[0][i], b.LUT[0][i]
			if len(b.LUT) == 2 {
				c.A = b.LUT[1][i]
			}
		default:
			c.R, c.G, c.B = b.LUT[0][i], b.LUT[1][i], b.LUT[2][i]
			if len(b.LUT) > 3 {
				c.A = b.LUT[3][i]
			}
		}
		out[i] = c
	}
	return out
}

// Len returns the size of the box contents.
func (b *PaletteBox) Len() int { return 3 + len(b.BitDepth) + b.NumEntries()*b.NumColumns() }

// Validate reports palettes the box cannot hold: no entries or more than
// MaxPaletteEntries, more than 255 columns, columns of different lengths,
// a bit depth count that differs from the column count, or columns deeper
// than 8 bits.
func (b *PaletteBox) Validate() error {
	ne, npc := b.NumEntries(), b.NumColumns()
	if ne < 1 || ne > MaxPaletteEntries {
		return fmt.Errorf("palette of %d entries: %w", ne, ErrInvalidPayload)
	}
	if npc > math.MaxUint8 {
		return fmt.Errorf("palette of %d columns: %w", npc, ErrInvalidPayload)
	}
	if len(b.BitDepth) != npc {
		return fmt.Errorf("palette has %d bit depths for %d columns: %w", len(b.BitDepth), npc, ErrInvalidPayload)
	}
	for c, col := range b.LUT {
		if len(col) != ne {
			return fmt.Errorf("palette column %d has %d entries, want %d: %w", c, len(col), ne, ErrInvalidPayload)
		}
	}
	return checkPaletteDepths(b.BitDepth)
}

func checkPaletteDepths(depths []uint8) error {
	for i, d := range depths {
		if depth, _ := DecodeBitDepth(d); depth > 8 {
			return fmt.Errorf("palette column %d is %d bits deep: %w", i, depth, ErrUnsupported)
		}
	}
	return nil
}

// Parse parses the palette box. Entries are stored entry by entry, one
// byte per column.
func (b *PaletteBox) Parse(data []byte) error {
	if len(data) < 3 {
		return fmt.Errorf("palette box of %d bytes: %w", len(data), ErrTruncated)
	}
	ne := int(binary.BigEndian.Uint16(data[0:2]))
	npc := int(data[2])
	if ne < 1 || ne > MaxPaletteEntries {
		return fmt.Errorf("palette of %d entries: %w", ne, ErrInvalidPayload)
	}
	if npc == 0 {
		return fmt.Errorf("palette without columns: %w", ErrInvalidPayload)
	}
	if len(data) < 3+npc {
		return fmt.Errorf("palette box of %d bytes: %w", len(data), ErrTruncated)
	}
	depths := append([]uint8{}, data[3:3+npc]...)
	if err := checkPaletteDepths(depths); err != nil {
		return err
	}
	entries := data[3+npc:]
	if len(entries) != ne*npc {
		return fmt.Errorf("palette has %d entry bytes, want %d: %w", len(entries), ne*npc, ErrTruncated)
	}
	b.BitDepth = depths
	b.LUT = make([][]byte, npc)
	for c := range b.LUT {
		b.LUT[c] = make([]byte, ne)
		for i := 0; i < ne; i++ {
			b.LUT[c][i] = entries[i*npc+c]
		}
	}
	return nil
}

// Bytes returns the box contents. Palettes that fail Validate produce
// bytes Parse rejects; short columns are padded with zeros.
func (b *PaletteBox) Bytes() []byte {
	ne, npc := b.NumEntries(), b.NumColumns()
	data := make([]byte, b.Len())
	binary.BigEndian.PutUint16(data[0:2], uint16(min(ne, math.MaxUint16)))
	data[2] = uint8(min(npc, math.MaxUint8))
	copy(data[3:], b.BitDepth)
	entries := data[3+len(b.BitDepth):]
	for c, col := range b.LUT {
		for i := 0; i < ne && i < len(col); i++ {
			entries[i*npc+c] = col[i]
		}
	}
	return data
}

// AppendNode writes the palette with one LUTRow per entry.
func (b *PaletteBox) AppendNode(n *tree.Node) {
	n.Append(
		tree.NewValue("NumberEntries", uint16(b.NumEntries())),
		tree.NewValue("NumberColors", uint8(b.NumColumns())),
		tree.NewValue("BitDepth", append([]byte{}, b.BitDepth...)),
	)
	lut := tree.New("LUT")
	for i := 0; i < b.NumEntries(); i++ {
		row := make([]byte, b.NumColumns())
		for c := range row {
			row[c] = b.LUT[c][i]
		}
		lut.Append(tree.NewValue("LUTRow", row))
	}
	n.Append(lut)
}

// ParseNode reads a palette node written by AppendNode.
func (b *PaletteBox) ParseNode(n *tree.Node) error {
	var (
		ne, npc = -1, -1
		depths  []byte
		rows    [][]byte
	)
	for _, c := range n.Children() {
		switch c.Name {
		case "NumberEntries":
			v, err := tree.Int(c, 0, math.MaxUint16)
			if err != nil {
				return err
			}
			ne = int(v)
		case "NumberColors":
			v, err := tree.Int(c, 0, math.MaxUint8)
			if err != nil {
				return err
			}
			npc = int(v)
		case "BitDepth":
			v, err := tree.Bytes(c)
			if err != nil {
				return err
			}
			depths = v
		case "LUT":
			for _, r := range c.ChildrenNamed("LUTRow") {
				v, err := tree.Bytes(r)
				if err != nil {
					return err
				}
				rows = append(rows, v)
			}
		}
	}
	if ne < 0 {
		ne = len(rows)
	}
	if npc < 0 {
		npc = len(depths)
	}
	if len(depths) != npc {
		return fmt.Errorf("palette has %d bit depths for %d columns", len(depths), npc)
	}
	if len(rows) != ne {
		return fmt.Errorf("palette has %d rows, want %d", len(rows), ne)
	}
	if err := checkPaletteDepths(depths); err != nil {
		return err
	}
	b.BitDepth = depths
	b.LUT = make([][]byte, npc)
	for c := range b.LUT {
		b.LUT[c] = make([]byte, ne)
	}
	for i, r := range rows {
		if len(r) != npc {
			return fmt.Errorf("palette row %d has %d values, want %d", i, len(r), npc)
		}
		for c, v := range r {
			b.LUT[c][i] = v
		}
	}
	return b.Validate()
}

// ComponentMapBox represents component mapping.
type ComponentMapBox struct {
	Mappings []ComponentMapping
}

// ComponentMapping maps a channel to a component.
type ComponentMapping struct {
	Component     uint16
	MappingType   uint8 // 0=direct use, 1=palette mapping
	PaletteColumn uint8
}

// NewPaletteMapping maps numColumns channels to the palette columns of
// component 0.
func NewPaletteMapping(numColumns int) *ComponentMapBox {
	b := &ComponentMapBox{Mappings: make([]ComponentMapping, numColumns)}
	for i := range b.Mappings {
		b.Mappings[i] = ComponentMapping{Component: 0, MappingType: 1, PaletteColumn: uint8(i)}
	}
	return b
}

// Len returns the size of the encoded contents.
func (b *ComponentMapBox) Len() int { return 4 * len(b.Mappings) }

// Parse parses the component mapping box.
func (b *ComponentMapBox) Parse(data []byte) error {
	if len(data)%4 != 0 {
		return fmt.Errorf("component mapping box of %d bytes: %w", len(data), ErrTruncated)
	}
	b.Mappings = make([]ComponentMapping, len(data)/4)
	for i := range b.Mappings {
		d := data[i*4:]
		b.Mappings[i] = ComponentMapping{
			Component:     binary.BigEndian.Uint16(d[0:2]),
			MappingType:   d[2],
			PaletteColumn: d[3],
		}
	}
	return nil
}

// Bytes returns the box contents.
func (b *ComponentMapBox) Bytes() []byte {
	data := make([]byte, b.Len())
	for i, m := range b.Mappings {
		d := data[i*4:]
		binary.BigEndian.PutUint16(d[0:2], m.Component)
		d[2] = m.MappingType
		d[3] = m.PaletteColumn
	}
	return data
}

// AppendNode adds the fields of b to n.
func (b *ComponentMapBox) AppendNode(n *tree.Node) {
	comps := make([]uint16, len(b.Mappings))
	types := make([]byte, len(b.Mappings))
	assoc := make([]byte, len(b.Mappings))
	for i, m := range b.Mappings {
		comps[i], types[i], assoc[i] = m.Component, m.MappingType, m.PaletteColumn
	}
	n.Append(
		tree.NewValue("Component", comps),
		tree.NewValue("ComponentType", types),
		tree.NewValue("ComponentAssociation", assoc),
	)
}

// ParseNode sets the fields of b from the children of n.
func (b *ComponentMapBox) ParseNode(n *tree.Node) error {
	var (
		comps        []uint16
		types, assoc []byte
	)
	err := parseFields(n, []field{
		uint16sField("Component", &comps),
		bytesField("ComponentType", &types),
		bytesField("ComponentAssociation", &assoc),
	})
	if err != nil {
		return err
	}
	if len(types) != len(comps) || len(assoc) != len(comps) {
		return fmt.Errorf("component mapping lists differ in length: %d, %d, %d", len(comps), len(types), len(assoc))
	}
	b.Mappings = make([]ComponentMapping, len(comps))
	for i := range comps {
		b.Mappings[i] = ComponentMapping{Component: comps[i], MappingType: types[i], PaletteColumn: assoc[i]}
	}
	return nil
}

// Channel types
const (
	ChannelColor         = 0
	ChannelOpacity       = 1
	ChannelPremultiplied = 2
	ChannelUnspecified   = 0xFFFF
)

// ChannelDefBox defines channel meanings.
type ChannelDefBox struct {
	Definitions []ChannelDefinition
}

// ChannelDefinition describes a channel.
type ChannelDefinition struct {
	Channel     uint16
	Type        uint16 // 0=color, 1=opacity, 2=premultiplied opacity
	Association uint16 // Component association
}

// FillBasedOnBands returns the channel definitions synthesized for
// numComps color components with alpha: numComps color triples
// (i, 0, i+1), then one (numComps, 1, 0) alpha triple per color channel,
// then, if premultiplied, a (i, 2, i+1) triple per color channel.
func FillBasedOnBands(numComps int, premultiplied bool) []ChannelDefinition {
	n := numComps * 2
	if premultiplied {
		n = numComps * 3
	}
	defs := make([]ChannelDefinition, 0, n)
	for i := 0; i < numComps; i++ {
		defs = append(defs, ChannelDefinition{Channel: uint16(i), Type: ChannelColor, Association: uint16(i + 1)})
	}
	for i := 0; i < numComps; i++ {
		defs = append(defs, ChannelDefinition{Channel: uint16(numComps), Type: ChannelOpacity, Association: 0})
	}
	if premultiplied {
		for i := 0; i < numComps; i++ {
			defs = append(defs, ChannelDefinition{Channel: uint16(i), Type: ChannelPremultiplied, Association: uint16(i + 1)})
		}
	}
	return defs
}

// NewChannelDefForAlpha describes numColor color channels followed by one
// alpha channel that applies to the whole image.
func NewChannelDefForAlpha(numColor int, premultiplied bool) *ChannelDefBox {
	alpha := uint16(ChannelOpacity)
	if premultiplied {
		alpha = ChannelPremultiplied
	}
	b := &ChannelDefBox{}
	for i := 0; i < numColor; i++ {
		b.Definitions = append(b.Definitions, ChannelDefinition{Channel: uint16(i), Type: ChannelColor, Association: uint16(i + 1)})
	}
	b.Definitions = append(b.Definitions, ChannelDefinition{Channel: uint16(numColor), Type: alpha, Association: 0})
	return b
}

// HasAlpha reports whether any channel is an opacity channel, and whether
// it is premultiplied.
func (b *ChannelDefBox) HasAlpha() (alpha, premultiplied bool) {
	for _, d := range b.Definitions {
		switch d.Type {
		case ChannelOpacity:
			alpha = true
		case ChannelPremultiplied:
			alpha, premultiplied = true, true
		}
	}
	return alpha, premultiplied
}

// Len returns the size of the encoded contents.
func (b *ChannelDefBox) Len() int { return 2 + 6*len(b.Definitions) }

// Parse parses the channel definition box.
func (b *ChannelDefBox) Parse(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("channel definition box of %d bytes: %w", len(data), ErrTruncated)
	}
	n := int(binary.BigEndian.Uint16(data[0:2]))
	if len(data) != 2+6*n {
		return fmt.Errorf("channel definition box of %d bytes for %d definitions: %w", len(data), n, ErrTruncated)
	}
	b.Definitions = make([]ChannelDefinition, n)
	for i := range b.Definitions {
		d := data[2+i*6:]
		b.Definitions[i] = ChannelDefinition{
			Channel:     binary.BigEndian.Uint16(d[0:2]),
			Type:        binary.BigEndian.Uint16(d[2:4]),
			Association: binary.BigEndian.Uint16(d[4:6]),
		}
	}
	return nil
}

// Bytes returns the box contents.
func (b *ChannelDefBox) Bytes() []byte {
	data := make([]byte, b.Len())
	binary.BigEndian.PutUint16(data[0:2], uint16(len(b.Definitions)))
	for i, def := range b.Definitions {
		d := data[2+i*6:]
		binary.BigEndian.PutUint16(d[0:2], def.Channel)
		binary.BigEndian.PutUint16(d[2:4], def.Type)
		binary.BigEndian.PutUint16(d[4:6], def.Association)
	}
	return data
}

// AppendNode writes the definition count and one Definitions node per
// triple.
func (b *ChannelDefBox) AppendNode(n *tree.Node) {
	n.Append(tree.NewValue("NumberOfDefinition", uint16(len(b.Definitions))))
	for _, d := range b.Definitions {
		n.Append(tree.New("Definitions").Append(
			tree.NewValue("Channel", d.Channel),
			tree.NewValue("Type", d.Type),
			tree.NewValue("Association", d.Association),
		))
	}
}

// ParseNode sets the fields of b from the children of n.
func (b *ChannelDefBox) ParseNode(n *tree.Node) error {
	defs := []ChannelDefinition{}
	for _, c := range n.ChildrenNamed("Definitions") {
		var d ChannelDefinition
		err := parseFields(c, []field{
			uint16Field("Channel", &d.Channel),
			uint16Field("Type", &d.Type),
			uint16Field("Association", &d.Association),
		})
		if err != nil {
			return err
		}
		defs = append(defs, d)
	}
	if c := n.FirstChild("NumberOfDefinition"); c != nil {
		v, err := tree.Int(c, 0, math.MaxUint16)
		if err != nil {
			return err
		}
		if int(v) != len(defs) {
			return fmt.Errorf("channel definition declares %d definitions, has %d", v, len(defs))
		}
	}
	b.Definitions = defs
	return nil
}
