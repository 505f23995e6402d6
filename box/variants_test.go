package box

import (
	"bytes"
	"errors"
	"image/color"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mrjoshuak/go-jp2/stream"
	"github.com/mrjoshuak/go-jp2/tree"
)

func samplePayloads() map[Type]Payload {
	return map[Type]Payload{
		TypeJP2Signature: &SignatureBox{},
		TypeFileType:     &FileTypeBox{Brand: BrandJP2, MinorVersion: 0, Compatibility: []Type{BrandJP2, MustParseType("jpx ")}},
		TypeImageHeader: &ImageHeaderBox{
			Height: 100, Width: 200, NumComponents: 3, BitsPerComponent: 7, CompressionType: 7,
		},
		TypeBitsPerComp: &BitsPerCompBox{BitsPerComponent: []uint8{7, 0x8F, 4}},
		TypeColorSpec:   NewEnumeratedColorSpec(CSSRGB),
		TypePalette: &PaletteBox{
			BitDepth: []uint8{7, 7, 7},
			LUT:      [][]byte{{0, 255, 10}, {1, 128, 20}, {2, 64, 30}},
		},
		TypeComponentMap: NewPaletteMapping(3),
		TypeChannelDef:   NewChannelDefForAlpha(3, false),
		TypeCaptureRes: &ResolutionBox{
			VerticalNumerator: 32767, VerticalDenominator: 1, VerticalExponent: 2,
			HorizontalNumerator: 1, HorizontalDenominator: 32767, HorizontalExponent: -3,
		},
		TypeDisplayRes: &ResolutionBox{VerticalDenominator: 1, HorizontalDenominator: 1},
		TypeXML:        &XMLBox{Data: []byte(`<meta a="1">text &amp; more</meta>`)},
		TypeUUID: &UUIDBox{
			ID:   uuid.MustParse("be7acfcb-97a9-42e8-9c71-999491e3afac"),
			Data: []byte{0, 1, 2, 250},
		},
		TypeUUIDList: &UUIDListBox{IDs: []uuid.UUID{
			uuid.MustParse("be7acfcb-97a9-42e8-9c71-999491e3afac"),
			uuid.MustParse("2aca8f04-29f8-4d3a-8f1e-0f5b2d1e9c00"),
		}},
		TypeURL: &DataEntryURLBox{Version: 0, Flags: [3]byte{0, 0, 1}, URL: "http://example.com/data.xml"},
	}
}

func TestPayload_RoundTrip(t *testing.T) {
	for typ, p := range samplePayloads() {
		t.Run(typ.String(), func(t *testing.T) {
			data := p.Bytes()
			if len(data) != p.Len() {
				t.Fatalf("len(Bytes()) = %d, Len() = %d", len(data), p.Len())
			}
			k, _ := Lookup(typ)
			q := k.payload()
			if err := q.Parse(data); err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if !reflect.DeepEqual(p, q) {
				t.Errorf("Parse(Bytes()) = %+v, want %+v", q, p)
			}
			if !bytes.Equal(q.Bytes(), data) {
				t.Errorf("Bytes(Parse()) = %v, want %v", q.Bytes(), data)
			}
		})
	}
}

func TestBox_WireRoundTrip(t *testing.T) {
	for typ, p := range samplePayloads() {
		t.Run(typ.String(), func(t *testing.T) {
			raw := FromPayload(typ, p).Bytes()
			b, err := Read(stream.NewReader(bytes.NewReader(raw)), 0)
			if err != nil {
				t.Fatalf("Read() error: %v", err)
			}
			if !bytes.Equal(b.Bytes(), raw) {
				t.Errorf("Bytes() = %v, want %v", b.Bytes(), raw)
			}
		})
	}
}

func TestBox_TreeRoundTrip(t *testing.T) {
	for typ, p := range samplePayloads() {
		t.Run(typ.String(), func(t *testing.T) {
			b := FromPayload(typ, p)
			got, err := CreateBox(typ, b.Node())
			if err != nil {
				t.Fatalf("CreateBox() error: %v", err)
			}
			if !bytes.Equal(got.Bytes(), b.Bytes()) {
				t.Errorf("CreateBox(Node()) bytes = %v, want %v", got.Bytes(), b.Bytes())
			}
		})
	}
}

func TestBox_XMLRoundTrip(t *testing.T) {
	for typ, p := range samplePayloads() {
		t.Run(typ.String(), func(t *testing.T) {
			b := FromPayload(typ, p)
			var buf bytes.Buffer
			if err := tree.Encode(&buf, b.Node()); err != nil {
				t.Fatalf("Encode() error: %v", err)
			}
			n, err := tree.Decode(&buf)
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			got, err := CreateBox(typ, n)
			if err != nil {
				t.Fatalf("CreateBox() error: %v", err)
			}
			if !bytes.Equal(got.Bytes(), b.Bytes()) {
				t.Errorf("bytes after XML round trip = %v, want %v", got.Bytes(), b.Bytes())
			}
		})
	}
}

func TestImageHeader_EndToEnd(t *testing.T) {
	ihdr := &ImageHeaderBox{
		Height:            100,
		Width:             200,
		NumComponents:     3,
		BitsPerComponent:  7,
		CompressionType:   7,
		UnknownColorspace: 0,
		IPR:               0,
	}
	raw := FromPayload(TypeImageHeader, ihdr).Bytes()
	if len(raw) != 22 {
		t.Fatalf("serialized length = %d, want 22", len(raw))
	}

	b, err := Read(stream.NewReader(bytes.NewReader(raw)), 0)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	got, ok := b.Payload().(*ImageHeaderBox)
	if !ok {
		t.Fatalf("Payload() = %T, want *ImageHeaderBox", b.Payload())
	}
	if *got != *ihdr {
		t.Errorf("fields = %+v, want %+v", *got, *ihdr)
	}
	if got.Precision() != 8 || got.Signed() {
		t.Errorf("Precision/Signed = %d/%v, want 8/false", got.Precision(), got.Signed())
	}

	n := b.Node()
	if n.Name != "JPEG2000HeaderBox" {
		t.Errorf("node name = %q", n.Name)
	}
	if v, _ := n.Attr("Type"); v != "ihdr" {
		t.Errorf("Type attribute = %q, want ihdr", v)
	}
	if v, _ := n.Attr("Length"); v != "22" {
		t.Errorf("Length attribute = %q, want 22", v)
	}
	if _, ok := n.Attr("ExtraLength"); ok {
		t.Error("unexpected ExtraLength attribute")
	}
	if c := n.FirstChild("Height"); c == nil || c.Value != "100" {
		t.Errorf("Height = %+v, want 100", c)
	}
	if c := n.FirstChild("Width"); c == nil || c.Value != "200" {
		t.Errorf("Width = %+v, want 200", c)
	}
	if n.Len() != 7 {
		t.Errorf("node has %d children, want 7", n.Len())
	}
}

func TestFillBasedOnBands(t *testing.T) {
	defs := FillBasedOnBands(3, false)
	want := []ChannelDefinition{
		{0, ChannelColor, 1},
		{1, ChannelColor, 2},
		{2, ChannelColor, 3},
		{3, ChannelOpacity, 0},
		{3, ChannelOpacity, 0},
		{3, ChannelOpacity, 0},
	}
	if !reflect.DeepEqual(defs, want) {
		t.Errorf("FillBasedOnBands(3, false) = %v, want %v", defs, want)
	}

	cdef := &ChannelDefBox{Definitions: defs}
	if cdef.Len() != 2+6*6 {
		t.Errorf("Len() = %d, want 38", cdef.Len())
	}
	if n := cdef.Bytes(); n[0] != 0 || n[1] != 6 {
		t.Errorf("count field = %v, want [0 6]", n[:2])
	}

	pre := FillBasedOnBands(3, true)
	if len(pre) != 9 {
		t.Fatalf("FillBasedOnBands(3, true) has %d entries, want 9", len(pre))
	}
	for i, d := range pre[6:] {
		if d != (ChannelDefinition{uint16(i), ChannelPremultiplied, uint16(i + 1)}) {
			t.Errorf("premultiplied entry %d = %v", i, d)
		}
	}
}

func TestChannelDefBox_HasAlpha(t *testing.T) {
	tests := []struct {
		box            *ChannelDefBox
		alpha, premult bool
	}{
		{NewChannelDefForAlpha(3, false), true, false},
		{NewChannelDefForAlpha(1, true), true, true},
		{&ChannelDefBox{Definitions: []ChannelDefinition{{0, ChannelColor, 1}}}, false, false},
	}
	for i, tt := range tests {
		a, p := tt.box.HasAlpha()
		if a != tt.alpha || p != tt.premult {
			t.Errorf("case %d: HasAlpha() = %v, %v, want %v, %v", i, a, p, tt.alpha, tt.premult)
		}
	}
}

func TestChannelDefBox_Parse_BadCount(t *testing.T) {
	b := &ChannelDefBox{}
	if err := b.Parse([]byte{0, 2, 0, 0, 0, 0, 0, 1}); !errors.Is(err, ErrTruncated) {
		t.Errorf("Parse() error = %v, want ErrTruncated", err)
	}
}

func TestSignatureBox_Bad(t *testing.T) {
	raw := rawBox(12, TypeJP2Signature, []byte{0x0D, 0x0A, 0x87, 0x0B})
	_, err := Read(stream.NewReader(bytes.NewReader(raw)), 0)
	if !errors.Is(err, ErrBadSignature) {
		t.Errorf("Read() error = %v, want ErrBadSignature", err)
	}
}

func TestFileTypeBox_Parse_TooShort(t *testing.T) {
	b := &FileTypeBox{}
	if err := b.Parse([]byte{0x6A, 0x70, 0x32, 0x20}); !errors.Is(err, ErrTruncated) {
		t.Errorf("Parse() error = %v, want ErrTruncated", err)
	}
}

func TestColorSpecBox_ICC(t *testing.T) {
	profile := []byte("fake icc profile")
	b := NewICCColorSpec(profile)
	data := b.Bytes()
	if len(data) != 3+len(profile) {
		t.Fatalf("len(Bytes()) = %d", len(data))
	}
	got := &ColorSpecBox{}
	if err := got.Parse(data); err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got.Method != MethodRestrictedICC || !bytes.Equal(got.ICCProfile, profile) {
		t.Errorf("Parse() = %+v", got)
	}
}

func TestColorSpecBox_Parse_Errors(t *testing.T) {
	tests := [][]byte{
		{1, 0},
		{1, 0, 0, 0, 0},
		{1, 0, 0, 0, 0, 0, 16, 0},
	}
	for _, data := range tests {
		b := &ColorSpecBox{}
		if err := b.Parse(data); !errors.Is(err, ErrTruncated) {
			t.Errorf("Parse(%v) error = %v, want ErrTruncated", data, err)
		}
	}
}

func TestPaletteBox_WideEntriesUnsupported(t *testing.T) {
	data := []byte{0, 1, 1, 15, 0x12, 0x34}
	b := &PaletteBox{}
	if err := b.Parse(data); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Parse() error = %v, want ErrUnsupported", err)
	}

	n := FromPayload(TypePalette, &PaletteBox{BitDepth: []uint8{7}, LUT: [][]byte{{1}}}).Node()
	n.FirstChild("BitDepth").SetValue([]byte{15})
	if _, err := CreateBox(TypePalette, n); !errors.Is(err, ErrUnsupported) {
		t.Errorf("CreateBox() error = %v, want ErrUnsupported", err)
	}
}

func TestPaletteBox_Parse_EntryCount(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"no entries", []byte{0, 0, 3, 7, 7, 7}},
		{"too many entries", append([]byte{0x04, 0x01, 1, 7}, make([]byte, 1025)...)},
		{"no columns", []byte{0, 1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := (&PaletteBox{}).Parse(tt.data); !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("Parse() error = %v, want ErrInvalidPayload", err)
			}
			if _, err := FromContent(TypePalette, tt.data); !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("FromContent() error = %v, want ErrInvalidPayload", err)
			}
		})
	}
}

// wideLUT returns a one-entry palette with cols 8-bit columns.
func wideLUT(cols int) *PaletteBox {
	p := &PaletteBox{BitDepth: make([]uint8, cols), LUT: make([][]byte, cols)}
	for c := range p.LUT {
		p.BitDepth[c] = 7
		p.LUT[c] = []byte{1}
	}
	return p
}

func TestPaletteBox_Validate(t *testing.T) {
	tests := []struct {
		name string
		pal  *PaletteBox
		want error
	}{
		{"valid", &PaletteBox{BitDepth: []uint8{7, 7}, LUT: [][]byte{{1, 2}, {3, 4}}}, nil},
		{"empty", &PaletteBox{}, ErrInvalidPayload},
		{"no entries", &PaletteBox{BitDepth: []uint8{7}, LUT: [][]byte{{}}}, ErrInvalidPayload},
		{"too many entries", &PaletteBox{BitDepth: []uint8{7}, LUT: [][]byte{make([]byte, MaxPaletteEntries+1)}}, ErrInvalidPayload},
		{"too many columns", wideLUT(256), ErrInvalidPayload},
		{"depth count", &PaletteBox{BitDepth: []uint8{7}, LUT: [][]byte{{1}, {2}}}, ErrInvalidPayload},
		{"ragged columns", &PaletteBox{BitDepth: []uint8{7, 7}, LUT: [][]byte{{1, 2}, {3}}}, ErrInvalidPayload},
		{"wide column", &PaletteBox{BitDepth: []uint8{15}, LUT: [][]byte{{1, 2}}}, ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromPayload(TypePalette, tt.pal).Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPaletteBox_LargeColorPaletteInvalid(t *testing.T) {
	p := NewPaletteFromColors(make(color.Palette, 70000), false)
	if err := p.Validate(); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Validate() error = %v, want ErrInvalidPayload", err)
	}
	// The entry count field saturates instead of wrapping around.
	data := p.Bytes()
	if got := int(data[0])<<8 | int(data[1]); got != 65535 {
		t.Errorf("entry count field = %d, want 65535", got)
	}
}

func TestPaletteBox_ParseNode_NoEntries(t *testing.T) {
	n := tree.New("JPEG2000PaletteBox").Append(
		tree.NewValue("NumberEntries", uint16(0)),
		tree.NewValue("NumberColors", uint8(1)),
		tree.NewValue("BitDepth", []byte{7}),
		tree.New("LUT"),
	)
	if _, err := CreateBox(TypePalette, n); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("CreateBox() error = %v, want ErrInvalidPayload", err)
	}
}

func TestPaletteBox_EntryMajorLayout(t *testing.T) {
	p := &PaletteBox{BitDepth: []uint8{7, 7}, LUT: [][]byte{{1, 2, 3}, {10, 20, 30}}}
	want := []byte{0, 3, 2, 7, 7, 1, 10, 2, 20, 3, 30}
	if got := p.Bytes(); !bytes.Equal(got, want) {
		t.Errorf("Bytes() = %v, want %v", got, want)
	}
}

func TestPaletteBox_Colors(t *testing.T) {
	pal := color.Palette{
		color.NRGBA{R: 255, A: 255},
		color.NRGBA{G: 128, B: 7, A: 40},
	}
	p := NewPaletteFromColors(pal, true)
	if p.NumEntries() != 2 || p.NumColumns() != 4 {
		t.Fatalf("NumEntries/NumColumns = %d/%d, want 2/4", p.NumEntries(), p.NumColumns())
	}
	got := p.Colors()
	for i := range pal {
		if got[i] != pal[i] {
			t.Errorf("Colors()[%d] = %v, want %v", i, got[i], pal[i])
		}
	}
}

func TestResolution_EdgeValues(t *testing.T) {
	for _, v := range []uint16{0, 1, 32767, 65535} {
		for _, e := range []int8{-128, -1, 0, 1, 127} {
			r := &ResolutionBox{
				VerticalNumerator: v, VerticalDenominator: 1, VerticalExponent: e,
				HorizontalNumerator: 1, HorizontalDenominator: v, HorizontalExponent: -e,
			}
			data := r.Bytes()
			got := &ResolutionBox{}
			if err := got.Parse(data); err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if *got != *r || !bytes.Equal(got.Bytes(), data) {
				t.Errorf("round trip of %+v = %+v", *r, *got)
			}
		}
	}
}

func TestNewResolution(t *testing.T) {
	tests := []float64{0, 1, 72, 2834.6, 32767, 65535, 65536, 1e6, 123456789, 0.5, 1.0 / 3}
	for _, v := range tests {
		r := NewResolution(v, v)
		if v > math.MaxUint16 && r.VerticalExponent < 1 {
			t.Errorf("NewResolution(%g) exponent = %d, want >= 1", v, r.VerticalExponent)
		}
		got := r.Vertical()
		if math.Abs(got-v) > 1e-4*v {
			t.Errorf("NewResolution(%g).Vertical() = %g", v, got)
		}
		if r.Horizontal() != got {
			t.Errorf("Horizontal() = %g, Vertical() = %g", r.Horizontal(), got)
		}
	}
}

func TestDataEntryURLBox_Parse_Errors(t *testing.T) {
	tests := [][]byte{
		{0, 0, 0},
		{0, 0, 0, 0, 'a'},
		{0, 0, 0, 0, 'a', 0, 'b', 0},
	}
	for _, data := range tests {
		b := &DataEntryURLBox{}
		if err := b.Parse(data); err == nil {
			t.Errorf("Parse(%v) succeeded, want error", data)
		}
	}
}

func TestDecodeText_Latin1(t *testing.T) {
	if got := DecodeText([]byte{'c', 'a', 'f', 0xE9}); got != "café" {
		t.Errorf("DecodeText() = %q, want café", got)
	}
	if got := DecodeText([]byte("naïve")); got != "naïve" {
		t.Errorf("DecodeText() = %q, want naïve", got)
	}
}

func TestUUIDBox_NodeValues(t *testing.T) {
	id := uuid.MustParse("be7acfcb-97a9-42e8-9c71-999491e3afac")
	n := FromPayload(TypeUUID, &UUIDBox{ID: id}).Node()
	if c := n.FirstChild("UUID"); c == nil || c.Value != id.String() {
		t.Fatalf("UUID child = %+v", c)
	}

	// Byte-list form is accepted as well.
	n.FirstChild("UUID").Object = nil
	n.FirstChild("UUID").Value = strings.TrimSpace(tree.FormatValue(id[:]))
	b, err := CreateBox(TypeUUID, n)
	if err != nil {
		t.Fatalf("CreateBox() error: %v", err)
	}
	if got := b.Payload().(*UUIDBox).ID; got != id {
		t.Errorf("ID = %v, want %v", got, id)
	}
}
