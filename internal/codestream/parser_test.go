package codestream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"io"
	"reflect"
	"testing"
)

func testHeader() *Header {
	return &Header{
		ImageWidth:  100,
		ImageHeight: 60,
		TileWidth:   64,
		TileHeight:  64,
		Components: []ComponentInfo{
			{BitDepth: 7, SubsamplingX: 1, SubsamplingY: 1},
			{BitDepth: 0x8B, SubsamplingX: 2, SubsamplingY: 2},
		},
		CodingStyle: CodingStyleDefault{
			ProgressionOrder:  RPCL,
			NumLayers:         3,
			NumDecompositions: 5,
			WaveletTransform:  1,
		},
		Comments: []string{"Grüße"},
	}
}

func encodeHeader(t *testing.T, h *Header, tail ...byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteHeader(&buf, h); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	buf.Write(tail)
	return buf.Bytes()
}

func TestMarker_String(t *testing.T) {
	tests := []struct {
		marker Marker
		want   string
	}{
		{SOC, "SOC"},
		{SIZ, "SIZ"},
		{COD, "COD"},
		{COM, "COM"},
		{SOT, "SOT"},
		{EOC, "EOC"},
		{0xFF01, "0xFF01"},
	}
	for _, tt := range tests {
		if got := tt.marker.String(); got != tt.want {
			t.Errorf("Marker(%04X).String() = %q, want %q", uint16(tt.marker), got, tt.want)
		}
	}
}

func TestMarker_HasLength(t *testing.T) {
	tests := []struct {
		marker Marker
		want   bool
	}{
		{SOC, false},
		{SOD, false},
		{EOC, false},
		{EPH, false},
		{0xFF30, false},
		{SIZ, true},
		{QCD, true},
		{SOT, true},
	}
	for _, tt := range tests {
		if got := tt.marker.HasLength(); got != tt.want {
			t.Errorf("%v.HasLength() = %v, want %v", tt.marker, got, tt.want)
		}
	}
	if Marker(0x1234).Valid() {
		t.Error("0x1234 should not be a valid marker")
	}
}

func TestReadHeader_RoundTrip(t *testing.T) {
	want := testHeader()
	data := encodeHeader(t, want, 0xFF, 0x90, 0, 10)

	p := NewParser(bytes.NewReader(data))
	got, err := p.ReadHeader()
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	want.CalculateDerivedValues()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadHeader = %+v, want %+v", got, want)
	}

	// The reader stops after the SOT marker code.
	rest, _ := io.ReadAll(p.r)
	if !bytes.Equal(rest, []byte{0, 10}) {
		t.Errorf("remaining bytes = %v, want [0 10]", rest)
	}
}

func TestReadHeader_SkipsUnknownSegments(t *testing.T) {
	h := testHeader()
	h.Comments = nil
	data := encodeHeader(t, h)
	// QCD segment, binary comment, then EOC.
	data = append(data, 0xFF, 0x5C, 0, 5, 0, 1, 2)
	data = append(data, 0xFF, 0x64, 0, 6, 0, 0, 0xAA, 0xBB)
	data = append(data, 0xFF, 0xD9)

	got, err := Peek(data)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if len(got.Comments) != 0 {
		t.Errorf("binary comment kept: %q", got.Comments)
	}
	if got.CodingStyle.NumLayers != 3 {
		t.Errorf("NumLayers = %d, want 3", got.CodingStyle.NumLayers)
	}
}

func TestReadHeader_Errors(t *testing.T) {
	valid := encodeHeader(t, testHeader(), 0xFF, 0x90)

	sizLen := append([]byte(nil), valid...)
	binary.BigEndian.PutUint16(sizLen[4:], 47)

	zeroTile := testHeader()
	zeroTile.TileWidth = 0
	var zt bytes.Buffer
	zt.Write([]byte{0xFF, 0x4F})
	zt.Write(appendSIZ(nil, zeroTile))
	zt.Write([]byte{0xFF, 0x90})

	tests := []struct {
		name   string
		data   []byte
		target error
	}{
		{"empty", nil, io.EOF},
		{"no SOC", valid[2:], ErrInvalidMarker},
		{"truncated", valid[:30], io.ErrUnexpectedEOF},
		{"no end marker", valid[:len(valid)-2], io.EOF},
		{"SIZ length", sizLen, nil},
		{"zero tile", zt.Bytes(), ErrInvalidHeader},
		{"stray SOD", append(valid[:len(valid)-2:len(valid)-2], 0xFF, 0x93), ErrInvalidMarker},
		{"not a marker", append(valid[:len(valid)-2:len(valid)-2], 0x12, 0x34), ErrInvalidMarker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Peek(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("error %v is not %v", err, tt.target)
			}
		})
	}
}

func TestHeader_TileGrid(t *testing.T) {
	h := &Header{
		ImageWidth:   100,
		ImageHeight:  60,
		ImageXOffset: 10,
		ImageYOffset: 5,
		TileWidth:    32,
		TileHeight:   32,
		TileXOffset:  0,
		TileYOffset:  0,
		Components:   []ComponentInfo{{BitDepth: 7, SubsamplingX: 2, SubsamplingY: 1}},
	}
	h.CalculateDerivedValues()
	if err := h.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if h.NumTilesX != 4 || h.NumTilesY != 2 || h.NumTiles() != 8 {
		t.Fatalf("grid = %dx%d (%d), want 4x2", h.NumTilesX, h.NumTilesY, h.NumTiles())
	}

	tests := []struct {
		tile int
		want image.Rectangle
	}{
		{0, image.Rect(10, 5, 32, 32)},
		{1, image.Rect(32, 5, 64, 32)},
		{3, image.Rect(96, 5, 100, 32)},
		{4, image.Rect(10, 32, 32, 60)},
		{7, image.Rect(96, 32, 100, 60)},
	}
	for _, tt := range tests {
		got, err := h.TileBounds(tt.tile)
		if err != nil {
			t.Fatalf("TileBounds(%d): %v", tt.tile, err)
		}
		if got != tt.want {
			t.Errorf("TileBounds(%d) = %v, want %v", tt.tile, got, tt.want)
		}
	}

	if _, err := h.TileBounds(8); !errors.Is(err, ErrTileIndex) {
		t.Errorf("TileBounds(8) error = %v, want ErrTileIndex", err)
	}
	if got := h.ComponentBounds(0, image.Rect(10, 5, 32, 32)); got != image.Rect(5, 5, 16, 32) {
		t.Errorf("ComponentBounds = %v", got)
	}
}

func TestHeader_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Header)
	}{
		{"empty image", func(h *Header) { h.ImageXOffset = h.ImageWidth }},
		{"tile offset past origin", func(h *Header) { h.TileXOffset = 1 }},
		{"first tile misses origin", func(h *Header) { h.ImageYOffset = 64; h.ImageHeight = 100 }},
		{"no components", func(h *Header) { h.Components = nil }},
		{"zero subsampling", func(h *Header) { h.Components[0].SubsamplingY = 0 }},
		{"precision", func(h *Header) { h.Components[0].BitDepth = 40 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testHeader()
			tt.modify(h)
			if err := h.Validate(); !errors.Is(err, ErrInvalidHeader) {
				t.Errorf("Validate() = %v, want ErrInvalidHeader", err)
			}
		})
	}
}

func TestComponentInfo(t *testing.T) {
	c := ComponentInfo{BitDepth: 0x8B}
	if c.Precision() != 12 || !c.IsSigned() {
		t.Errorf("0x8B: precision %d signed %v", c.Precision(), c.IsSigned())
	}
	c = ComponentInfo{BitDepth: 7}
	if c.Precision() != 8 || c.IsSigned() {
		t.Errorf("7: precision %d signed %v", c.Precision(), c.IsSigned())
	}
}

func TestWriteHeader_Layout(t *testing.T) {
	h := testHeader()
	h.Comments = nil
	h.CodingStyle.NumLayers = 0
	h.CodingStyle.PrecinctSizes = []uint8{0x77, 0x88}
	data := encodeHeader(t, h)

	if Marker(binary.BigEndian.Uint16(data)) != SOC {
		t.Fatal("missing SOC")
	}
	if Marker(binary.BigEndian.Uint16(data[2:])) != SIZ || binary.BigEndian.Uint16(data[4:]) != 44 {
		t.Fatalf("SIZ segment header = % X", data[2:6])
	}
	cod := data[4+44:]
	if Marker(binary.BigEndian.Uint16(cod)) != COD || binary.BigEndian.Uint16(cod[2:]) != 14 {
		t.Fatalf("COD segment header = % X", cod[:4])
	}
	if cod[4]&CodingStylePrecincts == 0 {
		t.Error("precinct flag not set")
	}
	if binary.BigEndian.Uint16(cod[6:]) != 1 {
		t.Errorf("layers = %d, want default 1", binary.BigEndian.Uint16(cod[6:]))
	}
	if len(data) != 2+46+16 {
		t.Errorf("header length = %d", len(data))
	}
}

func TestWriteHeader_Invalid(t *testing.T) {
	h := testHeader()
	h.Components = nil
	if err := WriteHeader(io.Discard, h); !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("WriteHeader() = %v, want ErrInvalidHeader", err)
	}

	h = testHeader()
	h.Comments = []string{"日本"}
	if err := WriteHeader(io.Discard, h); err == nil {
		t.Error("expected error for a comment outside Latin-9")
	}
}
