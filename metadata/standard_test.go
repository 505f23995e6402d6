package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrjoshuak/go-jp2/box"
	"github.com/mrjoshuak/go-jp2/tree"
)

func attr(t *testing.T, n *tree.Node, key string) string {
	t.Helper()
	require.NotNil(t, n)
	v, ok := n.Attr(key)
	require.True(t, ok, "%s has no %s attribute", n.Name, key)
	return v
}

func withValue(name, value string) *tree.Node {
	return valueNode(name, value)
}

func TestStandardTree(t *testing.T) {
	m := ForImage(ImageSpec{
		Width:     6,
		Height:    4,
		BitDepths: []int{8, 8, 8, 8},
		Color:     ColorRGB,
		Alpha:     true,
	})
	m.Append(box.FromPayload(box.TypeCaptureRes, box.NewResolution(2000, 4000)))
	m.Append(xmlBox("<note>hi</note>"))

	root := m.StandardTree()
	assert.Equal(t, StandardFormatName, root.Name)
	assert.Equal(t, []string{"Chroma", "Compression", "Data", "Dimension", "Text", "Transparency"}, childNames(root))

	chroma := root.FirstChild("Chroma")
	assert.Equal(t, "RGB", attr(t, chroma.FirstChild("ColorSpaceType"), "name"))
	assert.Equal(t, "4", attr(t, chroma.FirstChild("NumChannels"), "value"))

	assert.Equal(t, "JPEG2000", attr(t, root.Find("CompressionTypeName"), "value"))

	data := root.FirstChild("Data")
	assert.Equal(t, []string{"BitsPerSample", "PlanarConfiguration", "SampleFormat"}, childNames(data))
	assert.Equal(t, "8 8 8 8", attr(t, data.FirstChild("BitsPerSample"), "value"))
	assert.Equal(t, "TileInterleaved", attr(t, data.FirstChild("PlanarConfiguration"), "value"))
	assert.Equal(t, "UnsignedIntegral", attr(t, data.FirstChild("SampleFormat"), "value"))

	dim := root.FirstChild("Dimension")
	assert.Equal(t, "0.5", attr(t, dim.FirstChild("PixelAspectRatio"), "value"))
	assert.Equal(t, "0.25", attr(t, dim.FirstChild("HorizontalPixelSize"), "value"))
	assert.Equal(t, "0.5", attr(t, dim.FirstChild("VerticalPixelSize"), "value"))

	assert.Equal(t, "<note>hi</note>", attr(t, root.Find("TextEntry"), "value"))
	assert.Equal(t, "nonpremultiplied", attr(t, root.Find("Alpha"), "value"))
}

func TestStandardTree_Empty(t *testing.T) {
	root := New().StandardTree()
	assert.Equal(t, []string{"Chroma", "Compression", "Data"}, childNames(root))
	assert.Equal(t, 0, root.FirstChild("Chroma").Len())
	assert.Equal(t, []string{"PlanarConfiguration"}, childNames(root.FirstChild("Data")))
}

func TestStandardTree_PaletteAndDepths(t *testing.T) {
	m := New()
	m.Add(ihdrBox(1))
	pal := &box.PaletteBox{
		BitDepth: []uint8{7, 7, 7},
		LUT:      [][]byte{{10, 20}, {30, 40}, {50, 60}},
	}
	m.Add(box.FromPayload(box.TypePalette, pal))
	m.Add(box.FromPayload(box.TypeBitsPerComp, &box.BitsPerCompBox{BitsPerComponent: []uint8{0x87, 0x8F, 0x87}}))

	root := m.StandardTree()
	chroma := root.FirstChild("Chroma")
	assert.Equal(t, "3", attr(t, chroma.FirstChild("NumChannels"), "value"))
	entries := chroma.FirstChild("Palette").ChildrenNamed("PaletteEntry")
	require.Len(t, entries, 2)
	assert.Equal(t, "1", attr(t, entries[1], "index"))
	assert.Equal(t, "20", attr(t, entries[1], "red"))
	assert.Equal(t, "40", attr(t, entries[1], "green"))
	assert.Equal(t, "60", attr(t, entries[1], "blue"))
	_, hasAlpha := entries[1].Attr("alpha")
	assert.False(t, hasAlpha)

	data := root.FirstChild("Data")
	assert.Equal(t, []string{"SampleFormat", "BitsPerSample", "PlanarConfiguration"}, childNames(data))
	assert.Equal(t, "Index", attr(t, data.FirstChild("SampleFormat"), "value"))
	assert.Equal(t, "8 16 8", attr(t, data.FirstChild("BitsPerSample"), "value"))
}

func TestMergeStandard(t *testing.T) {
	root := tree.New(StandardFormatName).Append(
		tree.New("Chroma").Append(
			withValue("NumChannels", "3"),
			tree.New("ColorSpaceType"),
		),
		tree.New("Compression").Append(withValue("CompressionTypeName", "JPEG2000")),
		tree.New("Data").Append(
			withValue("BitsPerSample", "8 8 8"),
			withValue("SampleFormat", "UnsignedIntegral"),
		),
		tree.New("Dimension").Append(withValue("HorizontalPixelSize", "0.5")),
		tree.New("Transparency").Append(withValue("Alpha", "premultiplied")),
		tree.New("Text").Append(withValue("TextEntry", "hello")),
	)
	root.FirstChild("Chroma").FirstChild("ColorSpaceType").SetAttr("name", "Gray")

	m := New()
	require.NoError(t, m.MergeTree(StandardFormatName, root))
	assert.Equal(t, []string{nameColorSpec, nameImageHdr, nameCaptureRes, nameChannelDef, nameXML}, names(m))

	colr := m.Element(nameColorSpec).Payload().(*box.ColorSpecBox)
	assert.EqualValues(t, box.CSGray, colr.EnumeratedColorspace)

	hdr := m.Element(nameImageHdr).Payload().(*box.ImageHeaderBox)
	assert.EqualValues(t, 3, hdr.NumComponents)
	assert.EqualValues(t, 7, hdr.BitsPerComponent)
	assert.EqualValues(t, 7, hdr.CompressionType)
	assert.EqualValues(t, 0, hdr.UnknownColorspace)

	res := m.Element(nameCaptureRes).Payload().(*box.ResolutionBox)
	assert.InDelta(t, 2000, res.Horizontal(), 1e-9)
	assert.InDelta(t, 2000, res.Vertical(), 1e-9)

	cdef := m.Element(nameChannelDef).Payload().(*box.ChannelDefBox)
	assert.Equal(t, box.FillBasedOnBands(3, true), cdef.Definitions)

	text := m.Element(nameXML).Payload().(*box.XMLBox).Text()
	assert.Contains(t, text, "<Text>")
	assert.Contains(t, text, `value="hello"`)
}

func TestMergeStandard_VaryingDepths(t *testing.T) {
	m := New()
	m.Add(box.FromPayload(box.TypeBitsPerComp, &box.BitsPerCompBox{BitsPerComponent: []uint8{7}}))
	root := tree.New(StandardFormatName).Append(
		tree.New("Data").Append(withValue("BitsPerSample", "8 16"), withValue("SampleFormat", "SignedIntegral")),
	)
	require.NoError(t, m.MergeTree(StandardFormatName, root))

	hdr := m.Element(nameImageHdr).Payload().(*box.ImageHeaderBox)
	assert.EqualValues(t, 2, hdr.NumComponents)
	assert.True(t, hdr.BitsPerComponentVaries())
	assert.EqualValues(t, 1, hdr.UnknownColorspace)
	bpcc := m.Element(nameBitsPer).Payload().(*box.BitsPerCompBox)
	assert.Equal(t, []uint8{0x87, 0x8F}, bpcc.BitsPerComponent)

	root = tree.New(StandardFormatName).Append(tree.New("Data").Append(withValue("BitsPerSample", "12 12")))
	require.NoError(t, m.MergeTree(StandardFormatName, root))
	assert.Nil(t, m.Element(nameBitsPer))
	assert.EqualValues(t, 11, m.Element(nameImageHdr).Payload().(*box.ImageHeaderBox).BitsPerComponent)
}

func TestMergeStandard_Palette(t *testing.T) {
	entry := func(index, r, g, b string) *tree.Node {
		n := tree.New("PaletteEntry")
		n.SetAttr("index", index)
		n.SetAttr("red", r)
		n.SetAttr("green", g)
		n.SetAttr("blue", b)
		return n
	}
	withAlpha := entry("2", "1", "2", "3")
	withAlpha.SetAttr("alpha", "128")

	root := tree.New(StandardFormatName).Append(tree.New("Chroma").Append(
		tree.New("Palette").Append(entry("0", "255", "0", "0"), withAlpha),
	))
	m := New()
	require.NoError(t, m.MergeTree(StandardFormatName, root))

	pal := m.Element(namePalette).Payload().(*box.PaletteBox)
	assert.Equal(t, 4, pal.NumEntries())
	assert.Equal(t, 4, pal.NumColumns())
	assert.Equal(t, []byte{255, 0, 1, 0}, pal.LUT[0])
	assert.Equal(t, []byte{255, 255, 128, 255}, pal.LUT[3])

	cmap := m.Element(nameCompMap).Payload().(*box.ComponentMapBox)
	assert.Len(t, cmap.Mappings, 4)
}

func TestMergeStandard_Errors(t *testing.T) {
	badEntry := tree.New("PaletteEntry")
	badEntry.SetAttr("index", "0")
	badEntry.SetAttr("red", "300")
	badEntry.SetAttr("green", "0")
	badEntry.SetAttr("blue", "0")

	tests := []struct {
		name string
		node *tree.Node
	}{
		{"unsupported", tree.New("Tile")},
		{"bad channels", tree.New("Chroma").Append(withValue("NumChannels", "x"))},
		{"bad palette entry", tree.New("Chroma").Append(tree.New("Palette").Append(badEntry))},
		{"empty palette", tree.New("Chroma").Append(tree.New("Palette"))},
		{"bad depth", tree.New("Data").Append(withValue("BitsPerSample", "8 0"))},
		{"bad pixel size", tree.New("Dimension").Append(withValue("VerticalPixelSize", "-1"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().MergeTree(StandardFormatName, tree.New(StandardFormatName).Append(tt.node))
			var te *TreeError
			assert.ErrorAs(t, err, &te)
		})
	}
}

func TestMergeStandard_NoAlpha(t *testing.T) {
	root := tree.New(StandardFormatName).Append(tree.New("Transparency").Append(withValue("Alpha", "none")))
	m := New()
	require.NoError(t, m.MergeTree(StandardFormatName, root))
	assert.Equal(t, 0, m.Len())
}

func TestStandardRoundTrip(t *testing.T) {
	src := ForImage(ImageSpec{Width: 6, Height: 4, BitDepths: []int{8, 8, 8}, Color: ColorRGB})

	m := New()
	require.NoError(t, m.SetFromTree(StandardFormatName, src.StandardTree()))

	colr := m.Element(nameColorSpec).Payload().(*box.ColorSpecBox)
	assert.EqualValues(t, box.CSSRGB, colr.EnumeratedColorspace)
	hdr := m.Element(nameImageHdr).Payload().(*box.ImageHeaderBox)
	want := src.Element(nameImageHdr).Payload().(*box.ImageHeaderBox)
	assert.Equal(t, want.NumComponents, hdr.NumComponents)
	assert.Equal(t, want.BitsPerComponent, hdr.BitsPerComponent)
	assert.Equal(t, want.UnknownColorspace, hdr.UnknownColorspace)
}
