package box

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mrjoshuak/go-jp2/tree"
)

func TestRegistry_Names(t *testing.T) {
	tests := []struct {
		typ  Type
		name string
	}{
		{TypeJP2Signature, "JPEG2000SignatureBox"},
		{TypeFileType, "JPEG2000FileTypeBox"},
		{TypeIPR, "JPEG2000IntellectualPropertyRightsBox"},
		{TypeXML, "JPEG2000XMLBox"},
		{TypeUUID, "JPEG2000UUIDBox"},
		{TypeUUIDInfo, "JPEG2000UUIDInfoBox"},
		{TypeJP2Header, "JPEG2000HeaderSuperBox"},
		{TypeContCodestream, "JPEG2000CodeStreamBox"},
		{TypeImageHeader, "JPEG2000HeaderBox"},
		{TypeBitsPerComp, "JPEG2000BitsPerComponentBox"},
		{TypeColorSpec, "JPEG2000ColorSpecificationBox"},
		{TypePalette, "JPEG2000PaletteBox"},
		{TypeComponentMap, "JPEG2000ComponentMappingBox"},
		{TypeChannelDef, "JPEG2000ChannelDefinitionBox"},
		{TypeResolution, "JPEG2000ResolutionBox"},
		{TypeCaptureRes, "JPEG2000CaptureResolutionBox"},
		{TypeDisplayRes, "JPEG2000DefaultDisplayResolutionBox"},
		{TypeUUIDList, "JPEG2000UUIDListBox"},
		{TypeURL, "JPEG2000DataEntryURLBox"},
	}
	if len(tests) != len(Kinds()) {
		t.Fatalf("registry has %d kinds, test covers %d", len(Kinds()), len(tests))
	}
	for _, tt := range tests {
		if got := TypeToName(tt.typ); got != tt.name {
			t.Errorf("TypeToName(%v) = %q, want %q", tt.typ, got, tt.name)
		}
		if got, ok := NameToType(tt.name); !ok || got != tt.typ {
			t.Errorf("NameToType(%q) = %v, %v, want %v", tt.name, got, ok, tt.typ)
		}
	}
}

func TestRegistry_Unknown(t *testing.T) {
	if got := TypeToName(MustParseType("abcd")); got != "unknown" {
		t.Errorf("TypeToName(abcd) = %q, want unknown", got)
	}
	if _, ok := NameToType("NoSuchBox"); ok {
		t.Error("NameToType(NoSuchBox) found a type")
	}
	if _, err := CreateBox(MustParseType("abcd"), tree.New("unknown")); !errors.Is(err, ErrNoConstructor) {
		t.Errorf("CreateBox(abcd) error = %v, want ErrNoConstructor", err)
	}
}

func TestRegistry_Completeness(t *testing.T) {
	samples := samplePayloads()
	for _, k := range Kinds() {
		ctor, ok := Constructor(k.Type)
		if k.Container {
			if ok {
				t.Errorf("container kind %v has a constructor", k.Type)
			}
			if k.Type != TypeJP2Header && k.Type != TypeResolution {
				t.Errorf("unexpected container kind %v", k.Type)
			}
			if _, err := CreateBox(k.Type, tree.New(k.Name)); !errors.Is(err, ErrNoConstructor) {
				t.Errorf("CreateBox(%v) error = %v, want ErrNoConstructor", k.Type, err)
			}
			continue
		}
		if !ok {
			t.Errorf("kind %v has no constructor", k.Type)
			continue
		}

		var n *tree.Node
		if k.Typed() {
			p, ok := samples[k.Type]
			if !ok {
				t.Errorf("no sample payload for %v", k.Type)
				continue
			}
			n = FromPayload(k.Type, p).Node()
		} else {
			n = tree.New(k.Name)
			n.SetAttr("Type", k.Type.String())
			n.Append(tree.NewValue("Content", []byte{1, 2, 3}))
		}
		b, err := ctor(n)
		if err != nil {
			t.Errorf("constructor for %v error: %v", k.Type, err)
			continue
		}
		if b.Type() != k.Type {
			t.Errorf("constructor for %v built %v", k.Type, b.Type())
		}
	}
}

func TestFromNode(t *testing.T) {
	n := tree.New("JPEG2000CodeStreamBox")
	n.SetAttr("Length", "12")
	n.SetAttr("Type", "jp2c")
	n.Append(tree.NewValue("Content", []byte{1, 2, 3, 4}))

	b, err := FromNode(n)
	if err != nil {
		t.Fatalf("FromNode() error: %v", err)
	}
	if b.Length() != 12 || !bytes.Equal(b.Content(), []byte{1, 2, 3, 4}) {
		t.Errorf("FromNode() = length %d content %v", b.Length(), b.Content())
	}
	if b.Payload() != nil {
		t.Errorf("FromNode() payload = %T, want nil", b.Payload())
	}

	back := b.Node()
	if c := back.FirstChild("Content"); c == nil || c.Value != "1 2 3 4" {
		t.Errorf("Content child = %+v", c)
	}
}

func TestFromNode_Errors(t *testing.T) {
	noType := tree.New("JPEG2000CodeStreamBox")

	badType := tree.New("x")
	badType.SetAttr("Type", "zzzz")

	mismatch := tree.New("JPEG2000CodeStreamBox")
	mismatch.SetAttr("Type", "jp2c")
	mismatch.SetAttr("Length", "20")
	mismatch.Append(tree.NewValue("Content", []byte{1}))

	illegal := tree.New("JPEG2000CodeStreamBox")
	illegal.SetAttr("Type", "jp2c")
	illegal.SetAttr("Length", "5")

	tests := []struct {
		name string
		node *tree.Node
		want error
	}{
		{"no type", noType, ErrTypeNotDefined},
		{"unregistered type", badType, ErrTypeNotDefined},
		{"size mismatch", mismatch, ErrSizeMismatch},
		{"illegal length", illegal, ErrIllegalLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromNode(tt.node); !errors.Is(err, tt.want) {
				t.Errorf("FromNode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFromNode_Extended(t *testing.T) {
	b, _ := NewExtended(TypeIPR, 19, []byte{7, 8, 9})
	n := b.Node()
	if v, _ := n.Attr("ExtraLength"); v != "19" {
		t.Fatalf("ExtraLength attribute = %q, want 19", v)
	}
	got, err := FromNode(n)
	if err != nil {
		t.Fatalf("FromNode() error: %v", err)
	}
	if !bytes.Equal(got.Bytes(), b.Bytes()) {
		t.Errorf("Bytes() = %v, want %v", got.Bytes(), b.Bytes())
	}
}

func TestCreateBox_KeepsExtendedForm(t *testing.T) {
	b, err := NewExtended(TypeXML, 20, []byte("<a/>"))
	if err != nil {
		t.Fatalf("NewExtended() error: %v", err)
	}
	got, err := CreateBox(TypeXML, b.Node())
	if err != nil {
		t.Fatalf("CreateBox() error: %v", err)
	}
	if got.Length() != 1 || got.ExtraLength() != 20 {
		t.Errorf("Length/ExtraLength = %d/%d, want 1/20", got.Length(), got.ExtraLength())
	}
}
