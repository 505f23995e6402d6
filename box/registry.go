package box

import (
	"fmt"

	"github.com/mrjoshuak/go-jp2/tree"
)

// Kind describes one registered box type.
type Kind struct {
	Type Type
	Name string

	// Container kinds (jp2h, res ) are pure grouping boxes: they have no
	// leaf form and no constructor.
	Container bool

	// payload returns an empty typed payload; nil for generic kinds.
	payload func() Payload
}

// Typed reports whether boxes of this kind carry a typed payload.
func (k Kind) Typed() bool { return k.payload != nil }

var kinds = [...]Kind{
	{Type: TypeJP2Signature, Name: "JPEG2000SignatureBox", payload: func() Payload { return &SignatureBox{} }},
	{Type: TypeFileType, Name: "JPEG2000FileTypeBox", payload: func() Payload { return &FileTypeBox{} }},
	{Type: TypeIPR, Name: "JPEG2000IntellectualPropertyRightsBox"},
	{Type: TypeXML, Name: "JPEG2000XMLBox", payload: func() Payload { return &XMLBox{} }},
	{Type: TypeUUID, Name: "JPEG2000UUIDBox", payload: func() Payload { return &UUIDBox{} }},
	{Type: TypeUUIDInfo, Name: "JPEG2000UUIDInfoBox"},
	{Type: TypeJP2Header, Name: "JPEG2000HeaderSuperBox", Container: true},
	{Type: TypeContCodestream, Name: "JPEG2000CodeStreamBox"},
	{Type: TypeImageHeader, Name: "JPEG2000HeaderBox", payload: func() Payload { return &ImageHeaderBox{} }},
	{Type: TypeBitsPerComp, Name: "JPEG2000BitsPerComponentBox", payload: func() Payload { return &BitsPerCompBox{} }},
	{Type: TypeColorSpec, Name: "JPEG2000ColorSpecificationBox", payload: func() Payload { return &ColorSpecBox{} }},
	{Type: TypePalette, Name: "JPEG2000PaletteBox", payload: func() Payload { return &PaletteBox{} }},
	{Type: TypeComponentMap, Name: "JPEG2000ComponentMappingBox", payload: func() Payload { return &ComponentMapBox{} }},
	{Type: TypeChannelDef, Name: "JPEG2000ChannelDefinitionBox", payload: func() Payload { return &ChannelDefBox{} }},
	{Type: TypeResolution, Name: "JPEG2000ResolutionBox", Container: true},
	{Type: TypeCaptureRes, Name: "JPEG2000CaptureResolutionBox", payload: func() Payload { return &ResolutionBox{} }},
	{Type: TypeDisplayRes, Name: "JPEG2000DefaultDisplayResolutionBox", payload: func() Payload { return &ResolutionBox{} }},
	{Type: TypeUUIDList, Name: "JPEG2000UUIDListBox", payload: func() Payload { return &UUIDListBox{} }},
	{Type: TypeURL, Name: "JPEG2000DataEntryURLBox", payload: func() Payload { return &DataEntryURLBox{} }},
}

var (
	byType = make(map[Type]int, len(kinds))
	byName = make(map[string]int, len(kinds))
)

func init() {
	for i, k := range kinds {
		byType[k.Type] = i
		byName[k.Name] = i
	}
}

// Kinds returns every registered kind in registry order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds[:])
	return out
}

// Lookup returns the registered kind for t.
func Lookup(t Type) (Kind, bool) {
	i, ok := byType[t]
	if !ok {
		return Kind{}, false
	}
	return kinds[i], true
}

// TypeToName returns the tree element name for t, or "unknown".
func TypeToName(t Type) string {
	if k, ok := Lookup(t); ok {
		return k.Name
	}
	return "unknown"
}

// NameToType returns the type registered under name.
func NameToType(name string) (Type, bool) {
	i, ok := byName[name]
	if !ok {
		return 0, false
	}
	return kinds[i].Type, true
}

// Constructor returns the tree-node constructor for t. Generic kinds get
// FromNode; container and unknown kinds have none.
func Constructor(t Type) (func(*tree.Node) (*Box, error), bool) {
	k, ok := Lookup(t)
	if !ok || k.Container {
		return nil, false
	}
	if k.payload == nil {
		return FromNode, true
	}
	return func(n *tree.Node) (*Box, error) {
		return typedFromNode(k, n)
	}, true
}

// CreateBox builds a box of type t from a tree node. It does not fall back
// to a generic box; callers that want best-effort recovery can retry with
// FromNode.
func CreateBox(t Type, n *tree.Node) (*Box, error) {
	ctor, ok := Constructor(t)
	if !ok {
		return nil, fmt.Errorf("box %s: %w", t, ErrNoConstructor)
	}
	return ctor(n)
}

func typedFromNode(k Kind, n *tree.Node) (*Box, error) {
	p := k.payload()
	if err := p.ParseNode(n); err != nil {
		return nil, fmt.Errorf("box %s: %s: %w", k.Type, n.Name, err)
	}
	b := &Box{typ: k.Type, payload: p}
	if v, _ := n.Attr("Length"); v == "1" {
		b.length = 1
	}
	b.setLength(p.Len())
	return b, nil
}
