package metadata

import (
	"fmt"

	"github.com/mrjoshuak/go-jp2/tree"
)

// Tree format names accepted by AsTree, MergeTree and SetFromTree.
const (
	NativeFormatName   = "jpeg2000_image_1.0"
	StandardFormatName = "image_standard_1.0"
)

// Grouping elements of the native tree that are not boxes.
const (
	otherBoxes  = "OtherBoxes"
	headCStream = "HeadCStream"
)

const (
	nameSignature  = "JPEG2000SignatureBox"
	nameFileType   = "JPEG2000FileTypeBox"
	nameIPR        = "JPEG2000IntellectualPropertyRightsBox"
	nameXML        = "JPEG2000XMLBox"
	nameUUID       = "JPEG2000UUIDBox"
	nameUUIDInfo   = "JPEG2000UUIDInfoBox"
	nameHeader     = "JPEG2000HeaderSuperBox"
	nameCodestream = "JPEG2000CodeStreamBox"
	nameImageHdr   = "JPEG2000HeaderBox"
	nameBitsPer    = "JPEG2000BitsPerComponentBox"
	nameColorSpec  = "JPEG2000ColorSpecificationBox"
	namePalette    = "JPEG2000PaletteBox"
	nameCompMap    = "JPEG2000ComponentMappingBox"
	nameChannelDef = "JPEG2000ChannelDefinitionBox"
	nameResolution = "JPEG2000ResolutionBox"
	nameCaptureRes = "JPEG2000CaptureResolutionBox"
	nameDisplayRes = "JPEG2000DefaultDisplayResolutionBox"
	nameUUIDList   = "JPEG2000UUIDListBox"
	nameURL        = "JPEG2000DataEntryURLBox"
)

// schema lists the legal children of every non-leaf element in order.
var schema = []struct {
	parent   string
	children []string
}{
	{NativeFormatName, []string{nameSignature, nameFileType, otherBoxes}},
	{otherBoxes, []string{headCStream, nameIPR, nameXML, nameUUID, nameUUIDInfo}},
	{headCStream, []string{nameHeader, nameCodestream}},
	{nameHeader, []string{nameImageHdr, nameBitsPer, nameColorSpec, namePalette, nameCompMap, nameChannelDef, nameResolution}},
	{nameResolution, []string{nameCaptureRes, nameDisplayRes}},
	{nameUUIDInfo, []string{nameUUIDList, nameURL}},
}

var (
	parents  = map[string]string{}
	children = map[string][]string{}
)

// repeatable kinds may occur more than once under the same parent.
var repeatable = map[string]bool{
	nameIPR:      true,
	nameXML:      true,
	nameUUID:     true,
	nameUUIDInfo: true,
	nameUUIDList: true,
	nameURL:      true,
}

func init() {
	for _, e := range schema {
		children[e.parent] = e.children
		for _, c := range e.children {
			parents[c] = e.parent
		}
	}
}

// Parent returns the element that may contain name.
func Parent(name string) (string, bool) {
	p, ok := parents[name]
	return p, ok
}

// Children returns the elements name may contain, in schema order.
func Children(name string) []string {
	return append([]string(nil), children[name]...)
}

// IsLeaf reports whether name is an element that holds a single box
// rather than other elements.
func IsLeaf(name string) bool {
	_, known := parents[name]
	_, grouping := children[name]
	return known && !grouping
}

// SingleInstance reports whether at most one name element may occur under
// its parent.
func SingleInstance(name string) bool {
	return !repeatable[name]
}

// Validate checks that every element of a native tree sits under its legal
// parent and that single-instance elements are not repeated. A UUID info
// element may hold each of its children at most once.
func Validate(root *tree.Node) error {
	if root == nil || root.Name != NativeFormatName {
		return &TreeError{Node: root, Err: fmt.Errorf("root must be named %s", NativeFormatName)}
	}
	return validate(root)
}

func validate(n *tree.Node) error {
	if IsLeaf(n.Name) {
		return nil
	}
	seen := make(map[string]bool)
	for _, c := range n.Children() {
		if p, ok := Parent(c.Name); !ok || p != n.Name {
			return &TreeError{Node: c, Err: fmt.Errorf("not allowed under %s", n.Name)}
		}
		if seen[c.Name] && (SingleInstance(c.Name) || n.Name == nameUUIDInfo) {
			return &TreeError{Node: c, Err: fmt.Errorf("repeated under %s", n.Name)}
		}
		seen[c.Name] = true
		if err := validate(c); err != nil {
			return err
		}
	}
	return nil
}
