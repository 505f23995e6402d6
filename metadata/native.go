package metadata

import (
	"go.uber.org/zap"

	"github.com/mrjoshuak/go-jp2/tree"
)

// anchors are placed first in the native tree, in this order.
var anchors = [...]string{nameSignature, nameFileType, nameImageHdr}

// NativeTree returns the collection as a native format tree. The first
// signature, file type and image header boxes are inserted ahead of all
// others; the remaining boxes follow in collection order. Boxes of
// unregistered types have no place in the schema and are left out.
func (m *Metadata) NativeTree() *tree.Node {
	root := tree.New(NativeFormatName)

	var pinned [len(anchors)]int
	for a := range pinned {
		pinned[a] = -1
	}
	for i, b := range m.boxes {
		for a, name := range anchors {
			if pinned[a] < 0 && b.Name() == name {
				pinned[a] = i
			}
		}
	}
	isPinned := func(i int) bool {
		for _, p := range pinned {
			if p == i {
				return true
			}
		}
		return false
	}

	for _, i := range pinned {
		if i >= 0 {
			m.insertNode(root, m.boxes[i].Node())
		}
	}
	for i, b := range m.boxes {
		if isPinned(i) {
			continue
		}
		m.insertNode(root, b.Node())
	}
	return root
}

func (m *Metadata) insertNode(root, n *tree.Node) bool {
	parent, ok := Parent(n.Name)
	if !ok {
		m.log.Debug("box has no place in the native tree", zap.String("node", n.Name))
		return false
	}
	p := findSlot(root, parent, n.Name)
	if p == nil {
		p = createNode(root, parent)
	}
	p.Append(n)
	return true
}

// findSlot returns the first element called name below root that can take
// a child called child. A UUID info element already holding such a child
// is skipped so that its siblings fill up in turn.
func findSlot(root *tree.Node, name, child string) *tree.Node {
	if root.Name == name {
		return root
	}
	for _, c := range root.Children() {
		if c.Name == name {
			if name == nameUUIDInfo && child != "" && c.FirstChild(child) != nil {
				continue
			}
			return c
		}
		if f := findSlot(c, name, child); f != nil {
			return f
		}
	}
	return nil
}

// createNode adds a new element called name, creating missing ancestors.
func createNode(root *tree.Node, name string) *tree.Node {
	parent, _ := Parent(name)
	p := findSlot(root, parent, "")
	if p == nil {
		p = createNode(root, parent)
	}
	n := tree.New(name)
	p.Append(n)
	return n
}

// mergeNative walks the children of n in order. Leaf elements become
// boxes and grouping elements are descended into; elements outside the
// schema are ignored.
func (m *Metadata) mergeNative(n *tree.Node) error {
	for _, c := range n.Children() {
		if _, ok := Parent(c.Name); !ok {
			m.log.Debug("ignoring element outside the schema", zap.String("node", c.Name))
			continue
		}
		if !IsLeaf(c.Name) {
			if err := m.mergeNative(c); err != nil {
				return err
			}
			continue
		}
		b, err := m.boxFromNode(c)
		if err != nil {
			return err
		}
		if SingleInstance(c.Name) {
			m.Add(b)
		} else {
			m.Append(b)
		}
	}
	return nil
}
