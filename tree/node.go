// Package tree implements the ordered, attributed node tree used to expose
// JP2 boxes as editable metadata.
//
// A Node has a name, an ordered attribute list, ordered children and a
// value. The value is kept twice: Object holds the typed Go value a box
// produced (an int, a []byte, a string...), and Value holds its string
// rendering. Readers prefer Object when it has the expected type and fall
// back to parsing Value, so trees built in code and trees decoded from XML
// are interchangeable.
package tree

// Attr is a single name/value attribute.
type Attr struct {
	Name  string
	Value string
}

// Node is one element of an attributed tree.
type Node struct {
	Name   string
	Value  string
	Object any

	attrs    []Attr
	children []*Node
}

// New returns an empty node named name.
func New(name string) *Node {
	return &Node{Name: name}
}

// NewValue returns a leaf node carrying obj as both its typed object and
// its string value.
func NewValue(name string, obj any) *Node {
	return &Node{Name: name, Object: obj, Value: FormatValue(obj)}
}

// SetValue replaces the node's typed object and string value.
func (n *Node) SetValue(obj any) {
	n.Object = obj
	n.Value = FormatValue(obj)
}

// SetAttr sets an attribute, keeping the position of an existing one.
func (n *Node) SetAttr(name, value string) {
	for i := range n.attrs {
		if n.attrs[i].Name == name {
			n.attrs[i].Value = value
			return
		}
	}
	n.attrs = append(n.attrs, Attr{Name: name, Value: value})
}

// Attr returns the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// RemoveAttr deletes the named attribute if present.
func (n *Node) RemoveAttr(name string) {
	for i, a := range n.attrs {
		if a.Name == name {
			n.attrs = append(n.attrs[:i], n.attrs[i+1:]...)
			return
		}
	}
}

// Attrs returns the attributes in insertion order.
func (n *Node) Attrs() []Attr {
	return n.attrs
}

// Append adds children at the end and returns n.
func (n *Node) Append(children ...*Node) *Node {
	n.children = append(n.children, children...)
	return n
}

// Children returns the child nodes in order.
func (n *Node) Children() []*Node {
	return n.children
}

// Len returns the number of children.
func (n *Node) Len() int {
	return len(n.children)
}

// Child returns the i-th child, or nil if i is out of range.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// FirstChild returns the first child named name, or nil.
func (n *Node) FirstChild(name string) *Node {
	for _, c := range n.children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns all children named name.
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for _, c := range n.children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the first node named name in a depth-first, pre-order walk
// of n (n itself included), or nil.
func (n *Node) Find(name string) *Node {
	if n.Name == name {
		return n
	}
	for _, c := range n.children {
		if f := c.Find(name); f != nil {
			return f
		}
	}
	return nil
}

// Clone returns a deep copy of n. Byte slice objects are copied.
func (n *Node) Clone() *Node {
	c := &Node{Name: n.Name, Value: n.Value, Object: n.Object}
	if b, ok := n.Object.([]byte); ok {
		c.Object = append([]byte(nil), b...)
	}
	if len(n.attrs) > 0 {
		c.attrs = append([]Attr(nil), n.attrs...)
	}
	for _, ch := range n.children {
		c.children = append(c.children, ch.Clone())
	}
	return c
}
