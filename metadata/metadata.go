// Package metadata holds the boxes of a JP2 file other than the codestream
// and bridges them to attributed trees.
//
// Two tree formats are supported. The native format, named
// [NativeFormatName], mirrors the box layout field for field and can be
// converted back to boxes without loss. The standard format, named
// [StandardFormatName], describes the image in format-agnostic terms
// (Chroma, Data, Dimension, Transparency, Text) and maps to a best-effort
// combination of boxes.
//
// A Metadata value is not safe for concurrent use.
package metadata

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mrjoshuak/go-jp2/box"
	"github.com/mrjoshuak/go-jp2/tree"
)

var (
	// ErrUnknownFormat is returned for a tree format name other than
	// NativeFormatName and StandardFormatName.
	ErrUnknownFormat = errors.New("metadata: unknown format")

	// ErrUnsupportedNode is returned when a standard tree has a top-level
	// node the bridge does not understand.
	ErrUnsupportedNode = errors.New("unsupported metadata tree node")

	// ErrIndex is returned by Box for an out-of-range index.
	ErrIndex = errors.New("metadata: box index out of range")
)

// TreeError reports a tree node that could not be converted.
type TreeError struct {
	Node *tree.Node
	Err  error
}

func (e *TreeError) Error() string {
	name := "<nil>"
	if e.Node != nil {
		name = e.Node.Name
	}
	return fmt.Sprintf("metadata: node %s: %v", name, e.Err)
}

func (e *TreeError) Unwrap() error { return e.Err }

// Metadata is an ordered collection of boxes.
type Metadata struct {
	boxes  []*box.Box
	log    *zap.Logger
	strict bool
}

// Option configures a Metadata.
type Option func(*Metadata)

// WithLogger sets the logger used to report recovered problems. The
// default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(m *Metadata) {
		if l != nil {
			m.log = l
		}
	}
}

// WithStrictBoxes makes tree merges fail on the first node that cannot be
// turned into its typed box, instead of substituting a generic box.
func WithStrictBoxes() Option {
	return func(m *Metadata) { m.strict = true }
}

// New returns an empty collection.
func New(opts ...Option) *Metadata {
	m := &Metadata{log: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add replaces the last box with the same name as b, or appends b if there
// is none.
func (m *Metadata) Add(b *box.Box) {
	for i := len(m.boxes) - 1; i >= 0; i-- {
		if sameKind(m.boxes[i], b) {
			m.boxes[i] = b
			return
		}
	}
	m.boxes = append(m.boxes, b)
}

// Append adds b after every other box.
func (m *Metadata) Append(b *box.Box) {
	m.boxes = append(m.boxes, b)
}

// Insert adds b following its kind's cardinality: single-instance kinds
// replace, repeatable kinds accumulate.
func (m *Metadata) Insert(b *box.Box) {
	if SingleInstance(b.Name()) {
		m.Add(b)
		return
	}
	m.Append(b)
}

// sameKind compares by type so that unregistered types, which all share
// the name "unknown", do not replace each other.
func sameKind(a, b *box.Box) bool {
	return a.Type() == b.Type()
}

// Remove deletes every box with the given registry name and returns how
// many were removed.
func (m *Metadata) Remove(name string) int {
	kept := m.boxes[:0]
	for _, b := range m.boxes {
		if b.Name() != name {
			kept = append(kept, b)
		}
	}
	n := len(m.boxes) - len(kept)
	for i := len(kept); i < len(m.boxes); i++ {
		m.boxes[i] = nil
	}
	m.boxes = kept
	return n
}

// Element returns the last box with the given registry name, or nil.
func (m *Metadata) Element(name string) *box.Box {
	for i := len(m.boxes) - 1; i >= 0; i-- {
		if m.boxes[i].Name() == name {
			return m.boxes[i]
		}
	}
	return nil
}

// Elements returns every box with the given registry name in order.
func (m *Metadata) Elements(name string) []*box.Box {
	var out []*box.Box
	for _, b := range m.boxes {
		if b.Name() == name {
			out = append(out, b)
		}
	}
	return out
}

// ElementOf returns the last box of type t, or nil.
func (m *Metadata) ElementOf(t box.Type) *box.Box {
	for i := len(m.boxes) - 1; i >= 0; i-- {
		if m.boxes[i].Type() == t {
			return m.boxes[i]
		}
	}
	return nil
}

// Boxes returns the boxes in collection order. The slice is a copy; the
// boxes are not.
func (m *Metadata) Boxes() []*box.Box {
	out := make([]*box.Box, len(m.boxes))
	copy(out, m.boxes)
	return out
}

// Len returns the number of boxes.
func (m *Metadata) Len() int { return len(m.boxes) }

// Box returns the i'th box.
func (m *Metadata) Box(i int) (*box.Box, error) {
	if i < 0 || i >= len(m.boxes) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndex, i, len(m.boxes))
	}
	return m.boxes[i], nil
}

// Reset removes every box.
func (m *Metadata) Reset() {
	m.boxes = nil
}

// Clone returns a deep copy sharing the options of m.
func (m *Metadata) Clone() *Metadata {
	c := &Metadata{log: m.log, strict: m.strict}
	c.boxes = make([]*box.Box, len(m.boxes))
	for i, b := range m.boxes {
		c.boxes[i] = b.Clone()
	}
	return c
}

// AsTree returns the collection as a tree in the named format.
func (m *Metadata) AsTree(format string) (*tree.Node, error) {
	switch format {
	case NativeFormatName:
		return m.NativeTree(), nil
	case StandardFormatName:
		return m.StandardTree(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// MergeTree adds the boxes described by root to the collection. Boxes
// added before a failing node stay in the collection.
func (m *Metadata) MergeTree(format string, root *tree.Node) error {
	if root == nil {
		return &TreeError{Err: errors.New("nil root")}
	}
	switch format {
	case NativeFormatName:
		if root.Name != NativeFormatName {
			return &TreeError{Node: root, Err: fmt.Errorf("root must be named %s", NativeFormatName)}
		}
		return m.mergeNative(root)
	case StandardFormatName:
		return m.mergeStandard(root)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// SetFromTree replaces the collection with the boxes described by root.
func (m *Metadata) SetFromTree(format string, root *tree.Node) error {
	if format != NativeFormatName && format != StandardFormatName {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	m.Reset()
	return m.MergeTree(format, root)
}

// boxFromNode builds the box for a native leaf node. When the typed
// constructor fails the node is retried as a generic box unless strict
// mode is set.
func (m *Metadata) boxFromNode(n *tree.Node) (*box.Box, error) {
	t, err := nodeType(n)
	if err != nil {
		return nil, &TreeError{Node: n, Err: err}
	}
	b, err := box.CreateBox(t, n)
	if err == nil {
		return b, nil
	}
	if m.strict {
		return nil, &TreeError{Node: n, Err: err}
	}
	m.log.Warn("substituting generic box",
		zap.String("node", n.Name),
		zap.Stringer("type", t),
		zap.Error(err))
	g, gerr := box.FromNode(genericNode(n, t))
	if gerr != nil {
		return nil, &TreeError{Node: n, Err: fmt.Errorf("%w; generic fallback: %w", err, gerr)}
	}
	return g, nil
}

// genericNode prepares n for a generic box of type t. A typed node has no
// Content child, so its Length describes fields that could not be read;
// the length is dropped and recomputed from what remains.
func genericNode(n *tree.Node, t box.Type) *tree.Node {
	g := n.Clone()
	g.SetAttr("Type", t.String())
	if g.FirstChild("Content") == nil {
		g.RemoveAttr("Length")
		g.RemoveAttr("ExtraLength")
	}
	return g
}

// nodeType reads the Type attribute, falling back to the type registered
// under the node name.
func nodeType(n *tree.Node) (box.Type, error) {
	if s, ok := n.Attr("Type"); ok {
		return box.ParseType(s)
	}
	if t, ok := box.NameToType(n.Name); ok {
		return t, nil
	}
	return 0, box.ErrTypeNotDefined
}
