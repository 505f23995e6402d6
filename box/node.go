package box

import (
	"fmt"
	"math"
	"strconv"

	"github.com/mrjoshuak/go-jp2/tree"
)

// Node returns the box as a tree node named after its kind. The node
// carries Length and Type attributes, and ExtraLength when Length is 1.
// Generic boxes hold their bytes in a single Content child.
func (b *Box) Node() *tree.Node {
	n := tree.New(b.Name())
	n.SetAttr("Length", strconv.FormatUint(uint64(b.length), 10))
	n.SetAttr("Type", b.typ.String())
	if b.length == 1 {
		n.SetAttr("ExtraLength", strconv.FormatUint(b.extraLength, 10))
	}
	if b.payload != nil {
		b.payload.AppendNode(n)
		return n
	}
	n.Append(tree.NewValue("Content", append([]byte{}, b.Content()...)))
	return n
}

// FromNode builds an untyped box from a tree node. The Type attribute must
// name a registered type; the bytes come from the Content child. A Length
// or ExtraLength attribute, when present, must agree with the content.
func FromNode(n *tree.Node) (*Box, error) {
	s, ok := n.Attr("Type")
	if !ok {
		return nil, fmt.Errorf("%s: %w", n.Name, ErrTypeNotDefined)
	}
	t, err := ParseType(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n.Name, ErrTypeNotDefined)
	}
	if _, ok := Lookup(t); !ok {
		return nil, fmt.Errorf("%s: %w: %q", n.Name, ErrTypeNotDefined, s)
	}

	data := []byte{}
	if c := n.FirstChild("Content"); c != nil {
		if data, err = contentBytes(c); err != nil {
			return nil, err
		}
	}

	b := &Box{typ: t}
	if s, ok := n.Attr("Length"); ok {
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%s: Length: %w", n.Name, err)
		}
		b.length = uint32(v)
		if b.length == 1 {
			b.extraLength = uint64(len(data)) + 16
			if s, ok := n.Attr("ExtraLength"); ok {
				if b.extraLength, err = strconv.ParseUint(s, 10, 64); err != nil {
					return nil, fmt.Errorf("%s: ExtraLength: %w", n.Name, err)
				}
			}
			if b.extraLength < 16 {
				return nil, fmt.Errorf("box %s: %w: extended length %d", t, ErrIllegalLength, b.extraLength)
			}
		} else if b.length > 1 && b.length < 8 {
			return nil, fmt.Errorf("box %s: %w: %d", t, ErrIllegalLength, b.length)
		}
	} else {
		b.setLength(len(data))
	}
	if err := b.checkSize(len(data)); err != nil {
		return nil, err
	}
	b.content = data
	return b, nil
}

// contentBytes reads a Content node: bytes, a string object, or a list of
// decimal byte values.
func contentBytes(c *tree.Node) ([]byte, error) {
	switch o := c.Object.(type) {
	case []byte:
		return append([]byte{}, o...), nil
	case string:
		return []byte(o), nil
	}
	return tree.Bytes(c)
}

func (b *Box) checkSize(n int) error {
	want := int64(-1)
	switch {
	case b.length == 1:
		want = int64(b.extraLength) - 16
	case b.length >= 8:
		want = int64(b.length) - 8
	}
	if want >= 0 && int64(n) != want {
		return fmt.Errorf("box %s: %w: have %d bytes, want %d", b.typ, ErrSizeMismatch, n, want)
	}
	return nil
}

// field binds one named leaf element to a payload field. Flat boxes
// describe their tree shape as a list of fields.
type field struct {
	name string
	get  func() any
	set  func(*tree.Node) error
}

func appendFields(n *tree.Node, fields []field) {
	for _, f := range fields {
		n.Append(tree.NewValue(f.name, f.get()))
	}
}

// parseFields assigns every child whose name matches a field. Unknown
// children are ignored.
func parseFields(n *tree.Node, fields []field) error {
	for _, c := range n.Children() {
		for _, f := range fields {
			if c.Name != f.name {
				continue
			}
			if err := f.set(c); err != nil {
				return err
			}
		}
	}
	return nil
}

func uint32Field(name string, p *uint32) field {
	return field{name, func() any { return *p }, func(n *tree.Node) error {
		v, err := tree.Int(n, 0, math.MaxUint32)
		if err == nil {
			*p = uint32(v)
		}
		return err
	}}
}

func uint16Field(name string, p *uint16) field {
	return field{name, func() any { return *p }, func(n *tree.Node) error {
		v, err := tree.Int(n, 0, math.MaxUint16)
		if err == nil {
			*p = uint16(v)
		}
		return err
	}}
}

// uint8Field accepts signed byte values too, since trees written by other
// tools store bytes as -128..127.
func uint8Field(name string, p *uint8) field {
	return field{name, func() any { return *p }, func(n *tree.Node) error {
		v, err := tree.Int(n, math.MinInt8, math.MaxUint8)
		if err == nil {
			*p = uint8(v)
		}
		return err
	}}
}

func int8Field(name string, p *int8) field {
	return field{name, func() any { return *p }, func(n *tree.Node) error {
		v, err := tree.Int(n, math.MinInt8, math.MaxUint8)
		if err == nil {
			*p = int8(v)
		}
		return err
	}}
}

func bytesField(name string, p *[]byte) field {
	return field{name, func() any { return append([]byte{}, (*p)...) }, func(n *tree.Node) error {
		v, err := tree.Bytes(n)
		if err == nil {
			*p = v
		}
		return err
	}}
}

func uint16sField(name string, p *[]uint16) field {
	return field{name, func() any { return append([]uint16{}, (*p)...) }, func(n *tree.Node) error {
		vals, err := tree.Ints(n, 0, math.MaxUint16)
		if err != nil {
			return err
		}
		out := make([]uint16, len(vals))
		for i, v := range vals {
			out[i] = uint16(v)
		}
		*p = out
		return nil
	}}
}

func typesField(name string, p *[]Type) field {
	return field{name, func() any {
		out := make([]uint32, len(*p))
		for i, t := range *p {
			out[i] = uint32(t)
		}
		return out
	}, func(n *tree.Node) error {
		vals, err := tree.Ints(n, math.MinInt32, math.MaxUint32)
		if err != nil {
			return err
		}
		out := make([]Type, len(vals))
		for i, v := range vals {
			out[i] = Type(uint32(v))
		}
		*p = out
		return nil
	}}
}

func typeField(name string, p *Type) field {
	return field{name, func() any { return uint32(*p) }, func(n *tree.Node) error {
		v, err := tree.Int(n, math.MinInt32, math.MaxUint32)
		if err == nil {
			*p = Type(uint32(v))
		}
		return err
	}}
}
