package box

import (
	"bytes"
	"fmt"

	"github.com/mrjoshuak/go-jp2/stream"
)

// IsSuperBox reports whether boxes of type t contain other boxes.
func IsSuperBox(t Type) bool {
	switch t {
	case TypeJP2Header, TypeResolution, TypeUUIDInfo:
		return true
	}
	return false
}

// NewSuperBox returns a box whose contents are the serialized children.
// Children with a length 0 field are written with their explicit length;
// the children themselves are left unchanged.
func NewSuperBox(t Type, children ...*Box) *Box {
	var buf bytes.Buffer
	for _, c := range children {
		if c.Length() == 0 {
			c = c.Clone()
			c.ResolveLength()
		}
		c.WriteTo(&buf)
	}
	b := &Box{typ: t}
	b.setLength(buf.Len())
	b.content = buf.Bytes()
	return b
}

// ReadChildren parses the contents of a superbox into its child boxes.
func ReadChildren(data []byte) ([]*Box, error) {
	src := stream.NewReader(bytes.NewReader(data))
	return ReadAll(src, 0, int64(len(data)))
}

// ReadAll reads consecutive boxes from src between offsets start and end.
// A box with length 0 ends the sequence.
func ReadAll(src Source, start, end int64) ([]*Box, error) {
	var boxes []*Box
	for pos := start; pos < end; {
		b, err := Read(src, pos)
		if err != nil {
			return boxes, fmt.Errorf("box at offset %d: %w", pos, err)
		}
		boxes = append(boxes, b)
		if b.Length() == 0 {
			break
		}
		pos += b.Size()
		if pos > end {
			return boxes, fmt.Errorf("box %s at offset %d overruns its container", b.Type(), pos-b.Size())
		}
	}
	return boxes, nil
}
