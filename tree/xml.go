package tree

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Encode writes n and its descendants to w as indented XML. Node values
// are written as character data; typed objects are not preserved.
func Encode(w io.Writer, n *Node) error {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := encodeNode(enc, n); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func encodeNode(enc *xml.Encoder, n *Node) error {
	start := xml.StartElement{Name: xml.Name{Local: n.Name}}
	for _, a := range n.attrs {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value})
	}
	if err := enc.EncodeToken(start); err != nil {
		return fmt.Errorf("tree: encoding %s: %w", n.Name, err)
	}
	if n.Value != "" {
		if err := enc.EncodeToken(xml.CharData(n.Value)); err != nil {
			return fmt.Errorf("tree: encoding %s: %w", n.Name, err)
		}
	}
	for _, c := range n.children {
		if err := encodeNode(enc, c); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// Decode parses a single XML document from r into a tree. Whitespace-only
// character data between elements is dropped; text of a leaf is trimmed
// of surrounding whitespace only when the leaf also has children.
func Decode(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	var (
		root  *Node
		stack []*Node
		text  []string
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tree: decoding xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := New(t.Name.Local)
			for _, a := range t.Attr {
				n.SetAttr(a.Name.Local, a.Value)
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("tree: multiple root elements")
				}
				root = n
			} else {
				stack[len(stack)-1].Append(n)
			}
			stack = append(stack, n)
			text = append(text, "")
		case xml.CharData:
			if len(text) > 0 {
				text[len(text)-1] += string(t)
			}
		case xml.EndElement:
			n := stack[len(stack)-1]
			s := text[len(text)-1]
			if n.Len() > 0 || strings.TrimSpace(s) == "" {
				s = strings.TrimSpace(s)
			}
			n.Value = s
			stack = stack[:len(stack)-1]
			text = text[:len(text)-1]
		}
	}
	if root == nil {
		return nil, errors.New("tree: empty document")
	}
	return root, nil
}
