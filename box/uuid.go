package box

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"

	"github.com/mrjoshuak/go-jp2/tree"
)

// DecodeText returns b as a string. Bytes that are not valid UTF-8 are
// read as ISO-8859-1.
func DecodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// XMLBox holds an XML document.
type XMLBox struct {
	Data []byte
}

// Text returns the document as a string.
func (b *XMLBox) Text() string { return DecodeText(b.Data) }

// Len returns the size of the document in bytes.
func (b *XMLBox) Len() int { return len(b.Data) }

// Parse stores a copy of data as the document.
func (b *XMLBox) Parse(data []byte) error {
	b.Data = append([]byte{}, data...)
	return nil
}

// Bytes returns a copy of the document.
func (b *XMLBox) Bytes() []byte { return append([]byte{}, b.Data...) }

// AppendNode adds the document text as a Content child.
func (b *XMLBox) AppendNode(n *tree.Node) {
	n.Append(tree.NewValue("Content", b.Text()))
}

// ParseNode sets the fields of b from the children of n.
func (b *XMLBox) ParseNode(n *tree.Node) error {
	b.Data = []byte{}
	if c := n.FirstChild("Content"); c != nil {
		b.Data = []byte(tree.String(c))
	}
	return nil
}

// UUIDBox holds vendor data tagged with a UUID.
type UUIDBox struct {
	ID   uuid.UUID
	Data []byte
}

// Len counts the 16 byte ID and the data.
func (b *UUIDBox) Len() int { return 16 + len(b.Data) }

// Parse splits data into the ID and the vendor data.
func (b *UUIDBox) Parse(data []byte) error {
	if len(data) < 16 {
		return fmt.Errorf("uuid box of %d bytes: %w", len(data), ErrTruncated)
	}
	copy(b.ID[:], data[:16])
	b.Data = append([]byte{}, data[16:]...)
	return nil
}

// Bytes returns the encoded contents.
func (b *UUIDBox) Bytes() []byte {
	data := make([]byte, b.Len())
	copy(data, b.ID[:])
	copy(data[16:], b.Data)
	return data
}

// AppendNode adds the fields of b to n.
func (b *UUIDBox) AppendNode(n *tree.Node) {
	n.Append(
		tree.NewValue("UUID", b.ID),
		tree.NewValue("Data", append([]byte{}, b.Data...)),
	)
}

// ParseNode sets the fields of b from the children of n.
func (b *UUIDBox) ParseNode(n *tree.Node) error {
	b.Data = []byte{}
	for _, c := range n.Children() {
		switch c.Name {
		case "UUID":
			id, err := uuidValue(c)
			if err != nil {
				return err
			}
			b.ID = id
		case "Data":
			v, err := tree.Bytes(c)
			if err != nil {
				return err
			}
			b.Data = v
		}
	}
	return nil
}

// uuidValue reads a UUID node holding a uuid.UUID, 16 raw bytes, the
// canonical text form, or 16 decimal byte values.
func uuidValue(n *tree.Node) (uuid.UUID, error) {
	switch o := n.Object.(type) {
	case uuid.UUID:
		return o, nil
	case []byte:
		return uuid.FromBytes(o)
	}
	s := strings.TrimSpace(n.Value)
	if id, err := uuid.Parse(s); err == nil {
		return id, nil
	}
	raw, err := tree.Bytes(n)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: invalid UUID %q", n.Name, s)
	}
	return uuid.FromBytes(raw)
}

// UUIDListBox lists the UUIDs a UUID info box refers to.
type UUIDListBox struct {
	IDs []uuid.UUID
}

// Len returns the size of the encoded contents.
func (b *UUIDListBox) Len() int { return 2 + 16*len(b.IDs) }

// Parse reads the ID count and the IDs it announces.
func (b *UUIDListBox) Parse(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("uuid list box of %d bytes: %w", len(data), ErrTruncated)
	}
	n := int(binary.BigEndian.Uint16(data[0:2]))
	if len(data) != 2+16*n {
		return fmt.Errorf("uuid list box of %d bytes for %d ids: %w", len(data), n, ErrTruncated)
	}
	b.IDs = make([]uuid.UUID, n)
	for i := range b.IDs {
		copy(b.IDs[i][:], data[2+16*i:])
	}
	return nil
}

// Bytes returns the encoded contents.
func (b *UUIDListBox) Bytes() []byte {
	data := make([]byte, b.Len())
	binary.BigEndian.PutUint16(data[0:2], uint16(len(b.IDs)))
	for i, id := range b.IDs {
		copy(data[2+16*i:], id[:])
	}
	return data
}

// AppendNode adds the fields of b to n.
func (b *UUIDListBox) AppendNode(n *tree.Node) {
	n.Append(tree.NewValue("NumberUUID", uint16(len(b.IDs))))
	for _, id := range b.IDs {
		n.Append(tree.NewValue("UUID", id))
	}
}

// ParseNode sets the fields of b from the children of n.
func (b *UUIDListBox) ParseNode(n *tree.Node) error {
	ids := []uuid.UUID{}
	for _, c := range n.ChildrenNamed("UUID") {
		id, err := uuidValue(c)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	if c := n.FirstChild("NumberUUID"); c != nil {
		v, err := tree.Int(c, 0, math.MaxUint16)
		if err != nil {
			return err
		}
		if int(v) != len(ids) {
			return fmt.Errorf("uuid list declares %d ids, has %d", v, len(ids))
		}
	}
	b.IDs = ids
	return nil
}

// DataEntryURLBox points at the location of data named by a UUID list.
type DataEntryURLBox struct {
	Version uint8
	Flags   [3]byte
	URL     string
}

// Len counts the version, flags and the NUL-terminated URL.
func (b *DataEntryURLBox) Len() int { return 4 + len(b.URL) + 1 }

// Parse reads the version, flags and URL. The URL must be NUL-terminated.
func (b *DataEntryURLBox) Parse(data []byte) error {
	if len(data) < 5 {
		return fmt.Errorf("url box of %d bytes: %w", len(data), ErrTruncated)
	}
	b.Version = data[0]
	copy(b.Flags[:], data[1:4])
	loc := data[4:]
	if loc[len(loc)-1] != 0 {
		return errors.New("url box location is not NUL terminated")
	}
	loc = loc[:len(loc)-1]
	if bytes.IndexByte(loc, 0) >= 0 {
		return errors.New("url box location contains NUL")
	}
	b.URL = DecodeText(loc)
	return nil
}

// Bytes returns the encoded contents.
func (b *DataEntryURLBox) Bytes() []byte {
	data := make([]byte, b.Len())
	data[0] = b.Version
	copy(data[1:4], b.Flags[:])
	copy(data[4:], b.URL)
	return data
}

// AppendNode adds the fields of b to n.
func (b *DataEntryURLBox) AppendNode(n *tree.Node) {
	n.Append(
		tree.NewValue("Version", b.Version),
		tree.NewValue("Flags", append([]byte{}, b.Flags[:]...)),
		tree.NewValue("URL", b.URL),
	)
}

// ParseNode sets the fields of b from the children of n.
func (b *DataEntryURLBox) ParseNode(n *tree.Node) error {
	var flags []byte
	err := parseFields(n, []field{
		uint8Field("Version", &b.Version),
		bytesField("Flags", &flags),
	})
	if err != nil {
		return err
	}
	if flags != nil {
		if len(flags) != 3 {
			return fmt.Errorf("url box flags have %d bytes, want 3", len(flags))
		}
		copy(b.Flags[:], flags)
	}
	if c := n.FirstChild("URL"); c != nil {
		b.URL = tree.String(c)
	}
	return nil
}
