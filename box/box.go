// Package box implements JP2 file format box parsing and generation.
//
// JP2 files consist of a sequence of boxes, where each box has:
// - 4-byte length (0 for "to end of file", 1 for extended length)
// - 4-byte type code
// - Optional 8-byte extended length
// - Box contents
//
// A Box keeps its contents in two forms: the raw bytes and a typed Payload.
// Boxes read from a stream or built from bytes carry both; boxes built from
// a Payload compose their bytes on first use; generic boxes (codestream,
// rights, unknown types) carry bytes only.
package box

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/mrjoshuak/go-jp2/stream"
	"github.com/mrjoshuak/go-jp2/tree"
)

var (
	// ErrIllegalLength is returned for a length field outside the legal range.
	ErrIllegalLength = errors.New("box: illegal box length")

	// ErrSizeMismatch is returned when content does not match the declared length.
	ErrSizeMismatch = errors.New("box: content size does not match box length")

	// ErrTypeNotDefined is returned when a tree node names an unregistered type.
	ErrTypeNotDefined = errors.New("box: type is not defined")

	// ErrNoConstructor is returned by CreateBox for types without a constructor.
	ErrNoConstructor = errors.New("box: no constructor for type")

	// ErrExtraLength is returned when the extended length is set on a box
	// that does not use the extended form.
	ErrExtraLength = errors.New("box: extra length requires length 1")

	// ErrUnsupported is returned for valid but unsupported payloads.
	ErrUnsupported = errors.New("box: unsupported payload")

	// ErrInvalidPayload is returned for typed fields outside the range
	// their binary layout can hold.
	ErrInvalidPayload = errors.New("box: invalid payload")

	// ErrTruncated is returned when a payload is shorter than its layout requires.
	ErrTruncated = errors.New("box: payload too short")

	// ErrBadSignature is returned for a signature box with the wrong magic.
	ErrBadSignature = errors.New("box: bad JP2 signature")
)

// Payload is the typed form of a box's contents. Parse and Bytes are exact
// inverses; AppendNode and ParseNode map the fields to and from tree
// children.
type Payload interface {
	Len() int
	Parse(data []byte) error
	Bytes() []byte
	AppendNode(n *tree.Node)
	ParseNode(n *tree.Node) error
}

// Validator is implemented by payloads whose fields have limits the Go
// types do not express. Box.Validate checks them; WriteContainer in the
// jp2 package refuses boxes that fail.
type Validator interface {
	Validate() error
}

// Source is the random-access input Read works on. *stream.Reader
// implements it.
type Source interface {
	io.ReadSeeker
	Mark()
	Reset() error
	KnownLength() int64
}

// Box represents a JP2 box.
type Box struct {
	length      uint32
	extraLength uint64
	typ         Type

	content []byte
	payload Payload
}

// New returns a box with an explicit length field. data must hold exactly
// length-8 bytes unless length is 0. Typed contents are parsed immediately.
func New(length uint32, t Type, data []byte) (*Box, error) {
	switch {
	case length == 1:
		return nil, fmt.Errorf("box %s: %w: use NewExtended", t, ErrIllegalLength)
	case length > 1 && length < 8:
		return nil, fmt.Errorf("box %s: %w: %d", t, ErrIllegalLength, length)
	}
	b := &Box{length: length, typ: t}
	if err := b.SetContent(data); err != nil {
		return nil, err
	}
	return b, nil
}

// NewExtended returns a box using the 64-bit length form. data must hold
// exactly extraLength-16 bytes.
func NewExtended(t Type, extraLength uint64, data []byte) (*Box, error) {
	if extraLength < 16 {
		return nil, fmt.Errorf("box %s: %w: extended length %d", t, ErrIllegalLength, extraLength)
	}
	b := &Box{length: 1, extraLength: extraLength, typ: t}
	if err := b.SetContent(data); err != nil {
		return nil, err
	}
	return b, nil
}

// FromContent returns a box holding data with the length computed from it.
func FromContent(t Type, data []byte) (*Box, error) {
	b := &Box{typ: t}
	b.setLength(len(data))
	if err := b.SetContent(data); err != nil {
		return nil, err
	}
	return b, nil
}

// FromPayload returns a box built from typed fields. Its bytes are
// composed when first needed.
func FromPayload(t Type, p Payload) *Box {
	b := &Box{typ: t, payload: p}
	b.setLength(p.Len())
	return b
}

// setLength picks the compact or extended form for n content bytes.
func (b *Box) setLength(n int) {
	total := uint64(n) + 8
	if b.length == 1 || total > math.MaxUint32 {
		b.length = 1
		b.extraLength = uint64(n) + 16
		return
	}
	b.length = uint32(total)
	b.extraLength = 0
}

// Header is the length and type prefix of a box as found on the wire.
type Header struct {
	Length      uint32
	ExtraLength uint64
	Type        Type

	// Offset is the absolute position of the first content byte.
	Offset int64

	// ContentSize is the number of content bytes. For a length 0 box it
	// runs to the end of the stream.
	ContentSize int64
}

// Size returns the total number of bytes the box occupies.
func (h Header) Size() int64 {
	n := int64(8)
	if h.Length == 1 {
		n = 16
	}
	return n + h.ContentSize
}

// ReadHeader reads the box header at absolute offset pos without reading
// the contents. The position of src is restored before it returns.
func ReadHeader(src Source, pos int64) (h Header, err error) {
	src.Mark()
	defer func() {
		if rerr := src.Reset(); rerr != nil && err == nil {
			err = fmt.Errorf("box: restoring stream position: %w", rerr)
		}
	}()
	return readHeader(src, pos)
}

// readHeader leaves src positioned at the first content byte.
func readHeader(src Source, pos int64) (Header, error) {
	var h Header
	if _, err := src.Seek(pos, io.SeekStart); err != nil {
		return h, fmt.Errorf("box: seeking to %d: %w", pos, err)
	}
	var hdr [16]byte
	if _, err := io.ReadFull(src, hdr[:8]); err != nil {
		return h, fmt.Errorf("box: reading header at %d: %w", pos, err)
	}
	h.Length = binary.BigEndian.Uint32(hdr[0:4])
	h.Type = Type(binary.BigEndian.Uint32(hdr[4:8]))
	h.Offset = pos + 8

	switch {
	case h.Length == 0:
		size, err := remaining(src)
		if err != nil {
			return h, fmt.Errorf("box %s: measuring box to end of stream: %w", h.Type, err)
		}
		h.ContentSize = size
	case h.Length == 1:
		if _, err := io.ReadFull(src, hdr[8:16]); err != nil {
			return h, fmt.Errorf("box %s: reading extended length: %w", h.Type, err)
		}
		h.ExtraLength = binary.BigEndian.Uint64(hdr[8:16])
		if h.ExtraLength < 16 || h.ExtraLength-16 > math.MaxInt64 {
			return h, fmt.Errorf("box %s: %w: extended length %d", h.Type, ErrIllegalLength, h.ExtraLength)
		}
		h.Offset = pos + 16
		h.ContentSize = int64(h.ExtraLength - 16)
	case h.Length < 8:
		return h, fmt.Errorf("box %s: %w: %d", h.Type, ErrIllegalLength, h.Length)
	default:
		h.ContentSize = int64(h.Length) - 8
	}

	if kl := src.KnownLength(); kl >= 0 && h.Length != 0 && h.Offset+h.ContentSize > kl {
		return h, fmt.Errorf("box %s: content of %d bytes at %d: %w", h.Type, h.ContentSize, h.Offset, io.ErrUnexpectedEOF)
	}
	return h, nil
}

// Read reads the box starting at absolute offset pos. The position of src
// is restored before Read returns, whether or not it succeeds.
func Read(src Source, pos int64) (b *Box, err error) {
	src.Mark()
	defer func() {
		if rerr := src.Reset(); rerr != nil && err == nil {
			b, err = nil, fmt.Errorf("box: restoring stream position: %w", rerr)
		}
	}()

	h, err := readHeader(src, pos)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(src, h.ContentSize))
	if err != nil {
		return nil, fmt.Errorf("box %s: reading content: %w", h.Type, err)
	}
	if int64(len(data)) != h.ContentSize {
		return nil, fmt.Errorf("box %s: read %d of %d content bytes: %w", h.Type, len(data), h.ContentSize, io.ErrUnexpectedEOF)
	}

	b = &Box{length: h.Length, extraLength: h.ExtraLength, typ: h.Type}
	if err := b.setContent(data, false); err != nil {
		return nil, err
	}
	return b, nil
}

func remaining(src Source) (int64, error) {
	cur, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	if kl := src.KnownLength(); kl >= 0 {
		if kl < cur {
			return 0, io.ErrUnexpectedEOF
		}
		return kl - cur, nil
	}
	n, err := stream.CountToEOF(src)
	if err != nil {
		return 0, err
	}
	if _, err := src.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	return n, nil
}

// Length returns the 32-bit length field.
func (b *Box) Length() uint32 { return b.length }

// ExtraLength returns the 64-bit length field. It is meaningful only when
// Length is 1.
func (b *Box) ExtraLength() uint64 { return b.extraLength }

// Type returns the box type.
func (b *Box) Type() Type { return b.typ }

// Name returns the registry name of the box type, or "unknown".
func (b *Box) Name() string { return TypeToName(b.typ) }

// HeaderSize returns the number of header bytes on the wire.
func (b *Box) HeaderSize() int {
	if b.length == 1 {
		return 16
	}
	return 8
}

// ContentSize returns the number of content bytes.
func (b *Box) ContentSize() int64 {
	switch {
	case b.length == 1:
		return int64(b.extraLength - 16)
	case b.length >= 8:
		return int64(b.length) - 8
	case b.content != nil:
		return int64(len(b.content))
	case b.payload != nil:
		return int64(b.payload.Len())
	}
	return 0
}

// Size returns the total number of bytes the box occupies on the wire.
func (b *Box) Size() int64 {
	return int64(b.HeaderSize()) + b.ContentSize()
}

// Content returns the raw contents, composing them from the payload if
// needed. The slice is owned by the box and must not be modified.
func (b *Box) Content() []byte {
	if b.content == nil && b.payload != nil {
		b.content = b.payload.Bytes()
	}
	return b.content
}

// SetContent replaces the raw contents. The size must match the declared
// length; typed boxes parse the new contents and reject invalid ones.
func (b *Box) SetContent(data []byte) error {
	return b.setContent(data, true)
}

func (b *Box) setContent(data []byte, copyData bool) error {
	if err := b.checkSize(len(data)); err != nil {
		return err
	}
	if copyData {
		data = append([]byte{}, data...)
	} else if data == nil {
		data = []byte{}
	}
	var p Payload
	if k, ok := Lookup(b.typ); ok && k.payload != nil {
		p = k.payload()
		if err := p.Parse(data); err != nil {
			return fmt.Errorf("box %s: %w", b.typ, err)
		}
	}
	b.content = data
	b.payload = p
	return nil
}

// SetExtraLength sets the 64-bit length field of an extended box. The
// current contents must fit the new value.
func (b *Box) SetExtraLength(v uint64) error {
	if b.length != 1 {
		return fmt.Errorf("box %s: %w", b.typ, ErrExtraLength)
	}
	if v < 16 {
		return fmt.Errorf("box %s: %w: extended length %d", b.typ, ErrIllegalLength, v)
	}
	if n := int64(len(b.Content())); n != int64(v-16) {
		return fmt.Errorf("box %s: %w: have %d bytes, want %d", b.typ, ErrSizeMismatch, n, v-16)
	}
	b.extraLength = v
	return nil
}

// Payload returns the typed contents, or nil for generic boxes. After
// modifying the returned value call SetPayload so the bytes follow.
func (b *Box) Payload() Payload {
	return b.payload
}

// SetPayload replaces the typed contents, drops the cached bytes and
// recomputes the length. An extended box stays extended.
func (b *Box) SetPayload(p Payload) {
	b.payload = p
	b.content = nil
	if b.length != 1 {
		b.length = 0
	}
	b.setLength(p.Len())
}

// Validate checks the typed contents against the limits of the box kind.
// Generic boxes and payloads without limits always pass.
func (b *Box) Validate() error {
	if v, ok := b.payload.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("box %s: %w", b.typ, err)
		}
	}
	return nil
}

// ResolveLength replaces a length 0 field, which is only legal for the
// last box of a file, by the explicit length of the current contents.
func (b *Box) ResolveLength() {
	if b.length == 0 {
		b.setLength(len(b.Content()))
	}
}

// Bytes returns the complete box as bytes.
func (b *Box) Bytes() []byte {
	content := b.Content()
	out := make([]byte, 0, b.HeaderSize()+len(content))
	out = b.appendHeader(out)
	return append(out, content...)
}

func (b *Box) appendHeader(dst []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, b.length)
	dst = binary.BigEndian.AppendUint32(dst, uint32(b.typ))
	if b.length == 1 {
		dst = binary.BigEndian.AppendUint64(dst, b.extraLength)
	}
	return dst
}

// WriteTo writes the box to w. A box with length 0 writes all of its
// contents and must be the last box of its stream.
func (b *Box) WriteTo(w io.Writer) (int64, error) {
	hdr := b.appendHeader(make([]byte, 0, 16))
	n, err := w.Write(hdr)
	total := int64(n)
	if err != nil {
		return total, err
	}
	n, err = w.Write(b.Content())
	total += int64(n)
	return total, err
}

// Clone returns a deep copy of b.
func (b *Box) Clone() *Box {
	c := &Box{length: b.length, extraLength: b.extraLength, typ: b.typ}
	content := b.Content()
	if b.payload != nil {
		// Reparse so the clone does not share payload slices.
		if err := c.setContent(content, true); err == nil {
			return c
		}
	}
	if content != nil {
		c.content = append([]byte{}, content...)
	}
	return c
}
