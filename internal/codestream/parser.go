package codestream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/charmap"
)

var (
	// ErrInvalidMarker is returned when a marker is missing or appears where
	// the main header does not allow it.
	ErrInvalidMarker = errors.New("codestream: invalid marker")
	// ErrInvalidHeader is returned for a main header whose fields are
	// inconsistent, such as zero-sized tiles or missing components.
	ErrInvalidHeader = errors.New("codestream: invalid main header")
	// ErrTileIndex is returned for a tile index outside the tile grid.
	ErrTileIndex = errors.New("codestream: tile index out of range")
)

// Parser reads a codestream main header.
type Parser struct {
	r      io.Reader
	buf    [4]byte
	header *Header
}

// NewParser creates a parser reading from r.
func NewParser(r io.Reader) *Parser {
	return &Parser{r: r, header: &Header{}}
}

// Peek parses the main header at the start of data.
func Peek(data []byte) (*Header, error) {
	return NewParser(bytes.NewReader(data)).ReadHeader()
}

// ReadHeader reads from SOC up to and including the first SOT marker code,
// leaving the reader at the SOT segment length. EOC also ends the header,
// for codestreams without tiles.
func (p *Parser) ReadHeader() (*Header, error) {
	if err := p.expectMarker(SOC); err != nil {
		return nil, fmt.Errorf("expected SOC marker: %w", err)
	}
	if err := p.expectMarker(SIZ); err != nil {
		return nil, fmt.Errorf("expected SIZ marker: %w", err)
	}
	if err := p.readSIZ(); err != nil {
		return nil, fmt.Errorf("failed to read SIZ marker: %w", err)
	}

	for {
		m, err := p.readMarker()
		if err != nil {
			return nil, fmt.Errorf("failed to read marker: %w", err)
		}
		switch m {
		case SOT, EOC:
			p.header.CalculateDerivedValues()
			if err := p.header.Validate(); err != nil {
				return nil, err
			}
			return p.header, nil
		case COD:
			err = p.readCOD()
		case COM:
			err = p.readCOM()
		case SOC, SOD, SIZ:
			err = fmt.Errorf("%w: %v in main header", ErrInvalidMarker, m)
		default:
			if !m.Valid() || !m.HasLength() {
				err = fmt.Errorf("%w: %v in main header", ErrInvalidMarker, m)
				break
			}
			err = p.skipMarkerSegment()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %v marker: %w", m, err)
		}
	}
}

// Header returns the header read so far.
func (p *Parser) Header() *Header {
	return p.header
}

func (p *Parser) expectMarker(want Marker) error {
	m, err := p.readMarker()
	if err != nil {
		return err
	}
	if m != want {
		return fmt.Errorf("%w: got %v, want %v", ErrInvalidMarker, m, want)
	}
	return nil
}

func (p *Parser) readMarker() (Marker, error) {
	v, err := p.readUint16()
	return Marker(v), err
}

func (p *Parser) readUint16() (uint16, error) {
	if _, err := io.ReadFull(p.r, p.buf[:2]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(p.buf[:2]), nil
}

// readSegment reads the length field of a marker segment and returns the
// rest of the segment.
func (p *Parser) readSegment(min int) ([]byte, error) {
	length, err := p.readUint16()
	if err != nil {
		return nil, err
	}
	if int(length) < min {
		return nil, fmt.Errorf("segment too short: %d bytes", length)
	}
	data := make([]byte, int(length)-2)
	if _, err := io.ReadFull(p.r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (p *Parser) skipMarkerSegment() error {
	length, err := p.readUint16()
	if err != nil {
		return err
	}
	if length < 2 {
		return fmt.Errorf("segment too short: %d bytes", length)
	}
	_, err = io.CopyN(io.Discard, p.r, int64(length)-2)
	return err
}

func (p *Parser) readSIZ() error {
	data, err := p.readSegment(41)
	if err != nil {
		return err
	}
	be := binary.BigEndian
	h := p.header
	h.Profile = be.Uint16(data[0:])
	h.ImageWidth = be.Uint32(data[2:])
	h.ImageHeight = be.Uint32(data[6:])
	h.ImageXOffset = be.Uint32(data[10:])
	h.ImageYOffset = be.Uint32(data[14:])
	h.TileWidth = be.Uint32(data[18:])
	h.TileHeight = be.Uint32(data[22:])
	h.TileXOffset = be.Uint32(data[26:])
	h.TileYOffset = be.Uint32(data[30:])
	n := int(be.Uint16(data[34:]))

	if want := 36 + 3*n; len(data) != want {
		return fmt.Errorf("SIZ length mismatch: expected %d, got %d", want+2, len(data)+2)
	}
	h.Components = make([]ComponentInfo, n)
	for i := range h.Components {
		c := data[36+3*i:]
		h.Components[i] = ComponentInfo{BitDepth: c[0], SubsamplingX: c[1], SubsamplingY: c[2]}
	}
	return nil
}

func (p *Parser) readCOD() error {
	data, err := p.readSegment(12)
	if err != nil {
		return err
	}
	cs := &p.header.CodingStyle
	cs.CodingStyle = data[0]
	cs.ProgressionOrder = ProgressionOrder(data[1])
	cs.NumLayers = binary.BigEndian.Uint16(data[2:])
	cs.MultipleComponentXf = data[4]
	cs.NumDecompositions = data[5]
	cs.CodeBlockWidthExp = data[6]
	cs.CodeBlockHeightExp = data[7]
	cs.CodeBlockStyle = data[8]
	cs.WaveletTransform = data[9]
	cs.PrecinctSizes = nil
	if cs.CodingStyle&CodingStylePrecincts != 0 {
		cs.PrecinctSizes = append([]uint8(nil), data[10:]...)
	}
	return nil
}

// readCOM keeps Latin comments and drops binary ones.
func (p *Parser) readCOM() error {
	data, err := p.readSegment(4)
	if err != nil {
		return err
	}
	if binary.BigEndian.Uint16(data) != CommentLatin {
		return nil
	}
	text, err := charmap.ISO8859_15.NewDecoder().Bytes(data[2:])
	if err != nil {
		return err
	}
	p.header.Comments = append(p.header.Comments, string(text))
	return nil
}
