package codestream

import (
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/text/encoding/charmap"
)

// WriteHeader writes SOC followed by the SIZ, COD and COM segments of h.
// The caller continues with the tile-parts.
func WriteHeader(w io.Writer, h *Header) error {
	if err := h.Validate(); err != nil {
		return err
	}
	buf := make([]byte, 0, 64+3*len(h.Components))
	buf = binary.BigEndian.AppendUint16(buf, uint16(SOC))
	buf = appendSIZ(buf, h)
	buf = appendCOD(buf, &h.CodingStyle)
	for _, c := range h.Comments {
		text, err := charmap.ISO8859_15.NewEncoder().Bytes([]byte(c))
		if err != nil {
			return fmt.Errorf("comment %q: %w", c, err)
		}
		if len(text) > 0xFFFF-4 {
			return fmt.Errorf("comment of %d bytes does not fit a COM segment", len(text))
		}
		buf = binary.BigEndian.AppendUint16(buf, uint16(COM))
		buf = binary.BigEndian.AppendUint16(buf, uint16(4+len(text)))
		buf = binary.BigEndian.AppendUint16(buf, CommentLatin)
		buf = append(buf, text...)
	}
	_, err := w.Write(buf)
	return err
}

func appendSIZ(buf []byte, h *Header) []byte {
	be := binary.BigEndian
	buf = be.AppendUint16(buf, uint16(SIZ))
	buf = be.AppendUint16(buf, uint16(38+3*len(h.Components)))
	buf = be.AppendUint16(buf, h.Profile)
	for _, v := range []uint32{
		h.ImageWidth, h.ImageHeight, h.ImageXOffset, h.ImageYOffset,
		h.TileWidth, h.TileHeight, h.TileXOffset, h.TileYOffset,
	} {
		buf = be.AppendUint32(buf, v)
	}
	buf = be.AppendUint16(buf, uint16(len(h.Components)))
	for _, c := range h.Components {
		buf = append(buf, c.BitDepth, c.SubsamplingX, c.SubsamplingY)
	}
	return buf
}

func appendCOD(buf []byte, cs *CodingStyleDefault) []byte {
	scod := cs.CodingStyle &^ CodingStylePrecincts
	if len(cs.PrecinctSizes) > 0 {
		scod |= CodingStylePrecincts
	}
	layers := cs.NumLayers
	if layers == 0 {
		layers = 1
	}
	be := binary.BigEndian
	buf = be.AppendUint16(buf, uint16(COD))
	buf = be.AppendUint16(buf, uint16(12+len(cs.PrecinctSizes)))
	buf = append(buf, scod, uint8(cs.ProgressionOrder))
	buf = be.AppendUint16(buf, layers)
	buf = append(buf, cs.MultipleComponentXf, cs.NumDecompositions,
		cs.CodeBlockWidthExp, cs.CodeBlockHeightExp, cs.CodeBlockStyle, cs.WaveletTransform)
	return append(buf, cs.PrecinctSizes...)
}
