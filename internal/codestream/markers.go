// Package codestream reads and writes the main header of a JPEG 2000
// codestream: the SIZ image and tile geometry, the COD defaults and any
// comments. Tile-part and packet data are left to the decoding engine.
package codestream

import "fmt"

// Marker is a JPEG 2000 codestream marker code.
type Marker uint16

// Delimiting markers.
const (
	SOC Marker = 0xFF4F // Start of codestream
	SOT Marker = 0xFF90 // Start of tile-part
	SOD Marker = 0xFF93 // Start of data
	EOC Marker = 0xFFD9 // End of codestream
)

// Main and tile-part header markers.
const (
	SIZ Marker = 0xFF51
	COD Marker = 0xFF52
	COC Marker = 0xFF53
	RGN Marker = 0xFF5E
	QCD Marker = 0xFF5C
	QCC Marker = 0xFF5D
	POC Marker = 0xFF5F
	TLM Marker = 0xFF55
	PLM Marker = 0xFF57
	PLT Marker = 0xFF58
	PPM Marker = 0xFF60
	PPT Marker = 0xFF61
	SOP Marker = 0xFF91
	EPH Marker = 0xFF92
	CRG Marker = 0xFF63
	COM Marker = 0xFF64
	CAP Marker = 0xFF50
)

var markerNames = map[Marker]string{
	SOC: "SOC", SOT: "SOT", SOD: "SOD", EOC: "EOC",
	SIZ: "SIZ", COD: "COD", COC: "COC", RGN: "RGN",
	QCD: "QCD", QCC: "QCC", POC: "POC", TLM: "TLM",
	PLM: "PLM", PLT: "PLT", PPM: "PPM", PPT: "PPT",
	SOP: "SOP", EPH: "EPH", CRG: "CRG", COM: "COM",
	CAP: "CAP",
}

// String returns the marker's mnemonic, or its hex code if unknown.
func (m Marker) String() string {
	if s, ok := markerNames[m]; ok {
		return s
	}
	return fmt.Sprintf("0x%04X", uint16(m))
}

// Valid reports whether m lies in the marker code range.
func (m Marker) Valid() bool {
	return m>>8 == 0xFF && m&0xFF >= 0x30
}

// HasLength reports whether a length field follows the marker.
func (m Marker) HasLength() bool {
	switch m {
	case SOC, SOD, EOC, EPH:
		return false
	}
	// 0xFF30-0xFF3F are reserved markers without segments.
	return m&0xFF >= 0x40
}

// Coding style flags (Scod).
const (
	CodingStylePrecincts uint8 = 0x01
	CodingStyleSOP       uint8 = 0x02
	CodingStyleEPH       uint8 = 0x04
)

// Comment registration values (Rcom).
const (
	CommentBinary uint16 = 0
	CommentLatin  uint16 = 1
)

// ProgressionOrder is the packet order signalled in COD.
type ProgressionOrder uint8

const (
	LRCP ProgressionOrder = iota
	RLCP
	RPCL
	PCRL
	CPRL
)

func (p ProgressionOrder) String() string {
	switch p {
	case LRCP:
		return "LRCP"
	case RLCP:
		return "RLCP"
	case RPCL:
		return "RPCL"
	case PCRL:
		return "PCRL"
	case CPRL:
		return "CPRL"
	}
	return fmt.Sprintf("ProgressionOrder(%d)", uint8(p))
}
