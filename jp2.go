// Package jp2 reads and writes JPEG 2000 part 1 (JP2) files.
//
// The package handles the box container: it locates the codestream, keeps
// every metadata box in a [metadata.Metadata] collection and applies the
// palette, component mapping, channel definition and color specification
// boxes to decoded samples. Wavelet coding is delegated to an [Engine],
// registered once with [RegisterEngine] or passed in the options.
//
// Basic usage for decoding:
//
//	file, _ := os.Open("image.jp2")
//	img, err := jp2.Decode(file)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Reading only the metadata needs no engine:
//
//	r, err := jp2.NewReader(file, nil)
//	root := r.Metadata().NativeTree()
package jp2

import (
	"image"
	"io"

	"go.uber.org/zap"

	"github.com/mrjoshuak/go-jp2/internal/codestream"
	"github.com/mrjoshuak/go-jp2/metadata"
)

// Signature is the first twelve bytes of every JP2 file.
const Signature = "\x00\x00\x00\x0cjP  \r\n\x87\n"

// ProgressionOrder defines the order in which packets are encoded.
type ProgressionOrder = codestream.ProgressionOrder

const (
	LRCP = codestream.LRCP
	RLCP = codestream.RLCP
	RPCL = codestream.RPCL
	PCRL = codestream.PCRL
	CPRL = codestream.CPRL
)

// ReadOptions configures a Reader.
type ReadOptions struct {
	// Engine decodes the codestream. Nil selects the registered engine.
	Engine Engine

	// Logger receives recovered problems. Nil discards them.
	Logger *zap.Logger

	// StrictBoxes makes metadata tree merges fail instead of substituting
	// generic boxes.
	StrictBoxes bool

	// KeepColorSpace skips the conversion of enumerated color spaces to
	// sRGB.
	KeepColorSpace bool
}

// Options holds the encoding options.
type Options struct {
	// Engine encodes the codestream. Nil selects the registered engine.
	Engine Engine

	// Lossless selects the reversible 5-3 wavelet.
	Lossless bool

	// Quality is the compression quality (1-100) for lossy coding.
	Quality int

	// NumResolutions is the number of resolution levels.
	NumResolutions int

	// NumLayers is the number of quality layers.
	NumLayers int

	// ProgressionOrder is the packet ordering.
	ProgressionOrder ProgressionOrder

	// TileSize is the tile size. Zero means one tile.
	TileSize image.Point

	// ColorSpace overrides the color space derived from the image.
	ColorSpace ColorSpace

	// ICCProfile, when set, is written instead of an enumerated color
	// space.
	ICCProfile []byte

	// Comment is stored in the codestream.
	Comment string

	// Resolution is the capture resolution in pixels per metre, written
	// when both axes are positive.
	Resolution struct{ Horizontal, Vertical float64 }

	// Metadata holds extra boxes (XML, UUID, UUID info, IPR) written
	// after the header.
	Metadata *metadata.Metadata

	// Logger receives progress and recovered problems.
	Logger *zap.Logger
}

// DefaultOptions returns the default encoding options.
func DefaultOptions() *Options {
	return &Options{
		Quality:          75,
		NumResolutions:   6,
		NumLayers:        1,
		ProgressionOrder: LRCP,
	}
}

// Decode reads a JP2 image from r.
func Decode(r io.Reader) (image.Image, error) {
	d, err := NewReader(r, nil)
	if err != nil {
		return nil, err
	}
	return d.Image()
}

// DecodeConfig returns the color model and dimensions of a JP2 image
// without decoding it.
func DecodeConfig(r io.Reader) (image.Config, error) {
	d, err := NewReader(r, nil)
	if err != nil {
		return image.Config{}, err
	}
	return d.Config()
}

func init() {
	image.RegisterFormat("jp2", Signature, Decode, DecodeConfig)
}

func loggerOr(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
