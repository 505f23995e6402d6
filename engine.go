package jp2

import (
	"errors"
	"image"
	"sync"
)

// ErrNoEngine is returned when pixels are needed and no engine is set.
var ErrNoEngine = errors.New("jp2: no codestream engine registered")

// Engine codes JPEG 2000 codestreams. Implementations wrap a wavelet
// codec; this package only drives them.
type Engine interface {
	// Open prepares a codestream for tile decoding. The slice is owned by
	// the decoder until it is discarded.
	Open(codestream []byte) (TileDecoder, error)

	// Encode compresses a raster into a complete codestream, SOC to EOC.
	Encode(r *Raster, o *Options) ([]byte, error)
}

// TileDecoder decodes one component of one tile at a time.
type TileDecoder interface {
	DecodeTile(tile, component int) (*Block, error)
}

// Block is the decoded samples of one tile component.
type Block struct {
	// Rect is the block's area on the component's sample grid, which is
	// the reference grid divided by the component's subsampling.
	Rect image.Rectangle

	// Data holds Rect.Dx()*Rect.Dy() samples in row-major order. Unsigned
	// components are not level shifted.
	Data []int32
}

var (
	engineMu sync.RWMutex
	engine   Engine
)

// RegisterEngine sets the engine used when options name none. Passing nil
// removes it.
func RegisterEngine(e Engine) {
	engineMu.Lock()
	engine = e
	engineMu.Unlock()
}

// registeredEngine returns e if it is set, else the registered engine.
func registeredEngine(e Engine) (Engine, error) {
	if e != nil {
		return e, nil
	}
	engineMu.RLock()
	defer engineMu.RUnlock()
	if engine == nil {
		return nil, ErrNoEngine
	}
	return engine, nil
}
