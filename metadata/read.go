package metadata

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mrjoshuak/go-jp2/box"
	"github.com/mrjoshuak/go-jp2/stream"
)

var (
	// ErrNotJP2 is returned when a stream does not start with a JP2
	// signature box.
	ErrNotJP2 = errors.New("metadata: not a JP2 file")

	// ErrNoCodestream is returned when a JP2 file has no contiguous
	// codestream box.
	ErrNoCodestream = errors.New("metadata: no codestream box")
)

// Codestream locates the contents of a contiguous codestream box.
type Codestream struct {
	Offset int64
	Length int64
}

// Read walks the boxes of a JP2 stream. Superboxes are descended into and
// their children stored individually; the first codestream box is located
// but not read. Boxes of single-instance kinds replace earlier ones.
func Read(src *stream.Reader, opts ...Option) (*Metadata, *Codestream, error) {
	m := New(opts...)
	end, err := src.Length()
	if err != nil {
		return nil, nil, fmt.Errorf("metadata: measuring stream: %w", err)
	}

	var cs *Codestream
	for pos, i := int64(0), 0; pos < end; i++ {
		h, err := box.ReadHeader(src, pos)
		if err != nil {
			return nil, nil, fmt.Errorf("metadata: box at offset %d: %w", pos, err)
		}
		if i == 0 && h.Type != box.TypeJP2Signature {
			return nil, nil, fmt.Errorf("%w: first box is %s", ErrNotJP2, h.Type)
		}

		if h.Type == box.TypeContCodestream {
			if cs == nil {
				cs = &Codestream{Offset: h.Offset, Length: h.ContentSize}
			} else {
				m.log.Debug("ignoring additional codestream box", zap.Int64("offset", pos))
			}
		} else {
			b, err := box.Read(src, pos)
			if err != nil {
				if i == 0 {
					return nil, nil, fmt.Errorf("%w: %v", ErrNotJP2, err)
				}
				return nil, nil, fmt.Errorf("metadata: box at offset %d: %w", pos, err)
			}
			if err := m.store(b); err != nil {
				return nil, nil, fmt.Errorf("metadata: box %s at offset %d: %w", b.Type(), pos, err)
			}
		}

		if h.Length == 0 {
			break
		}
		pos += h.Size()
	}

	if ft := m.ElementOf(box.TypeFileType); ft != nil {
		if p, ok := ft.Payload().(*box.FileTypeBox); ok && !compatible(p) {
			m.log.Warn("file type box does not list the jp2 brand", zap.Stringer("brand", p.Brand))
		}
	}
	return m, cs, nil
}

// store inserts b, or its children when b is a superbox. A length 0 box
// gets its explicit length, since it will not be the last box once the
// collection is written again.
func (m *Metadata) store(b *box.Box) error {
	if !box.IsSuperBox(b.Type()) {
		b.ResolveLength()
		m.Insert(b)
		return nil
	}
	children, err := box.ReadChildren(b.Content())
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := m.store(c); err != nil {
			return err
		}
	}
	return nil
}

func compatible(ft *box.FileTypeBox) bool {
	if ft.Brand == box.BrandJP2 {
		return true
	}
	for _, t := range ft.Compatibility {
		if t == box.BrandJP2 {
			return true
		}
	}
	return false
}
