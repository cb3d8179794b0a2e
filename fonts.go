package reel

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/gofont/goregular"
)

// FontBook maps font family names to parsed TrueType sources. Families
// that were never registered fall back to Go Regular. FontBook implements
// TextMeasurer and is safe for concurrent use.
type FontBook struct {
	mu       sync.RWMutex
	sources  map[string]*text.GoTextFaceSource
	fallback *text.GoTextFaceSource
}

// NewFontBook returns a font book holding only the fallback face.
func NewFontBook() (*FontBook, error) {
	src, err := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	if err != nil {
		return nil, fmt.Errorf("reel: failed to parse fallback font: %w", err)
	}
	return &FontBook{
		sources:  make(map[string]*text.GoTextFaceSource),
		fallback: src,
	}, nil
}

// Register parses TTF/OTF data and makes it available as family.
func (b *FontBook) Register(family string, data []byte) error {
	src, err := text.NewGoTextFaceSource(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("reel: failed to parse font %q: %w", family, err)
	}
	b.mu.Lock()
	b.sources[family] = src
	b.mu.Unlock()
	return nil
}

// Has reports whether family was registered.
func (b *FontBook) Has(family string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.sources[family]
	return ok
}

// Face returns a face for family at size pixels.
func (b *FontBook) Face(family string, size float64) *text.GoTextFace {
	b.mu.RLock()
	src, ok := b.sources[family]
	b.mu.RUnlock()
	if !ok {
		src = b.fallback
	}
	return &text.GoTextFace{Source: src, Size: size}
}

// lineHeight is the distance between baselines for face.
func lineHeight(face *text.GoTextFace) float64 {
	m := face.Metrics()
	return m.HAscent + m.HDescent + m.HLineGap
}

// MeasureText returns the laid-out size of s.
func (b *FontBook) MeasureText(s, family string, size float64) (w, h float64) {
	if s == "" || size <= 0 {
		return 0, 0
	}
	face := b.Face(family, size)
	return text.Measure(s, face, lineHeight(face))
}
