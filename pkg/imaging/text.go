package imaging

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// HAlign is the horizontal anchor of a text run.
type HAlign int

const (
	AlignCenter HAlign = iota
	AlignLeft
	AlignRight
)

// ParseAlign maps "left", "right" and anything else (center) to an HAlign.
func ParseAlign(s string) HAlign {
	switch s {
	case "left":
		return AlignLeft
	case "right":
		return AlignRight
	default:
		return AlignCenter
	}
}

// VAnchor selects what the y coordinate of a text run refers to.
type VAnchor int

const (
	AnchorTop VAnchor = iota
	AnchorMiddle
)

// Font is a TrueType/OpenType font, or the built-in bitmap face when no
// usable font file exists.
type Font struct {
	path string
	otf  *opentype.Font

	mu    sync.Mutex
	faces map[float64]font.Face
}

// LoadFont parses the font at path. A missing, empty or broken file yields
// the fallback font together with the error that caused it, so callers can
// log and carry on.
func LoadFont(path string) (*Font, error) {
	f := &Font{path: path, faces: make(map[float64]font.Face)}
	data, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if len(data) == 0 {
		return f, fmt.Errorf("font %s is empty", path)
	}
	otf, err := opentype.Parse(data)
	if err != nil {
		return f, fmt.Errorf("parse font %s: %w", path, err)
	}
	f.otf = otf
	return f, nil
}

// Fallback reports whether the built-in bitmap face is used.
func (f *Font) Fallback() bool { return f == nil || f.otf == nil }

// Face returns a face of the given point size. Faces are cached per size.
func (f *Font) Face(size float64) (font.Face, error) {
	if f.Fallback() {
		return basicfont.Face7x13, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if face, ok := f.faces[size]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(f.otf, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	f.faces[size] = face
	return face, nil
}

// Close releases cached faces.
func (f *Font) Close() error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for size, face := range f.faces {
		face.Close()
		delete(f.faces, size)
	}
	return nil
}

// Measure returns the advance width and the line height of text.
func Measure(face font.Face, text string) (width, height int) {
	m := face.Metrics()
	return font.MeasureString(face, text).Ceil(), (m.Ascent + m.Descent).Ceil()
}

// DrawText draws text anchored at (x, y). Horizontally x is the left edge,
// center or right edge of the run; vertically y is the top of the line or
// its middle.
func DrawText(dst draw.Image, face font.Face, text string, x, y int, c color.Color, h HAlign, v VAnchor) {
	width, _ := Measure(face, text)
	switch h {
	case AlignCenter:
		x -= width / 2
	case AlignRight:
		x -= width
	}

	m := face.Metrics()
	baseline := fixed.I(y) + m.Ascent
	if v == AnchorMiddle {
		baseline = fixed.I(y) + (m.Ascent-m.Descent)/2
	}

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: baseline},
	}
	d.DrawString(text)
}
