// Package imaging holds the raster helpers used by the banner generators:
// decoding, aspect-preserving scaling, compositing and text rendering.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	ErrNotImage = errors.New("not a decodable image")
	ErrEmpty    = errors.New("image has no pixels")
)

// Decode reads an image and reports its format name ("png", "jpeg", ...).
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return img, format, nil
}

// DecodeBytes is Decode for in-memory data.
func DecodeBytes(data []byte) (image.Image, string, error) {
	return Decode(bytes.NewReader(data))
}

// Load opens and decodes the image at path.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// SavePNG encodes img as PNG at path, creating parent directories.
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// EncodePNG returns img encoded as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Solid returns a w x h canvas filled with c.
func Solid(w, h int, c color.Color) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return dst
}

// ToRGBA returns a copy of img as RGBA anchored at the origin.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Resize scales img to exactly w x h.
func Resize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// FitWithin scales img by min(maxW/w, maxH/h), keeping its aspect ratio.
// Images are scaled up as well as down.
func FitWithin(img image.Image, maxW, maxH int) (*image.RGBA, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, ErrEmpty
	}
	ratio := min(float64(maxW)/float64(b.Dx()), float64(maxH)/float64(b.Dy()))
	w := max(int(float64(b.Dx())*ratio), 1)
	h := max(int(float64(b.Dy())*ratio), 1)
	return Resize(img, w, h), nil
}

// PasteCentered draws src over dst so that its center lands on (x, y).
func PasteCentered(dst draw.Image, src image.Image, x, y int) {
	sb := src.Bounds()
	origin := image.Pt(x-sb.Dx()/2, y-sb.Dy()/2)
	r := image.Rectangle{Min: origin, Max: origin.Add(sb.Size())}
	draw.Draw(dst, r, src, sb.Min, draw.Over)
}

// Overlay composites src over the whole of dst, stretching it to dst's size
// when the sizes differ.
func Overlay(dst draw.Image, src image.Image) {
	db := dst.Bounds()
	if src.Bounds().Size() != db.Size() {
		src = Resize(src, db.Dx(), db.Dy())
	}
	draw.Draw(dst, db, src, src.Bounds().Min, draw.Over)
}
