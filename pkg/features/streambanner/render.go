package streambanner

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/small-frappuccino/zealox/pkg/imaging"
)

const (
	bannerWidth     = 1920
	bannerHeight    = 1080
	defaultTextSize = 70
)

// Banner is what goes on a stream banner.
type Banner struct {
	Home string
	Away string
	Mode string
	// TextSize overrides both style sizes when positive.
	TextSize float64
}

// Renderer draws stream banners.
type Renderer struct {
	BasePath string
	ModesDir string
	Styles   Styles
	Font     *imaging.Font
	Logger   *slog.Logger
}

// CreateDefaultBase writes a blank banner with a caption to path.
func CreateDefaultBase(path string, font *imaging.Font) error {
	img := imaging.Solid(bannerWidth, bannerHeight, color.NRGBA{41, 41, 41, 0})
	face, err := font.Face(48)
	if err != nil {
		return err
	}
	imaging.DrawText(img, face, "STREAMBANNER", bannerWidth/2, 100, color.White, imaging.AlignCenter, imaging.AnchorMiddle)
	return imaging.SavePNG(path, img)
}

// Modes lists the game modes: the upper-cased stems of the PNG files in
// dir, sorted.
func Modes(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".png") {
			continue
		}
		out = append(out, strings.ToUpper(strings.TrimSuffix(name, filepath.Ext(name))))
	}
	sort.Strings(out)
	return out
}

// modeFile finds the overlay for mode regardless of the file name's case.
func modeFile(dir, mode string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".png") {
			continue
		}
		if strings.EqualFold(strings.TrimSuffix(name, filepath.Ext(name)), mode) {
			return filepath.Join(dir, name), true
		}
	}
	return "", false
}

// Render composes b.
func (r *Renderer) Render(b Banner) (*image.RGBA, error) {
	base, err := imaging.Load(r.BasePath)
	if err != nil {
		return nil, fmt.Errorf("load base image: %w", err)
	}
	canvas := imaging.Resize(base, bannerWidth, bannerHeight)

	texts := []struct {
		text  string
		style TextStyle
	}{
		{b.Home, r.Styles.Text1},
		{b.Away, r.Styles.Text2},
	}
	for _, t := range texts {
		if t.text == "" {
			continue
		}
		size := t.style.Size
		if b.TextSize > 0 {
			size = b.TextSize
		}
		if size <= 0 {
			size = defaultTextSize
		}
		face, err := r.Font.Face(size)
		if err != nil {
			return nil, fmt.Errorf("font face: %w", err)
		}
		imaging.DrawText(canvas, face, strings.ToUpper(t.text), t.style.Position.X, t.style.Position.Y,
			imaging.HexOr(t.style.Color, color.RGBA{255, 255, 255, 255}),
			imaging.ParseAlign(t.style.Align), imaging.AnchorMiddle)
	}

	if mode := strings.TrimSpace(b.Mode); mode != "" {
		path, ok := modeFile(r.ModesDir, mode)
		if !ok {
			r.logger().Error("Game mode image not found", "mode", mode, "dir", r.ModesDir)
			return canvas, nil
		}
		overlay, err := imaging.Load(path)
		if err != nil {
			r.logger().Error("Could not process game mode image", "path", path, "error", err)
			return canvas, nil
		}
		imaging.Overlay(canvas, overlay)
	}
	return canvas, nil
}

func (r *Renderer) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
