package matchday

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/small-frappuccino/zealox/pkg/files"
	"github.com/small-frappuccino/zealox/pkg/imaging"
)

var white = color.RGBA{255, 255, 255, 255}

// Card is everything printed on a matchday graphic.
type Card struct {
	HomeName  string
	AwayName  string
	MatchTime string
	HomeLogo  string
	AwayLogo  string
}

// Renderer draws matchday graphics.
type Renderer struct {
	BasePath string
	Style    Style
	Font     *imaging.Font
	// Fallback is used when BasePath does not exist.
	Fallback files.MatchdayConfig
}

func (r *Renderer) base() (*image.RGBA, error) {
	img, err := imaging.Load(r.BasePath)
	if err == nil {
		return imaging.ToRGBA(img), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	size := r.Fallback.ImageSize
	if size.Width <= 0 || size.Height <= 0 {
		def := files.DefaultMatchdayConfig()
		size = def.ImageSize
	}
	bg := imaging.HexOr(r.Fallback.BackgroundColor, color.RGBA{0x29, 0x29, 0x29, 0xff})
	return imaging.Solid(size.Width, size.Height, bg), nil
}

// Render composes the graphic for c.
func (r *Renderer) Render(c Card) (*image.RGBA, error) {
	canvas, err := r.base()
	if err != nil {
		return nil, fmt.Errorf("load base image: %w", err)
	}

	logos := []struct {
		path  string
		style LogoStyle
	}{
		{c.HomeLogo, r.Style.Logo1},
		{c.AwayLogo, r.Style.Logo2},
	}
	for _, l := range logos {
		img, err := imaging.Load(l.path)
		if err != nil {
			return nil, fmt.Errorf("load logo: %w", err)
		}
		scaled, err := imaging.FitWithin(img, l.style.MaxWidth, l.style.MaxHeight)
		if err != nil {
			return nil, fmt.Errorf("scale logo %s: %w", l.path, err)
		}
		imaging.PasteCentered(canvas, scaled, l.style.X, l.style.Y)
	}

	texts := []struct {
		text  string
		style TextStyle
	}{
		{c.HomeName, r.Style.Text1},
		{c.AwayName, r.Style.Text2},
		{c.MatchTime, r.Style.MatchTime},
	}
	for _, t := range texts {
		face, err := r.Font.Face(t.style.Size)
		if err != nil {
			return nil, fmt.Errorf("font face: %w", err)
		}
		imaging.DrawText(canvas, face, t.text, t.style.X, t.style.Y,
			imaging.HexOr(t.style.Color, white), imaging.AlignCenter, imaging.AnchorTop)
	}
	return canvas, nil
}
