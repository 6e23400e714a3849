package imaging

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// ParseHex parses "#rgb", "#rrggbb" or "#rrggbbaa" (the '#' is optional).
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// HexOr parses s and falls back to def when s is not a valid color.
func HexOr(s string, def color.RGBA) color.RGBA {
	c, err := ParseHex(s)
	if err != nil {
		return def
	}
	return c
}

// HexToInt converts "#rrggbb" to the integer form Discord uses for embed
// colors.
func HexToInt(s string) (int, error) {
	c, err := ParseHex(s)
	if err != nil {
		return 0, err
	}
	return int(c.R)<<16 | int(c.G)<<8 | int(c.B), nil
}
