package matchday

import (
	"github.com/small-frappuccino/zealox/pkg/util"
)

// LogoStyle places a logo: it is scaled into MaxWidth x MaxHeight and
// centered on (X, Y).
type LogoStyle struct {
	X         int `json:"x"`
	Y         int `json:"y"`
	MaxWidth  int `json:"max_width"`
	MaxHeight int `json:"max_height"`
}

// TextStyle places a text run horizontally centered on X with Y as its top.
type TextStyle struct {
	X     int     `json:"x"`
	Y     int     `json:"y"`
	Size  float64 `json:"size"`
	Color string  `json:"color"`
}

// Style is the layout stored in style.css (which holds JSON).
type Style struct {
	Logo1     LogoStyle `json:"logo1"`
	Logo2     LogoStyle `json:"logo2"`
	Text1     TextStyle `json:"text1"`
	Text2     TextStyle `json:"text2"`
	MatchTime TextStyle `json:"match_time"`
}

// DefaultStyle is the layout for a 1024x1024 base image.
func DefaultStyle() Style {
	return Style{
		Logo1:     LogoStyle{X: 200, Y: 400, MaxWidth: 200, MaxHeight: 200},
		Logo2:     LogoStyle{X: 824, Y: 400, MaxWidth: 200, MaxHeight: 200},
		Text1:     TextStyle{X: 200, Y: 600, Size: 36, Color: "#ffffff"},
		Text2:     TextStyle{X: 824, Y: 600, Size: 36, Color: "#ffffff"},
		MatchTime: TextStyle{X: 512, Y: 700, Size: 48, Color: "#ffffff"},
	}
}

// LoadStyle reads the layout at path. A missing file is created with the
// defaults; an unreadable one yields the defaults and the parse error.
func LoadStyle(path string) (Style, error) {
	jm := util.NewJSONManager(path)
	if !jm.Exists() {
		def := DefaultStyle()
		return def, jm.Save(def)
	}
	st := DefaultStyle()
	if err := jm.Load(&st); err != nil {
		return DefaultStyle(), err
	}
	return st, nil
}
