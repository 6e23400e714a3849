package streambanner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/small-frappuccino/zealox/pkg/util"
)

// Position is a point on the 1920x1080 banner.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// TextStyle places one team name. The text is anchored at its vertical
// middle; Align picks the horizontal anchor (left, center, right).
type TextStyle struct {
	Position Position `json:"position"`
	Size     float64  `json:"size"`
	Color    string   `json:"color"`
	Align    string   `json:"align"`
}

// Styles is the content of styles.css (which holds JSON).
type Styles struct {
	Text1 TextStyle `json:"text1"`
	Text2 TextStyle `json:"text2"`
}

// DefaultStyles positions both names at y=500, size 70, white, centered.
func DefaultStyles() Styles {
	return Styles{
		Text1: TextStyle{Position: Position{X: 256, Y: 500}, Size: 70, Color: "#ffffff", Align: "center"},
		Text2: TextStyle{Position: Position{X: 768, Y: 500}, Size: 70, Color: "#ffffff", Align: "center"},
	}
}

var requiredProperties = []string{"position", "size", "color", "align"}

// ErrInvalidStyles reports a styles file that misses elements or properties.
var ErrInvalidStyles = errors.New("invalid styles")

func validate(data []byte) error {
	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStyles, err)
	}
	for _, element := range []string{"text1", "text2"} {
		props, ok := raw[element]
		if !ok {
			return fmt.Errorf("%w: missing element %s", ErrInvalidStyles, element)
		}
		for _, p := range requiredProperties {
			if _, ok := props[p]; !ok {
				return fmt.Errorf("%w: missing property %s.%s", ErrInvalidStyles, element, p)
			}
		}
	}
	return nil
}

// LoadStyles reads the styles at path. When the file is missing or invalid
// the defaults are written back and returned together with the reason.
func LoadStyles(path string) (Styles, error) {
	jm := util.NewJSONManager(path)
	data, err := os.ReadFile(path)
	if err == nil {
		if err = validate(data); err == nil {
			var st Styles
			if err = jm.Load(&st); err == nil {
				return st, nil
			}
		}
	}
	def := DefaultStyles()
	if saveErr := jm.Save(def); saveErr != nil {
		return def, errors.Join(err, saveErr)
	}
	return def, err
}
