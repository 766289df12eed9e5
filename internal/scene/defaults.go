package scene

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Default placement and styles for newly added objects.
const (
	DefaultLeft = 50
	DefaultTop  = 50

	DefaultTextFill     = "#000"
	DefaultFontFamily   = "Latin Modern Roman"
	DefaultFontSize     = 20
	DefaultTextBoxWidth = 200

	DefaultBackground = "#fff"
)

// DefaultPolygon is the vertex set of the toolbar polygon (a pentagon).
var DefaultPolygon = []Point{{40, 0}, {80, 30}, {65, 75}, {15, 75}, {0, 30}}

func defaultTransform() Transform {
	return Transform{X: DefaultLeft, Y: DefaultTop, ScaleX: 1, ScaleY: 1}
}

// NewText returns a caption object with the default style. The caller is
// responsible for rejecting blank content.
func NewText(id, content string) Object {
	return Object{
		ID:         id,
		Type:       ObjectTypeText,
		Transform:  defaultTransform(),
		Fill:       DefaultTextFill,
		Selectable: true,
		Width:      DefaultTextBoxWidth,
		Text: &TextData{
			Content:    content,
			FontFamily: DefaultFontFamily,
			FontSize:   DefaultFontSize,
			Editable:   true,
		},
	}
}

// NewShape returns the default object for kind. ok is false for an invalid kind.
func NewShape(id string, kind ShapeKind) (obj Object, ok bool) {
	obj = Object{
		ID:         id,
		Type:       kind.ObjectType(),
		Transform:  defaultTransform(),
		Selectable: true,
	}
	switch kind {
	case ShapeRectangle:
		obj.Width, obj.Height, obj.Fill = 80, 50, "blue"
	case ShapeTriangle:
		obj.Width, obj.Height, obj.Fill = 80, 60, "green"
	case ShapeCircle:
		obj.Radius, obj.Fill = 30, "red"
	case ShapePolygon:
		obj.Points = append([]Point(nil), DefaultPolygon...)
		obj.Fill = "orange"
	default:
		return Object{}, false
	}
	return obj, true
}

// NormalizeCaption returns the NFC form of s and whether it has visible content.
func NormalizeCaption(s string) (string, bool) {
	s = norm.NFC.String(s)
	return s, strings.TrimSpace(s) != ""
}
