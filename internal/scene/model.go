package scene

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownShapeKind = errors.New("unknown shape kind")

type ObjectType string

const (
	ObjectTypeText      ObjectType = "Text"
	ObjectTypeRectangle ObjectType = "Rectangle"
	ObjectTypeTriangle  ObjectType = "Triangle"
	ObjectTypeCircle    ObjectType = "Circle"
	ObjectTypePolygon   ObjectType = "Polygon"
)

// ShapeKind enumerates the geometric shapes a user can add. Text is not a
// shape; it has its own operation.
type ShapeKind uint8

const (
	ShapeRectangle ShapeKind = iota + 1
	ShapeTriangle
	ShapeCircle
	ShapePolygon
)

// ShapeKinds lists every valid kind in toolbar order.
var ShapeKinds = []ShapeKind{ShapeRectangle, ShapeTriangle, ShapeCircle, ShapePolygon}

func (k ShapeKind) Valid() bool { return k >= ShapeRectangle && k <= ShapePolygon }

func (k ShapeKind) String() string {
	switch k {
	case ShapeRectangle:
		return "rectangle"
	case ShapeTriangle:
		return "triangle"
	case ShapeCircle:
		return "circle"
	case ShapePolygon:
		return "polygon"
	}
	return fmt.Sprintf("ShapeKind(%d)", uint8(k))
}

// ObjectType maps a shape kind to the object variant it creates.
func (k ShapeKind) ObjectType() ObjectType {
	switch k {
	case ShapeRectangle:
		return ObjectTypeRectangle
	case ShapeTriangle:
		return ObjectTypeTriangle
	case ShapeCircle:
		return ObjectTypeCircle
	case ShapePolygon:
		return ObjectTypePolygon
	}
	return ""
}

// ParseShapeKind converts a toolbar/request value into a ShapeKind.
func ParseShapeKind(s string) (ShapeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rectangle", "rect":
		return ShapeRectangle, nil
	case "triangle":
		return ShapeTriangle, nil
	case "circle":
		return ShapeCircle, nil
	case "polygon":
		return ShapePolygon, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownShapeKind, s)
}

func (k ShapeKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownShapeKind, uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *ShapeKind) UnmarshalText(b []byte) error {
	parsed, err := ParseShapeKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Transform places an object. X, Y is the top-left corner of the unrotated
// object, Angle is in degrees clockwise, rotation and scale pivot on (X, Y).
type Transform struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Angle  float64 `json:"angle"`
	ScaleX float64 `json:"scaleX"`
	ScaleY float64 `json:"scaleY"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type TextData struct {
	Content    string  `json:"content"`
	FontFamily string  `json:"fontFamily"`
	FontSize   float64 `json:"fontSize"`
	Editable   bool    `json:"editable"`
}

// Object is one drawable. Which size fields apply depends on Type:
// Text uses Width as its box width, Rectangle and Triangle use Width and
// Height, Circle uses Radius, Polygon uses Points as offsets from (X, Y).
type Object struct {
	ID         string     `json:"id"`
	Type       ObjectType `json:"type"`
	Transform  Transform  `json:"transform"`
	Fill       string     `json:"fill"`
	Selectable bool       `json:"selectable"`

	Width  float64   `json:"width,omitempty"`
	Height float64   `json:"height,omitempty"`
	Radius float64   `json:"radius,omitempty"`
	Points []Point   `json:"points,omitempty"`
	Text   *TextData `json:"text,omitempty"`
}

// BaseSize returns the unscaled size. textHeight is the laid-out height of a
// Text object's content and is ignored for other types.
func (o *Object) BaseSize(textHeight float64) (w, h float64) {
	switch o.Type {
	case ObjectTypeText:
		return o.Width, textHeight
	case ObjectTypeRectangle, ObjectTypeTriangle:
		return o.Width, o.Height
	case ObjectTypeCircle:
		return 2 * o.Radius, 2 * o.Radius
	case ObjectTypePolygon:
		minX, minY, maxX, maxY := pointBounds(o.Points)
		return maxX - minX, maxY - minY
	}
	return 0, 0
}

// EffectiveSize is the on-screen size: base size times the scale factors.
func (o *Object) EffectiveSize(textHeight float64) (w, h float64) {
	bw, bh := o.BaseSize(textHeight)
	return bw * o.Transform.ScaleX, bh * o.Transform.ScaleY
}

// Clone returns a deep copy.
func (o Object) Clone() Object {
	if o.Points != nil {
		o.Points = append([]Point(nil), o.Points...)
	}
	if o.Text != nil {
		t := *o.Text
		o.Text = &t
	}
	return o
}

func pointBounds(pts []Point) (minX, minY, maxX, maxY float64) {
	for i, p := range pts {
		if i == 0 {
			minX, maxX, minY, maxY = p.X, p.X, p.Y, p.Y
			continue
		}
		minX = min(minX, p.X)
		maxX = max(maxX, p.X)
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}
	return
}
