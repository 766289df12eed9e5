package engine

import "github.com/captionist/captionist/internal/scene"

// NodeKind says how a display node is drawn.
type NodeKind string

const (
	NodeBackground NodeKind = "background"
	NodePath       NodeKind = "path"
	NodeText       NodeKind = "text"
)

// DisplayList is the render-ready form of a scene: the background image node
// (if any) followed by one node per object, in painter's order.
type DisplayList struct {
	Width      int
	Height     int
	Background string
	Nodes      []*Node
	NodesByID  map[string]*Node
}

// Node is a resolved drawable. Path and Text are in local coordinates;
// World maps them to scene pixels.
type Node struct {
	ID         string
	Kind       NodeKind
	Type       scene.ObjectType
	Selectable bool

	World Matrix2D

	Path []PathCommand
	Fill string

	Text *TextLayout

	// Background image natural size.
	ImageWidth  float64
	ImageHeight float64

	// Local is the unscaled local box used for hit testing; Bounds is the
	// world-space axis-aligned box.
	Local  Rect
	Bounds Rect
}

// PathCommand is a single path segment in Canvas2D form:
// ["M", x, y], ["L", x, y], ["C", x1, y1, x2, y2, x, y], ["Z"].
type PathCommand []interface{}

// TextLayout is a caption broken into lines for a given box width.
type TextLayout struct {
	Lines      []string `json:"lines"`
	FontFamily string   `json:"fontFamily"`
	FontSize   float64  `json:"fontSize"`
	LineHeight float64  `json:"lineHeight"`
	Ascent     float64  `json:"ascent"`
	Width      float64  `json:"width"`
	Height     float64  `json:"height"`
}

// TextMeasurer lays out caption text. It is implemented by the renderer so
// that hit testing and painting agree on line breaks.
type TextMeasurer interface {
	LayoutText(t *scene.TextData, boxWidth float64) TextLayout
}

type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func NewDisplayList(width, height int, background string) *DisplayList {
	return &DisplayList{
		Width:      width,
		Height:     height,
		Background: background,
		NodesByID:  make(map[string]*Node),
	}
}

func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Union returns the smallest rect containing both rects.
func (r Rect) Union(other Rect) Rect {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}

	minX := min(r.X, other.X)
	minY := min(r.Y, other.Y)
	maxX := max(r.X+r.Width, other.X+other.Width)
	maxY := max(r.Y+r.Height, other.Y+other.Height)

	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
