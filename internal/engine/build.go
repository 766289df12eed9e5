package engine

import (
	"math"
	"strings"

	"github.com/captionist/captionist/internal/scene"
)

// ellipseKappa is the control-point distance of a four-segment Bézier circle.
const ellipseKappa = 0.5522847498

// BuildDisplayList resolves a scene into painter-ordered nodes. measurer may
// be nil, in which case captions are laid out with a rough estimate.
func BuildDisplayList(sc *scene.Scene, measurer TextMeasurer) *DisplayList {
	list := NewDisplayList(sc.Width, sc.Height, sc.Background)

	if img := sc.Image; img != nil && img.Width > 0 && img.Height > 0 {
		w, h := float64(img.Width), float64(img.Height)
		world := Scale(img.Scale, img.Scale)
		local := Rect{Width: w, Height: h}
		list.Nodes = append(list.Nodes, &Node{
			Kind:        NodeBackground,
			World:       world,
			ImageWidth:  w,
			ImageHeight: h,
			Local:       local,
			Bounds:      world.TransformRect(local),
		})
	}

	for i := range sc.Objects {
		node := buildNode(&sc.Objects[i], measurer)
		list.Nodes = append(list.Nodes, node)
		list.NodesByID[node.ID] = node
	}
	return list
}

func buildNode(obj *scene.Object, measurer TextMeasurer) *Node {
	world := FromTransform(obj.Transform)
	node := &Node{
		ID:         obj.ID,
		Kind:       NodePath,
		Type:       obj.Type,
		Selectable: obj.Selectable,
		World:      world,
		Fill:       obj.Fill,
	}

	switch obj.Type {
	case scene.ObjectTypeText:
		node.Kind = NodeText
		var layout TextLayout
		if measurer != nil && obj.Text != nil {
			layout = measurer.LayoutText(obj.Text, obj.Width)
		} else {
			layout = EstimateTextLayout(obj.Text, obj.Width)
		}
		node.Text = &layout
		node.Local = Rect{Width: math.Max(obj.Width, layout.Width), Height: layout.Height}

	case scene.ObjectTypeRectangle:
		node.Path = rectPath(obj.Width, obj.Height)
		node.Local = Rect{Width: obj.Width, Height: obj.Height}

	case scene.ObjectTypeTriangle:
		node.Path = trianglePath(obj.Width, obj.Height)
		node.Local = Rect{Width: obj.Width, Height: obj.Height}

	case scene.ObjectTypeCircle:
		node.Path = circlePath(obj.Radius)
		node.Local = Rect{Width: 2 * obj.Radius, Height: 2 * obj.Radius}

	case scene.ObjectTypePolygon:
		node.Path = polygonPath(obj.Points)
		node.Local = computePathBounds(node.Path, Identity())
	}

	node.Bounds = world.TransformRect(node.Local)
	return node
}

// EstimateTextLayout breaks on explicit newlines only and assumes common
// font metrics. It is used when no font-backed measurer is available.
func EstimateTextLayout(t *scene.TextData, boxWidth float64) TextLayout {
	if t == nil {
		return TextLayout{}
	}
	lines := strings.Split(t.Content, "\n")
	lineHeight := t.FontSize * 1.16
	return TextLayout{
		Lines:      lines,
		FontFamily: t.FontFamily,
		FontSize:   t.FontSize,
		LineHeight: lineHeight,
		Ascent:     t.FontSize * 0.8,
		Width:      boxWidth,
		Height:     lineHeight * float64(len(lines)),
	}
}

func rectPath(w, h float64) []PathCommand {
	return []PathCommand{
		{"M", 0.0, 0.0},
		{"L", w, 0.0},
		{"L", w, h},
		{"L", 0.0, h},
		{"Z"},
	}
}

// trianglePath is an isosceles triangle with its apex centred on the top edge.
func trianglePath(w, h float64) []PathCommand {
	return []PathCommand{
		{"M", w / 2, 0.0},
		{"L", w, h},
		{"L", 0.0, h},
		{"Z"},
	}
}

// circlePath is centred on (r, r) so the circle's box starts at the origin.
func circlePath(r float64) []PathCommand {
	k := r * ellipseKappa
	cx, cy := r, r
	return []PathCommand{
		{"M", cx + r, cy},
		{"C", cx + r, cy + k, cx + k, cy + r, cx, cy + r},
		{"C", cx - k, cy + r, cx - r, cy + k, cx - r, cy},
		{"C", cx - r, cy - k, cx - k, cy - r, cx, cy - r},
		{"C", cx + k, cy - r, cx + r, cy - k, cx + r, cy},
		{"Z"},
	}
}

func polygonPath(pts []scene.Point) []PathCommand {
	if len(pts) == 0 {
		return nil
	}
	path := make([]PathCommand, 0, len(pts)+1)
	for i, p := range pts {
		op := "L"
		if i == 0 {
			op = "M"
		}
		path = append(path, PathCommand{op, p.X, p.Y})
	}
	return append(path, PathCommand{"Z"})
}

// computePathBounds returns the box of all path points (control points
// included) mapped through m.
func computePathBounds(path []PathCommand, m Matrix2D) Rect {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)

	for _, cmd := range path {
		for i := 1; i+1 < len(cmd); i += 2 {
			x, y := m.TransformPoint(toFloat64(cmd[i]), toFloat64(cmd[i+1]))
			minX = math.Min(minX, x)
			maxX = math.Max(maxX, x)
			minY = math.Min(minY, y)
			maxY = math.Max(maxY, y)
		}
	}

	if math.IsInf(minX, 1) {
		return Rect{}
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// toFloat64 converts a path operand to float64.
func toFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// Operands returns the numeric operands of a path command.
func (c PathCommand) Operands() []float64 {
	if len(c) <= 1 {
		return nil
	}
	out := make([]float64, len(c)-1)
	for i := range out {
		out[i] = toFloat64(c[i+1])
	}
	return out
}

// Op returns the command letter, or "" for a malformed command.
func (c PathCommand) Op() string {
	if len(c) == 0 {
		return ""
	}
	op, _ := c[0].(string)
	return op
}
