package render

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/transform"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/captionist/captionist/internal/engine"
)

var (
	defaultBackground = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	defaultFill       = color.RGBA{A: 0xff}
)

type painter struct {
	dst   *image.RGBA
	fonts *Fonts
	bg    *scaledBackground
}

func (p *painter) paint(list *engine.DisplayList, bg image.Image) {
	bgColor := defaultBackground
	if list != nil {
		bgColor = colorOr(list.Background, defaultBackground)
	}
	draw.Draw(p.dst, p.dst.Bounds(), image.NewUniform(bgColor), image.Point{}, draw.Src)
	if list == nil {
		return
	}

	for _, node := range list.Nodes {
		switch node.Kind {
		case engine.NodeBackground:
			p.paintBackground(node, bg)
		case engine.NodePath:
			p.paintPath(node)
		case engine.NodeText:
			p.paintText(node)
		}
	}
}

// paintBackground draws the photo scaled by the node's fit factor with its
// top-left corner at the canvas origin.
func (p *painter) paintBackground(node *engine.Node, src image.Image) {
	if src == nil {
		return
	}
	w := max(1, int(math.Round(node.Bounds.Width)))
	h := max(1, int(math.Round(node.Bounds.Height)))

	cache := p.bg
	if cache.src != src || cache.width != w || cache.height != h {
		*cache = scaledBackground{
			src:    src,
			width:  w,
			height: h,
			img:    transform.Resize(src, w, h, transform.Linear),
		}
	}
	draw.Draw(p.dst, image.Rect(0, 0, w, h), cache.img, cache.img.Bounds().Min, draw.Over)
}

func (p *painter) paintPath(node *engine.Node) {
	if len(node.Path) == 0 {
		return
	}
	b := p.dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over

	pt := func(x, y float64) (float32, float32) {
		wx, wy := node.World.TransformPoint(x, y)
		return float32(wx), float32(wy)
	}

	started := false
	for _, cmd := range node.Path {
		ops := cmd.Operands()
		switch cmd.Op() {
		case "M":
			if len(ops) < 2 {
				continue
			}
			if started {
				z.ClosePath()
			}
			z.MoveTo(pt(ops[0], ops[1]))
			started = true
		case "L":
			if len(ops) < 2 || !started {
				continue
			}
			z.LineTo(pt(ops[0], ops[1]))
		case "C":
			if len(ops) < 6 || !started {
				continue
			}
			ax, ay := pt(ops[0], ops[1])
			bx, by := pt(ops[2], ops[3])
			cx, cy := pt(ops[4], ops[5])
			z.CubeTo(ax, ay, bx, by, cx, cy)
		case "Z":
			if started {
				z.ClosePath()
			}
		}
	}
	if !started {
		return
	}
	z.Draw(p.dst, b, image.NewUniform(colorOr(node.Fill, defaultFill)), image.Point{})
}

// paintText lays the caption out in its local box, then maps the box onto
// the canvas through the node's transform.
func (p *painter) paintText(node *engine.Node) {
	layout := node.Text
	if layout == nil || len(layout.Lines) == 0 {
		return
	}
	w := int(math.Ceil(node.Local.Width))
	h := int(math.Ceil(node.Local.Height))
	if w <= 0 || h <= 0 {
		return
	}

	face := p.fonts.Face(layout.FontFamily, layout.FontSize)
	defer face.Close()

	local := image.NewRGBA(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  local,
		Src:  image.NewUniform(colorOr(node.Fill, defaultFill)),
		Face: face,
	}
	leading := (layout.LineHeight - layout.FontSize) / 2
	for i, line := range layout.Lines {
		baseline := float64(i)*layout.LineHeight + leading + layout.Ascent
		d.Dot = fixed.Point26_6{X: 0, Y: fixed.Int26_6(baseline * 64)}
		d.DrawString(line)
	}

	m := node.World
	s2d := f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
	draw.BiLinear.Transform(p.dst, s2d, local, local.Bounds(), draw.Over, nil)
}
