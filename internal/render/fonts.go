package render

import (
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/go-fonts/latin-modern/lmmono10regular"
	"github.com/go-fonts/latin-modern/lmroman10regular"
	"github.com/go-fonts/latin-modern/lmsans10regular"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/captionist/captionist/internal/engine"
	"github.com/captionist/captionist/internal/scene"
)

// LineHeightFactor is the caption line height relative to the font size.
const LineHeightFactor = 1.16

const fallbackFamily = "Go"

var fontData = map[string][]byte{
	"Latin Modern Roman": lmroman10regular.TTF,
	"Latin Modern Sans":  lmsans10regular.TTF,
	"Latin Modern Mono":  lmmono10regular.TTF,
	"Go":                 goregular.TTF,
	"Go Mono":            gomono.TTF,
}

// Families lists the caption font families that can be selected.
func Families() []string {
	return []string{"Latin Modern Roman", "Latin Modern Sans", "Latin Modern Mono", "Go", "Go Mono"}
}

// Fonts parses font families on first use. Parsed fonts are shared; faces
// are created per call because an opentype face is not safe for concurrent use.
type Fonts struct {
	mu     sync.Mutex
	parsed map[string]*opentype.Font
}

func NewFonts() *Fonts {
	return &Fonts{parsed: make(map[string]*opentype.Font)}
}

func (f *Fonts) font(family string) *opentype.Font {
	if _, ok := fontData[family]; !ok {
		family = fallbackFamily
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parseLocked(family)
}

func (f *Fonts) parseLocked(family string) *opentype.Font {
	if fnt, ok := f.parsed[family]; ok {
		return fnt
	}
	fnt, err := opentype.Parse(fontData[family])
	if err != nil {
		slog.Warn("parse font, using fallback", "family", family, "error", err)
		fnt = nil
		if family != fallbackFamily {
			fnt = f.parseLocked(fallbackFamily)
		}
	}
	f.parsed[family] = fnt
	return fnt
}

// Has reports whether family is one of the bundled families.
func (f *Fonts) Has(family string) bool {
	_, ok := fontData[family]
	return ok
}

// Face returns a new face of the family at size pixels. Unknown or
// unparseable families fall back to Go Regular, then to a fixed bitmap face.
func (f *Fonts) Face(family string, size float64) font.Face {
	fnt := f.font(family)
	if fnt == nil || size <= 0 {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}

// LayoutText wraps the caption greedily at word boundaries to fit boxWidth.
// Explicit newlines always break; a word wider than the box gets its own
// line and widens the layout.
func (f *Fonts) LayoutText(t *scene.TextData, boxWidth float64) engine.TextLayout {
	if t == nil {
		return engine.TextLayout{}
	}
	face := f.Face(t.FontFamily, t.FontSize)
	defer face.Close()

	measure := func(s string) float64 {
		return float64(font.MeasureString(face, s)) / 64
	}

	var lines []string
	width := boxWidth
	for _, para := range strings.Split(t.Content, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			candidate := line + " " + w
			if measure(candidate) > boxWidth {
				lines = append(lines, line)
				width = math.Max(width, measure(line))
				line = w
				continue
			}
			line = candidate
		}
		lines = append(lines, line)
		width = math.Max(width, measure(line))
	}

	lineHeight := t.FontSize * LineHeightFactor
	return engine.TextLayout{
		Lines:      lines,
		FontFamily: t.FontFamily,
		FontSize:   t.FontSize,
		LineHeight: lineHeight,
		Ascent:     float64(face.Metrics().Ascent) / 64,
		Width:      width,
		Height:     lineHeight * float64(len(lines)),
	}
}
