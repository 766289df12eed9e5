package render

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captionist/captionist/internal/engine"
	"github.com/captionist/captionist/internal/scene"
)

func solid(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func assertColor(t *testing.T, want, got color.RGBA) {
	t.Helper()
	assert.InDelta(t, want.R, got.R, 2, "red channel")
	assert.InDelta(t, want.G, got.G, 2, "green channel")
	assert.InDelta(t, want.B, got.B, 2, "blue channel")
	assert.InDelta(t, want.A, got.A, 2, "alpha channel")
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
	}{
		{"#fff", color.RGBA{255, 255, 255, 255}},
		{"#000", color.RGBA{0, 0, 0, 255}},
		{"#ff0000", color.RGBA{255, 0, 0, 255}},
		{"#00ff0080", color.RGBA{0, 128, 0, 128}},
		{"blue", color.RGBA{0, 0, 255, 255}},
		{" Orange ", color.RGBA{255, 165, 0, 255}},
		{"transparent", color.RGBA{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "#12", "#zzzzzz", "notacolour"} {
		_, err := ParseColor(bad)
		assert.ErrorIs(t, err, ErrInvalidColor, bad)
	}
}

func TestHostAllowsOneLiveSurface(t *testing.T) {
	host := NewHost(nil)

	first, err := host.Acquire(100, 70)
	require.NoError(t, err)
	assert.Equal(t, 1, host.Live())

	_, err = host.Acquire(100, 70)
	assert.ErrorIs(t, err, ErrSurfaceAttached)
	assert.Equal(t, 1, host.Live())

	first.Release()
	first.Release()
	assert.Equal(t, 0, host.Live())

	second, err := host.Acquire(50, 35)
	require.NoError(t, err)
	defer second.Release()
	w, h := second.Size()
	assert.Equal(t, 50, w)
	assert.Equal(t, 35, h)
	require.NoError(t, second.Resize(80, 56))
	w, h = second.Size()
	assert.Equal(t, 80, w)
	assert.Equal(t, 56, h)

	// releasing a stale surface must not detach the live one
	first.Release()
	assert.Equal(t, HostStats{Live: 1, Acquired: 2, Released: 1}, host.Stats())

	_, err = host.Acquire(0, 10)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestReleasedSurfaceRejectsWork(t *testing.T) {
	host := NewHost(nil)
	s, err := host.Acquire(10, 10)
	require.NoError(t, err)
	s.Release()

	assert.True(t, s.Released())
	assert.ErrorIs(t, s.Paint(nil, nil), ErrReleased)
	assert.ErrorIs(t, s.Resize(20, 20), ErrReleased)
	assert.ErrorIs(t, s.Encode(&bytes.Buffer{}, FormatPNG, 1), ErrReleased)
	_, err = s.Image()
	assert.ErrorIs(t, err, ErrReleased)
}

func TestPaintBackgroundAndShapes(t *testing.T) {
	host := NewHost(nil)
	s, err := host.Acquire(100, 70)
	require.NoError(t, err)
	defer s.Release()

	sc := scene.New(100, 70)
	sc.SetImage("bg", 200, 100)
	rect, _ := scene.NewShape("r", scene.ShapeRectangle)
	rect.Transform.X, rect.Transform.Y = 60, 40
	rect.Width, rect.Height = 20, 20
	rect.Fill = "red"
	sc.Append(rect)

	list := engine.BuildDisplayList(sc, host.Fonts())
	blue := color.RGBA{B: 255, A: 255}
	require.NoError(t, s.Paint(list, solid(200, 100, blue)))

	// background fitted to 100x50 at the origin; the rest is the fill colour
	assertColor(t, blue, s.At(10, 10))
	assertColor(t, blue, s.At(40, 45))
	assertColor(t, color.RGBA{255, 255, 255, 255}, s.At(10, 60))
	assertColor(t, color.RGBA{R: 255, A: 255}, s.At(70, 50))
}

func TestPaintRotatedShape(t *testing.T) {
	host := NewHost(nil)
	s, err := host.Acquire(200, 200)
	require.NoError(t, err)
	defer s.Release()

	sc := scene.New(200, 200)
	rect, _ := scene.NewShape("r", scene.ShapeRectangle)
	rect.Transform = scene.Transform{X: 100, Y: 100, Angle: 90, ScaleX: 1, ScaleY: 1}
	rect.Fill = "#000"
	sc.Append(rect)
	require.NoError(t, s.Paint(engine.BuildDisplayList(sc, nil), nil))

	// 80x50 turned clockwise covers x in [50,100], y in [100,180]
	assertColor(t, color.RGBA{A: 255}, s.At(75, 170))
	assertColor(t, color.RGBA{255, 255, 255, 255}, s.At(150, 110))
}

func TestPaintTextMarksPixels(t *testing.T) {
	host := NewHost(nil)
	s, err := host.Acquire(300, 100)
	require.NoError(t, err)
	defer s.Release()

	sc := scene.New(300, 100)
	txt := scene.NewText("t", "Hello")
	txt.Transform.X, txt.Transform.Y = 10, 10
	sc.Append(txt)
	require.NoError(t, s.Paint(engine.BuildDisplayList(sc, host.Fonts()), nil))

	img, err := s.Image()
	require.NoError(t, err)
	dark := 0
	for y := 10; y < 40; y++ {
		for x := 10; x < 80; x++ {
			if img.RGBAAt(x, y).R < 128 {
				dark++
			}
		}
	}
	assert.Positive(t, dark)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(250, 90))
}

func TestEncodeFormats(t *testing.T) {
	host := NewHost(nil)
	s, err := host.Acquire(64, 45)
	require.NoError(t, err)
	defer s.Release()
	require.NoError(t, s.Paint(engine.NewDisplayList(64, 45, "#fff"), nil))

	var buf bytes.Buffer
	require.NoError(t, s.Encode(&buf, FormatPNG, 1))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 45), img.Bounds())

	buf.Reset()
	require.NoError(t, s.Encode(&buf, FormatJPEG, 0.8))
	cfg, err := jpeg.DecodeConfig(&buf)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)

	assert.ErrorIs(t, s.Encode(&buf, Format("gif"), 1), ErrUnsupportedFormat)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, f)

	f, err = ParseFormat("JPG")
	require.NoError(t, err)
	assert.Equal(t, FormatJPEG, f)
	assert.Equal(t, ".jpg", f.Extension())
	assert.Equal(t, "image/jpeg", f.ContentType())

	_, err = ParseFormat("tiff")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.Equal(t, 100, jpegQuality(1))
	assert.Equal(t, 50, jpegQuality(0.5))
	assert.Equal(t, 1, jpegQuality(0.001))
	assert.Equal(t, 100, jpegQuality(0))
}

func TestFamiliesAreRegistered(t *testing.T) {
	fonts := NewFonts()
	families := Families()
	require.Len(t, families, len(fontData))
	for _, family := range families {
		assert.True(t, fonts.Has(family), family)
	}
	assert.False(t, fonts.Has("Comic Sans"))
}

func TestLayoutTextWraps(t *testing.T) {
	fonts := NewFonts()
	data := &scene.TextData{
		Content:    "the quick brown fox jumps over the lazy dog\nsecond",
		FontFamily: scene.DefaultFontFamily,
		FontSize:   20,
	}
	layout := fonts.LayoutText(data, 100)

	require.Greater(t, len(layout.Lines), 2)
	assert.Equal(t, "second", layout.Lines[len(layout.Lines)-1])
	assert.InDelta(t, 20*LineHeightFactor*float64(len(layout.Lines)), layout.Height, 1e-9)
	assert.Positive(t, layout.Ascent)
	assert.GreaterOrEqual(t, layout.Width, 100.0)

	one := fonts.LayoutText(&scene.TextData{Content: "Your Caption", FontFamily: "Unknown", FontSize: 20}, 200)
	assert.Equal(t, []string{"Your Caption"}, one.Lines)
	assert.True(t, fonts.Has("Go Mono"))
	assert.False(t, fonts.Has("Unknown"))
}
