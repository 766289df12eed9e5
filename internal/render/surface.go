package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"

	"github.com/captionist/captionist/internal/engine"
)

var (
	ErrSurfaceAttached = errors.New("a drawing surface is already attached")
	ErrReleased        = errors.New("drawing surface released")
	ErrInvalidSize     = errors.New("invalid surface size")
)

// HostStats counts surface lifecycle events on a host.
type HostStats struct {
	Live     int
	Acquired int
	Released int
}

// Host is the region a drawing surface attaches to. At most one surface is
// live per host; a new one can only be acquired after the previous one is
// released.
type Host struct {
	mu    sync.Mutex
	fonts *Fonts
	live  *Surface
	stats HostStats
}

func NewHost(fonts *Fonts) *Host {
	if fonts == nil {
		fonts = NewFonts()
	}
	return &Host{fonts: fonts}
}

func (h *Host) Fonts() *Fonts {
	return h.fonts
}

// Acquire attaches a new width x height surface.
func (h *Host) Acquire(width, height int) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.live != nil {
		return nil, ErrSurfaceAttached
	}
	s := &Surface{
		host:  h,
		fonts: h.fonts,
		img:   image.NewRGBA(image.Rect(0, 0, width, height)),
	}
	h.live = s
	h.stats.Acquired++
	h.stats.Live = 1
	return s, nil
}

// Live reports how many surfaces are attached: 0 or 1.
func (h *Host) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats.Live
}

func (h *Host) Stats() HostStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func (h *Host) detach(s *Surface) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.live == s {
		h.live = nil
		h.stats.Live = 0
		h.stats.Released++
	}
}

// Surface is a raster drawing surface attached to a Host.
type Surface struct {
	host  *Host
	fonts *Fonts

	mu       sync.Mutex
	img      *image.RGBA
	released bool
	bg       scaledBackground
}

type scaledBackground struct {
	src    image.Image
	width  int
	height int
	img    image.Image
}

func (s *Surface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Resize replaces the backing raster. The content is cleared; callers paint
// again afterwards.
func (s *Surface) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrReleased
	}
	if b := s.img.Bounds(); b.Dx() == width && b.Dy() == height {
		return nil
	}
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
	return nil
}

// Paint redraws the whole surface from list. bg is the decoded background
// photo and may be nil.
func (s *Surface) Paint(list *engine.DisplayList, bg image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrReleased
	}
	p := painter{dst: s.img, fonts: s.fonts, bg: &s.bg}
	p.paint(list, bg)
	return nil
}

// At returns the colour of the pixel at (x, y).
func (s *Surface) At(x, y int) color.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img.RGBAAt(x, y)
}

// Image returns a copy of the current raster.
func (s *Surface) Image() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, ErrReleased
	}
	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out, nil
}

// Encode writes the current raster in the given format. quality applies to
// lossy formats and ranges over (0, 1].
func (s *Surface) Encode(w io.Writer, format Format, quality float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrReleased
	}
	return encode(w, s.img, format, quality)
}

// Release detaches the surface from its host and drops the raster. It is
// safe to call more than once.
func (s *Surface) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.bg = scaledBackground{}
	s.mu.Unlock()

	s.host.detach(s)
}

func (s *Surface) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
