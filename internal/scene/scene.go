package scene

import "math"

// BackgroundImage describes the installed background. The pixels live with
// the rendering surface; the scene only keeps the geometry.
type BackgroundImage struct {
	Source string  `json:"source"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"scale"`
}

// ScaledSize is the drawn size of the background at its current scale.
func (b *BackgroundImage) ScaledSize() (w, h float64) {
	return float64(b.Width) * b.Scale, float64(b.Height) * b.Scale
}

// Scene is the mutable state of one editing session. Objects are kept in
// paint order, back to front.
type Scene struct {
	Width      int              `json:"width"`
	Height     int              `json:"height"`
	Background string           `json:"background"`
	Image      *BackgroundImage `json:"image,omitempty"`
	Objects    []Object         `json:"objects"`
}

func New(width, height int) *Scene {
	return &Scene{
		Width:      width,
		Height:     height,
		Background: DefaultBackground,
		Objects:    []Object{},
	}
}

// FitScale is the uniform factor that fits an image into the scene.
func FitScale(sceneW, sceneH, imageW, imageH int) float64 {
	if imageW <= 0 || imageH <= 0 {
		return 1
	}
	return math.Min(float64(sceneW)/float64(imageW), float64(sceneH)/float64(imageH))
}

// SetImage installs background geometry, fitted to the current size.
func (s *Scene) SetImage(source string, width, height int) {
	s.Image = &BackgroundImage{
		Source: source,
		Width:  width,
		Height: height,
		Scale:  FitScale(s.Width, s.Height, width, height),
	}
}

// Resize changes the scene size and refits the background. Objects keep
// their absolute coordinates.
func (s *Scene) Resize(width, height int) {
	s.Width, s.Height = width, height
	if s.Image != nil {
		s.Image.Scale = FitScale(width, height, s.Image.Width, s.Image.Height)
	}
}

func (s *Scene) Append(obj Object) {
	s.Objects = append(s.Objects, obj)
}

// Index returns the paint position of id, or -1.
func (s *Scene) Index(id string) int {
	for i := range s.Objects {
		if s.Objects[i].ID == id {
			return i
		}
	}
	return -1
}

// Object returns a pointer into the object sequence, or nil.
func (s *Scene) Object(id string) *Object {
	if i := s.Index(id); i >= 0 {
		return &s.Objects[i]
	}
	return nil
}

// Remove deletes the objects whose IDs are listed, keeping the order of the
// rest, and returns how many were removed.
func (s *Scene) Remove(ids []string) int {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := s.Objects[:0]
	removed := 0
	for _, obj := range s.Objects {
		if drop[obj.ID] {
			removed++
			continue
		}
		kept = append(kept, obj)
	}
	// clear the tail so removed objects are not retained by the backing array
	for i := len(kept); i < len(s.Objects); i++ {
		s.Objects[i] = Object{}
	}
	s.Objects = kept
	return removed
}

// Clone returns a deep copy safe to hand outside the owning session.
func (s *Scene) Clone() *Scene {
	out := *s
	if s.Image != nil {
		img := *s.Image
		out.Image = &img
	}
	out.Objects = make([]Object, len(s.Objects))
	for i, o := range s.Objects {
		out.Objects[i] = o.Clone()
	}
	return &out
}
