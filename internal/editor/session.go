package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"

	"github.com/captionist/captionist/internal/engine"
	"github.com/captionist/captionist/internal/render"
	"github.com/captionist/captionist/internal/scene"
	"github.com/captionist/captionist/internal/typeid"
)

type State string

const (
	StateEmpty    State = "empty"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateDisposed State = "disposed"
)

type EventType string

const (
	EventState     EventType = "state"
	EventSelection EventType = "selection"
	EventObjects   EventType = "objects"
	EventResize    EventType = "resize"
	EventDisposed  EventType = "disposed"
)

// Event is delivered to session listeners on the session's own goroutine.
// Listeners must not block and must not call back into the session.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"sessionId"`
	State     State          `json:"state"`
	Degraded  bool           `json:"degraded,omitempty"`
	Warning   string         `json:"warning,omitempty"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Selection []string       `json:"selection"`
	Objects   []scene.Object `json:"objects,omitempty"`
}

// Status is a point-in-time view of a session.
type Status struct {
	ID          string                 `json:"id"`
	State       State                  `json:"state"`
	Degraded    bool                   `json:"degraded"`
	Warning     string                 `json:"warning,omitempty"`
	Width       int                    `json:"width"`
	Height      int                    `json:"height"`
	Image       *scene.BackgroundImage `json:"image,omitempty"`
	ObjectCount int                    `json:"objectCount"`
	Selection   []string               `json:"selection"`
	CanRemove   bool                   `json:"canRemove"`
}

// Session is one editing session over a single drawing surface. Every
// operation runs on the session's loop goroutine, so mutations never
// interleave. The background image loads asynchronously and its result is
// applied by the loop.
type Session struct {
	id     string
	loader ImageLoader

	ops   chan func()
	done  chan struct{} // closed when the loop exits
	ready chan struct{} // closed on entering StateReady

	ctx     context.Context
	cancel  context.CancelFunc
	dispose sync.Once

	// Owned by the loop goroutine.
	state        State
	degraded     bool
	warning      string
	loadErr      error
	eng          *engine.Engine
	surface      *render.Surface
	background   image.Image
	listeners    map[int]func(Event)
	nextListener int
}

// NewSession acquires a width x height surface from host and starts the
// session loop in StateEmpty. It fails if host already has a live surface.
func NewSession(host *render.Host, loader ImageLoader, width, height int) (*Session, error) {
	if loader == nil {
		loader = NewHTTPLoader(nil, 0)
	}
	surface, err := host.Acquire(width, height)
	if err != nil {
		return nil, fmt.Errorf("acquire surface: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        typeid.NewSessionID(),
		loader:    loader,
		ops:       make(chan func()),
		done:      make(chan struct{}),
		ready:     make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		state:     StateEmpty,
		eng:       engine.NewEngine(width, height, host.Fonts()),
		surface:   surface,
		listeners: make(map[int]func(Event)),
	}
	s.repaint()
	go s.run()
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) run() {
	defer close(s.done)
	for fn := range s.ops {
		fn()
		if s.state == StateDisposed {
			return
		}
	}
}

// do runs fn on the loop and returns its error. Once the loop has exited
// it returns ErrSessionNotReady.
func (s *Session) do(fn func() error) error {
	errc := make(chan error, 1)
	select {
	case s.ops <- func() { errc <- fn() }:
		return <-errc
	case <-s.done:
		return ErrSessionNotReady
	}
}

// whenReady is do restricted to StateReady, degraded or not.
func (s *Session) whenReady(fn func() error) error {
	return s.do(func() error {
		if s.state != StateReady {
			return ErrSessionNotReady
		}
		return fn()
	})
}

// post queues fn without waiting. It is dropped if the session has ended.
func (s *Session) post(fn func()) {
	select {
	case s.ops <- fn:
	case <-s.done:
	}
}

// Load starts fetching the background image and moves the session to
// StateLoading. The result is applied when the fetch finishes; an empty or
// malformed URL leaves the session ready but degraded.
func (s *Session) Load(imageURL string) error {
	return s.do(func() error {
		if s.state != StateEmpty {
			return ErrAlreadyLoaded
		}
		s.setState(StateLoading)

		u, err := validateImageURL(imageURL)
		if err != nil {
			s.finishLoad(imageURL, nil, err)
			return nil
		}

		go func() {
			img, err := s.loader.Load(s.ctx, u)
			s.post(func() { s.finishLoad(u, img, err) })
		}()
		return nil
	})
}

// Degrade moves an empty session straight to a degraded ready state,
// reporting cause as the warning.
func (s *Session) Degrade(cause error) error {
	return s.do(func() error {
		if s.state != StateEmpty {
			return ErrAlreadyLoaded
		}
		s.setState(StateLoading)
		s.finishLoad("", nil, cause)
		return nil
	})
}

func (s *Session) finishLoad(source string, img image.Image, err error) {
	if s.state != StateLoading {
		return
	}
	if err == nil && img == nil {
		err = &DecodeError{URL: source, Err: errors.New("empty image")}
	}

	if err != nil {
		slog.Warn("background image unavailable", "session", s.id, "url", source, "error", err)
		s.degraded = true
		s.loadErr = err
		s.warning = Message(err)
	} else {
		b := img.Bounds()
		s.background = img
		s.eng.Scene().SetImage(source, b.Dx(), b.Dy())
		s.eng.Invalidate()
		slog.Info("background image loaded", "session", s.id, "width", b.Dx(), "height", b.Dy())
	}

	s.setState(StateReady)
	close(s.ready)
	s.repaint()
}

// Wait blocks until the session is ready. It returns ErrSessionNotReady if
// the session is disposed first.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-s.done:
		return ErrSessionNotReady
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadError returns the error that degraded the session, if any.
func (s *Session) LoadError() error {
	var err error
	s.do(func() error {
		err = s.loadErr
		return nil
	})
	return err
}

// AddText appends a caption at the default position and style and makes it
// the selection.
func (s *Session) AddText(content string) (string, error) {
	var id string
	err := s.whenReady(func() error {
		text, ok := scene.NormalizeCaption(content)
		if !ok {
			return ErrEmptyCaption
		}
		id = typeid.NewObjectID()
		s.appendSelected(scene.NewText(id, text))
		return nil
	})
	return id, err
}

// AddShape appends the default object for kind and makes it the selection.
func (s *Session) AddShape(kind scene.ShapeKind) (string, error) {
	var id string
	err := s.whenReady(func() error {
		obj, ok := scene.NewShape(typeid.NewObjectID(), kind)
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownShapeKind, uint8(kind))
		}
		id = obj.ID
		s.appendSelected(obj)
		return nil
	})
	return id, err
}

// AddShapeNamed is AddShape for a kind given by name.
func (s *Session) AddShapeNamed(name string) (string, error) {
	kind, err := scene.ParseShapeKind(name)
	if err != nil {
		return "", err
	}
	return s.AddShape(kind)
}

func (s *Session) appendSelected(obj scene.Object) {
	s.eng.Scene().Append(obj)
	s.eng.Invalidate()
	s.eng.SetSelection([]string{obj.ID})
	s.repaint()
	s.emit(EventObjects)
	s.emit(EventSelection)
}

// RemoveSelected deletes every selected object and clears the selection.
func (s *Session) RemoveSelected() (int, error) {
	var n int
	err := s.whenReady(func() error {
		if len(s.eng.Selection()) == 0 {
			return ErrNoSelection
		}
		n = s.eng.RemoveSelected()
		s.repaint()
		s.emit(EventObjects)
		s.emit(EventSelection)
		return nil
	})
	return n, err
}

// SetSelection replaces the selection. Unknown and non-selectable IDs are
// ignored.
func (s *Session) SetSelection(ids []string) ([]string, error) {
	var sel []string
	err := s.whenReady(func() error {
		s.eng.SetSelection(ids)
		sel = s.eng.Selection()
		s.emit(EventSelection)
		return nil
	})
	return sel, err
}

// SelectAt selects the topmost object under (x, y). With additive set the
// hit object is toggled in the existing selection; otherwise it replaces
// the selection, and a miss clears it.
func (s *Session) SelectAt(x, y float64, additive bool) (string, error) {
	var hit string
	err := s.whenReady(func() error {
		hit = s.eng.HitTest(x, y)
		switch {
		case hit != "" && additive:
			s.eng.ToggleSelection(hit)
		case hit != "":
			s.eng.SetSelection([]string{hit})
		case !additive:
			s.eng.ClearSelection()
		}
		s.emit(EventSelection)
		return nil
	})
	return hit, err
}

func (s *Session) ClearSelection() error {
	return s.whenReady(func() error {
		s.eng.ClearSelection()
		s.emit(EventSelection)
		return nil
	})
}

// SetTransform moves, rotates or scales an object in place.
func (s *Session) SetTransform(id string, t scene.Transform) error {
	if t.ScaleX == 0 || t.ScaleY == 0 || anyNaN(t.X, t.Y, t.Angle, t.ScaleX, t.ScaleY) {
		return ErrInvalidTransform
	}
	return s.whenReady(func() error {
		obj := s.eng.Scene().Object(id)
		if obj == nil {
			return fmt.Errorf("%w: %s", ErrUnknownObject, id)
		}
		obj.Transform = t
		s.eng.Invalidate()
		s.repaint()
		s.emit(EventObjects)
		return nil
	})
}

// SetText replaces the content of an editable caption.
func (s *Session) SetText(id, content string) error {
	return s.whenReady(func() error {
		obj := s.eng.Scene().Object(id)
		if obj == nil {
			return fmt.Errorf("%w: %s", ErrUnknownObject, id)
		}
		if obj.Type != scene.ObjectTypeText || obj.Text == nil || !obj.Text.Editable {
			return ErrNotEditable
		}
		text, ok := scene.NormalizeCaption(content)
		if !ok {
			return ErrEmptyCaption
		}
		obj.Text.Content = text
		s.eng.Invalidate()
		s.repaint()
		s.emit(EventObjects)
		return nil
	})
}

// Resize changes the canvas size, refits the background and repaints.
// Objects keep their absolute coordinates. It is allowed while loading so
// the background is fitted to the latest size when it arrives.
func (s *Session) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", render.ErrInvalidSize, width, height)
	}
	return s.do(func() error {
		if err := s.surface.Resize(width, height); err != nil {
			return err
		}
		s.eng.Resize(width, height)
		s.repaint()
		s.emit(EventResize)
		return nil
	})
}

// Export rasterizes the scene at its current size.
func (s *Session) Export(format render.Format, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	err := s.whenReady(func() error {
		s.repaint()
		return s.surface.Encode(&buf, format, quality)
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportPNG is Export in PNG at full quality.
func (s *Session) ExportPNG() ([]byte, error) {
	return s.Export(render.FormatPNG, 1)
}

// Objects returns a copy of the objects in paint order.
func (s *Session) Objects() ([]scene.Object, error) {
	var out []scene.Object
	err := s.do(func() error {
		out = s.objects()
		return nil
	})
	return out, err
}

func (s *Session) objects() []scene.Object {
	objs := s.eng.Scene().Objects
	out := make([]scene.Object, len(objs))
	for i, o := range objs {
		out[i] = o.Clone()
	}
	return out
}

func (s *Session) Selection() ([]string, error) {
	var sel []string
	err := s.do(func() error {
		sel = s.eng.Selection()
		return nil
	})
	return sel, err
}

// DrawCommands returns the scene as draw commands for a browser canvas.
func (s *Session) DrawCommands() ([]engine.DrawCommand, error) {
	var cmds []engine.DrawCommand
	err := s.do(func() error {
		cmds = s.eng.DrawCommands()
		return nil
	})
	return cmds, err
}

// SelectionBounds returns the combined box of the selected objects.
func (s *Session) SelectionBounds() (engine.Rect, error) {
	var r engine.Rect
	err := s.do(func() error {
		r = s.eng.SelectionBounds()
		return nil
	})
	return r, err
}

// Status reports the session state. A disposed session reports only its
// ID and state.
func (s *Session) Status() Status {
	var st Status
	err := s.do(func() error {
		st = s.status()
		return nil
	})
	if err != nil {
		return Status{ID: s.id, State: StateDisposed}
	}
	return st
}

func (s *Session) status() Status {
	sc := s.eng.Scene()
	sel := s.eng.Selection()
	w, h := s.surface.Size()
	st := Status{
		ID:          s.id,
		State:       s.state,
		Degraded:    s.degraded,
		Warning:     s.warning,
		Width:       w,
		Height:      h,
		ObjectCount: len(sc.Objects),
		Selection:   sel,
		CanRemove:   s.state == StateReady && len(sel) > 0,
	}
	if sc.Image != nil {
		img := *sc.Image
		st.Image = &img
	}
	return st
}

// Subscribe registers fn for session events and returns a function that
// removes it. All listeners are dropped on dispose.
func (s *Session) Subscribe(fn func(Event)) (cancel func()) {
	var key int
	err := s.do(func() error {
		key = s.nextListener
		s.nextListener++
		s.listeners[key] = fn
		return nil
	})
	if err != nil {
		return func() {}
	}
	return func() {
		s.do(func() error {
			delete(s.listeners, key)
			return nil
		})
	}
}

// Dispose releases the surface and every listener and stops the loop. A
// pending background load is cancelled and its result discarded. It is
// safe to call more than once and returns once the surface is released.
func (s *Session) Dispose() {
	s.dispose.Do(func() {
		s.cancel()
		s.post(func() {
			s.setState(StateDisposed)
			s.surface.Release()
			s.background = nil
			s.listeners = nil
			slog.Info("session disposed", "session", s.id)
		})
	})
	<-s.done
}

// Done is closed once the session has been disposed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) setState(state State) {
	s.state = state
	s.emit(EventState)
	if state == StateDisposed {
		s.emit(EventDisposed)
	}
}

func (s *Session) emit(t EventType) {
	if len(s.listeners) == 0 {
		return
	}
	sc := s.eng.Scene()
	ev := Event{
		Type:      t,
		SessionID: s.id,
		State:     s.state,
		Degraded:  s.degraded,
		Warning:   s.warning,
		Width:     sc.Width,
		Height:    sc.Height,
		Selection: s.eng.Selection(),
	}
	if t == EventObjects {
		ev.Objects = s.objects()
	}
	for _, fn := range s.listeners {
		fn(ev)
	}
}

func (s *Session) repaint() {
	if s.state == StateDisposed {
		return
	}
	if err := s.surface.Paint(s.eng.DisplayList(), s.background); err != nil {
		slog.Error("repaint", "session", s.id, "error", err)
	}
}

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
