package editor

import (
	"log/slog"
	"sync"

	"github.com/captionist/captionist/internal/render"
	"github.com/captionist/captionist/internal/typeid"
)

// Editor is the editor view: one canvas host and at most one editing
// session over it. Opening a new image disposes the previous session
// before the next one acquires the surface.
type Editor struct {
	id       string
	host     *render.Host
	loader   ImageLoader
	maxWidth int

	mu             sync.Mutex
	session        *Session
	containerWidth int
	closed         bool

	lmu          sync.Mutex
	listeners    map[int]func(Event)
	nextListener int
}

// EditorStatus is the editor view state used to drive its controls.
type EditorStatus struct {
	EditorID       string  `json:"editorId"`
	ContainerWidth int     `json:"containerWidth"`
	Session        *Status `json:"session,omitempty"`
	CanRemove      bool    `json:"canRemove"`
}

func NewEditor(host *render.Host, loader ImageLoader, maxWidth int) *Editor {
	if host == nil {
		host = render.NewHost(nil)
	}
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	return &Editor{
		id:        typeid.NewEditorID(),
		host:      host,
		loader:    loader,
		maxWidth:  maxWidth,
		listeners: make(map[int]func(Event)),
	}
}

func (e *Editor) ID() string { return e.id }

func (e *Editor) Host() *render.Host { return e.host }

// Open starts a session for the raw image parameter, sized for
// containerWidth. A missing or malformed parameter yields a degraded
// session rather than an error.
func (e *Editor) Open(rawImage string, containerWidth int) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEditorNotFound
	}
	e.disposeLocked()

	if containerWidth > 0 {
		e.containerWidth = containerWidth
	}
	w, h := Layout(e.containerWidth, e.maxWidth)

	sess, err := NewSession(e.host, e.loader, w, h)
	if err != nil {
		return nil, err
	}
	e.session = sess
	sess.Subscribe(e.broadcast)

	imageURL, err := DecodeImageParam(rawImage)
	if err != nil {
		err = sess.Degrade(err)
	} else {
		err = sess.Load(imageURL)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("session opened", "editor", e.id, "session", sess.ID(), "width", w, "height", h)
	return sess, nil
}

// Current returns the live session, if any.
func (e *Editor) Current() (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session, e.session != nil
}

// ContainerResized applies the responsive layout for a new container width.
func (e *Editor) ContainerResized(containerWidth int) (width, height int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if containerWidth > 0 {
		e.containerWidth = containerWidth
	}
	width, height = Layout(e.containerWidth, e.maxWidth)
	if e.session == nil {
		return width, height, nil
	}
	return width, height, e.session.Resize(width, height)
}

// Close disposes the live session. The editor cannot be reopened.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.disposeLocked()

	e.lmu.Lock()
	e.listeners = make(map[int]func(Event))
	e.lmu.Unlock()
}

func (e *Editor) disposeLocked() {
	if e.session == nil {
		return
	}
	e.session.Dispose()
	e.session = nil
}

func (e *Editor) Status() EditorStatus {
	e.mu.Lock()
	sess := e.session
	cw := e.containerWidth
	e.mu.Unlock()

	st := EditorStatus{EditorID: e.id, ContainerWidth: cw}
	if sess != nil {
		s := sess.Status()
		st.Session = &s
		st.CanRemove = s.CanRemove
	}
	return st
}

// Subscribe registers fn for events of every session this editor opens,
// including sessions opened later. The returned function removes it.
func (e *Editor) Subscribe(fn func(Event)) (cancel func()) {
	e.lmu.Lock()
	defer e.lmu.Unlock()
	key := e.nextListener
	e.nextListener++
	e.listeners[key] = fn
	return func() {
		e.lmu.Lock()
		defer e.lmu.Unlock()
		delete(e.listeners, key)
	}
}

func (e *Editor) broadcast(ev Event) {
	e.lmu.Lock()
	fns := make([]func(Event), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.lmu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
