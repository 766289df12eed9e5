package editor

import (
	"sync"

	"github.com/captionist/captionist/internal/render"
)

// Registry tracks the open editor views by ID. Each editor gets its own
// canvas host.
type Registry struct {
	mu       sync.RWMutex
	editors  map[string]*Editor
	fonts    *render.Fonts
	loader   ImageLoader
	maxWidth int
}

func NewRegistry(loader ImageLoader, maxWidth int) *Registry {
	return &Registry{
		editors:  make(map[string]*Editor),
		fonts:    render.NewFonts(),
		loader:   loader,
		maxWidth: maxWidth,
	}
}

func (r *Registry) MaxWidth() int {
	if r.maxWidth <= 0 {
		return DefaultMaxWidth
	}
	return r.maxWidth
}

func (r *Registry) Create() *Editor {
	ed := NewEditor(render.NewHost(r.fonts), r.loader, r.maxWidth)

	r.mu.Lock()
	r.editors[ed.ID()] = ed
	r.mu.Unlock()
	return ed
}

func (r *Registry) Get(id string) (*Editor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ed, ok := r.editors[id]
	if !ok {
		return nil, ErrEditorNotFound
	}
	return ed, nil
}

// Delete closes the editor and forgets it.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	ed, ok := r.editors[id]
	delete(r.editors, id)
	r.mu.Unlock()

	if !ok {
		return ErrEditorNotFound
	}
	ed.Close()
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.editors)
}

// CloseAll closes every editor, disposing their sessions.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	editors := r.editors
	r.editors = make(map[string]*Editor)
	r.mu.Unlock()

	for _, ed := range editors {
		ed.Close()
	}
}
