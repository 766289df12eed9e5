package engine

import (
	"github.com/captionist/captionist/internal/scene"
)

// Engine owns a scene and its retained display list. It answers render and
// hit-test queries and keeps the selection. It is not safe for concurrent
// use; the editing session serializes access.
type Engine struct {
	scene    *scene.Scene
	measurer TextMeasurer

	// Retained display list
	list *DisplayList

	selection []string

	// Dirty flag - display list needs rebuild
	dirty bool
}

// NewEngine creates an engine with an empty scene of the given size.
func NewEngine(width, height int, measurer TextMeasurer) *Engine {
	return &Engine{
		scene:    scene.New(width, height),
		measurer: measurer,
		dirty:    true,
	}
}

// --- Commands ---

// Scene returns the live scene. Callers that mutate it must call Invalidate.
func (e *Engine) Scene() *scene.Scene {
	return e.scene
}

// Invalidate marks the display list stale after a scene mutation.
func (e *Engine) Invalidate() {
	e.dirty = true
}

// Resize changes the scene size and refits the background.
func (e *Engine) Resize(width, height int) {
	e.scene.Resize(width, height)
	e.dirty = true
}

// SetSelection replaces the selection. Unknown and non-selectable IDs are
// dropped, as are duplicates.
func (e *Engine) SetSelection(ids []string) {
	seen := make(map[string]bool, len(ids))
	sel := make([]string, 0, len(ids))
	for _, id := range ids {
		obj := e.scene.Object(id)
		if obj == nil || !obj.Selectable || seen[id] {
			continue
		}
		seen[id] = true
		sel = append(sel, id)
	}
	e.selection = sel
}

// ToggleSelection adds id to the selection, or removes it if present.
func (e *Engine) ToggleSelection(id string) {
	for i, s := range e.selection {
		if s == id {
			e.selection = append(e.selection[:i:i], e.selection[i+1:]...)
			return
		}
	}
	e.SetSelection(append(e.Selection(), id))
}

func (e *Engine) ClearSelection() {
	e.selection = nil
}

// RemoveSelected deletes every selected object and clears the selection.
// It returns the number of objects removed.
func (e *Engine) RemoveSelected() int {
	n := e.scene.Remove(e.selection)
	e.selection = nil
	if n > 0 {
		e.dirty = true
	}
	return n
}

// --- Queries ---

// DisplayList returns the retained display list, rebuilding it if needed.
func (e *Engine) DisplayList() *DisplayList {
	if e.dirty || e.list == nil {
		e.list = BuildDisplayList(e.scene, e.measurer)
		e.dirty = false
	}
	return e.list
}

// DrawCommands compiles the current scene into draw commands.
func (e *Engine) DrawCommands() []DrawCommand {
	return CompileDrawCommands(e.DisplayList(), e.selection)
}

// HitTest returns the object ID of the topmost hit, or empty string.
func (e *Engine) HitTest(x, y float64) string {
	return HitTest(e.DisplayList(), x, y)
}

// SelectionBounds returns the bounding box of the current selection.
func (e *Engine) SelectionBounds() Rect {
	if len(e.selection) == 0 {
		return Rect{}
	}
	return SelectionBounds(e.DisplayList(), e.selection)
}

// Selection returns a copy of the selected IDs in selection order.
func (e *Engine) Selection() []string {
	return append([]string(nil), e.selection...)
}
