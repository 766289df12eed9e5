//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"sync"
	"syscall/js"

	"github.com/captionist/captionist/internal/editor"
	"github.com/captionist/captionist/internal/render"
	"github.com/captionist/captionist/internal/scene"
	"github.com/captionist/captionist/internal/search"
	"github.com/captionist/captionist/internal/unsplash"
)

var (
	mu       sync.Mutex
	host     = render.NewHost(render.NewFonts())
	maxWidth = editor.DefaultMaxWidth
	ed       = editor.NewEditor(host, nil, maxWidth)
	view     *search.View
	onEvent  js.Value
	detach   func()
)

func main() {
	captionEditor := js.Global().Get("Object").New()

	// --- Commands (frontend → editor) ---
	captionEditor.Set("configure", js.FuncOf(configure))
	captionEditor.Set("open", js.FuncOf(open))
	captionEditor.Set("addText", js.FuncOf(addText))
	captionEditor.Set("addShape", js.FuncOf(addShape))
	captionEditor.Set("removeSelected", js.FuncOf(removeSelected))
	captionEditor.Set("selectAt", js.FuncOf(selectAt))
	captionEditor.Set("setSelection", js.FuncOf(setSelection))
	captionEditor.Set("resize", js.FuncOf(resize))
	captionEditor.Set("onEvent", js.FuncOf(setEventListener))
	captionEditor.Set("dispose", js.FuncOf(dispose))

	// --- Queries (frontend ← editor) ---
	captionEditor.Set("render", js.FuncOf(renderCommands))
	captionEditor.Set("exportPNG", js.FuncOf(exportPNG))
	captionEditor.Set("status", js.FuncOf(status))
	captionEditor.Set("search", js.FuncOf(searchPhotos))

	js.Global().Set("captionEditor", captionEditor)
	js.Global().Set("captionEditorReady", js.ValueOf(true))

	select {}
}

func errorResult(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": editor.Message(err)})
}

func okResult(extra map[string]interface{}) interface{} {
	out := map[string]interface{}{"ok": true}
	for k, v := range extra {
		out[k] = v
	}
	return js.ValueOf(out)
}

func toJSON(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(string(data))
}

func currentSession() (*editor.Session, error) {
	mu.Lock()
	e := ed
	mu.Unlock()
	sess, ok := e.Current()
	if !ok {
		return nil, editor.ErrSessionNotReady
	}
	return sess, nil
}

// configure({accessKey, apiURL, maxWidth}) sets up search and the canvas
// limit. It replaces the editor, so call it before open.
func configure(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeObject {
		return js.ValueOf(map[string]interface{}{"error": "missing options"})
	}
	opts := args[0]

	mu.Lock()
	defer mu.Unlock()

	if w := opts.Get("maxWidth"); w.Type() == js.TypeNumber && w.Int() > 0 {
		maxWidth = w.Int()
		ed.Close()
		ed = editor.NewEditor(host, nil, maxWidth)
		attachListenerLocked()
	}

	if key := opts.Get("accessKey"); key.Type() == js.TypeString {
		apiURL := ""
		if u := opts.Get("apiURL"); u.Type() == js.TypeString {
			apiURL = u.String()
		}
		client, err := unsplash.New(apiURL, key.String())
		if err != nil {
			return errorResult(err)
		}
		view = search.NewView(client, unsplash.DefaultPerPage)
	}
	return okResult(nil)
}

// open(imageParam, containerWidth) disposes any live session and starts a
// new one. The image loads in the background.
func open(this js.Value, args []js.Value) interface{} {
	raw := ""
	if len(args) > 0 && args[0].Type() == js.TypeString {
		raw = args[0].String()
	}
	containerWidth := 0
	if len(args) > 1 && args[1].Type() == js.TypeNumber {
		containerWidth = args[1].Int()
	}

	mu.Lock()
	e := ed
	mu.Unlock()

	sess, err := e.Open(raw, containerWidth)
	if err != nil {
		return errorResult(err)
	}
	return okResult(map[string]interface{}{"sessionId": sess.ID()})
}

func addText(this js.Value, args []js.Value) interface{} {
	content := ""
	if len(args) > 0 && args[0].Type() == js.TypeString {
		content = args[0].String()
	}
	sess, err := currentSession()
	if err != nil {
		return errorResult(err)
	}
	id, err := sess.AddText(content)
	if err != nil {
		return errorResult(err)
	}
	return okResult(map[string]interface{}{"id": id})
}

func addShape(this js.Value, args []js.Value) interface{} {
	kind := scene.ShapeRectangle.String()
	if len(args) > 0 && args[0].Type() == js.TypeString {
		kind = args[0].String()
	}
	sess, err := currentSession()
	if err != nil {
		return errorResult(err)
	}
	id, err := sess.AddShapeNamed(kind)
	if err != nil {
		return errorResult(err)
	}
	return okResult(map[string]interface{}{"id": id})
}

func removeSelected(this js.Value, args []js.Value) interface{} {
	sess, err := currentSession()
	if err != nil {
		return errorResult(err)
	}
	n, err := sess.RemoveSelected()
	if err != nil {
		return errorResult(err)
	}
	return okResult(map[string]interface{}{"removed": n})
}

func selectAt(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("")
	}
	additive := len(args) > 2 && args[2].Truthy()
	sess, err := currentSession()
	if err != nil {
		return errorResult(err)
	}
	id, err := sess.SelectAt(args[0].Float(), args[1].Float(), additive)
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(id)
}

func setSelection(this js.Value, args []js.Value) interface{} {
	var ids []string
	if len(args) > 0 && args[0].Type() == js.TypeObject {
		arr := args[0]
		length := arr.Length()
		ids = make([]string, length)
		for i := 0; i < length; i++ {
			ids[i] = arr.Index(i).String()
		}
	}
	sess, err := currentSession()
	if err != nil {
		return errorResult(err)
	}
	sel, err := sess.SetSelection(ids)
	if err != nil {
		return errorResult(err)
	}
	return toJSON(sel)
}

func resize(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeNumber {
		return nil
	}
	mu.Lock()
	e := ed
	mu.Unlock()
	w, h, err := e.ContainerResized(args[0].Int())
	if err != nil {
		return errorResult(err)
	}
	return okResult(map[string]interface{}{"width": w, "height": h})
}

// onEvent(fn) delivers every session event to fn as a JSON string. Passing
// nothing removes the listener.
func setEventListener(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	if len(args) > 0 && args[0].Type() == js.TypeFunction {
		onEvent = args[0]
	} else {
		onEvent = js.Undefined()
	}
	attachListenerLocked()
	return nil
}

func attachListenerLocked() {
	if detach != nil {
		detach()
		detach = nil
	}
	if onEvent.Type() != js.TypeFunction {
		return
	}
	fn := onEvent
	detach = ed.Subscribe(func(ev editor.Event) {
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		fn.Invoke(string(data))
	})
}

// dispose tears the editor down, as when the user navigates away.
func dispose(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	ed.Close()
	ed = editor.NewEditor(host, nil, maxWidth)
	attachListenerLocked()
	return nil
}

// --- Query Handlers ---

func renderCommands(this js.Value, args []js.Value) interface{} {
	sess, err := currentSession()
	if err != nil {
		return errorResult(err)
	}
	cmds, err := sess.DrawCommands()
	if err != nil {
		return errorResult(err)
	}
	bounds, err := sess.SelectionBounds()
	if err != nil {
		return errorResult(err)
	}
	st := sess.Status()
	return toJSON(map[string]interface{}{
		"width":           st.Width,
		"height":          st.Height,
		"commands":        cmds,
		"selectionBounds": bounds,
	})
}

// exportPNG returns the composed image as a Uint8Array.
func exportPNG(this js.Value, args []js.Value) interface{} {
	sess, err := currentSession()
	if err != nil {
		return errorResult(err)
	}
	data, err := sess.ExportPNG()
	if err != nil {
		return errorResult(err)
	}
	buf := js.Global().Get("Uint8Array").New(len(data))
	js.CopyBytesToJS(buf, data)
	return buf
}

func status(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	e := ed
	mu.Unlock()
	return toJSON(e.Status())
}

// search(query) returns a Promise resolving to the view snapshot as JSON.
// Only the latest query updates the view; older ones resolve stale.
func searchPhotos(this js.Value, args []js.Value) interface{} {
	query := ""
	if len(args) > 0 && args[0].Type() == js.TypeString {
		query = args[0].String()
	}

	mu.Lock()
	v := view
	mu.Unlock()

	executor := js.FuncOf(func(this js.Value, p []js.Value) interface{} {
		resolve, reject := p[0], p[1]
		if v == nil {
			reject.Invoke(js.Global().Get("Error").New(unsplash.ErrMissingCredential.Error()))
			return nil
		}
		// fetch needs the event loop, so the request runs off the callback.
		go func() {
			snap := v.Submit(context.Background(), query)
			data, err := json.Marshal(snap)
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(err.Error()))
				return
			}
			resolve.Invoke(string(data))
		}()
		return nil
	})
	defer executor.Release()

	return js.Global().Get("Promise").New(executor)
}
