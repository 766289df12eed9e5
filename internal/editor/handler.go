package editor

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/captionist/captionist/internal/engine"
	"github.com/captionist/captionist/internal/render"
	"github.com/captionist/captionist/internal/scene"
)

type Handler struct {
	registry *Registry
	// onCreate is called for every editor created through the API.
	onCreate func(*Editor)
}

func NewHandler(registry *Registry, onCreate func(*Editor)) *Handler {
	return &Handler{registry: registry, onCreate: onCreate}
}

type textRequest struct {
	Content string `json:"content"`
}

type shapeRequest struct {
	Kind string `json:"kind"`
}

type objectPatch struct {
	Transform *scene.Transform `json:"transform"`
	Content   *string          `json:"content"`
}

type selectionRequest struct {
	IDs      []string `json:"ids"`
	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
	Additive bool     `json:"additive"`
}

type resizeRequest struct {
	ContainerWidth int `json:"containerWidth"`
}

type renderResponse struct {
	Width           int                  `json:"width"`
	Height          int                  `json:"height"`
	Commands        []engine.DrawCommand `json:"commands"`
	SelectionBounds engine.Rect          `json:"selectionBounds"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ed := h.registry.Create()
	if h.onCreate != nil {
		h.onCreate(ed)
	}
	writeJSON(w, http.StatusCreated, ed.Status())
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ed, err := h.registry.Get(mux.Vars(r)["editorId"])
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ed.Status())
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Delete(mux.Vars(r)["editorId"]); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// OpenSession replaces the editor's session with one for the image
// parameter. With wait=true the response is held until the background has
// loaded or failed.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	ed, err := h.registry.Get(mux.Vars(r)["editorId"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	q := r.URL.Query()
	containerWidth, _ := strconv.Atoi(q.Get("containerWidth"))
	sess, err := ed.Open(q.Get("image"), containerWidth)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	status := http.StatusAccepted
	if q.Get("wait") == "true" {
		if err := sess.Wait(r.Context()); err != nil {
			handleServiceError(w, err)
			return
		}
		status = http.StatusOK
	}
	writeJSON(w, status, ed.Status())
}

func (h *Handler) AddText(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	id, err := sess.AddText(req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) AddShape(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req shapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	id, err := sess.AddShapeNamed(req.Kind)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) UpdateObject(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	objectID := mux.Vars(r)["objectId"]

	var req objectPatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Transform == nil && req.Content == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "transform or content is required"})
		return
	}

	if req.Transform != nil {
		if err := sess.SetTransform(objectID, *req.Transform); err != nil {
			handleServiceError(w, err)
			return
		}
	}
	if req.Content != nil {
		if err := sess.SetText(objectID, *req.Content); err != nil {
			handleServiceError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.X != nil && req.Y != nil {
		if _, err := sess.SelectAt(*req.X, *req.Y, req.Additive); err != nil {
			handleServiceError(w, err)
			return
		}
	} else if _, err := sess.SetSelection(req.IDs); err != nil {
		handleServiceError(w, err)
		return
	}

	sel, err := sess.Selection()
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"selection": sel})
}

func (h *Handler) RemoveSelected(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	n, err := sess.RemoveSelected()
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (h *Handler) Resize(w http.ResponseWriter, r *http.Request) {
	ed, err := h.registry.Get(mux.Vars(r)["editorId"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req resizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	width, height, err := ed.ContainerResized(req.ContainerWidth)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"width": width, "height": height})
}

func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	cmds, err := sess.DrawCommands()
	if err != nil {
		handleServiceError(w, err)
		return
	}
	bounds, err := sess.SelectionBounds()
	if err != nil {
		handleServiceError(w, err)
		return
	}
	st := sess.Status()
	writeJSON(w, http.StatusOK, renderResponse{
		Width:           st.Width,
		Height:          st.Height,
		Commands:        cmds,
		SelectionBounds: bounds,
	})
}

// Session resolves the editor's live session for a request, writing the
// error response when there is none.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, err := h.Session(mux.Vars(r)["editorId"])
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	return sess, true
}

// Session returns the live session of an editor.
func (h *Handler) Session(editorID string) (*Session, error) {
	ed, err := h.registry.Get(editorID)
	if err != nil {
		return nil, err
	}
	sess, ok := ed.Current()
	if !ok {
		return nil, ErrSessionNotReady
	}
	return sess, nil
}

// HandleError writes the response for an editor error.
func HandleError(w http.ResponseWriter, err error) {
	handleServiceError(w, err)
}

func handleServiceError(w http.ResponseWriter, err error) {
	msg := map[string]string{"error": Message(err)}
	switch {
	case errors.Is(err, ErrEditorNotFound), errors.Is(err, ErrUnknownObject):
		writeJSON(w, http.StatusNotFound, msg)
	case errors.Is(err, ErrNoSelection):
		writeJSON(w, http.StatusConflict, map[string]string{"warning": Message(err)})
	case errors.Is(err, ErrSessionNotReady),
		errors.Is(err, ErrAlreadyLoaded),
		errors.Is(err, render.ErrSurfaceAttached):
		writeJSON(w, http.StatusConflict, msg)
	case errors.Is(err, ErrEmptyCaption),
		errors.Is(err, ErrUnknownShapeKind),
		errors.Is(err, ErrInvalidTransform),
		errors.Is(err, ErrNotEditable),
		errors.Is(err, render.ErrInvalidSize),
		errors.Is(err, render.ErrUnsupportedFormat):
		writeJSON(w, http.StatusBadRequest, msg)
	default:
		slog.Error("editor error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
