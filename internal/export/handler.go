package export

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/captionist/captionist/internal/editor"
	"github.com/captionist/captionist/internal/render"
)

// BaseName is the download name of an exported image, without extension.
const BaseName = "edited-image"

// SessionSource resolves the live session of an editor.
type SessionSource interface {
	Session(editorID string) (*editor.Session, error)
}

type Handler struct {
	sessions SessionSource
}

func NewHandler(sessions SessionSource) *Handler {
	return &Handler{sessions: sessions}
}

// Download serves GET /api/editors/{editorId}/export?format=png&quality=1
// as an attachment.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	editorID := mux.Vars(r)["editorId"]

	format, err := render.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		editor.HandleError(w, err)
		return
	}

	quality := 1.0
	if q := r.URL.Query().Get("quality"); q != "" {
		quality, err = strconv.ParseFloat(q, 64)
		if err != nil || quality <= 0 || quality > 1 {
			http.Error(w, "invalid quality: must be in (0, 1]", http.StatusBadRequest)
			return
		}
	}

	sess, err := h.sessions.Session(editorID)
	if err != nil {
		editor.HandleError(w, err)
		return
	}

	data, err := sess.Export(format, quality)
	if err != nil {
		editor.HandleError(w, err)
		return
	}

	filename := Filename(format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Debug("write export", "editor", editorID, "error", err)
		return
	}

	slog.Info("image exported", "editor", editorID, "format", format, "bytes", len(data))
}

// Filename is the download name for format.
func Filename(format render.Format) string {
	return BaseName + format.Extension()
}
