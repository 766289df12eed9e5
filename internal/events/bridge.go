package events

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/captionist/captionist/internal/editor"
)

// Source is an editor whose session events can be watched.
type Source interface {
	ID() string
	Subscribe(fn func(editor.Event)) (cancel func())
}

// Attach forwards every session event of src to the hub room of the same
// editor. The returned function detaches it.
func Attach(h *Hub, src Source) (detach func()) {
	editorID := src.ID()
	return src.Subscribe(func(ev editor.Event) {
		msg, err := FromEvent(editorID, ev)
		if err != nil {
			slog.Error("encode session event", "editor", editorID, "error", err)
			return
		}
		h.Publish(editorID, msg)
	})
}

type Handler struct {
	hub            *Hub
	originPatterns []string
}

func NewHandler(hub *Hub, originPatterns []string) *Handler {
	return &Handler{hub: hub, originPatterns: originPatterns}
}

// ServeWS upgrades GET /ws/editors/{editorId} and streams that editor's
// session events.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	editorID := mux.Vars(r)["editorId"]
	if _, err := h.hub.lookup(editorID); err != nil {
		http.Error(w, "editor not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	client := NewClient(h.hub, conn, editorID, uuid.New().String())
	if !h.hub.Register(client) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	client.Serve(r.Context())
}
