package events

import (
	"encoding/json"

	"github.com/captionist/captionist/internal/editor"
)

type Message struct {
	Type      string          `json:"type"`
	EditorID  string          `json:"editorId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type WelcomePayload struct {
	ClientID string               `json:"clientId"`
	Status   *editor.EditorStatus `json:"status,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

const (
	// Server -> client
	TypeSessionState     = "session.state"
	TypeSessionSelection = "session.selection"
	TypeSessionObjects   = "session.objects"
	TypeSessionResize    = "session.resize"
	TypeSessionDisposed  = "session.disposed"
	TypeStatus           = "editor.status"
	TypeWelcome          = "welcome"
	TypeError            = "error"

	// Client -> server
	TypeStatusRequest = "status.request"
)

var eventTypes = map[editor.EventType]string{
	editor.EventState:     TypeSessionState,
	editor.EventSelection: TypeSessionSelection,
	editor.EventObjects:   TypeSessionObjects,
	editor.EventResize:    TypeSessionResize,
	editor.EventDisposed:  TypeSessionDisposed,
}

// FromEvent wraps a session event for the wire.
func FromEvent(editorID string, ev editor.Event) (*Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	typ, ok := eventTypes[ev.Type]
	if !ok {
		typ = "session." + string(ev.Type)
	}
	return &Message{
		Type:      typ,
		EditorID:  editorID,
		SessionID: ev.SessionID,
		Payload:   payload,
	}, nil
}

func errorMessage(editorID, msg string) *Message {
	payload, _ := json.Marshal(ErrorPayload{Message: msg})
	return &Message{Type: TypeError, EditorID: editorID, Payload: payload}
}
