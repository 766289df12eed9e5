package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/captionist/captionist/internal/editor"
)

// StatusFunc looks up the current status of an editor.
type StatusFunc func(editorID string) (editor.EditorStatus, error)

type Room struct {
	editorID string
	clients  map[string]*Client // clientID -> client
	seq      int64
}

func NewRoom(editorID string) *Room {
	return &Room{
		editorID: editorID,
		clients:  make(map[string]*Client),
	}
}

// Hub fans session events out to the websocket clients watching each
// editor.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room // editorID -> room
	register   chan *Client
	unregister chan *Client
	status     StatusFunc

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewHub(status StatusFunc) *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		status:     status,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run processes registrations until ctx is cancelled or Stop is called.
// On return every client connection is closed.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ctx.Done():
			return
		case <-h.stop:
			return
		}
	}
}

// Stop ends Run and waits for it to return.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}

// Register adds a client. It reports false if the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.EditorID]
	if !ok {
		room = NewRoom(client.EditorID)
		h.rooms[client.EditorID] = room
	}
	room.clients[client.ClientID] = client
	h.mu.Unlock()

	welcome := WelcomePayload{ClientID: client.ClientID}
	if st, err := h.lookup(client.EditorID); err == nil {
		welcome.Status = &st
	}
	payload, _ := json.Marshal(welcome)
	client.Send(&Message{Type: TypeWelcome, EditorID: client.EditorID, ClientID: client.ClientID, Payload: payload})

	slog.Info("client joined", "client", client.ClientID, "editor", client.EditorID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[client.EditorID]
	if !ok {
		return
	}
	if _, ok := room.clients[client.ClientID]; !ok {
		return
	}
	delete(room.clients, client.ClientID)
	client.close()

	if len(room.clients) == 0 {
		delete(h.rooms, client.EditorID)
	}
	slog.Info("client left", "client", client.ClientID, "editor", client.EditorID)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, room := range h.rooms {
		for _, c := range room.clients {
			c.close()
		}
		delete(h.rooms, id)
	}
}

// Clients returns the number of clients watching an editor.
func (h *Hub) Clients(editorID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if room, ok := h.rooms[editorID]; ok {
		return len(room.clients)
	}
	return 0
}

// Publish sends msg to every client watching editorID. It never blocks;
// slow clients drop messages.
func (h *Hub) Publish(editorID string, msg *Message) {
	h.mu.Lock()
	room, ok := h.rooms[editorID]
	if !ok {
		h.mu.Unlock()
		return
	}
	room.seq++
	out := *msg
	out.EditorID = editorID
	out.Seq = room.seq

	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Send(&out)
	}
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	switch msg.Type {
	case TypeStatusRequest:
		h.handleStatusRequest(sender)
	default:
		sender.log.Warn("unknown message type", "type", msg.Type)
		sender.Send(errorMessage(sender.EditorID, "unknown message type "+msg.Type))
	}
}

func (h *Hub) handleStatusRequest(sender *Client) {
	st, err := h.lookup(sender.EditorID)
	if err != nil {
		sender.Send(errorMessage(sender.EditorID, editor.Message(err)))
		return
	}
	payload, _ := json.Marshal(st)
	sender.Send(&Message{Type: TypeStatus, EditorID: sender.EditorID, Payload: payload})
}

func (h *Hub) lookup(editorID string) (editor.EditorStatus, error) {
	if h.status == nil {
		return editor.EditorStatus{}, editor.ErrEditorNotFound
	}
	return h.status(editorID)
}
