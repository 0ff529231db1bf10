package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

var ErrHubClosed = errors.New("hub closed")

// Hub tracks live feed connections per room so that moderation can evict a user and
// shutdown can close everyone.
type Hub struct {
	rooms  map[string]map[*Client]struct{} // areaID -> clients
	closed bool
	mu     sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Add(cl *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}
	room, ok := h.rooms[cl.AreaID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[cl.AreaID] = room
	}
	room[cl] = struct{}{}
	return nil
}

func (h *Hub) Remove(cl *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[cl.AreaID]; ok {
		delete(room, cl)
		if len(room) == 0 {
			delete(h.rooms, cl.AreaID)
		}
	}
}

// Count returns the number of live connections in a room.
func (h *Hub) Count(areaID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[areaID])
}

// Evict sends frame to every connection actorID holds in the room and closes them.
func (h *Hub) Evict(areaID, actorID string, frame Frame) int {
	h.mu.RLock()
	var targets []*Client
	for cl := range h.rooms[areaID] {
		if cl.ActorID == actorID {
			targets = append(targets, cl)
		}
	}
	h.mu.RUnlock()

	text := ""
	if frame.Error != nil {
		text = frame.Error.Message
	}
	for _, cl := range targets {
		_ = cl.conn.WriteJSON(frame)
		cl.Close(websocket.ClosePolicyViolation, text)
	}
	return len(targets)
}

// CloseAll closes every connection and refuses new ones.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	h.closed = true
	var all []*Client
	for _, room := range h.rooms {
		for cl := range room {
			all = append(all, cl)
		}
	}
	h.rooms = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for _, cl := range all {
		cl.Close(websocket.CloseGoingAway, "server shutting down")
	}
}
