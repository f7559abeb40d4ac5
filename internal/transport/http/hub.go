package http

import (
	"sync"

	"github.com/rs/zerolog"
)

const clientBuffer = 64

// client is one websocket connection as seen by the hub. send is never
// closed; the writer goroutine stops on done instead, so late broadcasts
// cannot panic.
type client struct {
	id   string
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(id string) *client {
	return &client{
		id:   id,
		send: make(chan []byte, clientBuffer),
		done: make(chan struct{}),
	}
}

// enqueue never blocks: a slow consumer loses its oldest pending message.
func (c *client) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- msg:
	default:
	}
	return false
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub fans room events out to the connections subscribed to each room.
type Hub struct {
	log zerolog.Logger

	mu    sync.RWMutex
	rooms map[string]map[string]*client
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:   log,
		rooms: make(map[string]map[string]*client),
	}
}

func (h *Hub) subscribe(roomID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*client)
		h.rooms[roomID] = members
	}
	members[c.id] = c
}

func (h *Hub) unsubscribe(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

func (h *Hub) broadcast(roomID string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[roomID] {
		if !c.enqueue(msg) {
			h.log.Warn().Str("room", roomID).Str("conn", c.id).Msg("client lagging, dropped oldest message")
		}
	}
}

// Subscribers reports how many connections receive a room's events.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
