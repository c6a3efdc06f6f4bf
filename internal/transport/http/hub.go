package http

import (
	"sync"

	"github.com/rs/zerolog"
)

type role int

const (
	roleNone role = iota
	rolePresenter
	rolePlayer
)

// outboundMessage is the wire envelope for server-to-client events.
type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type client struct {
	id   string
	role role
	send chan outboundMessage
}

// Hub tracks connected clients and their audience role, and implements
// app.Broadcaster. Sends are best-effort: a client whose buffer is full has
// the message dropped rather than blocking the session.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		log:     log.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

// remove drops the client and closes its send channel, ending the writer
// goroutine. It reports whether the connection had joined as a player.
func (h *Hub) remove(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[id]
	if !ok {
		return false
	}
	delete(h.clients, id)
	close(c.send)
	return c.role == rolePlayer
}

func (h *Hub) setRole(id string, r role) {
	h.mu.Lock()
	if c, ok := h.clients[id]; ok {
		c.role = r
	}
	h.mu.Unlock()
}

// Broadcast sends the event to every connected client.
func (h *Hub) Broadcast(event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		h.offer(c, outboundMessage{Type: event, Payload: payload})
	}
}

// ToPresenters sends the event to the presenter audience.
func (h *Hub) ToPresenters(event string, payload any) {
	h.toRole(rolePresenter, event, payload)
}

// ToPlayers sends the event to the player audience.
func (h *Hub) ToPlayers(event string, payload any) {
	h.toRole(rolePlayer, event, payload)
}

// ToPlayersEach builds a fresh payload per player connection, so projections
// that randomize (sort item order) differ per recipient.
func (h *Hub) ToPlayersEach(event string, payload func() any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.role != rolePlayer {
			continue
		}
		h.offer(c, outboundMessage{Type: event, Payload: payload()})
	}
}

// ToConn sends the event to a single connection.
func (h *Hub) ToConn(connID, event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.clients[connID]; ok {
		h.offer(c, outboundMessage{Type: event, Payload: payload})
	}
}

func (h *Hub) toRole(r role, event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.role == r {
			h.offer(c, outboundMessage{Type: event, Payload: payload})
		}
	}
}

func (h *Hub) offer(c *client, msg outboundMessage) {
	select {
	case c.send <- msg:
	default:
		h.log.Warn().Str("conn_id", c.id).Str("event", msg.Type).Msg("send buffer full, dropping event")
	}
}
