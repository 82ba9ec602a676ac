package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Client is one websocket connection joined to a single room.
type Client struct {
	ID     string
	UserID uuid.UUID
	Room   string
	Send   chan []byte
}

// Hub is a stateless room relay: it forwards messages to the other members
// of a room and holds nothing once the connections are gone. No persistence,
// no delivery guarantee.
type Hub struct {
	rooms      map[string]map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// SendToRoom forwards data to every member of a room except the sender.
// Slow consumers are skipped rather than blocked on.
func (h *Hub) SendToRoom(room string, senderID uuid.UUID, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		logrus.WithError(err).Error("failed to marshal room message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.rooms[room] {
		if client.UserID == senderID {
			continue
		}
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.Room] == nil {
				h.rooms[client.Room] = make(map[string]*Client)
			}
			h.rooms[client.Room][client.ID] = client
			h.mu.Unlock()
			logrus.WithFields(logrus.Fields{
				"room": client.Room,
				"user": client.UserID,
			}).Debug("relay client joined")

		case client := <-h.unregister:
			h.mu.Lock()
			if members, ok := h.rooms[client.Room]; ok {
				if old, ok := members[client.ID]; ok {
					delete(members, client.ID)
					close(old.Send)
				}
				if len(members) == 0 {
					delete(h.rooms, client.Room)
				}
			}
			h.mu.Unlock()
		}
	}
}
