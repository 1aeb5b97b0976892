package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"dailyforge/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const (
	EventTaskCompleted = "task_completed"
	EventMemberJoined  = "member_joined"
)

// Event is pushed to every client watching a room.
type Event struct {
	Event  string `json:"event"`
	RoomID string `json:"roomId"`
	UserID int    `json:"userId"`
	TaskID int    `json:"taskId,omitempty"`
	Points int    `json:"points,omitempty"`
}

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client merepresentasikan klien WebSocket yang memantau satu room.
type Client struct {
	Conn Conn
	Room string
	Mu   sync.Mutex
}

type message struct {
	room string
	data []byte
}

// Hub mengelola koneksi WebSocket per room.
type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan message
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}
}

// NewHub membuat instance Hub baru. buffer bounds the pending broadcasts.
func NewHub(buffer int) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan message, buffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Publish queues ev for the clients of its room. It never blocks: when the
// queue is full the event is dropped.
func (h *Hub) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.ErrorLogger.Error("Error encoding feed event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- message{room: ev.RoomID, data: data}:
	default:
		logger.SystemLogger.Warn("Feed queue full, dropping event",
			zap.String("room", ev.RoomID), zap.String("event", ev.Event))
	}
}

// Run menjalankan loop Hub sampai ctx selesai.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for _, clients := range h.clients {
				for client := range clients {
					h.remove(client)
				}
			}
			return
		case client := <-h.Register:
			if h.clients[client.Room] == nil {
				h.clients[client.Room] = make(map[*Client]bool)
			}
			h.clients[client.Room][client] = true
		case client := <-h.Unregister:
			h.remove(client)
		case msg := <-h.broadcast:
			for client := range h.clients[msg.room] {
				client.Mu.Lock()
				err := client.Conn.WriteMessage(websocket.TextMessage, msg.data)
				client.Mu.Unlock()
				if err != nil {
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.Room]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, client.Room)
	}
	client.Conn.Close()
}
