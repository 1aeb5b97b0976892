package websocket

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Upgrade only lets websocket handshakes through to the feed.
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Serve subscribes the connection to the room named by the :roomId param
// and holds it open until the peer disconnects. Incoming messages are ignored.
func (h *Hub) Serve() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		client := &Client{Conn: c, Room: c.Params("roomId")}
		select {
		case h.Register <- client:
		case <-h.done:
			c.Close()
			return
		}
		defer func() {
			select {
			case h.Unregister <- client:
			case <-h.done:
			}
		}()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})
}
