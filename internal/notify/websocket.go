package notify

import (
	"time"

	"stocktrack-backend/internal/auth"
	"stocktrack-backend/internal/models"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// RequireUpgrade rejects plain HTTP requests on the socket route.
func RequireUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// WebSocketHandler registers the authenticated operator and pumps its events
// to the socket until either side goes away. Inbound frames are ignored.
func WebSocketHandler(reg *Registry, log *zap.Logger) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		actor, ok := conn.Locals(auth.CtxActorKey).(models.Actor)
		if !ok {
			_ = conn.Close()
			return
		}

		client := reg.Register(actor.ID, string(actor.Role))
		defer reg.Unregister(client)

		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-gone:
				return
			case frame, open := <-client.Send():
				if !open {
					_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					log.Debug("websocket write failed", zap.String("actor_id", actor.ID.String()), zap.Error(err))
					return
				}
			}
		}
	})
}
