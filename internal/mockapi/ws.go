package mockapi

import (
	"encoding/json"
	"log/slog"

	"socialnet/internal/models"
	"socialnet/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// websocketHandler upgrades authenticated requests and serves chat and
// notification frames on the same connection.
func (s *Server) websocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(int)
		if !ok || userID <= 0 {
			_ = conn.WriteJSON(models.StatusFrame{Status: models.FrameStatusError, Message: "unauthorized"})
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			observability.GlobalLogger.Warn("websocket register failed",
				slog.Int("user_id", userID),
				slog.String("error", err.Error()),
			)
			_ = conn.WriteJSON(models.StatusFrame{Status: models.FrameStatusError, Message: err.Error()})
			_ = conn.Close()
			return
		}
		observability.GlobalLogger.Debug("websocket connected", slog.Int("user_id", userID))

		client.IncomingHandler = s.handleFrame
		go client.WritePump()
		client.ReadPump()
		// The conn goes back to the pool when this handler returns.
		<-client.Done()
	})
}

func (s *Server) handleFrame(c *Client, raw []byte) {
	var head models.TypeFrame
	if err := json.Unmarshal(raw, &head); err != nil {
		s.ack(c, models.FrameStatusError, "Invalid message format")
		return
	}

	switch head.Type {
	case models.FrameMessage:
		var in models.ChatOutFrame
		if err := json.Unmarshal(raw, &in); err != nil {
			s.ack(c, models.FrameStatusError, "Invalid message format")
			return
		}
		if _, err := s.state.SendMessage(c.UserID, in.ReceiverID, in.Content); err != nil {
			s.ack(c, models.FrameStatusError, errorMessage(err))
			return
		}
		s.ack(c, models.FrameStatusSuccess, "Message sent")

	case models.FrameGroup:
		var in models.GroupOutFrame
		if err := json.Unmarshal(raw, &in); err != nil {
			s.ack(c, models.FrameStatusError, "Invalid message format")
			return
		}
		if _, err := s.state.SendGroupMessage(c.UserID, in.GroupID, in.Content); err != nil {
			s.ack(c, models.FrameStatusError, errorMessage(err))
			return
		}
		s.ack(c, models.FrameStatusSuccess, "Message sent")

	case models.FrameNotificationSubscribe:
		s.ack(c, models.FrameStatusSuccess, "Subscribed to notifications")
		s.send(c, models.CountFrame{
			Type:        models.FrameNotificationCountUpdated,
			UnreadCount: s.state.UnreadCount(c.UserID),
		})

	case models.FrameAuth:
		var in models.AuthFrame
		if err := json.Unmarshal(raw, &in); err != nil || in.UserID != c.UserID {
			s.ack(c, models.FrameStatusError, "User does not match session")
			return
		}
		s.ack(c, models.FrameStatusSuccess, "Authenticated")

	default:
		s.ack(c, models.FrameStatusError, "Unknown message type: "+head.Type)
	}
}

func (s *Server) ack(c *Client, status, message string) {
	s.send(c, models.StatusFrame{Status: status, Message: message})
}

func (s *Server) send(c *Client, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.TrySend(data)
}

func errorMessage(err error) string {
	if appErr, ok := err.(*models.AppError); ok {
		return appErr.Message
	}
	return err.Error()
}
