package mockapi

import (
	"socialnet/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SendMessage stores a private message sent over HTTP.
func (s *Server) SendMessage(c *fiber.Ctx) error {
	var req models.SendMessageRequest
	if err := parseBody(c, &req); err != nil {
		return respondWithError(c, err)
	}
	msg, err := s.state.SendMessage(currentUserID(c), req.ReceiverID, req.Content)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// GetConversation lists the messages exchanged with another user.
func (s *Server) GetConversation(c *fiber.Ctx) error {
	var req models.ConversationRequest
	if err := parseBody(c, &req); err != nil {
		return respondWithError(c, err)
	}
	if req.OtherUserID <= 0 {
		return respondWithError(c, models.NewValidationError("other_user_id is required"))
	}
	msgs := s.state.Conversation(currentUserID(c), req.OtherUserID, req.Limit, req.Offset)
	return c.JSON(fiber.Map{"messages": msgs})
}

// GetRecentConversations lists the caller's latest conversations.
func (s *Server) GetRecentConversations(c *fiber.Ctx) error {
	convs := s.state.RecentConversations(currentUserID(c), c.QueryInt("limit", 20))
	return c.JSON(fiber.Map{"conversations": convs})
}

// DeleteMessage removes a message the caller sent.
func (s *Server) DeleteMessage(c *fiber.Ctx) error {
	var req models.DeleteMessageRequest
	if err := parseBody(c, &req); err != nil {
		return respondWithError(c, err)
	}
	if err := s.state.DeleteMessage(currentUserID(c), req.MessageID); err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(models.MessageResponse{Message: "Message deleted"})
}
