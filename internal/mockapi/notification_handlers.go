package mockapi

import (
	"socialnet/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetNotifications lists a page of the caller's notifications.
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	list := s.state.Notifications(
		currentUserID(c),
		c.QueryInt("page", 1),
		c.QueryInt("limit", 20),
		c.QueryBool("unseen_only", false),
	)
	return c.JSON(list)
}

// GetUnreadCount returns the number of unseen notifications.
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	return c.JSON(models.UnreadCountResponse{UnreadCount: s.state.UnreadCount(currentUserID(c))})
}

// MarkRead marks the listed notifications seen.
func (s *Server) MarkRead(c *fiber.Ctx) error {
	var req models.MarkReadRequest
	if err := parseBody(c, &req); err != nil {
		return respondWithError(c, err)
	}
	if len(req.NotificationIDs) == 0 {
		return respondWithError(c, models.NewValidationError("notification_ids is required"))
	}
	s.state.MarkRead(currentUserID(c), req.NotificationIDs)
	return c.JSON(models.MessageResponse{Message: "Notifications marked as read"})
}

// MarkAllRead marks every notification of the caller seen.
func (s *Server) MarkAllRead(c *fiber.Ctx) error {
	s.state.MarkAllRead(currentUserID(c))
	return c.JSON(models.MessageResponse{Message: "All notifications marked as read"})
}

// DeleteNotification removes one notification.
func (s *Server) DeleteNotification(c *fiber.Ctx) error {
	if err := s.state.DeleteNotification(currentUserID(c), c.Params("id")); err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(models.MessageResponse{Message: "Notification deleted"})
}

// NotificationAction accepts or declines the request behind a notification.
func (s *Server) NotificationAction(c *fiber.Ctx) error {
	var req models.NotificationActionRequest
	if err := parseBody(c, &req); err != nil {
		return respondWithError(c, err)
	}
	if err := s.state.NotificationAction(currentUserID(c), req); err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(models.MessageResponse{Message: actionMessage(req.Action)})
}
