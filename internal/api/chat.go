package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"socialnet/internal/models"
)

type messagesResponse struct {
	Messages []models.Message `json:"messages"`
}

type conversationsResponse struct {
	Conversations []models.ConversationSummary `json:"conversations"`
}

// SendMessage posts a private message over HTTP.
func (c *Client) SendMessage(ctx context.Context, receiverID int, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, models.NewValidationError("message content is required")
	}
	var out models.Message
	req := models.SendMessageRequest{ReceiverID: receiverID, Content: content}
	if err := c.doJSON(ctx, http.MethodPost, "/chat/send", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Conversation lists messages exchanged with otherUserID, oldest first.
func (c *Client) Conversation(ctx context.Context, otherUserID, limit, offset int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var out messagesResponse
	req := models.ConversationRequest{OtherUserID: otherUserID, Limit: limit, Offset: offset}
	if err := c.doJSON(ctx, http.MethodPost, "/chat/conversation", req, &out); err != nil {
		return nil, err
	}
	if out.Messages == nil {
		return []models.Message{}, nil
	}
	return out.Messages, nil
}

// RecentConversations lists the signed-in user's latest conversations.
func (c *Client) RecentConversations(ctx context.Context, limit int) ([]models.ConversationSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	var out conversationsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/chat/recent?limit="+strconv.Itoa(limit), nil, &out); err != nil {
		if models.IsUnauthorized(err) {
			return nil, &models.APIError{
				Status:  http.StatusUnauthorized,
				Code:    "UNAUTHORIZED",
				Message: "Please sign in to see your recent chats.",
			}
		}
		return nil, err
	}
	if out.Conversations == nil {
		return []models.ConversationSummary{}, nil
	}
	return out.Conversations, nil
}

// DeleteMessage removes a message sent by the signed-in user.
func (c *Client) DeleteMessage(ctx context.Context, messageID int) error {
	return c.doJSON(ctx, http.MethodDelete, "/chat/delete", models.DeleteMessageRequest{MessageID: messageID}, nil)
}
