package models

import "time"

// Message types.
const (
	MessageTypePrivate = "private"
	MessageTypeGroup   = "group"
)

// Message is a chat message, either private (ReceiverID set) or group
// (GroupID set).
type Message struct {
	ID         int       `json:"id"`
	SenderID   int       `json:"sender_id"`
	ReceiverID int       `json:"receiver_id,omitempty"`
	GroupID    int       `json:"group_id,omitempty"`
	Content    string    `json:"content"`
	Type       string    `json:"type"`
	CreatedAt  time.Time `json:"created_at"`
}

// Between reports whether m was exchanged between a and b in either direction.
func (m Message) Between(a, b int) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// ConversationSummary is one row of the recent conversations list.
type ConversationSummary struct {
	OtherUserID   int       `json:"other_user_id"`
	OtherUserName string    `json:"other_user_name"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	UnreadCount   int       `json:"unread_count"`
}

// SendMessageRequest is the body of the chat send endpoint.
type SendMessageRequest struct {
	ReceiverID int    `json:"receiver_id"`
	Content    string `json:"content"`
}

// ConversationRequest is the body of the conversation endpoint.
type ConversationRequest struct {
	OtherUserID int `json:"other_user_id"`
	Limit       int `json:"limit"`
	Offset      int `json:"offset"`
}

// DeleteMessageRequest is the body of the chat delete endpoint.
type DeleteMessageRequest struct {
	MessageID int `json:"message_id"`
}
