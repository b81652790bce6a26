package models

// WebSocket frame types.
const (
	FrameMessage                  = "message"
	FrameGroup                    = "group"
	FrameNotificationSubscribe    = "notification_subscribe"
	FrameAuth                     = "auth"
	FrameNotification             = "notification"
	FrameNewNotification          = "new_notification"
	FrameNotificationCountUpdated = "notification_count_updated"
	FrameMessagesDropped          = "messages_dropped"
)

// Frame status values.
const (
	FrameStatusSuccess = "success"
	FrameStatusError   = "error"
)

// ChatOutFrame sends a private message.
type ChatOutFrame struct {
	Type       string `json:"type"`
	ReceiverID int    `json:"receiver_id"`
	Content    string `json:"content"`
}

// GroupOutFrame sends a group message.
type GroupOutFrame struct {
	Type    string `json:"type"`
	GroupID int    `json:"group_id"`
	Content string `json:"content"`
}

// AuthFrame identifies the connection's user.
type AuthFrame struct {
	Type   string `json:"type"`
	UserID int    `json:"user_id"`
}

// TypeFrame carries only a type, e.g. notification_subscribe.
type TypeFrame struct {
	Type string `json:"type"`
}

// ChatInFrame delivers a chat message.
type ChatInFrame struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

// NotificationFrame delivers a new or updated notification.
type NotificationFrame struct {
	Type         string       `json:"type"`
	Action       string       `json:"action"`
	Notification Notification `json:"notification"`
	UnreadCount  int          `json:"unread_count"`
}

// CountFrame tells the client its unread count changed.
type CountFrame struct {
	Type        string `json:"type"`
	UnreadCount int    `json:"unread_count"`
}

// StatusFrame acknowledges or rejects an inbound frame.
type StatusFrame struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
