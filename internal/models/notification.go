package models

import "time"

// Notification types.
const (
	NotificationFollowRequest = "follow_request"
	NotificationGroupInvite   = "group_invite"
	NotificationGroupRequest  = "group_request"
	NotificationGroupEvent    = "group_event"
	NotificationPrivate       = "private"
	NotificationGroup         = "group"
)

// Notification actions.
const (
	NotificationActionAccept  = "accept"
	NotificationActionDecline = "decline"
)

// Notification is a single notification addressed to a user.
type Notification struct {
	ID         string    `json:"id"`
	UserID     int       `json:"user_id"`
	Type       string    `json:"type"`
	SubMessage string    `json:"sub_message"`
	Message    string    `json:"message"`
	Seen       bool      `json:"seen"`
	CreatedAt  time.Time `json:"created_at"`
	GroupID    int       `json:"group_id,omitempty"`
	FromUserID int       `json:"from_user_id,omitempty"`
}

// Actionable reports whether the notification can be accepted or declined.
func (n Notification) Actionable() bool {
	switch n.Type {
	case NotificationFollowRequest, NotificationGroupInvite, NotificationGroupRequest:
		return true
	}
	return false
}

// NotificationList is the body of the notification list endpoint.
type NotificationList struct {
	Notifications []Notification `json:"notifications"`
	Page          int            `json:"page"`
	Limit         int            `json:"limit"`
	Total         int            `json:"total"`
}

// UnreadCountResponse is the body of the unread-count endpoint.
type UnreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}

// MarkReadRequest is the body of the mark-read endpoint.
type MarkReadRequest struct {
	NotificationIDs []string `json:"notification_ids"`
}

// NotificationActionRequest is the body of the notification action endpoint.
type NotificationActionRequest struct {
	NotificationID string `json:"notification_id"`
	Action         string `json:"action"`
	GroupID        int    `json:"group_id,omitempty"`
	UserID         int    `json:"user_id,omitempty"`
}

// Validate checks the action name and notification id.
func (r NotificationActionRequest) Validate() error {
	if r.NotificationID == "" {
		return NewValidationError("notification_id is required")
	}
	if r.Action != NotificationActionAccept && r.Action != NotificationActionDecline {
		return NewValidationError("action must be accept or decline")
	}
	return nil
}
