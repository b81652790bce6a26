package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"

	"socialnet/internal/models"
)

// Event is a decoded inbound frame. Acknowledgements carry Status and Text
// with an empty Type; chat frames carry Message; notification frames carry
// Notification and UnreadCount.
type Event struct {
	Type         string
	Status       string
	Action       string
	Text         string
	Message      *models.Message
	Notification *models.Notification
	UnreadCount  int
	Raw          json.RawMessage
}

// IsAck reports whether the event acknowledges or rejects a sent frame.
func (e Event) IsAck() bool {
	return e.Type == "" && e.Status != ""
}

// Failed reports whether the server rejected a sent frame.
func (e Event) Failed() bool {
	return e.Status == models.FrameStatusError
}

// label is the event's metrics label.
func (e Event) label() string {
	if e.Type != "" {
		return e.Type
	}
	if e.Status != "" {
		return "status_" + e.Status
	}
	return "unknown"
}

type wireEvent struct {
	Type         string               `json:"type"`
	Status       string               `json:"status"`
	Action       string               `json:"action"`
	Message      json.RawMessage      `json:"message"`
	Notification *models.Notification `json:"notification"`
	UnreadCount  int                  `json:"unread_count"`
}

// DecodeEvent parses a server frame. The "message" field is a chat message
// object on chat frames and plain text on acknowledgements.
func DecodeEvent(raw []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return Event{}, fmt.Errorf("decode frame: %w", err)
	}
	ev := Event{
		Type:         w.Type,
		Status:       w.Status,
		Action:       w.Action,
		Notification: w.Notification,
		UnreadCount:  w.UnreadCount,
		Raw:          append(json.RawMessage(nil), raw...),
	}

	msg := bytes.TrimSpace(w.Message)
	switch {
	case len(msg) == 0 || bytes.Equal(msg, []byte("null")):
	case msg[0] == '"':
		if err := json.Unmarshal(msg, &ev.Text); err != nil {
			return Event{}, fmt.Errorf("decode frame text: %w", err)
		}
	case msg[0] == '{':
		var m models.Message
		if err := json.Unmarshal(msg, &m); err != nil {
			return Event{}, fmt.Errorf("decode chat message: %w", err)
		}
		ev.Message = &m
	default:
		return Event{}, fmt.Errorf("decode frame: unexpected message field %s", msg)
	}

	if ev.Type == "" && ev.Status == "" {
		return Event{}, fmt.Errorf("decode frame: missing type and status")
	}
	return ev, nil
}

// ChatFrame builds a private chat frame.
func ChatFrame(receiverID int, content string) models.ChatOutFrame {
	return models.ChatOutFrame{Type: models.FrameMessage, ReceiverID: receiverID, Content: content}
}

// GroupFrame builds a group chat frame.
func GroupFrame(groupID int, content string) models.GroupOutFrame {
	return models.GroupOutFrame{Type: models.FrameGroup, GroupID: groupID, Content: content}
}

// SubscribeFrame asks the server for live notification updates.
func SubscribeFrame() models.TypeFrame {
	return models.TypeFrame{Type: models.FrameNotificationSubscribe}
}

// AuthFrame identifies the connection's user.
func AuthFrame(userID int) models.AuthFrame {
	return models.AuthFrame{Type: models.FrameAuth, UserID: userID}
}
