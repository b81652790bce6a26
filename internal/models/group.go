package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// MemberStatus is the viewer's relation to a group.
type MemberStatus string

const (
	MemberStatusNone      MemberStatus = ""
	MemberStatusInvited   MemberStatus = "invited"
	MemberStatusRequested MemberStatus = "requested"
	MemberStatusMember    MemberStatus = "member"
	MemberStatusDeclined  MemberStatus = "declined"
	MemberStatusCreator   MemberStatus = "creator"
)

// IsMember reports whether the status grants access to group content.
func (s MemberStatus) IsMember() bool {
	return s == MemberStatusMember || s == MemberStatusCreator
}

// Browse filters accepted by the group browse endpoint.
const (
	GroupFilterAll     = "all"
	GroupFilterJoined  = "joined"
	GroupFilterCreated = "created"
	GroupFilterInvited = "invited"
)

// Event votes.
const (
	VoteGoing    = "going"
	VoteNotGoing = "not_going"
)

// NullString is an optional string that decodes from either a plain JSON
// string or the {"String": "...", "Valid": true} shape produced by sql.NullString.
type NullString struct {
	String string
	Valid  bool
}

// NewNullString returns a valid NullString unless s is empty.
func NewNullString(s string) NullString {
	return NullString{String: s, Valid: s != ""}
}

func (n *NullString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = NullString{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NewNullString(s)
		return nil
	}
	var wire struct {
		String string
		Valid  bool
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*n = NullString{String: wire.String, Valid: wire.Valid && wire.String != ""}
	return nil
}

func (n NullString) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		String string
		Valid  bool
	}{n.String, n.Valid})
}

// Group is the wire representation of a group.
type Group struct {
	ID          int          `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	ImageUUID   NullString   `json:"image_uuid"`
	MemberCount int          `json:"member_count"`
	IsMember    MemberStatus `json:"is_member"`
	CreatedAt   time.Time    `json:"created_at"`
	CreatorID   int          `json:"creator_id"`
}

// GroupBrowseRequest is the body of the browse endpoint.
type GroupBrowseRequest struct {
	UserID int    `json:"user_id"`
	Start  int    `json:"start"`
	NItems int    `json:"n_items"`
	Type   string `json:"type"`
	Search string `json:"search,omitempty"`
}

// CreateGroupRequest is the body of the new-group endpoint.
type CreateGroupRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageUUID   string `json:"image_uuid,omitempty"`
}

// Validate checks the required group fields.
func (r CreateGroupRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return NewValidationError("group title is required")
	}
	if strings.TrimSpace(r.Description) == "" {
		return NewValidationError("group description is required")
	}
	return nil
}

// MembershipRequest is the body of request, accept-decline and invite.
type MembershipRequest struct {
	GroupID    int          `json:"group_id"`
	UserID     int          `json:"user_id"`
	Status     MemberStatus `json:"status"`
	PrevStatus MemberStatus `json:"prev_status"`
}

// Event is the wire representation of a group event.
type Event struct {
	ID          int       `json:"id"`
	GroupID     int       `json:"group_id"`
	CreatorID   int       `json:"creator_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	EventTime   time.Time `json:"event_time"`
	Vote        string    `json:"vote"`
	Going       int       `json:"going"`
	CreatedAt   time.Time `json:"created_at"`
}

// EventListRequest is the body of the group events endpoint.
type EventListRequest struct {
	GroupID int `json:"group_id"`
	Start   int `json:"start"`
	NItems  int `json:"n_items"`
}

// CreateEventRequest is the body of the new-event endpoint.
type CreateEventRequest struct {
	GroupID     int       `json:"group_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	EventTime   time.Time `json:"event_time"`
}

// Validate checks the required event fields.
func (r CreateEventRequest) Validate() error {
	if r.GroupID <= 0 {
		return NewValidationError("group_id is required")
	}
	if strings.TrimSpace(r.Title) == "" {
		return NewValidationError("event title is required")
	}
	if r.EventTime.IsZero() {
		return NewValidationError("event_time is required")
	}
	return nil
}

// VoteRequest is the body of the event vote endpoint.
type VoteRequest struct {
	EventID int    `json:"event_id"`
	UserID  int    `json:"user_id"`
	Vote    string `json:"vote"`
}

// ValidVote reports whether v is an accepted event vote.
func ValidVote(v string) bool {
	return v == VoteGoing || v == VoteNotGoing
}
