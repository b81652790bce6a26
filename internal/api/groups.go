package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"socialnet/internal/models"
)

// ErrNoData is returned when the browse endpoint answers with an empty body or null.
var ErrNoData = errors.New("No data received from API")

// MembershipResponse is returned by the membership endpoints.
type MembershipResponse struct {
	Message string              `json:"message"`
	Status  models.MemberStatus `json:"status"`
}

type eventsResponse struct {
	Events []models.Event `json:"events"`
}

// decodeGroups accepts a bare array or an object carrying the list under
// "groups" or "data".
func decodeGroups(raw []byte) ([]models.Group, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ErrNoData
	}
	if raw[0] == '[' {
		var groups []models.Group
		if err := json.Unmarshal(raw, &groups); err != nil {
			return nil, ErrInvalidJSON
		}
		return groups, nil
	}
	var wrapped struct {
		Groups []models.Group `json:"groups"`
		Data   []models.Group `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, ErrInvalidJSON
	}
	if wrapped.Groups != nil {
		return wrapped.Groups, nil
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}
	return []models.Group{}, nil
}

// BrowseGroups lists groups matching the filter type (all, joined, created, invited).
func (c *Client) BrowseGroups(ctx context.Context, req models.GroupBrowseRequest) ([]models.Group, error) {
	if req.UserID == 0 {
		req.UserID = c.UserID()
	}
	if req.Type == "" {
		req.Type = models.GroupFilterAll
	}
	buf, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	raw, _, err := c.send(ctx, http.MethodPost, "/groups/group/browse", bytes.NewReader(buf), "application/json")
	if err != nil {
		return nil, err
	}
	return decodeGroups(raw)
}

// Group loads a single group.
func (c *Client) Group(ctx context.Context, id int) (*models.Group, error) {
	var out models.Group
	if err := c.doJSON(ctx, http.MethodGet, "/groups/group/"+strconv.Itoa(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateGroup creates a group owned by the signed-in user.
func (c *Client) CreateGroup(ctx context.Context, req models.CreateGroupRequest) (*models.Group, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var out models.Group
	if err := c.doJSON(ctx, http.MethodPost, "/groups/group/new", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GroupEvents lists a group's events.
func (c *Client) GroupEvents(ctx context.Context, req models.EventListRequest) ([]models.Event, error) {
	var out eventsResponse
	if err := c.doJSON(ctx, http.MethodPost, "/groups/group/events", req, &out); err != nil {
		return nil, err
	}
	if out.Events == nil {
		return []models.Event{}, nil
	}
	return out.Events, nil
}

// CreateEvent creates an event in a group.
func (c *Client) CreateEvent(ctx context.Context, req models.CreateEventRequest) (*models.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var out models.Event
	if err := c.doJSON(ctx, http.MethodPost, "/groups/group/event/new", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VoteEvent records the signed-in user's vote and returns the updated event.
func (c *Client) VoteEvent(ctx context.Context, eventID int, vote string) (*models.Event, error) {
	if !models.ValidVote(vote) {
		return nil, models.NewValidationError("vote must be going or not_going")
	}
	req := models.VoteRequest{EventID: eventID, UserID: c.UserID(), Vote: vote}
	var out models.Event
	if err := c.doJSON(ctx, http.MethodPost, "/groups/group/event/vote", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestJoinGroup asks to join a group.
func (c *Client) RequestJoinGroup(ctx context.Context, groupID int) (models.MemberStatus, error) {
	return c.membership(ctx, "/groups/group/request", models.MembershipRequest{
		GroupID:    groupID,
		UserID:     c.UserID(),
		Status:     models.MemberStatusRequested,
		PrevStatus: models.MemberStatusNone,
	})
}

// RespondGroupInvite accepts or declines an invite addressed to the signed-in user.
func (c *Client) RespondGroupInvite(ctx context.Context, groupID int, accept bool) (models.MemberStatus, error) {
	return c.membership(ctx, "/groups/group/accept-decline", models.MembershipRequest{
		GroupID:    groupID,
		UserID:     c.UserID(),
		Status:     decision(accept),
		PrevStatus: models.MemberStatusInvited,
	})
}

// RespondJoinRequest lets the group creator accept or decline userID's join request.
func (c *Client) RespondJoinRequest(ctx context.Context, groupID, userID int, accept bool) (models.MemberStatus, error) {
	return c.membership(ctx, "/groups/group/accept-decline", models.MembershipRequest{
		GroupID:    groupID,
		UserID:     userID,
		Status:     decision(accept),
		PrevStatus: models.MemberStatusRequested,
	})
}

// InviteToGroup invites userID into a group.
func (c *Client) InviteToGroup(ctx context.Context, groupID, userID int) (models.MemberStatus, error) {
	return c.membership(ctx, "/groups/group/invite", models.MembershipRequest{
		GroupID:    groupID,
		UserID:     userID,
		Status:     models.MemberStatusInvited,
		PrevStatus: models.MemberStatusNone,
	})
}

func (c *Client) membership(ctx context.Context, path string, req models.MembershipRequest) (models.MemberStatus, error) {
	var out MembershipResponse
	if err := c.doJSON(ctx, http.MethodPost, path, req, &out); err != nil {
		return "", err
	}
	if out.Status == "" {
		out.Status = req.Status
	}
	return out.Status, nil
}

func decision(accept bool) models.MemberStatus {
	if accept {
		return models.MemberStatusMember
	}
	return models.MemberStatusDeclined
}
