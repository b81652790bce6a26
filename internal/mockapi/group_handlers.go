package mockapi

import (
	"socialnet/internal/models"

	"github.com/gofiber/fiber/v2"
)

// BrowseGroups lists groups for a filter. The list is wrapped under "groups".
func (s *Server) BrowseGroups(c *fiber.Ctx) error {
	var req models.GroupBrowseRequest
	if err := parseBody(c, &req); err != nil {
		return respondWithError(c, err)
	}
	switch req.Type {
	case "", models.GroupFilterAll, models.GroupFilterJoined, models.GroupFilterCreated, models.GroupFilterInvited:
	default:
		return respondWithError(c, models.NewValidationError("unknown browse type: "+req.Type))
	}
	groups := s.state.BrowseGroups(currentUserID(c), req.Type, req.Search, req.Start, req.NItems)
	return c.JSON(fiber.Map{"groups": groups})
}

// GetGroup returns one group.
func (s *Server) GetGroup(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondWithError(c, err)
	}
	g, err := s.state.Group(currentUserID(c), id)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(g)
}

// CreateGroup creates a group owned by the caller.
func (s *Server) CreateGroup(c *fiber.Ctx) error {
	var req models.CreateGroupRequest
	if err := parseBody(c, &req); err != nil {
		return respondWithError(c, err)
	}
	g, err := s.state.CreateGroup(currentUserID(c), req)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(g)
}

// GetGroupEvents lists a group's events.
func (s *Server) GetGroupEvents(c *fiber.Ctx) error {
	var req models.EventListRequest
	if err := parseBody(c, &req); err != nil {
		return respondWithError(c, err)
	}
	events, err := s.state.GroupEvents(currentUserID(c), req.GroupID, req.Start, req.NItems)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(fiber.Map{"events": events})
}

// CreateEvent adds an event to a group.
func (s *Server) CreateEvent(c *fiber.Ctx) error {
	var req models.CreateEventRequest
	if err := parseBody(c, &req); err != nil {
		return respondWithError(c, err)
	}
	e, err := s.state.CreateEvent(currentUserID(c), req)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(e)
}

// VoteEvent records the caller's vote. The user id in the body is ignored.
func (s *Server) VoteEvent(c *fiber.Ctx) error {
	var req models.VoteRequest
	if err := parseBody(c, &req); err != nil {
		return respondWithError(c, err)
	}
	e, err := s.state.Vote(currentUserID(c), req.EventID, req.Vote)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(e)
}

// RequestJoinGroup asks to join a group on behalf of the caller.
func (s *Server) RequestJoinGroup(c *fiber.Ctx) error {
	var req models.MembershipRequest
	if err := parseBody(c, &req); err != nil {
		return respondWithError(c, err)
	}
	status, err := s.state.RequestJoin(currentUserID(c), req.GroupID)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Join request sent", "status": status})
}

// RespondMembership resolves an invite or a join request depending on
// prev_status.
func (s *Server) RespondMembership(c *fiber.Ctx) error {
	var req models.MembershipRequest
	if err := parseBody(c, &req); err != nil {
		return respondWithError(c, err)
	}
	actor := currentUserID(c)
	userID := req.UserID
	if req.PrevStatus == models.MemberStatusInvited && userID == 0 {
		userID = actor
	}
	status, err := s.state.RespondMembership(actor, req.GroupID, userID, req.Status, req.PrevStatus)
	if err != nil {
		return respondWithError(c, err)
	}
	msg := "Successfully declined"
	if status == models.MemberStatusMember {
		msg = "Successfully accepted"
	}
	return c.JSON(fiber.Map{"message": msg, "status": status})
}

// InviteToGroup invites a user into a group.
func (s *Server) InviteToGroup(c *fiber.Ctx) error {
	var req models.MembershipRequest
	if err := parseBody(c, &req); err != nil {
		return respondWithError(c, err)
	}
	status, err := s.state.Invite(currentUserID(c), req.GroupID, req.UserID)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Invitation sent", "status": status})
}
