package mockapi

import (
	"io"

	"socialnet/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile returns the signed-in user.
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.state.User(currentUserID(c))
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(user)
}

// GetProfileInfo returns a profile with the viewer's follow state.
func (s *Server) GetProfileInfo(c *fiber.Ctx) error {
	var req models.IDRequest
	if err := parseBody(c, &req); err != nil {
		return respondWithError(c, err)
	}
	if req.ID <= 0 {
		req.ID = currentUserID(c)
	}
	info, err := s.state.ProfileInfo(currentUserID(c), req.ID)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(info)
}

// GetFollowers lists the accepted followers of a user.
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	return s.connections(c, true)
}

// GetFollowing lists the users a user follows.
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	return s.connections(c, false)
}

func (s *Server) connections(c *fiber.Ctx, followers bool) error {
	var req models.IDRequest
	if err := parseBody(c, &req); err != nil {
		return respondWithError(c, err)
	}
	if req.ID <= 0 {
		req.ID = currentUserID(c)
	}
	users, err := s.state.Connections(req.ID, followers)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(fiber.Map{"users": users})
}

// ToggleVisibility flips the signed-in user's profile visibility.
func (s *Server) ToggleVisibility(c *fiber.Ctx) error {
	public, err := s.state.ToggleVisibility(currentUserID(c))
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(models.VisibilityResponse{IsPublic: public})
}

// UploadAvatar stores the uploaded image and points the avatar at it.
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	id, err := s.saveUpload(c, "image")
	if err != nil {
		return respondWithError(c, err)
	}
	path, err := s.state.SetAvatar(currentUserID(c), id)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(models.AvatarResponse{AvatarPath: path, ImageUUID: id})
}

// FollowUnfollow follows or unfollows a user.
func (s *Server) FollowUnfollow(c *fiber.Ctx) error {
	var req models.FollowRequest
	if err := parseBody(c, &req); err != nil {
		return respondWithError(c, err)
	}
	status, err := s.state.Follow(currentUserID(c), req.TargetID, req.Action)
	if err != nil {
		return respondWithError(c, err)
	}
	msg := "Follow status updated"
	switch status {
	case models.FollowStatusPending:
		msg = "Follow request sent"
	case models.FollowStatusAccepted:
		msg = "Now following"
	case models.FollowStatusNone:
		msg = "Unfollowed"
	}
	return c.JSON(fiber.Map{"message": msg, "status": status})
}

// RespondFollowRequest accepts or declines a pending follow request.
func (s *Server) RespondFollowRequest(c *fiber.Ctx) error {
	var req models.FollowRequest
	if err := parseBody(c, &req); err != nil {
		return respondWithError(c, err)
	}
	if err := s.state.RespondFollow(currentUserID(c), req.TargetID, req.Action); err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(models.MessageResponse{Message: actionMessage(req.Action)})
}

// saveUpload reads a multipart file field into the image store.
func (s *Server) saveUpload(c *fiber.Ctx, field string) (string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return "", models.NewValidationError("missing " + field + " file")
	}
	f, err := fh.Open()
	if err != nil {
		return "", models.NewInternalError(err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	if len(data) == 0 {
		return "", models.NewValidationError("upload is empty")
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return s.state.SaveImage(data, contentType), nil
}

func actionMessage(action string) string {
	if action == models.FollowActionAccept {
		return "Successfully accepted"
	}
	return "Successfully declined"
}
