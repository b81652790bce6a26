package api

import (
	"context"
	"net/http"

	"socialnet/internal/models"
)

// FollowResponse is returned by the follow endpoints.
type FollowResponse struct {
	Message string              `json:"message"`
	Status  models.FollowStatus `json:"status"`
}

type usersResponse struct {
	Users []models.User `json:"users"`
}

// ProfileInfo loads a user's profile along with the viewer's follow state.
func (c *Client) ProfileInfo(ctx context.Context, userID int) (*models.ProfileInfo, error) {
	var out models.ProfileInfo
	if err := c.doJSON(ctx, http.MethodPost, "/users/profile/info", models.IDRequest{ID: userID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Followers lists the users following userID.
func (c *Client) Followers(ctx context.Context, userID int) ([]models.User, error) {
	return c.connections(ctx, "/users/profile/followers", userID)
}

// Following lists the users userID follows.
func (c *Client) Following(ctx context.Context, userID int) ([]models.User, error) {
	return c.connections(ctx, "/users/profile/following", userID)
}

func (c *Client) connections(ctx context.Context, path string, userID int) ([]models.User, error) {
	var out usersResponse
	if err := c.doJSON(ctx, http.MethodPost, path, models.IDRequest{ID: userID}, &out); err != nil {
		return nil, err
	}
	if out.Users == nil {
		return []models.User{}, nil
	}
	return out.Users, nil
}

// ToggleVisibility flips the signed-in user's profile between public and private.
func (c *Client) ToggleVisibility(ctx context.Context) (bool, error) {
	var out models.VisibilityResponse
	if err := c.doJSON(ctx, http.MethodPost, "/users/profile/visibility", nil, &out); err != nil {
		return false, err
	}
	return out.IsPublic, nil
}

// FollowUnfollow follows or unfollows targetID and returns the new follow status.
func (c *Client) FollowUnfollow(ctx context.Context, targetID int, action string) (models.FollowStatus, error) {
	if action != models.FollowActionFollow && action != models.FollowActionUnfollow {
		return "", models.NewValidationError("action must be follow or unfollow")
	}
	var out FollowResponse
	req := models.FollowRequest{TargetID: targetID, Action: action}
	if err := c.doJSON(ctx, http.MethodPost, "/users/follow/follow-unfollow", req, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// RespondFollowRequest accepts or declines a pending follow request from targetID.
func (c *Client) RespondFollowRequest(ctx context.Context, targetID int, action string) error {
	if action != models.FollowActionAccept && action != models.FollowActionDecline {
		return models.NewValidationError("action must be accept or decline")
	}
	req := models.FollowRequest{TargetID: targetID, Action: action}
	return c.doJSON(ctx, http.MethodPost, "/users/follow/accept-decline", req, nil)
}

// UploadAvatar replaces the signed-in user's avatar.
func (c *Client) UploadAvatar(ctx context.Context, img models.Upload) (*models.AvatarResponse, error) {
	body, contentType, err := multipartBody(nil, "image", img)
	if err != nil {
		return nil, err
	}
	var out models.AvatarResponse
	if err := c.do(ctx, http.MethodPost, "/users/profile/avatar", body, contentType, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
