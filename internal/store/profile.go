package store

import (
	"context"

	"socialnet/internal/models"
)

// Connection list kinds accepted by FetchConnections.
const (
	ConnectionsFollowers = "followers"
	ConnectionsFollowing = "following"
)

// ProfileAPI is the part of the REST client the profile store uses.
type ProfileAPI interface {
	CurrentUser(ctx context.Context) (*models.User, error)
	ProfileInfo(ctx context.Context, userID int) (*models.ProfileInfo, error)
	Followers(ctx context.Context, userID int) ([]models.User, error)
	Following(ctx context.Context, userID int) ([]models.User, error)
	FollowUnfollow(ctx context.Context, targetID int, action string) (models.FollowStatus, error)
	RespondFollowRequest(ctx context.Context, targetID int, action string) error
	ToggleVisibility(ctx context.Context) (bool, error)
}

// Profile is a snapshot of the profile being viewed.
type Profile struct {
	User          models.User
	FollowStatus  models.FollowStatus
	IsRequestToMe bool
	IsOwner       bool
	Followers     []models.User
	Following     []models.User
}

// ProfileStore loads one profile at a time along with the viewer's relation to it.
type ProfileStore struct {
	base
	api ProfileAPI

	viewer        *models.User
	targetID      int
	user          models.User
	followStatus  models.FollowStatus
	isRequestToMe bool
	isOwner       bool
	followers     []models.User
	following     []models.User
}

// NewProfileStore builds a profile store.
func NewProfileStore(api ProfileAPI) *ProfileStore {
	return &ProfileStore{
		base:         newBase("profile"),
		api:          api,
		followStatus: models.FollowStatusNone,
	}
}

// Init loads targetID's profile, or the viewer's own when targetID is 0 or
// the profile cannot be loaded.
func (s *ProfileStore) Init(ctx context.Context, targetID int) error {
	defer s.start()()

	s.mu.RLock()
	viewer := s.viewer
	s.mu.RUnlock()
	if viewer == nil {
		u, err := s.api.CurrentUser(ctx)
		if err != nil {
			return s.fail(ctx, "init", err)
		}
		if u == nil {
			return s.fail(ctx, "init", models.NewUnauthorizedError("not signed in"))
		}
		viewer = u
		s.mu.Lock()
		s.viewer = u
		s.mu.Unlock()
	}

	if targetID <= 0 {
		targetID = viewer.ID
	}
	err := s.load(ctx, targetID, viewer.ID == targetID)
	if err == nil {
		return nil
	}
	s.log.LogError(ctx, err, "fetch_profile")
	if targetID == viewer.ID {
		return s.fail(ctx, "init", err)
	}
	if err := s.load(ctx, viewer.ID, true); err != nil {
		return s.fail(ctx, "init", err)
	}
	return nil
}

func (s *ProfileStore) load(ctx context.Context, targetID int, owner bool) error {
	info, err := s.api.ProfileInfo(ctx, targetID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targetID = targetID
	s.isOwner = owner
	s.user = info.User
	s.followStatus = info.FollowStatus
	if s.followStatus == "" {
		s.followStatus = models.FollowStatusNone
	}
	s.isRequestToMe = info.IsRequestToMe
	s.followers = nil
	s.following = nil
	return nil
}

// Snapshot returns the loaded profile.
func (s *ProfileStore) Snapshot() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Profile{
		User:          s.user,
		FollowStatus:  s.followStatus,
		IsRequestToMe: s.isRequestToMe,
		IsOwner:       s.isOwner,
		Followers:     append([]models.User(nil), s.followers...),
		Following:     append([]models.User(nil), s.following...),
	}
}

// CanViewPrivateProfile reports whether the viewer may see the profile's
// content: it is their own, it is public, or they are an accepted follower.
func (s *ProfileStore) CanViewPrivateProfile() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOwner || s.user.IsPublic || s.followStatus == models.FollowStatusAccepted
}

// ToggleFollow follows or unfollows the loaded profile. A follow is shown as
// pending until the profile is reloaded.
func (s *ProfileStore) ToggleFollow(ctx context.Context, action string) error {
	s.mu.RLock()
	target := s.targetID
	s.mu.RUnlock()

	if _, err := s.api.FollowUnfollow(ctx, target, action); err != nil {
		return s.fail(ctx, "toggle_follow", err)
	}
	s.mu.Lock()
	if action == models.FollowActionFollow {
		s.followStatus = models.FollowStatusPending
	} else {
		s.followStatus = models.FollowStatusNone
	}
	s.mu.Unlock()
	s.done(ctx, "toggle_follow", map[string]interface{}{"target_id": target, "action": action})
	return nil
}

// ToggleVisibility flips the viewer's profile between public and private.
func (s *ProfileStore) ToggleVisibility(ctx context.Context) (bool, error) {
	public, err := s.api.ToggleVisibility(ctx)
	if err != nil {
		return false, s.fail(ctx, "toggle_visibility", err)
	}
	s.mu.Lock()
	if s.isOwner {
		s.user.IsPublic = public
	}
	if s.viewer != nil {
		s.viewer.IsPublic = public
	}
	s.mu.Unlock()
	return public, nil
}

// RespondToRequest accepts or declines the loaded profile's follow request.
func (s *ProfileStore) RespondToRequest(ctx context.Context, action string) error {
	s.mu.RLock()
	requester := s.user.ID
	s.mu.RUnlock()

	if err := s.api.RespondFollowRequest(ctx, requester, action); err != nil {
		return s.fail(ctx, "respond_to_request", err)
	}
	s.mu.Lock()
	s.isRequestToMe = false
	s.mu.Unlock()
	s.done(ctx, "respond_to_request", map[string]interface{}{"requester_id": requester, "action": action})
	return nil
}

// FetchConnections loads the followers or following list of the loaded
// profile. Private profiles the viewer cannot see are refused.
func (s *ProfileStore) FetchConnections(ctx context.Context, kind string) ([]models.User, error) {
	if kind != ConnectionsFollowers && kind != ConnectionsFollowing {
		return nil, models.NewValidationError("unknown connection list: " + kind)
	}
	if !s.CanViewPrivateProfile() {
		return nil, s.fail(ctx, "fetch_connections", models.NewForbiddenError("this profile is private"))
	}

	s.mu.RLock()
	target := s.targetID
	s.mu.RUnlock()

	fetch := s.api.Followers
	if kind == ConnectionsFollowing {
		fetch = s.api.Following
	}
	users, err := fetch(ctx, target)
	if err != nil {
		return nil, s.fail(ctx, "fetch_connections", err)
	}

	s.mu.Lock()
	if kind == ConnectionsFollowers {
		s.followers = users
	} else {
		s.following = users
	}
	s.mu.Unlock()
	return append([]models.User(nil), users...), nil
}
