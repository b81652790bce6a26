package models

import "time"

// FollowStatus is the relation between the viewer and a profile.
type FollowStatus string

const (
	FollowStatusNone     FollowStatus = "none"
	FollowStatusPending  FollowStatus = "pending"
	FollowStatusAccepted FollowStatus = "accepted"
)

// Follow actions accepted by the follow endpoints.
const (
	FollowActionFollow   = "follow"
	FollowActionUnfollow = "unfollow"
	FollowActionAccept   = "accept"
	FollowActionDecline  = "decline"
)

// User is a public user profile.
type User struct {
	ID          int       `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Nickname    string    `json:"nickname"`
	AboutMe     string    `json:"about_me"`
	AvatarPath  string    `json:"avatar_path"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	IsPublic    bool      `json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
}

// DisplayName returns the nickname when set, otherwise first and last name.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Nickname != "" {
		return u.Nickname
	}
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	return name
}

// SignUpRequest is the registration payload.
type SignUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Nickname    string `json:"nickname,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	AboutMe     string `json:"about_me,omitempty"`
}

// Validate checks the fields the backend requires.
func (r SignUpRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return NewValidationError("email and password are required")
	}
	if len(r.Password) < 8 {
		return NewValidationError("password must be at least 8 characters")
	}
	if r.FirstName == "" || r.LastName == "" {
		return NewValidationError("first and last name are required")
	}
	return nil
}

// Credentials is the sign-in payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by sign-up and sign-in.
type AuthResponse struct {
	Message string `json:"message"`
	UserID  int    `json:"user_id"`
	Token   string `json:"token,omitempty"`
}

// ProfileInfo is the response of the profile info endpoint.
type ProfileInfo struct {
	User           User         `json:"user"`
	FollowStatus   FollowStatus `json:"follow_status"`
	IsRequestToMe  bool         `json:"is_request_to_me"`
	FollowersCount int          `json:"followers_count"`
	FollowingCount int          `json:"following_count"`
}

// FollowRequest is the body of follow-unfollow and accept-decline.
type FollowRequest struct {
	TargetID int    `json:"target_id"`
	Action   string `json:"action"`
}

// VisibilityResponse is returned after toggling profile visibility.
type VisibilityResponse struct {
	IsPublic bool `json:"is_public"`
}

// AvatarResponse is returned after an avatar upload.
type AvatarResponse struct {
	AvatarPath string `json:"avatar_path"`
	ImageUUID  string `json:"image_uuid"`
}

// IDRequest is the common {"id": n} body.
type IDRequest struct {
	ID int `json:"id"`
}

// MessageResponse is the common {"message": "..."} body.
type MessageResponse struct {
	Message string `json:"message"`
}

// Upload is a file ready to be sent as a multipart part.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}
