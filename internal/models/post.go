package models

import (
	"strings"
	"time"
)

// Privacy is the visibility of a post.
type Privacy string

const (
	PrivacyPublic        Privacy = "public"
	PrivacyAlmostPrivate Privacy = "almost_private"
	PrivacyPrivate       Privacy = "private"
	PrivacyGroup         Privacy = "group"
)

// Valid reports whether p is a known privacy value.
func (p Privacy) Valid() bool {
	switch p {
	case PrivacyPublic, PrivacyAlmostPrivate, PrivacyPrivate, PrivacyGroup:
		return true
	}
	return false
}

// Feed types accepted by the feed endpoint.
const (
	FeedAll   = "all"
	FeedGroup = "group"
	FeedUser  = "user"
)

// Post is the wire representation of a post.
type Post struct {
	ID           int        `json:"id"`
	UserID       int        `json:"user_id"`
	GroupID      int        `json:"group_id,omitempty"`
	Content      string     `json:"content"`
	ImageUUID    NullString `json:"image_uuid"`
	Privacy      Privacy    `json:"privacy"`
	AuthorName   string     `json:"author_name"`
	AuthorAvatar string     `json:"author_avatar"`
	CommentCount int        `json:"comment_count"`
	Comments     []Comment  `json:"comments,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Comment is the wire representation of a comment.
type Comment struct {
	ID           int       `json:"id"`
	PostID       int       `json:"post_id"`
	UserID       int       `json:"user_id"`
	Content      string    `json:"content"`
	AuthorName   string    `json:"author_name"`
	AuthorAvatar string    `json:"author_avatar"`
	CreatedAt    time.Time `json:"created_at"`
}

// FeedRequest is the body of the feed endpoint. ID is the group or user id
// depending on Type.
type FeedRequest struct {
	ID    int    `json:"id"`
	Type  string `json:"type"`
	Start int    `json:"start"`
	NPost int    `json:"n_post"`
}

// CreatePostRequest is the body of the new-post endpoint.
type CreatePostRequest struct {
	Content   string  `json:"content"`
	Privacy   Privacy `json:"privacy"`
	GroupID   int     `json:"group_id,omitempty"`
	Viewers   []int   `json:"viewers,omitempty"`
	ImageUUID string  `json:"image_uuid,omitempty"`
}

// Validate checks the post body and privacy.
func (r CreatePostRequest) Validate() error {
	if strings.TrimSpace(r.Content) == "" {
		return NewValidationError("post content is required")
	}
	if r.Privacy == "" {
		return nil
	}
	if !r.Privacy.Valid() {
		return NewValidationError("invalid privacy value: " + string(r.Privacy))
	}
	if r.Privacy == PrivacyGroup && r.GroupID <= 0 {
		return NewValidationError("group posts require a group_id")
	}
	return nil
}

// CreateCommentRequest is the body of the new-comment endpoint.
type CreateCommentRequest struct {
	Content string `json:"content"`
}
