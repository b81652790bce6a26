package models

import (
	"strings"
	"time"
)

const (
	// DefaultGroupImage is shown for groups without an uploaded image.
	DefaultGroupImage = "/default-group.jpg"
	// DefaultAvatar is shown for users without an avatar.
	DefaultAvatar = "/default-avatar.jpg"
)

// ImageURL returns the public URL of an uploaded image.
func ImageURL(apiBase, uuid string) string {
	return strings.TrimRight(apiBase, "/") + "/images/" + uuid
}

// GroupView is the display shape of a group.
type GroupView struct {
	ID           int
	Name         string
	Description  string
	Image        string
	MemberCount  int
	MemberStatus MemberStatus
	CreatedAt    time.Time
	CreatorID    int
}

// NewGroupView maps a wire group to its view. apiBase is the API root the
// image endpoint hangs off.
func NewGroupView(g Group, apiBase string) GroupView {
	image := DefaultGroupImage
	if g.ImageUUID.Valid {
		image = ImageURL(apiBase, g.ImageUUID.String)
	}
	return GroupView{
		ID:           g.ID,
		Name:         g.Title,
		Description:  g.Description,
		Image:        image,
		MemberCount:  g.MemberCount,
		MemberStatus: g.IsMember,
		CreatedAt:    g.CreatedAt,
		CreatorID:    g.CreatorID,
	}
}

// NewGroupViews maps a slice of wire groups.
func NewGroupViews(groups []Group, apiBase string) []GroupView {
	views := make([]GroupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, NewGroupView(g, apiBase))
	}
	return views
}

// CommentView is the display shape of a comment.
type CommentView struct {
	ID           int
	Content      string
	Author       string
	AuthorAvatar string
	CreatedAt    time.Time
}

// NewCommentView maps a wire comment.
func NewCommentView(c Comment) CommentView {
	return CommentView{
		ID:           c.ID,
		Content:      c.Content,
		Author:       c.AuthorName,
		AuthorAvatar: avatarOrDefault(c.AuthorAvatar),
		CreatedAt:    c.CreatedAt,
	}
}

// PostView is the display shape of a post.
type PostView struct {
	ID           int
	GroupID      int
	Content      string
	Image        string
	Author       string
	AuthorAvatar string
	CreatedAt    time.Time
	Comments     []CommentView
}

// NewPostView maps a wire post.
func NewPostView(p Post, apiBase string) PostView {
	v := PostView{
		ID:           p.ID,
		GroupID:      p.GroupID,
		Content:      p.Content,
		Author:       p.AuthorName,
		AuthorAvatar: avatarOrDefault(p.AuthorAvatar),
		CreatedAt:    p.CreatedAt,
		Comments:     make([]CommentView, 0, len(p.Comments)),
	}
	if p.ImageUUID.Valid {
		v.Image = ImageURL(apiBase, p.ImageUUID.String)
	}
	for _, c := range p.Comments {
		v.Comments = append(v.Comments, NewCommentView(c))
	}
	return v
}

// NewPostViews maps a slice of wire posts.
func NewPostViews(posts []Post, apiBase string) []PostView {
	views := make([]PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, NewPostView(p, apiBase))
	}
	return views
}

// EventView is the display shape of a group event.
type EventView struct {
	ID          int
	GroupID     int
	Title       string
	Description string
	Date        time.Time
	Vote        string
	Attendees   int
	CreatedAt   time.Time
}

// NewEventView maps a wire event.
func NewEventView(e Event) EventView {
	return EventView{
		ID:          e.ID,
		GroupID:     e.GroupID,
		Title:       e.Title,
		Description: e.Description,
		Date:        e.EventTime,
		Vote:        e.Vote,
		Attendees:   e.Going,
		CreatedAt:   e.CreatedAt,
	}
}

// NewEventViews maps a slice of wire events.
func NewEventViews(events []Event) []EventView {
	views := make([]EventView, 0, len(events))
	for _, e := range events {
		views = append(views, NewEventView(e))
	}
	return views
}

func avatarOrDefault(path string) string {
	if path == "" {
		return DefaultAvatar
	}
	return path
}
