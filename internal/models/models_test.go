package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullString_UnmarshalBothShapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  NullString
	}{
		{"sql shape valid", `{"String":"abc","Valid":true}`, NullString{String: "abc", Valid: true}},
		{"sql shape invalid", `{"String":"","Valid":false}`, NullString{}},
		{"sql shape empty but valid", `{"String":"","Valid":true}`, NullString{}},
		{"plain string", `"abc"`, NullString{String: "abc", Valid: true}},
		{"empty string", `""`, NullString{}},
		{"null", `null`, NullString{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got NullString
			require.NoError(t, json.Unmarshal([]byte(tt.input), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewGroupView(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	var g Group
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 7, "title": "Hikers", "description": "trails",
		"image_uuid": {"String": "u-1", "Valid": true},
		"member_count": 3, "is_member": "invited",
		"created_at": "2024-01-02T03:04:05Z", "creator_id": 2
	}`), &g))

	v := NewGroupView(g, "http://localhost:8080/api/")
	assert.Equal(t, GroupView{
		ID:           7,
		Name:         "Hikers",
		Description:  "trails",
		Image:        "http://localhost:8080/api/images/u-1",
		MemberCount:  3,
		MemberStatus: MemberStatusInvited,
		CreatedAt:    created,
		CreatorID:    2,
	}, v)

	g.ImageUUID = NullString{}
	assert.Equal(t, DefaultGroupImage, NewGroupView(g, "http://x").Image)
}

func TestNewPostView_DefaultsAvatar(t *testing.T) {
	p := Post{
		ID:         1,
		Content:    "hi",
		AuthorName: "Alice",
		Comments:   []Comment{{ID: 2, Content: "yo", AuthorAvatar: "/a.png"}},
	}
	v := NewPostView(p, "http://x/api")
	assert.Equal(t, DefaultAvatar, v.AuthorAvatar)
	assert.Empty(t, v.Image)
	require.Len(t, v.Comments, 1)
	assert.Equal(t, "/a.png", v.Comments[0].AuthorAvatar)

	p.ImageUUID = NewNullString("img")
	assert.Equal(t, "http://x/api/images/img", NewPostView(p, "http://x/api").Image)
}

func TestNewEventViews(t *testing.T) {
	views := NewEventViews([]Event{{ID: 1, Title: "Picnic", Going: 4, Vote: VoteGoing}})
	require.Len(t, views, 1)
	assert.Equal(t, 4, views[0].Attendees)
	assert.Equal(t, VoteGoing, views[0].Vote)
	assert.Empty(t, NewEventViews(nil))
}

func TestNewAPIError(t *testing.T) {
	err := NewAPIError(http.StatusUnauthorized, ErrorResponse{Error: "not signed in"})
	assert.Equal(t, "not signed in", err.Error())
	assert.Equal(t, "UNAUTHORIZED", err.Code)

	err = NewAPIError(http.StatusNotFound, ErrorResponse{Message: "gone", Code: "CUSTOM"})
	assert.Equal(t, "gone", err.Message)
	assert.Equal(t, "CUSTOM", err.Code)

	err = NewAPIError(http.StatusBadGateway, ErrorResponse{})
	assert.Equal(t, "HTTP error! status: 502", err.Message)
	assert.Equal(t, "INTERNAL_ERROR", err.Code)
}

func TestStatusHelpers(t *testing.T) {
	wrapped := fmt.Errorf("fetch: %w", NewAPIError(http.StatusUnauthorized, ErrorResponse{}))
	assert.True(t, IsUnauthorized(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.True(t, IsNotFound(NewAPIError(http.StatusNotFound, ErrorResponse{})))
	assert.True(t, IsForbidden(NewAPIError(http.StatusForbidden, ErrorResponse{})))
	assert.False(t, IsUnauthorized(errors.New("plain")))
}

func TestAppErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(NewNotFoundError("group", 3)))
	assert.Equal(t, http.StatusBadRequest, StatusFor(NewValidationError("bad")))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(NewUnauthorizedError("no")))
	assert.Equal(t, http.StatusForbidden, StatusFor(NewForbiddenError("no")))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))

	inner := errors.New("disk")
	err := NewInternalError(inner)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "Internal server error: disk", err.Error())
	assert.Equal(t, "group with ID 3 not found", NewNotFoundError("group", 3).Error())
}

func TestRequestValidation(t *testing.T) {
	assert.NoError(t, SignUpRequest{Email: "a@b.c", Password: "password1", FirstName: "A", LastName: "B"}.Validate())
	assert.Error(t, SignUpRequest{Email: "a@b.c", Password: "short", FirstName: "A", LastName: "B"}.Validate())
	assert.Error(t, CreateGroupRequest{Title: " ", Description: "d"}.Validate())
	assert.Error(t, CreatePostRequest{Content: "x", Privacy: "secret"}.Validate())
	assert.Error(t, CreatePostRequest{Content: "x", Privacy: PrivacyGroup}.Validate())
	assert.NoError(t, CreatePostRequest{Content: "x", Privacy: PrivacyGroup, GroupID: 1}.Validate())
	assert.Error(t, NotificationActionRequest{NotificationID: "n", Action: "maybe"}.Validate())
	assert.True(t, ValidVote(VoteNotGoing))
	assert.False(t, ValidVote("maybe"))
}

func TestMessageBetween(t *testing.T) {
	m := Message{SenderID: 1, ReceiverID: 2}
	assert.True(t, m.Between(1, 2))
	assert.True(t, m.Between(2, 1))
	assert.False(t, m.Between(1, 3))
}

func TestUserDisplayName(t *testing.T) {
	assert.Equal(t, "ally", (&User{Nickname: "ally", FirstName: "Alice"}).DisplayName())
	assert.Equal(t, "Alice Smith", (&User{FirstName: "Alice", LastName: "Smith"}).DisplayName())
	var nilUser *User
	assert.Equal(t, "", nilUser.DisplayName())
}
