package mockapi

import (
	"sync"
	"testing"
	"time"

	"socialnet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPusher struct {
	mu     sync.Mutex
	frames map[int][]any
}

func (p *recordingPusher) SendJSON(userID int, v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frames == nil {
		p.frames = make(map[int][]any)
	}
	p.frames[userID] = append(p.frames[userID], v)
}

func (p *recordingPusher) For(userID int) []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]any(nil), p.frames[userID]...)
}

func seededState(t *testing.T) (*State, *recordingPusher) {
	t.Helper()
	st := NewState()
	require.NoError(t, Seed(st))
	p := &recordingPusher{}
	st.SetPusher(p)
	return st, p
}

func TestSeed(t *testing.T) {
	st, _ := seededState(t)

	alice, err := st.Authenticate("ALICE@example.com", SeedPassword)
	require.NoError(t, err)
	assert.Equal(t, SeedAlice, alice.ID)

	carol, err := st.User(SeedCarol)
	require.NoError(t, err)
	assert.False(t, carol.IsPublic)

	g, err := st.Group(SeedBob, SeedHikers)
	require.NoError(t, err)
	assert.Equal(t, "Weekend Hikers", g.Title)
	assert.Equal(t, models.MemberStatusMember, g.IsMember)
	assert.Equal(t, 2, g.MemberCount)

	// dave has a pending invite, carol a pending follow request
	assert.Equal(t, 1, st.UnreadCount(SeedDave))
	assert.Equal(t, 1, st.UnreadCount(SeedCarol))
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	st, _ := seededState(t)
	_, err := st.Authenticate("alice@example.com", "nope")
	assert.Equal(t, 401, models.StatusFor(err))
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	st, _ := seededState(t)
	_, err := st.SignUp(models.SignUpRequest{
		Email: "alice@example.com", Password: "password123", FirstName: "A", LastName: "B",
	})
	require.Error(t, err)
	assert.Equal(t, 400, models.StatusFor(err))
}

func TestFollow(t *testing.T) {
	st, p := seededState(t)

	status, err := st.Follow(SeedDave, SeedAlice, models.FollowActionFollow)
	require.NoError(t, err)
	assert.Equal(t, models.FollowStatusAccepted, status)

	status, err = st.Follow(SeedAlice, SeedCarol, models.FollowActionFollow)
	require.NoError(t, err)
	assert.Equal(t, models.FollowStatusPending, status)

	frames := p.For(SeedCarol)
	require.Len(t, frames, 1)
	nf, ok := frames[0].(models.NotificationFrame)
	require.True(t, ok)
	assert.Equal(t, models.FrameNotification, nf.Type)
	assert.Equal(t, models.NotificationFollowRequest, nf.Notification.Type)
	assert.Equal(t, SeedAlice, nf.Notification.FromUserID)
	assert.Equal(t, 2, nf.UnreadCount)

	info, err := st.ProfileInfo(SeedCarol, SeedAlice)
	require.NoError(t, err)
	assert.True(t, info.IsRequestToMe)

	require.NoError(t, st.RespondFollow(SeedCarol, SeedAlice, models.FollowActionAccept))
	info, err = st.ProfileInfo(SeedAlice, SeedCarol)
	require.NoError(t, err)
	assert.Equal(t, models.FollowStatusAccepted, info.FollowStatus)
	assert.Equal(t, 1, info.FollowersCount)

	status, err = st.Follow(SeedAlice, SeedCarol, models.FollowActionUnfollow)
	require.NoError(t, err)
	assert.Equal(t, models.FollowStatusNone, status)

	_, err = st.Follow(SeedAlice, SeedAlice, models.FollowActionFollow)
	assert.Error(t, err)
	assert.Error(t, st.RespondFollow(SeedCarol, SeedBob, models.FollowActionAccept))
}

func TestMembershipStateMachine(t *testing.T) {
	st, p := seededState(t)

	status, err := st.RequestJoin(SeedCarol, SeedHikers)
	require.NoError(t, err)
	assert.Equal(t, models.MemberStatusRequested, status)

	_, err = st.RequestJoin(SeedCarol, SeedHikers)
	assert.Error(t, err, "second request from requested is invalid")

	_, err = st.RespondMembership(SeedBob, SeedHikers, SeedCarol, models.MemberStatusMember, models.MemberStatusRequested)
	assert.Equal(t, 403, models.StatusFor(err), "only the creator answers join requests")

	status, err = st.RespondMembership(SeedAlice, SeedHikers, SeedCarol, models.MemberStatusMember, models.MemberStatusRequested)
	require.NoError(t, err)
	assert.Equal(t, models.MemberStatusMember, status)

	g, err := st.Group(SeedCarol, SeedHikers)
	require.NoError(t, err)
	assert.Equal(t, 3, g.MemberCount)
	assert.NotEmpty(t, p.For(SeedCarol), "accepted requester is notified")

	_, err = st.Invite(SeedDave, SeedHikers, SeedCarol)
	assert.Equal(t, 403, models.StatusFor(err), "non-members cannot invite")

	status, err = st.Invite(SeedAlice, SeedGophers, SeedCarol)
	assert.Equal(t, 403, models.StatusFor(err))
	assert.Empty(t, status)

	_, err = st.RespondMembership(SeedDave, SeedGophers, SeedDave, models.MemberStatusDeclined, models.MemberStatusInvited)
	require.NoError(t, err)
	g, err = st.Group(SeedDave, SeedGophers)
	require.NoError(t, err)
	assert.Equal(t, models.MemberStatusDeclined, g.IsMember)

	// declined may ask again
	status, err = st.RequestJoin(SeedDave, SeedGophers)
	require.NoError(t, err)
	assert.Equal(t, models.MemberStatusRequested, status)
}

func TestBrowseGroups(t *testing.T) {
	st, _ := seededState(t)

	assert.Len(t, st.BrowseGroups(SeedAlice, models.GroupFilterAll, "", 0, 0), 2)
	assert.Len(t, st.BrowseGroups(SeedAlice, models.GroupFilterCreated, "", 0, 0), 1)
	assert.Len(t, st.BrowseGroups(SeedBob, models.GroupFilterJoined, "", 0, 0), 2)

	invited := st.BrowseGroups(SeedDave, models.GroupFilterInvited, "", 0, 0)
	require.Len(t, invited, 1)
	assert.Equal(t, "Go Programmers", invited[0].Title)

	found := st.BrowseGroups(SeedDave, models.GroupFilterAll, "HIKERS", 0, 0)
	require.Len(t, found, 1)
	assert.Equal(t, SeedHikers, found[0].ID)

	assert.Len(t, st.BrowseGroups(SeedAlice, models.GroupFilterAll, "", 1, 5), 1)
	assert.Empty(t, st.BrowseGroups(SeedAlice, models.GroupFilterAll, "", 10, 5))
}

func TestEventsAndVotes(t *testing.T) {
	st, p := seededState(t)

	events, err := st.GroupEvents(SeedBob, SeedHikers, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	_, err = st.GroupEvents(SeedDave, SeedHikers, 0, 0)
	assert.Equal(t, 403, models.StatusFor(err))

	e, err := st.Vote(SeedBob, events[0].ID, models.VoteGoing)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Going)
	assert.Equal(t, models.VoteGoing, e.Vote)

	e, err = st.Vote(SeedAlice, events[0].ID, models.VoteGoing)
	require.NoError(t, err)
	assert.Equal(t, 2, e.Going)

	e, err = st.Vote(SeedBob, events[0].ID, models.VoteNotGoing)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Going)

	_, err = st.Vote(SeedBob, events[0].ID, "maybe")
	assert.Error(t, err)

	before := len(p.For(SeedBob))
	_, err = st.CreateEvent(SeedAlice, models.CreateEventRequest{
		GroupID: SeedHikers, Title: "Night walk", EventTime: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Len(t, p.For(SeedBob), before+1)
	assert.Len(t, p.For(SeedAlice), 0, "creator is not notified of own event")
}

func TestFeedVisibility(t *testing.T) {
	st, _ := seededState(t)

	// alice follows bob (accepted) so she sees his almost_private post;
	// carol's private post is hidden from everyone else.
	aliceFeed, err := st.Feed(SeedAlice, models.FeedAll, 0, 0, 20)
	require.NoError(t, err)
	assert.Len(t, aliceFeed, 2)

	daveFeed, err := st.Feed(SeedDave, models.FeedAll, 0, 0, 20)
	require.NoError(t, err)
	require.Len(t, daveFeed, 1)
	assert.Equal(t, models.PrivacyPublic, daveFeed[0].Privacy)
	assert.Equal(t, "alice", daveFeed[0].AuthorName)

	carolFeed, err := st.Feed(SeedCarol, models.FeedUser, SeedCarol, 0, 20)
	require.NoError(t, err)
	assert.Len(t, carolFeed, 1)

	groupFeed, err := st.Feed(SeedBob, models.FeedGroup, SeedHikers, 0, 20)
	require.NoError(t, err)
	require.Len(t, groupFeed, 1)
	assert.Equal(t, models.PrivacyGroup, groupFeed[0].Privacy)

	_, err = st.Feed(SeedDave, models.FeedGroup, SeedHikers, 0, 20)
	assert.Equal(t, 403, models.StatusFor(err))
}

func TestCreatePostAndComments(t *testing.T) {
	st, _ := seededState(t)

	post, err := st.CreatePost(SeedDave, models.CreatePostRequest{Content: "  hello  "})
	require.NoError(t, err)
	assert.Equal(t, "hello", post.Content)
	assert.Equal(t, models.PrivacyPublic, post.Privacy)

	_, err = st.CreatePost(SeedDave, models.CreatePostRequest{Content: "x", GroupID: SeedHikers})
	assert.Equal(t, 403, models.StatusFor(err), "group privacy inferred from group_id")

	c, err := st.AddComment(SeedAlice, post.ID, "nice")
	require.NoError(t, err)
	assert.Equal(t, "alice", c.AuthorName)

	comments, err := st.Comments(SeedBob, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "nice", comments[0].Content)

	feed, err := st.Feed(SeedDave, models.FeedUser, SeedDave, 0, 20)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, 1, feed[0].CommentCount)

	_, err = st.AddComment(SeedAlice, post.ID, "   ")
	assert.Error(t, err)
}

func TestNotifications(t *testing.T) {
	st, p := seededState(t)

	list := st.Notifications(SeedDave, 1, 20, false)
	require.Len(t, list.Notifications, 1)
	n := list.Notifications[0]
	assert.Equal(t, models.NotificationGroupInvite, n.Type)
	assert.Equal(t, SeedGophers, n.GroupID)
	assert.NotEmpty(t, n.ID)

	st.MarkRead(SeedDave, []string{n.ID, "unknown"})
	assert.Equal(t, 0, st.UnreadCount(SeedDave))
	assert.Empty(t, st.Notifications(SeedDave, 1, 20, true).Notifications)

	frames := p.For(SeedDave)
	require.NotEmpty(t, frames)
	cf, ok := frames[len(frames)-1].(models.CountFrame)
	require.True(t, ok)
	assert.Equal(t, models.FrameNotificationCountUpdated, cf.Type)
	assert.Equal(t, 0, cf.UnreadCount)

	require.NoError(t, st.DeleteNotification(SeedDave, n.ID))
	assert.Error(t, st.DeleteNotification(SeedDave, n.ID))
	assert.Zero(t, st.Notifications(SeedDave, 1, 20, false).Total)
}

func TestNotificationsPaging(t *testing.T) {
	st, _ := seededState(t)
	for i := 0; i < 5; i++ {
		_, err := st.SendMessage(SeedBob, SeedDave, "ping")
		require.NoError(t, err)
	}
	page := st.Notifications(SeedDave, 2, 2, false)
	assert.Equal(t, 6, page.Total)
	assert.Len(t, page.Notifications, 2)
	assert.Equal(t, 2, page.Page)

	st.MarkAllRead(SeedDave)
	assert.Zero(t, st.UnreadCount(SeedDave))
}

func TestNotificationAction(t *testing.T) {
	t.Run("group invite", func(t *testing.T) {
		st, _ := seededState(t)
		n := st.Notifications(SeedDave, 1, 20, false).Notifications[0]

		require.NoError(t, st.NotificationAction(SeedDave, models.NotificationActionRequest{
			NotificationID: n.ID, Action: models.NotificationActionAccept,
		}))
		g, err := st.Group(SeedDave, SeedGophers)
		require.NoError(t, err)
		assert.Equal(t, models.MemberStatusMember, g.IsMember)
		assert.Zero(t, st.UnreadCount(SeedDave), "acted notification is marked seen")
	})

	t.Run("follow request decline", func(t *testing.T) {
		st, _ := seededState(t)
		n := st.Notifications(SeedCarol, 1, 20, false).Notifications[0]
		require.Equal(t, models.NotificationFollowRequest, n.Type)

		require.NoError(t, st.NotificationAction(SeedCarol, models.NotificationActionRequest{
			NotificationID: n.ID, Action: models.NotificationActionDecline,
		}))
		info, err := st.ProfileInfo(SeedDave, SeedCarol)
		require.NoError(t, err)
		assert.Equal(t, models.FollowStatusNone, info.FollowStatus)
	})

	t.Run("join request", func(t *testing.T) {
		st, _ := seededState(t)
		_, err := st.RequestJoin(SeedCarol, SeedGophers)
		require.NoError(t, err)
		n := st.Notifications(SeedBob, 1, 1, true).Notifications[0]
		require.Equal(t, models.NotificationGroupRequest, n.Type)

		require.NoError(t, st.NotificationAction(SeedBob, models.NotificationActionRequest{
			NotificationID: n.ID, Action: models.NotificationActionAccept,
		}))
		g, err := st.Group(SeedCarol, SeedGophers)
		require.NoError(t, err)
		assert.Equal(t, models.MemberStatusMember, g.IsMember)
	})

	t.Run("non actionable type", func(t *testing.T) {
		st, _ := seededState(t)
		_, err := st.SendMessage(SeedBob, SeedAlice, "hi")
		require.NoError(t, err)
		n := st.Notifications(SeedAlice, 1, 1, false).Notifications[0]

		err = st.NotificationAction(SeedAlice, models.NotificationActionRequest{
			NotificationID: n.ID, Action: models.NotificationActionAccept,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid notification type for action")
		assert.Equal(t, 1, st.UnreadCount(SeedAlice), "failed action leaves it unseen")
	})

	t.Run("unknown id", func(t *testing.T) {
		st, _ := seededState(t)
		err := st.NotificationAction(SeedAlice, models.NotificationActionRequest{
			NotificationID: "missing", Action: models.NotificationActionAccept,
		})
		assert.Equal(t, 404, models.StatusFor(err))
	})
}

func TestChat(t *testing.T) {
	st, p := seededState(t)

	m, err := st.SendMessage(SeedAlice, SeedBob, " hi bob ")
	require.NoError(t, err)
	assert.Equal(t, "hi bob", m.Content)
	assert.Equal(t, models.MessageTypePrivate, m.Type)

	frames := p.For(SeedBob)
	require.GreaterOrEqual(t, len(frames), 2)
	chat, ok := frames[0].(models.ChatInFrame)
	require.True(t, ok)
	assert.Equal(t, m.ID, chat.Message.ID)
	assert.Empty(t, p.For(SeedAlice), "sender gets no echo")

	_, err = st.SendMessage(SeedBob, SeedAlice, "hey alice")
	require.NoError(t, err)

	recent := st.RecentConversations(SeedBob, 10)
	require.Len(t, recent, 1)
	assert.Equal(t, SeedAlice, recent[0].OtherUserID)
	assert.Equal(t, 1, recent[0].UnreadCount)

	conv := st.Conversation(SeedBob, SeedAlice, 0, 0)
	assert.Len(t, conv, 2)
	assert.Zero(t, st.RecentConversations(SeedBob, 10)[0].UnreadCount, "reading the conversation marks it read")

	assert.Equal(t, 403, models.StatusFor(st.DeleteMessage(SeedBob, m.ID)))
	require.NoError(t, st.DeleteMessage(SeedAlice, m.ID))
	assert.Len(t, st.Conversation(SeedBob, SeedAlice, 0, 0), 1)

	_, err = st.SendMessage(SeedAlice, 999, "hello?")
	assert.Equal(t, 404, models.StatusFor(err))
}

func TestGroupMessage(t *testing.T) {
	st, p := seededState(t)

	_, err := st.SendGroupMessage(SeedBob, SeedHikers, "trail is muddy")
	require.NoError(t, err)
	frames := p.For(SeedAlice)
	require.Len(t, frames, 1)
	assert.Equal(t, SeedHikers, frames[0].(models.ChatInFrame).Message.GroupID)

	_, err = st.SendGroupMessage(SeedDave, SeedHikers, "let me in")
	assert.Equal(t, 403, models.StatusFor(err))
}

func TestImages(t *testing.T) {
	st := NewState()
	id := st.SaveImage([]byte("png"), "image/png")
	data, ct, err := st.Image(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
	assert.Equal(t, "image/png", ct)

	_, _, err = st.Image("missing")
	assert.Equal(t, 404, models.StatusFor(err))
}
