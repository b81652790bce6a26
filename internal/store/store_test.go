package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"socialnet/internal/api"
	"socialnet/internal/config"
	"socialnet/internal/mockapi"
	"socialnet/internal/models"
	"socialnet/internal/realtime"
	"socialnet/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	srv *mockapi.Server
	cfg *config.Config
}

func startMock(t *testing.T) harness {
	t.Helper()
	cfg := config.Default()
	srv, base, err := mockapi.StartLocal(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	cfg.APIBaseURL = base
	return harness{srv: srv, cfg: cfg}
}

func (h harness) login(t *testing.T, email string) *api.Client {
	t.Helper()
	c := api.New(h.cfg)
	_, err := c.SignIn(context.Background(), models.Credentials{Email: email, Password: mockapi.SeedPassword})
	require.NoError(t, err)
	_, err = c.CurrentUser(context.Background())
	require.NoError(t, err)
	return c
}

func TestBase_LoadingAndErrors(t *testing.T) {
	b := newBase("test")
	assert.False(t, b.Loading())

	finish := b.start()
	assert.True(t, b.Loading())
	err := b.fail(context.Background(), "act", models.NewValidationError("bad input"))
	assert.EqualError(t, err, "bad input")
	finish()

	assert.False(t, b.Loading())
	assert.Equal(t, "bad input", b.Err())
	b.ClearError()
	assert.Empty(t, b.Err())

	b.fail(context.Background(), "act", models.NewValidationError("again"))
	defer b.start()()
	assert.Empty(t, b.Err(), "starting an action clears the last error")
}

func TestBase_TryStart(t *testing.T) {
	b := newBase("test")
	b.fail(context.Background(), "act", models.NewValidationError("old"))

	finish, ok := b.tryStart()
	require.True(t, ok)
	assert.True(t, b.Loading())
	assert.Empty(t, b.Err())

	_, ok = b.tryStart()
	assert.False(t, ok, "second start while loading is refused")
	finish()
	assert.False(t, b.Loading())

	finish, ok = b.tryStart()
	require.True(t, ok)
	finish()
}

func TestAuthStore(t *testing.T) {
	h := startMock(t)
	ctx := context.Background()
	sessions := session.NewMemoryStore(time.Hour)

	client := api.New(h.cfg)
	auth := NewAuthStore(client, sessions)

	u, err := auth.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.False(t, auth.IsAuthenticated())

	_, err = auth.SignIn(ctx, models.Credentials{Email: "alice@example.com", Password: "nope-nope"})
	require.Error(t, err)
	assert.True(t, models.IsUnauthorized(err))
	assert.NotEmpty(t, auth.Err())
	assert.False(t, auth.Loading())

	u, err = auth.SignIn(ctx, models.Credentials{Email: "alice@example.com", Password: mockapi.SeedPassword})
	require.NoError(t, err)
	assert.Equal(t, mockapi.SeedAlice, u.ID)
	assert.Empty(t, auth.Err())
	assert.True(t, auth.IsAuthenticated())
	assert.Equal(t, mockapi.SeedAlice, auth.CurrentUserID())

	saved, err := sessions.Load(ctx, session.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, mockapi.SeedAlice, saved.UserID)
	assert.Equal(t, client.Token(), saved.Token)

	// A fresh client picks the persisted session back up.
	restored := NewAuthStore(api.New(h.cfg), sessions)
	u, err = restored.Initialize(ctx)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "alice@example.com", u.Email)

	u.Email = "changed"
	assert.Equal(t, "alice@example.com", restored.User().Email, "User hands out copies")

	require.NoError(t, auth.SignOut(ctx))
	assert.False(t, auth.IsAuthenticated())
	assert.Zero(t, auth.CurrentUserID())
	_, err = sessions.Load(ctx, session.DefaultKey)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestAuthStore_InitializeDropsRejectedSession(t *testing.T) {
	h := startMock(t)
	ctx := context.Background()
	sessions := session.NewMemoryStore(time.Hour)
	require.NoError(t, sessions.Save(ctx, "custom", session.Session{Token: "stale", UserID: 9, SavedAt: time.Now()}))

	auth := NewAuthStore(api.New(h.cfg), sessions).WithSessionKey("custom")
	u, err := auth.Initialize(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)

	_, err = sessions.Load(ctx, "custom")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestAuthStore_SignUp(t *testing.T) {
	h := startMock(t)
	auth := NewAuthStore(api.New(h.cfg), nil)

	err := auth.SignUp(context.Background(), models.SignUpRequest{
		Email: "erin@example.com", Password: "password123", FirstName: "Erin", LastName: "Evans",
	})
	require.NoError(t, err)

	err = auth.SignUp(context.Background(), models.SignUpRequest{Email: "erin@example.com"})
	require.Error(t, err)
	assert.Equal(t, err.Error(), auth.Err())

	u, err := auth.SignIn(context.Background(), models.Credentials{Email: "erin@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "Erin Evans", u.DisplayName())
}

func TestProfileStore(t *testing.T) {
	h := startMock(t)
	ctx := context.Background()
	dave := NewProfileStore(h.login(t, "dave@example.com"))

	require.NoError(t, dave.Init(ctx, mockapi.SeedCarol))
	p := dave.Snapshot()
	assert.Equal(t, "Carol", p.User.FirstName)
	assert.Equal(t, models.FollowStatusPending, p.FollowStatus)
	assert.False(t, p.IsOwner)
	assert.False(t, dave.CanViewPrivateProfile())

	_, err := dave.FetchConnections(ctx, ConnectionsFollowers)
	require.Error(t, err)
	assert.True(t, models.IsForbidden(err))

	_, err = dave.FetchConnections(ctx, "friends")
	require.Error(t, err)

	require.NoError(t, dave.ToggleFollow(ctx, models.FollowActionUnfollow))
	assert.Equal(t, models.FollowStatusNone, dave.Snapshot().FollowStatus)

	require.NoError(t, dave.Init(ctx, mockapi.SeedAlice))
	assert.True(t, dave.CanViewPrivateProfile())
	followers, err := dave.FetchConnections(ctx, ConnectionsFollowers)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, mockapi.SeedBob, followers[0].ID)
	assert.Len(t, dave.Snapshot().Followers, 1)

	require.NoError(t, dave.ToggleFollow(ctx, models.FollowActionFollow))
	assert.Equal(t, models.FollowStatusPending, dave.Snapshot().FollowStatus)
}

func TestProfileStore_FallsBackToOwnProfile(t *testing.T) {
	h := startMock(t)
	ctx := context.Background()
	bob := NewProfileStore(h.login(t, "bob@example.com"))

	require.NoError(t, bob.Init(ctx, 999))
	p := bob.Snapshot()
	assert.True(t, p.IsOwner)
	assert.Equal(t, mockapi.SeedBob, p.User.ID)

	require.NoError(t, bob.Init(ctx, 0))
	assert.Equal(t, mockapi.SeedBob, bob.Snapshot().User.ID)

	public, err := bob.ToggleVisibility(ctx)
	require.NoError(t, err)
	assert.False(t, public)
	assert.False(t, bob.Snapshot().User.IsPublic)
	assert.True(t, bob.CanViewPrivateProfile(), "owners always see their own profile")
}

func TestProfileStore_RespondToRequest(t *testing.T) {
	h := startMock(t)
	ctx := context.Background()
	carol := NewProfileStore(h.login(t, "carol@example.com"))

	require.NoError(t, carol.Init(ctx, mockapi.SeedDave))
	require.True(t, carol.Snapshot().IsRequestToMe)

	require.NoError(t, carol.RespondToRequest(ctx, models.FollowActionAccept))
	assert.False(t, carol.Snapshot().IsRequestToMe)

	err := carol.RespondToRequest(ctx, models.FollowActionAccept)
	require.Error(t, err)
	assert.True(t, models.IsNotFound(err))
}

func TestProfileStore_InitUnauthenticated(t *testing.T) {
	h := startMock(t)
	s := NewProfileStore(api.New(h.cfg))
	err := s.Init(context.Background(), mockapi.SeedAlice)
	require.Error(t, err)
	assert.True(t, models.IsUnauthorized(err))
	assert.NotEmpty(t, s.Err())
}

func TestGroupStore_Browse(t *testing.T) {
	h := startMock(t)
	ctx := context.Background()
	dave := NewGroupStore(h.login(t, "dave@example.com"))

	require.NoError(t, dave.FetchGroups(ctx, "", ""))
	assert.Len(t, dave.Groups(), 2)
	invited := dave.InvitedGroups()
	require.Len(t, invited, 1)
	assert.Equal(t, mockapi.SeedGophers, invited[0].ID)
	assert.Empty(t, dave.MemberGroups())
	assert.Equal(t, models.DefaultGroupImage, invited[0].Image)

	require.NoError(t, dave.FetchGroups(ctx, models.GroupFilterAll, "hikers"))
	require.Len(t, dave.Groups(), 1)
	assert.Equal(t, "Weekend Hikers", dave.Groups()[0].Name)

	require.Error(t, dave.FetchGroups(ctx, "bogus", ""))
	assert.Empty(t, dave.Groups(), "a failed browse clears the list")
	assert.NotEmpty(t, dave.Err())
}

func TestGroupStore_Membership(t *testing.T) {
	h := startMock(t)
	ctx := context.Background()
	dave := NewGroupStore(h.login(t, "dave@example.com"))
	require.NoError(t, dave.FetchGroups(ctx, models.GroupFilterAll, ""))

	before, ok := dave.GroupByID(mockapi.SeedGophers)
	require.True(t, ok)
	require.NoError(t, dave.AcceptGroupInvite(ctx, mockapi.SeedGophers))
	after, _ := dave.GroupByID(mockapi.SeedGophers)
	assert.Equal(t, models.MemberStatusMember, after.MemberStatus)
	assert.Equal(t, before.MemberCount+1, after.MemberCount)
	assert.Len(t, dave.MemberGroups(), 1)

	status, err := dave.RequestJoinGroup(ctx, mockapi.SeedHikers)
	require.NoError(t, err)
	assert.Equal(t, models.MemberStatusRequested, status)
	hikers, _ := dave.GroupByID(mockapi.SeedHikers)
	assert.Equal(t, models.MemberStatusRequested, hikers.MemberStatus)

	created, err := dave.CreateGroup(ctx, "Chess Club", "Weekly games", "")
	require.NoError(t, err)
	assert.Equal(t, models.MemberStatusCreator, created.MemberStatus)
	assert.Equal(t, created.ID, dave.Groups()[0].ID, "new groups go first")
	assert.Len(t, dave.CreatedGroups(), 1)

	require.NoError(t, dave.InviteUserToGroup(ctx, created.ID, mockapi.SeedAlice))

	alice := NewGroupStore(h.login(t, "alice@example.com"))
	require.NoError(t, alice.FetchGroups(ctx, models.GroupFilterInvited, ""))
	require.Len(t, alice.InvitedGroups(), 1)
	require.NoError(t, alice.DeclineGroupInvite(ctx, created.ID))
	g, _ := alice.GroupByID(created.ID)
	assert.Equal(t, models.MemberStatusNone, g.MemberStatus)
}

func TestGroupStore_OpenGroup(t *testing.T) {
	h := startMock(t)
	ctx := context.Background()
	bob := NewGroupStore(h.login(t, "bob@example.com"))

	g, err := bob.FetchGroup(ctx, mockapi.SeedHikers)
	require.NoError(t, err)
	assert.Equal(t, models.MemberStatusMember, g.MemberStatus)
	cur, ok := bob.CurrentGroup()
	require.True(t, ok)
	assert.Equal(t, mockapi.SeedHikers, cur.ID)
	assert.Len(t, bob.Groups(), 1, "fetched group is upserted into the list")

	again, err := bob.FetchGroup(ctx, mockapi.SeedHikers)
	require.NoError(t, err)
	assert.Equal(t, g, again)
	assert.Len(t, bob.Groups(), 1)

	posts, err := bob.FetchGroupPosts(ctx, mockapi.SeedHikers)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Len(t, bob.CurrentGroupPosts(), 1)

	require.NoError(t, bob.CreatePost(ctx, mockapi.SeedHikers, "trail report"))
	assert.Len(t, bob.CurrentGroupPosts(), 2)
	assert.Equal(t, "trail report", bob.CurrentGroupPosts()[0].Content)
	assert.False(t, bob.Loading())

	events, err := bob.FetchGroupEvents(ctx, mockapi.SeedHikers)
	require.NoError(t, err)
	require.Len(t, events, 1)
	eventID := events[0].ID

	require.NoError(t, bob.AttendEvent(ctx, eventID, models.VoteGoing))
	assert.Equal(t, 1, bob.CurrentGroupEvents()[0].Attendees)
	require.NoError(t, bob.AttendEvent(ctx, eventID, models.VoteGoing))
	assert.Equal(t, 1, bob.CurrentGroupEvents()[0].Attendees, "repeat vote does not double count")
	require.NoError(t, bob.AttendEvent(ctx, eventID, models.VoteNotGoing))
	assert.Equal(t, 0, bob.CurrentGroupEvents()[0].Attendees)
	require.NoError(t, bob.AttendEvent(ctx, eventID, models.VoteNotGoing))
	assert.Equal(t, 0, bob.CurrentGroupEvents()[0].Attendees)

	created, err := bob.CreateEvent(ctx, mockapi.SeedHikers, "Night hike", "bring lamps", time.Now().Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, created.ID, bob.CurrentGroupEvents()[0].ID)

	_, err = bob.FetchGroup(ctx, 404)
	require.Error(t, err)
	assert.True(t, models.IsNotFound(err))
	_, ok = bob.CurrentGroup()
	assert.False(t, ok)
}

func TestGroupStore_NonMemberContent(t *testing.T) {
	h := startMock(t)
	ctx := context.Background()
	dave := NewGroupStore(h.login(t, "dave@example.com"))

	_, err := dave.FetchGroupEvents(ctx, mockapi.SeedHikers)
	require.Error(t, err)
	assert.True(t, models.IsForbidden(err))

	_, err = dave.FetchGroupPosts(ctx, mockapi.SeedHikers)
	require.Error(t, err)
	assert.Empty(t, dave.CurrentGroupPosts())
}

type toast struct{ message, kind string }

func TestPostStore(t *testing.T) {
	h := startMock(t)
	ctx := context.Background()

	var mu sync.Mutex
	var toasts []toast
	bob := NewPostStore(h.login(t, "bob@example.com"), func(message, kind string) {
		mu.Lock()
		toasts = append(toasts, toast{message, kind})
		mu.Unlock()
	})

	posts, err := bob.FetchPosts(ctx, PostFilter{})
	require.NoError(t, err)
	start := len(posts)
	assert.NotZero(t, start)

	created, err := bob.CreatePost(ctx, PostInput{
		Content: "hello world",
		Privacy: models.PrivacyPublic,
		Image:   &models.Upload{Filename: "a.png", ContentType: "image/png", Data: []byte("\x89PNG\r\n\x1a\n")},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.Image)
	assert.Equal(t, created.ID, bob.Posts()[0].ID)
	assert.Len(t, bob.Posts(), start+1)

	_, err = bob.CreatePost(ctx, PostInput{Content: "   "})
	require.Error(t, err)

	comment, err := bob.AddComment(ctx, created.ID, "first!")
	require.NoError(t, err)
	assert.Equal(t, "first!", comment.Content)
	assert.Len(t, bob.Posts()[0].Comments, 1)

	comments, err := bob.Comments(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)

	mine, err := bob.FetchPosts(ctx, PostFilter{Type: models.FeedUser, ID: mockapi.SeedBob})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	_, err = bob.FetchPosts(ctx, PostFilter{Type: models.FeedGroup, ID: 404})
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []toast{
		{"Post created successfully!", ToastSuccess},
		{"Failed to create post", ToastError},
		{"Failed to load posts", ToastError},
	}, toasts)
}

func TestNotificationStore_Local(t *testing.T) {
	s := NewNotificationStore(nil)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	n := s.Add(models.Notification{Type: models.NotificationPrivate, Message: "hi"})
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, fixed, n.CreatedAt)
	assert.False(t, n.Seen)

	s.Add(models.Notification{ID: n.ID, Type: models.NotificationPrivate, Message: "edited", Seen: true})
	require.Len(t, s.Notifications(), 1)
	assert.Equal(t, "edited", s.Notifications()[0].Message)
	assert.Zero(t, s.UnreadCount())

	alice := models.User{ID: 1, FirstName: "Alice", Nickname: "alice"}
	group := models.GroupView{ID: 3, Name: "Hikers"}

	f := s.CreateFollowRequest(alice, 2)
	assert.Equal(t, models.NotificationFollowRequest, f.Type)
	assert.Equal(t, "alice has requested to follow you.", f.Message)
	assert.Equal(t, 1, f.FromUserID)

	inv := s.CreateGroupInvitation(group, alice, 2)
	assert.Equal(t, "You've been invited to join the group Hikers.", inv.Message)
	assert.Equal(t, 3, inv.GroupID)

	jr := s.CreateGroupJoinRequest(group, alice, 9)
	assert.Equal(t, models.NotificationGroupRequest, jr.Type)
	assert.Equal(t, 9, jr.UserID)

	ev := s.CreateGroupEvent(group, models.EventView{Title: "Picnic"}, 2)
	assert.Equal(t, "A new event 'Picnic' has been created in group 'Hikers'.", ev.Message)

	assert.Equal(t, 4, s.UnreadCount())
	assert.Len(t, s.Notifications(), 5)
}

func TestNotificationStore_Server(t *testing.T) {
	h := startMock(t)
	ctx := context.Background()
	carol := NewNotificationStore(h.login(t, "carol@example.com"))

	assert.Equal(t, 1, carol.FetchUnreadCount(ctx))
	list, err := carol.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	req := list[0]
	assert.Equal(t, models.NotificationFollowRequest, req.Type)

	msg, err := carol.Act(ctx, req.ID, models.NotificationActionAccept)
	require.NoError(t, err)
	assert.NotEmpty(t, msg)
	assert.Zero(t, carol.UnreadCount())
	assert.Zero(t, carol.FetchUnreadCount(ctx))

	page, err := carol.FetchUnseen(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Notifications)
	assert.False(t, page.HasMore)
	assert.Empty(t, carol.Notifications(), "page 1 replaces the list")

	_, err = carol.Fetch(ctx)
	require.NoError(t, err)
	require.NoError(t, carol.ClearAll(ctx))
	assert.Empty(t, carol.Notifications())

	_, err = carol.Act(ctx, "missing", models.NotificationActionAccept)
	require.Error(t, err)
	assert.True(t, models.IsNotFound(err))
}

func TestNotificationStore_Paging(t *testing.T) {
	h := startMock(t)
	ctx := context.Background()
	dave := h.login(t, "dave@example.com")
	carolClient := h.login(t, "carol@example.com")
	carol := NewNotificationStore(carolClient)

	// Each chat message from dave adds an unseen notification for carol.
	for i := 0; i < 3; i++ {
		_, err := dave.SendMessage(ctx, mockapi.SeedCarol, "hello")
		require.NoError(t, err)
	}

	first, err := carol.FetchUnseen(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, first.Notifications, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, 4, first.Total)

	second, err := carol.FetchUnseen(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Page)
	assert.Len(t, carol.Notifications(), 4, "later pages append")

	ids := []string{first.Notifications[0].ID, first.Notifications[1].ID}
	require.NoError(t, carol.MarkMultipleAsRead(ctx, ids))
	assert.Equal(t, 2, carol.UnreadCount())
	require.NoError(t, carol.MarkAsRead(ctx, second.Notifications[0].ID))
	assert.Equal(t, 1, carol.UnreadCount())
	assert.Equal(t, 1, carol.FetchUnreadCount(ctx))

	require.NoError(t, carol.Remove(ctx, ids[0]))
	assert.Len(t, carol.Notifications(), 3)
}

func TestNotificationStore_Listen(t *testing.T) {
	h := startMock(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	aliceClient := h.login(t, "alice@example.com")
	bob := h.login(t, "bob@example.com")

	rt := realtime.New(h.cfg, aliceClient.Token)
	require.NoError(t, rt.Connect(ctx))
	t.Cleanup(rt.Disconnect)

	alice := NewNotificationStore(aliceClient)
	alice.Listen(ctx, rt)

	_, err := bob.SendMessage(ctx, mockapi.SeedAlice, "ping")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return alice.UnreadCount() == 1 }, 3*time.Second, 10*time.Millisecond)
	n := alice.Notifications()[0]
	assert.Equal(t, models.NotificationPrivate, n.Type)
	assert.Equal(t, mockapi.SeedBob, n.FromUserID)
}

type fakeSocket struct {
	mu        sync.Mutex
	connected bool
	sent      []any
	handlers  []realtime.MessageHandler
}

func (f *fakeSocket) Status() realtime.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return realtime.Status{Connected: f.connected}
}

func (f *fakeSocket) Send(frame any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return realtime.ErrNotConnected
	}
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeSocket) OnMessage(h realtime.MessageHandler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, h)
	return func() {}
}

func (f *fakeSocket) emit(ev realtime.Event) {
	f.mu.Lock()
	hs := append([]realtime.MessageHandler(nil), f.handlers...)
	f.mu.Unlock()
	for _, h := range hs {
		h(ev)
	}
}

func TestChatStore_HTTPFallback(t *testing.T) {
	h := startMock(t)
	ctx := context.Background()
	aliceClient := h.login(t, "alice@example.com")
	chat := NewChatStore(aliceClient, &fakeSocket{})
	assert.Equal(t, mockapi.SeedAlice, chat.CurrentUserID())

	_, err := chat.SendMessage(ctx, "nobody home")
	require.Error(t, err, "no active chat")

	require.Error(t, chat.SetActive("channel", 1))
	require.NoError(t, chat.SetActive(ChatPrivate, mockapi.SeedBob))
	m, err := chat.SendMessage(ctx, "over http")
	require.NoError(t, err)
	assert.Positive(t, m.ID)
	require.Len(t, chat.ActiveMessages(), 1)

	bob := h.login(t, "bob@example.com")
	_, err = bob.SendMessage(ctx, mockapi.SeedAlice, "reply")
	require.NoError(t, err)

	msgs, err := chat.LoadConversation(ctx, mockapi.SeedBob)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
	assert.Len(t, chat.ActiveMessages(), 2, "loaded history is merged without duplicates")

	convs, err := chat.RecentConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, mockapi.SeedBob, convs[0].OtherUserID)

	require.NoError(t, chat.DeleteMessage(ctx, m.ID))
	assert.Len(t, chat.ActiveMessages(), 1)

	require.NoError(t, chat.SetActive(ChatGroup, mockapi.SeedHikers))
	_, err = chat.SendMessage(ctx, "group needs a socket")
	assert.ErrorIs(t, err, realtime.ErrNotConnected)
}

func TestChatStore_Socket(t *testing.T) {
	h := startMock(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ws := &fakeSocket{connected: true}
	chat := NewChatStore(h.login(t, "alice@example.com"), ws)
	chat.Listen(ctx, ws)

	require.NoError(t, chat.SetActive(ChatGroup, mockapi.SeedHikers))
	m, err := chat.SendMessage(ctx, "hello hikers")
	require.NoError(t, err)
	assert.Negative(t, m.ID)
	assert.Equal(t, mockapi.SeedHikers, m.GroupID)
	assert.Equal(t, []any{realtime.GroupFrame(mockapi.SeedHikers, "hello hikers")}, ws.sent)

	inbound := &models.Message{ID: 40, SenderID: mockapi.SeedBob, GroupID: mockapi.SeedHikers, Content: "hey", Type: models.MessageTypeGroup}
	ws.emit(realtime.Event{Type: models.FrameMessage, Message: inbound})
	ws.emit(realtime.Event{Type: models.FrameMessage, Message: inbound})
	ws.emit(realtime.Event{Status: models.FrameStatusSuccess, Text: "Message sent"})
	assert.Len(t, chat.ActiveMessages(), 2)

	require.NoError(t, chat.SetActive(ChatPrivate, mockapi.SeedBob))
	ws.emit(realtime.Event{Type: models.FrameMessage, Message: &models.Message{
		ID: 41, SenderID: mockapi.SeedBob, ReceiverID: mockapi.SeedAlice, Content: "dm", Type: models.MessageTypePrivate,
	}})
	ws.emit(realtime.Event{Type: models.FrameMessage, Message: &models.Message{
		ID: 42, SenderID: mockapi.SeedCarol, ReceiverID: mockapi.SeedAlice, Content: "other", Type: models.MessageTypePrivate,
	}})
	active := chat.ActiveMessages()
	require.Len(t, active, 1)
	assert.Equal(t, "dm", active[0].Content)
	assert.Len(t, chat.Messages(), 4)

	_, err = chat.SendMessage(ctx, "via socket")
	require.NoError(t, err)
	assert.Equal(t, realtime.ChatFrame(mockapi.SeedBob, "via socket"), ws.sent[1])
	assert.NotEmpty(t, chat.Emojis())
}

// slowBrowse blocks BrowseGroups until release is closed.
type slowBrowse struct {
	GroupAPI
	calls   atomic.Int32
	release chan struct{}
}

func (s *slowBrowse) APIBase() string { return "http://api.test" }

func (s *slowBrowse) BrowseGroups(ctx context.Context, _ models.GroupBrowseRequest) ([]models.Group, error) {
	s.calls.Add(1)
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []models.Group{{ID: 1, Title: "Gophers"}}, nil
}

func TestGroupStore_FetchGroupsSkipsWhileLoading(t *testing.T) {
	slow := &slowBrowse{release: make(chan struct{})}
	gs := NewGroupStore(slow)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	var returned atomic.Int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, gs.FetchGroups(ctx, models.GroupFilterAll, ""))
			returned.Add(1)
		}()
	}

	require.Eventually(t, func() bool { return returned.Load() == callers-1 }, 3*time.Second, 5*time.Millisecond)
	assert.True(t, gs.Loading())
	close(slow.release)
	wg.Wait()

	assert.EqualValues(t, 1, slow.calls.Load())
	assert.False(t, gs.Loading())
	assert.Len(t, gs.Groups(), 1)
}

func TestClonePosts(t *testing.T) {
	posts := []models.PostView{
		{ID: 1, Comments: []models.CommentView{{ID: 10, Content: "hi"}}},
		{ID: 2},
	}
	out := clonePosts(posts)
	out[0].Comments[0].Content = "changed"
	out[0].Comments = append(out[0].Comments, models.CommentView{ID: 11})

	assert.Equal(t, "hi", posts[0].Comments[0].Content)
	assert.Len(t, posts[0].Comments, 1)
	assert.Nil(t, out[1].Comments)
	assert.Empty(t, clonePosts(nil))
}

func TestPostStore_SnapshotsAreCopies(t *testing.T) {
	h := startMock(t)
	ctx := context.Background()
	bob := NewPostStore(h.login(t, "bob@example.com"), nil)

	created, err := bob.CreatePost(ctx, PostInput{Content: "copy check", Privacy: models.PrivacyPublic})
	require.NoError(t, err)
	_, err = bob.FetchPosts(ctx, PostFilter{})
	require.NoError(t, err)
	_, err = bob.AddComment(ctx, created.ID, "original")
	require.NoError(t, err)
	_, err = bob.Comments(ctx, created.ID)
	require.NoError(t, err)

	find := func(posts []models.PostView) *models.PostView {
		for i := range posts {
			if posts[i].ID == created.ID {
				return &posts[i]
			}
		}
		return nil
	}

	snap := bob.Posts()
	p := find(snap)
	require.NotNil(t, p)
	require.Len(t, p.Comments, 1)
	p.Comments[0].Content = "mutated"
	p.Comments = append(p.Comments, models.CommentView{Content: "extra"})

	fresh := find(bob.Posts())
	require.NotNil(t, fresh)
	require.Len(t, fresh.Comments, 1)
	assert.Equal(t, "original", fresh.Comments[0].Content)

	fetched, err := bob.FetchPosts(ctx, PostFilter{})
	require.NoError(t, err)
	if fp := find(fetched); fp != nil && len(fp.Comments) > 0 {
		fp.Comments[0].Content = "mutated again"
		assert.NotEqual(t, "mutated again", find(bob.Posts()).Comments[0].Content)
	}
}

func TestNotificationStore_ListenTopLevelFrame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSocket{connected: true}
	s := NewNotificationStore(nil)
	s.Listen(ctx, src)

	ev, err := realtime.DecodeEvent([]byte(`{"type":"new_notification","id":"n1","message":"bob wants to follow you"}`))
	require.NoError(t, err)
	src.emit(ev)

	list := s.Notifications()
	require.Len(t, list, 1)
	assert.Equal(t, "n1", list[0].ID)
	assert.Equal(t, "bob wants to follow you", list[0].Message)

	nested, err := realtime.DecodeEvent([]byte(`{"type":"notification","notification":{"id":"n2","message":"nested"}}`))
	require.NoError(t, err)
	src.emit(nested)

	empty, err := realtime.DecodeEvent([]byte(`{"type":"new_notification"}`))
	require.NoError(t, err)
	src.emit(empty)

	list = s.Notifications()
	require.Len(t, list, 2, "frames without notification fields are ignored")
	assert.Equal(t, "nested", list[1].Message)
}
