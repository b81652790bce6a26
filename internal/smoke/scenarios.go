package smoke

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path"
	"slices"
	"time"

	"github.com/google/uuid"

	"socialnet/internal/api"
	"socialnet/internal/media"
	"socialnet/internal/models"
	"socialnet/internal/realtime"
	"socialnet/internal/store"
)

// BuiltinScenarios returns the bundled scenarios in their default run order.
func BuiltinScenarios() []Scenario {
	return []Scenario{
		{Name: "auth", Description: "sign in, session check and sign out", Run: runAuth},
		{Name: "unauthorized", Description: "protected endpoints refuse anonymous callers", Run: runUnauthorized},
		{Name: "profile-follow", Description: "follow request to a private profile and its acceptance", Run: runProfileFollow},
		{Name: "groups", Description: "create a group, invite and join", Run: runGroups},
		{Name: "group-events", Description: "create an event and vote on it", Run: runGroupEvents},
		{Name: "posts", Description: "post with an image, comment and feed visibility", Run: runPosts},
		{Name: "notifications", Description: "chat notifications, unread count and mark read", Run: runNotifications},
		{Name: "notification-actions", Description: "accept and decline group invites from notifications", Run: runNotificationActions},
		{Name: "chat", Description: "private chat over HTTP", Run: runChat},
		{Name: "websocket", Description: "realtime subscribe and chat delivery", Run: runWebSocket},
	}
}

func shortID() string {
	return uuid.NewString()[:8]
}

func runAuth(ctx context.Context, env *Env) error {
	creds := env.users[RolePrimary]
	var c *api.Client

	if err := env.Step("sign in", func() (string, error) {
		var err error
		c, err = env.Login(ctx, creds.Email, creds.Password)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("user id %d", c.UserID()), nil
	}); err != nil {
		return err
	}

	if err := env.Step("current user", func() (string, error) {
		u, err := c.CurrentUser(ctx)
		if err != nil {
			return "", err
		}
		if err := expect(u != nil && u.Email == creds.Email, "expected %s, got %+v", creds.Email, u); err != nil {
			return "", err
		}
		return u.DisplayName(), nil
	}); err != nil {
		return err
	}

	if err := env.Step("wrong password rejected", func() (string, error) {
		_, err := env.Anonymous().SignIn(ctx, models.Credentials{Email: creds.Email, Password: creds.Password + "-wrong"})
		return "", expect(models.IsUnauthorized(err), "expected 401, got %v", err)
	}); err != nil {
		return err
	}

	return env.Step("sign out", func() (string, error) {
		if err := c.SignOut(ctx); err != nil {
			return "", err
		}
		u, err := c.CurrentUser(ctx)
		if err != nil {
			return "", err
		}
		return "", expect(u == nil, "session still active for %s", u.DisplayName())
	})
}

func runUnauthorized(ctx context.Context, env *Env) error {
	anon := env.Anonymous()

	if err := env.Step("recent chats require sign-in", func() (string, error) {
		_, err := anon.RecentConversations(ctx, 10)
		if err := expect(models.IsUnauthorized(err), "expected 401, got %v", err); err != nil {
			return "", err
		}
		return err.Error(), nil
	}); err != nil {
		return err
	}

	if err := env.Step("notifications require sign-in", func() (string, error) {
		_, err := anon.UnreadCount(ctx)
		return "", expect(models.IsUnauthorized(err), "expected 401, got %v", err)
	}); err != nil {
		return err
	}

	if err := env.Step("profile requires sign-in", func() (string, error) {
		u, err := anon.CurrentUser(ctx)
		if err != nil {
			return "", err
		}
		return "", expect(u == nil, "anonymous client resolved to %s", u.DisplayName())
	}); err != nil {
		return err
	}

	return env.Step("websocket requires sign-in", func() (string, error) {
		err := env.Realtime(anon, realtime.WithReconnect(0, 0)).Connect(ctx)
		return "", expect(models.IsUnauthorized(err), "expected 401 handshake, got %v", err)
	})
}

func runProfileFollow(ctx context.Context, env *Env) error {
	follower, err := env.As(ctx, RoleOutsider)
	if err != nil {
		return err
	}
	owner, err := env.As(ctx, RolePrivate)
	if err != nil {
		return err
	}
	viewer := store.NewProfileStore(follower)
	target := store.NewProfileStore(owner)

	if err := env.Step("view private profile", func() (string, error) {
		if err := viewer.Init(ctx, owner.UserID()); err != nil {
			return "", err
		}
		p := viewer.Snapshot()
		if err := expect(!p.IsOwner && p.User.ID == owner.UserID(), "loaded profile %d instead of %d", p.User.ID, owner.UserID()); err != nil {
			return "", err
		}
		return "follow status " + string(p.FollowStatus), nil
	}); err != nil {
		return err
	}

	if err := env.Step("request follow", func() (string, error) {
		if viewer.Snapshot().FollowStatus == models.FollowStatusAccepted {
			if err := viewer.ToggleFollow(ctx, models.FollowActionUnfollow); err != nil {
				return "", err
			}
		}
		if viewer.Snapshot().FollowStatus == models.FollowStatusNone {
			if err := viewer.ToggleFollow(ctx, models.FollowActionFollow); err != nil {
				return "", err
			}
		}
		if err := viewer.Init(ctx, owner.UserID()); err != nil {
			return "", err
		}
		st := viewer.Snapshot().FollowStatus
		return string(st), expect(st == models.FollowStatusPending, "expected pending, got %s", st)
	}); err != nil {
		return err
	}

	if err := env.Step("owner sees request", func() (string, error) {
		if err := target.Init(ctx, follower.UserID()); err != nil {
			return "", err
		}
		return "", expect(target.Snapshot().IsRequestToMe, "no pending request from %d", follower.UserID())
	}); err != nil {
		return err
	}

	if err := env.Step("owner accepts", func() (string, error) {
		if err := target.RespondToRequest(ctx, models.FollowActionAccept); err != nil {
			return "", err
		}
		return "", expect(!target.Snapshot().IsRequestToMe, "request still shown after accepting")
	}); err != nil {
		return err
	}

	if err := env.Step("follower sees connections", func() (string, error) {
		if err := viewer.Init(ctx, owner.UserID()); err != nil {
			return "", err
		}
		if !viewer.CanViewPrivateProfile() {
			return "", fmt.Errorf("private profile still hidden, status %s", viewer.Snapshot().FollowStatus)
		}
		users, err := viewer.FetchConnections(ctx, store.ConnectionsFollowers)
		if err != nil {
			return "", err
		}
		found := slices.ContainsFunc(users, func(u models.User) bool { return u.ID == follower.UserID() })
		return fmt.Sprintf("%d followers", len(users)), expect(found, "follower missing from list")
	}); err != nil {
		return err
	}

	return env.Step("unfollow", func() (string, error) {
		if err := viewer.ToggleFollow(ctx, models.FollowActionUnfollow); err != nil {
			return "", err
		}
		if err := viewer.Init(ctx, owner.UserID()); err != nil {
			return "", err
		}
		st := viewer.Snapshot().FollowStatus
		return "", expect(st == models.FollowStatusNone, "expected none, got %s", st)
	})
}

// newGroup creates a uniquely named group as the primary user.
func newGroup(ctx context.Context, env *Env, gs *store.GroupStore, label string) (models.GroupView, error) {
	var g models.GroupView
	err := env.Step("create "+label, func() (string, error) {
		var err error
		g, err = gs.CreateGroup(ctx, "Smoke "+label+" "+shortID(), "created by the smoke runner", "")
		if err != nil {
			return "", err
		}
		if err := expect(g.MemberStatus == models.MemberStatusCreator, "creator status is %q", g.MemberStatus); err != nil {
			return "", err
		}
		return fmt.Sprintf("group %d", g.ID), nil
	})
	return g, err
}

func runGroups(ctx context.Context, env *Env) error {
	primary, err := env.As(ctx, RolePrimary)
	if err != nil {
		return err
	}
	outsider, err := env.As(ctx, RoleOutsider)
	if err != nil {
		return err
	}
	owner := store.NewGroupStore(primary)
	joiner := store.NewGroupStore(outsider)

	if err := env.Step("browse groups", func() (string, error) {
		if err := owner.FetchGroups(ctx, models.GroupFilterAll, ""); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d groups", len(owner.Groups())), nil
	}); err != nil {
		return err
	}

	g, err := newGroup(ctx, env, owner, "group")
	if err != nil {
		return err
	}

	if err := env.Step("search finds new group", func() (string, error) {
		if err := owner.FetchGroups(ctx, models.GroupFilterAll, g.Name); err != nil {
			return "", err
		}
		_, ok := owner.GroupByID(g.ID)
		return "", expect(ok, "group %d not in search results", g.ID)
	}); err != nil {
		return err
	}

	if err := env.Step("invite outsider", func() (string, error) {
		return "", owner.InviteUserToGroup(ctx, g.ID, outsider.UserID())
	}); err != nil {
		return err
	}

	if err := env.Step("outsider sees invite", func() (string, error) {
		if err := joiner.FetchGroups(ctx, models.GroupFilterInvited, ""); err != nil {
			return "", err
		}
		found := slices.ContainsFunc(joiner.InvitedGroups(), func(v models.GroupView) bool { return v.ID == g.ID })
		return "", expect(found, "group %d not among invites", g.ID)
	}); err != nil {
		return err
	}

	if err := env.Step("accept invite", func() (string, error) {
		if err := joiner.AcceptGroupInvite(ctx, g.ID); err != nil {
			return "", err
		}
		v, _ := joiner.GroupByID(g.ID)
		return "", expect(v.MemberStatus == models.MemberStatusMember, "status is %q", v.MemberStatus)
	}); err != nil {
		return err
	}

	return env.Step("open group as member", func() (string, error) {
		v, err := store.NewGroupStore(outsider).FetchGroup(ctx, g.ID)
		if err != nil {
			return "", err
		}
		if err := expect(v.MemberStatus.IsMember(), "status is %q", v.MemberStatus); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d members", v.MemberCount), expect(v.MemberCount == 2, "expected 2 members, got %d", v.MemberCount)
	})
}

func runGroupEvents(ctx context.Context, env *Env) error {
	primary, err := env.As(ctx, RolePrimary)
	if err != nil {
		return err
	}
	gs := store.NewGroupStore(primary)
	g, err := newGroup(ctx, env, gs, "events")
	if err != nil {
		return err
	}

	var ev models.EventView
	if err := env.Step("create event", func() (string, error) {
		var err error
		ev, err = gs.CreateEvent(ctx, g.ID, "Smoke meetup", "checking events", time.Now().Add(72*time.Hour))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("event %d", ev.ID), nil
	}); err != nil {
		return err
	}

	if err := env.Step("list events", func() (string, error) {
		events, err := gs.FetchGroupEvents(ctx, g.ID)
		if err != nil {
			return "", err
		}
		found := slices.ContainsFunc(events, func(e models.EventView) bool { return e.ID == ev.ID })
		return fmt.Sprintf("%d events", len(events)), expect(found, "event %d missing", ev.ID)
	}); err != nil {
		return err
	}

	attendees := func() int {
		for _, e := range gs.CurrentGroupEvents() {
			if e.ID == ev.ID {
				return e.Attendees
			}
		}
		return -1
	}

	if err := env.Step("vote going", func() (string, error) {
		if _, err := gs.FetchGroup(ctx, g.ID); err != nil {
			return "", err
		}
		if err := gs.AttendEvent(ctx, ev.ID, models.VoteGoing); err != nil {
			return "", err
		}
		n := attendees()
		return fmt.Sprintf("%d going", n), expect(n == 1, "expected 1 attendee, got %d", n)
	}); err != nil {
		return err
	}

	return env.Step("vote not going", func() (string, error) {
		if err := gs.AttendEvent(ctx, ev.ID, models.VoteNotGoing); err != nil {
			return "", err
		}
		n := attendees()
		return "", expect(n == 0, "expected 0 attendees, got %d", n)
	})
}

// samplePNG draws a small gradient to upload.
func samplePNG() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func runPosts(ctx context.Context, env *Env) error {
	primary, err := env.As(ctx, RolePrimary)
	if err != nil {
		return err
	}
	friend, err := env.As(ctx, RoleFriend)
	if err != nil {
		return err
	}
	ps := store.NewPostStore(primary, nil)

	if err := env.Step("load feed", func() (string, error) {
		posts, err := ps.FetchPosts(ctx, store.PostFilter{})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d posts", len(posts)), nil
	}); err != nil {
		return err
	}

	var upload models.Upload
	if err := env.Step("prepare image", func() (string, error) {
		raw, err := samplePNG()
		if err != nil {
			return "", err
		}
		upload, err = media.PrepareImage(bytes.NewReader(raw), env.Config.ImageMaxSide)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s, %d bytes", upload.ContentType, len(upload.Data)), nil
	}); err != nil {
		return err
	}

	content := "Smoke post " + shortID()
	var post models.PostView
	if err := env.Step("create post with image", func() (string, error) {
		var err error
		post, err = ps.CreatePost(ctx, store.PostInput{Content: content, Privacy: models.PrivacyPublic, Image: &upload})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("post %d", post.ID), expect(post.Image != "", "post has no image")
	}); err != nil {
		return err
	}

	if err := env.Step("fetch image", func() (string, error) {
		data, contentType, err := primary.FetchImage(ctx, path.Base(post.Image))
		if err != nil {
			return "", err
		}
		return contentType, expect(len(data) > 0, "empty image body")
	}); err != nil {
		return err
	}

	if err := env.Step("comment", func() (string, error) {
		if _, err := ps.AddComment(ctx, post.ID, "looks good"); err != nil {
			return "", err
		}
		comments, err := ps.Comments(ctx, post.ID)
		if err != nil {
			return "", err
		}
		return "", expect(len(comments) == 1, "expected 1 comment, got %d", len(comments))
	}); err != nil {
		return err
	}

	return env.Step("friend sees post", func() (string, error) {
		posts, err := store.NewPostStore(friend, nil).FetchPosts(ctx, store.PostFilter{Type: models.FeedUser, ID: primary.UserID()})
		if err != nil {
			return "", err
		}
		found := slices.ContainsFunc(posts, func(p models.PostView) bool { return p.ID == post.ID })
		return "", expect(found, "post %d not in the author's feed", post.ID)
	})
}

func runNotifications(ctx context.Context, env *Env) error {
	primary, err := env.As(ctx, RolePrimary)
	if err != nil {
		return err
	}
	friend, err := env.As(ctx, RoleFriend)
	if err != nil {
		return err
	}
	ns := store.NewNotificationStore(primary)
	content := "smoke ping " + shortID()

	var before int
	if err := env.Step("trigger notification", func() (string, error) {
		before = ns.FetchUnreadCount(ctx)
		_, err := friend.SendMessage(ctx, primary.UserID(), content)
		return fmt.Sprintf("%d unread before", before), err
	}); err != nil {
		return err
	}

	if err := env.Step("unread count rises", func() (string, error) {
		after := ns.FetchUnreadCount(ctx)
		return fmt.Sprintf("%d unread", after), expect(after == before+1, "expected %d unread, got %d", before+1, after)
	}); err != nil {
		return err
	}

	var target models.Notification
	if err := env.Step("fetch unseen", func() (string, error) {
		for p := 1; ; p++ {
			page, err := ns.FetchUnseen(ctx, p, 50)
			if err != nil {
				return "", err
			}
			for _, n := range page.Notifications {
				if n.Type == models.NotificationPrivate && n.SubMessage == content {
					target = n
				}
			}
			if !page.HasMore {
				break
			}
		}
		return target.Message, expect(target.ID != "", "no notification for %q", content)
	}); err != nil {
		return err
	}

	if err := env.Step("mark as read", func() (string, error) {
		if err := ns.MarkAsRead(ctx, target.ID); err != nil {
			return "", err
		}
		after := ns.FetchUnreadCount(ctx)
		return "", expect(after == before, "expected %d unread, got %d", before, after)
	}); err != nil {
		return err
	}

	return env.Step("delete", func() (string, error) {
		if err := ns.Remove(ctx, target.ID); err != nil {
			return "", err
		}
		gone := !slices.ContainsFunc(ns.Notifications(), func(n models.Notification) bool { return n.ID == target.ID })
		return "", expect(gone, "notification %s still listed", target.ID)
	})
}

// findInvite pages through the user's unseen notifications for a group invite.
func findInvite(ctx context.Context, ns *store.NotificationStore, groupID int) (models.Notification, error) {
	for p := 1; ; p++ {
		page, err := ns.FetchUnseen(ctx, p, 50)
		if err != nil {
			return models.Notification{}, err
		}
		for _, n := range page.Notifications {
			if n.Type == models.NotificationGroupInvite && n.GroupID == groupID {
				return n, nil
			}
		}
		if !page.HasMore {
			return models.Notification{}, fmt.Errorf("no invite notification for group %d", groupID)
		}
	}
}

func runNotificationActions(ctx context.Context, env *Env) error {
	primary, err := env.As(ctx, RolePrimary)
	if err != nil {
		return err
	}
	outsider, err := env.As(ctx, RoleOutsider)
	if err != nil {
		return err
	}
	owner := store.NewGroupStore(primary)
	ns := store.NewNotificationStore(outsider)

	for _, action := range []string{models.NotificationActionAccept, models.NotificationActionDecline} {
		g, err := newGroup(ctx, env, owner, action+" group")
		if err != nil {
			return err
		}
		if err := env.Step("invite for "+action, func() (string, error) {
			return "", owner.InviteUserToGroup(ctx, g.ID, outsider.UserID())
		}); err != nil {
			return err
		}

		var invite models.Notification
		if err := env.Step("find invite notification", func() (string, error) {
			var err error
			invite, err = findInvite(ctx, ns, g.ID)
			return invite.Message, err
		}); err != nil {
			return err
		}

		if err := env.Step(action+" from notification", func() (string, error) {
			msg, err := ns.Act(ctx, invite.ID, action)
			if err != nil {
				return "", err
			}
			v, err := store.NewGroupStore(outsider).FetchGroup(ctx, g.ID)
			if err != nil {
				return "", err
			}
			want := action == models.NotificationActionAccept
			return msg, expect(v.MemberStatus.IsMember() == want, "member status %q after %s", v.MemberStatus, action)
		}); err != nil {
			return err
		}
	}
	return nil
}

func runChat(ctx context.Context, env *Env) error {
	primary, err := env.As(ctx, RolePrimary)
	if err != nil {
		return err
	}
	friend, err := env.As(ctx, RoleFriend)
	if err != nil {
		return err
	}
	sender := store.NewChatStore(primary, nil)
	content := "smoke chat " + shortID()

	var sent models.Message
	if err := env.Step("send message", func() (string, error) {
		if err := sender.SetActive(store.ChatPrivate, friend.UserID()); err != nil {
			return "", err
		}
		var err error
		sent, err = sender.SendMessage(ctx, content)
		return fmt.Sprintf("message %d", sent.ID), err
	}); err != nil {
		return err
	}

	hasSent := func(msgs []models.Message) bool {
		return slices.ContainsFunc(msgs, func(m models.Message) bool { return m.ID == sent.ID })
	}

	if err := env.Step("receiver loads conversation", func() (string, error) {
		msgs, err := store.NewChatStore(friend, nil).LoadConversation(ctx, primary.UserID())
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d messages", len(msgs)), expect(hasSent(msgs), "message %d missing", sent.ID)
	}); err != nil {
		return err
	}

	if err := env.Step("recent conversations", func() (string, error) {
		convs, err := sender.RecentConversations(ctx)
		if err != nil {
			return "", err
		}
		found := slices.ContainsFunc(convs, func(c models.ConversationSummary) bool {
			return c.OtherUserID == friend.UserID() && c.LastMessage == content
		})
		return "", expect(found, "conversation with %d not listed", friend.UserID())
	}); err != nil {
		return err
	}

	return env.Step("delete message", func() (string, error) {
		if err := sender.DeleteMessage(ctx, sent.ID); err != nil {
			return "", err
		}
		msgs, err := store.NewChatStore(friend, nil).LoadConversation(ctx, primary.UserID())
		if err != nil {
			return "", err
		}
		return "", expect(!hasSent(msgs), "message %d still delivered", sent.ID)
	})
}

// waitEvent returns the first event on ch that matches, or an error once
// timeout passes.
func waitEvent(ctx context.Context, ch <-chan realtime.Event, timeout time.Duration, match func(realtime.Event) bool) (realtime.Event, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case ev := <-ch:
			if match(ev) {
				return ev, nil
			}
		case <-deadline.C:
			return realtime.Event{}, fmt.Errorf("no matching event within %v", timeout)
		case <-ctx.Done():
			return realtime.Event{}, ctx.Err()
		}
	}
}

func listen(rt *realtime.Client) <-chan realtime.Event {
	ch := make(chan realtime.Event, 64)
	rt.OnMessage(func(ev realtime.Event) {
		select {
		case ch <- ev:
		default:
		}
	})
	return ch
}

func runWebSocket(ctx context.Context, env *Env) error {
	primary, err := env.As(ctx, RolePrimary)
	if err != nil {
		return err
	}
	friend, err := env.As(ctx, RoleFriend)
	if err != nil {
		return err
	}
	const wait = 5 * time.Second

	receiver := env.Realtime(primary)
	inbox := listen(receiver)
	sender := env.Realtime(friend, realtime.WithPath(env.Config, env.Config.ChatWSPath))
	acks := listen(sender)

	if err := env.Step("connect", func() (string, error) {
		if err := receiver.Connect(ctx); err != nil {
			return "", err
		}
		if err := sender.Connect(ctx); err != nil {
			return "", err
		}
		return receiver.URL(), nil
	}); err != nil {
		return err
	}

	if err := env.Step("subscribe to notifications", func() (string, error) {
		if err := receiver.Send(realtime.SubscribeFrame()); err != nil {
			return "", err
		}
		ack, err := waitEvent(ctx, inbox, wait, realtime.Event.IsAck)
		if err != nil {
			return "", err
		}
		return ack.Text, expect(!ack.Failed(), "subscribe rejected: %s", ack.Text)
	}); err != nil {
		return err
	}

	content := "smoke ws " + shortID()
	if err := env.Step("send chat frame", func() (string, error) {
		if err := sender.Send(realtime.ChatFrame(primary.UserID(), content)); err != nil {
			return "", err
		}
		ack, err := waitEvent(ctx, acks, wait, realtime.Event.IsAck)
		if err != nil {
			return "", err
		}
		return ack.Text, expect(!ack.Failed(), "send rejected: %s", ack.Text)
	}); err != nil {
		return err
	}

	if err := env.Step("receive chat frame", func() (string, error) {
		ev, err := waitEvent(ctx, inbox, wait, func(ev realtime.Event) bool {
			return ev.Type == models.FrameMessage && ev.Message != nil && ev.Message.Content == content
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("from user %d", ev.Message.SenderID), expect(ev.Message.SenderID == friend.UserID(), "wrong sender %d", ev.Message.SenderID)
	}); err != nil {
		return err
	}

	if err := env.Step("receive notification frame", func() (string, error) {
		ev, err := waitEvent(ctx, inbox, wait, func(ev realtime.Event) bool {
			return ev.Type == models.FrameNotification && ev.Notification != nil && ev.Notification.SubMessage == content
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d unread", ev.UnreadCount), nil
	}); err != nil {
		return err
	}

	return env.Step("disconnect", func() (string, error) {
		receiver.Disconnect()
		sender.Disconnect()
		return "", expect(!receiver.Status().Connected && !sender.Status().Connected, "still connected")
	})
}
