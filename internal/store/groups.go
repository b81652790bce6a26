package store

import (
	"context"
	"time"

	"socialnet/internal/models"
)

// pageSize is how many items a list fetch asks for.
const pageSize = 20

// GroupAPI is the part of the REST client the group store uses.
type GroupAPI interface {
	APIBase() string
	BrowseGroups(ctx context.Context, req models.GroupBrowseRequest) ([]models.Group, error)
	Group(ctx context.Context, id int) (*models.Group, error)
	Feed(ctx context.Context, req models.FeedRequest) ([]models.Post, error)
	GroupEvents(ctx context.Context, req models.EventListRequest) ([]models.Event, error)
	CreateGroup(ctx context.Context, req models.CreateGroupRequest) (*models.Group, error)
	CreatePost(ctx context.Context, req models.CreatePostRequest, image *models.Upload) (*models.Post, error)
	CreateEvent(ctx context.Context, req models.CreateEventRequest) (*models.Event, error)
	RequestJoinGroup(ctx context.Context, groupID int) (models.MemberStatus, error)
	RespondGroupInvite(ctx context.Context, groupID int, accept bool) (models.MemberStatus, error)
	VoteEvent(ctx context.Context, eventID int, vote string) (*models.Event, error)
	InviteToGroup(ctx context.Context, groupID, userID int) (models.MemberStatus, error)
}

// GroupStore holds the browsed groups, the open group and its posts and events.
type GroupStore struct {
	base
	api GroupAPI

	groups  []models.GroupView
	current *models.GroupView
	posts   []models.PostView
	events  []models.EventView
}

// NewGroupStore builds a group store.
func NewGroupStore(api GroupAPI) *GroupStore {
	return &GroupStore{base: newBase("groups"), api: api}
}

// Groups returns the browsed groups.
func (s *GroupStore) Groups() []models.GroupView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.GroupView(nil), s.groups...)
}

// CurrentGroup returns the open group.
func (s *GroupStore) CurrentGroup() (models.GroupView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return models.GroupView{}, false
	}
	return *s.current, true
}

// GroupByID looks a group up in the browsed list.
func (s *GroupStore) GroupByID(id int) (models.GroupView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(id)
	if i < 0 {
		return models.GroupView{}, false
	}
	return s.groups[i], true
}

// CurrentGroupPosts returns the loaded posts of the open group.
func (s *GroupStore) CurrentGroupPosts() []models.PostView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.PostView{}
	if s.current == nil {
		return out
	}
	for _, p := range s.posts {
		if p.GroupID == s.current.ID {
			out = append(out, clonePost(p))
		}
	}
	return out
}

// CurrentGroupEvents returns the loaded events of the open group.
func (s *GroupStore) CurrentGroupEvents() []models.EventView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.EventView{}
	if s.current == nil {
		return out
	}
	for _, e := range s.events {
		if e.GroupID == s.current.ID {
			out = append(out, e)
		}
	}
	return out
}

// InvitedGroups returns browsed groups with a pending invite.
func (s *GroupStore) InvitedGroups() []models.GroupView {
	return s.filter(func(g models.GroupView) bool { return g.MemberStatus == models.MemberStatusInvited })
}

// MemberGroups returns browsed groups the user belongs to, created ones included.
func (s *GroupStore) MemberGroups() []models.GroupView {
	return s.filter(func(g models.GroupView) bool { return g.MemberStatus.IsMember() })
}

// CreatedGroups returns browsed groups the user created.
func (s *GroupStore) CreatedGroups() []models.GroupView {
	return s.filter(func(g models.GroupView) bool { return g.MemberStatus == models.MemberStatusCreator })
}

func (s *GroupStore) filter(keep func(models.GroupView) bool) []models.GroupView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.GroupView{}
	for _, g := range s.groups {
		if keep(g) {
			out = append(out, g)
		}
	}
	return out
}

func (s *GroupStore) indexLocked(id int) int {
	for i, g := range s.groups {
		if g.ID == id {
			return i
		}
	}
	return -1
}

// FetchGroups browses groups by filter and search term. A call made while
// another fetch is loading is skipped. On failure the list is emptied.
func (s *GroupStore) FetchGroups(ctx context.Context, filter, search string) error {
	finish, ok := s.tryStart()
	if !ok {
		return nil
	}
	defer finish()

	if filter == "" {
		filter = models.GroupFilterAll
	}
	groups, err := s.api.BrowseGroups(ctx, models.GroupBrowseRequest{
		Start:  0,
		NItems: pageSize,
		Type:   filter,
		Search: search,
	})
	if err != nil {
		s.mu.Lock()
		s.groups = []models.GroupView{}
		s.mu.Unlock()
		return s.fail(ctx, "fetch_groups", err)
	}

	views := models.NewGroupViews(groups, s.api.APIBase())
	s.mu.Lock()
	s.groups = views
	s.mu.Unlock()
	s.done(ctx, "fetch_groups", map[string]interface{}{"filter": filter, "count": len(views)})
	return nil
}

// FetchGroup opens a group. The cached copy is returned when it is already
// the open group; otherwise it is fetched and upserted into the list.
func (s *GroupStore) FetchGroup(ctx context.Context, id int) (models.GroupView, error) {
	s.mu.RLock()
	if s.current != nil && s.current.ID == id {
		if i := s.indexLocked(id); i >= 0 {
			g := s.groups[i]
			s.mu.RUnlock()
			return g, nil
		}
	}
	s.mu.RUnlock()

	defer s.start()()
	g, err := s.api.Group(ctx, id)
	if err != nil {
		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
		return models.GroupView{}, s.fail(ctx, "fetch_group", err)
	}

	view := models.NewGroupView(*g, s.api.APIBase())
	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 {
		s.groups[i] = view
	} else {
		s.groups = append(s.groups, view)
	}
	cur := view
	s.current = &cur
	s.mu.Unlock()
	return view, nil
}

// FetchGroupPosts loads a group's posts. On failure the posts are emptied.
func (s *GroupStore) FetchGroupPosts(ctx context.Context, groupID int) ([]models.PostView, error) {
	defer s.start()()
	views, err := s.loadPosts(ctx, groupID)
	if err != nil {
		return nil, s.fail(ctx, "fetch_group_posts", err)
	}
	return views, nil
}

func (s *GroupStore) loadPosts(ctx context.Context, groupID int) ([]models.PostView, error) {
	posts, err := s.api.Feed(ctx, models.FeedRequest{ID: groupID, Type: models.FeedGroup, NPost: pageSize})
	if err != nil {
		s.mu.Lock()
		s.posts = []models.PostView{}
		s.mu.Unlock()
		return nil, err
	}
	views := models.NewPostViews(posts, s.api.APIBase())
	s.mu.Lock()
	s.posts = views
	s.mu.Unlock()
	return clonePosts(views), nil
}

// FetchGroupEvents loads a group's events. On failure the events are emptied.
func (s *GroupStore) FetchGroupEvents(ctx context.Context, groupID int) ([]models.EventView, error) {
	defer s.start()()
	events, err := s.api.GroupEvents(ctx, models.EventListRequest{GroupID: groupID, NItems: pageSize})
	if err != nil {
		s.mu.Lock()
		s.events = []models.EventView{}
		s.mu.Unlock()
		return nil, s.fail(ctx, "fetch_group_events", err)
	}
	views := models.NewEventViews(events)
	s.mu.Lock()
	s.events = views
	s.mu.Unlock()
	return append([]models.EventView(nil), views...), nil
}

// CreateGroup creates a group and puts it first in the list.
func (s *GroupStore) CreateGroup(ctx context.Context, name, description, imageUUID string) (models.GroupView, error) {
	defer s.start()()
	g, err := s.api.CreateGroup(ctx, models.CreateGroupRequest{Title: name, Description: description, ImageUUID: imageUUID})
	if err != nil {
		return models.GroupView{}, s.fail(ctx, "create_group", err)
	}
	view := models.NewGroupView(*g, s.api.APIBase())
	s.mu.Lock()
	s.groups = append([]models.GroupView{view}, s.groups...)
	s.mu.Unlock()
	s.done(ctx, "create_group", map[string]interface{}{"group_id": view.ID})
	return view, nil
}

// CreatePost publishes a group post and reloads the group's posts.
func (s *GroupStore) CreatePost(ctx context.Context, groupID int, content string) error {
	defer s.start()()
	_, err := s.api.CreatePost(ctx, models.CreatePostRequest{
		Content: content,
		Privacy: models.PrivacyGroup,
		GroupID: groupID,
	}, nil)
	if err != nil {
		return s.fail(ctx, "create_post", err)
	}
	if _, err := s.loadPosts(ctx, groupID); err != nil {
		return s.fail(ctx, "create_post", err)
	}
	return nil
}

// CreateEvent creates an event and puts it first in the event list.
func (s *GroupStore) CreateEvent(ctx context.Context, groupID int, title, description string, date time.Time) (models.EventView, error) {
	defer s.start()()
	e, err := s.api.CreateEvent(ctx, models.CreateEventRequest{
		GroupID:     groupID,
		Title:       title,
		Description: description,
		EventTime:   date.UTC(),
	})
	if err != nil {
		return models.EventView{}, s.fail(ctx, "create_event", err)
	}
	view := models.NewEventView(*e)
	s.mu.Lock()
	s.events = append([]models.EventView{view}, s.events...)
	s.mu.Unlock()
	return view, nil
}

// RequestJoinGroup asks to join a group and records the returned status.
func (s *GroupStore) RequestJoinGroup(ctx context.Context, groupID int) (models.MemberStatus, error) {
	s.ClearError()
	status, err := s.api.RequestJoinGroup(ctx, groupID)
	if err != nil {
		return "", s.fail(ctx, "request_join", err)
	}
	s.updateGroup(groupID, func(g *models.GroupView) { g.MemberStatus = status })
	return status, nil
}

// AcceptGroupInvite joins a group the user was invited to.
func (s *GroupStore) AcceptGroupInvite(ctx context.Context, groupID int) error {
	defer s.start()()
	if _, err := s.api.RespondGroupInvite(ctx, groupID, true); err != nil {
		return s.fail(ctx, "accept_invite", err)
	}
	s.updateGroup(groupID, func(g *models.GroupView) {
		g.MemberStatus = models.MemberStatusMember
		g.MemberCount++
	})
	return nil
}

// DeclineGroupInvite declines an invite and clears the local member status.
func (s *GroupStore) DeclineGroupInvite(ctx context.Context, groupID int) error {
	defer s.start()()
	if _, err := s.api.RespondGroupInvite(ctx, groupID, false); err != nil {
		return s.fail(ctx, "decline_invite", err)
	}
	s.updateGroup(groupID, func(g *models.GroupView) { g.MemberStatus = models.MemberStatusNone })
	return nil
}

func (s *GroupStore) updateGroup(id int, fn func(*models.GroupView)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		fn(&s.groups[i])
	}
	if s.current != nil && s.current.ID == id {
		fn(s.current)
	}
}

// AttendEvent votes on an event. The attendee count moves only when the
// vote enters or leaves "going" and never drops below zero.
func (s *GroupStore) AttendEvent(ctx context.Context, eventID int, vote string) error {
	s.ClearError()
	if vote == "" {
		vote = models.VoteGoing
	}
	if _, err := s.api.VoteEvent(ctx, eventID, vote); err != nil {
		return s.fail(ctx, "attend_event", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		e := &s.events[i]
		if e.ID != eventID {
			continue
		}
		switch {
		case e.Vote == models.VoteGoing && vote != models.VoteGoing:
			e.Attendees = max(0, e.Attendees-1)
		case e.Vote != models.VoteGoing && vote == models.VoteGoing:
			e.Attendees++
		}
		e.Vote = vote
	}
	return nil
}

// InviteUserToGroup invites userID into a group.
func (s *GroupStore) InviteUserToGroup(ctx context.Context, groupID, userID int) error {
	s.ClearError()
	if _, err := s.api.InviteToGroup(ctx, groupID, userID); err != nil {
		return s.fail(ctx, "invite_user", err)
	}
	s.done(ctx, "invite_user", map[string]interface{}{"group_id": groupID, "user_id": userID})
	return nil
}
