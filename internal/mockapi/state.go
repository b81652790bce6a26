package mockapi

import (
	"sort"
	"strings"
	"sync"
	"time"

	"socialnet/internal/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type userRecord struct {
	models.User
	passwordHash []byte
}

type followKey struct{ from, to int }

type imageRecord struct {
	data        []byte
	contentType string
}

// delivery is a frame queued for a user while the state lock is held and
// sent once it is released.
type delivery struct {
	userID int
	frame  any
}

// Pusher delivers frames to a user's live connections.
type Pusher interface {
	SendJSON(userID int, v any)
}

// State is the in-memory backend. All exported methods are safe for
// concurrent use.
type State struct {
	mu sync.RWMutex

	users        map[int]*userRecord
	usersByEmail map[string]int
	follows      map[followKey]models.FollowStatus

	groups  map[int]*models.Group
	members map[int]map[int]models.MemberStatus
	events  map[int]*models.Event
	votes   map[int]map[int]string

	posts    []*models.Post
	comments map[int][]models.Comment

	notifications map[int][]*models.Notification
	messages      []*models.Message
	seenMessages  map[int]bool
	images        map[string]imageRecord

	nextUserID, nextGroupID, nextEventID, nextPostID, nextCommentID, nextMessageID int

	pusher       Pusher
	passwordCost int
	now          func() time.Time
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		users:         make(map[int]*userRecord),
		usersByEmail:  make(map[string]int),
		follows:       make(map[followKey]models.FollowStatus),
		groups:        make(map[int]*models.Group),
		members:       make(map[int]map[int]models.MemberStatus),
		events:        make(map[int]*models.Event),
		votes:         make(map[int]map[int]string),
		comments:      make(map[int][]models.Comment),
		notifications: make(map[int][]*models.Notification),
		seenMessages:  make(map[int]bool),
		images:        make(map[string]imageRecord),
		nextUserID:    1,
		nextGroupID:   1,
		nextEventID:   1,
		nextPostID:    1,
		nextCommentID: 1,
		nextMessageID: 1,
		passwordCost:  bcrypt.MinCost,
		now:           time.Now,
	}
}

// SetPusher wires live delivery of notifications and chat frames.
func (st *State) SetPusher(p Pusher) {
	st.mu.Lock()
	st.pusher = p
	st.mu.Unlock()
}

func (st *State) deliver(outbox *[]delivery) {
	st.mu.RLock()
	p := st.pusher
	st.mu.RUnlock()
	if p == nil {
		return
	}
	for _, d := range *outbox {
		p.SendJSON(d.userID, d.frame)
	}
}

// --- users ---

// SignUp registers a user and returns the new id.
func (st *State) SignUp(req models.SignUpRequest) (int, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	st.mu.RLock()
	cost := st.passwordCost
	_, exists := st.usersByEmail[email]
	st.mu.RUnlock()
	if exists {
		return 0, models.NewValidationError("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), cost)
	if err != nil {
		return 0, models.NewInternalError(err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if _, exists := st.usersByEmail[email]; exists {
		return 0, models.NewValidationError("email already registered")
	}
	id := st.nextUserID
	st.nextUserID++
	st.users[id] = &userRecord{
		User: models.User{
			ID:          id,
			Email:       email,
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			Nickname:    req.Nickname,
			AboutMe:     req.AboutMe,
			DateOfBirth: req.DateOfBirth,
			IsPublic:    true,
			CreatedAt:   st.now(),
		},
		passwordHash: hash,
	}
	st.usersByEmail[email] = id
	return id, nil
}

// Authenticate checks credentials and returns the user.
func (st *State) Authenticate(email, password string) (models.User, error) {
	st.mu.RLock()
	id, ok := st.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	var rec *userRecord
	if ok {
		rec = st.users[id]
	}
	st.mu.RUnlock()

	if rec == nil || bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(password)) != nil {
		return models.User{}, models.NewUnauthorizedError("invalid email or password")
	}
	return rec.User, nil
}

// User returns a user by id.
func (st *State) User(id int) (models.User, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	rec, ok := st.users[id]
	if !ok {
		return models.User{}, models.NewNotFoundError("user", id)
	}
	return rec.User, nil
}

func (st *State) followStatusLocked(from, to int) models.FollowStatus {
	if s, ok := st.follows[followKey{from, to}]; ok {
		return s
	}
	return models.FollowStatusNone
}

// ProfileInfo returns target's profile as seen by viewer.
func (st *State) ProfileInfo(viewer, target int) (models.ProfileInfo, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	rec, ok := st.users[target]
	if !ok {
		return models.ProfileInfo{}, models.NewNotFoundError("user", target)
	}
	info := models.ProfileInfo{
		User:          rec.User,
		FollowStatus:  st.followStatusLocked(viewer, target),
		IsRequestToMe: st.followStatusLocked(target, viewer) == models.FollowStatusPending,
	}
	for k, s := range st.follows {
		if s != models.FollowStatusAccepted {
			continue
		}
		if k.to == target {
			info.FollowersCount++
		}
		if k.from == target {
			info.FollowingCount++
		}
	}
	return info, nil
}

// Connections lists accepted followers (followers=true) or followees of target.
func (st *State) Connections(target int, followers bool) ([]models.User, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if _, ok := st.users[target]; !ok {
		return nil, models.NewNotFoundError("user", target)
	}
	users := []models.User{}
	for k, s := range st.follows {
		if s != models.FollowStatusAccepted {
			continue
		}
		switch {
		case followers && k.to == target:
			users = append(users, st.users[k.from].User)
		case !followers && k.from == target:
			users = append(users, st.users[k.to].User)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// ToggleVisibility flips the user's public flag and returns the new value.
func (st *State) ToggleVisibility(userID int) (bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	rec, ok := st.users[userID]
	if !ok {
		return false, models.NewNotFoundError("user", userID)
	}
	rec.IsPublic = !rec.IsPublic
	return rec.IsPublic, nil
}

// SetAvatar points the user's avatar at an uploaded image.
func (st *State) SetAvatar(userID int, imageUUID string) (string, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	rec, ok := st.users[userID]
	if !ok {
		return "", models.NewNotFoundError("user", userID)
	}
	rec.AvatarPath = "/images/" + imageUUID
	return rec.AvatarPath, nil
}

// Follow applies a follow or unfollow from one user to another. Following a
// private profile creates a pending request and notifies the target.
func (st *State) Follow(from, to int, action string) (models.FollowStatus, error) {
	if from == to {
		return "", models.NewValidationError("cannot follow yourself")
	}
	var outbox []delivery
	defer st.deliver(&outbox)

	st.mu.Lock()
	defer st.mu.Unlock()
	target, ok := st.users[to]
	if !ok {
		return "", models.NewNotFoundError("user", to)
	}
	key := followKey{from, to}

	switch action {
	case models.FollowActionFollow:
		if current := st.followStatusLocked(from, to); current != models.FollowStatusNone {
			return current, nil
		}
		if target.IsPublic {
			st.follows[key] = models.FollowStatusAccepted
			return models.FollowStatusAccepted, nil
		}
		st.follows[key] = models.FollowStatusPending
		st.notifyLocked(&outbox, models.Notification{
			UserID:     to,
			Type:       models.NotificationFollowRequest,
			Message:    st.users[from].DisplayName() + " wants to follow you",
			FromUserID: from,
		})
		return models.FollowStatusPending, nil
	case models.FollowActionUnfollow:
		delete(st.follows, key)
		return models.FollowStatusNone, nil
	default:
		return "", models.NewValidationError("action must be follow or unfollow")
	}
}

// RespondFollow accepts or declines a pending request from requester to me.
func (st *State) RespondFollow(me, requester int, action string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.respondFollowLocked(me, requester, action)
}

func (st *State) respondFollowLocked(me, requester int, action string) error {
	key := followKey{requester, me}
	if st.follows[key] != models.FollowStatusPending {
		return models.NewNotFoundError("follow request", requester)
	}
	switch action {
	case models.FollowActionAccept:
		st.follows[key] = models.FollowStatusAccepted
	case models.FollowActionDecline:
		delete(st.follows, key)
	default:
		return models.NewValidationError("action must be accept or decline")
	}
	return nil
}

// --- notifications ---

// notifyLocked stores n and queues the live frame. Caller holds the write lock.
func (st *State) notifyLocked(outbox *[]delivery, n models.Notification) models.Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = st.now()
	}
	stored := n
	st.notifications[n.UserID] = append([]*models.Notification{&stored}, st.notifications[n.UserID]...)
	*outbox = append(*outbox, delivery{userID: n.UserID, frame: models.NotificationFrame{
		Type:         models.FrameNotification,
		Action:       "new",
		Notification: stored,
		UnreadCount:  st.unreadLocked(n.UserID),
	}})
	return stored
}

func (st *State) countUpdateLocked(outbox *[]delivery, userID int) {
	*outbox = append(*outbox, delivery{userID: userID, frame: models.CountFrame{
		Type:        models.FrameNotificationCountUpdated,
		UnreadCount: st.unreadLocked(userID),
	}})
}

func (st *State) unreadLocked(userID int) int {
	n := 0
	for _, notif := range st.notifications[userID] {
		if !notif.Seen {
			n++
		}
	}
	return n
}

// Notifications returns one page of the user's notifications, newest first.
func (st *State) Notifications(userID, page, limit int, unseenOnly bool) models.NotificationList {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	st.mu.RLock()
	defer st.mu.RUnlock()

	all := make([]models.Notification, 0, len(st.notifications[userID]))
	for _, n := range st.notifications[userID] {
		if unseenOnly && n.Seen {
			continue
		}
		all = append(all, *n)
	}
	return models.NotificationList{
		Notifications: window(all, (page-1)*limit, limit),
		Page:          page,
		Limit:         limit,
		Total:         len(all),
	}
}

// UnreadCount returns the number of unseen notifications.
func (st *State) UnreadCount(userID int) int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.unreadLocked(userID)
}

// MarkRead marks the given notifications seen. Unknown ids are ignored.
func (st *State) MarkRead(userID int, ids []string) {
	var outbox []delivery
	defer st.deliver(&outbox)

	st.mu.Lock()
	defer st.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for _, n := range st.notifications[userID] {
		if want[n.ID] {
			n.Seen = true
		}
	}
	st.countUpdateLocked(&outbox, userID)
}

// MarkAllRead marks every notification of the user seen.
func (st *State) MarkAllRead(userID int) {
	var outbox []delivery
	defer st.deliver(&outbox)

	st.mu.Lock()
	defer st.mu.Unlock()
	for _, n := range st.notifications[userID] {
		n.Seen = true
	}
	st.countUpdateLocked(&outbox, userID)
}

// DeleteNotification removes one of the user's notifications.
func (st *State) DeleteNotification(userID int, id string) error {
	var outbox []delivery
	defer st.deliver(&outbox)

	st.mu.Lock()
	defer st.mu.Unlock()
	list := st.notifications[userID]
	for i, n := range list {
		if n.ID == id {
			st.notifications[userID] = append(list[:i:i], list[i+1:]...)
			st.countUpdateLocked(&outbox, userID)
			return nil
		}
	}
	return models.NewNotFoundError("notification", id)
}

// NotificationAction resolves the request a notification carries and marks it seen.
func (st *State) NotificationAction(userID int, req models.NotificationActionRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	var outbox []delivery
	defer st.deliver(&outbox)

	st.mu.Lock()
	defer st.mu.Unlock()

	var notif *models.Notification
	for _, n := range st.notifications[userID] {
		if n.ID == req.NotificationID {
			notif = n
			break
		}
	}
	if notif == nil {
		return models.NewNotFoundError("notification", req.NotificationID)
	}

	groupID := firstPositive(req.GroupID, notif.GroupID)
	otherID := firstPositive(req.UserID, notif.FromUserID)
	accept := req.Action == models.NotificationActionAccept

	var err error
	switch notif.Type {
	case models.NotificationGroupInvite:
		_, err = st.respondMembershipLocked(&outbox, userID, groupID, userID, decision(accept), models.MemberStatusInvited)
	case models.NotificationGroupRequest:
		_, err = st.respondMembershipLocked(&outbox, userID, groupID, otherID, decision(accept), models.MemberStatusRequested)
	case models.NotificationFollowRequest:
		err = st.respondFollowLocked(userID, otherID, req.Action)
	default:
		err = models.NewValidationError("Invalid notification type for action")
	}
	if err != nil {
		return err
	}

	notif.Seen = true
	st.countUpdateLocked(&outbox, userID)
	return nil
}

// --- groups ---

func (st *State) groupViewLocked(g *models.Group, viewer int) models.Group {
	out := *g
	out.IsMember = st.members[g.ID][viewer]
	out.MemberCount = 0
	for _, s := range st.members[g.ID] {
		if s.IsMember() {
			out.MemberCount++
		}
	}
	return out
}

// BrowseGroups lists groups for the filter type, optionally matching search.
func (st *State) BrowseGroups(viewer int, filter, search string, start, n int) []models.Group {
	st.mu.RLock()
	defer st.mu.RUnlock()

	search = strings.ToLower(strings.TrimSpace(search))
	ids := make([]int, 0, len(st.groups))
	for id := range st.groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := []models.Group{}
	for _, id := range ids {
		g := st.groups[id]
		status := st.members[id][viewer]
		switch filter {
		case models.GroupFilterJoined:
			if !status.IsMember() {
				continue
			}
		case models.GroupFilterCreated:
			if g.CreatorID != viewer {
				continue
			}
		case models.GroupFilterInvited:
			if status != models.MemberStatusInvited {
				continue
			}
		}
		if search != "" && !strings.Contains(strings.ToLower(g.Title+" "+g.Description), search) {
			continue
		}
		out = append(out, st.groupViewLocked(g, viewer))
	}
	if n <= 0 {
		n = len(out)
	}
	return window(out, start, n)
}

// Group returns a group as seen by viewer.
func (st *State) Group(viewer, id int) (models.Group, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	g, ok := st.groups[id]
	if !ok {
		return models.Group{}, models.NewNotFoundError("group", id)
	}
	return st.groupViewLocked(g, viewer), nil
}

// CreateGroup creates a group with creator as its first member.
func (st *State) CreateGroup(creator int, req models.CreateGroupRequest) (models.Group, error) {
	if err := req.Validate(); err != nil {
		return models.Group{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if req.ImageUUID != "" {
		if _, ok := st.images[req.ImageUUID]; !ok {
			return models.Group{}, models.NewNotFoundError("image", req.ImageUUID)
		}
	}
	g := &models.Group{
		ID:          st.nextGroupID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		ImageUUID:   models.NewNullString(req.ImageUUID),
		CreatorID:   creator,
		CreatedAt:   st.now(),
	}
	st.nextGroupID++
	st.groups[g.ID] = g
	st.members[g.ID] = map[int]models.MemberStatus{creator: models.MemberStatusCreator}
	return st.groupViewLocked(g, creator), nil
}

// RequestJoin moves viewer from none or declined to requested and notifies the creator.
func (st *State) RequestJoin(userID, groupID int) (models.MemberStatus, error) {
	var outbox []delivery
	defer st.deliver(&outbox)

	st.mu.Lock()
	defer st.mu.Unlock()
	g, ok := st.groups[groupID]
	if !ok {
		return "", models.NewNotFoundError("group", groupID)
	}
	switch st.members[groupID][userID] {
	case models.MemberStatusNone, models.MemberStatusDeclined:
	default:
		return "", models.NewValidationError("invalid membership transition")
	}
	st.members[groupID][userID] = models.MemberStatusRequested
	st.notifyLocked(&outbox, models.Notification{
		UserID:     g.CreatorID,
		Type:       models.NotificationGroupRequest,
		Message:    st.users[userID].DisplayName() + " wants to join " + g.Title,
		GroupID:    groupID,
		FromUserID: userID,
	})
	return models.MemberStatusRequested, nil
}

// Invite moves target from none or declined to invited. Only members may invite.
func (st *State) Invite(inviter, groupID, target int) (models.MemberStatus, error) {
	var outbox []delivery
	defer st.deliver(&outbox)

	st.mu.Lock()
	defer st.mu.Unlock()
	g, ok := st.groups[groupID]
	if !ok {
		return "", models.NewNotFoundError("group", groupID)
	}
	if _, ok := st.users[target]; !ok {
		return "", models.NewNotFoundError("user", target)
	}
	if !st.members[groupID][inviter].IsMember() {
		return "", models.NewForbiddenError("only members can invite")
	}
	switch st.members[groupID][target] {
	case models.MemberStatusNone, models.MemberStatusDeclined:
	default:
		return "", models.NewValidationError("invalid membership transition")
	}
	st.members[groupID][target] = models.MemberStatusInvited
	st.notifyLocked(&outbox, models.Notification{
		UserID:     target,
		Type:       models.NotificationGroupInvite,
		Message:    st.users[inviter].DisplayName() + " invited you to " + g.Title,
		GroupID:    groupID,
		FromUserID: inviter,
	})
	return models.MemberStatusInvited, nil
}

// RespondMembership resolves an invite (prev invited, actor is the invitee)
// or a join request (prev requested, actor is the creator).
func (st *State) RespondMembership(actor, groupID, userID int, status, prev models.MemberStatus) (models.MemberStatus, error) {
	var outbox []delivery
	defer st.deliver(&outbox)

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.respondMembershipLocked(&outbox, actor, groupID, userID, status, prev)
}

func (st *State) respondMembershipLocked(outbox *[]delivery, actor, groupID, userID int, status, prev models.MemberStatus) (models.MemberStatus, error) {
	g, ok := st.groups[groupID]
	if !ok {
		return "", models.NewNotFoundError("group", groupID)
	}
	if status != models.MemberStatusMember && status != models.MemberStatusDeclined {
		return "", models.NewValidationError("status must be member or declined")
	}
	switch prev {
	case models.MemberStatusInvited:
		if actor != userID {
			return "", models.NewForbiddenError("only the invited user can respond")
		}
	case models.MemberStatusRequested:
		if actor != g.CreatorID {
			return "", models.NewForbiddenError("only the group creator can respond")
		}
	default:
		return "", models.NewValidationError("invalid membership transition")
	}
	if st.members[groupID][userID] != prev {
		return "", models.NewValidationError("invalid membership transition")
	}
	st.members[groupID][userID] = status

	if prev == models.MemberStatusRequested && status == models.MemberStatusMember {
		st.notifyLocked(outbox, models.Notification{
			UserID:     userID,
			Type:       models.NotificationGroup,
			Message:    "Your request to join " + g.Title + " was accepted",
			GroupID:    groupID,
			FromUserID: actor,
		})
	}
	return status, nil
}

// --- events ---

// GroupEvents lists a group's events with viewer's votes, soonest first.
func (st *State) GroupEvents(viewer, groupID, start, n int) ([]models.Event, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if _, ok := st.groups[groupID]; !ok {
		return nil, models.NewNotFoundError("group", groupID)
	}
	if !st.members[groupID][viewer].IsMember() {
		return nil, models.NewForbiddenError("only members can see group events")
	}
	out := []models.Event{}
	for _, e := range st.events {
		if e.GroupID == groupID {
			out = append(out, st.eventViewLocked(e, viewer))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EventTime.Equal(out[j].EventTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].EventTime.Before(out[j].EventTime)
	})
	if n <= 0 {
		n = len(out)
	}
	return window(out, start, n), nil
}

func (st *State) eventViewLocked(e *models.Event, viewer int) models.Event {
	out := *e
	out.Vote = st.votes[e.ID][viewer]
	out.Going = 0
	for _, v := range st.votes[e.ID] {
		if v == models.VoteGoing {
			out.Going++
		}
	}
	return out
}

// CreateEvent adds an event and notifies the other members.
func (st *State) CreateEvent(creator int, req models.CreateEventRequest) (models.Event, error) {
	if err := req.Validate(); err != nil {
		return models.Event{}, err
	}
	var outbox []delivery
	defer st.deliver(&outbox)

	st.mu.Lock()
	defer st.mu.Unlock()
	g, ok := st.groups[req.GroupID]
	if !ok {
		return models.Event{}, models.NewNotFoundError("group", req.GroupID)
	}
	if !st.members[g.ID][creator].IsMember() {
		return models.Event{}, models.NewForbiddenError("only members can create events")
	}
	e := &models.Event{
		ID:          st.nextEventID,
		GroupID:     g.ID,
		CreatorID:   creator,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		EventTime:   req.EventTime,
		CreatedAt:   st.now(),
	}
	st.nextEventID++
	st.events[e.ID] = e
	st.votes[e.ID] = make(map[int]string)

	for uid, s := range st.members[g.ID] {
		if uid == creator || !s.IsMember() {
			continue
		}
		st.notifyLocked(&outbox, models.Notification{
			UserID:     uid,
			Type:       models.NotificationGroupEvent,
			Message:    "New event in " + g.Title + ": " + e.Title,
			GroupID:    g.ID,
			FromUserID: creator,
		})
	}
	return st.eventViewLocked(e, creator), nil
}

// Vote records a member's vote on an event.
func (st *State) Vote(userID, eventID int, vote string) (models.Event, error) {
	if !models.ValidVote(vote) {
		return models.Event{}, models.NewValidationError("vote must be going or not_going")
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.events[eventID]
	if !ok {
		return models.Event{}, models.NewNotFoundError("event", eventID)
	}
	if !st.members[e.GroupID][userID].IsMember() {
		return models.Event{}, models.NewForbiddenError("only members can vote")
	}
	st.votes[eventID][userID] = vote
	return st.eventViewLocked(e, userID), nil
}

// --- posts ---

func (st *State) canSeePostLocked(viewer int, p *models.Post) bool {
	if p.UserID == viewer {
		return true
	}
	switch p.Privacy {
	case models.PrivacyPublic:
		return true
	case models.PrivacyAlmostPrivate:
		return st.followStatusLocked(viewer, p.UserID) == models.FollowStatusAccepted
	case models.PrivacyGroup:
		return st.members[p.GroupID][viewer].IsMember()
	default:
		return false
	}
}

func (st *State) postViewLocked(p *models.Post) models.Post {
	out := *p
	out.CommentCount = len(st.comments[p.ID])
	if author, ok := st.users[p.UserID]; ok {
		out.AuthorName = author.DisplayName()
		out.AuthorAvatar = author.AvatarPath
	}
	return out
}

// Feed returns visible posts, newest first. feedType is all, group (id is a
// group id) or user (id is a user id).
func (st *State) Feed(viewer int, feedType string, id, start, n int) ([]models.Post, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if feedType == models.FeedGroup {
		if _, ok := st.groups[id]; !ok {
			return nil, models.NewNotFoundError("group", id)
		}
		if !st.members[id][viewer].IsMember() {
			return nil, models.NewForbiddenError("only members can see group posts")
		}
	}

	out := []models.Post{}
	for i := len(st.posts) - 1; i >= 0; i-- {
		p := st.posts[i]
		switch feedType {
		case models.FeedGroup:
			if p.GroupID != id {
				continue
			}
		case models.FeedUser:
			if p.UserID != id || p.Privacy == models.PrivacyGroup {
				continue
			}
		default:
			if p.Privacy == models.PrivacyGroup {
				continue
			}
		}
		if st.canSeePostLocked(viewer, p) {
			out = append(out, st.postViewLocked(p))
		}
	}
	if n <= 0 {
		n = 20
	}
	return window(out, start, n), nil
}

// CreatePost stores a post for author.
func (st *State) CreatePost(author int, req models.CreatePostRequest) (models.Post, error) {
	if req.Privacy == "" {
		req.Privacy = models.PrivacyPublic
		if req.GroupID > 0 {
			req.Privacy = models.PrivacyGroup
		}
	}
	if err := req.Validate(); err != nil {
		return models.Post{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if req.Privacy == models.PrivacyGroup {
		if _, ok := st.groups[req.GroupID]; !ok {
			return models.Post{}, models.NewNotFoundError("group", req.GroupID)
		}
		if !st.members[req.GroupID][author].IsMember() {
			return models.Post{}, models.NewForbiddenError("only members can post in a group")
		}
	}
	p := &models.Post{
		ID:        st.nextPostID,
		UserID:    author,
		GroupID:   req.GroupID,
		Content:   strings.TrimSpace(req.Content),
		ImageUUID: models.NewNullString(req.ImageUUID),
		Privacy:   req.Privacy,
		CreatedAt: st.now(),
	}
	st.nextPostID++
	st.posts = append(st.posts, p)
	return st.postViewLocked(p), nil
}

func (st *State) postLocked(id int) (*models.Post, bool) {
	for _, p := range st.posts {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Comments lists a post's comments, oldest first.
func (st *State) Comments(viewer, postID int) ([]models.Comment, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	p, ok := st.postLocked(postID)
	if !ok || !st.canSeePostLocked(viewer, p) {
		return nil, models.NewNotFoundError("post", postID)
	}
	out := make([]models.Comment, 0, len(st.comments[postID]))
	for _, c := range st.comments[postID] {
		if author, ok := st.users[c.UserID]; ok {
			c.AuthorName = author.DisplayName()
			c.AuthorAvatar = author.AvatarPath
		}
		out = append(out, c)
	}
	return out, nil
}

// AddComment appends a comment to a visible post.
func (st *State) AddComment(author, postID int, content string) (models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Comment{}, models.NewValidationError("comment content is required")
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	p, ok := st.postLocked(postID)
	if !ok || !st.canSeePostLocked(author, p) {
		return models.Comment{}, models.NewNotFoundError("post", postID)
	}
	c := models.Comment{
		ID:        st.nextCommentID,
		PostID:    postID,
		UserID:    author,
		Content:   content,
		CreatedAt: st.now(),
	}
	st.nextCommentID++
	st.comments[postID] = append(st.comments[postID], c)
	if a, ok := st.users[author]; ok {
		c.AuthorName = a.DisplayName()
		c.AuthorAvatar = a.AvatarPath
	}
	return c, nil
}

// --- chat ---

// SendMessage stores a private message, pushes it to the receiver and
// leaves a notification.
func (st *State) SendMessage(sender, receiver int, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, models.NewValidationError("message content is required")
	}
	var outbox []delivery
	defer st.deliver(&outbox)

	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.users[receiver]; !ok {
		return models.Message{}, models.NewNotFoundError("user", receiver)
	}
	m := &models.Message{
		ID:         st.nextMessageID,
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    content,
		Type:       models.MessageTypePrivate,
		CreatedAt:  st.now(),
	}
	st.nextMessageID++
	st.messages = append(st.messages, m)

	outbox = append(outbox, delivery{userID: receiver, frame: models.ChatInFrame{Type: models.FrameMessage, Message: *m}})
	st.notifyLocked(&outbox, models.Notification{
		UserID:     receiver,
		Type:       models.NotificationPrivate,
		Message:    "New message from " + st.users[sender].DisplayName(),
		SubMessage: content,
		FromUserID: sender,
	})
	return *m, nil
}

// SendGroupMessage stores a group message and pushes it to the other members.
func (st *State) SendGroupMessage(sender, groupID int, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, models.NewValidationError("message content is required")
	}
	var outbox []delivery
	defer st.deliver(&outbox)

	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.groups[groupID]; !ok {
		return models.Message{}, models.NewNotFoundError("group", groupID)
	}
	if !st.members[groupID][sender].IsMember() {
		return models.Message{}, models.NewForbiddenError("only members can message the group")
	}
	m := &models.Message{
		ID:        st.nextMessageID,
		SenderID:  sender,
		GroupID:   groupID,
		Content:   content,
		Type:      models.MessageTypeGroup,
		CreatedAt: st.now(),
	}
	st.nextMessageID++
	st.messages = append(st.messages, m)

	for uid, s := range st.members[groupID] {
		if uid != sender && s.IsMember() {
			outbox = append(outbox, delivery{userID: uid, frame: models.ChatInFrame{Type: models.FrameMessage, Message: *m}})
		}
	}
	return *m, nil
}

// Conversation lists private messages between two users, oldest first, and
// marks the ones addressed to userID as read.
func (st *State) Conversation(userID, other, limit, offset int) []models.Message {
	st.mu.Lock()
	defer st.mu.Unlock()
	all := []models.Message{}
	for _, m := range st.messages {
		if m.Type == models.MessageTypePrivate && m.Between(userID, other) {
			all = append(all, *m)
			if m.ReceiverID == userID {
				st.seenMessages[m.ID] = true
			}
		}
	}
	if limit <= 0 {
		limit = 50
	}
	return window(all, offset, limit)
}

// RecentConversations summarises the user's private conversations, latest first.
func (st *State) RecentConversations(userID, limit int) []models.ConversationSummary {
	st.mu.RLock()
	defer st.mu.RUnlock()
	byOther := make(map[int]*models.ConversationSummary)
	for _, m := range st.messages {
		if m.Type != models.MessageTypePrivate || (m.SenderID != userID && m.ReceiverID != userID) {
			continue
		}
		other := m.ReceiverID
		if other == userID {
			other = m.SenderID
		}
		s, ok := byOther[other]
		if !ok {
			s = &models.ConversationSummary{OtherUserID: other}
			if u, ok := st.users[other]; ok {
				s.OtherUserName = u.DisplayName()
			}
			byOther[other] = s
		}
		s.LastMessage = m.Content
		s.LastMessageAt = m.CreatedAt
		if m.ReceiverID == userID && !st.seenMessages[m.ID] {
			s.UnreadCount++
		}
	}
	out := make([]models.ConversationSummary, 0, len(byOther))
	for _, s := range byOther {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].OtherUserID < out[j].OtherUserID
		}
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	if limit <= 0 {
		limit = 20
	}
	return window(out, 0, limit)
}

// DeleteMessage removes a message sent by userID.
func (st *State) DeleteMessage(userID, messageID int) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	for i, m := range st.messages {
		if m.ID != messageID {
			continue
		}
		if m.SenderID != userID {
			return models.NewForbiddenError("only the sender can delete a message")
		}
		st.messages = append(st.messages[:i:i], st.messages[i+1:]...)
		return nil
	}
	return models.NewNotFoundError("message", messageID)
}

// --- images ---

// SaveImage stores image bytes and returns their id.
func (st *State) SaveImage(data []byte, contentType string) string {
	id := uuid.NewString()
	st.mu.Lock()
	st.images[id] = imageRecord{data: data, contentType: contentType}
	st.mu.Unlock()
	return id
}

// Image returns stored image bytes and content type.
func (st *State) Image(id string) ([]byte, string, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	img, ok := st.images[id]
	if !ok {
		return nil, "", models.NewNotFoundError("image", id)
	}
	return img.data, img.contentType, nil
}

func window[T any](items []T, start, n int) []T {
	if start < 0 {
		start = 0
	}
	if start >= len(items) {
		return []T{}
	}
	end := start + n
	if end > len(items) || n <= 0 {
		end = len(items)
	}
	return items[start:end]
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func decision(accept bool) models.MemberStatus {
	if accept {
		return models.MemberStatusMember
	}
	return models.MemberStatusDeclined
}
