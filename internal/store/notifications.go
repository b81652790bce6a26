package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"socialnet/internal/models"
	"socialnet/internal/realtime"
)

// NotificationAPI is the part of the REST client the notification store uses.
type NotificationAPI interface {
	Notifications(ctx context.Context, page, limit int, unseenOnly bool) (*models.NotificationList, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, ids []string) error
	DeleteNotification(ctx context.Context, id string) error
	NotificationAction(ctx context.Context, req models.NotificationActionRequest) (*models.MessageResponse, error)
}

// EventSource delivers realtime events. *realtime.Client satisfies it.
type EventSource interface {
	OnMessage(h realtime.MessageHandler) func()
}

// NotificationPage is one page of unseen notifications.
type NotificationPage struct {
	Notifications []models.Notification
	Total         int
	Page          int
	HasMore       bool
}

// NotificationStore keeps the notification list in sync with the server and
// the realtime feed.
type NotificationStore struct {
	base
	api   NotificationAPI
	now   func() time.Time
	items []models.Notification
}

// NewNotificationStore builds a notification store.
func NewNotificationStore(api NotificationAPI) *NotificationStore {
	return &NotificationStore{base: newBase("notifications"), api: api, now: time.Now}
}

// Notifications returns the current list.
func (s *NotificationStore) Notifications() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Notification(nil), s.items...)
}

// UnreadCount counts unseen notifications in the local list.
func (s *NotificationStore) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, it := range s.items {
		if !it.Seen {
			n++
		}
	}
	return n
}

// Add appends a notification, assigning an id and a timestamp when missing.
// A notification whose id is already listed replaces the existing entry.
func (s *NotificationStore) Add(n models.Notification) models.Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == n.ID {
			s.items[i] = n
			return n
		}
	}
	s.items = append(s.items, n)
	return n
}

// Remove deletes a notification on the server and drops it locally.
func (s *NotificationStore) Remove(ctx context.Context, id string) error {
	if err := s.api.DeleteNotification(ctx, id); err != nil {
		return s.fail(ctx, "remove", err)
	}
	s.mu.Lock()
	s.items = dropNotification(s.items, id)
	s.mu.Unlock()
	return nil
}

func dropNotification(items []models.Notification, id string) []models.Notification {
	out := items[:0]
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}

// MarkAsRead marks one notification seen.
func (s *NotificationStore) MarkAsRead(ctx context.Context, id string) error {
	return s.MarkMultipleAsRead(ctx, []string{id})
}

// MarkMultipleAsRead marks several notifications seen.
func (s *NotificationStore) MarkMultipleAsRead(ctx context.Context, ids []string) error {
	if err := s.api.MarkRead(ctx, ids); err != nil {
		return s.fail(ctx, "mark_read", err)
	}
	s.markSeen(ids...)
	return nil
}

func (s *NotificationStore) markSeen(ids ...string) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if _, ok := want[s.items[i].ID]; ok {
			s.items[i].Seen = true
		}
	}
}

// Fetch replaces the list with the first page from the server.
func (s *NotificationStore) Fetch(ctx context.Context) ([]models.Notification, error) {
	defer s.start()()
	list, err := s.api.Notifications(ctx, 1, pageSize, false)
	if err != nil {
		return nil, s.fail(ctx, "fetch", err)
	}
	s.mu.Lock()
	s.items = append([]models.Notification(nil), list.Notifications...)
	s.mu.Unlock()
	s.done(ctx, "fetch", map[string]interface{}{"count": len(list.Notifications)})
	return append([]models.Notification(nil), list.Notifications...), nil
}

// FetchUnreadCount asks the server for the unread count. Failures yield 0.
func (s *NotificationStore) FetchUnreadCount(ctx context.Context) int {
	n, err := s.api.UnreadCount(ctx)
	if err != nil {
		s.log.LogError(ctx, err, "fetch_unread_count")
		return 0
	}
	return n
}

// FetchUnseen loads a page of unseen notifications. Page 1 replaces the list
// and later pages append to it.
func (s *NotificationStore) FetchUnseen(ctx context.Context, page, limit int) (NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = pageSize
	}
	defer s.start()()
	list, err := s.api.Notifications(ctx, page, limit, true)
	if err != nil {
		return NotificationPage{Page: 1}, s.fail(ctx, "fetch_unseen", err)
	}

	s.mu.Lock()
	if page == 1 {
		s.items = append([]models.Notification(nil), list.Notifications...)
	} else {
		s.items = append(s.items, list.Notifications...)
	}
	s.mu.Unlock()

	got := list.Page
	if got == 0 {
		got = page
	}
	return NotificationPage{
		Notifications: append([]models.Notification(nil), list.Notifications...),
		Total:         list.Total,
		Page:          got,
		HasMore:       len(list.Notifications) == limit,
	}, nil
}

// CreateFollowRequest adds a local follow request notification.
func (s *NotificationStore) CreateFollowRequest(from models.User, recipientID int) models.Notification {
	return s.Add(models.Notification{
		Type:       models.NotificationFollowRequest,
		SubMessage: "Follow Request",
		Message:    fmt.Sprintf("%s has requested to follow you.", from.DisplayName()),
		UserID:     recipientID,
		FromUserID: from.ID,
	})
}

// CreateGroupInvitation adds a local group invitation notification.
func (s *NotificationStore) CreateGroupInvitation(group models.GroupView, from models.User, recipientID int) models.Notification {
	return s.Add(models.Notification{
		Type:       models.NotificationGroupInvite,
		SubMessage: "Group Invitation",
		Message:    fmt.Sprintf("You've been invited to join the group %s.", group.Name),
		UserID:     recipientID,
		GroupID:    group.ID,
		FromUserID: from.ID,
	})
}

// CreateGroupJoinRequest adds a local join request notification for a group creator.
func (s *NotificationStore) CreateGroupJoinRequest(group models.GroupView, from models.User, creatorID int) models.Notification {
	return s.Add(models.Notification{
		Type:       models.NotificationGroupRequest,
		SubMessage: "Group Join Request",
		Message:    fmt.Sprintf("%s requested to join your group %s.", from.DisplayName(), group.Name),
		UserID:     creatorID,
		GroupID:    group.ID,
		FromUserID: from.ID,
	})
}

// CreateGroupEvent adds a local new-event notification.
func (s *NotificationStore) CreateGroupEvent(group models.GroupView, event models.EventView, recipientID int) models.Notification {
	return s.Add(models.Notification{
		Type:       models.NotificationGroupEvent,
		SubMessage: "Group Event",
		Message:    fmt.Sprintf("A new event '%s' has been created in group '%s'.", event.Title, group.Name),
		UserID:     recipientID,
		GroupID:    group.ID,
	})
}

// Act accepts or declines the request a notification carries, then marks it
// seen locally.
func (s *NotificationStore) Act(ctx context.Context, id, action string) (string, error) {
	req := models.NotificationActionRequest{NotificationID: id, Action: action}
	s.mu.RLock()
	for _, it := range s.items {
		if it.ID == id {
			req.GroupID = it.GroupID
			req.UserID = it.FromUserID
		}
	}
	s.mu.RUnlock()

	resp, err := s.api.NotificationAction(ctx, req)
	if err != nil {
		return "", s.fail(ctx, "act", err)
	}
	s.markSeen(id)
	s.done(ctx, "act", map[string]interface{}{"notification_id": id, "action": action})
	return resp.Message, nil
}

// ClearAll deletes every listed notification. Deletion stops at the first
// failure, keeping what was not deleted.
func (s *NotificationStore) ClearAll(ctx context.Context) error {
	for _, n := range s.Notifications() {
		if err := s.Remove(ctx, n.ID); err != nil {
			return err
		}
	}
	return nil
}

// Listen feeds realtime notifications into the store until ctx is done.
// Count updates trigger a refetch.
func (s *NotificationStore) Listen(ctx context.Context, src EventSource) {
	unsubscribe := src.OnMessage(func(ev realtime.Event) {
		switch ev.Type {
		case models.FrameNotification, models.FrameNewNotification:
			if n, ok := notificationFrom(ev); ok {
				s.Add(n)
			}
		case models.FrameNotificationCountUpdated:
			go func() {
				if _, err := s.Fetch(ctx); err != nil {
					s.log.LogError(ctx, err, "refetch")
				}
			}()
		}
	})
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
}

// notificationFrom reads the nested notification of a frame, or the frame
// itself when it carries the notification fields at the top level.
func notificationFrom(ev realtime.Event) (models.Notification, bool) {
	if ev.Notification != nil {
		return *ev.Notification, true
	}
	var n models.Notification
	if len(ev.Raw) == 0 || json.Unmarshal(ev.Raw, &n) != nil {
		return models.Notification{}, false
	}
	if n.ID == "" && n.Message == "" {
		return models.Notification{}, false
	}
	return n, true
}
