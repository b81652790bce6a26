package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"socialnet/internal/models"
)

// Notifications lists a page of notifications.
func (c *Client) Notifications(ctx context.Context, page, limit int, unseenOnly bool) (*models.NotificationList, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if unseenOnly {
		q.Set("unseen_only", "true")
	}

	var out models.NotificationList
	if err := c.doJSON(ctx, http.MethodGet, "/notifications?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if out.Notifications == nil {
		out.Notifications = []models.Notification{}
	}
	return &out, nil
}

// UnreadCount returns the number of unseen notifications.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out models.UnreadCountResponse
	if err := c.doJSON(ctx, http.MethodGet, "/notifications/unread-count", nil, &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}

// MarkRead marks the given notifications as seen.
func (c *Client) MarkRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.doJSON(ctx, http.MethodPost, "/notifications/mark-read", models.MarkReadRequest{NotificationIDs: ids}, nil)
}

// MarkAllRead marks every notification as seen.
func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/notifications/mark-all-read", nil, nil)
}

// DeleteNotification removes a notification.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/notifications/"+url.PathEscape(id), nil, nil)
}

// NotificationAction accepts or declines the request a notification carries.
func (c *Client) NotificationAction(ctx context.Context, req models.NotificationActionRequest) (*models.MessageResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var out models.MessageResponse
	if err := c.doJSON(ctx, http.MethodPost, "/notifications/action", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
