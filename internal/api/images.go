package api

import (
	"context"
	"net/http"
	"net/url"
)

// FetchImage downloads an uploaded image and returns its bytes and content type.
func (c *Client) FetchImage(ctx context.Context, uuid string) ([]byte, string, error) {
	return c.send(ctx, http.MethodGet, "/images/"+url.PathEscape(uuid), nil, "")
}
