package api

import (
	"context"
	"net/http"
	"strconv"

	"socialnet/internal/models"
)

type postsResponse struct {
	Posts []models.Post `json:"posts"`
}

type commentsResponse struct {
	Comments []models.Comment `json:"comments"`
}

// Feed lists posts for the given feed type and paging window.
func (c *Client) Feed(ctx context.Context, req models.FeedRequest) ([]models.Post, error) {
	if req.Type == "" {
		req.Type = models.FeedAll
	}
	if req.NPost <= 0 {
		req.NPost = 20
	}
	var out postsResponse
	if err := c.doJSON(ctx, http.MethodPost, "/posts/feed", req, &out); err != nil {
		return nil, err
	}
	if out.Posts == nil {
		return []models.Post{}, nil
	}
	return out.Posts, nil
}

// CreatePost publishes a post. With an image attached the post is sent as a
// multipart form, otherwise as JSON.
func (c *Client) CreatePost(ctx context.Context, req models.CreatePostRequest, image *models.Upload) (*models.Post, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Privacy == "" {
		req.Privacy = models.PrivacyPublic
	}

	var out models.Post
	if image == nil {
		if err := c.doJSON(ctx, http.MethodPost, "/posts/new", req, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}

	fields := map[string]string{
		"content": req.Content,
		"privacy": string(req.Privacy),
	}
	if req.GroupID > 0 {
		fields["group_id"] = strconv.Itoa(req.GroupID)
	}
	body, contentType, err := multipartBody(fields, "image", *image)
	if err != nil {
		return nil, err
	}
	if err := c.do(ctx, http.MethodPost, "/posts/new", body, contentType, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Comments lists the comments on a post.
func (c *Client) Comments(ctx context.Context, postID int) ([]models.Comment, error) {
	var out commentsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/posts/"+strconv.Itoa(postID)+"/comments", nil, &out); err != nil {
		return nil, err
	}
	if out.Comments == nil {
		return []models.Comment{}, nil
	}
	return out.Comments, nil
}

// CreateComment adds a comment to a post.
func (c *Client) CreateComment(ctx context.Context, postID int, content string) (*models.Comment, error) {
	if content == "" {
		return nil, models.NewValidationError("comment content is required")
	}
	var out models.Comment
	path := "/posts/" + strconv.Itoa(postID) + "/comments/new"
	if err := c.doJSON(ctx, http.MethodPost, path, models.CreateCommentRequest{Content: content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
