package store

import (
	"context"

	"socialnet/internal/models"
)

// Toast kinds passed to a Notifier.
const (
	ToastSuccess = "success"
	ToastError   = "error"
)

// Notifier receives user-facing feedback such as "Post created successfully!".
type Notifier func(message, kind string)

// PostAPI is the part of the REST client the post store uses.
type PostAPI interface {
	APIBase() string
	Feed(ctx context.Context, req models.FeedRequest) ([]models.Post, error)
	CreatePost(ctx context.Context, req models.CreatePostRequest, image *models.Upload) (*models.Post, error)
	Comments(ctx context.Context, postID int) ([]models.Comment, error)
	CreateComment(ctx context.Context, postID int, content string) (*models.Comment, error)
}

// PostFilter selects a feed. ID is the user or group id for those feed types.
type PostFilter struct {
	Type string
	ID   int
}

// PostInput is what the composer submits.
type PostInput struct {
	Content string
	Privacy models.Privacy
	GroupID int
	Viewers []int
	Image   *models.Upload
}

// PostStore holds the loaded feed.
type PostStore struct {
	base
	api    PostAPI
	notify Notifier

	posts []models.PostView
}

// NewPostStore builds a post store. notify may be nil.
func NewPostStore(api PostAPI, notify Notifier) *PostStore {
	if notify == nil {
		notify = func(string, string) {}
	}
	return &PostStore{base: newBase("posts"), api: api, notify: notify}
}

// Posts returns the loaded feed.
func (s *PostStore) Posts() []models.PostView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePosts(s.posts)
}

// clonePost copies p so that its comments no longer share the store's array.
func clonePost(p models.PostView) models.PostView {
	if p.Comments != nil {
		p.Comments = append(make([]models.CommentView, 0, len(p.Comments)), p.Comments...)
	}
	return p
}

func clonePosts(posts []models.PostView) []models.PostView {
	out := make([]models.PostView, len(posts))
	for i, p := range posts {
		out[i] = clonePost(p)
	}
	return out
}

// FetchPosts loads a feed page.
func (s *PostStore) FetchPosts(ctx context.Context, filter PostFilter) ([]models.PostView, error) {
	defer s.start()()
	if filter.Type == "" {
		filter.Type = models.FeedAll
	}
	posts, err := s.api.Feed(ctx, models.FeedRequest{ID: filter.ID, Type: filter.Type, NPost: pageSize})
	if err != nil {
		s.notify("Failed to load posts", ToastError)
		return nil, s.fail(ctx, "fetch_posts", err)
	}
	views := models.NewPostViews(posts, s.api.APIBase())
	s.mu.Lock()
	s.posts = views
	s.mu.Unlock()
	s.done(ctx, "fetch_posts", map[string]interface{}{"type": filter.Type, "count": len(views)})
	return clonePosts(views), nil
}

// CreatePost publishes a post and puts it first in the feed.
func (s *PostStore) CreatePost(ctx context.Context, in PostInput) (models.PostView, error) {
	defer s.start()()
	p, err := s.api.CreatePost(ctx, models.CreatePostRequest{
		Content: in.Content,
		Privacy: in.Privacy,
		GroupID: in.GroupID,
		Viewers: in.Viewers,
	}, in.Image)
	if err != nil {
		s.notify("Failed to create post", ToastError)
		return models.PostView{}, s.fail(ctx, "create_post", err)
	}
	view := models.NewPostView(*p, s.api.APIBase())
	s.mu.Lock()
	s.posts = append([]models.PostView{view}, s.posts...)
	s.mu.Unlock()
	s.notify("Post created successfully!", ToastSuccess)
	s.done(ctx, "create_post", map[string]interface{}{"post_id": view.ID})
	return clonePost(view), nil
}

// Comments loads a post's comments and attaches them to the cached post.
func (s *PostStore) Comments(ctx context.Context, postID int) ([]models.CommentView, error) {
	comments, err := s.api.Comments(ctx, postID)
	if err != nil {
		return nil, s.fail(ctx, "fetch_comments", err)
	}
	views := make([]models.CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, models.NewCommentView(c))
	}
	s.mu.Lock()
	for i := range s.posts {
		if s.posts[i].ID == postID {
			s.posts[i].Comments = append([]models.CommentView(nil), views...)
		}
	}
	s.mu.Unlock()
	return views, nil
}

// AddComment comments on a post and appends it to the cached post.
func (s *PostStore) AddComment(ctx context.Context, postID int, content string) (models.CommentView, error) {
	c, err := s.api.CreateComment(ctx, postID, content)
	if err != nil {
		return models.CommentView{}, s.fail(ctx, "add_comment", err)
	}
	view := models.NewCommentView(*c)
	s.mu.Lock()
	for i := range s.posts {
		if s.posts[i].ID == postID {
			s.posts[i].Comments = append(s.posts[i].Comments, view)
		}
	}
	s.mu.Unlock()
	return view, nil
}
