package mockapi

import (
	"strconv"
	"strings"

	"socialnet/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetFeed lists posts for the feed type in the body.
func (s *Server) GetFeed(c *fiber.Ctx) error {
	var req models.FeedRequest
	if err := parseBody(c, &req); err != nil {
		return respondWithError(c, err)
	}
	switch req.Type {
	case "", models.FeedAll, models.FeedGroup, models.FeedUser:
	default:
		return respondWithError(c, models.NewValidationError("unknown feed type: "+req.Type))
	}
	posts, err := s.state.Feed(currentUserID(c), req.Type, req.ID, req.Start, req.NPost)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(fiber.Map{"posts": posts})
}

// CreatePost accepts a JSON body or a multipart form with an optional image.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req models.CreatePostRequest
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		req.Content = c.FormValue("content")
		req.Privacy = models.Privacy(c.FormValue("privacy"))
		if raw := c.FormValue("group_id"); raw != "" {
			id, err := strconv.Atoi(raw)
			if err != nil {
				return respondWithError(c, models.NewValidationError("Invalid group_id"))
			}
			req.GroupID = id
		}
		if _, err := c.FormFile("image"); err == nil {
			id, err := s.saveUpload(c, "image")
			if err != nil {
				return respondWithError(c, err)
			}
			req.ImageUUID = id
		}
	} else if err := parseBody(c, &req); err != nil {
		return respondWithError(c, err)
	}

	post, err := s.state.CreatePost(currentUserID(c), req)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetComments lists the comments of a post.
func (s *Server) GetComments(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondWithError(c, err)
	}
	comments, err := s.state.Comments(currentUserID(c), id)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(fiber.Map{"comments": comments})
}

// CreateComment adds a comment to a post.
func (s *Server) CreateComment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondWithError(c, err)
	}
	var req models.CreateCommentRequest
	if err := parseBody(c, &req); err != nil {
		return respondWithError(c, err)
	}
	comment, err := s.state.AddComment(currentUserID(c), id, req.Content)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// GetImage serves an uploaded image.
func (s *Server) GetImage(c *fiber.Ctx) error {
	data, contentType, err := s.state.Image(c.Params("uuid"))
	if err != nil {
		return respondWithError(c, err)
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	return c.Send(data)
}
