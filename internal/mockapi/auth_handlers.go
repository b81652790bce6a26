package mockapi

import (
	"time"

	"socialnet/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SignUp registers a user.
func (s *Server) SignUp(c *fiber.Ctx) error {
	var req models.SignUpRequest
	if err := parseBody(c, &req); err != nil {
		return respondWithError(c, err)
	}
	id, err := s.state.SignUp(req)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(models.AuthResponse{
		Message: "User created successfully",
		UserID:  id,
	})
}

// SignIn checks credentials, sets the session cookie and returns the token.
func (s *Server) SignIn(c *fiber.Ctx) error {
	var creds models.Credentials
	if err := parseBody(c, &creds); err != nil {
		return respondWithError(c, err)
	}
	user, err := s.state.Authenticate(creds.Email, creds.Password)
	if err != nil {
		return respondWithError(c, err)
	}

	now := time.Now()
	token, err := issueToken(s.cfg.JWTSecret, user.ID, now)
	if err != nil {
		return respondWithError(c, models.NewInternalError(err))
	}
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  now.Add(tokenTTL),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(models.AuthResponse{
		Message: "Signed in successfully",
		UserID:  user.ID,
		Token:   token,
	})
}

// SignOut expires the session cookie.
func (s *Server) SignOut(c *fiber.Ctx) error {
	c.ClearCookie(sessionCookie)
	return c.JSON(models.MessageResponse{Message: "Signed out successfully"})
}
