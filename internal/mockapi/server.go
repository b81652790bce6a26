// Package mockapi is an in-memory fake of the social network backend. It
// serves the REST routes and the websocket endpoints the client toolkit
// talks to, so every client path can run without a live server.
package mockapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"socialnet/internal/config"
	"socialnet/internal/models"
	"socialnet/internal/observability"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// Server holds the fake backend's state, hub and fiber app.
type Server struct {
	cfg   *config.Config
	app   *fiber.App
	state *State
	hub   *Hub
	prom  *fiberprometheus.FiberPrometheus
	rdb   redis.Cmdable
	seed  bool
}

// Option configures a Server.
type Option func(*Server)

// WithRedis mirrors websocket presence into redis.
func WithRedis(rdb redis.Cmdable) Option {
	return func(s *Server) { s.rdb = rdb }
}

// WithState serves an existing state instead of a freshly seeded one.
func WithState(st *State) Option {
	return func(s *Server) {
		s.state = st
		s.seed = false
	}
}

// WithoutSeed starts with an empty state.
func WithoutSeed() Option {
	return func(s *Server) { s.seed = false }
}

// New builds the fake backend.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{cfg: cfg, seed: true}
	for _, opt := range opts {
		opt(s)
	}
	if s.state == nil {
		s.state = NewState()
	}
	if s.seed {
		if err := Seed(s.state); err != nil {
			return nil, fmt.Errorf("seed mock state: %w", err)
		}
	}

	s.hub = NewHub(s.rdb)
	s.state.SetPusher(s.hub)
	s.prom = fiberprometheus.NewWithRegistry(prometheus.NewRegistry(), "socialnet-mockapi", "http", "", nil)

	s.app = fiber.New(fiber.Config{
		AppName:               "socialnet mock API",
		DisableStartupMessage: true,
		BodyLimit:             10 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok && fe.Code < fiber.StatusInternalServerError {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			return respondWithError(c, models.NewInternalError(err))
		},
	})
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(contextMiddleware())
	s.app.Use(s.prom.Middleware)
	s.app.Use(structuredLogger())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
}

func (s *Server) setupRoutes() {
	app := s.app
	app.Get("/health/live", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "up", "time": time.Now()})
	})
	s.prom.RegisterAt(app, "/metrics")

	auth := s.authRequired()

	ws := s.websocketHandler()
	app.Get(s.cfg.WSPath, auth, ws)
	if s.cfg.ChatWSPath != "" && s.cfg.ChatWSPath != s.cfg.WSPath {
		app.Get(s.cfg.ChatWSPath, auth, ws)
	}

	api := app.Group(s.cfg.APIPrefix)

	authRoutes := api.Group("/auth")
	authRoutes.Post("/signup", s.SignUp)
	authRoutes.Post("/signin", s.SignIn)
	authRoutes.Delete("/signout", s.SignOut)

	api.Get("/images/:uuid", s.GetImage)

	protected := api.Group("", auth)

	users := protected.Group("/users")
	users.Get("/profile/me", s.GetMyProfile)
	users.Post("/profile/info", s.GetProfileInfo)
	users.Post("/profile/followers", s.GetFollowers)
	users.Post("/profile/following", s.GetFollowing)
	users.Post("/profile/visibility", s.ToggleVisibility)
	users.Post("/profile/avatar", s.UploadAvatar)
	users.Post("/follow/follow-unfollow", s.FollowUnfollow)
	users.Post("/follow/accept-decline", s.RespondFollowRequest)

	groups := protected.Group("/groups/group")
	groups.Post("/browse", s.BrowseGroups)
	groups.Post("/new", s.CreateGroup)
	groups.Post("/events", s.GetGroupEvents)
	groups.Post("/event/new", s.CreateEvent)
	groups.Post("/event/vote", s.VoteEvent)
	groups.Post("/request", s.RequestJoinGroup)
	groups.Post("/accept-decline", s.RespondMembership)
	groups.Post("/invite", s.InviteToGroup)
	groups.Get("/:id", s.GetGroup)

	posts := protected.Group("/posts")
	posts.Post("/feed", s.GetFeed)
	posts.Post("/new", s.CreatePost)
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments/new", s.CreateComment)

	notifications := protected.Group("/notifications")
	notifications.Get("/", s.GetNotifications)
	notifications.Get("/unread-count", s.GetUnreadCount)
	notifications.Post("/mark-read", s.MarkRead)
	notifications.Post("/mark-all-read", s.MarkAllRead)
	notifications.Post("/action", s.NotificationAction)
	notifications.Delete("/:id", s.DeleteNotification)

	chat := protected.Group("/chat")
	chat.Post("/send", s.SendMessage)
	chat.Post("/conversation", s.GetConversation)
	chat.Get("/recent", s.GetRecentConversations)
	chat.Delete("/delete", s.DeleteMessage)
}

// App exposes the fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App { return s.app }

// State exposes the backing state.
func (s *Server) State() *State { return s.state }

// Hub exposes the websocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	observability.GlobalLogger.Info("mock API listening", slog.String("addr", addr))
	return s.app.Listen(addr)
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown closes websocket clients, then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.hub.Shutdown(ctx); err != nil {
		observability.GlobalLogger.Warn("hub shutdown", slog.String("error", err.Error()))
	}
	return s.app.ShutdownWithContext(ctx)
}

// StartLocal starts a seeded server on a random loopback port and returns it
// with its base URL. The caller owns Shutdown.
func StartLocal(cfg *config.Config, opts ...Option) (*Server, string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, "", fmt.Errorf("listen: %w", err)
	}
	s, err := New(cfg, opts...)
	if err != nil {
		_ = ln.Close()
		return nil, "", err
	}
	go func() {
		if err := s.Serve(ln); err != nil {
			observability.GlobalLogger.Warn("mock API stopped", slog.String("error", err.Error()))
		}
	}()
	return s, "http://" + ln.Addr().String(), nil
}
