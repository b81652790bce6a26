package store

import (
	"context"
	"errors"
	"time"

	"socialnet/internal/models"
	"socialnet/internal/session"
)

// AuthAPI is the part of the REST client the auth store uses.
type AuthAPI interface {
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error)
	SignIn(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error)
	SignOut(ctx context.Context) error
	CurrentUser(ctx context.Context) (*models.User, error)
	SetSession(token string, userID int)
	Token() string
}

// AuthStore tracks the signed-in user and persists the session.
type AuthStore struct {
	base
	api        AuthAPI
	sessions   session.Store
	sessionKey string
	user       *models.User
}

// NewAuthStore builds an auth store. sessions may be nil to skip persistence.
func NewAuthStore(api AuthAPI, sessions session.Store) *AuthStore {
	return &AuthStore{
		base:       newBase("auth"),
		api:        api,
		sessions:   sessions,
		sessionKey: session.DefaultKey,
	}
}

// WithSessionKey stores the session under key instead of the default.
func (s *AuthStore) WithSessionKey(key string) *AuthStore {
	s.sessionKey = key
	return s
}

// User returns a copy of the signed-in user, or nil.
func (s *AuthStore) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsAuthenticated reports whether a user is loaded.
func (s *AuthStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// CurrentUserID returns the signed-in user's id, or 0.
func (s *AuthStore) CurrentUserID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return 0
	}
	return s.user.ID
}

// SignUp registers an account. The caller signs in afterwards.
func (s *AuthStore) SignUp(ctx context.Context, req models.SignUpRequest) error {
	defer s.start()()
	if _, err := s.api.SignUp(ctx, req); err != nil {
		return s.fail(ctx, "sign_up", err)
	}
	s.done(ctx, "sign_up", map[string]interface{}{"email": req.Email})
	return nil
}

// SignIn authenticates, loads the current user and persists the session.
func (s *AuthStore) SignIn(ctx context.Context, creds models.Credentials) (*models.User, error) {
	defer s.start()()
	resp, err := s.api.SignIn(ctx, creds)
	if err != nil {
		return nil, s.fail(ctx, "sign_in", err)
	}

	user, err := s.fetchUser(ctx)
	if err != nil {
		return nil, s.fail(ctx, "sign_in", err)
	}
	if user == nil {
		return nil, s.fail(ctx, "sign_in", models.NewUnauthorizedError("session was not accepted"))
	}

	if s.sessions != nil {
		sess := session.Session{Token: resp.Token, UserID: user.ID, Email: user.Email, SavedAt: time.Now()}
		if err := s.sessions.Save(ctx, s.sessionKey, sess); err != nil {
			s.log.LogError(ctx, err, "save_session")
		}
	}
	s.done(ctx, "sign_in", map[string]interface{}{"user_id": user.ID})
	return user, nil
}

// SignOut ends the session and forgets the user even when the call fails.
func (s *AuthStore) SignOut(ctx context.Context) error {
	defer s.start()()
	err := s.api.SignOut(ctx)

	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	s.forgetSession(ctx)

	if err != nil {
		return s.fail(ctx, "sign_out", err)
	}
	s.done(ctx, "sign_out", nil)
	return nil
}

// CurrentUser reloads the signed-in user. A missing or expired session
// yields nil without error.
func (s *AuthStore) CurrentUser(ctx context.Context) (*models.User, error) {
	defer s.start()()
	user, err := s.fetchUser(ctx)
	if err != nil {
		return nil, s.fail(ctx, "current_user", err)
	}
	return user, nil
}

// CheckAuthStatus reports the signed-in user, fetching it from the server.
func (s *AuthStore) CheckAuthStatus(ctx context.Context) (*models.User, error) {
	return s.CurrentUser(ctx)
}

// Initialize restores a persisted session and checks it against the server.
// A session the server no longer accepts is deleted.
func (s *AuthStore) Initialize(ctx context.Context) (*models.User, error) {
	if s.sessions != nil && s.api.Token() == "" {
		sess, err := s.sessions.Load(ctx, s.sessionKey)
		switch {
		case err == nil:
			s.api.SetSession(sess.Token, sess.UserID)
		case errors.Is(err, session.ErrNotFound):
		default:
			s.log.LogError(ctx, err, "load_session")
		}
	}

	user, err := s.CheckAuthStatus(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.forgetSession(ctx)
	}
	return user, nil
}

func (s *AuthStore) fetchUser(ctx context.Context) (*models.User, error) {
	user, err := s.api.CurrentUser(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.user = nil
		return nil, err
	}
	s.user = user
	if user == nil {
		return nil, nil
	}
	u := *user
	return &u, nil
}

func (s *AuthStore) forgetSession(ctx context.Context) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Delete(ctx, s.sessionKey); err != nil && !errors.Is(err, session.ErrNotFound) {
		s.log.LogError(ctx, err, "delete_session")
	}
}
