package mockapi

import (
	"fmt"
	"time"

	"socialnet/internal/models"

	"github.com/brianvoe/gofakeit/v6"
)

// SeedPassword is the password of every seeded account.
const SeedPassword = "password123"

// Seeded user ids, in creation order.
const (
	SeedAlice = iota + 1
	SeedBob
	SeedCarol
	SeedDave
)

// Seeded group ids.
const (
	SeedHikers = iota + 1
	SeedGophers
)

type seedUser struct {
	email, first, last, nickname string
	private                      bool
}

var seedUsers = []seedUser{
	{"alice@example.com", "Alice", "Anders", "alice", false},
	{"bob@example.com", "Bob", "Brown", "bobby", false},
	{"carol@example.com", "Carol", "Chen", "", true},
	{"dave@example.com", "Dave", "Diaz", "", false},
}

// Seed fills st with a small deterministic world: four users (carol is
// private), two groups, an event, a handful of posts and pending requests.
func Seed(st *State) error {
	faker := gofakeit.New(42)

	for _, u := range seedUsers {
		id, err := st.SignUp(models.SignUpRequest{
			Email:       u.email,
			Password:    SeedPassword,
			FirstName:   u.first,
			LastName:    u.last,
			Nickname:    u.nickname,
			DateOfBirth: faker.Date().Format("2006-01-02"),
			AboutMe:     faker.Sentence(8),
		})
		if err != nil {
			return fmt.Errorf("seed user %s: %w", u.email, err)
		}
		if u.private {
			if _, err := st.ToggleVisibility(id); err != nil {
				return err
			}
		}
	}

	hikers, err := st.CreateGroup(SeedAlice, models.CreateGroupRequest{
		Title:       "Weekend Hikers",
		Description: faker.Sentence(12),
	})
	if err != nil {
		return fmt.Errorf("seed group: %w", err)
	}
	gophers, err := st.CreateGroup(SeedBob, models.CreateGroupRequest{
		Title:       "Go Programmers",
		Description: faker.Sentence(12),
	})
	if err != nil {
		return fmt.Errorf("seed group: %w", err)
	}

	steps := []func() error{
		func() error { _, err := st.Follow(SeedBob, SeedAlice, models.FollowActionFollow); return err },
		func() error { _, err := st.Follow(SeedAlice, SeedBob, models.FollowActionFollow); return err },
		func() error { _, err := st.Follow(SeedDave, SeedCarol, models.FollowActionFollow); return err },
		func() error { _, err := st.Invite(SeedAlice, hikers.ID, SeedBob); return err },
		func() error {
			_, err := st.RespondMembership(SeedBob, hikers.ID, SeedBob, models.MemberStatusMember, models.MemberStatusInvited)
			return err
		},
		func() error { _, err := st.Invite(SeedBob, gophers.ID, SeedDave); return err },
		func() error { st.MarkAllRead(SeedBob); return nil },
		func() error {
			_, err := st.CreateEvent(SeedAlice, models.CreateEventRequest{
				GroupID:     hikers.ID,
				Title:       "Sunrise summit",
				Description: faker.Sentence(10),
				EventTime:   time.Now().Add(7 * 24 * time.Hour).Truncate(time.Hour),
			})
			return err
		},
		func() error {
			_, err := st.CreatePost(SeedAlice, models.CreatePostRequest{Content: faker.Sentence(14), Privacy: models.PrivacyPublic})
			return err
		},
		func() error {
			_, err := st.CreatePost(SeedBob, models.CreatePostRequest{Content: faker.Sentence(14), Privacy: models.PrivacyAlmostPrivate})
			return err
		},
		func() error {
			_, err := st.CreatePost(SeedCarol, models.CreatePostRequest{Content: faker.Sentence(14), Privacy: models.PrivacyPrivate})
			return err
		},
		func() error {
			_, err := st.CreatePost(SeedAlice, models.CreatePostRequest{
				Content: faker.Sentence(14),
				Privacy: models.PrivacyGroup,
				GroupID: hikers.ID,
			})
			return err
		},
	}
	for i, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("seed step %d: %w", i+1, err)
		}
	}
	return nil
}
