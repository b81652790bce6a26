package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"socialnet/internal/media"
	"socialnet/internal/models"
	"socialnet/internal/store"
)

func newFlags(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func printUser(u *models.User) {
	fmt.Printf("👤 %s (#%d) %s\n", u.DisplayName(), u.ID, u.Email)
	if u.AboutMe != "" {
		fmt.Printf("   %s\n", u.AboutMe)
	}
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags("login")
	email := fs.String("email", a.cfg.SmokeUserEmail, "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password == "" {
		return errors.New("-password is required")
	}
	user, err := a.auth.SignIn(ctx, models.Credentials{Email: *email, Password: *password})
	if err != nil {
		return err
	}
	fmt.Println("✅ Signed in")
	printUser(user)
	return nil
}

func runSignUp(ctx context.Context, a *app, args []string) error {
	fs := newFlags("signup")
	var req models.SignUpRequest
	fs.StringVar(&req.Email, "email", "", "account email")
	fs.StringVar(&req.Password, "password", "", "account password")
	fs.StringVar(&req.FirstName, "first", "", "first name")
	fs.StringVar(&req.LastName, "last", "", "last name")
	fs.StringVar(&req.Nickname, "nickname", "", "nickname")
	fs.StringVar(&req.DateOfBirth, "dob", "", "date of birth (YYYY-MM-DD)")
	fs.StringVar(&req.AboutMe, "about", "", "about me")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	if err := a.auth.SignUp(ctx, req); err != nil {
		return err
	}
	fmt.Println("✅ Account created, run: socialctl login")
	return nil
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.auth.SignOut(ctx); err != nil {
		return err
	}
	fmt.Println("👋 Signed out")
	return nil
}

func runWhoAmI(_ context.Context, a *app, _ []string) error {
	printUser(a.auth.User())
	return nil
}

func runProfile(ctx context.Context, a *app, args []string) error {
	fs := newFlags("profile")
	id := fs.Int("id", 0, "user id (default: yourself)")
	connections := fs.String("connections", "", "also list followers or following")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ps := store.NewProfileStore(a.client)
	if err := ps.Init(ctx, *id); err != nil {
		return err
	}
	p := ps.Snapshot()
	printUser(&p.User)
	visibility := "public"
	if !p.User.IsPublic {
		visibility = "private"
	}
	fmt.Printf("   %s profile, follow status %s\n", visibility, p.FollowStatus)
	if p.IsRequestToMe {
		fmt.Printf("   📨 wants to follow you: socialctl follow -id %d -action accept\n", p.User.ID)
	}

	if *connections == "" {
		return nil
	}
	users, err := ps.FetchConnections(ctx, *connections)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%d):\n", *connections, len(users))
	for _, u := range users {
		fmt.Printf("  #%d %s\n", u.ID, u.DisplayName())
	}
	return nil
}

func runFollow(ctx context.Context, a *app, args []string) error {
	fs := newFlags("follow")
	id := fs.Int("id", 0, "user id")
	action := fs.String("action", models.FollowActionFollow, "follow, unfollow, accept or decline")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("-id is required")
	}

	ps := store.NewProfileStore(a.client)
	if err := ps.Init(ctx, *id); err != nil {
		return err
	}
	switch *action {
	case models.FollowActionAccept, models.FollowActionDecline:
		if err := ps.RespondToRequest(ctx, *action); err != nil {
			return err
		}
		fmt.Printf("✅ Follow request %sed\n", *action)
	default:
		if err := ps.ToggleFollow(ctx, *action); err != nil {
			return err
		}
		fmt.Printf("✅ Follow status: %s\n", ps.Snapshot().FollowStatus)
	}
	return nil
}

func runVisibility(ctx context.Context, a *app, _ []string) error {
	ps := store.NewProfileStore(a.client)
	if err := ps.Init(ctx, 0); err != nil {
		return err
	}
	public, err := ps.ToggleVisibility(ctx)
	if err != nil {
		return err
	}
	if public {
		fmt.Println("🔓 Profile is now public")
	} else {
		fmt.Println("🔒 Profile is now private")
	}
	return nil
}

// readImage prepares an image file for upload.
func readImage(a *app, path string) (*models.Upload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	up, err := media.PrepareImage(f, a.cfg.ImageMaxSide)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &up, nil
}

func runAvatar(ctx context.Context, a *app, args []string) error {
	fs := newFlags("avatar")
	path := fs.String("image", "", "image file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errors.New("-image is required")
	}
	up, err := readImage(a, *path)
	if err != nil {
		return err
	}
	res, err := a.client.UploadAvatar(ctx, *up)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Avatar updated: %s\n", res.AvatarPath)
	return nil
}
