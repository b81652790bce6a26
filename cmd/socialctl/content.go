package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"socialnet/internal/models"
	"socialnet/internal/store"
)

func toast(message, kind string) {
	if kind == store.ToastError {
		fmt.Printf("⚠️  %s\n", message)
		return
	}
	fmt.Printf("✅ %s\n", message)
}

func printPosts(posts []models.PostView) {
	if len(posts) == 0 {
		fmt.Println("No posts yet.")
		return
	}
	for _, p := range posts {
		fmt.Printf("📝 #%d %s · %s\n", p.ID, p.Author, p.CreatedAt.Format(time.DateTime))
		fmt.Printf("   %s\n", p.Content)
		if p.Image != "" {
			fmt.Printf("   🖼  %s\n", p.Image)
		}
		if len(p.Comments) > 0 {
			fmt.Printf("   💬 %d comments\n", len(p.Comments))
		}
	}
}

func runFeed(ctx context.Context, a *app, args []string) error {
	fs := newFlags("feed")
	kind := fs.String("type", models.FeedAll, "all, user or group")
	id := fs.Int("id", 0, "user or group id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	posts, err := store.NewPostStore(a.client, toast).FetchPosts(ctx, store.PostFilter{Type: *kind, ID: *id})
	if err != nil {
		return err
	}
	printPosts(posts)
	return nil
}

func runPost(ctx context.Context, a *app, args []string) error {
	fs := newFlags("post")
	content := fs.String("content", "", "post text")
	privacy := fs.String("privacy", string(models.PrivacyPublic), "public, almost_private or private")
	group := fs.Int("group", 0, "post into a group")
	viewers := fs.String("viewers", "", "comma separated user ids for private posts")
	imagePath := fs.String("image", "", "attach an image")
	if err := fs.Parse(args); err != nil {
		return err
	}

	in := store.PostInput{Content: *content, Privacy: models.Privacy(*privacy), GroupID: *group}
	if *group > 0 {
		in.Privacy = models.PrivacyGroup
	}
	for _, v := range strings.Split(*viewers, ",") {
		var id int
		if _, err := fmt.Sscan(strings.TrimSpace(v), &id); err == nil && id > 0 {
			in.Viewers = append(in.Viewers, id)
		}
	}
	if *imagePath != "" {
		up, err := readImage(a, *imagePath)
		if err != nil {
			return err
		}
		in.Image = up
	}

	post, err := store.NewPostStore(a.client, toast).CreatePost(ctx, in)
	if err != nil {
		return err
	}
	printPosts([]models.PostView{post})
	return nil
}

func runComment(ctx context.Context, a *app, args []string) error {
	fs := newFlags("comment")
	postID := fs.Int("post", 0, "post id")
	content := fs.String("content", "", "comment text; omit to list comments")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *postID <= 0 {
		return errors.New("-post is required")
	}
	ps := store.NewPostStore(a.client, toast)
	if *content != "" {
		if _, err := ps.AddComment(ctx, *postID, *content); err != nil {
			return err
		}
	}
	comments, err := ps.Comments(ctx, *postID)
	if err != nil {
		return err
	}
	for _, c := range comments {
		fmt.Printf("💬 %s: %s\n", c.Author, c.Content)
	}
	return nil
}

func printGroups(groups []models.GroupView) {
	if len(groups) == 0 {
		fmt.Println("No groups found.")
		return
	}
	for _, g := range groups {
		status := string(g.MemberStatus)
		if status == "" {
			status = "-"
		}
		fmt.Printf("👥 #%d %s (%d members, %s)\n", g.ID, g.Name, g.MemberCount, status)
		if g.Description != "" {
			fmt.Printf("   %s\n", g.Description)
		}
	}
}

func runGroups(ctx context.Context, a *app, args []string) error {
	fs := newFlags("groups")
	filter := fs.String("filter", models.GroupFilterAll, "all, joined, created or invited")
	search := fs.String("search", "", "match title or description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	gs := store.NewGroupStore(a.client)
	if err := gs.FetchGroups(ctx, *filter, *search); err != nil {
		return err
	}
	printGroups(gs.Groups())
	return nil
}

func runGroup(ctx context.Context, a *app, args []string) error {
	action := "show"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		action, args = args[0], args[1:]
	}

	fs := newFlags("group " + action)
	id := fs.Int("id", 0, "group id")
	name := fs.String("name", "", "group name")
	description := fs.String("description", "", "description")
	user := fs.Int("user", 0, "user id to invite")
	title := fs.String("title", "", "event title")
	date := fs.String("date", "", "event date (RFC3339)")
	event := fs.Int("event", 0, "event id")
	vote := fs.String("vote", models.VoteGoing, "going or not_going")
	if err := fs.Parse(args); err != nil {
		return err
	}

	gs := store.NewGroupStore(a.client)
	switch action {
	case "show":
		g, err := gs.FetchGroup(ctx, *id)
		if err != nil {
			return err
		}
		printGroups([]models.GroupView{g})
		if !g.MemberStatus.IsMember() {
			return nil
		}
		posts, err := gs.FetchGroupPosts(ctx, g.ID)
		if err != nil {
			return err
		}
		printPosts(posts)
		events, err := gs.FetchGroupEvents(ctx, g.ID)
		if err != nil {
			return err
		}
		for _, e := range events {
			fmt.Printf("📅 #%d %s on %s (%d going, you: %s)\n", e.ID, e.Title, e.Date.Format(time.DateTime), e.Attendees, e.Vote)
		}
		return nil

	case "create":
		g, err := gs.CreateGroup(ctx, *name, *description, "")
		if err != nil {
			return err
		}
		printGroups([]models.GroupView{g})
		return nil

	case "join":
		status, err := gs.RequestJoinGroup(ctx, *id)
		if err != nil {
			return err
		}
		fmt.Printf("✅ Membership: %s\n", status)
		return nil

	case "accept":
		if err := gs.AcceptGroupInvite(ctx, *id); err != nil {
			return err
		}
		fmt.Println("✅ Joined group")
		return nil

	case "decline":
		if err := gs.DeclineGroupInvite(ctx, *id); err != nil {
			return err
		}
		fmt.Println("✅ Invitation declined")
		return nil

	case "invite":
		if err := gs.InviteUserToGroup(ctx, *id, *user); err != nil {
			return err
		}
		fmt.Printf("✅ Invited user %d\n", *user)
		return nil

	case "event":
		when, err := time.Parse(time.RFC3339, *date)
		if err != nil {
			return fmt.Errorf("-date: %w", err)
		}
		e, err := gs.CreateEvent(ctx, *id, *title, *description, when)
		if err != nil {
			return err
		}
		fmt.Printf("📅 Created event #%d %s\n", e.ID, e.Title)
		return nil

	case "vote":
		if err := gs.AttendEvent(ctx, *event, *vote); err != nil {
			return err
		}
		fmt.Printf("✅ Voted %s\n", *vote)
		return nil
	}
	return fmt.Errorf("unknown group action %q", action)
}
