package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"socialnet/internal/models"
	"socialnet/internal/realtime"
	"socialnet/internal/store"
)

func printNotification(n models.Notification) {
	mark := "🔔"
	if n.Seen {
		mark = "  "
	}
	fmt.Printf("%s %s %s\n", mark, n.ID, n.Message)
	if n.SubMessage != "" {
		fmt.Printf("   %s\n", n.SubMessage)
	}
	if n.Actionable() && !n.Seen {
		fmt.Printf("   socialctl notifications accept|decline %s\n", n.ID)
	}
}

func runNotifications(ctx context.Context, a *app, args []string) error {
	ns := store.NewNotificationStore(a.client)
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return notificationAction(ctx, ns, args[0], args[1:])
	}

	fs := newFlags("notifications")
	unseen := fs.Bool("unseen", false, "only unseen notifications")
	page := fs.Int("page", 1, "page")
	limit := fs.Int("limit", 20, "page size")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var list []models.Notification
	if *unseen {
		p, err := ns.FetchUnseen(ctx, *page, *limit)
		if err != nil {
			return err
		}
		list = p.Notifications
		if p.HasMore {
			defer fmt.Printf("… more: socialctl notifications -unseen -page %d\n", *page+1)
		}
	} else {
		var err error
		if list, err = ns.Fetch(ctx); err != nil {
			return err
		}
	}
	fmt.Printf("%d unread\n", ns.FetchUnreadCount(ctx))
	for _, n := range list {
		printNotification(n)
	}
	return nil
}

func notificationAction(ctx context.Context, ns *store.NotificationStore, action string, args []string) error {
	if action == "clear" {
		if err := ns.ClearAll(ctx); err != nil {
			return err
		}
		fmt.Println("✅ All notifications marked read")
		return nil
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: socialctl notifications %s ID", action)
	}
	id := args[0]

	switch action {
	case "read":
		if err := ns.MarkAsRead(ctx, id); err != nil {
			return err
		}
		fmt.Println("✅ Marked read")
	case "delete":
		if err := ns.Remove(ctx, id); err != nil {
			return err
		}
		fmt.Println("🗑  Deleted")
	case models.NotificationActionAccept, models.NotificationActionDecline:
		// Load the notification so Act can fill in its group and sender.
		if _, err := ns.Fetch(ctx); err != nil {
			return err
		}
		msg, err := ns.Act(ctx, id, action)
		if err != nil {
			return err
		}
		fmt.Printf("✅ %s\n", msg)
	default:
		return fmt.Errorf("unknown notification action %q", action)
	}
	return nil
}

func printMessage(m models.Message, self int) {
	who := fmt.Sprintf("#%d", m.SenderID)
	if m.SenderID == self {
		who = "you"
	}
	fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format(time.TimeOnly), who, m.Content)
}

func atoi(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive id, got %q", name, s)
	}
	return n, nil
}

func runChat(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: socialctl chat recent|history|send|group|delete")
	}
	cs := store.NewChatStore(a.client, nil)
	self := a.client.UserID()

	switch args[0] {
	case "recent":
		convs, err := cs.RecentConversations(ctx)
		if err != nil {
			return err
		}
		for _, c := range convs {
			unread := ""
			if c.UnreadCount > 0 {
				unread = fmt.Sprintf(" (%d unread)", c.UnreadCount)
			}
			fmt.Printf("💬 #%d %s%s: %s\n", c.OtherUserID, c.OtherUserName, unread, c.LastMessage)
		}
		return nil

	case "history":
		if len(args) != 2 {
			return errors.New("usage: socialctl chat history USER")
		}
		other, err := atoi("USER", args[1])
		if err != nil {
			return err
		}
		msgs, err := cs.LoadConversation(ctx, other)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			printMessage(m, self)
		}
		return nil

	case "send", "group":
		if len(args) < 3 {
			return fmt.Errorf("usage: socialctl chat %s ID TEXT", args[0])
		}
		target, err := atoi("ID", args[1])
		if err != nil {
			return err
		}
		kind := store.ChatPrivate
		if args[0] == "group" {
			kind = store.ChatGroup
		}
		if kind == store.ChatGroup {
			// Group chat only travels over the socket.
			rt := realtime.New(a.cfg, a.client.Token, realtime.WithPath(a.cfg, a.cfg.ChatWSPath), realtime.WithChannel("socialctl"))
			if err := rt.Connect(ctx); err != nil {
				return err
			}
			defer rt.Disconnect()
			cs = store.NewChatStore(a.client, rt)
		}
		if err := cs.SetActive(kind, target); err != nil {
			return err
		}
		m, err := cs.SendMessage(ctx, strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		printMessage(m, self)
		return nil

	case "delete":
		if len(args) != 2 {
			return errors.New("usage: socialctl chat delete ID")
		}
		id, err := atoi("ID", args[1])
		if err != nil {
			return err
		}
		if err := cs.DeleteMessage(ctx, id); err != nil {
			return err
		}
		fmt.Println("🗑  Deleted")
		return nil
	}
	return fmt.Errorf("unknown chat action %q", args[0])
}

// runListen streams notifications and chat messages until interrupted.
func runListen(ctx context.Context, a *app, _ []string) error {
	rt := realtime.New(a.cfg, a.client.Token, realtime.WithChannel("socialctl"))
	ns := store.NewNotificationStore(a.client)
	cs := store.NewChatStore(a.client, rt)
	self := a.client.UserID()

	rt.OnConnectionChange(func(connected bool, err error) {
		switch {
		case err != nil:
			fmt.Printf("💥 connection lost: %v\n", err)
		case connected:
			fmt.Println("🟢 connected")
			_ = rt.Send(realtime.SubscribeFrame())
		default:
			fmt.Println("🟡 disconnected, retrying")
		}
	})
	rt.OnMessage(func(ev realtime.Event) {
		switch {
		case ev.Message != nil:
			printMessage(*ev.Message, self)
		case ev.Notification != nil:
			printNotification(*ev.Notification)
		case ev.Type == models.FrameNotificationCountUpdated:
			fmt.Printf("🔔 %d unread\n", ev.UnreadCount)
		case ev.IsAck() && ev.Failed():
			fmt.Printf("⚠️  %s\n", ev.Text)
		}
	})
	ns.Listen(ctx, rt)
	cs.Listen(ctx, rt)

	if err := rt.Connect(ctx); err != nil {
		return err
	}
	defer rt.Disconnect()
	fmt.Printf("👂 Listening as #%d, Ctrl-C to stop\n", self)
	<-ctx.Done()
	return nil
}
