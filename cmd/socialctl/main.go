// Command socialctl is a terminal front end for the social network API.
//
//	socialctl login -email alice@example.com -password password123
//	socialctl feed
//	socialctl post -content "hello" -image photo.png
//	socialctl groups -filter joined
//	socialctl notifications -unseen
//	socialctl chat send 2 "hi bob"
//	socialctl listen
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"socialnet/internal/api"
	"socialnet/internal/config"
	"socialnet/internal/observability"
	"socialnet/internal/session"
	"socialnet/internal/store"
)

type app struct {
	cfg    *config.Config
	client *api.Client
	auth   *store.AuthStore
}

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
	// public commands run without a restored session.
	public bool
}

var commands = map[string]command{
	"login":         {usage: "login -email E -password P", run: runLogin, public: true},
	"signup":        {usage: "signup -email E -password P -first F -last L [-nickname N]", run: runSignUp, public: true},
	"logout":        {usage: "logout", run: runLogout},
	"whoami":        {usage: "whoami", run: runWhoAmI},
	"profile":       {usage: "profile [-id N] [-connections followers|following]", run: runProfile},
	"follow":        {usage: "follow -id N [-action follow|unfollow|accept|decline]", run: runFollow},
	"visibility":    {usage: "visibility", run: runVisibility},
	"avatar":        {usage: "avatar -image PATH", run: runAvatar},
	"feed":          {usage: "feed [-type all|user|group] [-id N]", run: runFeed},
	"post":          {usage: "post -content TEXT [-privacy P] [-group N] [-image PATH]", run: runPost},
	"comment":       {usage: "comment -post N [-content TEXT]", run: runComment},
	"groups":        {usage: "groups [-filter all|joined|created|invited] [-search S]", run: runGroups},
	"group":         {usage: "group -id N | group create -name N -description D | group join|accept|decline -id N | group invite -id N -user U | group event -id N -title T -date RFC3339 | group vote -event N -vote going|not_going", run: runGroup},
	"notifications": {usage: "notifications [-unseen] [-page N] | notifications read|delete|accept|decline ID | notifications clear", run: runNotifications},
	"chat":          {usage: "chat recent | chat history USER | chat send USER TEXT | chat group GROUP TEXT | chat delete ID", run: runChat},
	"listen":        {usage: "listen", run: runListen},
}

func usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(os.Stderr, "usage: socialctl <command> [flags]")
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		usage()
		return 2
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		usage()
		return 2
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}
	observability.Configure(cfg.Env, cfg.LogLevel)
	// A session has to outlive the process here.
	if cfg.SessionBackend == "" || cfg.SessionBackend == "memory" {
		cfg.SessionBackend = "sqlite"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, err := session.Open(ctx, cfg)
	if err != nil {
		log.Printf("Failed to open session store: %v", err)
		return 1
	}
	defer func() { _ = sessions.Close() }()

	client := api.New(cfg)
	a := &app{cfg: cfg, client: client, auth: store.NewAuthStore(client, sessions)}

	if !cmd.public {
		user, err := a.auth.Initialize(ctx)
		if err != nil {
			return fail(err)
		}
		if user == nil {
			return fail(errors.New("not signed in, run: socialctl login"))
		}
	}

	if err := cmd.run(ctx, a, os.Args[2:]); err != nil {
		return fail(err)
	}
	return 0
}

func fail(err error) int {
	fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	return 1
}
