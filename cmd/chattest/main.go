// Package main provides a stress testing tool for the chat WebSocket server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"socialnet/internal/api"
	"socialnet/internal/config"
	"socialnet/internal/models"
	"socialnet/internal/observability"
	"socialnet/internal/realtime"
)

// Metrics tracks the test results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	Reconnects           int64
	MessagesSent         int64
	MessagesAcked        int64
	MessagesRejected     int64
	MessagesReceived     int64
	Errors               int64
}

var metrics Metrics

func main() {
	users := flag.String("users", "alice@example.com,bob@example.com,carol@example.com,dave@example.com", "Comma separated test user emails")
	password := flag.String("password", "", "Test user password (defaults to SMOKE_USER_PASSWORD)")
	clients := flag.Int("clients", 40, "Number of concurrent clients")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	interval := flag.Duration("interval", 5*time.Second, "Delay between messages per client")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	observability.Configure(cfg.Env, "warn")
	if *password == "" {
		*password = cfg.SmokeUserPassword
	}

	log.Printf("🚀 Starting Chat Stress Test")
	log.Printf("Target: %s", cfg.WebSocketURL(cfg.ChatWSPath))
	log.Printf("Clients: %d", *clients)
	log.Printf("Duration: %v", *duration)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Sign every user in once; clients share sessions round-robin.
	var sessions []*api.Client
	for _, email := range strings.Split(*users, ",") {
		c := api.New(cfg)
		if _, err := c.SignIn(ctx, models.Credentials{Email: strings.TrimSpace(email), Password: *password}); err != nil {
			log.Fatalf("❌ Login failed for %s: %v", email, err)
		}
		if _, err := c.CurrentUser(ctx); err != nil {
			log.Fatalf("❌ Session check failed for %s: %v", email, err)
		}
		sessions = append(sessions, c)
	}
	if len(sessions) < 2 {
		log.Fatalf("❌ Need at least two users to exchange messages")
	}
	log.Printf("✅ Logged in %d users", len(sessions))

	var wg sync.WaitGroup
	runCtx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		from := sessions[i%len(sessions)]
		to := sessions[(i+1)%len(sessions)]
		go runClient(runCtx, cfg, from, to.UserID(), i, *interval, &wg)
		time.Sleep(50 * time.Millisecond) // Stagger connections
	}

	<-runCtx.Done()
	if ctx.Err() != nil {
		log.Println("🛑 Interrupted by user")
	} else {
		log.Println("⏱️  Test duration reached")
	}

	log.Println("Waiting for clients to disconnect...")
	wg.Wait()

	printMetrics()
}

func runClient(ctx context.Context, cfg *config.Config, session *api.Client, receiverID, id int, interval time.Duration, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	rt := realtime.New(cfg, session.Token,
		realtime.WithPath(cfg, cfg.ChatWSPath),
		realtime.WithChannel(fmt.Sprintf("chattest-%d", id)),
	)
	rt.OnMessage(func(ev realtime.Event) {
		switch {
		case ev.IsAck() && ev.Failed():
			atomic.AddInt64(&metrics.MessagesRejected, 1)
		case ev.IsAck():
			atomic.AddInt64(&metrics.MessagesAcked, 1)
		case ev.Type == models.FrameMessage:
			atomic.AddInt64(&metrics.MessagesReceived, 1)
		}
	})
	var connected atomic.Bool
	rt.OnConnectionChange(func(up bool, err error) {
		if up && connected.Swap(true) {
			atomic.AddInt64(&metrics.Reconnects, 1)
		}
		if err != nil {
			atomic.AddInt64(&metrics.Errors, 1)
		}
	})

	if err := rt.Connect(ctx); err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	defer rt.Disconnect()

	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame := realtime.ChatFrame(receiverID, fmt.Sprintf("Stress test message from client %d", id))
			if err := rt.Send(frame); err != nil {
				atomic.AddInt64(&metrics.Errors, 1)
				continue
			}
			atomic.AddInt64(&metrics.MessagesSent, 1)
		}
	}
}

func printMetrics() {
	log.Println("\n📊 Test Results")
	log.Println("===============")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Reconnects: %d", atomic.LoadInt64(&metrics.Reconnects))
	log.Printf("Messages Sent: %d", atomic.LoadInt64(&metrics.MessagesSent))
	log.Printf("Messages Acked: %d", atomic.LoadInt64(&metrics.MessagesAcked))
	log.Printf("Messages Rejected: %d", atomic.LoadInt64(&metrics.MessagesRejected))
	log.Printf("Messages Received: %d", atomic.LoadInt64(&metrics.MessagesReceived))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))
}
