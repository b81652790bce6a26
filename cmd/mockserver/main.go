// Command mockserver runs the seeded in-memory social network backend used
// by the smoke runner and local development.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"socialnet/internal/cache"
	"socialnet/internal/config"
	"socialnet/internal/mockapi"
	"socialnet/internal/observability"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	useRedis := flag.Bool("redis", false, "track websocket presence in REDIS_URL")
	empty := flag.Bool("empty", false, "start without seed data")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	observability.Configure(cfg.Env, cfg.LogLevel)

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:  "socialnet-mockserver",
		Environment:  cfg.Env,
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplerRatio: cfg.TracingSampler,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	var opts []mockapi.Option
	if *empty {
		opts = append(opts, mockapi.WithoutSeed())
	}
	if *useRedis {
		rdb, err := cache.Connect(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer func() { _ = rdb.Close() }()
		opts = append(opts, mockapi.WithRedis(rdb))
	}

	srv, err := mockapi.New(cfg, opts...)
	if err != nil {
		log.Fatalf("Failed to create mock server: %v", err)
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				observability.GlobalLogger.Error("metrics server stopped", slog.String("error", err.Error()))
			}
		}()
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down mock server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(ctx)
		}
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("Tracing shutdown error: %v", err)
		}
	}()

	log.Printf("Mock API starting on port %s...", cfg.MockPort)
	if err := srv.Listen(":" + cfg.MockPort); err != nil {
		log.Fatal(err)
	}
}
