// Command smoke runs end-to-end scenarios against a running backend.
//
//	smoke [-plan plan.yml] [-list] [scenario ...]
//
// With no scenario names every built-in scenario runs. The exit status is 1
// when any step fails.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"socialnet/internal/config"
	"socialnet/internal/observability"
	"socialnet/internal/smoke"
)

func main() {
	planPath := flag.String("plan", "", "YAML plan with base URL, users and scenarios")
	list := flag.Bool("list", false, "list scenarios and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	observability.Configure(cfg.Env, cfg.LogLevel)

	opts := []smoke.Option{smoke.WithOutput(os.Stdout)}
	names := flag.Args()
	if *planPath != "" {
		plan, err := smoke.LoadPlan(*planPath)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		opts = append(opts, plan.Apply(cfg)...)
		if len(names) == 0 {
			names = plan.Scenarios
		}
	}

	runner := smoke.NewRunner(cfg, opts...)
	if *list {
		fmt.Print(runner.Describe())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("🚀 Smoke testing %s\n", cfg.APIBaseURL)
	report := runner.Run(ctx, names...)
	if report.Failed() {
		stop()
		os.Exit(1)
	}
}
