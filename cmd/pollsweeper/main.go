package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/vncsmyrnk/timedpolls/internal/adapters/announcer"
	"github.com/vncsmyrnk/timedpolls/internal/adapters/scheduler"
	"github.com/vncsmyrnk/timedpolls/internal/adapters/slack"
	"github.com/vncsmyrnk/timedpolls/internal/app"
	"github.com/vncsmyrnk/timedpolls/internal/config"
	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
	"github.com/vncsmyrnk/timedpolls/internal/core/services"
)

// pollsweeper closes every open poll whose close time has passed. It covers
// polls whose timers were lost while no server was running.
func main() {
	configFile := flag.String("config", os.Getenv("POLLS_CONFIG"), "Optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal(err)
	}
	logger := app.NewLogger(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("poll sweep failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Use a timeout for the job execution to prevent it from hanging indefinitely
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Polls.SweepTimeout)
	defer cancel()

	store, err := app.OpenStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	sched := scheduler.New(logger)
	defer sched.Stop()

	announcers := []ports.Announcer{announcer.NewLogAnnouncer(logger)}
	var webhook *slack.WebhookAnnouncer
	if cfg.Slack.WebhookURL != "" {
		webhook = slack.NewWebhookAnnouncer(cfg.Slack.WebhookURL, logger)
		announcers = append(announcers, webhook)
	}
	ann := announcer.Fanout(announcers...)

	sessions := services.NewSessionService(sched, ann, services.SessionConfig{Logger: logger})
	polls := services.NewPollService(store, sessions, sched, ann, services.PollConfig{
		DefaultDuration: cfg.Polls.DefaultDuration,
		Logger:          logger,
	})
	defer polls.Shutdown()
	sweeper := services.NewSweepService(store, polls, nil, logger)

	logger.Info("starting poll sweep")

	closed, err := sweeper.CloseExpired(ctx)
	if webhook != nil {
		webhook.Wait()
	}
	if err != nil {
		return fmt.Errorf("closed %d polls before failing: %w", closed, err)
	}

	logger.Info("poll sweep completed", "closed", closed)
	return nil
}
