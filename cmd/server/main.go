package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vncsmyrnk/timedpolls/internal/adapters/announcer"
	"github.com/vncsmyrnk/timedpolls/internal/adapters/handler/http"
	"github.com/vncsmyrnk/timedpolls/internal/adapters/scheduler"
	"github.com/vncsmyrnk/timedpolls/internal/adapters/slack"
	"github.com/vncsmyrnk/timedpolls/internal/app"
	"github.com/vncsmyrnk/timedpolls/internal/config"
	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
	"github.com/vncsmyrnk/timedpolls/internal/core/services"
)

func main() {
	configFile := flag.String("config", os.Getenv("POLLS_CONFIG"), "Optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal(err)
	}

	logger := app.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
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

	sessions := services.NewSessionService(sched, ann, services.SessionConfig{
		RepromptInterval:     cfg.RepromptInterval(),
		RepromptOnlyWhenIdle: cfg.Sessions.RepromptOnlyWhenIdle,
		Logger:               logger,
	})
	polls := services.NewPollService(store, sessions, sched, ann, services.PollConfig{
		DefaultDuration: cfg.Polls.DefaultDuration,
		CloseRetryMax:   cfg.Polls.CloseRetryMaxInterval,
		Logger:          logger,
	})
	defer sessions.Shutdown()
	defer polls.Shutdown()
	if err := polls.Resume(ctx); err != nil {
		return fmt.Errorf("failed to resume poll timers: %w", err)
	}

	var slash stdhttp.Handler
	if cfg.Slack.SigningSecret != "" {
		slash = slack.NewCommandHandler(polls, sessions, cfg.Slack.SigningSecret, logger)
	}

	handler := http.NewHandler(
		http.NewSessionHandler(sessions, polls),
		http.NewPollHandler(polls),
		http.NewVoteHandler(polls),
		slash,
	)
	server := &stdhttp.Server{Addr: cfg.HTTPAddr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "storage", cfg.Storage.Type)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}
	logger.Info("gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if webhook != nil {
		webhook.Wait()
	}
	return nil
}
