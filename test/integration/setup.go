// Package integration drives the HTTP API against a real postgres backend.
package integration

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	handler "github.com/vncsmyrnk/timedpolls/internal/adapters/handler/http"
	"github.com/vncsmyrnk/timedpolls/internal/adapters/scheduler"
	"github.com/vncsmyrnk/timedpolls/internal/app"
	"github.com/vncsmyrnk/timedpolls/internal/config"
	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
	"github.com/vncsmyrnk/timedpolls/internal/core/services"
)

type TestApp struct {
	Server  *httptest.Server
	Client  *http.Client
	Store   ports.Storage
	Polls   ports.PollService
	Sweeper ports.SweepService
}

func setupPostgresContainer(ctx context.Context) (testcontainers.Container, string, error) {
	pgContainer, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", err
	}

	return pgContainer, connStr, nil
}

func setupTestApp(t *testing.T) *TestApp {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	dbContainer, dbURL, err := setupPostgresContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := dbContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	logger := app.NewLogger("debug")
	store, err := app.OpenStorage(ctx, config.StorageConfig{Type: config.StoragePostgres, PostgresURL: dbURL}, logger)
	require.NoError(t, err)

	sched := scheduler.New(logger)
	sessions := services.NewSessionService(sched, nil, services.SessionConfig{Logger: logger})
	polls := services.NewPollService(store, sessions, sched, nil, services.PollConfig{Logger: logger})

	router := handler.NewHandler(
		handler.NewSessionHandler(sessions, polls),
		handler.NewPollHandler(polls),
		handler.NewVoteHandler(polls),
		nil,
	)
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		polls.Shutdown()
		sessions.Shutdown()
		sched.Stop()
		store.Close()
	})

	return &TestApp{
		Server:  server,
		Client:  server.Client(),
		Store:   store,
		Polls:   polls,
		Sweeper: services.NewSweepService(store, polls, nil, logger),
	}
}

// Do sends a JSON request as user and decodes a successful response into out.
func (app *TestApp) Do(t *testing.T, method, path, user string, body, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, app.Server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(handler.UserIDHeader, user)
	}

	resp, err := app.Client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (app *TestApp) PublishPoll(t *testing.T, user, code, duration string, options ...string) string {
	t.Helper()
	require.Equal(t, http.StatusCreated, app.Do(t, http.MethodPost, "/api/sessions", user, nil, nil))
	set := func(field string, option int, value string) {
		body := map[string]any{"value": value, "option": option}
		require.Equal(t, http.StatusOK, app.Do(t, http.MethodPut, "/api/sessions/fields/"+field, user, body, nil))
	}
	set("code", 0, code)
	set("question", 0, "Integration question?")
	if duration != "" {
		set("duration", 0, duration)
	}
	for i, opt := range options {
		set("option", i+1, opt)
	}

	var poll struct {
		ID string `json:"id"`
	}
	require.Equal(t, http.StatusCreated, app.Do(t, http.MethodPost, "/api/sessions/publish", user, nil, &poll))
	return poll.ID
}
