package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/intend-hooks/service/internal/app/hooks"
	"github.com/intend-hooks/service/internal/docstore"
	"github.com/intend-hooks/service/internal/platform/dbpool"
	"github.com/intend-hooks/service/internal/platform/env"
	"github.com/intend-hooks/service/internal/platform/metrics"
	"github.com/intend-hooks/service/internal/platform/natsutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
)

func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	webhookAddr := env.String("WEBHOOK_ADDR", env.DefaultWebhookAddr)
	frontendOrigin := env.String("FRONTEND_ORIGIN", env.DefaultFrontendOrigin)
	pgURL := env.String("DATABASE_URL", env.DefaultDatabaseURL)
	relayEnabled := env.Bool("RELAY_ENABLED", true)
	resetPomodoro := env.Bool("RESET_POMODORO_ON_TASK_CHANGE", true)
	shutdownTimeout := env.Duration("SHUTDOWN_TIMEOUT", 10*time.Second)

	pool, err := dbpool.New(runCtx, pgURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := docstore.NewPostgres(pool)
	if err := waitForDocumentSchema(runCtx, store, 30*time.Second); err != nil {
		log.Fatal(err)
	}

	var publish hooks.PublishFunc
	var natsClient *natsutil.Client
	if relayEnabled {
		natsClient, err = natsutil.ConnectJetStreamWithRetry(env.String("NATS_URL", env.DefaultNATSURL), 20*time.Second)
		if err != nil {
			log.Fatal(err)
		}
		defer natsClient.Close()
		publisher := natsutil.JetStreamPublisher{JS: natsClient.JS}
		publish = publisher.Publish
	}

	service := hooks.NewService(store, publish)
	service.ResetPomodoroOnTaskChange = resetPomodoro
	handler := hooks.NewHandler(service, frontendOrigin)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.DefaultHandler())
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := checkReadiness(r.Context(), pool, natsClient); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:              webhookAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	fmt.Printf("Webhook API listening on %s\n", webhookAddr)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Fatal(err)
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("webhook-api graceful shutdown failed: %v", err)
	}
}

func waitForDocumentSchema(ctx context.Context, store *docstore.Postgres, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = store.EnsureSchema(attemptCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		log.Printf("waiting for document schema readiness: %v", lastErr)
		time.Sleep(500 * time.Millisecond)
	}
	return lastErr
}

func checkReadiness(ctx context.Context, pool *pgxpool.Pool, natsClient *natsutil.Client) error {
	if natsClient != nil {
		if natsClient.Conn == nil {
			return errors.New("nats connection is nil")
		}
		if natsClient.Conn.Status() != nats.CONNECTED {
			return fmt.Errorf("nats is not connected: %s", natsClient.Conn.Status().String())
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
	defer cancel()
	if err := pool.Ping(checkCtx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}
