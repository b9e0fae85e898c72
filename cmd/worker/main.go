// The worker process consumes dispatch tasks from the queue. It shares the
// lead store and the dispatch orchestrator with the API process; only the
// entry point differs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fastlead_backend/internal/channels"
	"fastlead_backend/internal/dispatch"
	"fastlead_backend/internal/leads/repository"
	"fastlead_backend/internal/notification"
	"fastlead_backend/internal/tasks"
	"fastlead_backend/platform/config"
	"fastlead_backend/platform/db"
	"fastlead_backend/platform/events"
	"fastlead_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting dispatch worker", "env", cfg.Env, "queue", cfg.AsynqQueueName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Migrations are owned by the API process; the worker only connects.
	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)

	// Dead letters and review requests raised in this process must still
	// reach the operator feed.
	notification.NewService(notification.NewRepository(pool), log).RegisterSubscribers(eventBus)

	repo := repository.New(pool)
	policy := tasks.DefaultRetryPolicy()

	taskClient, err := tasks.NewClient(cfg, policy, log)
	if err != nil {
		log.Error("failed to initialize task client", "error", err)
		panic("failed to initialize task client: " + err.Error())
	}
	defer taskClient.Close()

	templates, err := dispatch.LoadTemplates(cfg)
	if err != nil {
		log.Error("failed to load message templates", "error", err)
		panic("failed to load message templates: " + err.Error())
	}

	registry := channels.NewRegistry(cfg, cfg, cfg, log)
	orchestrator := dispatch.NewOrchestrator(repo, registry, taskClient, eventBus, templates, policy, log)

	worker, err := tasks.NewWorker(cfg, policy, orchestrator, log)
	if err != nil {
		log.Error("failed to initialize task worker", "error", err)
		panic("failed to initialize task worker: " + err.Error())
	}
	worker.HandleFunc(tasks.TaskLeadDispatch, orchestrator.HandleTask)

	log.Info("worker consuming", "queue", cfg.AsynqQueueName, "concurrency", cfg.AsynqConcurrency)
	if err := worker.Run(ctx); err != nil {
		log.Error("worker error", "error", err)
		os.Exit(1)
	}
	log.Info("worker stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
