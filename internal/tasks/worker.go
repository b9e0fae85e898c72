package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"fastlead_backend/platform/apperr"
	"fastlead_backend/platform/config"
	"fastlead_backend/platform/logger"
)

// DeadLetterHandler receives tasks that have permanently failed: either the
// retry budget is exhausted or the handler declared the failure permanent.
type DeadLetterHandler interface {
	HandleDeadLetter(ctx context.Context, task *asynq.Task, cause error)
}

// Worker runs the task queue consumer. Handlers are registered per task
// type before Run is called.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, policy RetryPolicy, dead DeadLetterHandler, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.GetAsynqConcurrency(),
		Queues: map[string]int{
			cfg.GetAsynqQueueName(): 1,
		},
		// Benign state conflicts are no-ops, not failures; they must not
		// count against the retry budget.
		IsFailure: func(err error) bool {
			return !apperr.IsBenign(err)
		},
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			return policy.Delay(n)
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			id, _ := asynq.GetTaskID(ctx)
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)

			terminal := retried >= maxRetry || errors.Is(err, asynq.SkipRetry)
			if !terminal {
				log.TaskEvent("attempt_failed", task.Type(), id, retried)
				return
			}

			log.TaskEvent("dead_letter", task.Type(), id, retried)
			if dead != nil {
				dead.HandleDeadLetter(ctx, task, err)
			}
		}),
	})

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
		log:    log,
	}, nil
}

// HandleFunc registers a handler for a task type. Handler error semantics:
// nil for success and for benign no-ops, an error wrapping asynq.SkipRetry
// for permanent failures, any other error to trigger a retry.
func (w *Worker) HandleFunc(taskType string, handler func(context.Context, *asynq.Task) error) {
	w.mux.HandleFunc(taskType, handler)
}

// Run starts consuming and blocks until ctx is cancelled, then drains
// in-flight tasks before returning.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return err
	}

	<-ctx.Done()
	w.log.Info("task worker shutting down")
	w.server.Shutdown()
	return nil
}
