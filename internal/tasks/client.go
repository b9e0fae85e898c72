package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"fastlead_backend/platform/config"
	"fastlead_backend/platform/logger"
)

// Client enqueues dispatch tasks. It is safe for concurrent use.
type Client struct {
	client *asynq.Client
	queue  string
	policy RetryPolicy
	log    *logger.Logger
}

func NewClient(cfg config.SchedulerConfig, policy RetryPolicy, log *logger.Logger) (*Client, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		client: asynq.NewClient(opt),
		queue:  cfg.GetAsynqQueueName(),
		policy: policy,
		log:    log,
	}, nil
}

// EnqueueLeadDispatch schedules the outbound contact for a lead. The task ID
// derives from (lead, purpose), so a second enqueue while one is pending or
// in flight is absorbed as a duplicate rather than producing a second send.
func (c *Client) EnqueueLeadDispatch(ctx context.Context, leadID, tenantID uuid.UUID, purpose string) (TaskHandle, error) {
	task, err := NewLeadDispatchTask(LeadDispatchPayload{
		LeadID:   leadID.String(),
		TenantID: tenantID.String(),
		Purpose:  purpose,
	})
	if err != nil {
		return TaskHandle{}, fmt.Errorf("build dispatch task: %w", err)
	}

	taskID := DispatchTaskID(leadID, purpose)
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(taskID),
		asynq.MaxRetry(c.policy.MaxRetry),
		asynq.Timeout(c.policy.HardTimeout),
		asynq.Retention(24*time.Hour),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		c.log.TaskEvent("enqueue_duplicate", TaskLeadDispatch, taskID, 0)
		return TaskHandle{ID: taskID, Type: TaskLeadDispatch, Queue: c.queue, Duplicate: true}, nil
	}
	if err != nil {
		return TaskHandle{}, fmt.Errorf("enqueue dispatch task: %w", err)
	}

	c.log.TaskEvent("enqueued", info.Type, info.ID, 0)
	return TaskHandle{ID: info.ID, Type: info.Type, Queue: info.Queue}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// redisClientOpt translates a redis:// or rediss:// URL into asynq's
// connection options, reusing the same URL the rest of the app uses for
// its Redis client.
func redisClientOpt(cfg config.SchedulerConfig) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("parse redis url: %w", err)
	}

	clientOpt := asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}
	if clientOpt.TLSConfig != nil && cfg.GetRedisTLSInsecure() {
		clientOpt.TLSConfig.InsecureSkipVerify = true
	}
	return clientOpt, nil
}
