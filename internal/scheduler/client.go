package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"salescrm_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	defaultQueue       = "default"
	defaultMaxRetry    = 3
	defaultTaskTimeout = 30 * time.Second
)

type Client struct {
	client   *asynq.Client
	queue    string
	maxRetry int
	timeout  time.Duration
}

// NotificationScheduler enqueues assignment notifications.
type NotificationScheduler interface {
	EnqueueNotifyAssigned(ctx context.Context, payload NotifyAssignedPayload) error
}

var _ NotificationScheduler = (*Client)(nil)

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return newClient(asynq.NewClient(opt), cfg), nil
}

func newClient(client *asynq.Client, cfg config.SchedulerConfig) *Client {
	c := &Client{
		client:   client,
		queue:    cfg.GetAsynqQueueName(),
		maxRetry: cfg.GetAsynqMaxRetry(),
		timeout:  cfg.GetAsynqTaskTimeout(),
	}
	if c.queue == "" {
		c.queue = defaultQueue
	}
	if c.maxRetry < 0 {
		c.maxRetry = defaultMaxRetry
	}
	if c.timeout <= 0 {
		c.timeout = defaultTaskTimeout
	}
	return c
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) EnqueueNotifyAssigned(ctx context.Context, payload NotifyAssignedPayload) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewNotifyAssignedTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(c.timeout),
	)
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
