package queue

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/copp1723/seorylie-sub005/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Enqueuer schedules conversation turn jobs.
type Enqueuer interface {
	EnqueueTurn(ctx context.Context, payload TurnPayload, priority int) error
}

type Client struct {
	client    *asynq.Client
	maxRetry  int
	retention time.Duration
}

func NewClient(cfg config.QueueConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := RedisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	maxRetry := cfg.GetQueueMaxRetry()
	if maxRetry < 0 {
		maxRetry = 0
	}

	return &Client{
		client:    asynq.NewClient(opt),
		maxRetry:  maxRetry,
		retention: cfg.GetQueueRetention(),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueTurn schedules one turn job on the queue matching the conversation's
// priority. asynq retries a failed handler with exponential backoff up to
// maxRetry times, then archives the task (dead-letter).
func (c *Client) EnqueueTurn(ctx context.Context, payload TurnPayload, priority int) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("queue client not initialized")
	}

	task, err := NewTurnTask(payload)
	if err != nil {
		return err
	}

	opts := []asynq.Option{
		asynq.Queue(QueueForPriority(priority)),
		asynq.MaxRetry(c.maxRetry),
	}
	if c.retention > 0 {
		opts = append(opts, asynq.Retention(c.retention))
	}

	_, err = c.client.EnqueueContext(ctx, task, opts...)
	return err
}

// RedisClientOpt builds the asynq Redis connection options from a redis URL.
func RedisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
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
