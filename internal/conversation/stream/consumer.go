// Package stream consumes newly-created lead events from a Redis Stream with
// consumer-group semantics and hands each one to the lead handler.
package stream

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/copp1723/seorylie-sub005/internal/conversation/transport"
	"github.com/copp1723/seorylie-sub005/platform/config"
	"github.com/copp1723/seorylie-sub005/platform/logger"
	"github.com/copp1723/seorylie-sub005/platform/validator"

	"github.com/redis/go-redis/v9"
)

const (
	// payloadField is the stream entry field carrying the lead JSON.
	payloadField = "payload"

	readBlock    = 5 * time.Second
	readBatch    = 10
	claimMinIdle = time.Minute
)

// LeadHandler converts one valid lead event into a conversation plus its
// first queued turn. A returned error leaves the stream entry un-acked so it
// is redelivered.
type LeadHandler interface {
	HandleLead(ctx context.Context, lead transport.LeadEvent) error
}

// Status reports stream connectivity for health monitoring.
type Status struct {
	Connected     bool
	StreamsActive int
}

type Consumer struct {
	rdb      *redis.Client
	key      string
	group    string
	consumer string
	handler  LeadHandler
	val      *validator.Validator
	log      *logger.Logger
}

func NewConsumer(cfg config.StreamConfig, rdb *redis.Client, handler LeadHandler, val *validator.Validator, log *logger.Logger) *Consumer {
	return &Consumer{
		rdb:      rdb,
		key:      cfg.GetLeadStreamKey(),
		group:    cfg.GetLeadStreamGroup(),
		consumer: cfg.GetLeadStreamConsumer(),
		handler:  handler,
		val:      val,
		log:      log,
	}
}

// NewRedisClient builds a go-redis client from a redis URL.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}
	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt), nil
}

// Run consumes lead events until ctx is cancelled. Entries whose handler
// failed stay pending and are reclaimed after claimMinIdle, so a crashed or
// failed delivery is retried rather than lost.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.claimStale(ctx)

		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  []string{c.key, ">"},
			Count:    readBatch,
			Block:    readBlock,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("lead stream read failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				c.process(ctx, msg)
			}
		}
	}
}

// ensureGroup creates the consumer group, reading from the start of the
// stream. An already-existing group is fine.
func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.key, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// claimStale takes over pending entries abandoned by dead consumers.
func (c *Consumer) claimStale(ctx context.Context) {
	msgs, _, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.key,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  claimMinIdle,
		Start:    "0-0",
		Count:    readBatch,
	}).Result()
	if err != nil {
		return
	}
	for _, msg := range msgs {
		c.process(ctx, msg)
	}
}

// process handles one stream entry. Malformed events are acked and dropped
// (they would never succeed); handler failures leave the entry pending for
// redelivery.
func (c *Consumer) process(ctx context.Context, msg redis.XMessage) {
	raw, ok := msg.Values[payloadField].(string)
	if !ok {
		c.log.Warn("lead event missing payload field, dropping", "messageId", msg.ID)
		c.ack(ctx, msg.ID)
		return
	}

	var lead transport.LeadEvent
	if err := json.Unmarshal([]byte(raw), &lead); err != nil {
		c.log.Warn("malformed lead event, dropping", "messageId", msg.ID, "error", err)
		c.ack(ctx, msg.ID)
		return
	}

	if err := c.val.Struct(lead); err != nil {
		c.log.Warn("invalid lead event, dropping", "messageId", msg.ID, "error", err)
		c.ack(ctx, msg.ID)
		return
	}

	if err := c.handler.HandleLead(ctx, lead); err != nil {
		c.log.Error("lead handling failed, leaving event for redelivery", "messageId", msg.ID, "leadId", lead.ID, "error", err)
		return
	}

	c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, messageID string) {
	if err := c.rdb.XAck(ctx, c.key, c.group, messageID).Err(); err != nil {
		c.log.Warn("lead event ack failed", "messageId", messageID, "error", err)
	}
}

// Status reports whether Redis is reachable and whether the lead stream
// exists yet.
func (c *Consumer) Status(ctx context.Context) Status {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return Status{}
	}

	active := 0
	if exists, err := c.rdb.Exists(ctx, c.key).Result(); err == nil && exists > 0 {
		active = 1
	}

	return Status{Connected: true, StreamsActive: active}
}
