package queue

import (
	"github.com/copp1723/seorylie-sub005/platform/config"

	"github.com/hibiken/asynq"
)

// Stats are aggregate queue counts across all conversation queues.
// Waiting covers pending, scheduled and retry-pending tasks; Failed counts
// archived (dead-lettered) tasks.
type Stats struct {
	Waiting   int
	Active    int
	Completed int
	Failed    int
}

// StatsProvider reports queue counts for health monitoring.
type StatsProvider interface {
	Stats() (Stats, error)
}

// Inspector reads queue counts from Redis via asynq's inspector API.
type Inspector struct {
	inspector *asynq.Inspector
}

func NewInspector(cfg config.QueueConfig) (*Inspector, error) {
	opt, err := RedisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}
	return &Inspector{inspector: asynq.NewInspector(opt)}, nil
}

func (i *Inspector) Close() error {
	if i == nil || i.inspector == nil {
		return nil
	}
	return i.inspector.Close()
}

func (i *Inspector) Stats() (Stats, error) {
	var stats Stats
	for _, qname := range []string{QueueCritical, QueueDefault, QueueLow} {
		info, err := i.inspector.GetQueueInfo(qname)
		if err != nil {
			// Queues only exist in Redis after the first enqueue.
			continue
		}
		stats.Waiting += info.Pending + info.Scheduled + info.Retry
		stats.Active += info.Active
		stats.Completed += info.Completed
		stats.Failed += info.Archived
	}
	return stats, nil
}
