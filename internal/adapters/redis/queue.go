package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cwiklam/cheap-holidays/internal/domain"
)

// Queue carries crawl tasks on a Redis list. One task = one page (or
// facet step) of one agency; the orchestrator pushes the follow-up task
// only after the current step persisted, which keeps a single agency's
// pages strictly ordered while independent agencies interleave freely.

const defaultQueueKey = "crawl:tasks"

// ErrEmpty reports that no task arrived within the blocking window.
var ErrEmpty = errors.New("queue: empty")

type Queue struct {
	c     *redis.Client
	key   string
	block time.Duration
}

func NewQueue(addr, pass string, db int) *Queue {
	return NewQueueFromClient(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}))
}

// NewQueueFromClient wires an existing client, used by tests against
// miniredis.
func NewQueueFromClient(c *redis.Client) *Queue {
	return &Queue{c: c, key: defaultQueueKey, block: 5 * time.Second}
}

func (q *Queue) Enqueue(ctx context.Context, t domain.Task) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return q.c.LPush(ctx, q.key, b).Err()
}

// Dequeue blocks for a bounded window so worker loops stay responsive
// to shutdown; an idle window returns ErrEmpty.
func (q *Queue) Dequeue(ctx context.Context) (domain.Task, error) {
	res, err := q.c.BRPop(ctx, q.block, q.key).Result()
	if err == redis.Nil {
		return domain.Task{}, ErrEmpty
	}
	if err != nil {
		return domain.Task{}, err
	}
	var t domain.Task
	if err := json.Unmarshal([]byte(res[1]), &t); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// Len reports the queue depth, for diagnostics.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.c.LLen(ctx, q.key).Result()
}
