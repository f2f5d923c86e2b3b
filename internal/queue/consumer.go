package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Defaults for NewConsumer.
const (
	DefaultPollTimeout  = 5 * time.Second
	DefaultErrorBackoff = time.Second
)

// List is the subset of the Redis client used by the consumer.
type List interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

var _ List = (*redis.Client)(nil)

// Handler processes one message. A returned error dead-letters the message.
type Handler func(ctx context.Context, m Message) error

// Consumer pops messages from a Redis list and hands them to a Handler.
type Consumer struct {
	list         List
	queue        string
	failed       string
	handler      Handler
	workers      int
	pollTimeout  time.Duration
	errorBackoff time.Duration
	logger       *slog.Logger
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithWorkers sets the number of messages processed concurrently.
func WithWorkers(n int) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithPollTimeout sets how long one BLPOP blocks.
func WithPollTimeout(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.pollTimeout = d
	}
}

// WithErrorBackoff sets the pause after a Redis error.
func WithErrorBackoff(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.errorBackoff = d
	}
}

// NewConsumer creates a consumer of queue that pushes failed messages to failed.
func NewConsumer(list List, queue, failed string, handler Handler, logger *slog.Logger, opts ...ConsumerOption) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Consumer{
		list:         list,
		queue:        queue,
		failed:       failed,
		handler:      handler,
		workers:      1,
		pollTimeout:  DefaultPollTimeout,
		errorBackoff: DefaultErrorBackoff,
		logger:       logger.With(slog.String("queue", queue)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes until ctx is cancelled. Messages already popped are
// finished before Run returns.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("queue consumer started", slog.Int("workers", c.workers))

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				c.poll(ctx)
			}
		}()
	}
	wg.Wait()

	c.logger.Info("queue consumer stopped")
}

// poll waits for one message and handles it.
func (c *Consumer) poll(ctx context.Context) {
	res, err := c.list.BLPop(ctx, c.pollTimeout, c.queue).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		c.logger.Error("failed to pop message", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
		case <-time.After(c.errorBackoff):
		}
		return
	case len(res) != 2:
		c.logger.Error("unexpected BLPOP reply", slog.Int("len", len(res)))
		return
	}

	// The run outlives a shutdown signal so the message is not lost mid-way.
	c.handle(context.WithoutCancel(ctx), res[1])
}

// handle processes one raw message and dead-letters it on failure.
func (c *Consumer) handle(ctx context.Context, raw string) {
	m, err := ParseMessage([]byte(raw))
	if err == nil {
		c.logger.Info("received message",
			slog.String("doc_id", m.DocID),
			slog.String("version_id", m.VersionID),
		)
		err = c.handler(ctx, m)
	}
	if err == nil {
		return
	}

	c.logger.Error("message failed", slog.String("error", err.Error()))
	if c.failed == "" {
		return
	}
	if pushErr := c.list.RPush(ctx, c.failed, raw).Err(); pushErr != nil {
		c.logger.Error("failed to dead-letter message",
			slog.String("failed_queue", c.failed),
			slog.String("error", pushErr.Error()),
		)
	}
}
