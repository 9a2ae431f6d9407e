package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler returns nil only when the message was processed and its offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	workers int
	log     *zap.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{r: r, workers: workers, log: log}
}

// Start fetches until ctx is cancelled. Messages with the same key always go
// to the same worker, so per-key order survives the pool.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	d := newDispatcher(c.workers)
	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer func() {
		for _, ch := range jobs {
			close(ch)
		}
	}()

	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 256)
		wg.Add(1)
		go func(id int, in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if err := h(ctx, m); err != nil {
					c.log.Warn("handler failed", zap.Int("worker", id), zap.Int64("offset", m.Offset), zap.Error(err))
					time.Sleep(200 * time.Millisecond)
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					c.log.Warn("commit failed", zap.Int("worker", id), zap.Int64("offset", m.Offset), zap.Error(err))
				}
			}
		}(i, jobs[i])
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs[d.pick(m)] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// dispatcher maps a message key to a worker index the same way the writer
// maps keys to partitions.
type dispatcher struct {
	balancer kafka.Hash
	slots    []int
}

func newDispatcher(workers int) *dispatcher {
	slots := make([]int, workers)
	for i := range slots {
		slots[i] = i
	}
	return &dispatcher{slots: slots}
}

func (d *dispatcher) pick(m kafka.Message) int {
	if len(d.slots) == 1 {
		return 0
	}
	return d.balancer.Balance(m, d.slots...)
}
