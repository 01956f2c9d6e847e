package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/terra-clan/staffing-engine/internal/models"
)

// subscriberBuffer is the per-subscriber channel capacity; slow observers
// drop events rather than block the execution
const subscriberBuffer = 64

// ProgressBus fans execution events out to observers of a task
type ProgressBus interface {
	Publish(ctx context.Context, ev models.ExecutionEvent) error
	// Subscribe returns a channel of events for the task. The channel is
	// closed when ctx is done or cancel is called.
	Subscribe(ctx context.Context, taskID string) (events <-chan models.ExecutionEvent, cancel func(), err error)
}

// RedisBus implements ProgressBus over Redis pub/sub so observers connected
// to any instance see every event
type RedisBus struct {
	client redis.UniversalClient
	prefix string
	logger *zap.Logger
}

// NewRedisBus creates a Redis-backed progress bus
func NewRedisBus(client redis.UniversalClient, prefix string, logger *zap.Logger) *RedisBus {
	return &RedisBus{client: client, prefix: prefix, logger: logger.Named("bus")}
}

func (b *RedisBus) channel(taskID string) string {
	return b.prefix + taskID
}

// Publish implements ProgressBus
func (b *RedisBus) Publish(ctx context.Context, ev models.ExecutionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(ev.TaskID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe implements ProgressBus
func (b *RedisBus) Subscribe(ctx context.Context, taskID string) (<-chan models.ExecutionEvent, func(), error) {
	sub := b.client.Subscribe(ctx, b.channel(taskID))
	// wait for the subscription to be confirmed so no event published
	// after Subscribe returns is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	out := make(chan models.ExecutionEvent, subscriberBuffer)

	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev models.ExecutionEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn("dropping malformed event", zap.String("task_id", taskID), zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				default:
					b.logger.Debug("observer too slow, dropping event", zap.String("task_id", taskID))
				}
			}
		}
	}()

	return out, cancel, nil
}

// LocalBus implements ProgressBus in process memory
type LocalBus struct {
	mu   sync.RWMutex
	subs map[string]map[chan models.ExecutionEvent]struct{}
}

// NewLocalBus creates an in-process progress bus
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[chan models.ExecutionEvent]struct{})}
}

// Publish implements ProgressBus
func (b *LocalBus) Publish(ctx context.Context, ev models.ExecutionEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[ev.TaskID] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribe implements ProgressBus
func (b *LocalBus) Subscribe(ctx context.Context, taskID string) (<-chan models.ExecutionEvent, func(), error) {
	ch := make(chan models.ExecutionEvent, subscriberBuffer)

	b.mu.Lock()
	if b.subs[taskID] == nil {
		b.subs[taskID] = make(map[chan models.ExecutionEvent]struct{})
	}
	b.subs[taskID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			b.mu.Lock()
			delete(b.subs[taskID], ch)
			if len(b.subs[taskID]) == 0 {
				delete(b.subs, taskID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	return ch, cancel, nil
}
