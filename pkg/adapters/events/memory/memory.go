package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aescanero/promptlab/pkg/domain"
	"github.com/aescanero/promptlab/pkg/ports"
)

type subscription struct {
	ctx     context.Context
	handler ports.EventHandler
}

// Bus implements EventBus using in-process handlers. Handlers run with
// the context they subscribed with, mirroring the streams bus where
// the consumer loop owns the context.
type Bus struct {
	subscribers map[string]map[ports.SubscriptionID]subscription
	nextID      int
	mu          sync.RWMutex
}

// NewBus creates a new in-memory event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]map[ports.SubscriptionID]subscription),
	}
}

// Publish delivers an event to all subscribers of a topic. Handlers
// run asynchronously and their errors are dropped.
func (b *Bus) Publish(ctx context.Context, topic string, event domain.Event) error {
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.subscribers[topic]))
	for _, sub := range b.subscribers[topic] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		go func(s subscription) {
			_ = s.handler(s.ctx, event)
		}(sub)
	}

	return nil
}

// Subscribe registers a handler for a topic. The subscription is
// removed when ctx is cancelled or Unsubscribe is called with the
// returned ID.
func (b *Bus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) (ports.SubscriptionID, error) {
	b.mu.Lock()
	b.nextID++
	id := ports.SubscriptionID(fmt.Sprintf("sub-%d", b.nextID))
	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(map[ports.SubscriptionID]subscription)
	}
	b.subscribers[topic][id] = subscription{ctx: ctx, handler: handler}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(topic, id)
	}()

	return id, nil
}

// Unsubscribe removes a single subscription from a topic
func (b *Bus) Unsubscribe(ctx context.Context, topic string, id ports.SubscriptionID) error {
	b.remove(topic, id)
	return nil
}

// Close drops all subscriptions
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers = make(map[string]map[ports.SubscriptionID]subscription)
	return nil
}

func (b *Bus) remove(topic string, id ports.SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.subscribers[topic]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(b.subscribers, topic)
		}
	}
}
