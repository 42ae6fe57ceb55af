package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aescanero/promptlab/pkg/domain"
	"github.com/aescanero/promptlab/pkg/ports"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)

	var mu sync.Mutex
	var got []string

	handler := func(name string) ports.EventHandler {
		return func(ctx context.Context, event domain.Event) error {
			mu.Lock()
			got = append(got, name)
			mu.Unlock()
			wg.Done()
			return nil
		}
	}

	_, err := bus.Subscribe(ctx, "test.topic", handler("a"))
	require.NoError(t, err)
	_, err = bus.Subscribe(ctx, "test.topic", handler("b"))
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "test.topic", domain.Event{ID: "e1", Type: domain.EventExperimentCompleted}))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handlers were not called")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b"}, got)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	calls := make(chan string, 4)

	idA, err := bus.Subscribe(ctx, "test.topic", func(ctx context.Context, event domain.Event) error {
		calls <- "a"
		return nil
	})
	require.NoError(t, err)

	_, err = bus.Subscribe(ctx, "test.topic", func(ctx context.Context, event domain.Event) error {
		calls <- "b"
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Unsubscribe(ctx, "test.topic", idA))
	require.NoError(t, bus.Publish(ctx, "test.topic", domain.Event{ID: "e1"}))

	select {
	case name := <-calls:
		assert.Equal(t, "b", name)
	case <-time.After(2 * time.Second):
		t.Fatal("remaining subscriber was not called")
	}

	// The unsubscribed handler must stay silent
	select {
	case name := <-calls:
		t.Fatalf("unexpected call to %q", name)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestContextCancelRemovesSubscription(t *testing.T) {
	bus := NewBus()

	subCtx, cancel := context.WithCancel(context.Background())
	called := make(chan struct{}, 1)

	_, err := bus.Subscribe(subCtx, "test.topic", func(ctx context.Context, event domain.Event) error {
		called <- struct{}{}
		return nil
	})
	require.NoError(t, err)

	cancel()

	// Removal happens on a goroutine watching the context
	assert.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.subscribers["test.topic"]) == 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), "test.topic", domain.Event{ID: "e1"}))

	select {
	case <-called:
		t.Fatal("cancelled subscription still received the event")
	case <-time.After(100 * time.Millisecond):
	}
}
