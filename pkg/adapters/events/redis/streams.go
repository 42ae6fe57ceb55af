package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/promptlab/pkg/domain"
	"github.com/aescanero/promptlab/pkg/ports"
)

// StreamsBus implements EventBus using Redis Streams
type StreamsBus struct {
	client        *redis.Client
	logger        *zap.Logger
	consumerGroup string
	consumerName  string

	cancels map[ports.SubscriptionID]context.CancelFunc
	nextID  int
	mu      sync.Mutex
}

// NewStreamsBus creates a new Redis Streams event bus
func NewStreamsBus(client *redis.Client, consumerGroup, consumerName string, logger *zap.Logger) (*StreamsBus, error) {
	return &StreamsBus{
		client:        client,
		logger:        logger,
		consumerGroup: consumerGroup,
		consumerName:  consumerName,
		cancels:       make(map[ports.SubscriptionID]context.CancelFunc),
	}, nil
}

// Publish publishes an event to the appropriate stream topic
func (e *StreamsBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	streamKey := getStreamKey(topic)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}

	if _, err := e.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	e.logger.Debug("event published",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("topic", topic),
		zap.String("stream", streamKey))

	return nil
}

// Subscribe subscribes to events on a specific topic. The reader
// goroutine stops when ctx is cancelled, the bus is closed, or the
// returned subscription is unsubscribed.
func (e *StreamsBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) (ports.SubscriptionID, error) {
	streamKey := getStreamKey(topic)

	// Create consumer group if it doesn't exist
	err := e.client.XGroupCreateMkStream(ctx, streamKey, e.consumerGroup, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return "", fmt.Errorf("failed to create consumer group: %w", err)
	}

	readCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.nextID++
	id := ports.SubscriptionID(fmt.Sprintf("sub-%d", e.nextID))
	e.cancels[id] = cancel
	e.mu.Unlock()

	e.logger.Info("subscribed to event stream",
		zap.String("stream", streamKey),
		zap.String("topic", topic),
		zap.String("consumer_group", e.consumerGroup),
		zap.String("consumer", e.consumerName))

	go e.readStream(readCtx, streamKey, handler)

	return id, nil
}

// readStream reads events from a stream
func (e *StreamsBus) readStream(ctx context.Context, streamKey string, handler ports.EventHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			streams, err := e.client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    e.consumerGroup,
				Consumer: e.consumerName,
				Streams:  []string{streamKey, ">"},
				Count:    10,
				Block:    time.Second,
			}).Result()

			if err != nil {
				if err == redis.Nil {
					// No new messages
					continue
				}
				if ctx.Err() != nil {
					return
				}
				e.logger.Error("failed to read from stream",
					zap.String("stream", streamKey),
					zap.Error(err))
				time.Sleep(time.Second)
				continue
			}

			for _, stream := range streams {
				for _, message := range stream.Messages {
					e.processMessage(ctx, streamKey, message, handler)
				}
			}
		}
	}
}

// processMessage processes a single message from the stream
func (e *StreamsBus) processMessage(ctx context.Context, streamKey string, message redis.XMessage, handler ports.EventHandler) {
	data, ok := message.Values["data"].(string)
	if !ok {
		e.logger.Error("invalid message format",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID))
		return
	}

	var event domain.Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		e.logger.Error("failed to unmarshal event",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return
	}

	if err := handler(ctx, event); err != nil {
		e.logger.Error("handler error",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
		return
	}

	// Acknowledge message
	if err := e.client.XAck(ctx, streamKey, e.consumerGroup, message.ID).Err(); err != nil {
		e.logger.Error("failed to acknowledge message",
			zap.String("stream", streamKey),
			zap.String("message_id", message.ID),
			zap.Error(err))
	}
}

// Unsubscribe stops the reader for a subscription
func (e *StreamsBus) Unsubscribe(ctx context.Context, topic string, id ports.SubscriptionID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cancel, ok := e.cancels[id]; ok {
		cancel()
		delete(e.cancels, id)
	}
	return nil
}

// Close stops all readers. The Redis client is closed by its owner.
func (e *StreamsBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, cancel := range e.cancels {
		cancel()
		delete(e.cancels, id)
	}
	return nil
}

// getStreamKey returns the Redis stream key for a topic
func getStreamKey(topic string) string {
	return fmt.Sprintf("promptlab:events:%s", topic)
}
