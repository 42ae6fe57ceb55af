package domain

import "time"

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	EventExperimentStarted   EventType = "experiment.started"
	EventExperimentCompleted EventType = "experiment.completed"
	EventExperimentFailed    EventType = "experiment.failed"
	EventBatchSubmitted      EventType = "batch.submitted"
	EventBatchCompleted      EventType = "batch.completed"
	EventBatchFailed         EventType = "batch.failed"
	EventBatchTask           EventType = "batch.task"
)

// Topics used on the event bus. Lifecycle notifications and work
// dispatch travel on separate streams so workers only consume tasks.
const (
	TopicExperiments = "experiment.events"
	TopicTasks       = "batch.tasks"
)

// Event is a lifecycle notification published on the event bus and
// streamed to websocket clients.
type Event struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	ExperimentID string         `json:"experiment_id,omitempty"`
	BatchID      string         `json:"batch_id,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	Data         map[string]any `json:"data,omitempty"`
}
