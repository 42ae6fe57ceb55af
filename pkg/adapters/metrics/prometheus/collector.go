package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aescanero/promptlab/pkg/domain"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	llmCalls          *prometheus.CounterVec
	llmTokens         *prometheus.CounterVec
	llmCost           *prometheus.CounterVec
	llmLatency        *prometheus.HistogramVec
	experimentsSaved  *prometheus.CounterVec
	batchesSubmitted  *prometheus.CounterVec
	batchTasks        *prometheus.CounterVec
	avatarUploads     *prometheus.CounterVec
	avatarUploadBytes prometheus.Counter
	websocketClients  prometheus.Gauge
	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector. Collectors
// register on the default registry, so construct at most one per
// process.
func NewCollector() *Collector {
	return &Collector{
		llmCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptlab_llm_calls_total",
				Help: "Total number of LLM API calls",
			},
			[]string{"provider", "model", "status"},
		),
		llmTokens: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptlab_llm_tokens_total",
				Help: "Total number of LLM tokens used",
			},
			[]string{"provider", "model", "type"},
		),
		llmCost: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptlab_llm_cost_usd_total",
				Help: "Total LLM spend in USD",
			},
			[]string{"provider", "model"},
		),
		llmLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "promptlab_llm_latency_seconds",
				Help:    "LLM API call latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"provider", "model"},
		),
		experimentsSaved: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptlab_experiments_saved_total",
				Help: "Total number of experiment records saved",
			},
			[]string{"provider"},
		),
		batchesSubmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptlab_batches_submitted_total",
				Help: "Total number of comparison batches submitted",
			},
			[]string{"status"},
		),
		batchTasks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptlab_batch_tasks_total",
				Help: "Total number of batch tasks executed",
			},
			[]string{"status"},
		),
		avatarUploads: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptlab_avatar_uploads_total",
				Help: "Total number of avatar uploads",
			},
			[]string{"status"},
		),
		avatarUploadBytes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "promptlab_avatar_upload_bytes_total",
				Help: "Total bytes uploaded as avatars",
			},
		),
		websocketClients: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "promptlab_websocket_clients",
				Help: "Number of connected websocket clients",
			},
		),
		workerPoolIdle: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "promptlab_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "promptlab_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "promptlab_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
	}
}

// RecordLLMCall records one LLM API call and its latency
func (c *Collector) RecordLLMCall(provider, model, status string, duration time.Duration) {
	c.llmCalls.WithLabelValues(provider, model, status).Inc()
	c.llmLatency.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordLLMUsage records token usage and spend for one call
func (c *Collector) RecordLLMUsage(provider, model string, usage domain.Usage, costUSD float64) {
	c.llmTokens.WithLabelValues(provider, model, "input").Add(float64(usage.InputTokens))
	c.llmTokens.WithLabelValues(provider, model, "output").Add(float64(usage.OutputTokens))
	c.llmCost.WithLabelValues(provider, model).Add(costUSD)
}

// RecordExperimentSaved records a persisted experiment
func (c *Collector) RecordExperimentSaved(provider string) {
	c.experimentsSaved.WithLabelValues(provider).Inc()
}

// RecordBatchSubmitted records a batch submission
func (c *Collector) RecordBatchSubmitted(status string) {
	c.batchesSubmitted.WithLabelValues(status).Inc()
}

// RecordBatchTask records one executed batch task
func (c *Collector) RecordBatchTask(status string) {
	c.batchTasks.WithLabelValues(status).Inc()
}

// RecordAvatarUpload records an avatar upload attempt
func (c *Collector) RecordAvatarUpload(status string, bytes int64) {
	c.avatarUploads.WithLabelValues(status).Inc()
	if bytes > 0 {
		c.avatarUploadBytes.Add(float64(bytes))
	}
}

// ClientConnected increments the websocket client gauge
func (c *Collector) ClientConnected() {
	c.websocketClients.Inc()
}

// ClientDisconnected decrements the websocket client gauge
func (c *Collector) ClientDisconnected() {
	c.websocketClients.Dec()
}

// RecordWorkerPoolStatus records worker pool gauges
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}
