// Package workers implements the worker pool for executing batch tasks.
//
// The worker pool manages a fixed number of goroutines that:
//   - Subscribe to batch task events from the event bus
//   - Execute one completion per task through the experiment service
//   - Record task outcomes and worker status metrics
//
// The health monitor tracks worker status and logs metrics.
package workers
