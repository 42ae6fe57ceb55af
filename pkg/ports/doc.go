// Package ports defines the interfaces between the application core and
// its adapters: LLM clients, experiment/batch storage, object storage,
// the event bus and metrics.
package ports
