// Package domain holds the core types shared across promptlab:
// completion requests and results, experiment records, batch runs,
// events and model pricing.
package domain
