// Package websocket provides real-time event streaming via WebSocket.
//
// Clients can connect to /api/v1/events/ws to receive experiment and
// batch lifecycle events, optionally filtered by batch_id.
package websocket
