// Package channel implements the persistent duplex channel used by the
// handler and listener roles.
//
// A Connection:
//   - Dials the server over WebSocket, carrying caller-supplied headers
//   - Keeps the channel alive with exponential-backoff reconnection
//   - Serializes outbound frames through an unbounded FIFO queue
//   - Dispatches inbound envelopes to callbacks keyed by their "type" field
//
// Outbound delivery is at-least-once by default: a frame whose write fails
// is re-enqueued at the tail of the queue, so it may be delivered twice or
// out of order after a reconnect. Envelopes carry an "id" for that reason.
// Use WithDelivery(AtMostOnce) to drop failed frames instead.
//
// Callbacks run on the receiving goroutine, one frame at a time. A slow
// callback delays every frame behind it.
package channel
