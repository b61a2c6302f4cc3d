// Package scheduler owns the transcode job state machine. It admits queued
// jobs into a bounded worker pool, drives each job through plan, supervise,
// verify, and dispose, applies the hardware-to-software fallback, and feeds
// status events to subscribers. All state transitions serialize through one
// mutex; the lock is never held across a blocking call.
package scheduler
