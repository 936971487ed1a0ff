// Package progress subscribes to the per-task analysis event stream.
//
// The backend pushes server-sent events while a task runs: stage progress,
// streamed officer candidates, warnings, and exactly one terminal event
// (completed or failed). A Subscription exposes those as an ordered channel
// for a single consumer. The channel reconnects transparently on transient
// transport errors during the non-terminal phase and emits a synthetic
// failure when no event arrives within the configured idle window. Close is
// idempotent; nothing is delivered after a terminal event or Close.
package progress
