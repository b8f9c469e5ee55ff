// Package events implements the session's lifecycle event stream.
//
// Events are immutable, timestamped records appended to an ordered log.
// Every event carries a monotonically increasing sequence number from a
// logical clock; wall-clock time is informational and never used for
// ordering. No event is mutated or removed once appended.
//
// The Multiplexer fans the log out to any number of subscribers. Each
// subscriber observes every event in publish order at its own pace,
// reading from the shared log rather than a per-subscriber copy, so a
// slow subscriber can never block publication. Publication itself goes
// through a bounded intake buffer: when the buffer is full the
// publisher blocks (backpressure) - events are never dropped.
//
// A subscription terminates with an explicit done marker (its channel
// closes) only after the multiplexer is closed and every buffered event
// has been delivered. Drain waits for that condition across all active
// subscribers.
package events
