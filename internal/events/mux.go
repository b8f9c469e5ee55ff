package events

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStreamClosed is returned by Publish after Close.
var ErrStreamClosed = errors.New("event stream closed")

// defaultIntakeSize bounds the publish buffer. Publishers block once
// the dispatcher falls this far behind; nothing is ever dropped.
const defaultIntakeSize = 256

// Multiplexer fans the session event log out to subscribers.
//
// One dispatcher goroutine owns sequence assignment and log appends, so
// events enter the log in exactly one order. Subscribers read from the
// shared log at their own offset; delivery to one subscriber never
// delays another, and never delays publication.
type Multiplexer struct {
	clock *Clock
	log   *Log
	now   func() time.Time

	intake   chan Event
	closeReq chan struct{} // Close() requests dispatcher shutdown
	closedCh chan struct{} // dispatcher has drained intake and exited

	mu     sync.Mutex
	notify chan struct{} // closed and replaced on every append
	closed bool

	closeOnce sync.Once
	subsWG    sync.WaitGroup
}

// Option configures a Multiplexer.
type Option func(*Multiplexer)

// WithIntakeSize overrides the bounded publish buffer size.
func WithIntakeSize(n int) Option {
	return func(m *Multiplexer) {
		if n > 0 {
			m.intake = make(chan Event, n)
		}
	}
}

// WithNow overrides the wall-clock source. Used by tests and golden
// traces that need deterministic timestamps.
func WithNow(now func() time.Time) Option {
	return func(m *Multiplexer) { m.now = now }
}

// NewMultiplexer creates a multiplexer over a fresh log and clock.
func NewMultiplexer(opts ...Option) *Multiplexer {
	m := &Multiplexer{
		clock:    NewClock(),
		log:      NewLog(),
		now:      time.Now,
		intake:   make(chan Event, defaultIntakeSize),
		closeReq: make(chan struct{}),
		closedCh: make(chan struct{}),
		notify:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.dispatch()
	return m
}

// Publish appends an event to the stream.
//
// Blocks when the bounded intake buffer is full (backpressure) and
// returns ErrStreamClosed once the stream has been closed. The event's
// Seq and Time are assigned by the dispatcher, not the caller.
func (m *Multiplexer) Publish(e Event) error {
	select {
	case <-m.closedCh:
		return ErrStreamClosed
	default:
	}

	select {
	case m.intake <- e:
		return nil
	case <-m.closedCh:
		return ErrStreamClosed
	}
}

// dispatch is the single writer of the log.
func (m *Multiplexer) dispatch() {
	for {
		select {
		case e := <-m.intake:
			m.append(e)
		case <-m.closeReq:
			// Drain whatever made it into the buffer, then signal
			// completion. Publishers still blocked on a full buffer
			// are released by closedCh with ErrStreamClosed.
			for {
				select {
				case e := <-m.intake:
					m.append(e)
				default:
					close(m.closedCh)
					return
				}
			}
		}
	}
}

// append stamps and records one event, then wakes waiting subscribers.
func (m *Multiplexer) append(e Event) {
	e.Seq = m.clock.Next()
	e.Time = m.now()
	m.log.Append(e)

	m.mu.Lock()
	close(m.notify)
	m.notify = make(chan struct{})
	m.mu.Unlock()
}

// Close signals that no further events will be published.
// Idempotent. Buffered events are still delivered; subscriptions
// terminate once they have observed the complete log.
func (m *Multiplexer) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.closeReq)
	})
}

// Drain blocks until the stream is fully flushed: Close has been
// called, the dispatcher has drained its buffer, and every active
// subscription has received all events and terminated.
func (m *Multiplexer) Drain(ctx context.Context) error {
	select {
	case <-m.closedCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		m.subsWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Log returns the underlying append-only log.
func (m *Multiplexer) Log() *Log {
	return m.log
}

// Subscription is one subscriber's view of the stream.
//
// Events arrive on Events() in publish order. The channel closes (the
// done marker) after the stream is closed and every event has been
// delivered, or after Cancel.
type Subscription struct {
	ch     chan Event
	cancel chan struct{}
	once   sync.Once
}

// Events returns the subscriber's ordered event channel.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Cancel detaches the subscription early. Idempotent.
// A cancelled subscription stops receiving and its channel closes.
func (s *Subscription) Cancel() {
	s.once.Do(func() { close(s.cancel) })
}

// Subscribe attaches a new subscriber from the beginning of the log.
// Subscribing after events were published replays the full prefix.
func (m *Multiplexer) Subscribe() *Subscription {
	return m.SubscribeFrom(0)
}

// SubscribeFrom attaches a new subscriber starting at the given log
// offset. Used to resume an interrupted observer without replaying
// what it already saw.
func (m *Multiplexer) SubscribeFrom(offset int) *Subscription {
	sub := &Subscription{
		ch:     make(chan Event, 16),
		cancel: make(chan struct{}),
	}
	m.subsWG.Add(1)
	go m.deliver(sub, offset)
	return sub
}

// deliver pumps the log into one subscription at the subscriber's pace.
func (m *Multiplexer) deliver(sub *Subscription, offset int) {
	defer m.subsWG.Done()
	defer close(sub.ch)

	for {
		// Capture the wakeup channel before inspecting the log. An
		// append landing between the log check and the capture would
		// close the previous channel, leaving this subscriber waiting
		// for a wakeup that already fired.
		m.mu.Lock()
		notify := m.notify
		m.mu.Unlock()

		if e, ok := m.log.At(offset); ok {
			select {
			case sub.ch <- e:
				offset++
			case <-sub.cancel:
				return
			}
			continue
		}

		// Caught up. Wait for another append, shutdown, or cancel.
		select {
		case <-notify:
		case <-m.closedCh:
			if m.log.Len() <= offset {
				return
			}
		case <-sub.cancel:
			return
		}
	}
}
