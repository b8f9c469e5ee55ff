package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

func collect(t *testing.T, sub *Subscription) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-sub.Events():
			if !ok {
				return out
			}
			out = append(out, e)
		case <-timeout:
			t.Fatal("timed out collecting events")
		}
	}
}

func TestMultiplexer_PublishOrder(t *testing.T) {
	m := NewMultiplexer(WithNow(fixedNow))
	sub := m.Subscribe()

	for i := 0; i < 10; i++ {
		require.NoError(t, m.Publish(Diagnostic(SeverityInfo, "msg")))
	}
	m.Close()

	evts := collect(t, sub)
	require.Len(t, evts, 10)
	for i, e := range evts {
		assert.Equal(t, int64(i+1), e.Seq, "seq must be dense and increasing")
	}
}

func TestMultiplexer_LateSubscriberSeesFullPrefix(t *testing.T) {
	m := NewMultiplexer(WithNow(fixedNow))

	require.NoError(t, m.Publish(Diagnostic(SeverityInfo, "early")))
	require.NoError(t, m.Publish(Diagnostic(SeverityInfo, "early-2")))
	m.Close()
	require.NoError(t, m.Drain(context.Background()))

	// Subscribing after close still replays the complete log.
	sub := m.Subscribe()
	evts := collect(t, sub)
	require.Len(t, evts, 2)
	assert.Equal(t, "early", evts[0].Message)
	assert.Equal(t, "early-2", evts[1].Message)
}

func TestMultiplexer_SubscribeFromOffset(t *testing.T) {
	m := NewMultiplexer(WithNow(fixedNow))
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Publish(Diagnostic(SeverityInfo, "e")))
	}
	m.Close()

	sub := m.SubscribeFrom(3)
	evts := collect(t, sub)
	require.Len(t, evts, 2)
	assert.Equal(t, int64(4), evts[0].Seq)
}

func TestMultiplexer_MultipleSubscribersSameOrder(t *testing.T) {
	m := NewMultiplexer(WithNow(fixedNow))
	subs := []*Subscription{m.Subscribe(), m.Subscribe(), m.Subscribe()}

	for i := 0; i < 20; i++ {
		require.NoError(t, m.Publish(Diagnostic(SeverityInfo, "e")))
	}
	m.Close()

	var traces [][]Event
	for _, sub := range subs {
		traces = append(traces, collect(t, sub))
	}
	for i := 1; i < len(traces); i++ {
		assert.Equal(t, traces[0], traces[i], "all subscribers observe the same order")
	}
}

func TestMultiplexer_SlowSubscriberDoesNotBlockPublication(t *testing.T) {
	m := NewMultiplexer(WithNow(fixedNow))

	// A subscriber that never reads.
	slow := m.Subscribe()
	defer slow.Cancel()

	fast := m.Subscribe()

	// Publish far more events than any per-subscription buffer.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			if err := m.Publish(Diagnostic(SeverityInfo, "e")); err != nil {
				return
			}
		}
		m.Close()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publication blocked behind a slow subscriber")
	}

	evts := collect(t, fast)
	assert.Len(t, evts, 1000)
}

func TestMultiplexer_PublishWakesCaughtUpSubscriber(t *testing.T) {
	m := NewMultiplexer(WithNow(fixedNow))
	defer m.Close()
	sub := m.Subscribe()

	// Alternate publish and receive so the subscriber is caught up and
	// parked on the wakeup channel for every publish. Each event must
	// arrive without a further append nudging the delivery loop.
	for i := 0; i < 10000; i++ {
		require.NoError(t, m.Publish(Diagnostic(SeverityInfo, "tick")))
		select {
		case e, ok := <-sub.Events():
			require.True(t, ok)
			assert.Equal(t, int64(i+1), e.Seq)
		case <-time.After(2 * time.Second):
			t.Fatalf("event %d published but never delivered", i+1)
		}
	}
}

func TestMultiplexer_PublishAfterClose(t *testing.T) {
	m := NewMultiplexer(WithNow(fixedNow))
	m.Close()
	require.NoError(t, m.Drain(context.Background()))

	err := m.Publish(Diagnostic(SeverityInfo, "late"))
	assert.ErrorIs(t, err, ErrStreamClosed)
	assert.Equal(t, 0, m.Log().Len())
}

func TestMultiplexer_DrainWaitsForDelivery(t *testing.T) {
	m := NewMultiplexer(WithNow(fixedNow))
	sub := m.Subscribe()

	for i := 0; i < 50; i++ {
		require.NoError(t, m.Publish(Diagnostic(SeverityInfo, "e")))
	}
	m.Close()

	var got []Event
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		got = collect(t, sub)
	}()

	require.NoError(t, m.Drain(context.Background()))
	wg.Wait()
	assert.Len(t, got, 50, "drain returns only after full delivery")
}

func TestMultiplexer_DrainTimeoutOnStuckSubscriber(t *testing.T) {
	m := NewMultiplexer(WithNow(fixedNow))
	stuck := m.Subscribe()

	for i := 0; i < 100; i++ {
		require.NoError(t, m.Publish(Diagnostic(SeverityInfo, "e")))
	}
	m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := m.Drain(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Cancelling the stuck subscription unblocks the drain.
	stuck.Cancel()
	require.NoError(t, m.Drain(context.Background()))
}

func TestMultiplexer_CancelledSubscriptionCloses(t *testing.T) {
	m := NewMultiplexer(WithNow(fixedNow))
	sub := m.Subscribe()
	sub.Cancel()
	sub.Cancel() // idempotent

	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				m.Close()
				return
			}
		case <-timeout:
			t.Fatal("cancelled subscription did not close")
		}
	}
}

func TestLog_AppendOnly(t *testing.T) {
	l := NewLog()
	l.Append(Event{Seq: 1})
	l.Append(Event{Seq: 2})

	assert.Equal(t, 2, l.Len())
	e, ok := l.At(0)
	require.True(t, ok)
	assert.Equal(t, int64(1), e.Seq)

	_, ok = l.At(2)
	assert.False(t, ok)
	_, ok = l.At(-1)
	assert.False(t, ok)

	// Snapshot is a copy: mutating it leaves the log intact.
	snap := l.Snapshot()
	snap[0].Seq = 99
	e, _ = l.At(0)
	assert.Equal(t, int64(1), e.Seq)
}

func TestClock_Monotonic(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())

	resumed := NewClockAt(10)
	assert.Equal(t, int64(11), resumed.Next())
}
