package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// -----------------------------------------------------------------------------
// StreamSubscription is the handoff gate between pipeline stages. One is
// created per stage boundary and cycled every tick: signal -> wait -> reset.
//
// Two scheduling modes:
//   - DataDriven: WaitUntilReady blocks indefinitely until signaled. Full
//     backpressure: a slow consumer stalls the whole pipeline rather than
//     losing data.
//   - ClockDriven: WaitUntilReady gives up after the timeout and the caller
//     proceeds anyway. A second SignalReady before Reset increments the
//     overrun counter (producer got ahead of consumer).
//
// Safe for one signaling goroutine and one waiting goroutine. All failure is
// expressed through the boolean return and the counter; nothing panics.
// -----------------------------------------------------------------------------

// ScheduleMode selects the pacing discipline of a subscription.
type ScheduleMode int

const (
	DataDriven ScheduleMode = iota
	ClockDriven
)

func (m ScheduleMode) String() string {
	if m == ClockDriven {
		return "clock-driven"
	}
	return "data-driven"
}

// -----------------------------------------------------------------------------

type StreamSubscription struct {
	name     string
	mode     ScheduleMode
	ready    atomic.Bool
	readyCh  chan struct{} // capacity 1, carries the wakeup token
	stopCh   chan struct{}
	stopOnce sync.Once
	overruns atomic.Int64

	// Set by Lapse when the waiter abandoned a timed-out cycle. The signal
	// belonging to that cycle is drained and counted as an overrun instead of
	// becoming a stale token that would satisfy the next cycle's wait.
	lapsed atomic.Bool
}

// -----------------------------------------------------------------------------

func NewStreamSubscription(name string, mode ScheduleMode) *StreamSubscription {
	return &StreamSubscription{
		name:    name,
		mode:    mode,
		readyCh: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// SignalReady marks the gate ready and wakes the waiter. Signaling an
// already-ready gate is an overrun in clock-driven mode; in data-driven mode
// it cannot happen while backpressure holds, so it is simply ignored. A signal
// arriving after the waiter abandoned the cycle (see Lapse) settles that
// cycle: it is counted as an overrun and dropped, not carried forward.
func (s *StreamSubscription) SignalReady() {
	if s.lapsed.CompareAndSwap(true, false) {
		s.overruns.Add(1)
		return
	}

	if !s.ready.CompareAndSwap(false, true) {
		if s.mode == ClockDriven {
			s.overruns.Add(1)
		}
		return
	}

	select {
	case s.readyCh <- struct{}{}:
	default:
	}
}

// -----------------------------------------------------------------------------

// WaitUntilReady blocks until the gate is signaled. In data-driven mode the
// timeout is ignored and the wait is indefinite; only a signal or Stop ends
// it. In clock-driven mode the wait is bounded by timeout. Returns true when
// the signal arrived, false on timeout or stop.
func (s *StreamSubscription) WaitUntilReady(timeout time.Duration) bool {
	// Stop wins over a pending token so blocked stages observe shutdown.
	select {
	case <-s.stopCh:
		return false
	default:
	}

	if s.mode == DataDriven {
		select {
		case <-s.readyCh:
			return true
		case <-s.stopCh:
			return false
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.readyCh:
		return true
	case <-s.stopCh:
		return false
	case <-timer.C:
		// Last-instant poll: a signal racing the timer is still on time.
		select {
		case <-s.readyCh:
			return true
		default:
		}
		return false
	}
}

// -----------------------------------------------------------------------------

// Lapse abandons a timed-out cycle and re-arms the gate. The cycle's tardy
// signal, whenever it lands, is drained and counted as an overrun so it never
// satisfies the next cycle's wait as a stale token. Only waiters that proceed
// past a timeout use this; a waiter that simply retries calls nothing.
func (s *StreamSubscription) Lapse() {
	s.lapsed.Store(true)
	s.Reset()
}

// -----------------------------------------------------------------------------

// Reset arms the gate for the next cycle.
func (s *StreamSubscription) Reset() {
	s.ready.Store(false)

	// Drop a stale token left by a signal the waiter never consumed.
	select {
	case <-s.readyCh:
	default:
	}
}

// -----------------------------------------------------------------------------

// IsReady reports whether the gate was signaled since the last Reset.
func (s *StreamSubscription) IsReady() bool {
	return s.ready.Load()
}

// -----------------------------------------------------------------------------

// OverrunCount returns how many times the producer signaled an already-ready
// gate. Always zero in data-driven mode.
func (s *StreamSubscription) OverrunCount() int64 {
	return s.overruns.Load()
}

// -----------------------------------------------------------------------------

// Stop force-signals the gate permanently. Any current or future wait returns
// false immediately. This is the only way to unblock a data-driven wait from
// outside; it is irreversible.
func (s *StreamSubscription) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// -----------------------------------------------------------------------------

// Stopped reports whether Stop was called.
func (s *StreamSubscription) Stopped() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// -----------------------------------------------------------------------------

// Name identifies the stage boundary this gate belongs to.
func (s *StreamSubscription) Name() string {
	return s.name
}

// -----------------------------------------------------------------------------

// Mode returns the scheduling mode the gate was created with.
func (s *StreamSubscription) Mode() ScheduleMode {
	return s.mode
}
