package kernel

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"
)

// Event is a unit of work executed on the panel execution context.
type Event func()

const mailboxSlots = 256

type slot struct {
	// seq is stored relative to the slot index so the zero value is ready for
	// the first round: a slot at index i holding stored value s has effective
	// sequence s+i.
	seq atomic.Uint32
	ev  Event
}

// Mailbox is a fixed-size multi-producer, single-consumer queue of events.
// No allocations; a full mailbox rejects TrySend.
type Mailbox struct {
	_     [0]func() // prevent accidental copying.
	head  atomic.Uint32
	tail  atomic.Uint32
	slots [mailboxSlots]slot
}

// TrySend attempts to enqueue an event, returning false if the mailbox is full.
func (mb *Mailbox) TrySend(ev Event) bool {
	for {
		head := mb.head.Load()
		idx := head % mailboxSlots
		s := &mb.slots[idx]
		seq := s.seq.Load() + idx
		switch {
		case seq == head:
			if !mb.head.CompareAndSwap(head, head+1) {
				continue
			}
			s.ev = ev
			s.seq.Store(head + 1 - idx)
			return true
		case int32(seq-head) < 0:
			return false
		default:
			// Another producer won the slot; retry with the new head.
			runtime.Gosched()
		}
	}
}

// Send enqueues an event, blocking until it succeeds.
func (mb *Mailbox) Send(ev Event) {
	for !mb.TrySend(ev) {
		runtime.Gosched()
	}
}

// TryRecv attempts to dequeue one event, returning false if empty.
// Only one goroutine may receive.
func (mb *Mailbox) TryRecv() (Event, bool) {
	tail := mb.tail.Load()
	idx := tail % mailboxSlots
	s := &mb.slots[idx]
	if s.seq.Load()+idx != tail+1 {
		return nil, false
	}
	ev := s.ev
	s.ev = nil
	s.seq.Store(tail + mailboxSlots - idx)
	mb.tail.Store(tail + 1)
	return ev, true
}

// Recv blocks until one event is available.
func (mb *Mailbox) Recv() Event {
	for {
		ev, ok := mb.TryRecv()
		if ok {
			return ev
		}
		runtime.Gosched()
	}
}

// Len reports the number of queued events. It is a snapshot.
func (mb *Mailbox) Len() int {
	return int(mb.head.Load() - mb.tail.Load())
}

// Loop is the single cooperative execution context of the panel.
//
// Producers on any goroutine Post or Send events; the host frame step calls
// Drain, which runs them in order on the caller's goroutine. Everything an
// event touches is therefore owned by the frame goroutine and needs no locks.
type Loop struct {
	mb      Mailbox
	dropped atomic.Uint64
	ran     atomic.Uint64
}

// NewLoop creates an empty loop.
func NewLoop() *Loop {
	return &Loop{}
}

// Post enqueues ev without blocking. It reports false and counts a drop when
// the mailbox is full.
func (l *Loop) Post(ev Event) bool {
	if ev == nil {
		return true
	}
	if l.mb.TrySend(ev) {
		return true
	}
	l.dropped.Add(1)
	return false
}

// Send enqueues ev, waiting for space until ctx is done.
func (l *Loop) Send(ctx context.Context, ev Event) error {
	if ev == nil {
		return nil
	}
	backoff := 50 * time.Microsecond
	for !l.mb.TrySend(ev) {
		select {
		case <-ctx.Done():
			l.dropped.Add(1)
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 10*time.Millisecond {
			backoff *= 2
		}
	}
	return nil
}

// Drain runs up to max queued events (all queued events if max <= 0) and
// returns how many ran. Events posted while draining run in the same call
// only if they fit within max.
func (l *Loop) Drain(max int) int {
	n := 0
	for max <= 0 || n < max {
		ev, ok := l.mb.TryRecv()
		if !ok {
			break
		}
		ev()
		n++
	}
	l.ran.Add(uint64(n))
	return n
}

// Pending reports the number of queued events.
func (l *Loop) Pending() int { return l.mb.Len() }

// Dropped reports how many events were rejected because the mailbox was full.
func (l *Loop) Dropped() uint64 { return l.dropped.Load() }

// Ran reports how many events have been executed.
func (l *Loop) Ran() uint64 { return l.ran.Load() }
