package event

import (
	"errors"
	"sync"
)

// ErrQueueClosed is returned when publishing to a closed queue.
var ErrQueueClosed = errors.New("event queue closed")

// Queue is an unbounded FIFO of events. Publish never blocks, so producers
// running inside RPC callbacks cannot deadlock against a busy consumer.
// Events are delivered on C in publish order.
type Queue struct {
	mu       sync.Mutex
	items    []Event
	closed   bool
	draining bool

	signal chan struct{}
	done   chan struct{}
	out    chan Event
}

// NewQueue creates a queue and starts its delivery goroutine.
func NewQueue() *Queue {
	q := &Queue{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan Event),
	}
	go q.pump()
	return q
}

// Publish enqueues an event.
func (q *Queue) Publish(ev Event) error {
	q.mu.Lock()
	if q.closed || q.draining {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, ev)
	q.mu.Unlock()

	q.wake()
	return nil
}

// Emit wraps payload in a new event from source and publishes it.
func (q *Queue) Emit(source string, payload Payload) error {
	return q.Publish(New(payload, source))
}

// C returns the delivery channel. It is closed after Close, or after Drain
// once the remaining events have been delivered.
func (q *Queue) C() <-chan Event {
	return q.out
}

// Len returns the number of events waiting for delivery.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops delivery. Undelivered events are dropped.
// It is safe to call Close more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.items = nil
	close(q.done)
	q.mu.Unlock()
}

// Drain stops accepting events. Events already queued are still delivered,
// then C is closed.
func (q *Queue) Drain() {
	q.mu.Lock()
	q.draining = true
	q.mu.Unlock()
	q.wake()
}

func (q *Queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *Queue) pump() {
	defer close(q.out)

	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return
		}
		if len(q.items) == 0 {
			draining := q.draining
			q.mu.Unlock()
			if draining {
				return
			}
			select {
			case <-q.signal:
			case <-q.done:
				return
			}
			continue
		}
		ev := q.items[0]
		q.items[0] = Event{}
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- ev:
		case <-q.done:
			return
		}
	}
}
