package content

import (
	"sync"
	"time"
)

// flushTimer is the quiet-period timer of one handle. Host edits re-arm it;
// when it expires without being re-armed, expire runs once. The host's
// "stopped changing" signal disarms it and flushes on the caller's
// goroutine instead.
//
// Each arm bumps a generation. An expiry that finds a newer generation,
// or a disarmed timer, was superseded and does nothing.
type flushTimer struct {
	mu     sync.Mutex
	delay  time.Duration
	t      *time.Timer
	gen    uint64
	armed  bool
	expire func()
}

func newFlushTimer(delay time.Duration, expire func()) *flushTimer {
	return &flushTimer{delay: delay, expire: expire}
}

// reset arms the timer for a full quiet period from now.
func (f *flushTimer) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gen++
	f.armed = true
	gen := f.gen
	if f.t != nil {
		f.t.Stop()
	}
	f.t = time.AfterFunc(f.delay, func() { f.fire(gen) })
}

func (f *flushTimer) fire(gen uint64) {
	f.mu.Lock()
	if !f.armed || gen != f.gen {
		f.mu.Unlock()
		return
	}
	f.armed = false
	f.t = nil
	f.mu.Unlock()

	f.expire()
}

// settle disarms the timer and runs flush now.
func (f *flushTimer) settle(flush func() error) error {
	f.stop()
	return flush()
}

// stop disarms the timer. A pending expiry is dropped.
func (f *flushTimer) stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gen++
	f.armed = false
	if f.t != nil {
		f.t.Stop()
		f.t = nil
	}
}

func (f *flushTimer) isArmed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.armed
}

// setDelay changes the quiet period from the next reset on.
func (f *flushTimer) setDelay(d time.Duration) {
	f.mu.Lock()
	f.delay = d
	f.mu.Unlock()
}
