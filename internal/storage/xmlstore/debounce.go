package xmlstore

import (
	"sync"
	"time"
)

// Timer is a pending call that can be cancelled
type Timer interface {
	Stop() bool
}

// AfterFunc arranges for f to run once d has passed
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}

// Debouncer collapses bursts of Schedule calls into one run of fn. The
// first Schedule starts a timer; later calls do nothing until it fired.
type Debouncer struct {
	mu     sync.Mutex
	delay  time.Duration
	after  AfterFunc
	locker sync.Locker
	fn     func()
	timer  Timer
	gen    uint64
}

// NewDebouncer creates a debouncer running fn delay after the first
// Schedule. The timer runs fn while holding locker.
func NewDebouncer(delay time.Duration, fn func(), after AfterFunc, locker sync.Locker) *Debouncer {
	if after == nil {
		after = realAfterFunc
	}
	if locker == nil {
		locker = nopLocker{}
	}
	return &Debouncer{delay: delay, after: after, locker: locker, fn: fn}
}

// Schedule starts the timer unless one is already pending
func (d *Debouncer) Schedule() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		return
	}

	d.gen++
	gen := d.gen
	d.timer = d.after(d.delay, func() { d.fire(gen) })
}

// Pending reports whether a run is scheduled
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) fire(gen uint64) {
	d.locker.Lock()
	defer d.locker.Unlock()

	d.mu.Lock()
	if d.timer == nil || d.gen != gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fn()
}

// Flush cancels a pending timer and runs fn now. It does nothing when no
// run is pending. The caller must hold the locker.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	t := d.timer
	d.timer = nil
	d.mu.Unlock()

	if t == nil {
		return
	}
	t.Stop()
	d.fn()
}

// Stop cancels a pending timer without running fn. It reports whether a
// run was pending.
func (d *Debouncer) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	return true
}
