package store

import (
	"sync"
	"time"
)

// debouncer delays a callback until triggers have settled for delay.
type debouncer struct {
	delay time.Duration

	mutex    sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay}
}

// trigger schedules callback after the delay. A trigger before the delay
// expires replaces the pending callback and restarts the delay.
func (d *debouncer) trigger(callback func()) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}

	d.callback = callback
	d.timer = time.AfterFunc(d.delay, func() {
		d.mutex.Lock()
		callback := d.callback
		d.callback = nil
		d.timer = nil
		stopped := d.stopped
		d.mutex.Unlock()

		if callback != nil && !stopped {
			callback()
		}
	})
}

// pending reports whether a callback is scheduled.
func (d *debouncer) pending() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.timer != nil
}

// stop cancels any pending callback and ignores later triggers.
func (d *debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
