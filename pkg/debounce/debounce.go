package debounce

import (
	"sync"
	"time"
)

// Debouncer runs the last function scheduled for a key once the key has been
// quiet for the configured window.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[string]*entry
	seq     uint64
	stopped bool
}

type entry struct {
	timer *time.Timer
	gen   uint64
	fn    func()
}

// New builds a debouncer with the given quiet window.
func New(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*entry),
	}
}

// Debounce schedules fn for key, cancelling whatever was scheduled before it.
// The returned func cancels this particular schedule; it is a no-op once fn
// has run or a later call has replaced it.
func (d *Debouncer) Debounce(key string, fn func()) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return func() {}
	}
	if prev, ok := d.pending[key]; ok {
		prev.timer.Stop()
	}

	d.seq++
	gen := d.seq
	e := &entry{gen: gen, fn: fn}
	e.timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		cur, ok := d.pending[key]
		// a timer that lost the race with Stop must not fire
		if !ok || cur.gen != gen {
			d.mu.Unlock()
			return
		}
		delete(d.pending, key)
		d.mu.Unlock()
		fn()
	})
	d.pending[key] = e

	return func() { d.cancelGen(key, gen) }
}

// Cancel drops the pending call for key, if any.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.pending[key]; ok {
		e.timer.Stop()
		delete(d.pending, key)
	}
}

// Pending reports whether a call is scheduled for key.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Flush runs every pending call now, in no particular order.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	fns := make([]func(), 0, len(d.pending))
	for key, e := range d.pending {
		e.timer.Stop()
		fns = append(fns, e.fn)
		delete(d.pending, key)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Stop cancels every pending call and rejects new ones.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for key, e := range d.pending {
		e.timer.Stop()
		delete(d.pending, key)
	}
}

func (d *Debouncer) cancelGen(key string, gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.pending[key]; ok && e.gen == gen {
		e.timer.Stop()
		delete(d.pending, key)
	}
}
