package gpio

import (
	"sync"
	"time"
)

// Timer implements hub75.Timer on the runtime timer heap with a 1 MHz tick.
// There is no hardware compare interrupt to borrow on Linux, so expiry
// jitter runs tens of microseconds; the engine's adaptive period folds the
// jitter into its measurements rather than fighting it.
type Timer struct {
	mu      sync.Mutex
	handler func()
	timer   *time.Timer
	started time.Time
}

func NewTimer() *Timer { return &Timer{} }

// Init registers the expiry handler.
func (t *Timer) Init(handler func()) {
	t.mu.Lock()
	t.handler = handler
	t.mu.Unlock()
}

// Start arms a single expiry after period microseconds.
func (t *Timer) Start(period uint32) {
	t.mu.Lock()
	t.started = time.Now()
	d := time.Duration(period) * time.Microsecond
	if t.timer == nil {
		t.timer = time.AfterFunc(d, t.fire)
	} else {
		t.timer.Reset(d)
	}
	t.mu.Unlock()
}

func (t *Timer) fire() {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	if h != nil {
		h()
	}
}

// Stop disarms the timer and reports microseconds since the last Start.
func (t *Timer) Stop() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	return uint32(time.Since(t.started).Microseconds())
}

// Frequency reports the microsecond tick rate.
func (t *Timer) Frequency() uint32 { return 1_000_000 }

// MinPeriod reflects the practical floor of AfterFunc scheduling. Shorter
// periods fire late anyway and starve the host goroutines.
func (t *Timer) MinPeriod() uint32 { return 100 }
