package hub75

import (
	"sync/atomic"
	"testing"
	"time"
)

// fireFrames drives the fake timer through n full refresh frames.
func fireFrames(core *Core, timer *fakeTimer, n int) {
	for i := 0; i < n*core.Planes()*core.RowPairs(); i++ {
		timer.fire()
	}
}

func TestResumeStartsCursorAtRollover(t *testing.T) {
	rig := newTestRig(false, 8, 4, 2)
	core := rig.mustBegin()
	defer core.Free()

	if core.plane != 3 || core.row != 3 {
		t.Fatalf("cursor at (plane %d, row %d), want (3, 3)", core.plane, core.row)
	}
	if got := rig.hal.timer.starts[0]; got != 1000 {
		t.Errorf("initial period %d, want 1000", got)
	}

	// The first expiry rolls the cursor over into plane 0, row 0.
	rig.hal.timer.fire()
	if core.plane != 0 || core.row != 0 {
		t.Errorf("cursor at (plane %d, row %d) after first expiry, want (0, 0)",
			core.plane, core.row)
	}
}

func TestFrameCountReadsAndResets(t *testing.T) {
	rig := newTestRig(false, 8, 4, 2)
	core := rig.mustBegin()
	defer core.Free()

	fireFrames(core, rig.hal.timer, 3)
	if got := core.FrameCount(); got != 3 {
		t.Errorf("FrameCount() = %d, want 3", got)
	}
	if got := core.FrameCount(); got != 0 {
		t.Errorf("FrameCount() = %d immediately after read, want 0", got)
	}
}

func TestPlanePeriodsDouble(t *testing.T) {
	rig := newTestRig(false, 8, 4, 2)
	core := rig.mustBegin()
	defer core.Free()
	timer := rig.hal.timer

	// Pin the adaptive base period by reporting it back as the measured
	// elapsed time, so every armed period is an exact plane shift of it.
	const base = 400
	core.bitZeroPeriod = base
	timer.elapsed = base

	// From the (3, 3) starting cursor the displayed plane sequence is
	// 3, 0, 1, 2, 3, 0, ...
	wantShifts := []int{3, 0, 1, 2, 3, 0, 1, 2}
	before := len(timer.starts)
	for range wantShifts {
		timer.fire()
	}
	for i, shift := range wantShifts {
		if got, want := timer.starts[before+i], uint32(base<<shift); got != want {
			t.Errorf("period %d = %d, want %d", i, got, want)
		}
	}
}

func TestAdaptivePeriodConverges(t *testing.T) {
	rig := newTestRig(false, 8, 4, 2)
	core := rig.mustBegin()
	defer core.Free()
	timer := rig.hal.timer

	const measured = 2000
	timer.elapsed = measured
	fireFrames(core, rig.hal.timer, 100)

	// The 7/8 filter converges geometrically; integer truncation can stall
	// it up to one filter step short.
	got := core.bitZeroPeriod
	if got < measured-8 || got > measured {
		t.Errorf("bitZeroPeriod = %d, want within 8 of %d", got, measured)
	}
}

func TestAdaptivePeriodFloorsAtMinPeriod(t *testing.T) {
	rig := newTestRig(false, 8, 4, 2)
	core := rig.mustBegin()
	defer core.Free()
	timer := rig.hal.timer

	timer.elapsed = 1 // implausibly fast measurement
	fireFrames(core, rig.hal.timer, 100)

	if got := core.bitZeroPeriod; got != core.minPeriod {
		t.Errorf("bitZeroPeriod = %d, want floor %d", got, core.minPeriod)
	}
}

func TestSwapAppliesOnlyAtFrameBoundary(t *testing.T) {
	rig := newTestRig(false, 8, 2, 1)
	rig.cfg.DoubleBuffer = true
	core := rig.mustBegin()
	defer core.Free()
	timer := rig.hal.timer

	timer.fire() // cursor now at (0, 0), a fresh frame
	core.Swap()

	// Three more expiries walk to the last (plane, row) of the frame.
	for i := 0; i < 3; i++ {
		timer.fire()
		if !core.Swapping() {
			t.Fatalf("swap applied mid-frame at expiry %d", i)
		}
		if core.activeBuffer != 0 {
			t.Fatal("buffer flipped mid-frame")
		}
	}

	timer.fire() // row overflow
	if core.Swapping() {
		t.Error("swap still pending after frame boundary")
	}
	if core.activeBuffer != 1 {
		t.Error("buffer not flipped at frame boundary")
	}
}

func TestRowAdvancesOnPlaneZero(t *testing.T) {
	rig := newTestRig(false, 8, 4, 2)
	core := rig.mustBegin()
	defer core.Free()
	timer := rig.hal.timer

	timer.fire() // (0, 0)
	rows := []int{core.row}
	for i := 0; i < 8; i++ {
		timer.fire()
		rows = append(rows, core.row)
	}
	want := []int{0, 0, 0, 0, 1, 1, 1, 1, 2}
	for i := range want {
		if rows[i] != want[i] {
			t.Fatalf("row sequence %v, want %v", rows, want)
		}
	}
}

func TestSelectRowTouchesChangedLinesOnly(t *testing.T) {
	rig := newTestRig(false, 8, 1, 3) // control port is plain, per-line path
	core := rig.mustBegin()
	defer core.Free()

	core.prevRow = 0b010
	core.row = 0b011
	before := len(rig.ctrl.ops)
	delayed := rig.hal.delayed
	core.selectRow()

	// Only bit 0 differs, so exactly one address write and one settle.
	ops := rig.ctrl.ops[before:]
	if len(ops) != 1 {
		t.Fatalf("%d address writes, want 1 (ops %v)", len(ops), ops)
	}
	if ops[0].kind != 's' || ops[0].mask != core.addr[0].bit {
		t.Errorf("wrote %c %#x, want set of line 0 (%#x)", ops[0].kind, ops[0].mask, core.addr[0].bit)
	}
	if got := rig.hal.delayed - delayed; got != rowSettleUS {
		t.Errorf("%d us settle, want %d", got, rowSettleUS)
	}
}

func TestSelectRowSingleTogglePort(t *testing.T) {
	// Address lines on a toggle-capable port collapse into one XOR write.
	h := newFakeHAL()
	data := &fakePort{}
	ctrl := &fakeTogglePort{}
	rgb := []Pin{10, 11, 12, 13, 14, 15}
	for i, p := range rgb {
		h.mapPin(p, data, 1<<uint(i))
	}
	h.mapPin(16, data, 1<<6)
	addr := []Pin{20, 21, 22}
	for i, p := range addr {
		h.mapPin(p, ctrl, 1<<uint(8+i))
	}
	h.mapPin(30, ctrl, 1<<0)
	h.mapPin(31, ctrl, 1<<1)

	core, err := NewCore(h, Config{
		Width: 8, BitDepth: 1,
		RGBPins: rgb, AddrPins: addr,
		Clock: 16, Latch: 30, OE: 31,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := core.Begin(); err != nil {
		t.Fatal(err)
	}
	defer core.Free()
	if core.singleAddrPort == nil {
		t.Fatal("shared toggle address port not detected")
	}

	core.prevRow = 0b000
	core.row = 0b101
	before := len(ctrl.ops)
	delayed := h.delayed
	core.selectRow()

	ops := ctrl.ops[before:]
	if len(ops) != 1 || ops[0].kind != 't' {
		t.Fatalf("ops %v, want a single toggle", ops)
	}
	if want := uint32(1<<8 | 1<<10); ops[0].mask != want {
		t.Errorf("toggled %#x, want %#x", ops[0].mask, want)
	}
	if got := h.delayed - delayed; got != rowSettleUS {
		t.Errorf("%d us settle, want %d", got, rowSettleUS)
	}
}

func TestStopHaltsHandlerAndBlanks(t *testing.T) {
	rig := newTestRig(false, 8, 2, 1)
	core := rig.mustBegin()
	defer core.Free()
	timer := rig.hal.timer

	timer.fire()
	core.Stop()

	if timer.armed {
		t.Error("timer still armed after Stop")
	}
	// OE is active low, so high means output disabled.
	if rig.ctrl.bits&core.oe.bit == 0 {
		t.Error("output still enabled after Stop")
	}
	for _, p := range rig.cfg.RGBPins {
		if rig.hal.levels[p] {
			t.Errorf("data pin %d left high after Stop", p)
		}
	}

	// A late expiry of an already-delivered tick must do nothing.
	dataOps := len(portOps(rig.data))
	timer.fire()
	if got := len(portOps(rig.data)); got != dataOps {
		t.Error("handler streamed data after Stop")
	}
}

// gatedTimer parks one Stop call when armed by park(), holding the refresh
// handler mid-pass until release is closed. All other calls pass through.
type gatedTimer struct {
	fakeTimer
	gate    atomic.Bool
	parked  chan struct{}
	release chan struct{}
}

func newGatedTimer() *gatedTimer {
	return &gatedTimer{
		parked:  make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (t *gatedTimer) park() { t.gate.Store(true) }

func (t *gatedTimer) Stop() uint32 {
	if t.gate.CompareAndSwap(true, false) {
		close(t.parked)
		<-t.release
	}
	return t.fakeTimer.Stop()
}

func TestStopJoinsInFlightHandler(t *testing.T) {
	rig := newTestRig(false, 8, 2, 1)
	timer := newGatedTimer()
	rig.cfg.Timer = timer
	core := rig.mustBegin()
	defer core.Free()

	// Park the next pass inside its period measurement, past the point
	// where it last checked the running flag.
	timer.park()
	handlerDone := make(chan struct{})
	go func() {
		timer.fire()
		close(handlerDone)
	}()
	<-timer.parked

	stopDone := make(chan struct{})
	go func() {
		core.Stop()
		close(stopDone)
	}()
	select {
	case <-stopDone:
		t.Fatal("Stop returned while a refresh pass was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(timer.release)
	<-handlerDone
	<-stopDone

	// The parked pass re-armed the timer and re-enabled output on its way
	// out; Stop must have undone both after the join.
	if timer.armed {
		t.Error("timer left armed after Stop")
	}
	if rig.ctrl.bits&core.oe.bit == 0 {
		t.Error("output left enabled after Stop")
	}

	// A straggling expiry after teardown must not touch the data port.
	dataOps := len(portOps(rig.data))
	timer.fire()
	if got := len(portOps(rig.data)); got != dataOps {
		t.Error("handler streamed data after Stop")
	}
}

func TestStopThenResumeRestartsCleanly(t *testing.T) {
	rig := newTestRig(false, 8, 4, 2)
	core := rig.mustBegin()
	defer core.Free()
	timer := rig.hal.timer

	fireFrames(core, timer, 2)
	timer.fire() // leave the cursor mid-frame
	core.Stop()
	core.Resume()

	if core.plane != core.planes-1 || core.row != core.rowPairs-1 {
		t.Errorf("cursor at (plane %d, row %d) after Resume, want (%d, %d)",
			core.plane, core.row, core.planes-1, core.rowPairs-1)
	}
	if got := core.FrameCount(); got != 0 {
		t.Errorf("FrameCount() = %d after Resume, want 0", got)
	}
	if !timer.armed {
		t.Error("timer not rearmed by Resume")
	}

	fireFrames(core, timer, 1)
	if got := core.FrameCount(); got != 1 {
		t.Errorf("FrameCount() = %d after one resumed frame, want 1", got)
	}
}

func TestStopBeforeBeginIsNoOp(t *testing.T) {
	rig := newTestRig(false, 8, 1, 0)
	core, err := NewCore(rig.hal, rig.cfg)
	if err != nil {
		t.Fatal(err)
	}
	core.Stop() // must not panic or touch pins
	if len(rig.ctrl.ops) != 0 {
		t.Error("Stop before Begin wrote to ports")
	}
}
