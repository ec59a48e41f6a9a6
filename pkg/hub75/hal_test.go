package hub75

import "fmt"

// Test doubles for the HAL surface. Ports record every write so tests can
// replay the electrical sequence the engine produced.

type portOp struct {
	kind byte // 's'et, 'c'lear, 't'oggle
	mask uint32
}

type fakePort struct {
	bits uint32
	ops  []portOp
}

func (p *fakePort) SetBits(m uint32) {
	p.bits |= m
	p.ops = append(p.ops, portOp{'s', m})
}

func (p *fakePort) ClearBits(m uint32) {
	p.bits &^= m
	p.ops = append(p.ops, portOp{'c', m})
}

type fakeTogglePort struct {
	fakePort
}

func (p *fakeTogglePort) ToggleBits(m uint32) {
	p.bits ^= m
	p.ops = append(p.ops, portOp{'t', m})
}

// risingEdges replays recorded writes and samples the masked data lines at
// every low-to-high transition of the clock bit, i.e. what the panel's
// shift registers latch.
func risingEdges(ops []portOp, clockBit, dataMask uint32) []uint32 {
	var state uint32
	var latched []uint32
	for _, op := range ops {
		before := state & clockBit
		switch op.kind {
		case 's':
			state |= op.mask
		case 'c':
			state &^= op.mask
		case 't':
			state ^= op.mask
		}
		if before == 0 && state&clockBit != 0 {
			latched = append(latched, state&dataMask)
		}
	}
	return latched
}

type fakeTimer struct {
	handler func()
	starts  []uint32
	stops   int
	elapsed uint32
	armed   bool
}

func (t *fakeTimer) Init(h func())     { t.handler = h }
func (t *fakeTimer) Start(p uint32)    { t.armed = true; t.starts = append(t.starts, p) }
func (t *fakeTimer) Stop() uint32      { t.armed = false; t.stops++; return t.elapsed }
func (t *fakeTimer) Frequency() uint32 { return 1_000_000 }
func (t *fakeTimer) MinPeriod() uint32 { return 75 }

// fire simulates one timer expiry.
func (t *fakeTimer) fire() { t.handler() }

type fakeHAL struct {
	pins    map[Pin]PinInfo
	timer   *fakeTimer
	levels  map[Pin]bool
	outputs map[Pin]bool
	delayed uint32
	maxHz   uint32
}

func newFakeHAL() *fakeHAL {
	return &fakeHAL{
		pins:    make(map[Pin]PinInfo),
		timer:   &fakeTimer{},
		levels:  make(map[Pin]bool),
		outputs: make(map[Pin]bool),
		maxHz:   250,
	}
}

func (h *fakeHAL) mapPin(p Pin, port Port, bit uint32) {
	h.pins[p] = PinInfo{Port: port, Bit: bit}
}

func (h *fakeHAL) ResolvePin(p Pin) (PinInfo, error) {
	info, ok := h.pins[p]
	if !ok {
		return PinInfo{}, fmt.Errorf("unmapped pin %d", p)
	}
	return info, nil
}

func (h *fakeHAL) PinOutput(p Pin) { h.outputs[p] = true }
func (h *fakeHAL) PinHigh(p Pin)   { h.levels[p] = true }
func (h *fakeHAL) PinLow(p Pin)    { h.levels[p] = false }

func (h *fakeHAL) DelayMicroseconds(us uint32) { h.delayed += us }

func (h *fakeHAL) DefaultTimer() Timer {
	if h.timer == nil {
		return nil
	}
	return h.timer
}

func (h *fakeHAL) MaxRefreshHz() uint32 { return h.maxHz }

// portOps extracts the write log from either fake port kind.
func portOps(p Port) []portOp {
	switch v := p.(type) {
	case *fakeTogglePort:
		return v.ops
	case *fakePort:
		return v.ops
	}
	return nil
}

// testRig is a ready-to-Begin single-chain setup: six data lines on the low
// byte of the data port, clock on bit 6, control and address lines on a
// separate port.
type testRig struct {
	hal      *fakeHAL
	data     Port // *fakePort or *fakeTogglePort
	ctrl     *fakePort
	cfg      Config
	clockBit uint32
}

func newTestRig(togglePort bool, width, depth, addrLines int) *testRig {
	h := newFakeHAL()
	var data Port
	if togglePort {
		data = &fakeTogglePort{}
	} else {
		data = &fakePort{}
	}
	ctrl := &fakePort{}

	rgb := []Pin{10, 11, 12, 13, 14, 15}
	for i, p := range rgb {
		h.mapPin(p, data, 1<<uint(i))
	}
	const clockPin = Pin(16)
	h.mapPin(clockPin, data, 1<<6)

	addr := make([]Pin, addrLines)
	for i := range addr {
		addr[i] = Pin(20 + i)
		h.mapPin(addr[i], ctrl, 1<<uint(8+i))
	}
	h.mapPin(30, ctrl, 1<<0) // latch
	h.mapPin(31, ctrl, 1<<1) // OE

	return &testRig{
		hal:  h,
		data: data,
		ctrl: ctrl,
		cfg: Config{
			Width:    width,
			BitDepth: depth,
			RGBPins:  rgb,
			AddrPins: addr,
			Clock:    clockPin,
			Latch:    30,
			OE:       31,
		},
		clockBit: 1 << 6,
	}
}

// newCustomRig places the six data lines and the clock on caller-chosen
// port bits, for exercising the wider element layouts.
func newCustomRig(togglePort bool, rgbBits [6]uint32, clockBit uint32, width, depth, addrLines int) *testRig {
	h := newFakeHAL()
	var data Port
	if togglePort {
		data = &fakeTogglePort{}
	} else {
		data = &fakePort{}
	}
	ctrl := &fakePort{}

	rgb := []Pin{10, 11, 12, 13, 14, 15}
	for i, p := range rgb {
		h.mapPin(p, data, rgbBits[i])
	}
	const clockPin = Pin(16)
	h.mapPin(clockPin, data, clockBit)

	addr := make([]Pin, addrLines)
	for i := range addr {
		addr[i] = Pin(20 + i)
		h.mapPin(addr[i], ctrl, 1<<uint(8+i))
	}
	h.mapPin(30, ctrl, 1<<0)
	h.mapPin(31, ctrl, 1<<1)

	return &testRig{
		hal:  h,
		data: data,
		ctrl: ctrl,
		cfg: Config{
			Width:    width,
			BitDepth: depth,
			RGBPins:  rgb,
			AddrPins: addr,
			Clock:    clockPin,
			Latch:    30,
			OE:       31,
		},
		clockBit: clockBit,
	}
}

func (r *testRig) mustBegin() *Core {
	core, err := NewCore(r.hal, r.cfg)
	if err != nil {
		panic(err)
	}
	if err := core.Begin(); err != nil {
		panic(err)
	}
	return core
}

// countingAlloc tracks live allocations so leak checks can assert nothing
// survived a failed Begin.
type countingAlloc struct {
	live   int
	allocs int
	sizes  []int
	failAt int // 1-based call number to fail on; 0 never fails
}

func (a *countingAlloc) Alloc(n int) ([]byte, error) {
	a.allocs++
	if a.failAt != 0 && a.allocs >= a.failAt {
		return nil, fmt.Errorf("out of memory")
	}
	a.live++
	a.sizes = append(a.sizes, n)
	return make([]byte, n), nil
}

func (a *countingAlloc) Free(b []byte) { a.live-- }
