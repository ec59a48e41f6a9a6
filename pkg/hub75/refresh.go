package hub75

import "runtime"

// Resume resets the refresh cursor and restarts the timer without touching
// buffers. Used after Stop; Begin calls it as its final step.
//
// Plane and row start at their maximum values so the first timer expiry
// rolls them over into (0, 0).
func (c *Core) Resume() {
	c.plane = c.planes - 1
	c.row = c.rowPairs - 1
	if c.rowPairs > 1 {
		c.prevRow = c.row - 1
	} else {
		c.prevRow = 1
	}
	c.swapPending.Store(false)
	c.frames.Store(0)

	c.timer.Init(c.rowHandler)
	c.running.Store(true)
	c.timer.Start(1000)
}

// Stop halts refreshing and blanks the panel. It waits for any pending
// buffer swap first, so the wait is bounded by about one frame period, then
// disables output and clocks a row of zeros through the shift registers so
// the panel cannot hold a lit pattern if the OE line is later disturbed.
// Safe to call repeatedly.
//
// Stop joins the refresh handler: it busy-waits until any in-flight pass on
// the timer goroutine has returned, so once Stop returns no handler can
// re-arm the timer, re-enable output or touch the buffers.
func (c *Core) Stop() {
	if !c.began {
		return
	}
	for c.swapPending.Load() {
		runtime.Gosched()
	}
	c.running.Store(false)
	for c.inHandler.Load() {
		runtime.Gosched()
	}
	c.timer.Stop()

	c.oe.set() // output disabled
	for _, p := range c.rgbPins {
		c.hal.PinLow(p)
	}
	// Clock out zeros. Pin-level writes are far slower than the panel's
	// minimum clock hold time, so no explicit hold is needed here.
	for i := 0; i < c.width; i++ {
		c.hal.PinHigh(c.clockPin)
		c.hal.PinLow(c.clockPin)
	}
	c.latch.set()
	c.latch.clear()
}

// rowHandler is the timer expiry handler: the refresh state machine. It runs
// on the timer's goroutine, never allocates and never blocks. One pass
// latches and displays the data loaded on the previous pass while streaming
// the next (plane, row) into the shift registers.
func (c *Core) rowHandler() {
	// Raised before the running check: a pass either observes running
	// cleared and bails, or Stop observes the flag and waits it out.
	c.inHandler.Store(true)
	defer c.inHandler.Store(false)
	if !c.running.Load() {
		return
	}

	c.oe.set() // blank while the latch moves

	c.latch.set()
	elapsed := c.timer.Stop()
	prevPlane := c.plane
	c.latch.clear()

	// Plane 0 just finished being displayed (it was loaded on the pass
	// before last) when the cursor sits at plane 1, or when there is only
	// one plane. Its measured period seeds all higher planes, which are
	// successive doublings, so filter it lightly to absorb jitter.
	if prevPlane == 1 || c.planes == 1 {
		p := (c.bitZeroPeriod*7 + elapsed) / 8
		if p < c.minPeriod {
			p = c.minPeriod
		}
		c.bitZeroPeriod = p
	}

	if prevPlane == 0 {
		c.selectRow()
		c.prevRow = c.row
	}

	// Advance the cursor; swap buffers only at a full-frame boundary so a
	// displayed frame always comes from one buffer.
	c.plane++
	if c.plane >= c.planes {
		c.plane = 0
		c.row++
		if c.row >= c.rowPairs {
			c.row = 0
			if c.swapPending.Load() {
				c.activeBuffer = 1 - c.activeBuffer
				c.swapPending.Store(false)
			}
			c.frames.Add(1)
		}
	}

	// Expose the previously-loaded plane for its BCM weight while the new
	// (plane, row) streams out below.
	c.timer.Start(c.bitZeroPeriod << prevPlane)
	c.oe.clear()

	off := (c.row*c.planes + c.plane) * c.padWidth * c.elemWidth
	if c.double {
		off += c.bufferSize * c.activeBuffer
	}
	row := c.buf[off : off+c.padWidth*c.elemWidth]
	switch c.elemWidth {
	case 1:
		blast(c, row)
	case 2:
		blast(c, asWords(row))
	default:
		blast(c, asLongs(row))
	}
}

// selectRow drives the address lines to the row about to be loaded. When
// every address line sits on one toggle-capable port the whole change is a
// single XOR write; otherwise lines are changed one at a time, each
// followed by a settle delay, touching only the lines that differ.
func (c *Core) selectRow() {
	if c.singleAddrPort != nil {
		var prior, next uint32
		for line, bit := 0, 1; line < c.addrCount; line, bit = line+1, bit<<1 {
			if c.row&bit != 0 {
				next |= c.addr[line].bit
			}
			if c.prevRow&bit != 0 {
				prior |= c.addr[line].bit
			}
		}
		c.singleAddrPort.ToggleBits(next ^ prior)
		c.hal.DelayMicroseconds(rowSettleUS)
		return
	}
	for line, bit := 0, 1; line < c.addrCount; line, bit = line+1, bit<<1 {
		if (c.row^c.prevRow)&bit != 0 {
			if c.row&bit != 0 {
				c.addr[line].set()
			} else {
				c.addr[line].clear()
			}
			c.hal.DelayMicroseconds(rowSettleUS)
		}
	}
}
