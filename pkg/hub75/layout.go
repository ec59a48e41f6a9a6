package hub75

import (
	"fmt"
	"math/bits"
)

// rowSettleUS is the pause after any row address line change. Some panels
// are slow to react to address changes and ghost without it.
const rowSettleUS = 8

// Begin runs layout planning, allocates the frame buffer, initializes every
// control pin to a safe state and starts the refresh timer.
//
// Layout planning determines how elements are stored: if all data bits (and,
// on a toggle-capable port, the clock bit) fall within one byte of the
// 32-bit port word, elements are stored as single bytes; within one half
// word, as 16-bit words; otherwise as full 32-bit words. Narrower elements
// mean a smaller buffer and a faster blast loop.
func (c *Core) Begin() error {
	if c.rgbPins == nil {
		return fmt.Errorf("core already freed: %w", ErrArgument)
	}

	clockInfo, err := c.hal.ResolvePin(c.clockPin)
	if err != nil {
		return fmt.Errorf("clock pin %d: %w: %w", c.clockPin, err, ErrArgument)
	}
	c.port = clockInfo.Port
	c.toggle, _ = clockInfo.Port.(TogglePort)

	// Union of the port bits the blast loop will touch. The clock bit only
	// constrains element width when toggling, because the toggle path
	// writes clock and data through the same lane; the set/clear path
	// addresses the clock with full-word writes regardless.
	var bitMask uint32
	if c.toggle != nil {
		bitMask = clockInfo.Bit
	}
	rgbBits := make([]uint32, len(c.rgbPins))
	for i, p := range c.rgbPins {
		info, err := c.hal.ResolvePin(p)
		if err != nil {
			return fmt.Errorf("RGB pin %d: %w: %w", p, err, ErrArgument)
		}
		if info.Port != c.port {
			return fmt.Errorf("RGB pin %d not on clock port: %w", p, ErrPinConflict)
		}
		rgbBits[i] = info.Bit
		bitMask |= info.Bit
	}

	c.elemWidth, c.portOffset = classifyLanes(bitMask, rgbBits[0])

	laneShift := uint(c.portOffset * c.elemWidth * 8)
	c.clockMask = clockInfo.Bit
	c.rgbAndClockMask = bitMask | clockInfo.Bit
	c.laneClock = clockInfo.Bit >> laneShift

	// Size and allocate the frame buffer: one element per padded column,
	// per row pair, per plane; twice that when double buffered.
	c.rowPairs = 1 << c.addrCount
	chunks := (c.width + chunkSize - 1) / chunkSize
	c.padWidth = chunks * chunkSize
	c.bufferSize = c.padWidth * c.rowPairs * c.planes * c.elemWidth
	total := c.bufferSize
	if c.double {
		total *= 2
	}
	if c.alloc != nil {
		buf, err := c.alloc.Alloc(total)
		if err != nil {
			return fmt.Errorf("%d byte frame buffer: %w", total, ErrAllocation)
		}
		c.buf = buf
	} else {
		c.buf = make([]byte, total)
	}

	// On a toggle-capable port every element carries the clock bit as a
	// toggle baseline, so pre-fill the whole buffer with it. Otherwise the
	// zero fill from allocation is already correct.
	if c.toggle != nil {
		c.prefillClock()
	}

	// Mask table for the host's pixel packer, one entry per data line,
	// narrowed to the element lane.
	c.rgbMask = make([]uint32, len(rgbBits))
	for i, bit := range rgbBits {
		c.rgbMask[i] = bit >> laneShift
	}

	c.buildToneTables()

	// Minimum bit-plane-zero period for the target refresh ceiling. Only a
	// floor: the running engine adapts upward from measured timing.
	perFrame := c.timer.Frequency() / c.hal.MaxRefreshHz()
	perLine := perFrame / uint32(c.rowPairs)
	c.minPeriod = perLine / uint32((1<<c.planes)-1)
	if c.minPeriod < c.timer.MinPeriod() {
		c.minPeriod = c.timer.MinPeriod()
	}
	// Rough seed; the handler converges on real timing within a few frames.
	c.bitZeroPeriod = uint32(c.width) * 5

	c.activeBuffer = 0

	if err := c.initPins(); err != nil {
		c.releaseBuffers()
		return err
	}

	c.began = true
	c.Resume()
	return nil
}

// classifyLanes reduces the touched-bit mask to an element width and lane
// offset. firstBit is the resolved bit of the first data line, which by the
// colocation check lives in the same lane as all the others.
func classifyLanes(bitMask, firstBit uint32) (elemWidth, portOffset int) {
	var byteMask uint8
	if bitMask&0xFF000000 != 0 {
		byteMask |= 0b1000
	}
	if bitMask&0x00FF0000 != 0 {
		byteMask |= 0b0100
	}
	if bitMask&0x0000FF00 != 0 {
		byteMask |= 0b0010
	}
	if bitMask&0x000000FF != 0 {
		byteMask |= 0b0001
	}
	switch byteMask {
	case 0b0001, 0b0010, 0b0100, 0b1000:
		// All bits within one byte of the port.
		return 1, bitIndex(firstBit) / 8
	case 0b0011, 0b1100:
		// Within the upper or lower half word. A "middle" unaligned word
		// is deliberately not handled; it is a portability liability.
		return 2, bitIndex(firstBit) / 16
	default:
		return 4, 0
	}
}

func bitIndex(mask uint32) int { return bits.TrailingZeros32(mask) }

// prefillClock writes the lane clock pattern into every element slot.
func (c *Core) prefillClock() {
	switch c.elemWidth {
	case 1:
		v := uint8(c.laneClock)
		for i := range c.buf {
			c.buf[i] = v
		}
	case 2:
		v := uint16(c.laneClock)
		for i := 0; i < len(c.buf); i += 2 {
			putWord(c.buf[i:], v)
		}
	default:
		for i := 0; i < len(c.buf); i += 4 {
			putLong(c.buf[i:], c.laneClock)
		}
	}
}

// initPins resolves the remaining control lines and drives everything to a
// known-safe state: clock and latch low, output disabled, data low, address
// lines matching prevRow so the first refresh pass reprograms them all.
func (c *Core) initPins() error {
	latchInfo, err := c.hal.ResolvePin(c.latch.num)
	if err != nil {
		return fmt.Errorf("latch pin %d: %w: %w", c.latch.num, err, ErrArgument)
	}
	c.latch.port, c.latch.bit = latchInfo.Port, latchInfo.Bit
	oeInfo, err := c.hal.ResolvePin(c.oe.num)
	if err != nil {
		return fmt.Errorf("OE pin %d: %w: %w", c.oe.num, err, ErrArgument)
	}
	c.oe.port, c.oe.bit = oeInfo.Port, oeInfo.Bit

	c.hal.PinOutput(c.clockPin)
	c.hal.PinLow(c.clockPin)
	c.hal.PinOutput(c.latch.num)
	c.hal.PinLow(c.latch.num)
	c.hal.PinOutput(c.oe.num)
	c.hal.PinHigh(c.oe.num) // output disabled

	for _, p := range c.rgbPins {
		c.hal.PinOutput(p)
		c.hal.PinLow(p)
	}

	c.addr = make([]linePin, c.addrCount)
	c.prevRow = c.rowPairs - 2
	var addrToggle TogglePort
	single := true
	for line := 0; line < c.addrCount; line++ {
		pin := c.addrPins[line]
		info, err := c.hal.ResolvePin(pin)
		if err != nil {
			return fmt.Errorf("address pin %d: %w: %w", pin, err, ErrArgument)
		}
		c.addr[line] = linePin{num: pin, port: info.Port, bit: info.Bit}
		c.hal.PinOutput(pin)
		if c.prevRow&(1<<line) != 0 {
			c.hal.PinHigh(pin)
		} else {
			c.hal.PinLow(pin)
		}
		tp, ok := info.Port.(TogglePort)
		if line == 0 {
			addrToggle = tp
		}
		if !ok || tp != addrToggle {
			single = false
		}
	}
	if single && c.addrCount > 0 {
		c.singleAddrPort = addrToggle
	} else {
		c.singleAddrPort = nil
	}
	return nil
}

func (c *Core) releaseBuffers() {
	if c.buf != nil && c.alloc != nil {
		c.alloc.Free(c.buf)
	}
	c.buf = nil
	c.rgbMask = nil
}
