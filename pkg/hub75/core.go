package hub75

import (
	"fmt"
	"sync/atomic"
)

const (
	// maxParallel bounds physically-parallel chains: five 6-bit RGB groups
	// plus a clock bit is all a 32-bit port can hold.
	maxParallel = 5
	// maxAddrLines bounds row address lines (A-E).
	maxAddrLines = 5
	// linesPerChain is the RGB data lines per parallel chain:
	// R1,G1,B1 for the upper half, R2,G2,B2 for the lower.
	linesPerChain = 6
)

// Config describes one matrix chain to NewCore.
type Config struct {
	// Width is the total chain length in pixels.
	Width int
	// BitDepth is the number of bit-planes. Values above 6 enable gamma
	// mapping in the tone tables; each extra plane doubles the longest
	// exposure, so 10 is usually plenty.
	BitDepth int
	// RGBPins lists the data lines, 6 per parallel chain in
	// R1,G1,B1,R2,G2,B2 order. At most 5 chains are used; extras are
	// ignored.
	RGBPins []Pin
	// AddrPins lists the row address lines, LSB first. At most 5 are used.
	AddrPins []Pin
	Clock    Pin
	Latch    Pin
	OE       Pin
	// DoubleBuffer allocates two frame buffers so the host can compose
	// one while the other is displayed.
	DoubleBuffer bool
	// Timer overrides the HAL's default refresh timer.
	Timer Timer
	// Allocator overrides make() for frame buffer memory.
	Allocator Allocator
}

// Core is the per-matrix device context. One Core owns one panel chain; its
// scalar state is written only by the refresh handler once armed, and by the
// lifecycle methods before arming or after halting.
type Core struct {
	hal   HAL
	timer Timer
	alloc Allocator

	width     int
	planes    int
	parallel  int
	addrCount int
	double    bool

	rgbPins  []Pin
	addrPins []Pin
	clockPin Pin

	latch linePin
	oe    linePin
	addr  []linePin

	// Derived port layout, fixed at Begin.
	port            Port
	toggle          TogglePort // non-nil when port supports bit toggling
	singleAddrPort  TogglePort // non-nil when all addr lines share one
	elemWidth       int        // bytes per stored element: 1, 2 or 4
	portOffset      int        // element lane index within the 32-bit word
	clockMask       uint32     // clock bit, full port word
	rgbAndClockMask uint32     // data+clock bits, full port word
	laneClock       uint32     // clock bit narrowed to the element lane

	rowPairs   int
	padWidth   int // width padded to the blast loop's unroll granularity
	bufferSize int // bytes per single frame buffer
	buf        []byte
	rgbMask    []uint32 // per data line, narrowed to the element lane

	remapRB [32]uint16
	remapG  [64]uint16

	// Refresh cursor. prevRow trails row by one plane-0 pass.
	plane        int
	row          int
	prevRow      int
	activeBuffer int

	running     atomic.Bool
	inHandler   atomic.Bool
	swapPending atomic.Bool
	frames      atomic.Uint32

	bitZeroPeriod uint32
	minPeriod     uint32

	began bool
}

// NewCore validates arguments and captures the pin assignment. Buffer sizing
// and allocation are deferred to Begin, because the element width is not
// known until every pin's port bit has been resolved.
func NewCore(hal HAL, cfg Config) (*Core, error) {
	if hal == nil {
		return nil, fmt.Errorf("nil HAL: %w", ErrArgument)
	}
	if cfg.Width <= 0 {
		return nil, fmt.Errorf("width %d: %w", cfg.Width, ErrArgument)
	}
	if cfg.BitDepth < 1 || cfg.BitDepth > 16 {
		// Tone-map entries are 16-bit plane patterns, so 16 planes is the
		// ceiling (and far beyond any usable exposure spread).
		return nil, fmt.Errorf("bit depth %d: %w", cfg.BitDepth, ErrArgument)
	}
	if len(cfg.RGBPins) < linesPerChain || len(cfg.RGBPins)%linesPerChain != 0 {
		return nil, fmt.Errorf("%d RGB pins, want a multiple of %d: %w",
			len(cfg.RGBPins), linesPerChain, ErrArgument)
	}

	parallel := len(cfg.RGBPins) / linesPerChain
	if parallel > maxParallel {
		parallel = maxParallel // hardware ceiling, not an error
	}
	addrCount := len(cfg.AddrPins)
	if addrCount > maxAddrLines {
		addrCount = maxAddrLines
	}

	timer := cfg.Timer
	if timer == nil {
		timer = hal.DefaultTimer()
	}
	if timer == nil {
		return nil, fmt.Errorf("no timer: %w", ErrArgument)
	}

	c := &Core{
		hal:       hal,
		timer:     timer,
		alloc:     cfg.Allocator,
		width:     cfg.Width,
		planes:    cfg.BitDepth,
		parallel:  parallel,
		addrCount: addrCount,
		double:    cfg.DoubleBuffer,
		clockPin:  cfg.Clock,
	}
	// Copy the pin lists; callers may reuse or mutate theirs.
	c.rgbPins = make([]Pin, parallel*linesPerChain)
	copy(c.rgbPins, cfg.RGBPins)
	c.addrPins = make([]Pin, addrCount)
	copy(c.addrPins, cfg.AddrPins)
	c.latch.num = cfg.Latch
	c.oe.num = cfg.OE
	return c, nil
}

// Swap requests a buffer swap. The refresh handler applies it at the next
// row-overflow boundary, so a full frame is always shown from one buffer.
// Meaningful only when double buffered.
func (c *Core) Swap() {
	if c.double {
		c.swapPending.Store(true)
	}
}

// Swapping reports whether a requested swap is still pending. The host may
// write the drawable buffer again once this returns false.
func (c *Core) Swapping() bool { return c.swapPending.Load() }

// FrameCount returns the number of full frames refreshed since the last call
// and resets the counter. Two calls a second apart give frames per second.
func (c *Core) FrameCount() uint32 { return c.frames.Swap(0) }

// Free stops the engine and releases the frame buffer and pin tables. The
// Core itself is caller-owned and may be discarded afterwards. A freed Core
// must not be restarted.
func (c *Core) Free() {
	c.Stop()
	if c.buf != nil {
		if c.alloc != nil {
			c.alloc.Free(c.buf)
		}
		c.buf = nil
	}
	c.rgbMask = nil
	c.addr = nil
	c.rgbPins = nil
	c.addrPins = nil
	c.began = false
}

// Geometry and layout accessors for the pixel-composing host.

// Width returns the configured chain width in pixels.
func (c *Core) Width() int { return c.width }

// PaddedWidth returns the element count per row-plane, the configured width
// rounded up to the blast loop's unroll granularity.
func (c *Core) PaddedWidth() int { return c.padWidth }

// Planes returns the configured bit-plane count.
func (c *Core) Planes() int { return c.planes }

// RowPairs returns 2^addressLines, the multiplexed row-pair count.
func (c *Core) RowPairs() int { return c.rowPairs }

// Parallel returns the parallel chain count.
func (c *Core) Parallel() int { return c.parallel }

// ElementWidth returns the stored element size in bytes: 1, 2 or 4.
func (c *Core) ElementWidth() int { return c.elemWidth }

// BufferBytes returns the size in bytes of one frame buffer.
func (c *Core) BufferBytes() int { return c.bufferSize }

// PortToggles reports whether the data port has a bit-toggle register. When
// true the host must compose elements in toggle form: each element XORed
// with the previous column's data bits, with ClockBase OR-ed in.
func (c *Core) PortToggles() bool { return c.toggle != nil }

// ClockBase returns the pattern the host must OR into every composed
// element: the lane-relative clock bit on toggle-capable ports, zero
// otherwise.
func (c *Core) ClockBase() uint32 {
	if c.toggle != nil {
		return c.laneClock
	}
	return 0
}

// RGBMasks returns the per-data-line bit patterns, in RGBPins order,
// narrowed to the element lane. The host ORs these into an element to light
// the corresponding line for that column.
func (c *Core) RGBMasks() []uint32 { return c.rgbMask }

// RemapRB returns the 5-bit red/blue tone-map table: channel value in,
// bit-plane pattern out.
func (c *Core) RemapRB() []uint16 { return c.remapRB[:] }

// RemapG returns the 6-bit green tone-map table.
func (c *Core) RemapG() []uint16 { return c.remapG[:] }

// PutElement stores one composed element for (rowPair, plane, column) into
// the drawable buffer: the inactive one when double buffered, the live one
// otherwise. Columns at and beyond Width are padding and owned by the
// engine; writing them is allowed but unnecessary.
func (c *Core) PutElement(rowPair, plane, x int, v uint32) {
	off := c.drawOffset() + ((rowPair*c.planes+plane)*c.padWidth+x)*c.elemWidth
	switch c.elemWidth {
	case 1:
		c.buf[off] = uint8(v)
	case 2:
		putWord(c.buf[off:], uint16(v))
	default:
		putLong(c.buf[off:], v)
	}
}

// drawOffset returns the byte offset of the buffer the host may write.
func (c *Core) drawOffset() int {
	if c.double {
		return c.bufferSize * (1 - c.activeBuffer)
	}
	return 0
}
