package display

import (
	"runtime"

	"github.com/mvanier/ledmatrix/pkg/hub75"
)

// Matrix ties a canvas to a running refresh engine. The daemon draws on the
// canvas and calls Show; the packer converts RGB565 pixels to the engine's
// per-plane element layout and requests a buffer swap.
type Matrix struct {
	core   *hub75.Core
	canvas *Canvas

	// Per-plane accumulators, reused across Show calls.
	data []uint32
	prev []uint32
}

// New sizes a canvas to the engine's geometry: the chain width across, two
// rows per row pair per parallel chain down.
func New(core *hub75.Core) *Matrix {
	h := 2 * core.RowPairs() * core.Parallel()
	return &Matrix{
		core:   core,
		canvas: NewCanvas(core.Width(), h),
		data:   make([]uint32, core.Planes()),
		prev:   make([]uint32, core.Planes()),
	}
}

// Canvas returns the drawable frame.
func (m *Matrix) Canvas() *Canvas { return m.canvas }

// Show packs the canvas into the engine's drawable buffer and swaps it in
// at the next frame boundary. With double buffering it first waits out any
// swap still pending from the previous Show, so at most one frame is ever
// in flight.
func (m *Matrix) Show() {
	for m.core.Swapping() {
		runtime.Gosched()
	}

	core := m.core
	masks := core.RGBMasks()
	rb := core.RemapRB()
	green := core.RemapG()
	planes := core.Planes()
	rowPairs := core.RowPairs()
	toggleForm := core.PortToggles()
	clockBase := core.ClockBase()

	for pair := 0; pair < rowPairs; pair++ {
		// Each row-plane ends with the data lines cleared, so the toggle
		// chain restarts from zero at every row pair.
		for p := range m.prev {
			m.prev[p] = 0
		}
		for x := 0; x < core.Width(); x++ {
			for p := range m.data {
				m.data[p] = 0
			}
			for chain := 0; chain < core.Parallel(); chain++ {
				top := chain * 2 * rowPairs
				upper := m.canvas.Pix[(top+pair)*m.canvas.Stride+x]
				lower := m.canvas.Pix[(top+rowPairs+pair)*m.canvas.Stride+x]
				lane := masks[chain*6:]
				m.planeBits(upper, lane[0], lane[1], lane[2], rb, green)
				m.planeBits(lower, lane[3], lane[4], lane[5], rb, green)
			}
			for p := 0; p < planes; p++ {
				v := m.data[p]
				if toggleForm {
					d := v
					v = clockBase | (d ^ m.prev[p])
					m.prev[p] = d
				}
				core.PutElement(pair, p, x, v)
			}
		}
	}
	core.Swap()
}

// planeBits scatters one pixel's tone-mapped channels across the per-plane
// accumulators.
func (m *Matrix) planeBits(c RGB565, rMask, gMask, bMask uint32, rb, green []uint16) {
	r := rb[c>>11&0x1f]
	g := green[c>>5&0x3f]
	b := rb[c&0x1f]
	for p := range m.data {
		bit := uint16(1) << uint(p)
		if r&bit != 0 {
			m.data[p] |= rMask
		}
		if g&bit != 0 {
			m.data[p] |= gMask
		}
		if b&bit != 0 {
			m.data[p] |= bMask
		}
	}
}
