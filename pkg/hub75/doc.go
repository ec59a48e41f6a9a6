// Package hub75 drives HUB75-style scan-multiplexed RGB LED matrix panels
// using binary code modulation (BCM).
//
// The engine owns a packed frame buffer of pre-composed port-write values and
// a timer-driven refresh state machine that walks (bit-plane, row) state,
// updates row address lines and streams one row-plane of data per tick. Each
// successive bit-plane is displayed twice as long as the previous one, so a
// panel with only a single shift-register bit per LED renders grayscale.
//
// All hardware access goes through the HAL, Port and Timer interfaces; see
// package gpio for a Linux implementation backed by memory-mapped GPIO
// registers and the GPIO character device. Pixel data is composed by the
// host (see internal/display) directly in the engine's element format, using
// the tone-map tables and mask table the engine computes at Begin time.
//
// Sequence of use:
//
//	core, err := hub75.NewCore(hal, hub75.Config{...})
//	err = core.Begin()        // validate pins, allocate, start refreshing
//	...                       // host composes pixels, calls core.Swap()
//	core.Stop()               // blank the panel, halt the timer
//	core.Free()               // release buffers
//
// The refresh handler never allocates and never blocks; Stop is the only
// blocking call, waiting at most about one frame period for a pending
// buffer swap to complete.
package hub75
