// Package gpio implements the refresh engine's hardware layer for the
// Raspberry Pi: a memory-mapped register port for the fast path and
// character-device lines for pin setup.
//
// Lines are claimed through /dev/gpiochip0 with go-gpiocdev, which marks
// them busy against other processes and programs the output function. The
// per-cycle data streaming bypasses the character device and writes the
// set/clear registers directly; a line round trip through the kernel costs
// microseconds, far too slow to clock pixel data.
package gpio

import (
	"fmt"
	"log"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/mvanier/ledmatrix/pkg/hub75"
	"github.com/mvanier/ledmatrix/pkg/mmap"
)

const (
	// BCM2711 (Raspberry Pi 4) GPIO register block, seen from the ARM at
	// the low-peripheral address.
	regBase = 0xfe200000
	regSize = 0xf4

	regSet0   = 0x1c // GPSET0, pins 0-31
	regClear0 = 0x28 // GPCLR0
	regLevel0 = 0x34 // GPLEV0
)

// maxPin is the highest pin on bank 0. The 40-pin header only exposes pins
// below 28, so one bank covers every wiring this package supports.
const maxPin = 31

// Bank is bank 0 of the SoC's GPIO block as a hub75 output port. The
// set/clear registers make every write atomic with respect to other bank
// users; there is no toggle register on this SoC.
type Bank struct {
	mem *mmap.Region
}

// SetBits drives the masked pins high.
func (b *Bank) SetBits(mask uint32) { b.mem.Write32(regSet0, mask) }

// ClearBits drives the masked pins low.
func (b *Bank) ClearBits(mask uint32) { b.mem.Write32(regClear0, mask) }

// Levels reads back the pin input levels.
func (b *Bank) Levels() uint32 { return b.mem.Read32(regLevel0) }

// RPi is the hub75.HAL for a Raspberry Pi 4 driving a panel from the 40-pin
// header. Open claims nothing; lines are claimed as the engine configures
// them and released by Close.
type RPi struct {
	mem   *mmap.Region
	bank  *Bank
	chip  string
	lines map[hub75.Pin]*gpiocdev.Line
}

// Open maps the GPIO register block. Requires access to /dev/mem and
// /dev/gpiochip0, i.e. root on a stock Raspberry Pi OS.
func Open() (*RPi, error) {
	mem, err := mmap.Map(regBase, regSize)
	if err != nil {
		return nil, fmt.Errorf("gpio: %w", err)
	}
	return &RPi{
		mem:   mem,
		bank:  &Bank{mem: mem},
		chip:  "gpiochip0",
		lines: make(map[hub75.Pin]*gpiocdev.Line),
	}, nil
}

// Close releases every claimed line and unmaps the register block.
func (r *RPi) Close() error {
	for pin, line := range r.lines {
		line.Close()
		delete(r.lines, pin)
	}
	return r.mem.Close()
}

// ResolvePin places a header pin on bank 0.
func (r *RPi) ResolvePin(p hub75.Pin) (hub75.PinInfo, error) {
	if p > maxPin {
		return hub75.PinInfo{}, fmt.Errorf("gpio: pin %d outside bank 0", p)
	}
	return hub75.PinInfo{Port: r.bank, Bit: 1 << p}, nil
}

// PinOutput claims the line as a low output. The claim both programs the
// pin function and keeps other processes off the line while the engine
// runs. Failures are logged, not returned; the engine's pin setup has no
// error path and a busy line shows up immediately as a dead panel anyway.
func (r *RPi) PinOutput(p hub75.Pin) {
	if _, ok := r.lines[p]; ok {
		return
	}
	line, err := gpiocdev.RequestLine(r.chip, int(p),
		gpiocdev.AsOutput(0), gpiocdev.WithConsumer("ledmatrix"))
	if err != nil {
		log.Printf("gpio: claim pin %d: %v", p, err)
		return
	}
	r.lines[p] = line
}

// PinHigh drives the pin high through the register block.
func (r *RPi) PinHigh(p hub75.Pin) { r.bank.SetBits(1 << p) }

// PinLow drives the pin low through the register block.
func (r *RPi) PinLow(p hub75.Pin) { r.bank.ClearBits(1 << p) }

// DelayMicroseconds spins. Sleeping is useless at this scale; the scheduler
// quantum dwarfs the settle times being waited out.
func (r *RPi) DelayMicroseconds(us uint32) {
	end := time.Now().Add(time.Duration(us) * time.Microsecond)
	for time.Now().Before(end) {
	}
}

// DefaultTimer returns a fresh microsecond refresh timer.
func (r *RPi) DefaultTimer() hub75.Timer { return NewTimer() }

// MaxRefreshHz caps refresh at the conventional 250 Hz. Faster refresh only
// burns CPU the panel cannot display.
func (r *RPi) MaxRefreshHz() uint32 { return 250 }
