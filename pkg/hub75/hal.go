package hub75

// Pin is a logical GPIO pin number, interpreted by the HAL's pin map.
type Pin uint8

// Port is a 32-bit GPIO output bank with atomic bit set and clear. Two pins
// are on the same port exactly when ResolvePin returns identical Port values,
// so implementations must hand out one comparable value per hardware bank.
type Port interface {
	// SetBits drives the masked bits high without disturbing the others.
	SetBits(mask uint32)
	// ClearBits drives the masked bits low without disturbing the others.
	ClearBits(mask uint32)
}

// TogglePort is a Port with an atomic bit-toggle register. When the data and
// clock pins resolve to a TogglePort the engine stores frame data in toggle
// form, which halves the port writes per element in the blast loop.
type TogglePort interface {
	Port
	// ToggleBits inverts the masked bits.
	ToggleBits(mask uint32)
}

// PinInfo locates a logical pin on its port.
type PinInfo struct {
	Port Port
	Bit  uint32 // single-bit mask within the 32-bit port word
}

// Timer is the periodic timer that drives the refresh handler. Periods and
// elapsed counts are in ticks of Frequency(). Start arms a single expiry;
// the handler re-arms on every pass, so stopping the engine stops the chain.
type Timer interface {
	// Init registers the expiry handler. Called once, before Start.
	Init(handler func())
	// Start arms the timer to fire once after period ticks.
	Start(period uint32)
	// Stop disarms the timer and reports ticks elapsed since the last Start.
	Stop() (elapsed uint32)
	// Frequency reports the tick rate in Hz.
	Frequency() uint32
	// MinPeriod reports the shortest period the timer can meaningfully honor.
	MinPeriod() uint32
}

// HAL provides the pin-level hardware access the engine needs outside the
// blast loop: resolution of logical pins onto ports, slow-path pin control
// for setup and teardown, and timing services.
type HAL interface {
	// ResolvePin maps a logical pin to its port and bit position.
	ResolvePin(p Pin) (PinInfo, error)
	// PinOutput configures the pin as a digital output.
	PinOutput(p Pin)
	// PinHigh and PinLow drive the pin directly. Setup/teardown only; the
	// refresh path goes through Port writes.
	PinHigh(p Pin)
	PinLow(p Pin)
	// DelayMicroseconds busy-waits. Used for row address settle time.
	DelayMicroseconds(us uint32)
	// DefaultTimer returns the platform's default refresh timer, or nil if
	// the platform has none and the caller must supply one.
	DefaultTimer() Timer
	// MaxRefreshHz is the refresh-rate throttle used to derive the minimum
	// bit-plane-zero period. Rates beyond roughly 250 Hz only burn CPU.
	MaxRefreshHz() uint32
}

// Allocator reserves the engine's frame buffer memory. Implementations must
// return memory aligned for the widest port access (4 bytes). A nil
// Allocator in Config falls back to make().
type Allocator interface {
	Alloc(n int) ([]byte, error)
	Free(b []byte)
}

// linePin is a control line resolved to its set/clear target. Immutable
// after layout planning.
type linePin struct {
	num  Pin
	port Port
	bit  uint32
}

func (p linePin) set()   { p.port.SetBits(p.bit) }
func (p linePin) clear() { p.port.ClearBits(p.bit) }
