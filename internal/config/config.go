// Package config holds the daemon's JSON configuration: panel geometry,
// header wiring and the optional network frame feed.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mvanier/ledmatrix/pkg/hub75"
)

// Panel describes the attached chain.
type Panel struct {
	// Width and Height are the combined pixel dimensions of the chain.
	Width  int `json:"width"`
	Height int `json:"height"`
	// BitDepth selects the bit-plane count; 10 gives gamma-corrected
	// color, 6 matches RGB565 exactly.
	BitDepth int `json:"bit_depth"`
	// DoubleBuffer trades memory for tear-free animation.
	DoubleBuffer bool `json:"double_buffer"`
}

// Pins maps panel signals to header GPIO numbers.
type Pins struct {
	RGB   []int `json:"rgb"`  // R1,G1,B1,R2,G2,B2 per parallel chain
	Addr  []int `json:"addr"` // A,B,C,D,E as far as the panel needs
	Clock int   `json:"clock"`
	Latch int   `json:"latch"`
	OE    int   `json:"oe"`
}

// Feed configures the websocket frame feed. An empty Listen disables it.
type Feed struct {
	Listen string `json:"listen"`
}

// Config is the daemon configuration file.
type Config struct {
	Panel Panel `json:"panel"`
	Pins  Pins  `json:"pins"`
	Feed  Feed  `json:"feed"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration for a single 64x32 panel on the
// Adafruit RGB Matrix Bonnet wiring.
func Default() *Config {
	return &Config{
		Panel: Panel{
			Width:        64,
			Height:       32,
			BitDepth:     10,
			DoubleBuffer: true,
		},
		Pins: Pins{
			RGB:   []int{5, 13, 6, 12, 16, 23},
			Addr:  []int{22, 26, 27, 20, 24},
			Clock: 17,
			Latch: 21,
			OE:    4,
		},
	}
}

func (c *Config) validate() error {
	if c.Panel.Width <= 0 || c.Panel.Height <= 0 {
		return fmt.Errorf("panel %dx%d: dimensions must be positive", c.Panel.Width, c.Panel.Height)
	}
	if len(c.Pins.RGB) == 0 || len(c.Pins.RGB)%6 != 0 {
		return fmt.Errorf("%d RGB pins: want a multiple of 6", len(c.Pins.RGB))
	}
	// One scan pass covers two rows per row pair, per parallel chain.
	rows := 2 * (1 << len(c.AddressLines())) * (len(c.Pins.RGB) / 6)
	if rows != c.Panel.Height {
		return fmt.Errorf("height %d needs more address lines or chains than the %d/%d wired",
			c.Panel.Height, len(c.Pins.Addr), len(c.Pins.RGB)/6)
	}
	return nil
}

// AddressLines trims the address pin list to what the configured height
// actually needs, so a five-line wiring drives a 16-scan panel correctly.
func (c *Config) AddressLines() []int {
	parallel := len(c.Pins.RGB) / 6
	perChain := c.Panel.Height / parallel
	lines := 0
	for 2<<lines < perChain {
		lines++
	}
	if lines > len(c.Pins.Addr) {
		lines = len(c.Pins.Addr)
	}
	return c.Pins.Addr[:lines]
}

// EngineConfig assembles the hub75 engine configuration.
func (c *Config) EngineConfig() hub75.Config {
	cfg := hub75.Config{
		Width:        c.Panel.Width,
		BitDepth:     c.Panel.BitDepth,
		Clock:        hub75.Pin(c.Pins.Clock),
		Latch:        hub75.Pin(c.Pins.Latch),
		OE:           hub75.Pin(c.Pins.OE),
		DoubleBuffer: c.Panel.DoubleBuffer,
	}
	for _, p := range c.Pins.RGB {
		cfg.RGBPins = append(cfg.RGBPins, hub75.Pin(p))
	}
	for _, p := range c.AddressLines() {
		cfg.AddrPins = append(cfg.AddrPins, hub75.Pin(p))
	}
	return cfg
}
