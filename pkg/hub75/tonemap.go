package hub75

import "math"

// gammaExp is the exponent applied when the plane count exceeds RGB565 color
// fidelity. It trades linear input mapping for perceptually linear
// brightness steps.
const gammaExp = 2.6

// buildToneTables fills the remap tables converting RGB565 channel values
// (5-bit red/blue, 6-bit green) to bit-plane patterns.
//
// Below 6 planes the channels are decimated with a right shift. At exactly
// 6, green passes through unchanged and the 5-bit channels are widened by
// copying the MSB into the new LSB, so full scale maps to full scale. Above
// 6, a power curve spreads the input over the wider plane range.
func (c *Core) buildToneTables() {
	switch {
	case c.planes < 6:
		shift := 5 - c.planes
		for i := 0; i < 32; i++ {
			c.remapRB[i] = uint16(i >> shift)
		}
		shift = 6 - c.planes
		for i := 0; i < 64; i++ {
			c.remapG[i] = uint16(i >> shift)
		}
	case c.planes == 6:
		for i := 0; i < 32; i++ {
			c.remapRB[i] = uint16(i<<1 | i>>4)
		}
		for i := 0; i < 64; i++ {
			c.remapG[i] = uint16(i)
		}
	default:
		top := float64(int(1)<<c.planes - 1)
		for i := 0; i < 32; i++ {
			c.remapRB[i] = uint16(math.Pow(float64(i)/31, gammaExp)*top + 0.5)
		}
		for i := 0; i < 64; i++ {
			c.remapG[i] = uint16(math.Pow(float64(i)/63, gammaExp)*top + 0.5)
		}
	}
}
