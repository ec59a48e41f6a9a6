package main

import (
	"github.com/mvanier/ledmatrix/internal/display"
)

// Pattern cycle timing, in animation steps (20 per second).
const stepsPerPattern = 100

// drawPattern renders one frame of the rotating test patterns.
func drawPattern(c *display.Canvas, step int) {
	switch (step / stepsPerPattern) % 3 {
	case 0:
		drawGradient(c, step)
	case 1:
		drawCheckerboard(c, step)
	default:
		drawColorBars(c)
	}
}

// drawGradient sweeps a horizontal hue ramp sideways, exercising every
// channel value the tone tables can map.
func drawGradient(c *display.Canvas, step int) {
	b := c.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			phase := (x + step) % b.Dx()
			r := uint8(255 * phase / b.Dx())
			g := uint8(255 * y / b.Dy())
			c.Set565(x, y, display.New565(r, g, 255-r))
		}
	}
}

// drawCheckerboard draws 4x4 cells marching one pixel per step. Cell edges
// make ghosting from a missing row settle delay immediately visible.
func drawCheckerboard(c *display.Canvas, step int) {
	b := c.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if ((x+step)/4+y/4)%2 == 0 {
				c.Set565(x, y, display.New565(255, 255, 255))
			} else {
				c.Set565(x, y, 0)
			}
		}
	}
}

// drawColorBars fills vertical primary and secondary bars at full scale.
func drawColorBars(c *display.Canvas) {
	bars := []display.RGB565{
		display.New565(255, 255, 255),
		display.New565(255, 255, 0),
		display.New565(0, 255, 255),
		display.New565(0, 255, 0),
		display.New565(255, 0, 255),
		display.New565(255, 0, 0),
		display.New565(0, 0, 255),
		display.New565(0, 0, 0),
	}
	b := c.Bounds()
	for x := 0; x < b.Dx(); x++ {
		bar := bars[x*len(bars)/b.Dx()]
		for y := 0; y < b.Dy(); y++ {
			c.Set565(x, y, bar)
		}
	}
}

// drawScroll marches text right to left, one pixel per step, wrapping once
// the whole string has left the panel.
func drawScroll(c *display.Canvas, text string, step int) {
	b := c.Bounds()
	span := display.TextWidth(text) + b.Dx()
	x := b.Dx() - step%span
	baseline := (b.Dy() + display.TextHeight()) / 2

	c.Clear()
	c.DrawText(x, baseline, display.New565(255, 160, 0), text)
}
