// Package display composes pixels for the refresh engine: an RGB565 canvas
// the rest of the daemon draws on, and the packer that converts it to the
// engine's bit-plane buffer layout.
package display

import (
	"image"
	"image/color"
	"image/draw"
)

// RGB565 is a 16-bit color: 5 bits red, 6 green, 5 blue. The engine's tone
// tables key off exactly these channel widths.
type RGB565 uint16

// New565 packs 8-bit channels into RGB565.
func New565(r, g, b uint8) RGB565 {
	return RGB565(uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3))
}

// RGBA expands the channels back to 16 bits, repeating high bits into the
// low ones so full scale maps to full scale.
func (c RGB565) RGBA() (r, g, b, a uint32) {
	r5 := uint32(c >> 11 & 0x1f)
	g6 := uint32(c >> 5 & 0x3f)
	b5 := uint32(c & 0x1f)
	r = (r5<<3 | r5>>2) * 0x101
	g = (g6<<2 | g6>>4) * 0x101
	b = (b5<<3 | b5>>2) * 0x101
	return r, g, b, 0xffff
}

func to565(c color.Color) color.Color {
	if c, ok := c.(RGB565); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	return RGB565(uint16(r>>11)<<11 | uint16(g>>10)<<5 | uint16(b>>11))
}

// Model565 converts colors to RGB565.
var Model565 = color.ModelFunc(to565)

// Canvas is an RGB565 frame the daemon draws on. It implements draw.Image,
// so the standard library and the SVG rasterizer can target it directly.
type Canvas struct {
	Pix    []RGB565
	Stride int
	Rect   image.Rectangle
}

var _ draw.Image = (*Canvas)(nil)

// NewCanvas returns a black canvas of the given size.
func NewCanvas(w, h int) *Canvas {
	return &Canvas{
		Pix:    make([]RGB565, w*h),
		Stride: w,
		Rect:   image.Rect(0, 0, w, h),
	}
}

func (c *Canvas) ColorModel() color.Model { return Model565 }
func (c *Canvas) Bounds() image.Rectangle { return c.Rect }

func (c *Canvas) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(c.Rect)) {
		return RGB565(0)
	}
	return c.Pix[(y-c.Rect.Min.Y)*c.Stride+(x-c.Rect.Min.X)]
}

func (c *Canvas) Set(x, y int, col color.Color) {
	if !(image.Point{x, y}.In(c.Rect)) {
		return
	}
	c.Pix[(y-c.Rect.Min.Y)*c.Stride+(x-c.Rect.Min.X)] = Model565.Convert(col).(RGB565)
}

// Set565 stores a pre-packed pixel without a color model round trip.
func (c *Canvas) Set565(x, y int, v RGB565) {
	if !(image.Point{x, y}.In(c.Rect)) {
		return
	}
	c.Pix[(y-c.Rect.Min.Y)*c.Stride+(x-c.Rect.Min.X)] = v
}

// Fill floods the canvas with one color.
func (c *Canvas) Fill(v RGB565) {
	for i := range c.Pix {
		c.Pix[i] = v
	}
}

// Clear blanks the canvas.
func (c *Canvas) Clear() { c.Fill(0) }
