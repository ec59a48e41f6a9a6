package display

import (
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// face is the daemon's text face. 7x13 is the largest face that still fits
// two lines on a 32-row panel.
var face = basicfont.Face7x13

// DrawText renders s with its baseline starting at (x, y) and returns the x
// coordinate after the last glyph, for chaining colored segments.
func (c *Canvas) DrawText(x, y int, col RGB565, s string) int {
	d := &font.Drawer{
		Dst:  c,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
	return d.Dot.X.Ceil()
}

// TextWidth measures s in pixels.
func TextWidth(s string) int {
	return font.MeasureString(face, s).Ceil()
}

// TextHeight returns the face's line height in pixels.
func TextHeight() int {
	return face.Metrics().Height.Ceil()
}

// DrawImage copies src onto the canvas with its top-left corner at pt,
// converting through the RGB565 color model.
func (c *Canvas) DrawImage(pt image.Point, src image.Image) {
	b := src.Bounds()
	draw.Draw(c, image.Rectangle{Min: pt, Max: pt.Add(b.Size())}, src, b.Min, draw.Src)
}
