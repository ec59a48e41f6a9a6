// svgcard rasterizes an SVG to panel resolution and pushes it to a running
// matrixd over the websocket frame feed. Handy for status cards and logos
// authored as vector art.
//
//	svgcard -addr ws://pi:8080/frames -width 64 -height 32 logo.svg
package main

import (
	"flag"
	"image"
	"image/png"
	"log"
	"os"

	"github.com/gorilla/websocket"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/mvanier/ledmatrix/internal/display"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/frames", "matrixd frame feed URL")
	width := flag.Int("width", 64, "panel width in pixels")
	height := flag.Int("height", 32, "panel height in pixels")
	out := flag.String("out", "", "also write the rendered frame to this PNG file")
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatal("usage: svgcard [flags] file.svg")
	}

	img, err := render(flag.Arg(0), *width, *height)
	if err != nil {
		log.Fatalf("render %s: %v", flag.Arg(0), err)
	}

	if *out != "" {
		if err := writePNG(*out, img); err != nil {
			log.Fatalf("write %s: %v", *out, err)
		}
	}

	if err := send(*addr, img); err != nil {
		log.Fatalf("send to %s: %v", *addr, err)
	}
	log.Printf("frame sent to %s", *addr)
}

// render rasterizes the SVG scaled to w x h.
func render(path string, w, h int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIcon(path, oksvg.WarnErrorMode)
	if err != nil {
		return nil, err
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)
	return img, nil
}

// send packs the image as little-endian RGB565 and writes it as one binary
// websocket message, the feed's frame format.
func send(addr string, img *image.RGBA) error {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.WriteMessage(websocket.BinaryMessage, packFrame(img))
}

func packFrame(img *image.RGBA) []byte {
	b := img.Bounds()
	data := make([]byte, 0, b.Dx()*b.Dy()*2)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p := img.RGBAAt(x, y)
			v := display.New565(p.R, p.G, p.B)
			data = append(data, byte(v), byte(v>>8))
		}
	}
	return data
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
