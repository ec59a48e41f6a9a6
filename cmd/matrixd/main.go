// matrixd drives a HUB75 LED matrix from the Raspberry Pi GPIO header. It
// shows built-in test patterns or scrolling text, and optionally serves a
// websocket frame feed for remote frame sources.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mvanier/ledmatrix/internal/config"
	"github.com/mvanier/ledmatrix/internal/display"
	"github.com/mvanier/ledmatrix/internal/feed"
	"github.com/mvanier/ledmatrix/pkg/gpio"
	"github.com/mvanier/ledmatrix/pkg/hub75"
)

func main() {
	configPath := flag.String("config", "", "JSON configuration file; defaults to a 64x32 panel on the bonnet wiring")
	text := flag.String("text", "", "scroll this text instead of the test patterns")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}

	hw, err := gpio.Open()
	if err != nil {
		log.Fatalf("open GPIO: %v", err)
	}
	defer hw.Close()

	core, err := hub75.NewCore(hw, cfg.EngineConfig())
	if err != nil {
		log.Fatalf("configure engine: %v", err)
	}
	if err := core.Begin(); err != nil {
		log.Fatalf("start engine: %v", err)
	}
	defer core.Free()

	m := display.New(core)
	log.Printf("panel %dx%d, %d planes, %d row pairs, %d byte frame buffer",
		cfg.Panel.Width, cfg.Panel.Height, core.Planes(), core.RowPairs(), core.BufferBytes())

	ctx, cancel := context.WithCancel(context.Background())
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Println("shutting down")
		cancel()
	}()

	var frames <-chan feed.Frame
	if cfg.Feed.Listen != "" {
		b := m.Canvas().Bounds()
		srv := feed.NewServer(b.Dx(), b.Dy())
		go func() {
			if err := srv.Run(ctx, cfg.Feed.Listen); err != nil {
				log.Print(err)
			}
		}()
		frames = srv.Frames()
	}

	run(ctx, core, m, frames, *text)
}

// run is the render loop. Remote frames preempt the built-in animation; a
// nil frames channel blocks forever and leaves the animation in charge.
func run(ctx context.Context, core *hub75.Core, m *display.Matrix, frames <-chan feed.Frame, text string) {
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	const reportEvery = 5 * time.Second
	report := time.NewTicker(reportEvery)
	defer report.Stop()

	core.FrameCount() // discard startup counts
	step := 0
	remote := false
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-frames:
			feed.Blit(m.Canvas(), f)
			m.Show()
			remote = true
		case <-report.C:
			log.Printf("refresh %d Hz", core.FrameCount()/uint32(reportEvery/time.Second))
		case <-tick.C:
			if remote {
				// A remote source owns the panel; hold its last frame.
				continue
			}
			if text != "" {
				drawScroll(m.Canvas(), text, step)
			} else {
				drawPattern(m.Canvas(), step)
			}
			m.Show()
			step++
		}
	}
}
