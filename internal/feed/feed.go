// Package feed serves the network frame feed: a websocket endpoint that
// accepts raw RGB565 frames and hands them to the render loop. It lets
// anything that can open a websocket, a script or another machine, drive
// the panel without knowing about scan geometry.
package feed

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mvanier/ledmatrix/internal/display"
)

// Frame is one received frame in row-major order, top-left first.
type Frame []display.RGB565

// Server receives frames over websocket. One frame is width*height RGB565
// pixels, little endian, sent as a single binary message. Undersized or
// oversized messages close the connection.
type Server struct {
	width  int
	height int
	frames chan Frame

	upgrader websocket.Upgrader
}

// NewServer returns a feed for the given panel size.
func NewServer(width, height int) *Server {
	return &Server{
		width:  width,
		height: height,
		frames: make(chan Frame, 1),
		upgrader: websocket.Upgrader{
			// The feed is an on-LAN control channel, not a browser API.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Frames returns the received-frame channel. When the render loop falls
// behind, stale frames are replaced rather than queued, so a reader always
// gets the most recent frame.
func (s *Server) Frames() <-chan Frame { return s.frames }

func (s *Server) frameBytes() int { return s.width * s.height * 2 }

// ServeHTTP upgrades the connection and pumps frames until the peer hangs
// up or misbehaves.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("feed: upgrade from %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(int64(s.frameBytes()) + 64)
	log.Printf("feed: client %s connected", r.RemoteAddr)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("feed: client %s: %v", r.RemoteAddr, err)
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		if len(data) != s.frameBytes() {
			msg := fmt.Sprintf("frame is %d bytes, want %d", len(data), s.frameBytes())
			deadline := time.Now().Add(time.Second)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg), deadline)
			log.Printf("feed: client %s: %s", r.RemoteAddr, msg)
			return
		}
		s.push(decode(data))
	}
}

// push replaces any undelivered frame with the new one.
func (s *Server) push(f Frame) {
	for {
		select {
		case s.frames <- f:
			return
		default:
			select {
			case <-s.frames:
			default:
			}
		}
	}
}

func decode(data []byte) Frame {
	f := make(Frame, len(data)/2)
	for i := range f {
		f[i] = display.RGB565(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
	}
	return f
}

// Run serves the feed on addr until ctx is canceled.
func (s *Server) Run(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/frames", s)

	srv := &http.Server{Addr: addr, Handler: mux}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Printf("feed: listening on %s", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errc:
		return fmt.Errorf("feed: %w", err)
	}
}

// Blit copies a frame onto a canvas of the same dimensions.
func Blit(c *display.Canvas, f Frame) {
	copy(c.Pix, f)
}
