package server

import (
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"sync"
	"time"

	"github.com/zachmartin/fermia-camera/internal/capture"
	"github.com/zachmartin/fermia-camera/internal/media"
)

const streamBoundary = "frame"

// jpegCache encodes each buffer generation at most once, however many
// viewers are attached. Returned slices are never mutated.
type jpegCache struct {
	buf *capture.Buffer

	mu   sync.Mutex
	gen  uint64
	data []byte
}

func newJPEGCache(buf *capture.Buffer) *jpegCache {
	return &jpegCache{buf: buf}
}

// latest returns the JPEG of the newest frame and its generation. ok is false
// until the capture task has stored a frame.
func (c *jpegCache) latest() (data []byte, gen uint64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if g := c.buf.Generation(); g == 0 {
		return nil, 0, false
	} else if g == c.gen && c.data != nil {
		return c.data, c.gen, true
	}

	f, g, ok := c.buf.Snapshot()
	if !ok {
		return nil, 0, false
	}
	data, err := media.EncodeJPEG(f)
	if err != nil {
		return nil, 0, false
	}
	c.gen, c.data = g, data
	return data, g, true
}

// handleVideoFeed writes an endless multipart/x-mixed-replace stream, one
// JPEG part per tick. Ticks with no frame yet emit nothing. The stream ends
// when the client goes away or the server shuts down.
func (s *Server) handleVideoFeed(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(streamBoundary); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Connection", "close")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log := s.log.With().Str("remote", r.RemoteAddr).Logger()
	log.Debug().Msg("viewer attached")
	defer log.Debug().Msg("viewer detached")

	ticker := time.NewTicker(s.frameInterval())
	defer ticker.Stop()

	for {
		if data, _, ok := s.frames.latest(); ok {
			part, err := mw.CreatePart(textproto.MIMEHeader{
				"Content-Type":   {"image/jpeg"},
				"Content-Length": {strconv.Itoa(len(data))},
			})
			if err != nil {
				return
			}
			if _, err := part.Write(data); err != nil {
				return
			}
			flusher.Flush()
		}

		select {
		case <-r.Context().Done():
			return
		case <-s.closing:
			return
		case <-ticker.C:
		}
	}
}
