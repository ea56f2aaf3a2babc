package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

const (
	// chunkPayload is the largest JPEG slice carried by one data channel
	// message. Each message is prefixed by one flag byte.
	chunkPayload = 16 * 1024

	chunkMore byte = 0
	chunkLast byte = 1

	// maxBuffered is the outbound backlog above which a viewer skips frames.
	maxBuffered = 1 << 20

	iceGatherTimeout = 5 * time.Second
)

// chunkFrame splits a JPEG into flag-prefixed data channel messages. The
// final message carries chunkLast.
func chunkFrame(data []byte, size int) [][]byte {
	if size <= 0 {
		size = chunkPayload
	}
	var out [][]byte
	for off := 0; ; off += size {
		end := min(off+size, len(data))
		flag := chunkMore
		if end == len(data) {
			flag = chunkLast
		}
		msg := make([]byte, 0, 1+end-off)
		msg = append(msg, flag)
		msg = append(msg, data[off:end]...)
		out = append(out, msg)
		if flag == chunkLast {
			break
		}
	}
	return out
}

// rtcHub answers browser offers and pushes frames to each peer over the data
// channel the browser opens.
type rtcHub struct {
	frames   *jpegCache
	interval time.Duration
	config   webrtc.Configuration
	closing  <-chan struct{}
	log      zerolog.Logger

	mu    sync.Mutex
	peers map[string]*webrtc.PeerConnection
}

func newRTCHub(frames *jpegCache, interval time.Duration, iceURLs []string, closing <-chan struct{}, log zerolog.Logger) *rtcHub {
	cfg := webrtc.Configuration{}
	if len(iceURLs) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: iceURLs}}
	}
	return &rtcHub{
		frames:   frames,
		interval: interval,
		config:   cfg,
		closing:  closing,
		log:      log.With().Str("component", "webrtc").Logger(),
		peers:    make(map[string]*webrtc.PeerConnection),
	}
}

// Count returns the number of tracked peers.
func (h *rtcHub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *rtcHub) handleOffer(w http.ResponseWriter, r *http.Request) {
	var offer webrtc.SessionDescription
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&offer); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "invalid offer: " + err.Error()})
		return
	}
	if offer.Type != webrtc.SDPTypeOffer || offer.SDP == "" {
		writeJSON(w, http.StatusBadRequest, envelope{Message: "invalid offer: expected type offer with sdp"})
		return
	}

	answer, err := h.answer(r, offer)
	if err != nil {
		h.log.Warn().Err(err).Msg("offer rejected")
		writeJSON(w, http.StatusBadRequest, envelope{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (h *rtcHub) answer(r *http.Request, offer webrtc.SessionDescription) (desc *webrtc.SessionDescription, err error) {
	pc, err := webrtc.NewPeerConnection(h.config)
	if err != nil {
		return nil, fmt.Errorf("creating peer connection: %w", err)
	}

	id := uuid.NewString()
	log := h.log.With().Str("peer", id).Logger()

	h.mu.Lock()
	h.peers[id] = pc
	h.mu.Unlock()
	defer func() {
		if err != nil {
			h.remove(id)
			pc.Close()
		}
	}()

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		dc.OnOpen(func() {
			log.Info().Str("label", dc.Label()).Msg("viewer channel open")
			go h.pump(dc, log)
		})
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateClosed:
			h.remove(id)
			if state != webrtc.PeerConnectionStateClosed {
				pc.Close()
			}
		}
		log.Debug().Str("state", state.String()).Msg("peer state")
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("setting remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("creating answer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("setting local description: %w", err)
	}

	select {
	case <-gatherComplete:
	case <-time.After(iceGatherTimeout):
		return nil, fmt.Errorf("ICE gathering timed out after %s", iceGatherTimeout)
	case <-r.Context().Done():
		return nil, r.Context().Err()
	}
	return pc.LocalDescription(), nil
}

// pump sends each new frame generation to dc until it closes or the server
// shuts down. Frames are skipped while the channel backlog is high.
func (h *rtcHub) pump(dc *webrtc.DataChannel, log zerolog.Logger) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-h.closing:
			return
		case <-ticker.C:
		}
		if dc.ReadyState() != webrtc.DataChannelStateOpen {
			return
		}
		data, gen, ok := h.frames.latest()
		if !ok || gen == last {
			continue
		}
		if dc.BufferedAmount() > maxBuffered {
			continue
		}
		for _, msg := range chunkFrame(data, chunkPayload) {
			if err := dc.Send(msg); err != nil {
				log.Debug().Err(err).Msg("viewer send failed")
				return
			}
		}
		last = gen
	}
}

func (h *rtcHub) remove(id string) {
	h.mu.Lock()
	delete(h.peers, id)
	h.mu.Unlock()
}

// Close tears down every peer connection.
func (h *rtcHub) Close() {
	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[string]*webrtc.PeerConnection)
	h.mu.Unlock()

	for id, pc := range peers {
		if err := pc.Close(); err != nil {
			h.log.Warn().Err(err).Str("peer", id).Msg("close peer")
		}
	}
}
