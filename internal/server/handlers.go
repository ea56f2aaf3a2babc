package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/zachmartin/fermia-camera/internal/media"
	"github.com/zachmartin/fermia-camera/internal/outfile"
	"github.com/zachmartin/fermia-camera/internal/recorder"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// envelope is the JSON body of every control endpoint.
type envelope struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Filename string `json:"filename,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, envelope{Success: false, Message: msg})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Title      string
		Colormap   bool
		WebRTC     bool
		ICEServers []string
	}{
		Title:      s.opts.Variant.Title,
		Colormap:   s.opts.Variant.Colormap,
		WebRTC:     true,
		ICEServers: s.opts.ICEServers,
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		s.log.Error().Err(err).Msg("render index")
	}
}

// handleTakePhoto writes a copy of the current frame as a JPEG into the
// photos directory.
func (s *Server) handleTakePhoto(w http.ResponseWriter, r *http.Request) {
	f, _, ok := s.opts.Buffer.Snapshot()
	if !ok {
		fail(w, "No camera frame available")
		return
	}

	out, err := outfile.Create(s.opts.PhotosDir, s.opts.Variant.PhotoPrefix, ".jpg", s.now())
	if err != nil {
		s.log.Error().Err(err).Msg("create photo file")
		fail(w, "Failed to save photo: "+err.Error())
		return
	}
	path := out.Name()
	err = media.WriteJPEG(out, f)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		s.log.Error().Err(err).Str("path", path).Msg("write photo")
		fail(w, "Failed to save photo: "+err.Error())
		return
	}

	name := filepath.Base(path)
	s.log.Info().Str("file", name).Msg("photo saved")
	writeJSON(w, http.StatusOK, envelope{
		Success:  true,
		Message:  "Photo saved as " + name,
		Filename: name,
	})
}

func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	name, err := s.opts.Recorder.Start()
	switch {
	case errors.Is(err, recorder.ErrAlreadyRecording):
		fail(w, "Already recording")
	case errors.Is(err, recorder.ErrNoFrame):
		fail(w, "No camera frame available")
	case err != nil:
		s.log.Error().Err(err).Msg("start recording")
		fail(w, "Failed to start recording: "+err.Error())
	default:
		writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Recording started", Filename: name})
	}
}

func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	res, err := s.opts.Recorder.Stop()
	switch {
	case errors.Is(err, recorder.ErrNotRecording):
		fail(w, "Not recording")
	case err != nil:
		s.log.Error().Err(err).Msg("stop recording")
		fail(w, "Failed to stop recording: "+err.Error())
	case !res.Finalized:
		writeJSON(w, http.StatusOK, envelope{
			Success:  true,
			Message:  "Recording stopped; video is still being finalised",
			Filename: res.Filename,
		})
	default:
		writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Recording saved successfully", Filename: res.Filename})
	}
}

type healthReport struct {
	Status         string `json:"status"`
	Variant        string `json:"variant"`
	HasFrame       bool   `json:"has_frame"`
	Generation     uint64 `json:"generation"`
	Recording      bool   `json:"recording"`
	PublisherAlive *bool  `json:"publisher_alive,omitempty"`
	Viewers        int    `json:"webrtc_viewers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	gen := s.opts.Buffer.Generation()
	rep := healthReport{
		Status:     "ok",
		Variant:    s.opts.Variant.Name,
		HasFrame:   gen > 0,
		Generation: gen,
		Recording:  s.opts.Recorder != nil && s.opts.Recorder.Active(),
		Viewers:    s.rtc.Count(),
	}
	if s.opts.Feed != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		alive, err := s.opts.Feed.PublisherAlive(ctx)
		cancel()
		if err != nil {
			rep.Status = "degraded"
		} else {
			rep.PublisherAlive = &alive
		}
	}
	writeJSON(w, http.StatusOK, rep)
}
