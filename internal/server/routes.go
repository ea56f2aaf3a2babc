package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"
)

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.Use(hlog.NewHandler(s.log))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(s.recoverPanics)
	r.Use(mux.CORSMethodMiddleware(r))
	r.Use(s.cors)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/video_feed", s.handleVideoFeed).Methods(http.MethodGet)
	r.HandleFunc("/take_photo", s.handleTakePhoto).Methods(http.MethodGet)
	r.HandleFunc("/start_recording", s.handleStartRecording).Methods(http.MethodGet)
	r.HandleFunc("/stop_recording", s.handleStopRecording).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/webrtc/offer", s.rtc.handleOffer).Methods(http.MethodPost, http.MethodOptions)

	return r
}
