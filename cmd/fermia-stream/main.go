package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/zachmartin/fermia-camera/internal/capture"
	"github.com/zachmartin/fermia-camera/internal/config"
	"github.com/zachmartin/fermia-camera/internal/logging"
	"github.com/zachmartin/fermia-camera/internal/recorder"
	"github.com/zachmartin/fermia-camera/internal/server"
	"github.com/zachmartin/fermia-camera/internal/store"
)

func main() {
	flags := config.RegisterFlags(pflag.CommandLine)
	pflag.Parse()

	cfg, err := flags.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fermia-stream: %v\n", err)
		os.Exit(2)
	}

	variant := cfg.VariantSpec()
	log := logging.New("fermia-stream", cfg.LogLevel, cfg.LogFormat).
		With().Str("variant", variant.Name).Logger()
	log.Info().Str("config", cfg.String()).Msg("stream server starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := store.Open(ctx, cfg.StoreBackend, store.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer closeStore()
	feed := store.NewFeed(st)

	mode := cfg.PublisherMode
	if cfg.StoreBackend == "memory" && mode == "spawn" {
		log.Warn().Msg("memory store is process local, running the publisher embedded")
		mode = "embedded"
	}
	sup := newSupervisor(cfg, mode, feed, log)
	go sup.run(ctx)

	var decoder capture.Decoder = capture.ColorDecoder{Feed: feed}
	if variant.Colormap {
		decoder = capture.DepthDecoder{Feed: feed}
	}
	buf := capture.NewBuffer()
	loop := capture.NewLoop(decoder, buf, capture.DefaultIntervals(), log)
	rec := recorder.NewController(buf, recorder.Options{
		Dir:         cfg.VideosDir,
		Prefix:      variant.VideoPrefix,
		FPS:         float64(variant.RecordFPS),
		JoinTimeout: cfg.JoinTimeout,
	}, log)

	srv := server.New(server.Options{
		Variant:        variant,
		Buffer:         buf,
		Capture:        loop,
		Recorder:       rec,
		Feed:           feed,
		PhotosDir:      cfg.PhotosDir,
		StreamFPS:      cfg.StreamFPS,
		AllowedOrigins: cfg.AllowedOrigins,
		ICEServers:     cfg.ICEServers,
		Log:            log,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx, cfg.ListenAddr()) }()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown incomplete")
	}
	sup.wait()
}
