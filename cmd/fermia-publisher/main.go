package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/zachmartin/fermia-camera/internal/acquisition"
	"github.com/zachmartin/fermia-camera/internal/config"
	"github.com/zachmartin/fermia-camera/internal/logging"
	"github.com/zachmartin/fermia-camera/internal/publisher"
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
		fmt.Fprintf(os.Stderr, "fermia-publisher: %v\n", err)
		os.Exit(2)
	}

	log := logging.New("fermia-publisher", cfg.LogLevel, cfg.LogFormat)
	log.Info().Str("config", cfg.String()).Msg("publisher starting")

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

	src, stopSource, err := acquisition.Select(cfg.Device, cfg.UseSynthetic, cfg.SyntheticPattern, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open source")
	}
	defer stopSource()

	pub, err := publisher.New(src, store.NewFeed(st), publisher.DefaultOptions(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("create publisher")
	}
	if err := pub.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("publisher stopped")
		os.Exit(1)
	}

	s := pub.Stats()
	log.Info().
		Uint64("frames", s.Frames).
		Uint64("placeholders", s.Placeholders).
		Uint64("device_losses", s.DeviceLosses).
		Msg("publisher stopped")
}
