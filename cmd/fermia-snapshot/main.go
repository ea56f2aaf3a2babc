// Command fermia-snapshot reads the current colour frame straight from the
// shared store, for tools that analyse a single image.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/zachmartin/fermia-camera/internal/config"
	"github.com/zachmartin/fermia-camera/internal/logging"
	"github.com/zachmartin/fermia-camera/internal/store"
)

func main() {
	out := pflag.StringP("out", "o", "", "write the JPEG to this file instead of printing base64")
	timeout := pflag.Duration("timeout", 5*time.Second, "store timeout")
	flags := config.RegisterFlags(pflag.CommandLine)
	pflag.Parse()

	cfg, err := flags.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fermia-snapshot: %v\n", err)
		os.Exit(2)
	}
	log := logging.New("fermia-snapshot", cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

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

	if err := snapshot(ctx, feed, *out); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Error().Msg("no camera frame available")
		} else {
			log.Error().Err(err).Msg("snapshot failed")
		}
		closeStore()
		os.Exit(1)
	}
}

func snapshot(ctx context.Context, feed *store.Feed, out string) error {
	if out == "" {
		b64, err := feed.ColorBase64(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Println(b64)
		return err
	}
	jpg, err := feed.Color(ctx)
	if err != nil {
		return err
	}
	return os.WriteFile(out, jpg, 0o644)
}
