package main

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/zachmartin/fermia-camera/internal/acquisition"
	"github.com/zachmartin/fermia-camera/internal/config"
	"github.com/zachmartin/fermia-camera/internal/publisher"
	"github.com/zachmartin/fermia-camera/internal/store"
)

// supervisor makes sure some process on the host is publishing. It checks at
// startup and then once per liveness period, and only the instance that wins
// the store lock starts a publisher.
type supervisor struct {
	cfg  *config.Config
	mode string
	feed *store.Feed
	log  zerolog.Logger

	wg sync.WaitGroup
}

func newSupervisor(cfg *config.Config, mode string, feed *store.Feed, log zerolog.Logger) *supervisor {
	return &supervisor{
		cfg:  cfg,
		mode: mode,
		feed: feed,
		log:  log.With().Str("component", "supervisor").Str("mode", mode).Logger(),
	}
}

func (s *supervisor) run(ctx context.Context) {
	if s.mode == "off" {
		return
	}
	ticker := time.NewTicker(store.LivenessTTL)
	defer ticker.Stop()
	for {
		spawned, err := store.EnsurePublisher(ctx, s.feed, s.spawn)
		switch {
		case err != nil && ctx.Err() == nil:
			s.log.Warn().Err(err).Msg("publisher check failed")
		case spawned:
			s.log.Info().Msg("publisher started")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *supervisor) spawn(ctx context.Context) error {
	if s.mode == "embedded" {
		return s.embed(ctx)
	}
	// The child runs in its own process group so a terminal interrupt aimed
	// at this server does not reach it; it keeps serving other variants.
	cmd := exec.Command(s.cfg.PublisherCommand)
	cmd.Env = append(os.Environ(), s.cfg.Environ()...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}
	s.log.Info().Int("pid", cmd.Process.Pid).Str("command", s.cfg.PublisherCommand).Msg("publisher process spawned")
	go cmd.Wait()
	return nil
}

func (s *supervisor) embed(ctx context.Context) error {
	src, stopSource, err := acquisition.Select(s.cfg.Device, s.cfg.UseSynthetic, s.cfg.SyntheticPattern, s.log)
	if err != nil {
		return err
	}
	pub, err := publisher.New(src, s.feed, publisher.DefaultOptions(), s.log)
	if err != nil {
		stopSource()
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer stopSource()
		if err := pub.Run(ctx); err != nil && ctx.Err() == nil {
			s.log.Error().Err(err).Msg("embedded publisher stopped")
		}
	}()
	return nil
}

// wait blocks until an embedded publisher has returned.
func (s *supervisor) wait() {
	s.wg.Wait()
}
