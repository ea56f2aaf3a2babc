// Package publisher owns the acquisition source and keeps the shared store
// holding the newest colour and depth encodings.
package publisher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/zachmartin/fermia-camera/internal/acquisition"
	"github.com/zachmartin/fermia-camera/internal/media"
	"github.com/zachmartin/fermia-camera/internal/store"
)

// Options tunes the acquisition loop.
type Options struct {
	// PlaceholderInterval is the discovery cadence while no device is present.
	PlaceholderInterval time.Duration

	// FrameTimeout bounds each wait for a paired frame; exceeding it counts
	// as device loss.
	FrameTimeout time.Duration

	// RetryDelay is the first backoff after a device loss, doubling up to
	// MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration

	Request acquisition.Request
}

// DefaultOptions returns the production cadence.
func DefaultOptions() Options {
	return Options{
		PlaceholderInterval: 2 * time.Second,
		FrameTimeout:        5 * time.Second,
		RetryDelay:          1 * time.Second,
		MaxRetryDelay:       30 * time.Second,
		Request:             acquisition.DefaultRequest(),
	}
}

// Stats are cumulative counters since the publisher was created.
type Stats struct {
	Frames       uint64
	Placeholders uint64
	DeviceLosses uint64
}

// Publisher runs the acquire → encode → overwrite loop.
type Publisher struct {
	source acquisition.Source
	feed   *store.Feed
	opts   Options
	log    zerolog.Logger

	placeholder encodedPair

	frames       atomic.Uint64
	placeholders atomic.Uint64
	losses       atomic.Uint64
}

type encodedPair struct {
	color []byte
	depth []byte
}

// New creates a publisher. The placeholder encoding is computed once here.
func New(source acquisition.Source, feed *store.Feed, opts Options, log zerolog.Logger) (*Publisher, error) {
	p := &Publisher{
		source: source,
		feed:   feed,
		opts:   opts,
		log:    log.With().Str("component", "publisher").Logger(),
	}
	enc, err := encode(media.Placeholder())
	if err != nil {
		return nil, err
	}
	p.placeholder = enc
	return p, nil
}

// Stats returns a snapshot of the counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		Frames:       p.frames.Load(),
		Placeholders: p.placeholders.Load(),
		DeviceLosses: p.losses.Load(),
	}
}

// Run loops until ctx is cancelled. A missing or failing device never ends
// the loop; it only switches the feed to the placeholder.
func (p *Publisher) Run(ctx context.Context) error {
	p.log.Info().Msg("publisher started")
	attempt := 0

	for {
		if ctx.Err() != nil {
			p.log.Info().Msg("publisher stopped")
			return nil
		}

		n, err := p.source.Discover(ctx)
		if err != nil {
			p.log.Warn().Err(err).Msg("device discovery failed")
		}
		if err != nil || n == 0 {
			p.log.Debug().Msg("no camera detected, publishing placeholder")
			p.publishPlaceholder(ctx)
			sleep(ctx, p.opts.PlaceholderInterval)
			continue
		}

		p.log.Info().Int("devices", n).Msg("camera detected, starting session")
		delivered, err := p.stream(ctx)
		if ctx.Err() != nil {
			continue
		}

		if delivered {
			attempt = 0
		}
		attempt++
		p.losses.Add(1)
		delay := backoff(attempt, p.opts.RetryDelay, p.opts.MaxRetryDelay)
		p.log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("device lost, falling back to placeholder")
		p.holdPlaceholder(ctx, delay)
	}
}

// holdPlaceholder keeps the placeholder and the liveness marker fresh for d.
func (p *Publisher) holdPlaceholder(ctx context.Context, d time.Duration) {
	deadline := time.Now().Add(d)
	for {
		p.publishPlaceholder(ctx)
		wait := min(time.Until(deadline), p.opts.PlaceholderInterval)
		if wait <= 0 {
			return
		}
		sleep(ctx, wait)
		if ctx.Err() != nil {
			return
		}
	}
}

// stream runs one device session until it fails. It reports whether at least
// one frame was published.
func (p *Publisher) stream(ctx context.Context) (bool, error) {
	sess, err := p.source.Open(ctx, p.opts.Request)
	if err != nil {
		return false, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			p.log.Warn().Err(cerr).Msg("session close failed")
		}
	}()

	delivered := false
	for {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		p.touch(ctx)

		pair, err := sess.Next(ctx, p.opts.FrameTimeout)
		if err != nil {
			return delivered, err
		}
		if pair.Color.Empty() {
			continue
		}

		enc, err := encode(pair)
		if err != nil {
			p.log.Warn().Err(err).Msg("frame encode failed")
			continue
		}
		p.write(ctx, enc)
		p.frames.Add(1)
		delivered = true
	}
}

func (p *Publisher) publishPlaceholder(ctx context.Context) {
	p.touch(ctx)
	p.write(ctx, p.placeholder)
	p.placeholders.Add(1)
}

func (p *Publisher) touch(ctx context.Context) {
	if err := p.feed.Touch(ctx); err != nil && ctx.Err() == nil {
		p.log.Warn().Err(err).Msg("liveness refresh failed")
	}
}

// write overwrites both channels. Failures are dropped: the next cycle
// carries a newer frame anyway.
func (p *Publisher) write(ctx context.Context, enc encodedPair) {
	if err := p.feed.PutColor(ctx, enc.color); err != nil && ctx.Err() == nil {
		p.log.Warn().Err(err).Msg("colour publish failed")
	}
	if err := p.feed.PutDepth(ctx, enc.depth); err != nil && ctx.Err() == nil {
		p.log.Warn().Err(err).Msg("depth publish failed")
	}
}

func encode(pair media.FramePair) (encodedPair, error) {
	color, err := media.EncodeJPEG(pair.Color)
	if err != nil {
		return encodedPair{}, err
	}
	return encodedPair{color: color, depth: media.EncodeDepth(pair.Depth)}, nil
}

// backoff returns base * 2^(attempt-1), capped at max.
func backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
