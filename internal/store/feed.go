package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/zachmartin/fermia-camera/internal/media"
)

// Keys shared with every publisher and consumer of the feed.
const (
	KeyColor         = "camera_feed"
	KeyDepth         = "depth_feed"
	KeyPublisherLive = "fermia_publisher_running"
	KeyPublisherLock = "fermia_publisher_lock"
)

// Marker lifetimes.
const (
	LivenessTTL = 5 * time.Second
	LockTTL     = 10 * time.Second
)

// Feed exposes the colour and depth channels on top of a Store. Values are
// stored base64 encoded so the entries stay text safe.
type Feed struct {
	store Store
}

// NewFeed wraps s.
func NewFeed(s Store) *Feed {
	return &Feed{store: s}
}

// Store returns the underlying storage port.
func (f *Feed) Store() Store {
	return f.store
}

// PutColor overwrites the colour channel with a compressed image.
func (f *Feed) PutColor(ctx context.Context, jpeg []byte) error {
	return f.put(ctx, KeyColor, jpeg)
}

// PutDepth overwrites the depth channel with a raw sample buffer.
func (f *Feed) PutDepth(ctx context.Context, raw []byte) error {
	return f.put(ctx, KeyDepth, raw)
}

func (f *Feed) put(ctx context.Context, key string, data []byte) error {
	enc := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(enc, data)
	return f.store.Set(ctx, key, enc, 0)
}

// ColorBase64 returns the colour channel exactly as stored.
func (f *Feed) ColorBase64(ctx context.Context) (string, error) {
	v, err := f.store.Get(ctx, KeyColor)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// Color returns the latest compressed colour image.
func (f *Feed) Color(ctx context.Context) ([]byte, error) {
	return f.get(ctx, KeyColor)
}

// Depth returns the latest depth frame reshaped to the stream resolution.
func (f *Feed) Depth(ctx context.Context) (media.DepthFrame, error) {
	raw, err := f.get(ctx, KeyDepth)
	if err != nil {
		return media.DepthFrame{}, err
	}
	return media.DecodeDepth(raw, media.Width, media.Height)
}

func (f *Feed) get(ctx context.Context, key string) ([]byte, error) {
	v, err := f.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, base64.StdEncoding.DecodedLen(len(v)))
	n, err := base64.StdEncoding.Decode(out, v)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return out[:n], nil
}

// Touch refreshes the publisher liveness marker.
func (f *Feed) Touch(ctx context.Context) error {
	return f.store.Set(ctx, KeyPublisherLive, []byte("true"), LivenessTTL)
}

// PublisherAlive reports whether a publisher refreshed its marker within
// LivenessTTL.
func (f *Feed) PublisherAlive(ctx context.Context) (bool, error) {
	_, err := f.store.Get(ctx, KeyPublisherLive)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
