package capture

import (
	"context"

	"github.com/zachmartin/fermia-camera/internal/media"
	"github.com/zachmartin/fermia-camera/internal/store"
)

// Decoder pulls the latest encoding of one channel and turns it into a
// displayable frame. It returns store.ErrNotFound while nothing is published.
type Decoder interface {
	Decode(ctx context.Context) (media.Frame, error)
}

// ColorDecoder reads the compressed colour channel.
type ColorDecoder struct {
	Feed *store.Feed
}

func (d ColorDecoder) Decode(ctx context.Context) (media.Frame, error) {
	data, err := d.Feed.Color(ctx)
	if err != nil {
		return media.Frame{}, err
	}
	return media.DecodeJPEG(data, media.Width, media.Height)
}

// DepthDecoder reads the raw depth channel and maps it through the colour
// ramp for display.
type DepthDecoder struct {
	Feed *store.Feed
}

func (d DepthDecoder) Decode(ctx context.Context) (media.Frame, error) {
	depth, err := d.Feed.Depth(ctx)
	if err != nil {
		return media.Frame{}, err
	}
	return media.Colorize(depth), nil
}
