package acquisition

import (
	"strings"

	"github.com/rs/zerolog"
)

// Select builds the Source named by the device settings. The returned stop
// function releases anything the source started and is never nil.
func Select(device string, synthetic bool, pattern int, log zerolog.Logger) (Source, func() error, error) {
	switch {
	case synthetic:
		log.Info().Str("pattern", Pattern(pattern).String()).Msg("using synthetic source")
		return &Synthetic{Pattern: Pattern(pattern)}, func() error { return nil }, nil
	case strings.HasPrefix(device, "unix:"):
		s := NewSocket(strings.TrimPrefix(device, "unix:"), log)
		if err := s.Start(); err != nil {
			return nil, nil, err
		}
		return s, s.Stop, nil
	default:
		log.Info().Str("device", device).Msg("using capture device")
		return NewWebcam(device, log), func() error { return nil }, nil
	}
}
