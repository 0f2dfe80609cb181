package media

import (
	"context"
	"errors"
	"time"
)

var ErrNotWAV = errors.New("not a valid wav file")

// AudioExtractor converts any media container into a speech-ready WAV file.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, input, output string) error
}

// Info is what Probe learns about a WAV file.
type Info struct {
	Duration   time.Duration `json:"duration"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	BitDepth   int           `json:"bit_depth"`
}
