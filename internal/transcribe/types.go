package transcribe

import (
	"context"
	"errors"
)

// ErrFailed marks every error coming out of a speech model call.
var ErrFailed = errors.New("transcription failed")

// Segment is one timed piece of recognized speech, in seconds.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Model turns a media file into segments in emission order. language is an
// ISO-639-1 hint; empty means detect.
type Model interface {
	Transcribe(ctx context.Context, mediaPath, language string) ([]Segment, error)
}
