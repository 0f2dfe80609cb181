package subtitle

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrUnsupportedFormat is returned for any output format other than srt, vtt or ass.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Format is a subtitle container format.
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
	FormatASS Format = "ass"
)

// ParseFormat normalizes a format name such as "SRT" or ".vtt".
func ParseFormat(name string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "."))
	switch f {
	case FormatSRT, FormatVTT, FormatASS:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// Ext returns the file extension for the format, without the dot.
func (f Format) Ext() string {
	return string(f)
}

// ContentType returns the download media type for a file extension.
// Unknown extensions are served as opaque binary.
func ContentType(ext string) string {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "srt":
		return "application/x-subrip"
	case "vtt":
		return "text/vtt"
	case "ass":
		return "text/x-ssa"
	default:
		return "application/octet-stream"
	}
}

// Caption is one timed subtitle entry. Start and End are in seconds.
type Caption struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func (c Caption) StartTime() time.Duration {
	return secondsToDuration(c.Start)
}

func (c Caption) EndTime() time.Duration {
	return secondsToDuration(c.End)
}

// Validate checks the timing invariants of a single caption.
func (c Caption) Validate() error {
	if c.Index < 1 {
		return fmt.Errorf("caption index must be positive, got %d", c.Index)
	}
	if c.Start < 0 {
		return fmt.Errorf("caption %d: start must not be negative", c.Index)
	}
	if c.End < c.Start {
		return fmt.Errorf("caption %d: end %.3f is before start %.3f", c.Index, c.End, c.Start)
	}
	return nil
}

// Edit overwrites the mutable fields of the caption with the same index.
type Edit struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func (e Edit) Validate() error {
	return Caption(e).Validate()
}

// Clone returns a copy of captions that shares no backing array with the input.
func Clone(captions []Caption) []Caption {
	if captions == nil {
		return nil
	}
	ret := make([]Caption, len(captions))
	copy(ret, captions)
	return ret
}

// Renumber assigns sequential 1-based indexes in slice order.
func Renumber(captions []Caption) []Caption {
	ret := Clone(captions)
	for i := range ret {
		ret[i].Index = i + 1
	}
	return ret
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(math.Round(sec*1000)) * time.Millisecond
}

func durationToSeconds(d time.Duration) float64 {
	return float64(d.Milliseconds()) / 1000
}
