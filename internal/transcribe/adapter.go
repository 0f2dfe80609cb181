package transcribe

import (
	"context"
	"fmt"
	"strings"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/jobs"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/subtitle"
	"github.com/Muzafar-sm/AI-subtitle-Generator/pkg/log"
)

// Adapter runs a Model on the shared worker pool and shapes its output into
// captions.
type Adapter struct {
	model Model
	pool  *jobs.Pool
}

func NewAdapter(model Model, pool *jobs.Pool) *Adapter {
	return &Adapter{model: model, pool: pool}
}

// Transcribe returns one caption per segment, indexed 1..N in emission
// order. Any model failure is reported as ErrFailed.
func (a *Adapter) Transcribe(ctx context.Context, mediaPath, languageHint string) ([]subtitle.Caption, error) {
	hint := normalizeHint(languageHint)

	segments, err := jobs.Do(ctx, a.pool, "transcribe", func(ctx context.Context) ([]Segment, error) {
		return a.model.Transcribe(ctx, mediaPath, hint)
	})
	if err != nil {
		log.Error("Transcription of %s failed: %v", mediaPath, err)
		return nil, fmt.Errorf("%w: %v", ErrFailed, err)
	}

	captions := make([]subtitle.Caption, 0, len(segments))
	for i, seg := range segments {
		start := max(seg.Start, 0)
		end := max(seg.End, start)
		captions = append(captions, subtitle.Caption{
			Index: i + 1,
			Start: start,
			End:   end,
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	log.Info("Transcribed %s into %d captions", mediaPath, len(captions))
	return captions, nil
}

func normalizeHint(hint string) string {
	hint = strings.TrimSpace(hint)
	if strings.EqualFold(hint, "auto") {
		return ""
	}
	return hint
}
