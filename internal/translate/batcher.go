package translate

import (
	"context"
	"fmt"
	"time"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/jobs"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/subtitle"
	"github.com/Muzafar-sm/AI-subtitle-Generator/pkg/log"
)

const (
	DefaultBatchSize  = 10
	DefaultBatchDelay = 500 * time.Millisecond
)

// Report summarizes one Translate run.
type Report struct {
	Batches int `json:"batches"`
	// Degraded lists zero-based batch numbers that kept their original text.
	Degraded []int `json:"degraded,omitempty"`
}

type Option func(*Batcher)

func WithBatchSize(n int) Option {
	return func(b *Batcher) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

func WithDelay(d time.Duration) Option {
	return func(b *Batcher) {
		if d >= 0 {
			b.delay = d
		}
	}
}

// WithPool dispatches each provider call on the pool.
func WithPool(p *jobs.Pool) Option {
	return func(b *Batcher) {
		b.pool = p
	}
}

// Batcher translates captions in fixed-size contiguous batches, one provider
// call per batch, strictly in order, pausing between batches. A failed batch
// keeps its original text and the run continues.
type Batcher struct {
	provider  Provider
	pool      *jobs.Pool
	batchSize int
	delay     time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewBatcher(provider Provider, opts ...Option) *Batcher {
	b := &Batcher{
		provider:  provider,
		batchSize: DefaultBatchSize,
		delay:     DefaultBatchDelay,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Translate returns copies of captions with only Text replaced.
func (b *Batcher) Translate(ctx context.Context, captions []subtitle.Caption, target, source string) []subtitle.Caption {
	out, _ := b.TranslateWithReport(ctx, captions, target, source)
	return out
}

func (b *Batcher) TranslateWithReport(ctx context.Context, captions []subtitle.Caption, target, source string) ([]subtitle.Caption, Report) {
	if source == "" {
		source = "auto"
	}
	out := subtitle.Clone(captions)
	var report Report

	for start := 0; start < len(out); start += b.batchSize {
		end := min(start+b.batchSize, len(out))
		batchNo := report.Batches
		report.Batches++

		if start > 0 && b.delay > 0 {
			if err := b.sleep(ctx, b.delay); err != nil {
				report.Degraded = append(report.Degraded, batchNo)
				continue
			}
		}
		if ctx.Err() != nil {
			report.Degraded = append(report.Degraded, batchNo)
			continue
		}

		texts := make([]string, 0, end-start)
		for _, c := range out[start:end] {
			texts = append(texts, c.Text)
		}

		translated, err := b.translateBatch(ctx, texts, source, target)
		if err != nil {
			log.Warn("Translation batch %d (captions %d-%d) kept original text: %v", batchNo, start+1, end, err)
			report.Degraded = append(report.Degraded, batchNo)
			continue
		}
		for i, text := range translated {
			out[start+i].Text = text
		}
	}

	if len(report.Degraded) > 0 {
		log.Warn("Translation to %s finished with %d of %d batches degraded", target, len(report.Degraded), report.Batches)
	}
	return out, report
}

func (b *Batcher) translateBatch(ctx context.Context, texts []string, source, target string) ([]string, error) {
	translated, err := jobs.Do(ctx, b.pool, "translate", func(ctx context.Context) ([]string, error) {
		return b.provider.Translate(ctx, texts, source, target)
	})
	if err != nil {
		return nil, err
	}
	if len(translated) != len(texts) {
		return nil, fmt.Errorf("translation count mismatch: got %d, want %d", len(translated), len(texts))
	}
	return translated, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
