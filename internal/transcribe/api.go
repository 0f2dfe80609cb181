package transcribe

import (
	"context"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/llm"
)

// APIModel calls an OpenAI-compatible /audio/transcriptions endpoint.
type APIModel struct {
	client *llm.Client
}

func NewAPIModel(client *llm.Client) *APIModel {
	return &APIModel{client: client}
}

func (m *APIModel) Transcribe(ctx context.Context, mediaPath, language string) ([]Segment, error) {
	resp, err := m.client.Transcribe(ctx, llm.TranscriptionRequest{
		FilePath: mediaPath,
		Language: language,
	})
	if err != nil {
		return nil, err
	}

	segments := make([]Segment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		segments = append(segments, Segment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	// some servers only return text when the audio is very short
	if len(segments) == 0 && resp.Text != "" {
		segments = append(segments, Segment{Start: 0, End: resp.Duration, Text: resp.Text})
	}
	return segments, nil
}
