package transcribe

import (
	"fmt"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/config"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/llm"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/media"
)

// NewModel builds the configured speech model backend.
func NewModel(cfg config.TranscribeConfig) (Model, error) {
	switch cfg.Backend {
	case config.BackendAPI:
		client, err := llm.NewClient(&llm.Config{
			APIKey:  cfg.APIKey,
			APIURL:  cfg.APIURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return NewAPIModel(client), nil
	case config.BackendCommand:
		return NewCommandModel(cfg.Command, cfg.ModelPath, media.NewFFmpeg(cfg.FFmpeg)), nil
	default:
		return nil, fmt.Errorf("unknown transcription backend %q", cfg.Backend)
	}
}
