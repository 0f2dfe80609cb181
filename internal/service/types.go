package service

import (
	"context"
	"time"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/persistence"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/subtitle"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/translate"
)

const (
	StatusSuccess = "success"

	DefaultTargetLanguage = "en"
	DefaultOutputFormat   = subtitle.FormatSRT

	editedSuffix = "_edited"
)

// Transcriber turns a stored media file into captions.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath, languageHint string) ([]subtitle.Caption, error)
}

// Translator replaces caption texts, keeping everything else.
type Translator interface {
	TranslateWithReport(ctx context.Context, captions []subtitle.Caption, target, source string) ([]subtitle.Caption, translate.Report)
}

// Repository is the side store for durations, caption sets and history.
type Repository interface {
	SetObjectDuration(ctx context.Context, name string, duration time.Duration) error
	ListObjects(ctx context.Context) ([]persistence.ObjectRecord, error)
	PutCaptionSet(ctx context.Context, set persistence.CaptionSet) error
	GetCaptionSet(ctx context.Context, source string) (persistence.CaptionSet, bool, error)
	UpsertRequest(ctx context.Context, req persistence.Request) error
	ListRequests(ctx context.Context, limit int) ([]persistence.Request, error)
	PruneRequests(ctx context.Context, cutoff time.Time) (int64, error)
}

type UploadResult struct {
	Filename string  `json:"filename"`
	Status   string  `json:"status"`
	Size     int64   `json:"size"`
	Version  int64   `json:"version,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

type GenerateRequest struct {
	Filename       string `json:"filename"`
	TargetLanguage string `json:"target_language"`
	OutputFormat   string `json:"output_format"`
	Translate      bool   `json:"translate"`
}

type EditRequest struct {
	Filename     string          `json:"filename"`
	Edits        []subtitle.Edit `json:"edits"`
	OutputFormat string          `json:"output_format"`
}

// SubtitleResult is returned by Generate and Edit. The caption list goes out
// under "subtitles", the key web clients of this API read.
type SubtitleResult struct {
	Status           string             `json:"status"`
	SubtitleFile     string             `json:"subtitle_file"`
	Captions         []subtitle.Caption `json:"subtitles"`
	DetectedLanguage string             `json:"detected_language,omitempty"`
	Translated       bool               `json:"translated"`
	RequestID        string             `json:"request_id,omitempty"`
}
