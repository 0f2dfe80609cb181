package persistence

import (
	"time"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/subtitle"
)

// ObjectRecord is the catalog row of one stored file.
type ObjectRecord struct {
	Name        string    `json:"filename"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	ContentType string    `json:"content_type"`
	DurationMS  int64     `json:"duration_ms,omitempty"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CaptionSet is the structured caption state kept for a source media file,
// so edits do not need to re-parse a serialized artifact.
type CaptionSet struct {
	Source           string             `json:"source"`
	Format           string             `json:"format"`
	Language         string             `json:"language"`
	DetectedLanguage string             `json:"detected_language"`
	Captions         []subtitle.Caption `json:"captions"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

type RequestKind string

const (
	RequestGenerate RequestKind = "generate"
	RequestEdit     RequestKind = "edit"
)

type RequestStatus string

const (
	RequestRunning RequestStatus = "running"
	RequestSuccess RequestStatus = "success"
	RequestFailed  RequestStatus = "failed"
)

// Request is one history entry for a generate or edit call.
type Request struct {
	ID               string        `json:"id"`
	Kind             RequestKind   `json:"kind"`
	Filename         string        `json:"filename"`
	Artifact         string        `json:"subtitle_file,omitempty"`
	Format           string        `json:"output_format,omitempty"`
	TargetLanguage   string        `json:"target_language,omitempty"`
	Translated       bool          `json:"translated"`
	DetectedLanguage string        `json:"detected_language,omitempty"`
	CaptionCount     int           `json:"caption_count"`
	Status           RequestStatus `json:"status"`
	Error            string        `json:"error,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}
