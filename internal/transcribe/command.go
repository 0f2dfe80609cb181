package transcribe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/media"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/subtitle"
	"github.com/Muzafar-sm/AI-subtitle-Generator/pkg/log"
)

// Runner executes an external program and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// CommandModel drives a local whisper.cpp CLI. Input that is not already a
// WAV file is converted with the AudioExtractor first.
type CommandModel struct {
	command   string
	modelPath string
	extractor media.AudioExtractor
	runner    Runner
}

type CommandOption func(*CommandModel)

func WithRunner(r Runner) CommandOption {
	return func(m *CommandModel) {
		m.runner = r
	}
}

func NewCommandModel(command, modelPath string, extractor media.AudioExtractor, opts ...CommandOption) *CommandModel {
	if command == "" {
		command = "whisper-cli"
	}
	m := &CommandModel{
		command:   command,
		modelPath: modelPath,
		extractor: extractor,
		runner:    execRunner{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *CommandModel) Transcribe(ctx context.Context, mediaPath, language string) ([]Segment, error) {
	workDir, err := os.MkdirTemp("", "subgen-whisper-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	audioPath := mediaPath
	if !media.IsWAV(mediaPath) {
		if m.extractor == nil {
			return nil, fmt.Errorf("%s is not a wav file and no audio extractor is configured", filepath.Base(mediaPath))
		}
		audioPath = filepath.Join(workDir, "audio.wav")
		if err := m.extractor.ExtractAudio(ctx, mediaPath, audioPath); err != nil {
			return nil, err
		}
	}

	outBase := filepath.Join(workDir, "out")
	output, err := m.runner.Run(ctx, m.command, m.args(audioPath, outBase, language)...)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", m.command, err, strings.TrimSpace(string(output)))
	}
	log.Debug("whisper output: %s", output)

	data, err := os.ReadFile(outBase + ".srt")
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}
	captions, err := subtitle.Parse(data, subtitle.FormatSRT)
	if err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}

	segments := make([]Segment, 0, len(captions))
	for _, c := range captions {
		segments = append(segments, Segment{Start: c.Start, End: c.End, Text: c.Text})
	}
	return segments, nil
}

func (m *CommandModel) args(audioPath, outBase, language string) []string {
	if language == "" {
		language = "auto"
	}
	return []string{
		"-m", m.modelPath,
		"-l", language,
		"-f", audioPath,
		"-osrt",
		"-of", outBase,
	}
}
