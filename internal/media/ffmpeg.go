package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Muzafar-sm/AI-subtitle-Generator/pkg/log"
)

const speechSampleRate = "16000"

type FFmpeg struct {
	cmd string
}

var _ AudioExtractor = FFmpeg{}

func NewFFmpeg(cmd string) FFmpeg {
	if strings.TrimSpace(cmd) == "" {
		cmd = "ffmpeg"
	}
	return FFmpeg{cmd: cmd}
}

// ExtractAudio writes the first audio stream of input to output as 16 kHz
// mono 16-bit PCM.
func (ff FFmpeg) ExtractAudio(ctx context.Context, input, output string) error {
	cmdPath, err := exec.LookPath(ff.cmd)
	if err != nil {
		return fmt.Errorf("find %s: %w", ff.cmd, err)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, cmdPath, ff.extractAudioArgs(input, output)...)
	cmd.Stderr = &stderr

	log.Debug("Extracting audio: %s %s", cmdPath, strings.Join(cmd.Args[1:], " "))
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, msg)
	}
	return nil
}

func (FFmpeg) extractAudioArgs(input, output string) []string {
	return []string{
		"-nostdin",
		"-y",
		"-i", input,
		"-vn",
		"-ar", speechSampleRate,
		"-ac", "1",
		"-c:a", "pcm_s16le",
		output,
	}
}
