package file

import (
	"path/filepath"
	"strings"
)

// Stem returns the base name of path without its last extension.
// A leading dot is part of the name, not an extension.
func Stem(path string) string {
	name := filepath.Base(path)
	if lastDot := strings.LastIndex(name, "."); lastDot > 0 {
		return name[:lastDot]
	}
	return name
}

func ReplaceExt(path, ext string) string {
	if path == "" {
		return path
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(filepath.Dir(path), Stem(path)+ext)
}

// SiblingName builds "<stem><suffix>.<ext>" from a bare file name, e.g.
// SiblingName("talk.mp4", "_edited", "srt") is "talk_edited.srt".
func SiblingName(name, suffix, ext string) string {
	return Stem(name) + suffix + "." + strings.TrimPrefix(ext, ".")
}
