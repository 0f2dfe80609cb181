package subtitle

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/asticode/go-astisub"
)

const (
	assStyleName = "Default"
	assFontName  = "Arial"
	assFontSize  = 20.0
)

// Serialize encodes captions in the given format. SRT cues are renumbered
// 1..N in slice order whatever their Index says.
func Serialize(captions []Caption, format Format) ([]byte, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}

	// astisub refuses to write an empty document
	if len(captions) == 0 {
		if format == FormatVTT {
			return []byte("WEBVTT\n"), nil
		}
		return []byte{}, nil
	}

	subs := toAstisub(captions, format)

	var buf bytes.Buffer
	var err error
	switch format {
	case FormatSRT:
		err = subs.WriteToSRT(&buf)
	case FormatVTT:
		err = subs.WriteToWebVTT(&buf)
	case FormatASS:
		err = subs.WriteToSSA(&buf)
	}
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// WriteFile serializes captions and writes them to path, returning the bytes
// written. The file is replaced atomically.
func WriteFile(path string, captions []Caption, format Format) ([]byte, error) {
	content, err := Serialize(captions, format)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("close output file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("rename output file: %w", err)
	}
	return content, nil
}

func toAstisub(captions []Caption, format Format) *astisub.Subtitles {
	subs := astisub.NewSubtitles()

	var style *astisub.Style
	if format == FormatASS {
		size := assFontSize
		style = &astisub.Style{
			ID: assStyleName,
			InlineStyle: &astisub.StyleAttributes{
				SSAFontName: assFontName,
				SSAFontSize: &size,
			},
		}
		if subs.Styles == nil {
			subs.Styles = make(map[string]*astisub.Style)
		}
		subs.Styles[style.ID] = style
		subs.Metadata = &astisub.Metadata{
			SSAScriptType: "v4.00+",
			Title:         "Generated subtitles",
		}
	}

	for i, c := range captions {
		item := &astisub.Item{
			Index:   i + 1,
			StartAt: c.StartTime(),
			EndAt:   c.EndTime(),
			Style:   style,
		}
		for _, text := range strings.Split(c.Text, "\n") {
			item.Lines = append(item.Lines, astisub.Line{
				Items: []astisub.LineItem{{Text: text}},
			})
		}
		subs.Items = append(subs.Items, item)
	}
	return subs
}
