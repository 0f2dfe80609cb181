package subtitle

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/asticode/go-astisub"
)

// Parse decodes a serialized subtitle document into captions numbered 1..N.
func Parse(data []byte, format Format) ([]Caption, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []Caption{}, nil
	}

	var (
		subs *astisub.Subtitles
		err  error
	)
	r := bytes.NewReader(data)
	switch format {
	case FormatSRT:
		subs, err = astisub.ReadFromSRT(r)
	case FormatVTT:
		subs, err = astisub.ReadFromWebVTT(r)
	case FormatASS:
		subs, err = astisub.ReadFromSSA(r)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", format, err)
	}

	ret := make([]Caption, 0, len(subs.Items))
	for i, item := range subs.Items {
		lines := make([]string, 0, len(item.Lines))
		for _, line := range item.Lines {
			lines = append(lines, line.String())
		}
		ret = append(ret, Caption{
			Index: i + 1,
			Start: durationToSeconds(item.StartAt),
			End:   durationToSeconds(item.EndAt),
			Text:  strings.Join(lines, "\n"),
		})
	}
	return ret, nil
}
