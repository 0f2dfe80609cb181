package subtitle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCaptions() []Caption {
	return []Caption{
		{Index: 7, Start: 0, End: 1.5, Text: "Hello there"},
		{Index: 9, Start: 1.5, End: 3.25, Text: "General Kenobi"},
		{Index: 12, Start: 4, End: 6, Text: "first line\nsecond line"},
	}
}

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"srt", "SRT", ".vtt", " ass "} {
		_, err := ParseFormat(name)
		require.NoError(t, err, name)
	}

	_, err := ParseFormat("sub")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSerialize_UnsupportedFormatFails(t *testing.T) {
	_, err := Serialize(sampleCaptions(), Format("txt"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWriteFile_UnsupportedFormatWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	_, err := WriteFile(path, sampleCaptions(), Format("txt"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSerialize_SRTRenumbersAndRoundTrips(t *testing.T) {
	data, err := Serialize(sampleCaptions(), FormatSRT)
	require.NoError(t, err)

	content := string(data)
	assert.Contains(t, content, "00:00:01,500 --> 00:00:03,250")
	assert.NotContains(t, content, "\n7\n")

	parsed, err := Parse(data, FormatSRT)
	require.NoError(t, err)
	require.Len(t, parsed, 3)
	for i, c := range parsed {
		assert.Equal(t, i+1, c.Index)
		if i > 0 {
			assert.GreaterOrEqual(t, c.Start, parsed[i-1].Start)
		}
	}
	assert.Equal(t, "Hello there", parsed[0].Text)
	assert.InDelta(t, 3.25, parsed[1].End, 0.001)
	assert.Equal(t, "first line\nsecond line", parsed[2].Text)
}

func TestSerialize_SRTRoundTripKeepsCountForLongSequences(t *testing.T) {
	captions := make([]Caption, 0, 37)
	for i := 0; i < 37; i++ {
		captions = append(captions, Caption{
			Index: i + 1,
			Start: float64(i) * 2.5,
			End:   float64(i)*2.5 + 2,
			Text:  "line",
		})
	}

	data, err := Serialize(captions, FormatSRT)
	require.NoError(t, err)

	parsed, err := Parse(data, FormatSRT)
	require.NoError(t, err)
	require.Len(t, parsed, len(captions))
	for i := 1; i < len(parsed); i++ {
		assert.GreaterOrEqual(t, parsed[i].Start, parsed[i-1].Start)
	}
}

func TestSerialize_VTT(t *testing.T) {
	data, err := Serialize(sampleCaptions(), FormatVTT)
	require.NoError(t, err)

	content := string(data)
	assert.Contains(t, content, "WEBVTT")
	assert.Contains(t, content, "00:00:01.500 --> 00:00:03.250")
	assert.Contains(t, content, "General Kenobi")

	parsed, err := Parse(data, FormatVTT)
	require.NoError(t, err)
	require.Len(t, parsed, 3)
	assert.InDelta(t, 4.0, parsed[2].Start, 0.001)
}

func TestSerialize_ASSCarriesDefaultStyle(t *testing.T) {
	data, err := Serialize(sampleCaptions(), FormatASS)
	require.NoError(t, err)

	content := string(data)
	assert.Contains(t, content, "Arial")
	assert.Contains(t, content, "Dialogue:")

	parsed, err := Parse(data, FormatASS)
	require.NoError(t, err)
	require.Len(t, parsed, 3)
	assert.InDelta(t, 1.5, parsed[1].Start, 0.011)
}

func TestSerialize_Empty(t *testing.T) {
	data, err := Serialize(nil, FormatVTT)
	require.NoError(t, err)
	assert.Equal(t, "WEBVTT\n", string(data))

	data, err = Serialize([]Caption{}, FormatSRT)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestWriteFile_ReturnsAndPersistsSameBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "clip.srt")

	data, err := WriteFile(path, sampleCaptions(), FormatSRT)
	require.NoError(t, err)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be renamed away")
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/x-subrip", ContentType(".srt"))
	assert.Equal(t, "text/vtt", ContentType("vtt"))
	assert.Equal(t, "text/x-ssa", ContentType(".ASS"))
	assert.Equal(t, "application/octet-stream", ContentType(".bin"))
	assert.Equal(t, "application/octet-stream", ContentType(""))
}
