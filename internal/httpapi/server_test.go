package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/jobs"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/persistence"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/service"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/storage"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/subtitle"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/translate"
)

type stubTranscriber struct {
	err error
}

func (s stubTranscriber) Transcribe(_ context.Context, _, _ string) ([]subtitle.Caption, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []subtitle.Caption{
		{Index: 1, Start: 0, End: 1.5, Text: "Hello there"},
		{Index: 2, Start: 1.5, End: 3, Text: "General Kenobi"},
		{Index: 3, Start: 3, End: 4.25, Text: "You are a bold one"},
	}, nil
}

type testEnv struct {
	server *Server
	store  *storage.DirStore
}

func newTestEnv(t *testing.T, transcriber service.Transcriber, opts ...Option) *testEnv {
	t.Helper()

	repo, err := persistence.NewSQLiteStore(filepath.Join(t.TempDir(), "subgen.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	store, err := storage.NewDirStore(filepath.Join(t.TempDir(), "uploads"), storage.WithCatalog(repo), storage.WithMaxSize(1<<20))
	require.NoError(t, err)

	pool := jobs.NewPool(2)
	t.Cleanup(pool.Stop)

	batcher := translate.NewBatcher(translate.IdentityProvider{}, translate.WithDelay(0), translate.WithPool(pool))
	svc := service.New(store, repo, transcriber, batcher, service.WithPool(pool))
	return &testEnv{server: NewServer(svc, opts...), store: store}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(t, req)
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Detail
}

func TestServer_Upload(t *testing.T) {
	env := newTestEnv(t, stubTranscriber{})

	rec := env.upload(t, "clip.wav", []byte("RIFF...."))
	require.Equal(t, http.StatusOK, rec.Code)

	var res service.UploadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "clip.wav", res.Filename)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, int64(8), res.Size)

	_, err := env.store.Stat(context.Background(), "clip.wav")
	require.NoError(t, err)
}

func TestServer_UploadErrors(t *testing.T) {
	env := newTestEnv(t, stubTranscriber{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := env.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing file field", decodeDetail(t, rec))

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("{}")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.upload(t, "huge.wav", bytes.Repeat([]byte("x"), 2<<20))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeDetail(t, rec), "too large")

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/upload", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_GenerateWithQueryAndBody(t *testing.T) {
	env := newTestEnv(t, stubTranscriber{})
	require.Equal(t, http.StatusOK, env.upload(t, "clip.wav", []byte("RIFF")).Code)

	body := `{"target_language":"en","output_format":"vtt","translate":false}`
	req := httptest.NewRequest(http.MethodPost, "/api/generate-subtitles?filename=clip.wav", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Status       string             `json:"status"`
		SubtitleFile string             `json:"subtitle_file"`
		Subtitles    []subtitle.Caption `json:"subtitles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "clip.vtt", res.SubtitleFile)
	require.Len(t, res.Subtitles, 3)
	assert.Equal(t, "General Kenobi", res.Subtitles[1].Text)

	req = httptest.NewRequest(http.MethodPost, "/api/generate-subtitles?filename=clip.wav&output_format=ass&translate=true&target_language=fr", nil)
	rec = env.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "clip.ass", res.SubtitleFile)
	assert.Equal(t, "Hello there", res.Subtitles[0].Text, "identity provider keeps text")
}

func TestServer_GenerateErrors(t *testing.T) {
	env := newTestEnv(t, stubTranscriber{err: errors.New("transcription failed: model exploded")})

	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/api/generate-subtitles?filename=missing.wav", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "File not found", decodeDetail(t, rec))

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/api/generate-subtitles", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, http.StatusOK, env.upload(t, "clip.wav", []byte("RIFF")).Code)

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/api/generate-subtitles?filename=clip.wav&output_format=sub", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeDetail(t, rec), "unsupported output format")

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/api/generate-subtitles?filename=clip.wav&translate=maybe", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/api/generate-subtitles?filename=clip.wav", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/api/generate-subtitles?filename=clip.wav", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decodeDetail(t, rec), "model exploded")

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/generate-subtitles?filename=clip.wav", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_EditAndDownload(t *testing.T) {
	env := newTestEnv(t, stubTranscriber{})
	require.Equal(t, http.StatusOK, env.upload(t, "clip.wav", []byte("RIFF")).Code)
	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/api/generate-subtitles?filename=clip.wav", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := `{"filename":"clip.wav","edits":[{"index":2,"start":1.5,"end":3,"text":"Hello, Grievous"}],"output_format":"srt"}`
	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/api/edit-subtitles", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res service.SubtitleResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "clip_edited.srt", res.SubtitleFile)
	assert.Equal(t, "Hello, Grievous", res.Captions[1].Text)
	assert.Equal(t, "Hello there", res.Captions[0].Text)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/download/clip_edited.srt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-subrip", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=clip_edited.srt`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "00:00:01,500 --> 00:00:03,000\nHello, Grievous")

	arr := `[{"index":1,"start":0,"end":1.5,"text":"Hi"}]`
	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/api/edit-subtitles?filename=clip.wav&output_format=vtt", strings.NewReader(arr)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "clip_edited.vtt", res.SubtitleFile)
	assert.Equal(t, "Hi", res.Captions[0].Text)
	assert.Equal(t, "Hello, Grievous", res.Captions[1].Text, "edits build on the last edited state")

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/download/clip_edited.vtt", nil))
	assert.Equal(t, "text/vtt", rec.Header().Get("Content-Type"))

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/api/edit-subtitles", strings.NewReader(`{"filename":"nope.wav","edits":[]}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_DownloadUnknownExtension(t *testing.T) {
	env := newTestEnv(t, stubTranscriber{})
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	require.Equal(t, http.StatusOK, env.upload(t, "data.bin", payload).Code)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/download/data.bin", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, payload, rec.Body.Bytes())

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/download/missing.srt", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "File not found", decodeDetail(t, rec))

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/download/..%2Fsecret", nil))
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestServer_DownloadUsesNameAsGiven(t *testing.T) {
	env := newTestEnv(t, stubTranscriber{})
	require.Equal(t, http.StatusOK, env.upload(t, "a%41.srt", []byte("percent")).Code)
	require.Equal(t, http.StatusOK, env.upload(t, "aA.srt", []byte("plain")).Code)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/download/a%2541.srt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "percent", rec.Body.String())

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/download/nested/aA.srt", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_CORSAndRequestID(t *testing.T) {
	env := newTestEnv(t, stubTranscriber{})

	req := httptest.NewRequest(http.MethodOptions, "/api/upload", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := env.do(t, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = env.do(t, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = env.do(t, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestServer_AllowedOriginOption(t *testing.T) {
	env := newTestEnv(t, stubTranscriber{}, WithAllowedOrigin("https://subs.example"))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://subs.example")
	rec := env.do(t, req)
	assert.Equal(t, "https://subs.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_HistoryHealthJobsUploads(t *testing.T) {
	env := newTestEnv(t, stubTranscriber{})
	require.Equal(t, http.StatusOK, env.upload(t, "clip.wav", []byte("RIFF")).Code)
	require.Equal(t, http.StatusOK, env.do(t, httptest.NewRequest(http.MethodPost, "/api/generate-subtitles?filename=clip.wav&translate=true&target_language=de", nil)).Code)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/history?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var history []persistence.Request
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, persistence.RequestGenerate, history[0].Kind)
	assert.Equal(t, "clip.srt", history[0].Artifact)
	assert.True(t, history[0].Translated)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/history?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 2, health["workers"])

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []jobs.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.NotEmpty(t, tasks)
	assert.Equal(t, "translate", tasks[0].Name)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/uploads", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var objects []storage.Object
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &objects))
	names := make([]string, 0, len(objects))
	for _, o := range objects {
		names = append(names, o.Name)
	}
	assert.ElementsMatch(t, []string{"clip.wav", "clip.srt"}, names)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_JobStream(t *testing.T) {
	env := newTestEnv(t, stubTranscriber{}, withStreamInterval(10*time.Millisecond))
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/jobs/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)
	var lines []string
	for range 3 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		lines = append(lines, strings.TrimSuffix(line, "\n"))
	}
	assert.Equal(t, "id: 1", lines[0])
	assert.Equal(t, "event: jobs", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "data: "))
	assert.Contains(t, lines[2], `"workers":2`)
}

func TestServer_ServesSPAFromStaticDir(t *testing.T) {
	staticDir := filepath.Join(t.TempDir(), "web")
	require.NoError(t, os.MkdirAll(staticDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html>spa</html>"), 0o644))

	env := newTestEnv(t, stubTranscriber{}, WithUI(staticDir, true))
	for _, url := range []string{"/", "/editor/abc"} {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, url, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "spa")
	}

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/nothing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ListenAfterShutdownReturnsClosed(t *testing.T) {
	env := newTestEnv(t, stubTranscriber{})
	require.NoError(t, env.server.Shutdown(context.Background()))

	err := env.server.ListenAndServe("127.0.0.1:0")
	assert.ErrorIs(t, err, http.ErrServerClosed)
}

func TestServer_ShutdownEndsJobStream(t *testing.T) {
	env := newTestEnv(t, stubTranscriber{}, withStreamInterval(10*time.Millisecond))
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/jobs/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	_, err = reader.ReadString('\n')
	require.NoError(t, err)

	require.NoError(t, env.server.Shutdown(context.Background()))

	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(io.Discard, reader)
		done <- err
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("job stream still open after shutdown")
	}
}
