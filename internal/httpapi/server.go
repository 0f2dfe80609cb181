package httpapi

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/jobs"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/persistence"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/service"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/storage"
)

const (
	DefaultAllowedOrigin  = "http://localhost:3000"
	DefaultMaxUploadBytes = 512 << 20

	maxJSONBodyBytes = 8 << 20
)

// subtitleService is the part of service.Service the HTTP layer calls.
type subtitleService interface {
	Upload(ctx context.Context, name string, r io.Reader) (*service.UploadResult, error)
	Generate(ctx context.Context, req service.GenerateRequest) (*service.SubtitleResult, error)
	Edit(ctx context.Context, req service.EditRequest) (*service.SubtitleResult, error)
	Open(ctx context.Context, name string) (io.ReadCloser, storage.Object, error)
	Uploads(ctx context.Context) ([]storage.Object, error)
	History(ctx context.Context, limit int) ([]persistence.Request, error)
	Jobs() []*jobs.Task
	Stats() jobs.Stats
}

type Server struct {
	svc subtitleService

	allowedOrigin  string
	maxUploadBytes int64
	streamInterval time.Duration

	uiEnabled   bool
	uiStaticDir string

	mux     *http.ServeMux
	handler http.Handler
	server  *http.Server

	// done is closed by Shutdown to end long-lived streams.
	done     chan struct{}
	doneOnce sync.Once
}

type Option func(*Server)

// WithAllowedOrigin sets the single origin allowed by CORS.
func WithAllowedOrigin(origin string) Option {
	return func(s *Server) {
		if strings.TrimSpace(origin) != "" {
			s.allowedOrigin = origin
		}
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithUI serves a static frontend build from staticDir for non-API paths.
func WithUI(staticDir string, enabled bool) Option {
	return func(s *Server) {
		s.uiStaticDir = staticDir
		s.uiEnabled = enabled
	}
}

func withStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		s.streamInterval = d
	}
}

func NewServer(svc subtitleService, opts ...Option) *Server {
	s := &Server{
		svc:            svc,
		allowedOrigin:  DefaultAllowedOrigin,
		maxUploadBytes: DefaultMaxUploadBytes,
		streamInterval: time.Second,
		mux:            http.NewServeMux(),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	s.handler = requestID(accessLog(newCORS(s.allowedOrigin).Handler(s.mux)))
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe blocks until Shutdown is called or the listener fails.
// After Shutdown it returns http.ErrServerClosed.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.server.Serve(ln)
}

// Shutdown ends open job streams, then waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.doneOnce.Do(func() { close(s.done) })
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/upload", s.handleUpload)
	s.mux.HandleFunc("/api/generate-subtitles", s.handleGenerate)
	s.mux.HandleFunc("/api/edit-subtitles", s.handleEdit)
	s.mux.HandleFunc("/api/download/", s.handleDownload)
	s.mux.HandleFunc("/api/uploads", s.handleUploads)
	s.mux.HandleFunc("/api/history", s.handleHistory)
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/jobs/stream", s.handleJobStream)
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/", s.handleStatic)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if !s.uiEnabled || s.uiStaticDir == "" || strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	rel := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	indexPath := filepath.Join(s.uiStaticDir, "index.html")

	if rel == "" || !strings.Contains(filepath.Base(rel), ".") {
		http.ServeFile(w, r, indexPath)
		return
	}

	filePath := filepath.Join(s.uiStaticDir, rel)
	if _, err := os.Stat(filePath); err != nil {
		// SPA fallback: non-existing static file path returns index
		http.ServeFile(w, r, indexPath)
		return
	}
	http.ServeFile(w, r, filePath)
}
