package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/subtitle"
	"github.com/Muzafar-sm/AI-subtitle-Generator/pkg/log"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidName = errors.New("invalid filename")
	ErrTooLarge    = errors.New("file too large")
)

const lockDirName = ".locks"

// Object describes one stored file.
type Object struct {
	Name        string    `json:"filename"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256,omitempty"`
	ContentType string    `json:"content_type"`
	ModTime     time.Time `json:"modified_at"`
	Version     int64     `json:"version,omitempty"`
}

// Catalog records every successful Put and returns the object's new version.
type Catalog interface {
	RecordObject(ctx context.Context, obj Object) (int64, error)
}

// Store is a flat namespace of files keyed by filename.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader) (Object, error)
	Open(ctx context.Context, name string) (io.ReadCloser, Object, error)
	Stat(ctx context.Context, name string) (Object, error)
	List(ctx context.Context) ([]Object, error)
	Path(name string) (string, error)
}

type Option func(*DirStore)

func WithCatalog(c Catalog) Option {
	return func(s *DirStore) {
		s.catalog = c
	}
}

// WithMaxSize rejects Put calls whose body exceeds n bytes.
func WithMaxSize(n int64) Option {
	return func(s *DirStore) {
		s.maxSize = n
	}
}

// DirStore keeps objects as plain files in one directory. Writers of the same
// name are serialized in-process and across processes, and each write lands
// through a temp file rename so readers never see partial content.
type DirStore struct {
	root    string
	catalog Catalog
	maxSize int64
	locks   *keyedLocker
}

var _ Store = (*DirStore)(nil)

func NewDirStore(root string, opts ...Option) (*DirStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, lockDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	s := &DirStore{root: abs}
	for _, opt := range opts {
		opt(s)
	}
	s.locks = newKeyedLocker(filepath.Join(abs, lockDirName))
	return s, nil
}

func (s *DirStore) Root() string { return s.root }

func (s *DirStore) Path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.root, name), nil
}

func (s *DirStore) Put(ctx context.Context, name string, r io.Reader) (Object, error) {
	path, err := s.Path(name)
	if err != nil {
		return Object{}, err
	}

	unlock, err := s.locks.Lock(ctx, name)
	if err != nil {
		return Object{}, fmt.Errorf("lock %s: %w", name, err)
	}
	defer unlock()

	tmp, err := os.CreateTemp(s.root, "."+name+".*.tmp")
	if err != nil {
		return Object{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	hasher := sha256.New()
	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	n, err := io.Copy(io.MultiWriter(tmp, hasher), src)
	if err != nil {
		cleanup()
		return Object{}, fmt.Errorf("write %s: %w", name, err)
	}
	if s.maxSize > 0 && n > s.maxSize {
		cleanup()
		return Object{}, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.maxSize)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return Object{}, fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return Object{}, fmt.Errorf("rename %s: %w", name, err)
	}

	obj, err := s.stat(name, path)
	if err != nil {
		return Object{}, err
	}
	obj.SHA256 = hex.EncodeToString(hasher.Sum(nil))

	if s.catalog != nil {
		version, err := s.catalog.RecordObject(ctx, obj)
		if err != nil {
			log.Warn("Failed to catalog %s: %v", name, err)
		} else {
			obj.Version = version
		}
	}
	return obj, nil
}

func (s *DirStore) Open(_ context.Context, name string) (io.ReadCloser, Object, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, Object{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Object{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, Object{}, fmt.Errorf("open %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, Object{}, fmt.Errorf("stat %s: %w", name, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, Object{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return f, objectFromInfo(name, info), nil
}

func (s *DirStore) Stat(_ context.Context, name string) (Object, error) {
	path, err := s.Path(name)
	if err != nil {
		return Object{}, err
	}
	return s.stat(name, path)
}

func (s *DirStore) stat(name, path string) (Object, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Object{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Object{}, fmt.Errorf("stat %s: %w", name, err)
	}
	if info.IsDir() {
		return Object{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return objectFromInfo(name, info), nil
}

// List returns stored objects sorted by name. Hidden and temporary files are skipped.
func (s *DirStore) List(_ context.Context) ([]Object, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read storage root: %w", err)
	}

	ret := make([]Object, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		ret = append(ret, objectFromInfo(entry.Name(), info))
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Name < ret[j].Name
	})
	return ret, nil
}

func objectFromInfo(name string, info os.FileInfo) Object {
	return Object{
		Name:        name,
		Size:        info.Size(),
		ContentType: ContentType(name),
		ModTime:     info.ModTime().UTC(),
	}
}

var mediaTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
}

// ContentType guesses a media type from the file extension.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct := subtitle.ContentType(ext); ct != "application/octet-stream" {
		return ct
	}
	if ct, ok := mediaTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
