package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/storage"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type SQLiteStore struct {
	db *sql.DB
}

var _ storage.Catalog = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		version := migrationVersion(entry.Name())
		if entry.IsDir() || version <= 0 {
			continue
		}
		var applied int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if applied > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion reads the numeric prefix of a migration file, "001_init.sql" → 1.
func migrationVersion(name string) int {
	end := strings.IndexFunc(name, func(r rune) bool { return r < '0' || r > '9' })
	if end == 0 {
		return 0
	}
	if end < 0 {
		end = len(name)
	}
	n, _ := strconv.Atoi(name[:end])
	return n
}

// RecordObject upserts the catalog row for obj and returns its version,
// which starts at 1 and grows by one on every overwrite.
func (s *SQLiteStore) RecordObject(ctx context.Context, obj storage.Object) (int64, error) {
	now := time.Now().UTC()
	var version int64
	err := s.db.QueryRowContext(
		ctx,
		`INSERT INTO objects (name, size, sha256, content_type, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			size=excluded.size,
			sha256=excluded.sha256,
			content_type=excluded.content_type,
			duration_ms=0,
			version=objects.version + 1,
			updated_at=excluded.updated_at
		 RETURNING version`,
		obj.Name,
		obj.Size,
		obj.SHA256,
		obj.ContentType,
		now,
		now,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("record object %s: %w", obj.Name, err)
	}
	return version, nil
}

func (s *SQLiteStore) SetObjectDuration(ctx context.Context, name string, duration time.Duration) error {
	_, err := s.db.ExecContext(ctx, `UPDATE objects SET duration_ms = ? WHERE name = ?`, duration.Milliseconds(), name)
	return err
}

func (s *SQLiteStore) GetObject(ctx context.Context, name string) (ObjectRecord, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT name, size, sha256, content_type, duration_ms, version, created_at, updated_at
		 FROM objects
		 WHERE name = ?`,
		name,
	)
	rec, err := scanObject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ObjectRecord{}, false, nil
		}
		return ObjectRecord{}, false, err
	}
	return rec, true, nil
}

// ListObjects returns catalog rows, most recently written first.
func (s *SQLiteStore) ListObjects(ctx context.Context) ([]ObjectRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT name, size, sha256, content_type, duration_ms, version, created_at, updated_at
		 FROM objects
		 ORDER BY updated_at DESC, name ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]ObjectRecord, 0)
	for rows.Next() {
		rec, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, rec)
	}
	return ret, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObject(row rowScanner) (ObjectRecord, error) {
	var rec ObjectRecord
	err := row.Scan(
		&rec.Name,
		&rec.Size,
		&rec.SHA256,
		&rec.ContentType,
		&rec.DurationMS,
		&rec.Version,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	return rec, err
}

func (s *SQLiteStore) PutCaptionSet(ctx context.Context, set CaptionSet) error {
	payload, err := json.Marshal(set.Captions)
	if err != nil {
		return err
	}
	updatedAt := set.UpdatedAt.UTC()
	if set.UpdatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO caption_sets (source, format, language, detected_language, captions_json, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source) DO UPDATE SET
			format=excluded.format,
			language=excluded.language,
			detected_language=excluded.detected_language,
			captions_json=excluded.captions_json,
			updated_at=excluded.updated_at`,
		set.Source,
		set.Format,
		set.Language,
		set.DetectedLanguage,
		string(payload),
		updatedAt,
	)
	return err
}

func (s *SQLiteStore) GetCaptionSet(ctx context.Context, source string) (CaptionSet, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT source, format, language, detected_language, captions_json, updated_at
		 FROM caption_sets
		 WHERE source = ?`,
		source,
	)
	var set CaptionSet
	var payload string
	if err := row.Scan(&set.Source, &set.Format, &set.Language, &set.DetectedLanguage, &payload, &set.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CaptionSet{}, false, nil
		}
		return CaptionSet{}, false, err
	}
	if err := json.Unmarshal([]byte(payload), &set.Captions); err != nil {
		return CaptionSet{}, false, fmt.Errorf("decode captions for %s: %w", source, err)
	}
	return set, true, nil
}

func (s *SQLiteStore) UpsertRequest(ctx context.Context, req Request) error {
	if req.ID == "" {
		return fmt.Errorf("request id is required")
	}
	now := time.Now().UTC()
	createdAt := req.CreatedAt.UTC()
	if req.CreatedAt.IsZero() {
		createdAt = now
	}
	updatedAt := req.UpdatedAt.UTC()
	if req.UpdatedAt.IsZero() {
		updatedAt = now
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO requests (
			id, kind, filename, artifact, format, target_language, translated, detected_language,
			caption_count, status, error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			artifact=excluded.artifact,
			format=excluded.format,
			target_language=excluded.target_language,
			translated=excluded.translated,
			detected_language=excluded.detected_language,
			caption_count=excluded.caption_count,
			status=excluded.status,
			error=excluded.error,
			updated_at=excluded.updated_at`,
		req.ID,
		string(req.Kind),
		req.Filename,
		req.Artifact,
		req.Format,
		req.TargetLanguage,
		boolToInt(req.Translated),
		req.DetectedLanguage,
		req.CaptionCount,
		string(req.Status),
		req.Error,
		createdAt,
		updatedAt,
	)
	return err
}

// ListRequests returns up to limit history entries, newest first.
func (s *SQLiteStore) ListRequests(ctx context.Context, limit int) ([]Request, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, kind, filename, artifact, format, target_language, translated, detected_language,
			caption_count, status, error, created_at, updated_at
		 FROM requests
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]Request, 0)
	for rows.Next() {
		var req Request
		var kind, status string
		var translated int
		if err := rows.Scan(
			&req.ID,
			&kind,
			&req.Filename,
			&req.Artifact,
			&req.Format,
			&req.TargetLanguage,
			&translated,
			&req.DetectedLanguage,
			&req.CaptionCount,
			&status,
			&req.Error,
			&req.CreatedAt,
			&req.UpdatedAt,
		); err != nil {
			return nil, err
		}
		req.Kind = RequestKind(kind)
		req.Status = RequestStatus(status)
		req.Translated = translated == 1
		ret = append(ret, req)
	}
	return ret, rows.Err()
}

// PruneRequests deletes finished history entries created before cutoff.
func (s *SQLiteStore) PruneRequests(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM requests WHERE created_at < ? AND status != ?`,
		cutoff.UTC(),
		string(RequestRunning),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
