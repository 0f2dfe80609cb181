package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/jobs"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/media"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/persistence"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/storage"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/subtitle"
	"github.com/Muzafar-sm/AI-subtitle-Generator/pkg/file"
	"github.com/Muzafar-sm/AI-subtitle-Generator/pkg/log"
)

type Option func(*Service)

// WithPool exposes the shared worker pool through Jobs and Stats.
func WithPool(p *jobs.Pool) Option {
	return func(s *Service) {
		s.pool = p
	}
}

// WithTranscribeLanguage sets the language hint passed to the speech model.
func WithTranscribeLanguage(lang string) Option {
	return func(s *Service) {
		s.transcribeLanguage = lang
	}
}

// WithDefaultTargetLanguage is used when a generate request names no target.
func WithDefaultTargetLanguage(lang string) Option {
	return func(s *Service) {
		if strings.TrimSpace(lang) != "" {
			s.defaultTarget = lang
		}
	}
}

func WithSourceLanguage(lang string) Option {
	return func(s *Service) {
		if strings.TrimSpace(lang) != "" {
			s.sourceLanguage = lang
		}
	}
}

// Service runs the upload, generate, edit and download flows on top of a
// Store, a Repository and the transcription and translation stages.
type Service struct {
	store       storage.Store
	repo        Repository
	transcriber Transcriber
	translator  Translator
	pool        *jobs.Pool

	transcribeLanguage string
	sourceLanguage     string
	defaultTarget      string

	group singleflight.Group
	now   func() time.Time
	newID func() string
}

func New(
	store storage.Store,
	repo Repository,
	transcriber Transcriber,
	translator Translator,
	opts ...Option,
) *Service {
	s := &Service{
		store:          store,
		repo:           repo,
		transcriber:    transcriber,
		translator:     translator,
		sourceLanguage: "auto",
		defaultTarget:  DefaultTargetLanguage,
		now:            func() time.Time { return time.Now().UTC() },
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload stores r under the base name of rawName, replacing any earlier
// file of the same name.
func (s *Service) Upload(ctx context.Context, rawName string, r io.Reader) (*UploadResult, error) {
	name, err := storage.BaseName(rawName)
	if err != nil {
		return nil, WrapError(err, KindInvalidArgument, "")
	}

	obj, err := s.store.Put(ctx, name, r)
	if err != nil {
		return nil, WrapError(err, KindInternal, "save upload").WithContext("filename", name)
	}
	log.Info("Stored upload %s (%d bytes, version %d)", name, obj.Size, obj.Version)

	result := &UploadResult{
		Filename: name,
		Status:   StatusSuccess,
		Size:     obj.Size,
		Version:  obj.Version,
	}

	path, err := s.store.Path(name)
	if err != nil {
		return result, nil
	}
	info, err := media.Probe(path)
	switch {
	case err == nil:
		result.Duration = info.Duration.Seconds()
		if err := s.repo.SetObjectDuration(ctx, name, info.Duration); err != nil {
			log.Warn("Failed to record duration of %s: %v", name, err)
		}
	case errors.Is(err, media.ErrNotWAV):
	default:
		log.Warn("Failed to probe %s: %v", name, err)
	}
	return result, nil
}

// Generate transcribes an uploaded file, optionally translates the captions
// and writes them as <stem>.<format>. Identical concurrent calls share one
// run.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*SubtitleResult, error) {
	name, err := storage.BaseName(req.Filename)
	if err != nil {
		return nil, WrapError(err, KindInvalidArgument, "")
	}
	format, err := parseFormat(req.OutputFormat)
	if err != nil {
		return nil, err
	}
	target := strings.TrimSpace(req.TargetLanguage)
	if target == "" {
		target = s.defaultTarget
	}
	if req.Translate {
		if _, err := language.Parse(target); err != nil {
			return nil, NewErrorWithCause(KindInvalidArgument, fmt.Sprintf("invalid target language %q", target), err)
		}
	}
	if err := s.requireFile(ctx, name); err != nil {
		return nil, err
	}

	// The shared run outlives its callers; each caller waits on its own ctx.
	key := fmt.Sprintf("%s|%s|%s|%t", name, format, target, req.Translate)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.generate(context.WithoutCancel(ctx), name, format, target, req.Translate)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, WrapError(ctx.Err(), KindInternal, "generate canceled")
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		log.Debug("Generate for %s shared an in-flight run", name)
	}

	result := *res.Val.(*SubtitleResult)
	result.Captions = subtitle.Clone(result.Captions)
	return &result, nil
}

func (s *Service) generate(
	ctx context.Context,
	name string,
	format subtitle.Format,
	target string,
	translate bool,
) (*SubtitleResult, error) {
	entry := persistence.Request{
		ID:             s.newID(),
		Kind:           persistence.RequestGenerate,
		Filename:       name,
		Format:         string(format),
		TargetLanguage: target,
		Status:         persistence.RequestRunning,
		CreatedAt:      s.now(),
	}
	s.recordRequest(ctx, entry)

	result, err := s.runGenerate(ctx, name, format, target, translate)
	s.finishRequest(ctx, entry, result, err)
	if err != nil {
		log.Error("Generate for %s failed: %v", name, err)
		return nil, err
	}
	result.RequestID = entry.ID
	return result, nil
}

func (s *Service) runGenerate(
	ctx context.Context,
	name string,
	format subtitle.Format,
	target string,
	translate bool,
) (*SubtitleResult, error) {
	mediaPath, err := s.store.Path(name)
	if err != nil {
		return nil, WrapError(err, KindInvalidArgument, "")
	}

	start := time.Now()
	captions, err := s.transcriber.Transcribe(ctx, mediaPath, s.transcribeLanguage)
	if err != nil {
		return nil, WrapError(err, KindUpstream, "")
	}
	log.Info("Transcribed %s into %d captions in %s", name, len(captions), time.Since(start).Round(time.Millisecond))

	detected := ""
	if tag := subtitle.DetectLanguage(captions); tag != language.Und {
		detected = tag.String()
	}

	translated := false
	if translate && !strings.EqualFold(target, DefaultTargetLanguage) {
		out, report := s.translator.TranslateWithReport(ctx, captions, target, s.sourceLanguage)
		captions = out
		translated = true
		log.Info("Translated %s to %s: %d batches, %d kept original text", name, target, report.Batches, len(report.Degraded))
	}
	artifact, err := s.writeArtifact(ctx, file.SiblingName(name, "", format.Ext()), captions, format)
	if err != nil {
		return nil, err
	}

	lang := detected
	if translated {
		lang = target
	}
	if err := s.repo.PutCaptionSet(ctx, persistence.CaptionSet{
		Source:           name,
		Format:           string(format),
		Language:         lang,
		DetectedLanguage: detected,
		Captions:         captions,
		UpdatedAt:        s.now(),
	}); err != nil {
		return nil, WrapError(err, KindInternal, "save captions")
	}

	return &SubtitleResult{
		Status:           StatusSuccess,
		SubtitleFile:     artifact,
		Captions:         captions,
		DetectedLanguage: detected,
		Translated:       translated,
	}, nil
}

// Edit applies index-addressed overwrites to the captions last produced for
// req.Filename and writes them as <stem>_edited.<format>. The edited
// captions become the new state for later edits.
func (s *Service) Edit(ctx context.Context, req EditRequest) (*SubtitleResult, error) {
	name, err := storage.BaseName(req.Filename)
	if err != nil {
		return nil, WrapError(err, KindInvalidArgument, "")
	}
	format, err := parseFormat(req.OutputFormat)
	if err != nil {
		return nil, err
	}
	if err := s.requireFile(ctx, name); err != nil {
		return nil, err
	}

	entry := persistence.Request{
		ID:        s.newID(),
		Kind:      persistence.RequestEdit,
		Filename:  name,
		Format:    string(format),
		Status:    persistence.RequestRunning,
		CreatedAt: s.now(),
	}
	s.recordRequest(ctx, entry)

	result, err := s.runEdit(ctx, name, format, req.Edits)
	s.finishRequest(ctx, entry, result, err)
	if err != nil {
		log.Error("Edit for %s failed: %v", name, err)
		return nil, err
	}
	result.RequestID = entry.ID
	return result, nil
}

func (s *Service) runEdit(ctx context.Context, name string, format subtitle.Format, edits []subtitle.Edit) (*SubtitleResult, error) {
	set, err := s.loadCaptions(ctx, name)
	if err != nil {
		return nil, err
	}

	if err := validateEdits(set.Captions, edits); err != nil {
		return nil, err
	}
	captions := subtitle.ApplyEdits(set.Captions, edits)
	artifact, err := s.writeArtifact(ctx, file.SiblingName(name, editedSuffix, format.Ext()), captions, format)
	if err != nil {
		return nil, err
	}

	set.Captions = captions
	set.Format = string(format)
	set.UpdatedAt = s.now()
	if err := s.repo.PutCaptionSet(ctx, set); err != nil {
		return nil, WrapError(err, KindInternal, "save captions")
	}
	log.Info("Applied %d edits to %s", len(edits), name)

	return &SubtitleResult{
		Status:           StatusSuccess,
		SubtitleFile:     artifact,
		Captions:         captions,
		DetectedLanguage: set.DetectedLanguage,
	}, nil
}

// validateEdits checks the timing of edits that will overwrite a caption.
// Edits for indexes not present are no-ops and are not checked.
func validateEdits(captions []subtitle.Caption, edits []subtitle.Edit) error {
	indexes := make(map[int]struct{}, len(captions))
	for _, c := range captions {
		indexes[c.Index] = struct{}{}
	}
	for _, e := range edits {
		if _, ok := indexes[e.Index]; !ok {
			continue
		}
		if err := e.Validate(); err != nil {
			return NewErrorWithCause(KindInvalidArgument, err.Error(), err)
		}
	}
	return nil
}

// loadCaptions returns the stored caption set for source. Without one it
// falls back to parsing a subtitle file: source itself when it is one, then
// <stem>.srt, <stem>.vtt and <stem>.ass.
func (s *Service) loadCaptions(ctx context.Context, source string) (persistence.CaptionSet, error) {
	set, found, err := s.repo.GetCaptionSet(ctx, source)
	if err != nil {
		return persistence.CaptionSet{}, WrapError(err, KindInternal, "load captions")
	}
	if found {
		return set, nil
	}

	candidates := make([]string, 0, 4)
	if _, err := subtitle.ParseFormat(filepath.Ext(source)); err == nil {
		candidates = append(candidates, source)
	}
	for _, f := range []subtitle.Format{subtitle.FormatSRT, subtitle.FormatVTT, subtitle.FormatASS} {
		candidates = append(candidates, file.SiblingName(source, "", f.Ext()))
	}

	for _, name := range candidates {
		captions, err := s.readArtifact(ctx, name)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return persistence.CaptionSet{}, err
		}
		log.Info("Loaded %d captions for %s from %s", len(captions), source, name)
		return persistence.CaptionSet{Source: source, Captions: captions}, nil
	}
	return persistence.CaptionSet{}, NewError(KindNotFound, fmt.Sprintf("no subtitles found for %s, generate them first", source))
}

func (s *Service) readArtifact(ctx context.Context, name string) ([]subtitle.Caption, error) {
	format, err := subtitle.ParseFormat(filepath.Ext(name))
	if err != nil {
		return nil, WrapError(err, KindInvalidArgument, "")
	}
	rc, _, err := s.store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, WrapError(err, KindInternal, "read "+name)
	}
	captions, err := subtitle.Parse(data, format)
	if err != nil {
		return nil, NewErrorWithCause(KindInvalidArgument, fmt.Sprintf("cannot parse %s", name), err)
	}
	return captions, nil
}

func (s *Service) writeArtifact(ctx context.Context, name string, captions []subtitle.Caption, format subtitle.Format) (string, error) {
	data, err := subtitle.Serialize(captions, format)
	if err != nil {
		return "", WrapError(err, KindInternal, "serialize subtitles")
	}
	obj, err := s.store.Put(ctx, name, bytes.NewReader(data))
	if err != nil {
		return "", WrapError(err, KindInternal, "write subtitle file")
	}
	log.Info("Wrote %s (%d bytes, version %d)", name, obj.Size, obj.Version)
	return name, nil
}

// Open returns the stored file for download together with the media type
// derived from its extension.
func (s *Service) Open(ctx context.Context, name string) (io.ReadCloser, storage.Object, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, storage.Object{}, WrapError(err, KindInvalidArgument, "")
	}
	rc, obj, err := s.store.Open(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.Object{}, NewErrorWithCause(KindNotFound, "File not found", err)
		}
		return nil, storage.Object{}, WrapError(err, KindInternal, "open file")
	}
	obj.ContentType = subtitle.ContentType(filepath.Ext(name))
	return rc, obj, nil
}

// Uploads lists every stored file, with catalog versions where known.
func (s *Service) Uploads(ctx context.Context) ([]storage.Object, error) {
	objects, err := s.store.List(ctx)
	if err != nil {
		return nil, WrapError(err, KindInternal, "list files")
	}
	records, err := s.repo.ListObjects(ctx)
	if err != nil {
		log.Warn("Failed to read catalog: %v", err)
		return objects, nil
	}
	byName := make(map[string]persistence.ObjectRecord, len(records))
	for _, rec := range records {
		byName[rec.Name] = rec
	}
	for i := range objects {
		if rec, ok := byName[objects[i].Name]; ok {
			objects[i].Version = rec.Version
			objects[i].SHA256 = rec.SHA256
		}
	}
	return objects, nil
}

func (s *Service) History(ctx context.Context, limit int) ([]persistence.Request, error) {
	ret, err := s.repo.ListRequests(ctx, limit)
	if err != nil {
		return nil, WrapError(err, KindInternal, "list history")
	}
	return ret, nil
}

// PruneHistory removes finished history entries older than retention.
func (s *Service) PruneHistory(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.repo.PruneRequests(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, WrapError(err, KindInternal, "prune history")
	}
	if n > 0 {
		log.Info("Pruned %d history entries older than %s", n, retention)
	}
	return n, nil
}

func (s *Service) Jobs() []*jobs.Task {
	if s.pool == nil {
		return []*jobs.Task{}
	}
	return s.pool.List()
}

func (s *Service) Stats() jobs.Stats {
	if s.pool == nil {
		return jobs.Stats{}
	}
	return s.pool.Stats()
}

func (s *Service) requireFile(ctx context.Context, name string) error {
	if _, err := s.store.Stat(ctx, name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewErrorWithCause(KindNotFound, "File not found", err)
		}
		return WrapError(err, KindInternal, "stat file")
	}
	return nil
}

// recordRequest writes history with a context that outlives a disconnected
// client, so the final status is still stored.
func (s *Service) recordRequest(ctx context.Context, entry persistence.Request) {
	entry.UpdatedAt = s.now()
	if err := s.repo.UpsertRequest(context.WithoutCancel(ctx), entry); err != nil {
		log.Warn("Failed to record request %s: %v", entry.ID, err)
	}
}

func (s *Service) finishRequest(ctx context.Context, entry persistence.Request, result *SubtitleResult, err error) {
	if err != nil {
		entry.Status = persistence.RequestFailed
		entry.Error = Message(err)
	} else {
		entry.Status = persistence.RequestSuccess
		entry.Artifact = result.SubtitleFile
		entry.CaptionCount = len(result.Captions)
		entry.Translated = result.Translated
		entry.DetectedLanguage = result.DetectedLanguage
	}
	s.recordRequest(ctx, entry)
}

func parseFormat(name string) (subtitle.Format, error) {
	if strings.TrimSpace(name) == "" {
		return DefaultOutputFormat, nil
	}
	format, err := subtitle.ParseFormat(name)
	if err != nil {
		return "", WrapError(err, KindInvalidArgument, "")
	}
	return format, nil
}
