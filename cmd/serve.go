package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/config"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/httpapi"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/jobs"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/persistence"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/service"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/storage"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/transcribe"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/translate"
	"github.com/Muzafar-sm/AI-subtitle-Generator/pkg/icron"
	"github.com/Muzafar-sm/AI-subtitle-Generator/pkg/log"
)

const defaultShutdownTimeout = 10 * time.Second

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func newServeCommand(cmdCtx *commandContext) *cobra.Command {
	var uiDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := buildApp(cfg, uiDir)
			if err != nil {
				return err
			}
			defer app.Close()

			engine := cron.New()
			maint := newMaintenance(app.svc, engine, cfg.Maintenance)
			return runWithComponents(ctx, cfg, maint, engine, app.server)
		},
	}
	cmd.Flags().StringVar(&uiDir, "ui-dir", "", "Serve a built web UI from this directory")
	return cmd
}

// app is the wired service graph behind serve.
type app struct {
	repo   *persistence.SQLiteStore
	pool   *jobs.Pool
	svc    *service.Service
	server *httpapi.Server
}

func buildApp(cfg *config.Config, uiDir string) (*app, error) {
	repo, err := persistence.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store, err := storage.NewDirStore(cfg.Storage.UploadDir,
		storage.WithCatalog(repo),
		storage.WithMaxSize(cfg.HTTP.MaxUploadBytes()),
	)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("open upload directory: %w", err)
	}

	model, err := transcribe.NewModel(cfg.Transcribe)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("set up transcription: %w", err)
	}
	provider, err := translate.NewProvider(cfg.Translate)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("set up translation: %w", err)
	}

	pool := jobs.NewPool(cfg.Workers.Count)
	batcher := translate.NewBatcher(provider,
		translate.WithBatchSize(cfg.Translate.BatchSize),
		translate.WithDelay(cfg.Translate.BatchDelay),
		translate.WithPool(pool),
	)

	svc := service.New(store, repo, transcribe.NewAdapter(model, pool), batcher,
		service.WithPool(pool),
		service.WithTranscribeLanguage(cfg.Transcribe.Language),
		service.WithSourceLanguage(cfg.Translate.SourceLanguage),
		service.WithDefaultTargetLanguage(cfg.Translate.TargetLanguage),
	)

	server := httpapi.NewServer(svc,
		httpapi.WithAllowedOrigin(cfg.HTTP.AllowedOrigin),
		httpapi.WithMaxUploadBytes(cfg.HTTP.MaxUploadBytes()),
		httpapi.WithUI(uiDir, uiDir != ""),
	)

	log.Info("Using %s transcription and %s translation with %d workers",
		cfg.Transcribe.Backend, cfg.Translate.Provider, pool.Workers())

	return &app{
		repo:   repo,
		pool:   pool,
		svc:    svc,
		server: server,
	}, nil
}

func (a *app) Close() {
	a.pool.Stop()
	if err := a.repo.Close(); err != nil {
		log.Warn("Failed to close database: %v", err)
	}
}

type historyPruner interface {
	PruneHistory(ctx context.Context, retention time.Duration) (int64, error)
}

type cronScheduler interface {
	AddFunc(spec string, cmd func()) (cron.EntryID, error)
}

// maintenance prunes old history entries on a cron schedule.
type maintenance struct {
	pruner    historyPruner
	cron      cronScheduler
	expr      string
	retention time.Duration
	now       func() time.Time
}

func newMaintenance(pruner historyPruner, c cronScheduler, cfg config.MaintenanceConfig) *maintenance {
	return &maintenance{
		pruner:    pruner,
		cron:      c,
		expr:      cfg.CronExpr,
		retention: cfg.HistoryRetention,
		now:       time.Now,
	}
}

func (m *maintenance) Schedule(ctx context.Context) error {
	if m.expr == "" || m.retention <= 0 {
		log.Info("History pruning disabled")
		return nil
	}

	info, err := icron.GetTriggerInfo(m.expr, m.now())
	if err != nil {
		return err
	}
	if _, err := m.cron.AddFunc(m.expr, func() { m.run(ctx) }); err != nil {
		return fmt.Errorf("schedule history pruning: %w", err)
	}
	log.Info("History pruning scheduled: %s", info)
	return nil
}

func (m *maintenance) run(ctx context.Context) {
	err := service.SafeExecute(func() error {
		_, err := m.pruner.PruneHistory(ctx, m.retention)
		return err
	})
	if err != nil {
		log.Error("History pruning failed: %v", err)
	}
}

// runWithComponents starts the scheduler, cron engine and HTTP server, and
// shuts them down when ctx is canceled or the server fails.
func runWithComponents(
	ctx context.Context,
	cfg *config.Config,
	sched scheduler,
	engine cronEngine,
	srv httpServer,
) error {
	if err := sched.Schedule(ctx); err != nil {
		return err
	}
	engine.Start()
	defer stopCron(engine, shutdownTimeout(cfg))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := cfg.HTTP.Addr()
		log.Info("Listening on %s", addr)
		if err := srv.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout(cfg))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		log.Info("HTTP server stopped")
		return nil
	})
	return g.Wait()
}

func stopCron(engine cronEngine, timeout time.Duration) {
	select {
	case <-engine.Stop().Done():
	case <-time.After(timeout):
		log.Warn("Timed out waiting for scheduled jobs to finish")
	}
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.HTTP.ShutdownTimeout > 0 {
		return cfg.HTTP.ShutdownTimeout
	}
	return defaultShutdownTimeout
}
