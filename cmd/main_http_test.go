package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/config"
)

type fakeScheduler struct {
	called bool
	err    error
}

func (f *fakeScheduler) Schedule(context.Context) error {
	f.called = true
	return f.err
}

type fakeCron struct {
	started bool
	stopped bool
}

func (f *fakeCron) Start() {
	f.started = true
}

func (f *fakeCron) Stop() context.Context {
	f.stopped = true
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

type fakeHTTP struct {
	listenCalled chan struct{}
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	listenErr    error
	addr         string
}

func newFakeHTTP() *fakeHTTP {
	return &fakeHTTP{
		listenCalled: make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

func (f *fakeHTTP) ListenAndServe(addr string) error {
	f.addr = addr
	close(f.listenCalled)
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.shutdownCh
	return http.ErrServerClosed
}

func (f *fakeHTTP) Shutdown(context.Context) error {
	f.shutdownOnce.Do(func() { close(f.shutdownCh) })
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{
			Host:            "127.0.0.1",
			Port:            8000,
			ShutdownTimeout: time.Second,
		},
	}
}

func TestMain_StartsCronAndHTTP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := &fakeScheduler{}
	cronEngine := &fakeCron{}
	httpSrv := newFakeHTTP()

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- runWithComponents(ctx, testConfig(), scheduler, cronEngine, httpSrv)
	}()

	select {
	case <-httpSrv.listenCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("http server did not start")
	}

	cancel()

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runWithComponents did not exit after cancellation")
	}

	assert.True(t, scheduler.called)
	assert.True(t, cronEngine.started)
	assert.True(t, cronEngine.stopped)
	assert.Equal(t, "127.0.0.1:8000", httpSrv.addr)
}

func TestMain_ListenFailureStopsEverything(t *testing.T) {
	cronEngine := &fakeCron{}
	httpSrv := newFakeHTTP()
	httpSrv.listenErr = errors.New("address already in use")

	err := runWithComponents(context.Background(), testConfig(), &fakeScheduler{}, cronEngine, httpSrv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address already in use")
	assert.True(t, cronEngine.stopped)
}

func TestMain_ScheduleFailureSkipsStartup(t *testing.T) {
	cronEngine := &fakeCron{}
	httpSrv := newFakeHTTP()

	err := runWithComponents(context.Background(), testConfig(), &fakeScheduler{err: errors.New("bad cron")}, cronEngine, httpSrv)
	require.EqualError(t, err, "bad cron")
	assert.False(t, cronEngine.started)
	select {
	case <-httpSrv.listenCalled:
		t.Fatal("http server should not start")
	default:
	}
}

type fakePruner struct {
	mu        sync.Mutex
	calls     int
	retention time.Duration
	panicMsg  string
}

func (f *fakePruner) PruneHistory(_ context.Context, retention time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.retention = retention
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return 3, nil
}

type recordingCron struct {
	specs []string
	funcs []func()
}

func (r *recordingCron) AddFunc(spec string, cmd func()) (cron.EntryID, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return 0, err
	}
	r.specs = append(r.specs, spec)
	r.funcs = append(r.funcs, cmd)
	return cron.EntryID(len(r.funcs)), nil
}

func TestMaintenance_SchedulesPruning(t *testing.T) {
	pruner := &fakePruner{}
	rc := &recordingCron{}
	m := newMaintenance(pruner, rc, config.MaintenanceConfig{
		CronExpr:         "0 3 * * *",
		HistoryRetention: 48 * time.Hour,
	})

	require.NoError(t, m.Schedule(context.Background()))
	require.Len(t, rc.funcs, 1)
	assert.Equal(t, []string{"0 3 * * *"}, rc.specs)

	rc.funcs[0]()
	assert.Equal(t, 1, pruner.calls)
	assert.Equal(t, 48*time.Hour, pruner.retention)
}

func TestMaintenance_RecoversFromPanic(t *testing.T) {
	pruner := &fakePruner{panicMsg: "boom"}
	rc := &recordingCron{}
	m := newMaintenance(pruner, rc, config.MaintenanceConfig{
		CronExpr:         "@daily",
		HistoryRetention: time.Hour,
	})
	require.NoError(t, m.Schedule(context.Background()))

	assert.NotPanics(t, rc.funcs[0])
	assert.Equal(t, 1, pruner.calls)
}

func TestMaintenance_DisabledAndInvalid(t *testing.T) {
	rc := &recordingCron{}

	disabled := newMaintenance(&fakePruner{}, rc, config.MaintenanceConfig{})
	require.NoError(t, disabled.Schedule(context.Background()))
	assert.Empty(t, rc.funcs)

	invalid := newMaintenance(&fakePruner{}, rc, config.MaintenanceConfig{
		CronExpr:         "every day",
		HistoryRetention: time.Hour,
	})
	require.Error(t, invalid.Schedule(context.Background()))
	assert.Empty(t, rc.funcs)
}
