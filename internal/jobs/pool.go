package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Muzafar-sm/AI-subtitle-Generator/pkg/log"
)

type Option func(*Pool)

// WithMaxTasks bounds how many task snapshots are retained for listing.
func WithMaxTasks(n int) Option {
	return func(p *Pool) {
		p.maxTasks = n
	}
}

// Pool runs submitted work on a fixed number of worker goroutines.
// Callers block on a Future while workers execute the call.
type Pool struct {
	workerCount int
	maxTasks    int

	mu        sync.RWMutex
	tasks     map[string]*Task
	idCounter uint64
	stopped   bool

	pending    chan *queued
	stopCh     chan struct{}
	stopOnce   sync.Once
	submitting sync.WaitGroup
	wg         sync.WaitGroup
}

type queued struct {
	id  string
	ctx context.Context
	fn  Func
	fut *Future
}

// Future holds the eventual result of a submitted Func.
type Future struct {
	id    string
	done  chan struct{}
	value any
	err   error
}

func (f *Future) ID() string { return f.id }

func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the task finishes or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) resolve(value any, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// NewPool starts workerCount workers. A non-positive count means one worker.
func NewPool(workerCount int, opts ...Option) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	p := &Pool{
		workerCount: workerCount,
		maxTasks:    1000,
		tasks:       make(map[string]*Task),
		pending:     make(chan *queued, 1024),
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	for range p.workerCount {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) Workers() int { return p.workerCount }

// Submit queues fn for execution. ctx is handed to fn and a task whose ctx is
// done before a worker picks it up is never started.
func (p *Pool) Submit(ctx context.Context, name string, fn Func) (*Future, error) {
	now := time.Now()

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil, ErrPoolStopped
	}
	id := fmt.Sprintf("task-%d", atomic.AddUint64(&p.idCounter, 1))
	p.tasks[id] = &Task{
		ID:        id,
		Name:      name,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.submitting.Add(1)
	p.mu.Unlock()
	defer p.submitting.Done()

	fut := &Future{id: id, done: make(chan struct{})}
	item := &queued{id: id, ctx: ctx, fn: fn, fut: fut}

	select {
	case p.pending <- item:
		return fut, nil
	case <-ctx.Done():
		p.finish(id, StatusCanceled, ctx.Err())
		return nil, ctx.Err()
	case <-p.stopCh:
		p.finish(id, StatusCanceled, ErrPoolStopped)
		return nil, ErrPoolStopped
	}
}

// Stop waits for running tasks and fails whatever is still queued.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()

		close(p.stopCh)
		p.submitting.Wait()
		p.wg.Wait()

		for {
			select {
			case item := <-p.pending:
				p.finish(item.id, StatusCanceled, ErrPoolStopped)
				item.fut.resolve(nil, ErrPoolStopped)
			default:
				return
			}
		}
	})
}

func (p *Pool) Get(id string) (*Task, bool) {
	p.mu.RLock()
	task, ok := p.tasks[id]
	p.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cloneTask(task), true
}

// List returns task snapshots, newest first.
func (p *Pool) List() []*Task {
	p.mu.RLock()
	ret := make([]*Task, 0, len(p.tasks))
	for _, task := range p.tasks {
		ret = append(ret, cloneTask(task))
	}
	p.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool {
		if ret[i].CreatedAt.Equal(ret[j].CreatedAt) {
			return ret[i].ID > ret[j].ID
		}
		return ret[i].CreatedAt.After(ret[j].CreatedAt)
	})
	return ret
}

func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := Stats{Workers: p.workerCount}
	for _, task := range p.tasks {
		switch task.Status {
		case StatusPending:
			stats.Pending++
		case StatusRunning:
			stats.Running++
		case StatusSuccess:
			stats.Succeeded++
		case StatusFailed, StatusCanceled:
			stats.Failed++
		}
	}
	return stats
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case item := <-p.pending:
			p.run(item)
		}
	}
}

func (p *Pool) run(item *queued) {
	if err := item.ctx.Err(); err != nil {
		p.finish(item.id, StatusCanceled, err)
		item.fut.resolve(nil, err)
		return
	}

	p.markRunning(item.id)
	value, err := p.call(item)
	if err != nil {
		p.finish(item.id, StatusFailed, err)
	} else {
		p.finish(item.id, StatusSuccess, nil)
	}
	item.fut.resolve(value, err)
}

func (p *Pool) call(item *queued) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Task %s panicked: %v", item.id, r)
			err = fmt.Errorf("task %s panicked: %v", item.id, r)
		}
	}()
	return item.fn(item.ctx)
}

func (p *Pool) markRunning(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if task, ok := p.tasks[id]; ok {
		task.Status = StatusRunning
		task.UpdatedAt = time.Now()
	}
}

func (p *Pool) finish(id string, status Status, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	task, ok := p.tasks[id]
	if !ok {
		return
	}
	task.Status = status
	task.Error = ""
	if err != nil {
		task.Error = err.Error()
	}
	task.UpdatedAt = time.Now()
	p.pruneTerminalTasksLocked()
}

func (p *Pool) pruneTerminalTasksLocked() {
	if p.maxTasks <= 0 || len(p.tasks) <= p.maxTasks {
		return
	}

	terminal := make([]*Task, 0, len(p.tasks))
	for _, task := range p.tasks {
		if task.Status.terminal() {
			terminal = append(terminal, task)
		}
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].UpdatedAt.Before(terminal[j].UpdatedAt)
	})

	toRemove := min(len(p.tasks)-p.maxTasks, len(terminal))
	for i := 0; i < toRemove; i++ {
		delete(p.tasks, terminal[i].ID)
	}
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}
	tmp := *task
	return &tmp
}

// Do runs fn on p and waits for its typed result. A nil pool runs fn inline.
func Do[T any](ctx context.Context, p *Pool, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p == nil {
		return fn(ctx)
	}

	fut, err := p.Submit(ctx, name, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	value, err := fut.Wait(ctx)
	if err != nil {
		return zero, err
	}
	ret, _ := value.(T)
	return ret, nil
}
