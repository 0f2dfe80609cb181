package jobs

import (
	"context"
	"errors"
	"time"
)

var ErrPoolStopped = errors.New("worker pool stopped")

type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

func (s Status) terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCanceled
}

// Func is a unit of blocking work executed by a pool worker.
type Func func(ctx context.Context) (any, error)

// Task is a point-in-time view of submitted work.
type Task struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Stats struct {
	Workers   int `json:"workers"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}
