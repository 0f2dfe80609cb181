package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 25 * time.Millisecond

// keyedLocker hands out one mutex per key and backs it with a lock file so
// separate processes sharing the directory also take turns.
type keyedLocker struct {
	dir string

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocker(dir string) *keyedLocker {
	return &keyedLocker{dir: dir, locks: make(map[string]*keyLock)}
}

func (k *keyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	fl := flock.New(filepath.Join(k.dir, key+".lock"))
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		k.release(key, l)
		if err == nil {
			err = fmt.Errorf("lock file busy")
		}
		return nil, err
	}

	return func() {
		_ = fl.Unlock()
		k.release(key, l)
	}, nil
}

func (k *keyedLocker) release(key string, l *keyLock) {
	l.mu.Unlock()

	k.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}
