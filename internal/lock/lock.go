// Package lock serializes billing runs. A second run that finds the lock held
// fails fast with a CONFLICT error instead of waiting.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	apperrors "github.com/rgehrsitz/rentgo/internal/domain/errors"
)

// BillingLock is the lock name every mutating entry point takes.
const BillingLock = "rentgo:billing"

// ErrHeld is returned when another holder owns the lock.
var ErrHeld = apperrors.AppError{Code: apperrors.CodeConflict, Message: "billing run in progress"}

// IsHeld reports whether err is a refusal to hand out a lock someone else
// holds, as opposed to any other CONFLICT.
func IsHeld(err error) bool {
	var appErr apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeConflict {
		return false
	}
	_, ok := appErr.Details["lock"]
	return ok
}

// Release gives a lock back.
type Release func(ctx context.Context) error

// Locker hands out named, non-blocking locks.
type Locker interface {
	Acquire(ctx context.Context, name string) (Release, error)
}

// Local is an in-process Locker for single-host deployments and tests.
type Local struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocal returns an empty in-process locker.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*sync.Mutex)}
}

func (l *Local) Acquire(ctx context.Context, name string) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	m, ok := l.locks[name]
	if !ok {
		m = &sync.Mutex{}
		l.locks[name] = m
	}
	l.mu.Unlock()

	if !m.TryLock() {
		return nil, ErrHeld.WithDetail("lock", name)
	}
	var once sync.Once
	return func(context.Context) error {
		released := false
		once.Do(func() {
			m.Unlock()
			released = true
		})
		if !released {
			return fmt.Errorf("lock %s already released", name)
		}
		return nil
	}, nil
}
