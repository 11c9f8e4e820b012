// Package gamelock serializes move submissions per game.
//
// The store already refuses a second move on an occupied cell, so the lock is
// about fairness and fewer aborted transactions, not correctness: moves for
// different games never wait on each other.
package gamelock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// ErrNotAcquired is returned when ctx ends before the lock is obtained.
var ErrNotAcquired = errors.New("game lock not acquired")

// Locker hands out an exclusive section for one game id.
type Locker interface {
	Lock(ctx context.Context, gameID int64) (unlock func(), err error)
}

type entry struct {
	ch   chan struct{} // capacity 1; a value in the channel means held
	refs int
}

// Local is an in-process keyed mutex. Entries live only while someone holds or
// waits for them.
type Local struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

func NewLocal() *Local {
	return &Local{entries: make(map[int64]*entry)}
}

func (l *Local) Lock(ctx context.Context, gameID int64) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[gameID]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.entries[gameID] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(gameID, e)
		return nil, fmt.Errorf("%w: game %d: %v", ErrNotAcquired, gameID, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(gameID, e)
		})
	}, nil
}

func (l *Local) release(gameID int64, e *entry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, gameID)
	}
	l.mu.Unlock()
}

// size is the number of live entries.
func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func key(gameID int64) string { return "tictactoe:lock:game:" + strconv.FormatInt(gameID, 10) }
