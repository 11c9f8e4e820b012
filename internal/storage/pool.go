package storage

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

var errPoolClosed = errors.New("storage worker pool closed")

type job struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// workerPool runs blocking storage work on a fixed set of goroutines so request
// goroutines only wait on a channel.
type workerPool struct {
	jobs    chan *job
	workers int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func newWorkerPool(workers, queue int) *workerPool {
	if workers <= 0 {
		workers = defaultWorkers()
	}
	if queue < 0 {
		queue = 0
	}
	p := &workerPool{jobs: make(chan *job, queue), workers: workers}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.loop()
	}
	return p
}

func (p *workerPool) loop() {
	defer p.wg.Done()
	for j := range p.jobs {
		if err := j.ctx.Err(); err != nil {
			j.done <- &Error{Reason: ReasonOffload, Op: "job cancelled before start", Err: err}
			continue
		}
		j.done <- run(j)
	}
}

func run(j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Reason: ReasonOffload, Op: "storage worker panicked", Err: fmt.Errorf("%v", r)}
		}
	}()
	return j.fn(j.ctx)
}

// submit queues fn. The returned channel always receives exactly one value.
func (p *workerPool) submit(ctx context.Context, fn func(ctx context.Context) error) <-chan error {
	done := make(chan error, 1)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		done <- &Error{Reason: ReasonOffload, Err: errPoolClosed}
		return done
	}
	select {
	case p.jobs <- &job{ctx: ctx, fn: fn, done: done}:
	case <-ctx.Done():
		done <- &Error{Reason: ReasonOffload, Op: "queue storage job", Err: ctx.Err()}
	}
	return done
}

// close stops accepting work and waits for queued jobs to finish.
func (p *workerPool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

func defaultWorkers() int {
	cpu := runtime.NumCPU()
	if cpu < 2 {
		return 2
	}
	if cpu > 8 {
		return 8
	}
	return cpu
}
