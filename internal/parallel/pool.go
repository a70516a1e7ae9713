// Package parallel fans a reducible operator tree out across a fixed
// worker pool.
//
// A root qualifies when it is a Merger and a Preparer and every path from
// it down to a random-access node passes only context-free nodes. The
// coordinator clones the root once per worker, binds each clone's
// random-access nodes to a disjoint partition of the shared interval,
// prepares the clones concurrently, merges them and splices the merged
// state back into the root.
package parallel

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/imcs/internal/errs"
)

// ErrPoolClosed is returned for work submitted after Close.
var ErrPoolClosed = errs.New(errs.CodeStoreNotInitialized, "worker pool closed")

// Pool is a fixed set of goroutines draining a job queue.
type Pool struct {
	numWorkers int
	workCh     chan func()
	stopCh     chan struct{}
	wg         sync.WaitGroup
	closed     atomic.Bool
	submitMu   sync.RWMutex
}

// NewPool starts numWorkers goroutines; numWorkers <= 0 selects
// runtime.GOMAXPROCS(0).
func NewPool(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	p := &Pool{
		numWorkers: numWorkers,
		workCh:     make(chan func(), numWorkers*2),
		stopCh:     make(chan struct{}),
	}

	p.wg.Add(numWorkers)
	for range numWorkers {
		go p.worker()
	}

	return p
}

// Workers returns the number of goroutines.
func (p *Pool) Workers() int { return p.numWorkers }

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			// drain what was queued before Close
			for {
				select {
				case job, ok := <-p.workCh:
					if !ok {
						return
					}
					job()
				default:
					return
				}
			}
		case job, ok := <-p.workCh:
			if !ok {
				return
			}
			job()
		}
	}
}

// Submit enqueues task. It blocks while the queue is full.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if p.closed.Load() {
		return ErrPoolClosed
	}

	select {
	case p.workCh <- task:
		return nil
	case <-p.stopCh:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes jobs on the pool and waits for all of them. Every job owns
// one result slot; a panicking job fills its slot with an error. Run
// returns the error of the lowest-indexed failed job.
func (p *Pool) Run(ctx context.Context, jobs []func() error) error {
	slots := make([]error, len(jobs))
	var wg sync.WaitGroup

	for i, job := range jobs {
		wg.Add(1)
		err := p.Submit(ctx, func() {
			defer wg.Done()
			slots[i] = guard(job)
		})
		if err != nil {
			wg.Done()
			slots[i] = err
			break
		}
	}
	wg.Wait()

	for _, err := range slots {
		if err != nil {
			return err
		}
	}
	return nil
}

func guard(job func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parallel: worker panic: %v", r)
		}
	}()
	return job()
}

// Close stops the workers after the queued jobs have run. It is
// idempotent.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}

	p.submitMu.Lock()
	close(p.stopCh)
	close(p.workCh)
	p.submitMu.Unlock()

	p.wg.Wait()
}
