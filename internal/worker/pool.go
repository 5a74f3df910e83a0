package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrStopped   = errors.New("pool stopped")
)

// Job is a unit of background work. Run receives a context that is cancelled
// when the job times out or the pool shuts down.
type Job struct {
	ID   string
	Name string
	Run  func(ctx context.Context)
}

// Pool runs submitted jobs on a fixed number of workers with a bounded queue.
type Pool struct {
	workers int
	timeout time.Duration
	queue   chan Job

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewPool creates a pool; Start must be called before jobs run.
func NewPool(workers, queueSize int, timeout time.Duration) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		workers: workers,
		timeout: timeout,
		queue:   make(chan Job, queueSize),
	}
}

// Start launches the workers. They exit when ctx is done or Stop drains the queue.
func (p *Pool) Start(ctx context.Context) {
	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func(id int) {
			defer p.wg.Done()
			p.workerLoop(ctx, id)
		}(i)
	}
	log.Infof("worker pool started: %d workers, queue %d, timeout %v", p.workers, cap(p.queue), p.timeout)
}

// Submit enqueues fn without blocking and returns the job id.
func (p *Pool) Submit(name string, fn func(ctx context.Context)) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return "", ErrStopped
	}

	job := Job{ID: uuid.NewString(), Name: name, Run: fn}
	select {
	case p.queue <- job:
		log.Debugf("job %s (%s) queued", job.ID, name)
		return job.ID, nil
	default:
		return "", ErrQueueFull
	}
}

// Stop refuses new jobs and waits for queued ones to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
	log.Info("worker pool stopped")
}

func (p *Pool) workerLoop(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			p.runOne(ctx, id, job)
		}
	}
}

func (p *Pool) runOne(ctx context.Context, id int, job Job) {
	var cancel context.CancelFunc
	if p.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("job %s (%s) panicked on worker %d: %v", job.ID, job.Name, id, r)
		}
	}()

	job.Run(ctx)
	log.Infof("job %s (%s) finished on worker %d in %v", job.ID, job.Name, id, time.Since(start).Round(time.Millisecond))
}
