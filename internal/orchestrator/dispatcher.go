package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"thumbnailer/internal/domain"
)

// ErrQueueFull is returned when the dispatch queue cannot accept another job.
// The job stays pending and is picked up by the worker binary instead.
var ErrQueueFull = errors.New("dispatch queue full")

// Dispatcher runs generation jobs on a bounded pool of goroutines so the API
// handler can return immediately after the job reaches generating. Each job
// gets its own deadline detached from the originating request context;
// a client disconnect does not abort generation.
type Dispatcher struct {
	orch   *Orchestrator
	jobs   chan *domain.Thumbnail
	wg     sync.WaitGroup
	logger zerolog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewDispatcher builds a dispatcher with the given pool and queue sizes.
func NewDispatcher(orch *Orchestrator, workers, queueSize int, logger zerolog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	d := &Dispatcher{
		orch:   orch,
		jobs:   make(chan *domain.Thumbnail, queueSize),
		logger: logger.With().Str("component", "dispatcher").Logger(),
	}
	d.startOnce.Do(func() {
		for i := 0; i < workers; i++ {
			d.wg.Add(1)
			go d.worker()
		}
	})
	return d
}

// Enqueue hands a prepared job to the pool without blocking.
func (d *Dispatcher) Enqueue(t *domain.Thumbnail) error {
	select {
	case d.jobs <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for in-flight generations to finish.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() { close(d.jobs) })
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.jobs {
		d.process(t)
	}
}

func (d *Dispatcher) process(t *domain.Thumbnail) {
	// A panicking adapter must not take the worker down; the orchestrator's
	// deferred finalizer has already failed the job by the time we recover.
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Str("job_id", t.ID).Any("panic", r).Msg("recovered from generation panic")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.orch.Deadline())
	defer cancel()

	started := time.Now()
	if err := d.orch.Process(ctx, t); err != nil {
		d.logger.Warn().Str("job_id", t.ID).Err(err).Dur("elapsed", time.Since(started)).Msg("generation finished with failure")
		return
	}
	d.logger.Info().Str("job_id", t.ID).Str("provider", t.Provider).Dur("elapsed", time.Since(started)).Msg("generation completed")
}
