package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"orderflow/internal/metrics"
)

// Effect is one detached post-commit task (mirror write, push fan-out,
// archival, changefeed publish). Effects never report back to the request
// that spawned them; failures are logged and absorbed.
type Effect struct {
	Name string
	Run  func(ctx context.Context) error
}

const effectTimeout = 30 * time.Second

// EffectQueue is the in-process task queue for post-commit effects. A fixed
// worker pool drains a buffered channel; when the buffer is full, Enqueue
// falls back to a dedicated goroutine so the API response is never blocked.
type EffectQueue struct {
	tasks  chan Effect
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	log    zerolog.Logger
}

func NewEffectQueue(workers, buffer int, log zerolog.Logger) *EffectQueue {
	if workers < 1 {
		workers = 1
	}
	q := &EffectQueue{
		tasks: make(chan Effect, buffer),
		log:   log,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *EffectQueue) worker() {
	defer q.wg.Done()
	for e := range q.tasks {
		q.run(e)
	}
}

func (q *EffectQueue) run(e Effect) {
	ctx, cancel := context.WithTimeout(context.Background(), effectTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			metrics.EffectFailures.WithLabelValues(e.Name).Inc()
			q.log.Error().Str("effect", e.Name).Interface("panic", r).Msg("effect panicked")
		}
	}()
	if err := e.Run(ctx); err != nil {
		metrics.EffectFailures.WithLabelValues(e.Name).Inc()
		q.log.Error().Err(err).Str("effect", e.Name).Msg("effect failed")
	}
}

// Enqueue schedules an effect without ever blocking the caller. After
// Drain, effects still run in a detached goroutine instead of panicking on
// the closed channel.
func (q *EffectQueue) Enqueue(e Effect) {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		go q.run(e)
		return
	}
	defer q.mu.RUnlock()
	select {
	case q.tasks <- e:
	default:
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.run(e)
		}()
	}
}

// Drain stops accepting work and waits for in-flight effects to finish.
func (q *EffectQueue) Drain() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()
	q.wg.Wait()
}
