package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	eventDomain "github.com/davicafu/trackrelay/internal/event/domain"
)

type jobState int

const (
	statePending jobState = iota
	stateDelayed
	stateInFlight
	stateDead
)

// MemoryQueue es el fallback en proceso cuando redis no está accesible al
// arrancar: mismo contrato Enqueue/Consume/Ack/Fail, pero los jobs viven en
// memoria y se pierden al reiniciar. El coste del fallback es durabilidad,
// no corrección dentro de la ejecución en curso.
type MemoryQueue struct {
	opts Options
	log  *zap.Logger

	mu     sync.Mutex
	jobs   map[string]*Job
	states map[string]jobState
	timers map[string]*time.Timer
	closed bool

	ready chan string
}

// Verificación estática
var _ DeliveryQueue = (*MemoryQueue)(nil)

func NewMemoryQueue(opts Options, log *zap.Logger) *MemoryQueue {
	return &MemoryQueue{
		opts:   opts.normalized(),
		log:    log,
		jobs:   make(map[string]*Job),
		states: make(map[string]jobState),
		timers: make(map[string]*time.Timer),
		ready:  make(chan string, 1024),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, evt *eventDomain.CanonicalEvent) (*Job, error) {
	id := evt.ServerData.EventID.String()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	if existing, ok := q.jobs[id]; ok {
		dup := *existing
		q.mu.Unlock()
		q.log.Debug("Duplicate submission collapsed into existing job", zap.String("job_id", id))
		return &dup, nil
	}

	job := &Job{
		ID:          id,
		Event:       *evt,
		MaxAttempts: q.opts.MaxAttempts,
		EnqueuedAt:  time.Now().UTC(),
	}
	q.jobs[id] = job
	q.states[id] = statePending
	q.mu.Unlock()

	q.signalReady(id)

	dup := *job
	return &dup, nil
}

func (q *MemoryQueue) Consume(ctx context.Context) (<-chan Job, error) {
	out := make(chan Job)
	go func() {
		defer close(out)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// El mapa de estados es la verdad; el canal solo avisa.
				// El rescan rescata jobs cuya señal se perdió por un
				// buffer lleno.
				q.resignalPending()
			case id := <-q.ready:
				q.mu.Lock()
				job, ok := q.jobs[id]
				if !ok || q.states[id] != statePending {
					q.mu.Unlock()
					continue
				}
				q.states[id] = stateInFlight
				dup := *job
				q.mu.Unlock()

				select {
				case out <- dup:
				case <-ctx.Done():
					q.mu.Lock()
					if q.states[id] == stateInFlight {
						q.states[id] = statePending
					}
					q.mu.Unlock()
					q.signalReady(id)
					return
				}
			}
		}
	}()
	return out, nil
}

func (q *MemoryQueue) Ack(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.jobs[jobID]; !ok {
		return ErrUnknownJob
	}
	delete(q.jobs, jobID)
	delete(q.states, jobID)
	return nil
}

func (q *MemoryQueue) Fail(ctx context.Context, jobID string, cause error) error {
	q.mu.Lock()
	job, ok := q.jobs[jobID]
	if !ok {
		q.mu.Unlock()
		return ErrUnknownJob
	}

	job.AttemptsMade++

	if job.AttemptsMade >= job.MaxAttempts {
		q.states[jobID] = stateDead
		attempts := job.AttemptsMade
		q.mu.Unlock()
		q.log.Error("Delivery exhausted all attempts, job dead-lettered",
			zap.String("job_id", jobID),
			zap.Int("attempts_made", attempts),
			zap.Error(cause),
		)
		return nil
	}

	q.states[jobID] = stateDelayed
	delay := backoffDelay(q.opts.BackoffBase, job.AttemptsMade)
	q.timers[jobID] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, jobID)
		if q.closed || q.states[jobID] != stateDelayed {
			q.mu.Unlock()
			return
		}
		q.states[jobID] = statePending
		q.mu.Unlock()
		q.signalReady(jobID)
	})
	attempts := job.AttemptsMade
	q.mu.Unlock()

	q.log.Warn("⚠️ Delivery failed, retry scheduled",
		zap.String("job_id", jobID),
		zap.Int("attempts_made", attempts),
		zap.Duration("delay", delay),
		zap.Error(cause),
	)
	return nil
}

func (q *MemoryQueue) Stats(ctx context.Context) (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var stats Stats
	for _, st := range q.states {
		switch st {
		case statePending:
			stats.Pending++
		case stateDelayed:
			stats.Delayed++
		case stateInFlight:
			stats.InFlight++
		case stateDead:
			stats.Dead++
		}
	}
	return stats, nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	return nil
}

func (q *MemoryQueue) resignalPending() {
	q.mu.Lock()
	var ids []string
	for id, st := range q.states {
		if st == statePending {
			ids = append(ids, id)
		}
	}
	q.mu.Unlock()

	for _, id := range ids {
		q.signalReady(id)
	}
}

// signalReady nunca bloquea la ingesta: si el buffer está lleno el job
// queda en el mapa y el rescan del consumidor vuelve a señalarlo.
func (q *MemoryQueue) signalReady(id string) {
	select {
	case q.ready <- id:
	default:
		q.log.Warn("⚠️ In-memory ready buffer full", zap.String("job_id", id))
	}
}
