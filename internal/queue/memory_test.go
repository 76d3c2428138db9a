package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	eventDomain "github.com/davicafu/trackrelay/internal/event/domain"
)

func newTestEvent() *eventDomain.CanonicalEvent {
	return &eventDomain.CanonicalEvent{
		EventName: eventDomain.EventPurchase,
		ServerData: eventDomain.ServerData{
			EventID:   uuid.New(),
			EventTime: time.Now().Unix(),
		},
	}
}

func fastOptions() Options {
	return Options{
		MaxAttempts:   2,
		BackoffBase:   5 * time.Millisecond,
		LeaseDuration: time.Second,
	}
}

func receiveJob(t *testing.T, jobs <-chan Job) Job {
	t.Helper()
	select {
	case job := <-jobs:
		return job
	case <-time.After(2 * time.Second):
		t.Fatal("timeout esperando un job de la cola")
		return Job{}
	}
}

func TestMemoryQueue_EnqueueIsIdempotent(t *testing.T) {
	q := NewMemoryQueue(fastOptions(), zap.NewNop())
	defer q.Close()
	ctx := context.Background()

	evt := newTestEvent()

	first, err := q.Enqueue(ctx, evt)
	require.NoError(t, err)

	// Misma clave: colapsa en el job existente, no crea otro
	second, err := q.Enqueue(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending)
}

func TestMemoryQueue_DeliverAndAck(t *testing.T) {
	q := NewMemoryQueue(fastOptions(), zap.NewNop())
	defer q.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs, err := q.Consume(ctx)
	require.NoError(t, err)

	evt := newTestEvent()
	_, err = q.Enqueue(ctx, evt)
	require.NoError(t, err)

	job := receiveJob(t, jobs)
	assert.Equal(t, evt.ServerData.EventID.String(), job.ID)
	assert.Equal(t, 0, job.AttemptsMade)
	assert.Equal(t, 2, job.MaxAttempts)

	require.NoError(t, q.Ack(ctx, job.ID))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestMemoryQueue_RetryThenDeadLetter(t *testing.T) {
	q := NewMemoryQueue(fastOptions(), zap.NewNop())
	defer q.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs, err := q.Consume(ctx)
	require.NoError(t, err)

	_, err = q.Enqueue(ctx, newTestEvent())
	require.NoError(t, err)

	// Primer intento falla: el job vuelve tras el backoff
	job := receiveJob(t, jobs)
	require.NoError(t, q.Fail(ctx, job.ID, errors.New("upstream 500")))

	retried := receiveJob(t, jobs)
	assert.Equal(t, job.ID, retried.ID)
	assert.Equal(t, 1, retried.AttemptsMade)

	// Segundo fallo agota los intentos: estado terminal dead
	require.NoError(t, q.Fail(ctx, retried.ID, errors.New("upstream 500")))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Dead)
	assert.Equal(t, int64(0), stats.Pending)
	assert.Equal(t, int64(0), stats.Delayed)
}

// Un job pending cuya señal se perdió (buffer lleno) no puede quedar varado:
// el rescan periódico del consumidor lo vuelve a señalar.
func TestMemoryQueue_RescuesLostReadySignal(t *testing.T) {
	q := NewMemoryQueue(fastOptions(), zap.NewNop())
	defer q.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := q.Enqueue(ctx, newTestEvent())
	require.NoError(t, err)

	// Consume la señal sin consumir el job, como si el buffer la hubiera
	// descartado durante una ráfaga.
	<-q.ready

	jobs, err := q.Consume(ctx)
	require.NoError(t, err)

	job := receiveJob(t, jobs)
	assert.Equal(t, 0, job.AttemptsMade)
}

func TestMemoryQueue_FailUnknownJob(t *testing.T) {
	q := NewMemoryQueue(fastOptions(), zap.NewNop())
	defer q.Close()

	err := q.Fail(context.Background(), "no-such-job", errors.New("boom"))
	assert.ErrorIs(t, err, ErrUnknownJob)
	assert.ErrorIs(t, q.Ack(context.Background(), "no-such-job"), ErrUnknownJob)
}

func TestMemoryQueue_EnqueueAfterClose(t *testing.T) {
	q := NewMemoryQueue(fastOptions(), zap.NewNop())
	require.NoError(t, q.Close())

	_, err := q.Enqueue(context.Background(), newTestEvent())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestBackoffDelay(t *testing.T) {
	base := time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 1 * time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 0, want: 1 * time.Second}, // clamp
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoffDelay(base, tt.attempt))
	}
}

func TestOptionsNormalized(t *testing.T) {
	opts := Options{}.normalized()
	assert.Equal(t, DefaultOptions(), opts)

	custom := Options{MaxAttempts: 5, BackoffBase: time.Minute, LeaseDuration: time.Hour}.normalized()
	assert.Equal(t, 5, custom.MaxAttempts)
	assert.Equal(t, time.Minute, custom.BackoffBase)
	assert.Equal(t, time.Hour, custom.LeaseDuration)
}
