package relayer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	eventDomain "github.com/davicafu/trackrelay/internal/event/domain"
	"github.com/davicafu/trackrelay/internal/queue"
	"github.com/davicafu/trackrelay/tests/mocks"
)

func newTestEvent() *eventDomain.CanonicalEvent {
	return &eventDomain.CanonicalEvent{
		EventName: eventDomain.EventAddToCart,
		ServerData: eventDomain.ServerData{
			EventID:   uuid.New(),
			EventTime: time.Now().Unix(),
		},
	}
}

func fastQueue(t *testing.T) *queue.MemoryQueue {
	t.Helper()
	q := queue.NewMemoryQueue(queue.Options{
		MaxAttempts: 2,
		BackoffBase: 5 * time.Millisecond,
	}, zap.NewNop())
	t.Cleanup(func() { q.Close() })
	return q
}

// waitForStats sondea la cola hasta que se cumple la condición o expira el
// plazo. El worker procesa en su propia goroutine, así que los asserts sobre
// la cola son eventualmente consistentes.
func waitForStats(t *testing.T, q queue.DeliveryQueue, cond func(queue.Stats) bool) queue.Stats {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		stats, err := q.Stats(context.Background())
		require.NoError(t, err)
		if cond(stats) {
			return stats
		}
		time.Sleep(5 * time.Millisecond)
	}
	stats, _ := q.Stats(context.Background())
	t.Fatalf("la cola no alcanzó el estado esperado, stats: %+v", stats)
	return stats
}

func TestWorker_AcksOnSuccess(t *testing.T) {
	q := fastQueue(t)
	client := mocks.NewScriptedDeliveryClient(nil) // siempre entrega
	archive := &mocks.DummyPublisher{}

	worker := NewWorker(q, client, archive, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, worker.Start(ctx))

	evt := newTestEvent()
	_, err := q.Enqueue(ctx, evt)
	require.NoError(t, err)

	// El archivado ocurre tras el ack, así que es la última señal observable
	require.Eventually(t, func() bool { return archive.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue.Stats{}, stats)
	assert.Equal(t, 1, client.CallsFor(evt.ServerData.EventID.String()))
}

func TestWorker_RetriesThenDeadLetters(t *testing.T) {
	q := fastQueue(t)
	client := mocks.NewScriptedDeliveryClient(func(attempt int) error {
		return errors.New("conversions api: status 500")
	})

	worker := NewWorker(q, client, nil, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, worker.Start(ctx))

	evt := newTestEvent()
	_, err := q.Enqueue(ctx, evt)
	require.NoError(t, err)

	waitForStats(t, q, func(s queue.Stats) bool { return s.Dead == 1 })

	// Exactamente maxAttempts invocaciones al cliente, ni una más
	assert.Equal(t, 2, client.CallsFor(evt.ServerData.EventID.String()))
}

func TestWorker_SecondAttemptSucceeds(t *testing.T) {
	q := fastQueue(t)
	client := mocks.NewScriptedDeliveryClient(func(attempt int) error {
		if attempt == 1 {
			return errors.New("conversions api: status 503")
		}
		return nil
	})

	worker := NewWorker(q, client, nil, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, worker.Start(ctx))

	evt := newTestEvent()
	_, err := q.Enqueue(ctx, evt)
	require.NoError(t, err)

	waitForStats(t, q, func(s queue.Stats) bool {
		return s == queue.Stats{}
	})

	assert.Equal(t, 2, client.CallsFor(evt.ServerData.EventID.String()))
}

func TestWorker_ClientPanicCountsAsFailure(t *testing.T) {
	q := fastQueue(t)
	client := mocks.NewScriptedDeliveryClient(func(attempt int) error {
		panic("client bug")
	})

	worker := NewWorker(q, client, nil, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, worker.Start(ctx))

	_, err := q.Enqueue(ctx, newTestEvent())
	require.NoError(t, err)

	// El worker sobrevive al panic y el job acaba en dead-letter
	waitForStats(t, q, func(s queue.Stats) bool { return s.Dead == 1 })
}

type recordingAttemptLogger struct {
	mu      sync.Mutex
	records []AttemptRecord
}

func (l *recordingAttemptLogger) LogAttempt(ctx context.Context, rec AttemptRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

func (l *recordingAttemptLogger) snapshot() []AttemptRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AttemptRecord, len(l.records))
	copy(out, l.records)
	return out
}

func TestWorker_LogsEveryAttempt(t *testing.T) {
	q := fastQueue(t)
	client := mocks.NewScriptedDeliveryClient(func(attempt int) error {
		if attempt == 1 {
			return errors.New("conversions api: status 500")
		}
		return nil
	})
	attempts := &recordingAttemptLogger{}

	worker := NewWorker(q, client, nil, attempts, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, worker.Start(ctx))

	evt := newTestEvent()
	_, err := q.Enqueue(ctx, evt)
	require.NoError(t, err)

	waitForStats(t, q, func(s queue.Stats) bool { return s == queue.Stats{} })

	recs := attempts.snapshot()
	require.Len(t, recs, 2)
	assert.False(t, recs[0].Success)
	assert.Equal(t, 1, recs[0].Attempt)
	assert.NotEmpty(t, recs[0].Error)
	assert.True(t, recs[1].Success)
	assert.Equal(t, 2, recs[1].Attempt)
}

func TestRedactEvent_TruncatesDigests(t *testing.T) {
	email := "a@b.com"
	hashed := eventDomain.HashString(email)
	ip := "8.8.8.8"

	evt := newTestEvent()
	evt.UserData.Email = hashed
	evt.UserData.ClientIP = &ip

	redacted := redactEvent(evt)

	em, ok := redacted["em"].(string)
	require.True(t, ok)
	assert.Len(t, []rune(em), 9) // 8 chars del digest + elipsis
	assert.NotContains(t, em, *hashed)
	assert.Equal(t, "8.8.8.8", redacted["ip"])
	assert.Equal(t, evt.ServerData.EventID.String(), redacted["event_id"])
}
