package relayer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	eventDomain "github.com/davicafu/trackrelay/internal/event/domain"
	"github.com/davicafu/trackrelay/internal/queue"
	sharedBus "github.com/davicafu/trackrelay/shared/platform/bus"
)

// AttemptRecord describe el resultado de un intento de entrega, para el
// log analítico de intentos.
type AttemptRecord struct {
	EventID   string
	EventName string
	Attempt   int
	Success   bool
	Error     string
	Duration  time.Duration
	LoggedAt  time.Time
}

// AttemptLogger registra intentos de entrega (adapter de ClickHouse).
type AttemptLogger interface {
	LogAttempt(ctx context.Context, rec AttemptRecord) error
}

// Worker es el consumidor único de la cola de entrega: saca jobs, invoca el
// cliente de la API de conversiones y reporta Ack/Fail. No implementa el
// timing de reintentos, eso es responsabilidad exclusiva de la cola; el
// worker no guarda estado entre jobs.
type Worker struct {
	queue    queue.DeliveryQueue
	client   eventDomain.DeliveryClient
	archive  sharedBus.EventPublisher // opcional: stream de eventos entregados
	attempts AttemptLogger            // opcional: log analítico de intentos
	log      *zap.Logger
}

func NewWorker(
	q queue.DeliveryQueue,
	client eventDomain.DeliveryClient,
	archive sharedBus.EventPublisher,
	attempts AttemptLogger,
	log *zap.Logger,
) *Worker {
	return &Worker{
		queue:    q,
		client:   client,
		archive:  archive,
		attempts: attempts,
		log:      log,
	}
}

// Start lanza el bucle de consumo en una goroutine. Concurrencia fija en 1:
// una sola entrega en vuelo por evento, nunca dos intentos simultáneos del
// mismo job.
func (w *Worker) Start(ctx context.Context) error {
	jobs, err := w.queue.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	w.log.Info("🚀 Delivery worker iniciado")

	go func() {
		for job := range jobs {
			w.process(ctx, job)
		}
		w.log.Info("🛑 Delivery worker detenido.")
	}()

	return nil
}

// process entrega un job y reporta el resultado. Ningún error por-job puede
// tumbar el bucle: todo se convierte en un Fail().
func (w *Worker) process(ctx context.Context, job queue.Job) {
	start := time.Now()

	err := w.send(ctx, &job.Event)
	duration := time.Since(start)

	w.logAttempt(ctx, job, err, duration)

	if err != nil {
		redacted := redactEvent(&job.Event)
		w.log.Warn("⚠️ Delivery attempt failed",
			zap.String("job_id", job.ID),
			zap.Int("attempts_made", job.AttemptsMade),
			zap.Any("event", redacted),
			zap.Error(err),
		)
		if failErr := w.queue.Fail(ctx, job.ID, err); failErr != nil {
			w.log.Error("Failed to report job failure", zap.String("job_id", job.ID), zap.Error(failErr))
		}
		return
	}

	if ackErr := w.queue.Ack(ctx, job.ID); ackErr != nil {
		w.log.Error("Failed to ack delivered job", zap.String("job_id", job.ID), zap.Error(ackErr))
	} else {
		w.log.Info("✅ Event delivered",
			zap.String("job_id", job.ID),
			zap.String("event_name", job.Event.EventName),
			zap.Duration("duration", duration),
		)
	}

	if w.archive != nil {
		if pubErr := w.archive.Publish(ctx, &job.Event); pubErr != nil {
			// El archivo es best-effort: la entrega ya se confirmó.
			w.log.Warn("⚠️ Failed to publish delivered event", zap.String("job_id", job.ID), zap.Error(pubErr))
		}
	}
}

// send aísla la llamada al cliente: un panic del cliente cuenta como
// intento fallido, nunca mata el worker.
func (w *Worker) send(ctx context.Context, evt *eventDomain.CanonicalEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delivery client panic: %v", r)
		}
	}()
	return w.client.Send(ctx, evt)
}

func (w *Worker) logAttempt(ctx context.Context, job queue.Job, sendErr error, duration time.Duration) {
	if w.attempts == nil {
		return
	}
	rec := AttemptRecord{
		EventID:   job.ID,
		EventName: job.Event.EventName,
		Attempt:   job.AttemptsMade + 1,
		Success:   sendErr == nil,
		Duration:  duration,
		LoggedAt:  time.Now().UTC(),
	}
	if sendErr != nil {
		rec.Error = sendErr.Error()
	}
	if err := w.attempts.LogAttempt(ctx, rec); err != nil {
		w.log.Warn("⚠️ Failed to log delivery attempt", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// redactEvent produce una instantánea truncada y sin PII del evento para
// diagnóstico: los digests sensibles nunca se loguean a longitud completa.
func redactEvent(evt *eventDomain.CanonicalEvent) map[string]any {
	return map[string]any{
		"event_id":   evt.ServerData.EventID.String(),
		"event_name": evt.EventName,
		"em":         truncate(evt.UserData.Email),
		"ph":         truncate(evt.UserData.Phone),
		"ip":         deref(evt.UserData.ClientIP),
		"currency":   evt.CustomData.Currency,
		"value":      evt.CustomData.Value,
	}
}

func truncate(digest *string) string {
	if digest == nil {
		return ""
	}
	if len(*digest) <= 8 {
		return *digest
	}
	return (*digest)[:8] + "…"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
