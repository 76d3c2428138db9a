package queue

import (
	"context"
	"errors"
	"time"

	eventDomain "github.com/davicafu/trackrelay/internal/event/domain"
)

var (
	ErrQueueClosed = errors.New("queue closed")
	ErrUnknownJob  = errors.New("unknown job")
)

// Job es la unidad de trabajo de la cola. Su ID es el event_id del evento
// canónico: la clave de deduplicación de todo el pipeline. El worker recibe
// una copia de solo lectura y reporta el resultado vía Ack/Fail.
type Job struct {
	ID           string                     `json:"id"`
	Event        eventDomain.CanonicalEvent `json:"event"`
	AttemptsMade int                        `json:"attempts_made"`
	MaxAttempts  int                        `json:"max_attempts"`
	EnqueuedAt   time.Time                  `json:"enqueued_at"`
}

// Stats es la superficie de salud que consume el tooling operacional.
type Stats struct {
	Pending  int64 `json:"pending"`
	Delayed  int64 `json:"delayed"`
	InFlight int64 `json:"in_flight"`
	Dead     int64 `json:"dead"`
}

// Options ajusta la política de reintentos y el lease de procesado.
type Options struct {
	MaxAttempts   int
	BackoffBase   time.Duration
	LeaseDuration time.Duration
}

// DefaultOptions: dos intentos como máximo. La cola prefiere reintentos
// acotados a bucles infinitos; una entrega que falla persistentemente se
// descarta tras el segundo intento.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:   2,
		BackoffBase:   1 * time.Second,
		LeaseDuration: 30 * time.Second,
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = def.MaxAttempts
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = def.BackoffBase
	}
	if o.LeaseDuration <= 0 {
		o.LeaseDuration = def.LeaseDuration
	}
	return o
}

// DeliveryQueue es el contrato único de la cola de entrega, con dos
// implementaciones conformes: RedisQueue (durable) y MemoryQueue (fallback
// en proceso). Se elige una al arrancar según la accesibilidad del backend.
type DeliveryQueue interface {
	// Enqueue admite un job con clave event_id. Si esa clave ya está
	// pendiente o en vuelo, es un no-op que devuelve el job existente.
	Enqueue(ctx context.Context, evt *eventDomain.CanonicalEvent) (*Job, error)

	// Consume entrega jobs a un único consumidor. Un job leased no vuelve
	// a ser visible hasta que se confirma, falla o expira su lease.
	Consume(ctx context.Context) (<-chan Job, error)

	// Ack marca el job como entregado y lo descarta.
	Ack(ctx context.Context, jobID string) error

	// Fail incrementa attempts_made y reprograma con backoff exponencial,
	// o mueve el job al estado terminal dead-letter si agotó intentos.
	Fail(ctx context.Context, jobID string, cause error) error

	Stats(ctx context.Context) (Stats, error)

	Close() error
}

// backoffDelay duplica el retraso base por cada intento ya consumido:
// 1s, 2s, 4s... attempt es 1-based (intentos ya hechos).
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}
