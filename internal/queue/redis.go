package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	eventDomain "github.com/davicafu/trackrelay/internal/event/domain"
)

// Claves en redis para la cola "delivery":
//
//	queue:delivery:job:<id>   registro JSON del job (su existencia deduplica)
//	queue:delivery:pending    LIST de ids listos para consumir
//	queue:delivery:delayed    ZSET id → instante de reintento (unix ms)
//	queue:delivery:processing ZSET id → expiración del lease (unix ms)
//	queue:delivery:dead       LIST de ids en estado terminal
const (
	redisKeyPrefix     = "queue:delivery"
	redisPendingKey    = redisKeyPrefix + ":pending"
	redisDelayedKey    = redisKeyPrefix + ":delayed"
	redisProcessingKey = redisKeyPrefix + ":processing"
	redisDeadKey       = redisKeyPrefix + ":dead"

	deadJobTTL  = 7 * 24 * time.Hour
	maxDeadJobs = 10_000

	claimPollInterval = 250 * time.Millisecond
)

// claimScript saca el siguiente id de pending y toma su lease de procesado
// en la misma operación: un crash entre el pop y el lease no puede dejar el
// job fuera de ambas estructuras.
var claimScript = redis.NewScript(`
local id = redis.call('RPOP', KEYS[1])
if not id then
  return false
end
redis.call('ZADD', KEYS[2], ARGV[1], id)
return id
`)

// RedisQueue es la implementación durable de DeliveryQueue. El estado vive
// en redis, así que los jobs sobreviven reinicios del proceso y los leases
// expirados quedan disponibles para un worker de reemplazo.
type RedisQueue struct {
	client *redis.Client
	opts   Options
	log    *zap.Logger
}

// Verificación estática
var _ DeliveryQueue = (*RedisQueue)(nil)

func NewRedisQueue(client *redis.Client, opts Options, log *zap.Logger) *RedisQueue {
	return &RedisQueue{
		client: client,
		opts:   opts.normalized(),
		log:    log,
	}
}

func redisJobKey(id string) string {
	return redisKeyPrefix + ":job:" + id
}

func (q *RedisQueue) Enqueue(ctx context.Context, evt *eventDomain.CanonicalEvent) (*Job, error) {
	job := Job{
		ID:          evt.ServerData.EventID.String(),
		Event:       *evt,
		MaxAttempts: q.opts.MaxAttempts,
		EnqueuedAt:  time.Now().UTC(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	// SetNX sobre la clave del job es la admisión: si la clave ya existe,
	// el evento está pendiente o en vuelo y la segunda entrega es un no-op.
	created, err := q.client.SetNX(ctx, redisJobKey(job.ID), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to admit job: %w", err)
	}
	if !created {
		existing, loadErr := q.loadJob(ctx, job.ID)
		if loadErr != nil {
			return nil, fmt.Errorf("duplicate job but failed to load it: %w", loadErr)
		}
		q.log.Debug("Duplicate submission collapsed into existing job",
			zap.String("job_id", job.ID),
		)
		return existing, nil
	}

	if err := q.client.LPush(ctx, redisPendingKey, job.ID).Err(); err != nil {
		return nil, fmt.Errorf("failed to push job to pending: %w", err)
	}
	return &job, nil
}

func (q *RedisQueue) Consume(ctx context.Context) (<-chan Job, error) {
	out := make(chan Job)
	go q.consumeLoop(ctx, out)
	return out, nil
}

func (q *RedisQueue) consumeLoop(ctx context.Context, out chan<- Job) {
	defer close(out)

	for {
		if ctx.Err() != nil {
			return
		}

		q.promoteDue(ctx, redisDelayedKey)
		q.promoteDue(ctx, redisProcessingKey) // leases expirados vuelven a pending

		lease := time.Now().Add(q.opts.LeaseDuration).UnixMilli()
		res, err := claimScript.Run(ctx, q.client,
			[]string{redisPendingKey, redisProcessingKey}, lease,
		).Result()
		if err != nil {
			if err == redis.Nil {
				// Cola vacía: espera corta antes del siguiente claim.
				select {
				case <-ctx.Done():
					return
				case <-time.After(claimPollInterval):
				}
				continue
			}
			if ctx.Err() != nil {
				return
			}
			q.log.Warn("⚠️ Failed to claim next job", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		jobID, _ := res.(string)
		job, err := q.loadJob(ctx, jobID)
		if err != nil {
			q.client.ZRem(ctx, redisProcessingKey, jobID)
			q.log.Warn("⚠️ Claimed job without record, dropping", zap.String("job_id", jobID), zap.Error(err))
			continue
		}

		select {
		case out <- *job:
		case <-ctx.Done():
			// Devolver el job sin entregar para que no se pierda.
			bg := context.Background()
			q.client.ZRem(bg, redisProcessingKey, jobID)
			q.client.LPush(bg, redisPendingKey, jobID)
			return
		}
	}
}

// promoteDue mueve a pending los miembros del zset cuyo score (unix ms)
// ya venció: reintentos con backoff cumplido y leases expirados.
func (q *RedisQueue) promoteDue(ctx context.Context, zsetKey string) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	ids, err := q.client.ZRangeByScore(ctx, zsetKey, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil || len(ids) == 0 {
		return
	}

	pipe := q.client.TxPipeline()
	for _, id := range ids {
		pipe.ZRem(ctx, zsetKey, id)
		pipe.LPush(ctx, redisPendingKey, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		q.log.Warn("⚠️ Failed to promote due jobs", zap.String("zset", zsetKey), zap.Error(err))
	}
}

func (q *RedisQueue) Ack(ctx context.Context, jobID string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, redisProcessingKey, jobID)
	pipe.Del(ctx, redisJobKey(jobID))
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to ack job %s: %w", jobID, err)
	}
	return nil
}

func (q *RedisQueue) Fail(ctx context.Context, jobID string, cause error) error {
	job, err := q.loadJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.AttemptsMade++
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.Set(ctx, redisJobKey(jobID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update job attempts: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, redisProcessingKey, jobID)

	if job.AttemptsMade < job.MaxAttempts {
		delay := backoffDelay(q.opts.BackoffBase, job.AttemptsMade)
		readyAt := float64(time.Now().Add(delay).UnixMilli())
		pipe.ZAdd(ctx, redisDelayedKey, &redis.Z{Score: readyAt, Member: jobID})
		q.log.Warn("⚠️ Delivery failed, retry scheduled",
			zap.String("job_id", jobID),
			zap.Int("attempts_made", job.AttemptsMade),
			zap.Duration("delay", delay),
			zap.Error(cause),
		)
	} else {
		// La lista dead lleva el mismo TTL que los registros que apunta
		// y un tope de tamaño: nada queda colgando pasada la retención.
		pipe.LPush(ctx, redisDeadKey, jobID)
		pipe.LTrim(ctx, redisDeadKey, 0, maxDeadJobs-1)
		pipe.Expire(ctx, redisDeadKey, deadJobTTL)
		pipe.Expire(ctx, redisJobKey(jobID), deadJobTTL)
		q.log.Error("Delivery exhausted all attempts, job dead-lettered",
			zap.String("job_id", jobID),
			zap.Int("attempts_made", job.AttemptsMade),
			zap.Error(cause),
		)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to reschedule job %s: %w", jobID, err)
	}
	return nil
}

func (q *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	pipe := q.client.TxPipeline()
	pending := pipe.LLen(ctx, redisPendingKey)
	delayed := pipe.ZCard(ctx, redisDelayedKey)
	inFlight := pipe.ZCard(ctx, redisProcessingKey)
	dead := pipe.LLen(ctx, redisDeadKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, fmt.Errorf("failed to read queue stats: %w", err)
	}

	return Stats{
		Pending:  pending.Val(),
		Delayed:  delayed.Val(),
		InFlight: inFlight.Val(),
		Dead:     dead.Val(),
	}, nil
}

func (q *RedisQueue) Close() error {
	// El *redis.Client lo posee quien construyó la cola.
	return nil
}

func (q *RedisQueue) loadJob(ctx context.Context, jobID string) (*Job, error) {
	data, err := q.client.Get(ctx, redisJobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrUnknownJob
		}
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", jobID, err)
	}
	return &job, nil
}
