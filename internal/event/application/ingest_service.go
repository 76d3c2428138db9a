package application

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/trackrelay/internal/event/domain"
	"github.com/davicafu/trackrelay/internal/queue"
)

// IngestService define el caso de uso de ingesta: normalizar, hashear,
// enriquecer, ensamblar, persistir y encolar. El camino síncrono termina en
// el Enqueue; todo lo posterior es asíncrono y nunca vuelve al llamador.
type IngestService struct {
	assembler *Assembler
	repo      domain.EventRepository
	queue     queue.DeliveryQueue
	log       *zap.Logger
}

func NewIngestService(assembler *Assembler, repo domain.EventRepository, q queue.DeliveryQueue, log *zap.Logger) *IngestService {
	return &IngestService{
		assembler: assembler,
		repo:      repo,
		queue:     q,
		log:       log,
	}
}

func (s *IngestService) Ingest(ctx context.Context, raw domain.RawEventInput) (*domain.IngestResult, error) {
	user, custom, err := domain.Normalize(raw)
	if err != nil {
		return nil, err
	}

	// Telemetría advisory: la falta de campos esperados no bloquea nada.
	if missing := domain.MissingAdvisoryFields(user); len(missing) > 0 {
		s.log.Warn("⚠️ User data incompleta",
			zap.String("event_name", raw.EventName),
			zap.Strings("missing_fields", missing),
		)
	}

	evt := s.assembler.Assemble(raw, user, custom)

	if s.repo != nil {
		if err := s.repo.Save(ctx, evt); err != nil {
			if errors.Is(err, domain.ErrEventAlreadyRecorded) {
				// Ya registrado: no es un fallo de ingesta.
				s.log.Debug("Event already recorded", zap.String("event_id", evt.ServerData.EventID.String()))
			} else {
				// La persistencia es secundaria a la entrega: log y seguimos.
				s.log.Error("Failed to persist event", zap.String("event_id", evt.ServerData.EventID.String()), zap.Error(err))
			}
		}
	}

	if _, err := s.queue.Enqueue(ctx, evt); err != nil {
		s.log.Error("Failed to enqueue event",
			zap.String("event_id", evt.ServerData.EventID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	return &domain.IngestResult{
		EventID:   evt.ServerData.EventID,
		EventName: evt.EventName,
	}, nil
}

// GetEvent recupera un evento ya registrado del almacén.
func (s *IngestService) GetEvent(ctx context.Context, id uuid.UUID) (*domain.CanonicalEvent, error) {
	if s.repo == nil {
		return nil, domain.ErrEventNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// QueueStats expone la superficie de salud de la cola.
func (s *IngestService) QueueStats(ctx context.Context) (queue.Stats, error) {
	return s.queue.Stats(ctx)
}
