package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/davicafu/trackrelay/internal/event/domain"
)

// InMemoryEventRepo simula EventRepository con la misma semántica de clave
// duplicada que los adapters reales.
type InMemoryEventRepo struct {
	Events map[uuid.UUID]*domain.CanonicalEvent
	mu     sync.Mutex
}

// Verificación estática
var _ domain.EventRepository = (*InMemoryEventRepo)(nil)

func NewInMemoryEventRepo() *InMemoryEventRepo {
	return &InMemoryEventRepo{
		Events: make(map[uuid.UUID]*domain.CanonicalEvent),
	}
}

func (r *InMemoryEventRepo) Save(ctx context.Context, evt *domain.CanonicalEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Events[evt.ServerData.EventID]; ok {
		return domain.ErrEventAlreadyRecorded
	}
	r.Events[evt.ServerData.EventID] = evt
	return nil
}

func (r *InMemoryEventRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.CanonicalEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	evt, ok := r.Events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	return evt, nil
}
