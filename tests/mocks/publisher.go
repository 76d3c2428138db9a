package mocks

import (
	"context"
	"sync"

	sharedBus "github.com/davicafu/trackrelay/shared/platform/bus"
)

// DummyPublisher acumula los eventos publicados, para contratos del archivo
// de eventos entregados.
type DummyPublisher struct {
	mu        sync.Mutex
	Published []interface{}
}

// Verificación estática
var _ sharedBus.EventPublisher = (*DummyPublisher)(nil)

func (p *DummyPublisher) Publish(ctx context.Context, event interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Published = append(p.Published, event)
	return nil
}

// Count devuelve cuántos eventos se publicaron.
func (p *DummyPublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Published)
}
