package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/davicafu/trackrelay/internal/event/domain"
)

// MockDeliveryClient simula el cliente de la API de conversiones.
type MockDeliveryClient struct {
	mock.Mock
}

func (m *MockDeliveryClient) Send(ctx context.Context, evt *domain.CanonicalEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

// ScriptedDeliveryClient devuelve los errores programados en orden y cuenta
// cada invocación por event_id. Útil para verificar límites de reintento.
type ScriptedDeliveryClient struct {
	mu      sync.Mutex
	Outcome func(attempt int) error // nil = entregado
	Calls   map[string]int
}

// Verificación estática
var _ domain.DeliveryClient = (*ScriptedDeliveryClient)(nil)
var _ domain.DeliveryClient = (*MockDeliveryClient)(nil)

func NewScriptedDeliveryClient(outcome func(attempt int) error) *ScriptedDeliveryClient {
	return &ScriptedDeliveryClient{
		Outcome: outcome,
		Calls:   make(map[string]int),
	}
}

func (c *ScriptedDeliveryClient) Send(ctx context.Context, evt *domain.CanonicalEvent) error {
	c.mu.Lock()
	id := evt.ServerData.EventID.String()
	c.Calls[id]++
	attempt := c.Calls[id]
	c.mu.Unlock()

	if c.Outcome == nil {
		return nil
	}
	return c.Outcome(attempt)
}

// TotalCalls suma las invocaciones de todos los eventos.
func (c *ScriptedDeliveryClient) TotalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.Calls {
		total += n
	}
	return total
}

// CallsFor devuelve los intentos registrados para un event_id.
func (c *ScriptedDeliveryClient) CallsFor(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Calls[id]
}
