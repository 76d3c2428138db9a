package bus

import "context"

// Keyer permite a un evento elegir su clave de partición en el bus.
type Keyer interface {
	PartitionKey() string
}

// La semántica de topic y formato del payload la decide cada adapter.
type EventPublisher interface {
	Publish(ctx context.Context, event interface{}) error
}
