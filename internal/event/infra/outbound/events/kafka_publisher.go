package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	eventDomain "github.com/davicafu/trackrelay/internal/event/domain"
	sharedBus "github.com/davicafu/trackrelay/shared/platform/bus"
	sharedEvents "github.com/davicafu/trackrelay/shared/events"
)

// KafkaPublisher publica eventos entregados en el topic de archivo para
// consumidores analíticos externos. Best-effort: la entrega al destino ya
// se confirmó cuando se publica aquí.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaPublisher(writer *kafka.Writer, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	envelope := sharedEvents.IntegrationEvent{
		Type:      eventDomain.DeliveredEventType,
		Timestamp: time.Now().UTC(),
		Data:      payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	var key []byte
	if keyer, ok := event.(sharedBus.Keyer); ok {
		key = []byte(keyer.PartitionKey())
	}

	msg := kafka.Message{
		Key:   key,
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("Error publishing to Kafka", zap.Error(err))
		return err
	}

	p.log.Debug("Delivered event archived", zap.Any("event", event))
	return nil
}

// Verificación estática
var _ sharedBus.EventPublisher = (*KafkaPublisher)(nil)
