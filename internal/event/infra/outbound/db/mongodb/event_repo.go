package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/davicafu/trackrelay/internal/event/domain"
)

// EventRepoMongoDB implementa EventRepository sobre MongoDB.
type EventRepoMongoDB struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Verificación estática
var _ domain.EventRepository = (*EventRepoMongoDB)(nil)

func NewEventRepoMongoDB(ctx context.Context, client *mongo.Client, dbName string) (*EventRepoMongoDB, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}

	return &EventRepoMongoDB{
		client: client,
		coll:   client.Database(dbName).Collection("events"),
	}, nil
}

// --- Struct de BSON para el mapeo ---
// Se define localmente para no contaminar el dominio con tags de BSON.

type mongoEvent struct {
	ID        string                 `bson:"_id"`
	EventName string                 `bson:"eventName"`
	Payload   *domain.CanonicalEvent `bson:"payload"`
	CreatedAt time.Time              `bson:"createdAt"`
}

// Save inserta el evento; el _id duplicado (E11000) se traduce a
// ErrEventAlreadyRecorded.
func (r *EventRepoMongoDB) Save(ctx context.Context, evt *domain.CanonicalEvent) error {
	doc := mongoEvent{
		ID:        evt.ServerData.EventID.String(),
		EventName: evt.EventName,
		Payload:   evt,
		CreatedAt: evt.CreatedAt,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrEventAlreadyRecorded
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (r *EventRepoMongoDB) GetByID(ctx context.Context, id uuid.UUID) (*domain.CanonicalEvent, error) {
	var doc mongoEvent
	err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to query event: %w", err)
	}
	return doc.Payload, nil
}
