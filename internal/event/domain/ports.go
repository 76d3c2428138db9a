package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ---------- Errores de dominio ----------
var (
	// ErrInvalidEvent: nombre de evento desconocido. Se rechaza antes del
	// ensamblado y nunca llega a la cola.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrEventAlreadyRecorded: el almacén rechazó el evento por clave
	// duplicada. La ingesta lo trata como "ya registrado", no como fallo.
	ErrEventAlreadyRecorded = errors.New("event already recorded")

	ErrEventNotFound = errors.New("event not found")
)

// ---------- Interfaces (Ports) ----------

// EventRepository persiste eventos canónicos.
type EventRepository interface {
	// Debe devolver ErrEventAlreadyRecorded si el event_id ya existe.
	Save(ctx context.Context, evt *CanonicalEvent) error

	// Debe devolver ErrEventNotFound si no existe.
	GetByID(ctx context.Context, id uuid.UUID) (*CanonicalEvent, error)
}

// GeoResolver resuelve una IP de cliente a datos de localización usando
// una estructura de consulta local. Sin red, sin bloqueo. IPs privadas o
// fallos de consulta degradan a (nil, nil).
type GeoResolver interface {
	Resolve(ip string) (*GeoRecord, error)
}

// DeliveryClient realiza la llamada real a la API de conversiones.
// nil = entregado; cualquier error cuenta como intento fallido.
type DeliveryClient interface {
	Send(ctx context.Context, evt *CanonicalEvent) error
}
