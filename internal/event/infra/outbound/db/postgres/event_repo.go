package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/davicafu/trackrelay/internal/event/domain"
)

type EventRepoPostgres struct {
	db *sql.DB
}

// Verificación estática
var _ domain.EventRepository = (*EventRepoPostgres)(nil)

func NewEventRepoPostgres(db *sql.DB) *EventRepoPostgres {
	return &EventRepoPostgres{db: db}
}

// InitPostgres crea el esquema si no existe.
func InitPostgres(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS events (
            id UUID PRIMARY KEY,
            event_name TEXT NOT NULL,
            payload JSONB NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_events_name ON events(event_name);
    `)
	if err != nil {
		return fmt.Errorf("failed to init postgres schema: %w", err)
	}
	return nil
}

// ------------------ Métodos ------------------

// Save inserta el evento canónico; la violación de la clave primaria se
// traduce a ErrEventAlreadyRecorded (la ingesta lo trata como no-fatal).
func (r *EventRepoPostgres) Save(ctx context.Context, evt *domain.CanonicalEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO events (id, event_name, payload, created_at) VALUES ($1, $2, $3, $4)`,
		evt.ServerData.EventID, evt.EventName, payload, evt.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEventAlreadyRecorded
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (r *EventRepoPostgres) GetByID(ctx context.Context, id uuid.UUID) (*domain.CanonicalEvent, error) {
	var payload []byte
	var createdAt time.Time

	err := r.db.QueryRowContext(ctx,
		`SELECT payload, created_at FROM events WHERE id = $1`, id,
	).Scan(&payload, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to query event: %w", err)
	}

	var evt domain.CanonicalEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
	}
	return &evt, nil
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
