package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	// _ "github.com/mattn/go-sqlite3" // better performance but requires gcc
	_ "modernc.org/sqlite"

	"github.com/davicafu/trackrelay/internal/event/domain"
)

type EventRepoSQLite struct {
	db *sql.DB
}

// Verificación estática
var _ domain.EventRepository = (*EventRepoSQLite)(nil)

func NewEventRepoSQLite(db *sql.DB) *EventRepoSQLite {
	return &EventRepoSQLite{db: db}
}

// InitSQLite crea el esquema si no existe (despliegue local).
func InitSQLite(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS events (
            id TEXT PRIMARY KEY,
            event_name TEXT NOT NULL,
            payload TEXT NOT NULL,
            created_at TIMESTAMP NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_events_name ON events(event_name);
    `)
	if err != nil {
		return fmt.Errorf("failed to init sqlite schema: %w", err)
	}
	return nil
}

// ------------------ Métodos ------------------

// Save inserta el evento canónico; un id repetido devuelve
// ErrEventAlreadyRecorded en vez de propagar el error del driver.
func (r *EventRepoSQLite) Save(ctx context.Context, evt *domain.CanonicalEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO events (id, event_name, payload, created_at) VALUES (?,?,?,?)`,
		evt.ServerData.EventID.String(), evt.EventName, string(payload), evt.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEventAlreadyRecorded
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (r *EventRepoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*domain.CanonicalEvent, error) {
	var payload string
	var createdAt time.Time

	err := r.db.QueryRowContext(ctx,
		`SELECT payload, created_at FROM events WHERE id = ?`, id.String(),
	).Scan(&payload, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to query event: %w", err)
	}

	var evt domain.CanonicalEvent
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
	}
	return &evt, nil
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
