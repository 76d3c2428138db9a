package clickhouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/davicafu/trackrelay/internal/relayer"
)

// AttemptLogRepo implementa relayer.AttemptLogger para ClickHouse: cada
// intento de entrega queda registrado para analítica operacional.
type AttemptLogRepo struct {
	db *sql.DB
}

// Verificación estática
var _ relayer.AttemptLogger = (*AttemptLogRepo)(nil)

func NewAttemptLogRepo(addr string, dbName string) (*AttemptLogRepo, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}

	return &AttemptLogRepo{db: conn}, nil
}

func (r *AttemptLogRepo) LogAttempt(ctx context.Context, rec relayer.AttemptRecord) error {
	success := uint8(0)
	if rec.Success {
		success = 1
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO delivery_attempts (event_id, event_name, attempt, success, error, duration_ms, logged_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.EventID,
		rec.EventName,
		rec.Attempt,
		success,
		rec.Error,
		rec.Duration.Milliseconds(),
		rec.LoggedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to log delivery attempt: %w", err)
	}
	return nil
}

// DailyOutcome agrega el resultado de entregas por día.
type DailyOutcome struct {
	Day       string `json:"day"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
}

// GetDailyOutcomes devuelve la serie diaria de entregas/fallos.
func (r *AttemptLogRepo) GetDailyOutcomes(ctx context.Context, days int) ([]DailyOutcome, error) {
	query := `
        SELECT
            toString(toStartOfDay(logged_at)) AS day,
            countIf(success = 1) AS delivered,
            countIf(success = 0) AS failed
        FROM delivery_attempts
        WHERE logged_at >= now() - INTERVAL ? DAY
        GROUP BY day
        ORDER BY day
    `
	rows, err := r.db.QueryContext(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily outcomes: %w", err)
	}
	defer rows.Close()

	var out []DailyOutcome
	for rows.Next() {
		var d DailyOutcome
		if err := rows.Scan(&d.Day, &d.Delivered, &d.Failed); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
