package aimodel

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const modelCols = `id, name, version, status, accuracy, avg_response_time, total_predictions, last_updated, created_at`

func scanModel(row pgx.Row) (*Model, error) {
	var m Model
	err := row.Scan(&m.ID, &m.Name, &m.Version, &m.Status, &m.Accuracy,
		&m.AvgResponseTime, &m.TotalPredictions, &m.LastUpdated, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("AI model")
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repoPG) List(ctx context.Context) ([]*Model, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+modelCols+` FROM ai_models ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list ai models: %w", err)
	}
	defer rows.Close()

	var out []*Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repoPG) Get(ctx context.Context, id uuid.UUID) (*Model, error) {
	return scanModel(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+modelCols+` FROM ai_models WHERE id = $1`, id))
}

func (r *repoPG) Create(ctx context.Context, m *Model) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO ai_models (name, version, status, accuracy)
		VALUES ($1, $2, $3, $4)
		RETURNING id, total_predictions, last_updated, created_at`,
		m.Name, m.Version, m.Status, m.Accuracy,
	).Scan(&m.ID, &m.TotalPredictions, &m.LastUpdated, &m.CreatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict(fmt.Sprintf("model %s %s already registered", m.Name, m.Version))
	}
	return err
}

func (r *repoPG) Update(ctx context.Context, m *Model) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE ai_models SET status = $2, accuracy = $3, last_updated = NOW()
		WHERE id = $1
		RETURNING last_updated`,
		m.ID, m.Status, m.Accuracy,
	).Scan(&m.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("AI model")
	}
	return err
}

func (r *repoPG) Ensure(ctx context.Context, m *Model) (bool, error) {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO ai_models (name, version, status, accuracy)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name, version) DO NOTHING
		RETURNING id, total_predictions, last_updated, created_at`,
		m.Name, m.Version, m.Status, m.Accuracy,
	).Scan(&m.ID, &m.TotalPredictions, &m.LastUpdated, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (r *repoPG) RecordPrediction(ctx context.Context, name, version string, elapsedMillis int) error {
	// SET expressions see the pre-update row.
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE ai_models SET
			avg_response_time = (COALESCE(avg_response_time, 0) * total_predictions + $3) / (total_predictions + 1),
			total_predictions = total_predictions + 1,
			last_updated = NOW()
		WHERE name = $1 AND version = $2`,
		name, version, elapsedMillis)
	return err
}
