package prediction

import (
	"context"
	"encoding/json"
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

const predictionCols = `id, case_id, model_name, model_version, confidence, prediction, recommendation,
	processing_time, human_reviewed, reviewer_id, review_notes, created_at`

func scanPrediction(row pgx.Row) (*Prediction, error) {
	var (
		p       Prediction
		payload []byte
	)
	err := row.Scan(&p.ID, &p.CaseID, &p.ModelName, &p.ModelVersion, &p.Confidence, &payload,
		&p.Recommendation, &p.ProcessingTime, &p.HumanReviewed, &p.ReviewerID, &p.ReviewNotes, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("prediction")
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &p.Prediction); err != nil {
		return nil, fmt.Errorf("decode prediction payload: %w", err)
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Prediction) error {
	payload, err := json.Marshal(p.Prediction)
	if err != nil {
		return fmt.Errorf("encode prediction payload: %w", err)
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO ai_predictions (case_id, model_name, model_version, confidence, prediction,
			recommendation, processing_time, human_reviewed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)
		RETURNING id, created_at`,
		p.CaseID, p.ModelName, p.ModelVersion, p.Confidence, payload, p.Recommendation, p.ProcessingTime,
	).Scan(&p.ID, &p.CreatedAt)
}

func (r *repoPG) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*Prediction, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+predictionCols+` FROM ai_predictions WHERE case_id = $1 ORDER BY created_at DESC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	out := []*Prediction{}
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repoPG) Review(ctx context.Context, id, reviewerID uuid.UUID, notes string, reviewed bool) (*Prediction, error) {
	return scanPrediction(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE ai_predictions SET human_reviewed = $2, reviewer_id = $3, review_notes = $4
		WHERE id = $1
		RETURNING `+predictionCols, id, reviewed, reviewerID, notes))
}
