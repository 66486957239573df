package dashboard

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) CountCases(ctx context.Context, q CaseCount) (int, error) {
	query := `SELECT COUNT(*) FROM cases WHERE NOT is_deleted`
	var args []any
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		query += fmt.Sprintf(` AND status = ANY($%d)`, len(args))
	}
	if len(q.Severities) > 0 {
		severities := make([]string, len(q.Severities))
		for i, s := range q.Severities {
			severities[i] = string(s)
		}
		args = append(args, severities)
		query += fmt.Sprintf(` AND severity = ANY($%d)`, len(args))
	}

	var n int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cases: %w", err)
	}
	return n, nil
}

func (r *repoPG) MeanConfidence(ctx context.Context) (float64, int, error) {
	var (
		mean *float64
		n    int
	)
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT AVG(confidence), COUNT(*) FROM ai_predictions`).Scan(&mean, &n)
	if err != nil {
		return 0, 0, fmt.Errorf("mean confidence: %w", err)
	}
	if mean == nil {
		return 0, 0, nil
	}
	return *mean, n, nil
}

func (r *repoPG) Recent(ctx context.Context, limit int, reporterID *uuid.UUID) ([]*RecentRow, error) {
	query := `
		SELECT c.id, c.case_number, c.drug_name, c.severity, c.status, p.confidence, c.date_reported
		FROM cases c
		LEFT JOIN LATERAL (
			SELECT confidence FROM ai_predictions
			WHERE case_id = c.id
			ORDER BY created_at DESC
			LIMIT 1
		) p ON TRUE
		WHERE NOT c.is_deleted`
	args := []any{limit}
	if reporterID != nil {
		args = append(args, *reporterID)
		query += ` AND c.reporter_id = $2`
	}
	query += ` ORDER BY c.date_reported DESC, c.id LIMIT $1`

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent cases: %w", err)
	}
	defer rows.Close()

	var out []*RecentRow
	for rows.Next() {
		var row RecentRow
		if err := rows.Scan(&row.ID, &row.CaseNumber, &row.DrugName, &row.Severity, &row.Status,
			&row.Confidence, &row.DateReported); err != nil {
			return nil, err
		}
		out = append(out, &row)
	}
	return out, rows.Err()
}
