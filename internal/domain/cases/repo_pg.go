package cases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/apperr"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool, now: time.Now}
}

const caseCols = `id, case_number, patient_age, patient_gender, drug_name, drug_dosage,
	adverse_reaction, reaction_description, severity, status, reporter_id, date_reported,
	date_of_reaction, concomitant_meds, medical_history, outcome,
	is_deleted, deleted_at, deleted_by, deletion_reason, created_at, updated_at`

func scanCase(row pgx.Row, extra ...any) (*Case, error) {
	var c Case
	dest := []any{
		&c.ID, &c.CaseNumber, &c.PatientAge, &c.PatientGender, &c.DrugName, &c.DrugDosage,
		&c.AdverseReaction, &c.ReactionDescription, &c.Severity, &c.Status, &c.ReporterID, &c.DateReported,
		&c.DateOfReaction, &c.ConcomitantMeds, &c.MedicalHistory, &c.Outcome,
		&c.IsDeleted, &c.DeletedAt, &c.DeletedBy, &c.DeletionReason, &c.CreatedAt, &c.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("case")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FormatCaseNumber renders the human-readable number for sequence value n.
func FormatCaseNumber(year int, n int64) string {
	return fmt.Sprintf("CSE-%d-%06d", year, n)
}

func (r *repoPG) Create(ctx context.Context, c *Case) error {
	conn := db.Conn(ctx, r.pool)

	var seq int64
	if err := conn.QueryRow(ctx, `SELECT nextval('case_number_seq')`).Scan(&seq); err != nil {
		return fmt.Errorf("next case number: %w", err)
	}
	c.CaseNumber = FormatCaseNumber(r.now().UTC().Year(), seq)

	err := conn.QueryRow(ctx, `
		INSERT INTO cases (case_number, patient_age, patient_gender, drug_name, drug_dosage,
			adverse_reaction, reaction_description, severity, status, reporter_id,
			date_of_reaction, concomitant_meds, medical_history, outcome)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, date_reported, created_at, updated_at`,
		c.CaseNumber, c.PatientAge, c.PatientGender, c.DrugName, c.DrugDosage,
		c.AdverseReaction, c.ReactionDescription, c.Severity, c.Status, c.ReporterID,
		c.DateOfReaction, c.ConcomitantMeds, c.MedicalHistory, c.Outcome,
	).Scan(&c.ID, &c.DateReported, &c.CreatedAt, &c.UpdatedAt)
	if db.IsUniqueViolation(err) && db.ConstraintName(err) == "cases_case_number_key" {
		return apperr.Conflict("case number " + c.CaseNumber + " already exists")
	}
	return err
}

func (r *repoPG) Get(ctx context.Context, id uuid.UUID) (*Case, error) {
	return scanCase(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+caseCols+` FROM cases WHERE id = $1`, id))
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Case, error) {
	return scanCase(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+caseCols+` FROM cases WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Case, int, error) {
	var (
		where []string
		args  []any
	)
	if !f.IncludeDeleted {
		where = append(where, "NOT is_deleted")
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.ReporterID != nil {
		args = append(args, *f.ReporterID)
		where = append(where, fmt.Sprintf("reporter_id = $%d", len(args)))
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM cases "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count cases: %w", err)
	}

	q := fmt.Sprintf("SELECT %s FROM cases %s ORDER BY date_reported DESC, id LIMIT $%d OFFSET $%d",
		caseCols, whereClause, len(args)+1, len(args)+2)
	rows, err := conn.Query(ctx, q, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	items := make([]*Case, 0, f.Limit)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

// Update writes every mutable column. reporter_id and case_number are not
// in the statement.
func (r *repoPG) Update(ctx context.Context, c *Case) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE cases SET patient_age = $2, patient_gender = $3, drug_name = $4, drug_dosage = $5,
			adverse_reaction = $6, reaction_description = $7, severity = $8, status = $9,
			date_of_reaction = $10, concomitant_meds = $11, medical_history = $12, outcome = $13,
			updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted
		RETURNING updated_at`,
		c.ID, c.PatientAge, c.PatientGender, c.DrugName, c.DrugDosage,
		c.AdverseReaction, c.ReactionDescription, c.Severity, c.Status,
		c.DateOfReaction, c.ConcomitantMeds, c.MedicalHistory, c.Outcome,
	).Scan(&c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("case")
	}
	return err
}

func (r *repoPG) SoftDelete(ctx context.Context, id, deletedBy uuid.UUID, reason string) (*Case, error) {
	return scanCase(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE cases SET is_deleted = TRUE, deleted_at = NOW(), deleted_by = $2,
			deletion_reason = $3, updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted
		RETURNING `+caseCols, id, deletedBy, reason))
}

func (r *repoPG) ListCritical(ctx context.Context, f CriticalFilter) ([]*CriticalCandidate, error) {
	args := []any{f.Since, string(SeverityHigh), string(SeverityCritical),
		string(StatusUrgent), string(StatusNeedsReview), string(StatusInProgress)}
	q := `
		SELECT ` + prefixed("c.", caseCols) + `, lp.severity, lp.confidence
		FROM cases c
		LEFT JOIN LATERAL (
			SELECT p.prediction->'severity'->>'severity' AS severity, p.confidence
			FROM ai_predictions p
			WHERE p.case_id = c.id
			ORDER BY p.created_at DESC
			LIMIT 1
		) lp ON TRUE
		WHERE NOT c.is_deleted
			AND c.date_reported >= $1
			AND c.severity IN ($2, $3)
			AND c.status IN ($4, $5, $6)`
	if f.ReporterID != nil {
		args = append(args, *f.ReporterID)
		q += fmt.Sprintf(" AND c.reporter_id = $%d", len(args))
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list critical cases: %w", err)
	}
	defer rows.Close()

	var out []*CriticalCandidate
	for rows.Next() {
		cand := &CriticalCandidate{}
		c, err := scanCase(rows, &cand.PredictedSeverity, &cand.PredictedConfidence)
		if err != nil {
			return nil, err
		}
		cand.Case = c
		out = append(out, cand)
	}
	return out, rows.Err()
}

// prefixed qualifies each column in a comma-separated list.
func prefixed(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
