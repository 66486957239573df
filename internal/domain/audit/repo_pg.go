package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const entryCols = `id, user_id, action, resource, resource_id, details, ip_address, user_agent, severity, timestamp`

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		e       Entry
		details []byte
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Action, &e.Resource, &e.ResourceID,
		&details, &e.IPAddress, &e.UserAgent, &e.Severity, &e.Timestamp); err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, fmt.Errorf("decode audit details: %w", err)
		}
	}
	return &e, nil
}

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	var details []byte
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		details = b
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO audit_logs (user_id, action, resource, resource_id, details, ip_address, user_agent, severity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, timestamp`,
		e.UserID, e.Action, e.Resource, e.ResourceID, details, e.IPAddress, e.UserAgent, e.Severity,
	).Scan(&e.ID, &e.Timestamp)
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Entry, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if f.Severity != "" {
		add("severity = $%d", f.Severity)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	q := fmt.Sprintf("SELECT %s FROM audit_logs %s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d",
		entryCols, whereClause, len(args)+1, len(args)+2)
	rows, err := conn.Query(ctx, q, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	items := make([]*Entry, 0, f.Limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}
