package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/quantapay/gateway/internal/domain"
)

// PostgresRepository persists payments as a JSONB document alongside
// the handful of columns the filters need. The document is the source
// of truth; the columns are denormalized for indexing only.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) Create(ctx context.Context, p *domain.Payment) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("Create: marshal: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO payments (id, type, status, sender_id, recipient_id, next_execution_at, doc, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Type, p.Status, p.Sender.ID, p.Recipient.ID, nextExecution(p), doc, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicatePayment)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT doc FROM payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Get: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("Get: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Update(ctx context.Context, p *domain.Payment) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("Update: marshal: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE payments
		 SET type = $1, status = $2, sender_id = $3, recipient_id = $4,
		     next_execution_at = $5, doc = $6, updated_at = $7
		 WHERE id = $8`,
		p.Type, p.Status, p.Sender.ID, p.Recipient.ID, nextExecution(p), doc, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Update: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]*domain.Payment, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.SenderID != "" {
		add("sender_id = $%d", f.SenderID)
	}
	if f.RecipientID != "" {
		add("recipient_id = $%d", f.RecipientID)
	}
	if f.DueBefore != nil {
		add("next_execution_at IS NOT NULL AND next_execution_at <= $%d", *f.DueBefore)
	}

	query := `SELECT doc FROM payments`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	var out []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("List: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return out, nil
}

func scanPayment(s scanner) (*domain.Payment, error) {
	var doc []byte
	if err := s.Scan(&doc); err != nil {
		return nil, err
	}
	var p domain.Payment
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("scanPayment: unmarshal: %w", err)
	}
	return &p, nil
}

func nextExecution(p *domain.Payment) *time.Time {
	if p.Schedule == nil || p.Schedule.NextExecutionAt.IsZero() {
		return nil
	}
	t := p.Schedule.NextExecutionAt
	return &t
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
