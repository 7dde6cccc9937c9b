package leads

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the repository needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores lead records in the relational database.
type PostgresRepository struct {
	db Querier
}

// NewPostgresRepository initializes a repo backed by a pgx pool.
func NewPostgresRepository(db Querier) *PostgresRepository {
	if db == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

// Save inserts the record. Re-saving the same id is a no-op.
func (r *PostgresRepository) Save(ctx context.Context, record Record) error {
	if err := validateRecord(record); err != nil {
		return err
	}

	query := `
		INSERT INTO lead_records (id, name, email, phone, company, message, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query,
		record.ID,
		record.Name,
		record.Email,
		record.Phone,
		record.Company,
		record.Message,
		record.Source,
		record.CreatedAt,
	); err != nil {
		return fmt.Errorf("leads: insert failed: %w", err)
	}
	return nil
}

// GetByID fetches a single record.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	query := `
		SELECT id, name, email, phone, company, message, source, created_at
		FROM lead_records
		WHERE id = $1
	`
	var rec Record
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.Name,
		&rec.Email,
		&rec.Phone,
		&rec.Company,
		&rec.Message,
		&rec.Source,
		&rec.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return &rec, nil
}

// List returns records newest first.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, name, email, phone, company, message, source, created_at
		FROM lead_records
		WHERE ($1 = '' OR source = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, filter.Source, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.ID,
			&rec.Name,
			&rec.Email,
			&rec.Phone,
			&rec.Company,
			&rec.Message,
			&rec.Source,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("leads: scan failed: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: list rows: %w", err)
	}
	return out, nil
}
