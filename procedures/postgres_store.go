package procedures

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/liamcoop/marches/rules"
)

// uniqueViolation is the PostgreSQL error code for a duplicate key
const uniqueViolation = "23505"

// PostgresStore implements Store backed by PostgreSQL.
// Record fields are kept in a JSONB column.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed Store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Add inserts a new procedure into the database
func (s *PostgresStore) Add(ctx context.Context, p *Procedure) error {
	data, err := json.Marshal(p.Data)
	if err != nil {
		return fmt.Errorf("failed to encode procedure %s: %w", p.ID, err)
	}

	stampNew(p)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO procedures (id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, p.ID, data, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("procedure %s: %w", p.ID, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to insert procedure: %w", err)
	}

	return nil
}

// Get retrieves a procedure by ID
func (s *PostgresStore) Get(ctx context.Context, id string) (*Procedure, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, data, created_at, updated_at
		FROM procedures
		WHERE id = $1
	`, id)

	p, err := scanProcedure(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("procedure %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get procedure: %w", err)
	}
	return p, nil
}

// List returns all procedures ordered by creation time
func (s *PostgresStore) List(ctx context.Context) ([]*Procedure, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data, created_at, updated_at
		FROM procedures
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list procedures: %w", err)
	}
	return collectProcedures(rows)
}

// Update replaces the data of an existing procedure
func (s *PostgresStore) Update(ctx context.Context, p *Procedure) error {
	data, err := json.Marshal(p.Data)
	if err != nil {
		return fmt.Errorf("failed to encode procedure %s: %w", p.ID, err)
	}

	p.UpdatedAt = time.Now()
	err = s.db.QueryRowContext(ctx, `
		UPDATE procedures
		SET data = $1, updated_at = $2
		WHERE id = $3
		RETURNING created_at
	`, data, p.UpdatedAt, p.ID).Scan(&p.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("procedure %s: %w", p.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update procedure: %w", err)
	}

	return nil
}

// Delete removes a procedure from the database
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM procedures
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete procedure: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("procedure %s: %w", id, ErrNotFound)
	}

	return nil
}

// Search matches query against the ID and the field values of the record.
// Field names are not searched.
func (s *PostgresStore) Search(ctx context.Context, query string) ([]*Procedure, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data, created_at, updated_at
		FROM procedures p
		WHERE p.id ILIKE '%' || $1 || '%'
		   OR EXISTS (
			SELECT 1 FROM jsonb_each_text(p.data) AS field
			WHERE field.value ILIKE '%' || $1 || '%'
		   )
		ORDER BY created_at ASC, id ASC
	`, escapeLike(strings.TrimSpace(query)))
	if err != nil {
		return nil, fmt.Errorf("failed to search procedures: %w", err)
	}
	return collectProcedures(rows)
}

// BulkInsert copies all procedures in one transaction using COPY
func (s *PostgresStore) BulkInsert(ctx context.Context, ps []*Procedure) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin bulk insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("procedures", "id", "data", "created_at", "updated_at"))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare bulk insert: %w", err)
	}

	for _, p := range ps {
		data, err := json.Marshal(p.Data)
		if err != nil {
			stmt.Close()
			return 0, fmt.Errorf("failed to encode procedure %s: %w", p.ID, err)
		}
		stampNew(p)
		if _, err := stmt.ExecContext(ctx, p.ID, string(data), p.CreatedAt, p.UpdatedAt); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("failed to copy procedure %s: %w", p.ID, err)
		}
	}

	// The buffered rows are sent on the final empty Exec
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("bulk insert: %w", ErrAlreadyExists)
		}
		return 0, fmt.Errorf("failed to flush bulk insert: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("failed to close bulk insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bulk insert: %w", err)
	}
	return len(ps), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProcedure(row rowScanner) (*Procedure, error) {
	var p Procedure
	var data []byte
	if err := row.Scan(&p.ID, &data, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &p.Data); err != nil {
		return nil, fmt.Errorf("invalid data for procedure %s: %w", p.ID, err)
	}
	if p.Data == nil {
		p.Data = rules.Record{}
	}
	return &p, nil
}

func collectProcedures(rows *sql.Rows) ([]*Procedure, error) {
	defer rows.Close()

	var out []*Procedure
	for rows.Next() {
		p, err := scanProcedure(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan procedure: %w", err)
		}
		out = append(out, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating procedures: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// escapeLike escapes the ILIKE wildcards in s
func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
