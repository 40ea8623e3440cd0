package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists password hashes.
type Repository interface {
	Upsert(ctx context.Context, cred Credential) error
	Find(ctx context.Context, kind, displayKey string) (Credential, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed credential repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert stores or replaces the hash for an account.
func (r *PostgresRepository) Upsert(ctx context.Context, cred Credential) error {
	_, err := r.db.Exec(ctx, `INSERT INTO credentials (kind, display_key, password_hash, updated_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (kind, display_key) DO UPDATE SET password_hash = EXCLUDED.password_hash, updated_at = EXCLUDED.updated_at`,
		cred.Kind, cred.DisplayKey, cred.PasswordHash, cred.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

// Find loads the hash for an account.
func (r *PostgresRepository) Find(ctx context.Context, kind, displayKey string) (Credential, error) {
	row := r.db.QueryRow(ctx, `SELECT kind, display_key, password_hash, updated_at FROM credentials WHERE kind = $1 AND display_key = $2`, kind, displayKey)
	var (
		cred      Credential
		updatedAt time.Time
	)
	if err := row.Scan(&cred.Kind, &cred.DisplayKey, &cred.PasswordHash, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, ErrNotFound
		}
		return Credential{}, err
	}
	cred.UpdatedAt = updatedAt.UTC()
	return cred, nil
}
