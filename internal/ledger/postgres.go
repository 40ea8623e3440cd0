package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PostgresLedger persists authorization tokens in PostgreSQL.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed token ledger.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Provision inserts a fresh, unused token.
func (l *PostgresLedger) Provision(ctx context.Context, code string, now time.Time) (Token, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Token{}, ErrInvalidCode
	}
	_, err := l.db.Exec(ctx, `INSERT INTO authorization_tokens (code, used, created_at) VALUES ($1, false, $2)`, code, now.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Token{}, ErrDuplicateCode
		}
		return Token{}, fmt.Errorf("provision token: %w", err)
	}
	return Token{Code: code, CreatedAt: now.UTC()}, nil
}

// Get fetches a token by code.
func (l *PostgresLedger) Get(ctx context.Context, code string) (Token, error) {
	row := l.db.QueryRow(ctx, `SELECT code, used, consumed_at, created_at FROM authorization_tokens WHERE code = $1`, NormalizeCode(code))
	tok, err := scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Token{}, ErrNotFound
		}
		return Token{}, err
	}
	return tok, nil
}

// Redeem consumes the token with a single conditional UPDATE guarded by
// used = false. Only when no row changed is the token re-read, to tell a
// missing code from a consumed one.
func (l *PostgresLedger) Redeem(ctx context.Context, code string, now time.Time) (Token, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Token{}, ErrNotFound
	}

	const redeem = `
        UPDATE authorization_tokens
        SET used = true, consumed_at = $2
        WHERE code = $1 AND used = false
        RETURNING code, used, consumed_at, created_at`
	tok, err := scanToken(l.db.QueryRow(ctx, redeem, code, now.UTC()))
	if err == nil {
		return tok, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Token{}, fmt.Errorf("redeem token: %w", err)
	}

	existing, err := l.Get(ctx, code)
	if err != nil {
		return Token{}, err
	}
	return existing, ErrAlreadyUsed
}

// Release returns a consumed token to the unused state.
func (l *PostgresLedger) Release(ctx context.Context, code string) error {
	cmd, err := l.db.Exec(ctx, `
        UPDATE authorization_tokens
        SET used = false, consumed_at = NULL
        WHERE code = $1 AND used = true`, NormalizeCode(code))
	if err != nil {
		return fmt.Errorf("release token: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanToken(row pgx.Row) (Token, error) {
	var (
		tok        Token
		consumedAt *time.Time
	)
	if err := row.Scan(&tok.Code, &tok.Used, &consumedAt, &tok.CreatedAt); err != nil {
		return Token{}, err
	}
	if consumedAt != nil {
		utc := consumedAt.UTC()
		tok.ConsumedAt = &utc
	}
	tok.CreatedAt = tok.CreatedAt.UTC()
	return tok, nil
}
