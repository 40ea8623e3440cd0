package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists identities. Uniqueness of (kind, display key), recovery
// phrase and wallet address is enforced by the backend itself.
type Repository interface {
	Create(ctx context.Context, identity Identity) error
	FindByID(ctx context.Context, id string) (Identity, error)
	FindByDisplayKey(ctx context.Context, kind Kind, displayKey string) (Identity, error)
	FindByPhrase(ctx context.Context, phrase string) (Identity, error)
	BindWallet(ctx context.Context, id, address string) error
	UnbindWallet(ctx context.Context, id string) error
	SetBiometric(ctx context.Context, id, reference string) error
	Delete(ctx context.Context, id string) error
}

const (
	constraintDisplayKey = "uq_identities_display_key"
	constraintPhrase     = "uq_identities_recovery_phrase"
	constraintWallet     = "uq_identities_wallet_address"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, kind, display_key, email, name, mobile, institution_name, branch_name,
        ifsc_code, manager_code_used, recovery_phrase, wallet_address, biometric_registered,
        biometric_reference, created_at`

// Create inserts a new identity.
func (r *PostgresRepository) Create(ctx context.Context, identity Identity) error {
	id, err := uuid.Parse(identity.ID)
	if err != nil {
		return err
	}
	var ind IndividualContact
	var inst InstitutionContact
	switch c := identity.Contact.(type) {
	case IndividualContact:
		ind = c
	case InstitutionContact:
		inst = c
	}
	_, err = r.db.Exec(ctx, `INSERT INTO identities (`+selectColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		id, string(identity.Kind), identity.DisplayKey, ind.Email, ind.Name, ind.Mobile,
		inst.InstitutionName, inst.BranchName, inst.IFSCCode, inst.ManagerCodeUsed,
		identity.RecoveryPhrase, nullable(identity.WalletAddress), identity.BiometricRegistered,
		nullable(identity.BiometricReference), identity.CreatedAt.UTC())
	return classify(err)
}

// FindByID fetches an identity by its identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Identity, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Identity{}, ErrNotFound
	}
	return r.findOne(ctx, `SELECT `+selectColumns+` FROM identities WHERE id = $1`, parsed)
}

// FindByDisplayKey fetches an identity by kind and display key.
func (r *PostgresRepository) FindByDisplayKey(ctx context.Context, kind Kind, displayKey string) (Identity, error) {
	return r.findOne(ctx, `SELECT `+selectColumns+` FROM identities WHERE kind = $1 AND display_key = $2`, string(kind), displayKey)
}

// FindByPhrase fetches the identity holding a recovery phrase.
func (r *PostgresRepository) FindByPhrase(ctx context.Context, phrase string) (Identity, error) {
	return r.findOne(ctx, `SELECT `+selectColumns+` FROM identities WHERE recovery_phrase = $1`, phrase)
}

// BindWallet sets the wallet address. Rebinding the same address to the same
// identity matches the row without violating the unique index.
func (r *PostgresRepository) BindWallet(ctx context.Context, id, address string) error {
	return r.update(ctx, `UPDATE identities SET wallet_address = $2 WHERE id = $1`, id, address)
}

// UnbindWallet clears the wallet address.
func (r *PostgresRepository) UnbindWallet(ctx context.Context, id string) error {
	return r.update(ctx, `UPDATE identities SET wallet_address = NULL WHERE id = $1`, id)
}

// SetBiometric marks the identity biometric-registered with the capture reference.
func (r *PostgresRepository) SetBiometric(ctx context.Context, id, reference string) error {
	return r.update(ctx, `UPDATE identities SET biometric_registered = true, biometric_reference = $2 WHERE id = $1`, id, reference)
}

// Delete removes an identity. It exists to roll back a registration that
// failed after the row was written.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return r.update(ctx, `DELETE FROM identities WHERE id = $1`, id)
}

func (r *PostgresRepository) update(ctx context.Context, query, id string, args ...any) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, query, append([]any{parsed}, args...)...)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, args ...any) (Identity, error) {
	var (
		id                   uuid.UUID
		kind                 string
		ind                  IndividualContact
		inst                 InstitutionContact
		wallet, biometricRef *string
		createdAt            time.Time
		identity             Identity
	)
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&id, &kind, &identity.DisplayKey, &ind.Email, &ind.Name, &ind.Mobile,
		&inst.InstitutionName, &inst.BranchName, &inst.IFSCCode, &inst.ManagerCodeUsed,
		&identity.RecoveryPhrase, &wallet, &identity.BiometricRegistered, &biometricRef, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, err
	}
	identity.ID = id.String()
	identity.Kind = Kind(kind)
	if identity.Kind == KindInstitution {
		identity.Contact = inst
	} else {
		identity.Contact = ind
	}
	if wallet != nil {
		identity.WalletAddress = *wallet
	}
	if biometricRef != nil {
		identity.BiometricReference = *biometricRef
	}
	identity.CreatedAt = createdAt.UTC()
	return identity, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// classify maps unique violations onto domain errors by constraint name.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch c := strings.ToLower(pgErr.ConstraintName); {
	case c == constraintDisplayKey:
		return ErrDuplicateKey
	case c == constraintPhrase:
		return errPhraseCollision
	case c == constraintWallet:
		return ErrAddressInUse
	default:
		return fmt.Errorf("unique violation on %s: %w", pgErr.ConstraintName, err)
	}
}
