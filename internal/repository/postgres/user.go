package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Account is a built-in identity provider account row. Profiles live in
// their own table; this only covers credentials and email ownership.
type Account struct {
	ID            uuid.UUID
	Email         string
	PasswordHash  string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AccountRepository stores identity provider accounts
type AccountRepository struct {
	db *DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// ErrAccountNotFound marks a missing account row
var ErrAccountNotFound = errors.New("account not found")

func (r *AccountRepository) Create(ctx context.Context, account *Account) error {
	query := `
		INSERT INTO accounts (id, email, password_hash, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.EmailVerified,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	query := `
		SELECT id, email, password_hash, email_verified, created_at, updated_at
		FROM accounts
		WHERE email = $1
	`
	var a Account
	err := r.db.Pool.QueryRow(ctx, query, email).Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.EmailVerified, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	query := `
		SELECT id, email, password_hash, email_verified, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`
	var a Account
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.EmailVerified, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}

func (r *AccountRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

func (r *AccountRepository) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE accounts SET email = $1, updated_at = $2 WHERE id = $3`,
		email, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) MarkVerified(ctx context.Context, email string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE accounts SET email_verified = TRUE, updated_at = $1 WHERE email = $2`,
		time.Now(), email)
	if err != nil {
		return fmt.Errorf("failed to mark account verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}
