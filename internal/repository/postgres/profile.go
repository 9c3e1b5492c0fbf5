package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prosomo/agenthub/internal/domain"
)

// ProfileRepository implements domain.ProfileRepository
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	query := `
		INSERT INTO user_profiles (id, full_name, role, avatar_url, language, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		profile.ID,
		profile.FullName,
		profile.Role,
		profile.AvatarURL,
		profile.Language,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	query := `
		SELECT id, full_name, role, avatar_url, language, created_at, updated_at
		FROM user_profiles
		WHERE id = $1
	`
	var p domain.Profile
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.FullName,
		&p.Role,
		&p.AvatarURL,
		&p.Language,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

func (r *ProfileRepository) Update(ctx context.Context, id uuid.UUID, update domain.ProfileUpdate) error {
	sets := []string{"updated_at = $1"}
	args := []any{time.Now()}

	if update.FullName != nil {
		args = append(args, *update.FullName)
		sets = append(sets, fmt.Sprintf("full_name = $%d", len(args)))
	}
	if update.AvatarURL != nil {
		args = append(args, *update.AvatarURL)
		sets = append(sets, fmt.Sprintf("avatar_url = $%d", len(args)))
	}
	if update.Language != nil {
		args = append(args, *update.Language)
		sets = append(sets, fmt.Sprintf("language = $%d", len(args)))
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE user_profiles SET %s WHERE id = $%d",
		strings.Join(sets, ", "), len(args))

	tag, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ProfileRepository) UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	query := `UPDATE user_profiles SET role = $1, updated_at = $2 WHERE id = $3`
	tag, err := r.db.Pool.Exec(ctx, query, role, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
