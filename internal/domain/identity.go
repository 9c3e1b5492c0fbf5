package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role is the access level assigned to a user through their profile
type Role string

const (
	RoleAdministrator Role = "Administrator"
	RoleTeamMember    Role = "Team Member"
)

// DefaultLanguage is applied when a profile carries no language preference
const DefaultLanguage = "fr"

// Identity is the merged authentication + profile record for the current user
type Identity struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	AvatarURL string    `json:"avatar_url"`
	Language  string    `json:"language"`
}

// Profile is the stored profile row, keyed by the identity provider's user id
type Profile struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	AvatarURL string    `json:"avatar_url"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileUpdate carries the mutable profile fields; nil fields are left untouched
type ProfileUpdate struct {
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	FullName  *string `json:"full_name,omitempty" validate:"omitempty,max=255"`
	AvatarURL *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
	Language  *string `json:"language,omitempty" validate:"omitempty,len=2"`
}

// Empty reports whether the update would change nothing
func (u ProfileUpdate) Empty() bool {
	return u.Email == nil && u.FullName == nil && u.AvatarURL == nil && u.Language == nil
}

// ProfileRepository defines the interface for profile storage
type ProfileRepository interface {
	Create(ctx context.Context, profile *Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	Update(ctx context.Context, id uuid.UUID, update ProfileUpdate) error
	UpdateRole(ctx context.Context, id uuid.UUID, role Role) error
}

// Error taxonomy. Callers branch with errors.Is rather than string matching.
var (
	// ErrNotFound marks a distinguished "no row" outcome, non-fatal for
	// profile reads (defaults apply) as opposed to transport failures.
	ErrNotFound = errors.New("not found")

	// ErrAuthentication covers bad credentials; never retried automatically.
	ErrAuthentication = errors.New("authentication failed")

	// ErrProfileFetch marks a profile read failure on an otherwise valid
	// session; the session stays usable with the default role.
	ErrProfileFetch = errors.New("profile fetch failed")

	// ErrUpdate marks a failed profile update surfaced to the caller.
	ErrUpdate = errors.New("profile update failed")

	// ErrNoIdentity is returned by operations that need an authenticated
	// identity when none is active.
	ErrNoIdentity = errors.New("no active identity")
)
