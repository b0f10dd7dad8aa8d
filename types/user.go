package types

import (
	"database/sql"
	"time"
)

// AuthProvider identifies which credential path an account uses.
type AuthProvider string

const (
	// AuthProviderLocal marks accounts that authenticate with email+password.
	AuthProviderLocal AuthProvider = "local"

	// AuthProviderGoogle marks accounts linked to a Google identity.
	AuthProviderGoogle AuthProvider = "google"
)

// User represents an account in the system.
// It contains identity, credential, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the display name chosen by the user or derived
	// from the Google profile.
	Username string `json:"username" db:"username"`

	// Email is the user's email address, stored lowercase and unique.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// It is unset for Google-only accounts and never exposed in
	// API responses.
	PasswordHash sql.NullString `json:"-" db:"password_hash"`

	// GoogleID is the subject identifier issued by Google, unique
	// when present. Never exposed in API responses.
	GoogleID sql.NullString `json:"-" db:"google_id"`

	// AvatarURL is the profile picture URL from the Google profile, if any.
	AvatarURL string `json:"avatar_url,omitempty" db:"avatar_url"`

	// Provider indicates which credential-verification path applies.
	Provider AuthProvider `json:"auth_provider" db:"auth_provider"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
