package types

import "time"

// Streak tracks a user's daily check-in run. One row per user.
type Streak struct {
	// ID is the unique identifier of the streak row.
	ID int `json:"id" db:"id"`

	// UserID is the owner of the streak.
	UserID int `json:"user_id" db:"user_id"`

	// Count is the length of the current run of consecutive daily
	// check-ins. Zero until the first check-in or after a reset.
	Count int `json:"count" db:"count"`

	// Longest is the longest run ever recorded for this user.
	Longest int `json:"longest" db:"longest"`

	// LastCheckIn is the timestamp of the most recent check-in.
	// Zero when the user has never checked in.
	LastCheckIn time.Time `json:"last_check_in" db:"last_check_in"`

	// CreatedAt is the timestamp when the streak row was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
