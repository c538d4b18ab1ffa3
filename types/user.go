package types

import "time"

// User represents an account in the system.
// It contains identity, contact, and audit metadata.
type User struct {
	// ID is the unique identifier of the user. It is a UUID string on the
	// relational backend and an ObjectID hex string on the document backend.
	ID string `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's unique email address.
	Email string `json:"email" db:"email"`

	// Mobile is the user's unique 10-digit mobile number.
	Mobile string `json:"mobile" db:"mobile"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// IsActive indicates whether the account is enabled.
	IsActive bool `json:"is_active" db:"is_active"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
