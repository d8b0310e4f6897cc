package user

import (
	"time"

	"github.com/gofrs/uuid"
)

// User is the domain representation of an account. PasswordHash holds the
// bcrypt digest and is never serialized.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Username     string    `json:"username" db:"username"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Update carries the allow-listed mutable fields for an update operation.
// Nil means "leave unchanged". Password is the plaintext to be rehashed;
// id/created_at/updated_at are server-controlled and deliberately absent.
type Update struct {
	Email     *string
	Username  *string
	FirstName *string
	LastName  *string
	Password  *string
}
