package user

import "errors"

var (
	// ErrNotFound means no user matches the given identifier.
	ErrNotFound = errors.New("user not found")

	// ErrDuplicate means an insert or update would violate the email or
	// username uniqueness constraint.
	ErrDuplicate = errors.New("user with this email or username already exists")

	// ErrInvalidCredentials covers both unknown identifier and wrong
	// password so that login failures are indistinguishable to a client.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
