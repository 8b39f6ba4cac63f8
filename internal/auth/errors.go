package auth

import "errors"

var (
	// ErrInvalidPassword is returned by Verify when the password does not match.
	ErrInvalidPassword = errors.New("auth: invalid password")

	errMalformedHeader = errors.New("auth: Authorization header must use the Bearer scheme")
)
