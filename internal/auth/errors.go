package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredential is returned for any rejected credential. It
	// never says whether the identifier or the secret was wrong.
	ErrInvalidCredential = errors.New("invalid credentials")

	// ErrUnauthorized means the request carries no live session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStoreUnavailable wraps failures of the session store or the
	// identity loader.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
