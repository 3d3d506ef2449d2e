package services

import (
	"errors"

	"github.com/knowreal/knowreal-backend/pkg/utils"
)

var (
	// ErrUnauthenticated means no identity was supplied; no query is run.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrDreamNotFound covers both a missing dream and one owned by someone else.
	ErrDreamNotFound = errors.New("dream not found")
	// ErrStoreUnavailable wraps any failure reported by the record store.
	ErrStoreUnavailable = errors.New("failed to load dreams")
	// ErrInvalidCredentials is returned by Signin for unknown users and bad passwords alike.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrAccountInactive    = errors.New("account is inactive")
)

// ValidationError is the field-level input error shared with pkg/utils.
type ValidationError = utils.ValidationError
