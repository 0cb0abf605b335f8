package application

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrInvalidInput is matched by every InputError.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmailAlreadyExists means the email is registered under some account kind.
	ErrEmailAlreadyExists = errors.New("email already registered")
	// ErrUserNotFound means no account of any kind has the email or id.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials means the password did not match the stored digest.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive means the credentials were right but the account is disabled.
	ErrAccountInactive = errors.New("account inactive")
	// ErrIdentityConflict means one email resolved to accounts of more than one kind.
	ErrIdentityConflict = errors.New("identity conflict")
	// ErrStorageUnavailable wraps failures of a store, the avatar bucket or the claim table.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrUnknownKind means no store is registered for the requested account kind.
	ErrUnknownKind = errors.New("unknown user kind")
	// ErrAvatarUnavailable means the service runs without avatar storage.
	ErrAvatarUnavailable = errors.New("avatar storage not configured")
)

// InputError lists the offending fields of a rejected request. It matches ErrInvalidInput.
type InputError struct {
	Fields map[string]string
}

func (e *InputError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return "invalid input: " + strings.Join(names, ", ")
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

func inputError(field, msg string) *InputError {
	return &InputError{Fields: map[string]string{field: msg}}
}
