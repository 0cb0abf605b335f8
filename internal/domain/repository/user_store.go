package repository

import (
	"context"
	"errors"
	"time"

	"github.com/artztall/user-service/internal/domain/entity"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("account not found")
	// ErrEmailTaken is returned by Save when the storage-level email
	// uniqueness constraint rejects the write.
	ErrEmailTaken = errors.New("email already taken")
	// ErrKindMismatch is returned by Save when the account is of a different kind than the store.
	ErrKindMismatch = errors.New("account kind does not match store")
)

// UserStore persists the accounts of a single user kind.
// Emails passed in are expected to be normalized with entity.NormalizeEmail.
type UserStore interface {
	Kind() entity.Kind
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindByEmail(ctx context.Context, email string) (entity.Account, error)
	FindByID(ctx context.Context, id string) (entity.Account, error)
	// Save inserts the account when its ID is empty and updates it otherwise.
	// It returns the persisted snapshot.
	Save(ctx context.Context, acc entity.Account) (entity.Account, error)
	// RecordLogin sets only the last-login time of account id and returns the
	// stored account. Other columns written concurrently are left alone.
	RecordLogin(ctx context.Context, id string, at time.Time) (entity.Account, error)
	// SetProfilePicture sets only the picture URL of account id and returns the stored account.
	SetProfilePicture(ctx context.Context, id, url string) (entity.Account, error)
}
