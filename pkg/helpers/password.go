package helpers

import (
	"context"
	"errors"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// MinBcryptCost is the lowest cost the hasher will ever use.
const MinBcryptCost = 10

// ErrEmptyPassword is returned when hashing an empty password.
var ErrEmptyPassword = errors.New("password cannot be empty")

// BcryptHasher hashes passwords with bcrypt. The number of hashes computed at
// once is capped so that a burst of signups cannot starve the request workers.
type BcryptHasher struct {
	cost int
	sem  *semaphore.Weighted
	// dummy is verified against when the account does not exist so that
	// unknown emails cost as much as wrong passwords.
	dummy []byte
}

// NewBcryptHasher creates a hasher with the given cost (raised to MinBcryptCost
// when lower) and at most workers concurrent hash operations.
func NewBcryptHasher(cost, workers int) *BcryptHasher {
	if cost < MinBcryptCost {
		cost = MinBcryptCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cost)
	return &BcryptHasher{cost: cost, sem: semaphore.NewWeighted(int64(workers)), dummy: dummy}
}

// Cost reports the bcrypt cost in use.
func (h *BcryptHasher) Cost() int { return h.cost }

// Hash returns a salted bcrypt digest of plain.
func (h *BcryptHasher) Hash(ctx context.Context, plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// Verify reports whether plain matches digest. A malformed digest is a mismatch,
// not an error. The only error is ctx ending while waiting for a hashing slot.
func (h *BcryptHasher) Verify(ctx context.Context, plain, digest string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil, nil
}

// DummyVerify spends one verification worth of CPU and always reports false.
func (h *BcryptHasher) DummyVerify(ctx context.Context, plain string) bool {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plain))
	return false
}
