// Package memory holds in-process UserStore adapters. They back STORE_DRIVER=memory
// and the application tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/artztall/user-service/internal/domain/entity"
	"github.com/artztall/user-service/internal/domain/repository"
)

// EmailIndex is the shared email namespace across every memory store.
// It plays the role of the account_emails unique constraint in postgres.
type EmailIndex struct {
	mu     sync.Mutex
	owners map[string]string // email -> account id
}

func NewEmailIndex() *EmailIndex {
	return &EmailIndex{owners: make(map[string]string)}
}

// claim reserves email for id. Re-claiming an email already owned by id is a no-op.
func (x *EmailIndex) claim(email, id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if owner, ok := x.owners[email]; ok && owner != id {
		return false
	}
	x.owners[email] = id
	return true
}

func (x *EmailIndex) release(email, id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.owners[email] == id {
		delete(x.owners, email)
	}
}

// UserStore keeps the accounts of one kind in memory.
type UserStore struct {
	kind    entity.Kind
	emails  *EmailIndex
	mu      sync.RWMutex
	byID    map[string]entity.Account
	byEmail map[string]string
}

var _ repository.UserStore = (*UserStore)(nil)

// NewUserStore creates a store for kind. Stores that share an EmailIndex share
// one email namespace.
func NewUserStore(kind entity.Kind, emails *EmailIndex) *UserStore {
	if emails == nil {
		emails = NewEmailIndex()
	}
	return &UserStore{
		kind:    kind,
		emails:  emails,
		byID:    make(map[string]entity.Account),
		byEmail: make(map[string]string),
	}
}

func (s *UserStore) Kind() entity.Kind { return s.kind }

func (s *UserStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byEmail[email]
	return ok, nil
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (entity.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return entity.Clone(s.byID[id]), nil
}

func (s *UserStore) FindByID(_ context.Context, id string) (entity.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return entity.Clone(acc), nil
}

func (s *UserStore) Save(_ context.Context, acc entity.Account) (entity.Account, error) {
	if acc == nil || acc.Base().Kind != s.kind {
		return nil, repository.ErrKindMismatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := acc.Base()
	if base.ID == "" {
		id := uuid.NewString()
		if !s.emails.claim(base.Email, id) {
			return nil, repository.ErrEmailTaken
		}
		saved := entity.WithID(acc, id)
		s.byID[id] = saved
		s.byEmail[base.Email] = id
		return entity.Clone(saved), nil
	}

	prev, ok := s.byID[base.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	oldEmail := prev.Base().Email
	if oldEmail != base.Email {
		if !s.emails.claim(base.Email, base.ID) {
			return nil, repository.ErrEmailTaken
		}
		s.emails.release(oldEmail, base.ID)
		delete(s.byEmail, oldEmail)
		s.byEmail[base.Email] = base.ID
	}
	saved := entity.Clone(acc)
	s.byID[base.ID] = saved
	return entity.Clone(saved), nil
}

func (s *UserStore) RecordLogin(_ context.Context, id string, at time.Time) (entity.Account, error) {
	return s.patch(id, func(acc entity.Account) entity.Account { return entity.WithLastLogin(acc, at) })
}

func (s *UserStore) SetProfilePicture(_ context.Context, id, url string) (entity.Account, error) {
	return s.patch(id, func(acc entity.Account) entity.Account { return entity.WithProfilePicture(acc, url) })
}

// patch applies fn to the current stored account under the write lock.
func (s *UserStore) patch(id string, fn func(entity.Account) entity.Account) (entity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	saved := fn(cur)
	s.byID[id] = saved
	return entity.Clone(saved), nil
}
