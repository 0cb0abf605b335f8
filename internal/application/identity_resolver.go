package application

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/artztall/user-service/internal/domain/entity"
	"github.com/artztall/user-service/internal/domain/repository"
)

// IdentityResolver answers which kind of account an email belongs to by probing
// every kind's store in a fixed order.
type IdentityResolver struct {
	stores []repository.UserStore
	byKind map[entity.Kind]repository.UserStore
	logger *logrus.Logger
}

// NewIdentityResolver orders stores by entity.Kinds regardless of argument order.
// Every kind must have exactly one store.
func NewIdentityResolver(logger *logrus.Logger, stores ...repository.UserStore) (*IdentityResolver, error) {
	byKind := make(map[entity.Kind]repository.UserStore, len(stores))
	for _, s := range stores {
		if _, dup := byKind[s.Kind()]; dup {
			return nil, errors.New("duplicate store for kind " + s.Kind().String())
		}
		byKind[s.Kind()] = s
	}
	ordered := make([]repository.UserStore, 0, len(entity.Kinds))
	for _, k := range entity.Kinds {
		s, ok := byKind[k]
		if !ok {
			return nil, errors.New("missing store for kind " + k.String())
		}
		ordered = append(ordered, s)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &IdentityResolver{stores: ordered, byKind: byKind, logger: logger}, nil
}

// StoreFor returns the store holding accounts of kind.
func (r *IdentityResolver) StoreFor(kind entity.Kind) (repository.UserStore, error) {
	s, ok := r.byKind[kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	return s, nil
}

// EmailTaken reports whether any store already holds email.
func (r *IdentityResolver) EmailTaken(ctx context.Context, email string) (bool, error) {
	email = entity.NormalizeEmail(email)
	for _, s := range r.stores {
		ok, err := s.ExistsByEmail(ctx, email)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// ResolveByEmail returns the single account registered under email.
// No match is repository.ErrNotFound; matches in several stores is ErrIdentityConflict.
func (r *IdentityResolver) ResolveByEmail(ctx context.Context, email string) (entity.Account, error) {
	email = entity.NormalizeEmail(email)
	var (
		found entity.Account
		kinds []string
	)
	for _, s := range r.stores {
		acc, err := s.FindByEmail(ctx, email)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, s.Kind().String())
		if found == nil {
			found = acc
		}
	}
	switch {
	case len(kinds) == 0:
		return nil, repository.ErrNotFound
	case len(kinds) > 1:
		r.logger.WithFields(logrus.Fields{"email": email, "kinds": kinds}).
			Error("email registered under more than one account kind")
		return nil, ErrIdentityConflict
	}
	return found, nil
}

// ResolveByID loads an account when its kind is already known, e.g. from a token claim.
func (r *IdentityResolver) ResolveByID(ctx context.Context, kind entity.Kind, id string) (entity.Account, error) {
	s, err := r.StoreFor(kind)
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, id)
}
