package application

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/artztall/user-service/internal/domain/entity"
	"github.com/artztall/user-service/internal/domain/repository"
)

const (
	defaultSearchSize = 10
	maxSearchSize     = 50
)

// ProfileService serves the signed-in account's own profile and the artisan directory.
type ProfileService struct {
	resolver *IdentityResolver
	avatars  AvatarStorage
	index    AccountIndex
	logger   *logrus.Logger
}

// NewProfileService builds the service. avatars and index may be nil when the
// backing services are not configured.
func NewProfileService(resolver *IdentityResolver, avatars AvatarStorage, index AccountIndex, logger *logrus.Logger) *ProfileService {
	if logger == nil {
		logger = logrus.New()
	}
	return &ProfileService{resolver: resolver, avatars: avatars, index: index, logger: logger}
}

// GetProfile loads the account a token was issued for.
func (s *ProfileService) GetProfile(ctx context.Context, kind entity.Kind, id string) (entity.Account, error) {
	acc, err := s.resolver.ResolveByID(ctx, kind, id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrUserNotFound
	case errors.Is(err, ErrUnknownKind):
		return nil, err
	case err != nil:
		return nil, storageError(err)
	}
	return acc, nil
}

// UploadAvatar stores r as the account's profile picture and saves the new URL.
func (s *ProfileService) UploadAvatar(ctx context.Context, kind entity.Kind, id, filename, contentType string, r io.Reader) (entity.Account, error) {
	if s.avatars == nil {
		return nil, ErrAvatarUnavailable
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, inputError("file", "must be an image")
	}
	if _, err := s.GetProfile(ctx, kind, id); err != nil {
		return nil, err
	}
	url, err := s.avatars.Upload(ctx, id, filename, contentType, r)
	if err != nil {
		s.logger.WithError(err).WithField("account_id", id).Error("avatar upload failed")
		return nil, storageError(err)
	}

	store, err := s.resolver.StoreFor(kind)
	if err != nil {
		return nil, err
	}
	saved, err := store.SetProfilePicture(context.WithoutCancel(ctx), id, url)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrUserNotFound
	case err != nil:
		s.logger.WithError(err).WithField("account_id", id).Error("save avatar url failed")
		return nil, storageError(err)
	}
	if s.index != nil {
		if err := s.index.Index(ctx, saved); err != nil {
			s.logger.WithError(err).WithField("account_id", id).Warn("index account failed")
		}
	}
	return saved, nil
}

// SearchArtisans queries the account directory. Without a directory it returns no hits.
func (s *ProfileService) SearchArtisans(ctx context.Context, query string, size int) ([]ArtisanHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, inputError("q", "is required")
	}
	if size <= 0 || size > maxSearchSize {
		size = defaultSearchSize
	}
	if s.index == nil {
		return []ArtisanHit{}, nil
	}
	hits, err := s.index.SearchArtisans(ctx, query, size)
	if err != nil {
		s.logger.WithError(err).Warn("artisan search failed")
		return nil, storageError(err)
	}
	return hits, nil
}
