package application

import (
	"context"
	"io"
	"time"

	"github.com/artztall/user-service/internal/domain/entity"
)

// LoginMeta describes the request a login came from.
type LoginMeta struct {
	IP        string
	UserAgent string
}

// Notifier sends account emails. Implementations must not block on delivery.
type Notifier interface {
	Welcome(ctx context.Context, acc entity.Account) error
	LoginAlert(ctx context.Context, acc entity.Account, meta LoginMeta) error
}

// ArtisanHit is one search result from the account directory.
type ArtisanHit struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Bio               string   `json:"bio,omitempty"`
	ArtworkCategories []string `json:"artworkCategories,omitempty"`
	ProfilePictureURL string   `json:"profileImageRef,omitempty"`
	Verified          bool     `json:"verified"`
}

// AccountIndex mirrors accounts into a search directory.
type AccountIndex interface {
	Index(ctx context.Context, acc entity.Account) error
	SearchArtisans(ctx context.Context, query string, size int) ([]ArtisanHit, error)
}

// AvatarStorage stores uploaded profile pictures and returns their public URL.
type AvatarStorage interface {
	Upload(ctx context.Context, accountID, filename, contentType string, r io.Reader) (string, error)
}

// PasswordHasher hashes and verifies passwords. Verify reports a bad digest as a
// mismatch and returns an error only when ctx ends first.
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(ctx context.Context, plain, digest string) (bool, error)
	DummyVerify(ctx context.Context, plain string) bool
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(subjectID, email string, kind entity.Kind) (string, time.Time, error)
}
