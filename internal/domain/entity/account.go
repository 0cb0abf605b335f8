package entity

import (
	"slices"
	"strings"
	"time"
)

// Kind is the closed set of user kinds. Every account belongs to exactly one.
type Kind string

const (
	KindArtisan Kind = "ARTISAN"
	KindBuyer   Kind = "BUYER"
)

// Kinds lists every known kind in resolution order.
var Kinds = []Kind{KindArtisan, KindBuyer}

// ParseKind maps a user supplied selector onto a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindArtisan:
		return KindArtisan, true
	case KindBuyer:
		return KindBuyer, true
	}
	return "", false
}

func (k Kind) String() string { return string(k) }

// Identity is the schema shared by all user kinds.
// PasswordHash always holds a hasher digest, never plain text.
type Identity struct {
	ID                string
	Email             string
	PasswordHash      string
	Name              string
	Phone             string
	ProfilePictureURL string
	JoinedAt          time.Time
	LastLoginAt       *time.Time
	Active            bool
	Kind              Kind
}

// Account is implemented only by Artisan and Buyer.
type Account interface {
	Base() Identity
	sealed()
}

// NormalizeEmail is the canonical form under which emails are stored and compared.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Clone returns a deep copy of acc so the caller never shares slices with it.
func Clone(acc Account) Account {
	switch a := acc.(type) {
	case Artisan:
		a.ArtworkCategories = slices.Clone(a.ArtworkCategories)
		a.LastLoginAt = cloneTime(a.LastLoginAt)
		return a
	case Buyer:
		a.FavoriteArtisans = slices.Clone(a.FavoriteArtisans)
		a.RecentlyViewedProducts = slices.Clone(a.RecentlyViewedProducts)
		a.LastLoginAt = cloneTime(a.LastLoginAt)
		if a.Address != nil {
			addr := *a.Address
			a.Address = &addr
		}
		return a
	}
	return acc
}

// WithID returns a copy of acc carrying the given id.
func WithID(acc Account, id string) Account {
	return update(acc, func(i *Identity) { i.ID = id })
}

// WithLastLogin returns a copy of acc stamped with a new last-login time.
func WithLastLogin(acc Account, at time.Time) Account {
	return update(acc, func(i *Identity) {
		t := at
		i.LastLoginAt = &t
	})
}

// WithProfilePicture returns a copy of acc pointing at a new picture.
func WithProfilePicture(acc Account, url string) Account {
	return update(acc, func(i *Identity) { i.ProfilePictureURL = url })
}

func update(acc Account, fn func(*Identity)) Account {
	switch a := Clone(acc).(type) {
	case Artisan:
		fn(&a.Identity)
		a.Kind = KindArtisan
		return a
	case Buyer:
		fn(&a.Identity)
		a.Kind = KindBuyer
		return a
	}
	return acc
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
