package handlers

import (
	"time"

	"github.com/artztall/user-service/internal/domain/entity"
)

// AccountDTO is the public view of an account. Password digests never leave the service.
type AccountDTO struct {
	Token             string          `json:"token,omitempty"`
	ID                string          `json:"id"`
	Email             string          `json:"email"`
	Name              string          `json:"name"`
	UserType          entity.Kind     `json:"userType"`
	ProfileImageRef   string          `json:"profileImageRef"`
	Phone             string          `json:"phone"`
	JoinedAt          time.Time       `json:"joinedAt"`
	LastLoginAt       *time.Time      `json:"lastLoginAt,omitempty"`
	Bio               *string         `json:"bio,omitempty"`
	ArtworkCategories []string        `json:"artworkCategories,omitempty"`
	AverageRating     *float64        `json:"averageRating,omitempty"`
	TotalSales        *int            `json:"totalSales,omitempty"`
	Verified          *bool           `json:"verified,omitempty"`
	Address           *entity.Address `json:"address,omitempty"`
	FavoriteArtisans  []string        `json:"favoriteArtisans,omitempty"`
}

func toAccountDTO(acc entity.Account, token string) AccountDTO {
	b := acc.Base()
	out := AccountDTO{
		Token:           token,
		ID:              b.ID,
		Email:           b.Email,
		Name:            b.Name,
		UserType:        b.Kind,
		ProfileImageRef: b.ProfilePictureURL,
		Phone:           b.Phone,
		JoinedAt:        b.JoinedAt,
		LastLoginAt:     b.LastLoginAt,
	}
	switch a := acc.(type) {
	case entity.Artisan:
		out.Bio = &a.Bio
		out.ArtworkCategories = a.ArtworkCategories
		out.AverageRating = &a.AverageRating
		out.TotalSales = &a.TotalSales
		out.Verified = &a.Verified
	case entity.Buyer:
		out.Address = a.Address
		out.FavoriteArtisans = a.FavoriteArtisans
	}
	return out
}
