package entity

import "slices"

// Artisan sells artwork on the marketplace.
type Artisan struct {
	Identity
	Bio               string
	ArtworkCategories []string
	AverageRating     float64
	TotalSales        int
	Verified          bool
}

func (a Artisan) Base() Identity { return a.Identity }
func (Artisan) sealed()          {}

// NewArtisan builds an unsaved artisan with marketplace defaults.
func NewArtisan(id Identity, bio string, categories []string) Artisan {
	id.Kind = KindArtisan
	if categories == nil {
		categories = []string{}
	}
	return Artisan{
		Identity:          id,
		Bio:               bio,
		ArtworkCategories: slices.Clone(categories),
		AverageRating:     0.0,
		TotalSales:        0,
		Verified:          false,
	}
}
