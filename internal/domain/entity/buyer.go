package entity

// Address is a buyer's primary postal address.
type Address struct {
	Street     string `json:"street" validate:"required,max=200"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"max=100"`
	Country    string `json:"country" validate:"required,max=100"`
	PostalCode string `json:"postalCode" validate:"max=20"`
	IsDefault  bool   `json:"isDefault"`
}

// Buyer purchases artwork.
type Buyer struct {
	Identity
	Address                *Address
	FavoriteArtisans       []string
	RecentlyViewedProducts []string
}

func (b Buyer) Base() Identity { return b.Identity }
func (Buyer) sealed()          {}

// NewBuyer builds an unsaved buyer with empty favorite and history lists.
func NewBuyer(id Identity, addr *Address) Buyer {
	id.Kind = KindBuyer
	var a *Address
	if addr != nil {
		c := *addr
		a = &c
	}
	return Buyer{
		Identity:               id,
		Address:                a,
		FavoriteArtisans:       []string{},
		RecentlyViewedProducts: []string{},
	}
}
