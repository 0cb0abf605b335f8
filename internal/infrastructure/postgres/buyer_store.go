package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/artztall/user-service/internal/domain/entity"
	"github.com/artztall/user-service/internal/domain/repository"
)

const buyerColumns = `id, email, password_hash, name, phone, profile_picture_url,
		joined_at, last_login_at, active,
		address, favorite_artisans, recently_viewed_products`

// BuyerStore implements repository.UserStore for the buyers table.
type BuyerStore struct {
	db DB
}

var _ repository.UserStore = (*BuyerStore)(nil)

func NewBuyerStore(db DB) *BuyerStore {
	return &BuyerStore{db: db}
}

func (s *BuyerStore) Kind() entity.Kind { return entity.KindBuyer }

func (s *BuyerStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM buyers WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, oops.Code("BUYER_EXISTS_FAILED").With("email", email).Wrap(err)
	}
	return exists, nil
}

func (s *BuyerStore) FindByEmail(ctx context.Context, email string) (entity.Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+buyerColumns+` FROM buyers WHERE email = $1`, email)
	b, err := scanBuyer(row)
	if err != nil {
		return nil, oops.Code("BUYER_GET_BY_EMAIL_FAILED").With("email", email).Wrap(classify(err))
	}
	return b, nil
}

func (s *BuyerStore) FindByID(ctx context.Context, id string) (entity.Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+buyerColumns+` FROM buyers WHERE id = $1`, id)
	b, err := scanBuyer(row)
	if err != nil {
		return nil, oops.Code("BUYER_GET_BY_ID_FAILED").With("id", id).Wrap(classify(err))
	}
	return b, nil
}

func (s *BuyerStore) Save(ctx context.Context, acc entity.Account) (entity.Account, error) {
	b, ok := acc.(entity.Buyer)
	if !ok {
		return nil, repository.ErrKindMismatch
	}
	if b.ID == "" {
		return s.insert(ctx, b)
	}
	return s.update(ctx, b)
}

func (s *BuyerStore) insert(ctx context.Context, b entity.Buyer) (entity.Account, error) {
	saved := entity.WithID(b, uuid.NewString()).(entity.Buyer)
	addr, err := encodeAddress(saved.Address)
	if err != nil {
		return nil, oops.Code("BUYER_CREATE_FAILED").With("operation", "marshal address").Wrap(err)
	}
	err = inTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := claimEmail(ctx, tx, saved.Email, entity.KindBuyer, saved.ID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO buyers (`+buyerColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`,
			saved.ID, saved.Email, saved.PasswordHash, saved.Name, saved.Phone, saved.ProfilePictureURL,
			saved.JoinedAt, saved.LastLoginAt, saved.Active,
			addr, saved.FavoriteArtisans, saved.RecentlyViewedProducts,
		)
		return err
	})
	if err != nil {
		return nil, oops.Code("BUYER_CREATE_FAILED").With("email", saved.Email).Wrap(classify(err))
	}
	return saved, nil
}

func (s *BuyerStore) update(ctx context.Context, b entity.Buyer) (entity.Account, error) {
	addr, err := encodeAddress(b.Address)
	if err != nil {
		return nil, oops.Code("BUYER_UPDATE_FAILED").With("operation", "marshal address").Wrap(err)
	}
	err = inTx(ctx, s.db, func(tx pgx.Tx) error {
		var current string
		if err := tx.QueryRow(ctx, `SELECT email FROM buyers WHERE id = $1 FOR UPDATE`, b.ID).Scan(&current); err != nil {
			return err
		}
		if current != b.Email {
			if err := moveEmail(ctx, tx, b.ID, b.Email); err != nil {
				return err
			}
		}
		tag, err := tx.Exec(ctx, `
			UPDATE buyers
			SET email = $2, password_hash = $3, name = $4, phone = $5, profile_picture_url = $6,
			    last_login_at = $7, active = $8,
			    address = $9, favorite_artisans = $10, recently_viewed_products = $11
			WHERE id = $1
		`,
			b.ID, b.Email, b.PasswordHash, b.Name, b.Phone, b.ProfilePictureURL,
			b.LastLoginAt, b.Active,
			addr, b.FavoriteArtisans, b.RecentlyViewedProducts,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return nil, oops.Code("BUYER_UPDATE_FAILED").With("id", b.ID).Wrap(classify(err))
	}
	return entity.Clone(b), nil
}

// RecordLogin updates last_login_at alone, so a concurrent avatar or status
// change is never overwritten by a stale snapshot.
func (s *BuyerStore) RecordLogin(ctx context.Context, id string, at time.Time) (entity.Account, error) {
	row := s.db.QueryRow(ctx, `UPDATE buyers SET last_login_at = $2 WHERE id = $1 RETURNING `+buyerColumns, id, at)
	acc, err := scanBuyer(row)
	if err != nil {
		return nil, oops.Code("BUYER_RECORD_LOGIN_FAILED").With("id", id).Wrap(classify(err))
	}
	return acc, nil
}

func (s *BuyerStore) SetProfilePicture(ctx context.Context, id, url string) (entity.Account, error) {
	row := s.db.QueryRow(ctx, `UPDATE buyers SET profile_picture_url = $2 WHERE id = $1 RETURNING `+buyerColumns, id, url)
	acc, err := scanBuyer(row)
	if err != nil {
		return nil, oops.Code("BUYER_SET_PICTURE_FAILED").With("id", id).Wrap(classify(err))
	}
	return acc, nil
}

func scanBuyer(row pgx.Row) (entity.Buyer, error) {
	var (
		b    entity.Buyer
		addr []byte
	)
	err := row.Scan(
		&b.ID, &b.Email, &b.PasswordHash, &b.Name, &b.Phone, &b.ProfilePictureURL,
		&b.JoinedAt, &b.LastLoginAt, &b.Active,
		&addr, &b.FavoriteArtisans, &b.RecentlyViewedProducts,
	)
	if err != nil {
		return entity.Buyer{}, err
	}
	if len(addr) > 0 && string(addr) != "null" {
		var a entity.Address
		if err := json.Unmarshal(addr, &a); err != nil {
			return entity.Buyer{}, err
		}
		b.Address = &a
	}
	if b.FavoriteArtisans == nil {
		b.FavoriteArtisans = []string{}
	}
	if b.RecentlyViewedProducts == nil {
		b.RecentlyViewedProducts = []string{}
	}
	b.Kind = entity.KindBuyer
	return b, nil
}

// encodeAddress returns nil for a missing address so the column stays NULL.
func encodeAddress(a *entity.Address) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}
