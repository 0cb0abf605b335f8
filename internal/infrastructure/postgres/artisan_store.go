package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/artztall/user-service/internal/domain/entity"
	"github.com/artztall/user-service/internal/domain/repository"
)

const artisanColumns = `id, email, password_hash, name, phone, profile_picture_url,
		joined_at, last_login_at, active,
		bio, artwork_categories, average_rating, total_sales, verified`

// ArtisanStore implements repository.UserStore for the artisans table.
type ArtisanStore struct {
	db DB
}

var _ repository.UserStore = (*ArtisanStore)(nil)

func NewArtisanStore(db DB) *ArtisanStore {
	return &ArtisanStore{db: db}
}

func (s *ArtisanStore) Kind() entity.Kind { return entity.KindArtisan }

func (s *ArtisanStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM artisans WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, oops.Code("ARTISAN_EXISTS_FAILED").With("email", email).Wrap(err)
	}
	return exists, nil
}

func (s *ArtisanStore) FindByEmail(ctx context.Context, email string) (entity.Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+artisanColumns+` FROM artisans WHERE email = $1`, email)
	a, err := scanArtisan(row)
	if err != nil {
		return nil, oops.Code("ARTISAN_GET_BY_EMAIL_FAILED").With("email", email).Wrap(classify(err))
	}
	return a, nil
}

func (s *ArtisanStore) FindByID(ctx context.Context, id string) (entity.Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+artisanColumns+` FROM artisans WHERE id = $1`, id)
	a, err := scanArtisan(row)
	if err != nil {
		return nil, oops.Code("ARTISAN_GET_BY_ID_FAILED").With("id", id).Wrap(classify(err))
	}
	return a, nil
}

func (s *ArtisanStore) Save(ctx context.Context, acc entity.Account) (entity.Account, error) {
	a, ok := acc.(entity.Artisan)
	if !ok {
		return nil, repository.ErrKindMismatch
	}
	if a.ID == "" {
		return s.insert(ctx, a)
	}
	return s.update(ctx, a)
}

func (s *ArtisanStore) insert(ctx context.Context, a entity.Artisan) (entity.Account, error) {
	saved := entity.WithID(a, uuid.NewString()).(entity.Artisan)
	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := claimEmail(ctx, tx, saved.Email, entity.KindArtisan, saved.ID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO artisans (`+artisanColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`,
			saved.ID, saved.Email, saved.PasswordHash, saved.Name, saved.Phone, saved.ProfilePictureURL,
			saved.JoinedAt, saved.LastLoginAt, saved.Active,
			saved.Bio, saved.ArtworkCategories, saved.AverageRating, saved.TotalSales, saved.Verified,
		)
		return err
	})
	if err != nil {
		return nil, oops.Code("ARTISAN_CREATE_FAILED").With("email", saved.Email).Wrap(classify(err))
	}
	return saved, nil
}

func (s *ArtisanStore) update(ctx context.Context, a entity.Artisan) (entity.Account, error) {
	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		var current string
		if err := tx.QueryRow(ctx, `SELECT email FROM artisans WHERE id = $1 FOR UPDATE`, a.ID).Scan(&current); err != nil {
			return err
		}
		if current != a.Email {
			if err := moveEmail(ctx, tx, a.ID, a.Email); err != nil {
				return err
			}
		}
		tag, err := tx.Exec(ctx, `
			UPDATE artisans
			SET email = $2, password_hash = $3, name = $4, phone = $5, profile_picture_url = $6,
			    last_login_at = $7, active = $8,
			    bio = $9, artwork_categories = $10, average_rating = $11, total_sales = $12, verified = $13
			WHERE id = $1
		`,
			a.ID, a.Email, a.PasswordHash, a.Name, a.Phone, a.ProfilePictureURL,
			a.LastLoginAt, a.Active,
			a.Bio, a.ArtworkCategories, a.AverageRating, a.TotalSales, a.Verified,
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
		return nil, oops.Code("ARTISAN_UPDATE_FAILED").With("id", a.ID).Wrap(classify(err))
	}
	return entity.Clone(a), nil
}

// RecordLogin updates last_login_at alone, so a concurrent avatar or status
// change is never overwritten by a stale snapshot.
func (s *ArtisanStore) RecordLogin(ctx context.Context, id string, at time.Time) (entity.Account, error) {
	row := s.db.QueryRow(ctx, `UPDATE artisans SET last_login_at = $2 WHERE id = $1 RETURNING `+artisanColumns, id, at)
	acc, err := scanArtisan(row)
	if err != nil {
		return nil, oops.Code("ARTISAN_RECORD_LOGIN_FAILED").With("id", id).Wrap(classify(err))
	}
	return acc, nil
}

func (s *ArtisanStore) SetProfilePicture(ctx context.Context, id, url string) (entity.Account, error) {
	row := s.db.QueryRow(ctx, `UPDATE artisans SET profile_picture_url = $2 WHERE id = $1 RETURNING `+artisanColumns, id, url)
	acc, err := scanArtisan(row)
	if err != nil {
		return nil, oops.Code("ARTISAN_SET_PICTURE_FAILED").With("id", id).Wrap(classify(err))
	}
	return acc, nil
}

func scanArtisan(row pgx.Row) (entity.Artisan, error) {
	var a entity.Artisan
	err := row.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.Name, &a.Phone, &a.ProfilePictureURL,
		&a.JoinedAt, &a.LastLoginAt, &a.Active,
		&a.Bio, &a.ArtworkCategories, &a.AverageRating, &a.TotalSales, &a.Verified,
	)
	if err != nil {
		return entity.Artisan{}, err
	}
	if a.ArtworkCategories == nil {
		a.ArtworkCategories = []string{}
	}
	a.Kind = entity.KindArtisan
	return a, nil
}
