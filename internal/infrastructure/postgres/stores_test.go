package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artztall/user-service/internal/domain/entity"
	"github.com/artztall/user-service/internal/domain/repository"
)

var artisanCols = []string{
	"id", "email", "password_hash", "name", "phone", "profile_picture_url",
	"joined_at", "last_login_at", "active",
	"bio", "artwork_categories", "average_rating", "total_sales", "verified",
}

var buyerCols = []string{
	"id", "email", "password_hash", "name", "phone", "profile_picture_url",
	"joined_at", "last_login_at", "active",
	"address", "favorite_artisans", "recently_viewed_products",
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "account_emails_pkey"}
}

func TestArtisanStore_ExistsByEmail(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM artisans WHERE email`).
		WithArgs("a@x.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := NewArtisanStore(mock).ExistsByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArtisanStore_FindByEmail(t *testing.T) {
	joined := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	last := joined.Add(time.Hour)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM artisans WHERE email`).
					WithArgs("a@x.com").
					WillReturnRows(pgxmock.NewRows(artisanCols).AddRow(
						"a1", "a@x.com", "hash", "Ann", "+14155552671", "",
						joined, &last, true,
						"potter", []string{"ceramics"}, 4.5, 12, true,
					))
			},
		},
		{
			name: "not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM artisans WHERE email`).
					WithArgs("a@x.com").
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: repository.ErrNotFound,
		},
		{
			name: "connection error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM artisans WHERE email`).
					WithArgs("a@x.com").
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setupMock(mock)

			got, err := NewArtisanStore(mock).FindByEmail(context.Background(), "a@x.com")

			switch {
			case tt.wantErr == nil:
				require.NoError(t, err)
				a, ok := got.(entity.Artisan)
				require.True(t, ok)
				assert.Equal(t, "a1", a.ID)
				assert.Equal(t, entity.KindArtisan, a.Kind)
				assert.Equal(t, "potter", a.Bio)
				assert.Equal(t, []string{"ceramics"}, a.ArtworkCategories)
				require.NotNil(t, a.LastLoginAt)
				assert.Equal(t, last, *a.LastLoginAt)
			case errors.Is(tt.wantErr, repository.ErrNotFound):
				assert.ErrorIs(t, err, repository.ErrNotFound)
			default:
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
				assert.NotErrorIs(t, err, repository.ErrNotFound)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestArtisanStore_SaveInsert(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO account_emails`).
		WithArgs("a@x.com", "ARTISAN", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO artisans`).
		WithArgs(
			pgxmock.AnyArg(), "a@x.com", "hash", "Ann", "+14155552671", "",
			pgxmock.AnyArg(), pgxmock.AnyArg(), true,
			"potter", []string{"ceramics"}, 0.0, 0, false,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	in := entity.NewArtisan(entity.Identity{
		Email: "a@x.com", PasswordHash: "hash", Name: "Ann", Phone: "+14155552671",
		JoinedAt: time.Now().UTC(), Active: true,
	}, "potter", []string{"ceramics"})

	saved, err := NewArtisanStore(mock).Save(context.Background(), in)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.Base().ID)
	assert.Empty(t, in.ID, "input snapshot keeps its empty id")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArtisanStore_SaveInsertLosesEmailRace(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO account_emails`).
		WithArgs("a@x.com", "ARTISAN", pgxmock.AnyArg()).
		WillReturnError(uniqueViolation())
	mock.ExpectRollback()

	in := entity.NewArtisan(entity.Identity{Email: "a@x.com", PasswordHash: "hash"}, "", nil)
	_, err := NewArtisanStore(mock).Save(context.Background(), in)

	assert.ErrorIs(t, err, repository.ErrEmailTaken)
	assert.NotContains(t, err.Error(), "account_emails_pkey")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArtisanStore_SaveUpdate(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	acc := entity.WithLastLogin(entity.WithID(
		entity.NewArtisan(entity.Identity{Email: "a@x.com", PasswordHash: "hash", Active: true}, "potter", nil), "a1"), at)

	t.Run("same email skips the claim table", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT email FROM artisans WHERE id`).
			WithArgs("a1").
			WillReturnRows(pgxmock.NewRows([]string{"email"}).AddRow("a@x.com"))
		mock.ExpectExec(`UPDATE artisans`).
			WithArgs("a1", "a@x.com", "hash", "", "", "",
				pgxmock.AnyArg(), true,
				"potter", []string{}, 0.0, 0, false).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		saved, err := NewArtisanStore(mock).Save(context.Background(), acc)
		require.NoError(t, err)
		require.NotNil(t, saved.Base().LastLoginAt)
		assert.Equal(t, at, *saved.Base().LastLoginAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown id", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT email FROM artisans WHERE id`).
			WithArgs("a1").
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		_, err := NewArtisanStore(mock).Save(context.Background(), acc)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestArtisanStore_SaveRejectsBuyer(t *testing.T) {
	mock := newMock(t)
	_, err := NewArtisanStore(mock).Save(context.Background(), entity.NewBuyer(entity.Identity{Email: "b@x.com"}, nil))
	assert.ErrorIs(t, err, repository.ErrKindMismatch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuyerStore_FindByID(t *testing.T) {
	joined := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	last := joined

	mock := newMock(t)
	mock.ExpectQuery(`FROM buyers WHERE id`).
		WithArgs("b1").
		WillReturnRows(pgxmock.NewRows(buyerCols).AddRow(
			"b1", "jane@x.com", "hash", "Jane", "+14155552671", "",
			joined, &last, true,
			[]byte(`{"street":"1 Main","city":"Kandy","country":"LK","postalCode":"20000","isDefault":true}`),
			[]string{"a1"}, []string{},
		))

	got, err := NewBuyerStore(mock).FindByID(context.Background(), "b1")
	require.NoError(t, err)
	b, ok := got.(entity.Buyer)
	require.True(t, ok)
	assert.Equal(t, entity.KindBuyer, b.Kind)
	require.NotNil(t, b.Address)
	assert.Equal(t, "Kandy", b.Address.City)
	assert.True(t, b.Address.IsDefault)
	assert.Equal(t, []string{"a1"}, b.FavoriteArtisans)
	assert.Empty(t, b.RecentlyViewedProducts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuyerStore_SaveInsertWithoutAddress(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO account_emails`).
		WithArgs("jane@x.com", "BUYER", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO buyers`).
		WithArgs(
			pgxmock.AnyArg(), "jane@x.com", "hash", "Jane", "", "",
			pgxmock.AnyArg(), pgxmock.AnyArg(), true,
			[]byte(nil), []string{}, []string{},
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	in := entity.NewBuyer(entity.Identity{Email: "jane@x.com", PasswordHash: "hash", Name: "Jane", Active: true}, nil)
	saved, err := NewBuyerStore(mock).Save(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, entity.KindBuyer, saved.Base().Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuyerStore_SaveInsertDuplicateInKindTable(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO account_emails`).
		WithArgs("jane@x.com", "BUYER", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO buyers`).
		WillReturnError(uniqueViolation())
	mock.ExpectRollback()

	in := entity.NewBuyer(entity.Identity{Email: "jane@x.com", PasswordHash: "hash"}, nil)
	_, err := NewBuyerStore(mock).Save(context.Background(), in)
	assert.ErrorIs(t, err, repository.ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuyerStore_SaveUpdateMovesEmail(t *testing.T) {
	acc := entity.WithID(entity.NewBuyer(entity.Identity{Email: "new@x.com", PasswordHash: "hash"}, nil), "b1")

	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT email FROM buyers WHERE id`).
		WithArgs("b1").
		WillReturnRows(pgxmock.NewRows([]string{"email"}).AddRow("old@x.com"))
	mock.ExpectExec(`UPDATE account_emails SET email`).
		WithArgs("new@x.com", "b1").
		WillReturnError(uniqueViolation())
	mock.ExpectRollback()

	_, err := NewBuyerStore(mock).Save(context.Background(), acc)
	assert.ErrorIs(t, err, repository.ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArtisanStore_RecordLogin(t *testing.T) {
	joined := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	at := joined.Add(48 * time.Hour)

	t.Run("updates only last_login_at", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`UPDATE artisans SET last_login_at = \$2 WHERE id = \$1 RETURNING`).
			WithArgs("a1", at).
			WillReturnRows(pgxmock.NewRows(artisanCols).AddRow(
				"a1", "a@x.com", "hash", "Ann", "+14155552671", "https://cdn.example.com/new.png",
				joined, &at, true,
				"potter", []string{"ceramics"}, 4.5, 12, true,
			))

		got, err := NewArtisanStore(mock).RecordLogin(context.Background(), "a1", at)
		require.NoError(t, err)
		require.NotNil(t, got.Base().LastLoginAt)
		assert.True(t, got.Base().LastLoginAt.Equal(at))
		assert.Equal(t, "https://cdn.example.com/new.png", got.Base().ProfilePictureURL)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`UPDATE artisans SET last_login_at`).
			WithArgs("gone", at).
			WillReturnError(pgx.ErrNoRows)

		_, err := NewArtisanStore(mock).RecordLogin(context.Background(), "gone", at)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestArtisanStore_SetProfilePicture(t *testing.T) {
	joined := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	last := joined.Add(time.Hour)
	url := "https://storage.googleapis.com/bucket/avatars/a1/me.png"

	mock := newMock(t)
	mock.ExpectQuery(`UPDATE artisans SET profile_picture_url = \$2 WHERE id = \$1 RETURNING`).
		WithArgs("a1", url).
		WillReturnRows(pgxmock.NewRows(artisanCols).AddRow(
			"a1", "a@x.com", "hash", "Ann", "+14155552671", url,
			joined, &last, false,
			"potter", []string{"ceramics"}, 4.5, 12, true,
		))

	got, err := NewArtisanStore(mock).SetProfilePicture(context.Background(), "a1", url)
	require.NoError(t, err)
	assert.Equal(t, url, got.Base().ProfilePictureURL)
	assert.False(t, got.Base().Active, "status written by another request is returned as stored")
	assert.True(t, got.Base().LastLoginAt.Equal(last))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuyerStore_RecordLogin(t *testing.T) {
	joined := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	at := joined.Add(time.Hour)

	mock := newMock(t)
	mock.ExpectQuery(`UPDATE buyers SET last_login_at = \$2 WHERE id = \$1 RETURNING`).
		WithArgs("b1", at).
		WillReturnRows(pgxmock.NewRows(buyerCols).AddRow(
			"b1", "jane@x.com", "hash", "Jane", "+14155552671", "https://cdn.example.com/j.png",
			joined, &at, true,
			[]byte(`{"street":"1 Main","city":"Kandy","country":"LK","isDefault":true}`), []string{}, []string{},
		))

	got, err := NewBuyerStore(mock).RecordLogin(context.Background(), "b1", at)
	require.NoError(t, err)
	b, ok := got.(entity.Buyer)
	require.True(t, ok)
	assert.True(t, b.LastLoginAt.Equal(at))
	assert.Equal(t, "https://cdn.example.com/j.png", b.ProfilePictureURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuyerStore_SetProfilePicture(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`UPDATE buyers SET profile_picture_url = \$2 WHERE id = \$1 RETURNING`).
		WithArgs("b1", "u").
		WillReturnError(errors.New("connection refused"))

	_, err := NewBuyerStore(mock).SetProfilePicture(context.Background(), "b1", "u")
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorContains(t, err, "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}
