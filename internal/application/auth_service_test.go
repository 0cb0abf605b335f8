package application_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/artztall/user-service/internal/application"
	"github.com/artztall/user-service/internal/domain/entity"
	"github.com/artztall/user-service/internal/infrastructure/memory"
)

func TestSignup_BuyerJane(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	res, err := h.svc.Signup(ctx, janeBuyer())
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	assert.Equal(t, testNow.Add(h.codec.TTL()), res.ExpiresAt)

	b, ok := res.Account.(entity.Buyer)
	require.True(t, ok)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, entity.KindBuyer, b.Kind)
	assert.Equal(t, "jane@example.com", b.Email)
	assert.Equal(t, "+16502530000", b.Phone)
	assert.True(t, b.Active)
	assert.Equal(t, testNow, b.JoinedAt)
	assert.Nil(t, b.LastLoginAt)
	assert.NotEqual(t, "secret1", b.PasswordHash)
	assert.Empty(t, b.FavoriteArtisans)
	require.NotNil(t, b.Address)
	assert.Equal(t, "Springfield", b.Address.City)

	claims, err := h.codec.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, b.ID, claims.Subject)
	assert.Equal(t, entity.KindBuyer, claims.UserKind)

	assert.Equal(t, []string{"jane@example.com"}, h.notifier.welcomed)
	assert.Contains(t, h.index.indexed, b.ID)

	_, err = h.svc.Signup(ctx, janeBuyer())
	assert.ErrorIs(t, err, application.ErrEmailAlreadyExists)
}

func TestSignup_ArtisanDefaults(t *testing.T) {
	h := newHarness(t)
	res, err := h.svc.Signup(context.Background(), potterArtisan())
	require.NoError(t, err)

	a, ok := res.Account.(entity.Artisan)
	require.True(t, ok)
	assert.Equal(t, "potter", a.Bio)
	assert.Equal(t, []string{"ceramics", "sculpture"}, a.ArtworkCategories)
	assert.Zero(t, a.AverageRating)
	assert.Zero(t, a.TotalSales)
	assert.False(t, a.Verified)
	assert.Equal(t, "+16502530000", a.Phone)
	assert.Equal(t, "https://cdn.example.com/pat.png", a.ProfilePictureURL)
}

func TestSignup_EmailUniqueAcrossKinds(t *testing.T) {
	kinds := []string{"ARTISAN", "BUYER"}
	for _, first := range kinds {
		for _, second := range kinds {
			t.Run(first+" then "+second, func(t *testing.T) {
				h := newHarness(t)
				in := janeBuyer()
				in.UserType = first
				_, err := h.svc.Signup(context.Background(), in)
				require.NoError(t, err)

				in.UserType = second
				in.Email = "  JANE@Example.com "
				_, err = h.svc.Signup(context.Background(), in)
				assert.ErrorIs(t, err, application.ErrEmailAlreadyExists)
			})
		}
	}
}

func TestSignup_InvalidInput(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*application.SignupInput)
		wantFields []string
	}{
		{name: "missing name", mutate: func(in *application.SignupInput) { in.Name = "  " }, wantFields: []string{"name"}},
		{name: "bad email", mutate: func(in *application.SignupInput) { in.Email = "jane" }, wantFields: []string{"email"}},
		{name: "short password", mutate: func(in *application.SignupInput) { in.Password = "12345" }, wantFields: []string{"password"}},
		{name: "whitespace password", mutate: func(in *application.SignupInput) { in.Password = "      " }, wantFields: []string{"password"}},
		{name: "password over 72 bytes", mutate: func(in *application.SignupInput) { in.Password = strings.Repeat("a", 73) }, wantFields: []string{"password"}},
		{name: "multibyte password over 72 bytes", mutate: func(in *application.SignupInput) { in.Password = strings.Repeat("é", 40) }, wantFields: []string{"password"}},
		{name: "missing phone", mutate: func(in *application.SignupInput) { in.Phone = "" }, wantFields: []string{"phone"}},
		{name: "unparseable phone", mutate: func(in *application.SignupInput) { in.Phone = "12" }, wantFields: []string{"phone"}},
		{name: "unknown kind", mutate: func(in *application.SignupInput) { in.UserType = "ADMIN" }, wantFields: []string{"userType"}},
		{name: "missing kind", mutate: func(in *application.SignupInput) { in.UserType = "" }, wantFields: []string{"userType"}},
		{name: "address without city", mutate: func(in *application.SignupInput) { in.Address.City = "" }, wantFields: []string{"address.city"}},
		{
			name: "several fields",
			mutate: func(in *application.SignupInput) {
				in.Email = ""
				in.Password = ""
			},
			wantFields: []string{"email", "password"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			in := janeBuyer()
			tt.mutate(&in)

			_, err := h.svc.Signup(context.Background(), in)
			require.ErrorIs(t, err, application.ErrInvalidInput)
			var ie *application.InputError
			require.True(t, errors.As(err, &ie))
			for _, f := range tt.wantFields {
				assert.Contains(t, ie.Fields, f)
			}
			assert.Len(t, ie.Fields, len(tt.wantFields))
			assert.Empty(t, h.notifier.welcomed)
		})
	}
}

func TestSignup_LowercaseUserType(t *testing.T) {
	h := newHarness(t)
	in := janeBuyer()
	in.UserType = "buyer"
	res, err := h.svc.Signup(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, entity.KindBuyer, res.Account.Base().Kind)
}

func TestSignup_StorageUnavailable(t *testing.T) {
	emails := memory.NewEmailIndex()
	buyers := &flakyStore{UserStore: memory.NewUserStore(entity.KindBuyer, emails), failSave: true}
	h := newHarnessWith(t, memory.NewUserStore(entity.KindArtisan, emails), buyers)

	_, err := h.svc.Signup(context.Background(), janeBuyer())
	assert.ErrorIs(t, err, application.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, application.ErrEmailAlreadyExists)
}

func TestSignup_NotifierFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errors.New("amqp closed")
	h.index.err = errors.New("es down")

	res, err := h.svc.Signup(context.Background(), janeBuyer())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestSignup_ConcurrentSameEmail(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t)
	const n = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		dupes    int
		failures []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := janeBuyer()
			if i%2 == 0 {
				in.UserType = "ARTISAN"
			}
			<-start
			_, err := h.svc.Signup(context.Background(), in)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, application.ErrEmailAlreadyExists):
				dupes++
			default:
				failures = append(failures, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Empty(t, failures)
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, dupes)

	artisan, _ := h.artisans.ExistsByEmail(context.Background(), "jane@example.com")
	buyer, _ := h.buyers.ExistsByEmail(context.Background(), "jane@example.com")
	assert.True(t, artisan != buyer, "exactly one kind holds the email")
}

func TestLogin_ArtisanPotter(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	signed, err := h.svc.Signup(ctx, potterArtisan())
	require.NoError(t, err)

	res, err := h.svc.Login(ctx, application.LoginInput{
		Email:    "PAT@example.com",
		Password: "clay-123",
		Meta:     application.LoginMeta{IP: "203.0.113.9", UserAgent: "curl/8"},
	})
	require.NoError(t, err)

	a, ok := res.Account.(entity.Artisan)
	require.True(t, ok)
	assert.Equal(t, "potter", a.Bio)
	assert.Equal(t, entity.KindArtisan, a.Kind)
	assert.Equal(t, signed.Account.Base().ID, a.ID)
	require.NotNil(t, a.LastLoginAt)
	assert.Equal(t, testNow, *a.LastLoginAt)

	claims, err := h.codec.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, a.ID, claims.Subject)
	assert.Equal(t, entity.KindArtisan, claims.UserKind)

	stored, err := h.artisans.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Base().LastLoginAt)

	require.Len(t, h.notifier.alerts, 1)
	assert.Equal(t, "203.0.113.9", h.notifier.alerts[0].IP)
}

func TestLogin_Failures(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.svc.Signup(ctx, janeBuyer())
	require.NoError(t, err)

	_, err = h.svc.Login(ctx, application.LoginInput{Email: "jane@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, application.ErrInvalidCredentials)

	_, err = h.svc.Login(ctx, application.LoginInput{Email: "ghost@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, application.ErrUserNotFound)

	_, err = h.svc.Login(ctx, application.LoginInput{Email: " ", Password: ""})
	var ie *application.InputError
	require.True(t, errors.As(err, &ie))
	assert.Contains(t, ie.Fields, "email")
	assert.Contains(t, ie.Fields, "password")

	assert.Empty(t, h.notifier.alerts)
}

func TestLogin_Inactive(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	res, err := h.svc.Signup(ctx, janeBuyer())
	require.NoError(t, err)

	b := res.Account.(entity.Buyer)
	b.Active = false
	_, err = h.buyers.Save(ctx, b)
	require.NoError(t, err)

	_, err = h.svc.Login(ctx, application.LoginInput{Email: "jane@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, application.ErrAccountInactive)

	_, err = h.svc.Login(ctx, application.LoginInput{Email: "jane@example.com", Password: "nope-nope"})
	assert.ErrorIs(t, err, application.ErrInvalidCredentials, "password is checked before the active flag")
}

func TestLogin_IdentityConflict(t *testing.T) {
	ctx := context.Background()
	h := newHarnessWith(t, memory.NewUserStore(entity.KindArtisan, nil), memory.NewUserStore(entity.KindBuyer, nil))

	in := janeBuyer()
	_, err := h.artisans.Save(ctx, entity.NewArtisan(entity.Identity{Email: in.Email, PasswordHash: "x", Active: true}, "", nil))
	require.NoError(t, err)
	_, err = h.buyers.Save(ctx, entity.NewBuyer(entity.Identity{Email: in.Email, PasswordHash: "x", Active: true}, nil))
	require.NoError(t, err)

	_, err = h.svc.Login(ctx, application.LoginInput{Email: in.Email, Password: in.Password})
	assert.ErrorIs(t, err, application.ErrIdentityConflict)
}

func TestLogin_StorageUnavailable(t *testing.T) {
	ctx := context.Background()
	emails := memory.NewEmailIndex()
	buyers := &flakyStore{UserStore: memory.NewUserStore(entity.KindBuyer, emails)}
	h := newHarnessWith(t, memory.NewUserStore(entity.KindArtisan, emails), buyers)
	_, err := h.svc.Signup(ctx, janeBuyer())
	require.NoError(t, err)

	buyers.failSave = true
	_, err = h.svc.Login(ctx, application.LoginInput{Email: "jane@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, application.ErrStorageUnavailable)

	buyers.failSave = false
	buyers.failFind = true
	_, err = h.svc.Login(ctx, application.LoginInput{Email: "jane@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, application.ErrStorageUnavailable)
}

func TestSignup_PasswordByteLimit(t *testing.T) {
	h := newHarness(t)
	in := janeBuyer()
	in.Password = strings.Repeat("é", 36)
	res, err := h.svc.Signup(context.Background(), in)
	require.NoError(t, err)

	in.Password = strings.Repeat("é", 37)
	in.Email = "jane2@example.com"
	_, err = h.svc.Signup(context.Background(), in)
	var ie *application.InputError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "must be at most 72 bytes long", ie.Fields["password"])

	_, err = h.svc.Login(context.Background(), application.LoginInput{Email: "jane@example.com", Password: strings.Repeat("é", 36)})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestSignup_WhitespacePasswordKeptVerbatim(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	in := janeBuyer()
	in.Password = "  secret1  "
	_, err := h.svc.Signup(ctx, in)
	require.NoError(t, err)

	_, err = h.svc.Login(ctx, application.LoginInput{Email: in.Email, Password: "secret1"})
	assert.ErrorIs(t, err, application.ErrInvalidCredentials)
	_, err = h.svc.Login(ctx, application.LoginInput{Email: in.Email, Password: "  secret1  "})
	assert.NoError(t, err)
}

func TestSignup_CancelledWhileHashing(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.svc.Signup(ctx, janeBuyer())
	require.ErrorIs(t, err, context.Canceled)

	exists, err := h.buyers.ExistsByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLogin_BlankPassword(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.svc.Signup(ctx, janeBuyer())
	require.NoError(t, err)

	for _, pw := range []string{"   ", "\t\n"} {
		_, err = h.svc.Login(ctx, application.LoginInput{Email: "jane@example.com", Password: pw})
		var ie *application.InputError
		require.True(t, errors.As(err, &ie), "password %q", pw)
		assert.Equal(t, map[string]string{"password": "is required"}, ie.Fields)
	}
}

func TestLogin_CancelledIsNotWrongPassword(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Signup(context.Background(), janeBuyer())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.svc.Login(ctx, application.LoginInput{Email: "jane@example.com", Password: "secret1"})
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, application.ErrInvalidCredentials)

	stored, err := h.buyers.FindByEmail(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Nil(t, stored.Base().LastLoginAt)
}

func TestLogin_KeepsConcurrentAvatarChange(t *testing.T) {
	ctx := context.Background()
	emails := memory.NewEmailIndex()
	buyers := &flakyStore{UserStore: memory.NewUserStore(entity.KindBuyer, emails)}
	h := newHarnessWith(t, memory.NewUserStore(entity.KindArtisan, emails), buyers)
	res, err := h.svc.Signup(ctx, janeBuyer())
	require.NoError(t, err)
	id := res.Account.Base().ID

	const url = "https://storage.googleapis.com/bucket/avatars/new.png"
	buyers.beforeRecord = func() {
		_, err := buyers.UserStore.SetProfilePicture(ctx, id, url)
		require.NoError(t, err)
	}
	out, err := h.svc.Login(ctx, application.LoginInput{Email: "jane@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, url, out.Account.Base().ProfilePictureURL)

	stored, err := buyers.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, url, stored.Base().ProfilePictureURL)
	require.NotNil(t, stored.Base().LastLoginAt)
	assert.True(t, stored.Base().LastLoginAt.Equal(testNow))
}

func TestLogin_DeactivatedDuringLogin(t *testing.T) {
	ctx := context.Background()
	emails := memory.NewEmailIndex()
	buyers := &flakyStore{UserStore: memory.NewUserStore(entity.KindBuyer, emails)}
	h := newHarnessWith(t, memory.NewUserStore(entity.KindArtisan, emails), buyers)
	res, err := h.svc.Signup(ctx, janeBuyer())
	require.NoError(t, err)

	buyers.beforeRecord = func() {
		b := res.Account.(entity.Buyer)
		b.Active = false
		_, err := buyers.UserStore.Save(ctx, b)
		require.NoError(t, err)
	}
	_, err = h.svc.Login(ctx, application.LoginInput{Email: "jane@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, application.ErrAccountInactive)
	assert.Empty(t, h.notifier.alerts)

	stored, err := buyers.FindByID(ctx, res.Account.Base().ID)
	require.NoError(t, err)
	assert.False(t, stored.Base().Active)
	require.NotNil(t, stored.Base().LastLoginAt)
	assert.WithinDuration(t, testNow, *stored.Base().LastLoginAt, time.Second)
}
