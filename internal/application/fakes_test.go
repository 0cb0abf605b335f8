package application_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/artztall/user-service/internal/application"
	"github.com/artztall/user-service/internal/domain/entity"
	"github.com/artztall/user-service/internal/domain/repository"
	"github.com/artztall/user-service/internal/infrastructure/memory"
	"github.com/artztall/user-service/pkg/helpers"
)

var errDBDown = errors.New("connection refused")

type recordingNotifier struct {
	mu       sync.Mutex
	welcomed []string
	alerts   []application.LoginMeta
	err      error
}

func (n *recordingNotifier) Welcome(_ context.Context, acc entity.Account) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcomed = append(n.welcomed, acc.Base().Email)
	return n.err
}

func (n *recordingNotifier) LoginAlert(_ context.Context, _ entity.Account, meta application.LoginMeta) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, meta)
	return n.err
}

type recordingIndex struct {
	mu      sync.Mutex
	indexed map[string]entity.Account
	hits    []application.ArtisanHit
	size    int
	err     error
}

func (x *recordingIndex) Index(_ context.Context, acc entity.Account) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.indexed == nil {
		x.indexed = map[string]entity.Account{}
	}
	x.indexed[acc.Base().ID] = acc
	return x.err
}

func (x *recordingIndex) SearchArtisans(_ context.Context, _ string, size int) ([]application.ArtisanHit, error) {
	x.size = size
	return x.hits, x.err
}

// flakyStore fails the operations it is told to.
type flakyStore struct {
	repository.UserStore
	failExists bool
	failFind   bool
	failSave   bool
	// beforeRecord runs just before a login is recorded.
	beforeRecord func()
}

func (s *flakyStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if s.failExists {
		return false, errDBDown
	}
	return s.UserStore.ExistsByEmail(ctx, email)
}

func (s *flakyStore) FindByEmail(ctx context.Context, email string) (entity.Account, error) {
	if s.failFind {
		return nil, errDBDown
	}
	return s.UserStore.FindByEmail(ctx, email)
}

func (s *flakyStore) Save(ctx context.Context, acc entity.Account) (entity.Account, error) {
	if s.failSave {
		return nil, errDBDown
	}
	return s.UserStore.Save(ctx, acc)
}

func (s *flakyStore) RecordLogin(ctx context.Context, id string, at time.Time) (entity.Account, error) {
	if s.beforeRecord != nil {
		s.beforeRecord()
	}
	if s.failSave {
		return nil, errDBDown
	}
	return s.UserStore.RecordLogin(ctx, id, at)
}

func (s *flakyStore) SetProfilePicture(ctx context.Context, id, url string) (entity.Account, error) {
	if s.failSave {
		return nil, errDBDown
	}
	return s.UserStore.SetProfilePicture(ctx, id, url)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var testNow = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

type harness struct {
	artisans repository.UserStore
	buyers   repository.UserStore
	resolver *application.IdentityResolver
	codec    *helpers.TokenCodec
	notifier *recordingNotifier
	index    *recordingIndex
	svc      *application.AuthService
}

func newHarnessWith(t *testing.T, artisans, buyers repository.UserStore) *harness {
	t.Helper()
	resolver, err := application.NewIdentityResolver(quietLogger(), artisans, buyers)
	require.NoError(t, err)
	h := &harness{
		artisans: artisans,
		buyers:   buyers,
		resolver: resolver,
		codec:    helpers.NewTokenCodec("test-secret", time.Hour, "artztall"),
		notifier: &recordingNotifier{},
		index:    &recordingIndex{},
	}
	h.svc = application.NewAuthService(application.AuthServiceDeps{
		Resolver:    resolver,
		Hasher:      helpers.NewBcryptHasher(helpers.MinBcryptCost, 4),
		Tokens:      h.codec,
		Notifier:    h.notifier,
		Index:       h.index,
		Logger:      quietLogger(),
		PhoneRegion: "US",
		Clock:       func() time.Time { return testNow },
	})
	return h
}

func newHarness(t *testing.T) *harness {
	emails := memory.NewEmailIndex()
	return newHarnessWith(t,
		memory.NewUserStore(entity.KindArtisan, emails),
		memory.NewUserStore(entity.KindBuyer, emails),
	)
}

func janeBuyer() application.SignupInput {
	return application.SignupInput{
		Name:     "Jane",
		Email:    "jane@example.com",
		Password: "secret1",
		Phone:    "+16502530000",
		UserType: "BUYER",
		Address:  &entity.Address{Street: "1 Main St", City: "Springfield", Country: "US", IsDefault: true},
	}
}

func potterArtisan() application.SignupInput {
	return application.SignupInput{
		Name:              "Pat",
		Email:             "pat@example.com",
		Password:          "clay-123",
		Phone:             "650-253-0000",
		UserType:          "ARTISAN",
		ProfileImageRef:   "https://cdn.example.com/pat.png",
		Bio:               "potter",
		ArtworkCategories: []string{"ceramics", "sculpture"},
	}
}
