package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"
	"github.com/sirupsen/logrus"

	"github.com/artztall/user-service/internal/domain/entity"
	"github.com/artztall/user-service/internal/domain/repository"
	"github.com/artztall/user-service/pkg/helpers"
	"github.com/artztall/user-service/pkg/metrics"
	"github.com/artztall/user-service/pkg/validation"
)

// sideEffectTimeout bounds the best-effort work done after a signup or login commits.
const sideEffectTimeout = 3 * time.Second

// SignupInput is everything needed to create an account of either kind.
// Bio and ArtworkCategories apply to artisans, Address to buyers.
type SignupInput struct {
	Name              string          `json:"name" validate:"required,max=120"`
	Email             string          `json:"email" validate:"required,email,max=254"`
	Password          string          `json:"password" validate:"required,pwd"`
	Phone             string          `json:"phone" validate:"required,max=32"`
	UserType          string          `json:"userType" validate:"required,usertype"`
	ProfileImageRef   string          `json:"profileImageRef" validate:"max=2048"`
	Bio               string          `json:"bio" validate:"max=2000"`
	ArtworkCategories []string        `json:"artworkCategories" validate:"max=20,dive,required,max=64"`
	Address           *entity.Address `json:"address" validate:"omitempty"`
}

// LoginInput carries the credentials of a login attempt. Meta is filled by the
// transport and only feeds the login notification.
type LoginInput struct {
	Email    string    `json:"email" validate:"required"`
	Password string    `json:"password" validate:"required"`
	Meta     LoginMeta `json:"-"`
}

// AuthResult is returned by both Signup and Login.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	Account   entity.Account
}

// AuthServiceDeps groups the collaborators of AuthService. Notifier and Index are optional.
type AuthServiceDeps struct {
	Resolver    *IdentityResolver
	Hasher      PasswordHasher
	Tokens      TokenIssuer
	Notifier    Notifier
	Index       AccountIndex
	Logger      *logrus.Logger
	PhoneRegion string
	Clock       func() time.Time
}

// AuthService creates accounts and authenticates them.
type AuthService struct {
	resolver    *IdentityResolver
	hasher      PasswordHasher
	tokens      TokenIssuer
	notifier    Notifier
	index       AccountIndex
	logger      *logrus.Logger
	validate    *validator.Validate
	phoneRegion string
	now         func() time.Time
}

// NewAuthService builds the service. The phone region defaults to US and the clock to time.Now.
func NewAuthService(d AuthServiceDeps) *AuthService {
	s := &AuthService{
		resolver:    d.Resolver,
		hasher:      d.Hasher,
		tokens:      d.Tokens,
		notifier:    d.Notifier,
		index:       d.Index,
		logger:      d.Logger,
		validate:    validation.New(),
		phoneRegion: strings.ToUpper(d.PhoneRegion),
		now:         d.Clock,
	}
	if s.logger == nil {
		s.logger = logrus.New()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.phoneRegion == "" {
		s.phoneRegion = "US"
	}
	return s
}

// Signup creates an account of the requested kind and signs a token for it.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in, kind, err := s.normalizeSignup(in)
	if err != nil {
		metrics.RecordSignupRejection("invalid_input")
		return nil, err
	}

	taken, err := s.resolver.EmailTaken(ctx, in.Email)
	if err != nil {
		metrics.RecordSignupRejection("storage")
		return nil, storageError(err)
	}
	if taken {
		metrics.RecordSignupRejection("email_taken")
		return nil, ErrEmailAlreadyExists
	}

	start := time.Now()
	digest, err := s.hasher.Hash(ctx, in.Password)
	metrics.ObserveHash("hash", start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.RecordSignupRejection("cancelled")
			return nil, ctxErr
		}
		s.logger.WithError(err).Error("hash password failed")
		return nil, err
	}

	id := entity.Identity{
		Email:             in.Email,
		PasswordHash:      digest,
		Name:              in.Name,
		Phone:             in.Phone,
		ProfilePictureURL: in.ProfileImageRef,
		JoinedAt:          s.now().UTC(),
		Active:            true,
	}
	var acc entity.Account
	switch kind {
	case entity.KindArtisan:
		acc = entity.NewArtisan(id, in.Bio, in.ArtworkCategories)
	default:
		acc = entity.NewBuyer(id, in.Address)
	}

	store, err := s.resolver.StoreFor(kind)
	if err != nil {
		return nil, err
	}
	saved, err := store.Save(context.WithoutCancel(ctx), acc)
	if errors.Is(err, repository.ErrEmailTaken) {
		metrics.RecordSignupRejection("email_taken")
		return nil, ErrEmailAlreadyExists
	}
	if err != nil {
		s.logger.WithError(err).WithField("kind", kind).Error("save new account failed")
		metrics.RecordSignupRejection("storage")
		return nil, storageError(err)
	}

	res, err := s.issue(saved)
	if err != nil {
		return nil, err
	}
	metrics.RecordSignup(kind.String())
	s.logger.WithFields(logrus.Fields{"account_id": saved.Base().ID, "kind": kind}).Info("account created")

	s.afterCommit(ctx, saved, func(c context.Context) error {
		if s.notifier == nil {
			return nil
		}
		return s.notifier.Welcome(c, saved)
	})
	return res, nil
}

// Login verifies credentials and records the login time.
// Unknown emails and wrong passwords return distinct errors that callers must not expose.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = entity.NormalizeEmail(in.Email)
	fields := map[string]string{}
	if err := s.validate.Struct(in); err != nil {
		fields = validation.ToDetails(err)
	}
	if blank(in.Password) {
		fields["password"] = "is required"
	}
	if len(fields) > 0 {
		metrics.RecordLogin(metrics.OutcomeInvalidInput)
		return nil, &InputError{Fields: fields}
	}

	acc, err := s.resolver.ResolveByEmail(ctx, in.Email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		start := time.Now()
		s.hasher.DummyVerify(ctx, in.Password)
		metrics.ObserveHash("dummy", start)
		metrics.RecordLogin(metrics.OutcomeUnknownEmail)
		return nil, ErrUserNotFound
	case errors.Is(err, ErrIdentityConflict):
		metrics.RecordLogin(metrics.OutcomeConflict)
		return nil, err
	case err != nil:
		metrics.RecordLogin(metrics.OutcomeStorageUnavailable)
		return nil, storageError(err)
	}

	base := acc.Base()
	start := time.Now()
	ok, err := s.hasher.Verify(ctx, in.Password, base.PasswordHash)
	metrics.ObserveHash("verify", start)
	if err != nil {
		metrics.RecordLogin(metrics.OutcomeCancelled)
		return nil, err
	}
	if !ok {
		metrics.RecordLogin(metrics.OutcomeWrongPassword)
		s.logger.WithField("account_id", base.ID).Info("login rejected: wrong password")
		return nil, ErrInvalidCredentials
	}
	if !base.Active {
		metrics.RecordLogin(metrics.OutcomeInactive)
		return nil, ErrAccountInactive
	}

	store, err := s.resolver.StoreFor(base.Kind)
	if err != nil {
		return nil, err
	}
	saved, err := store.RecordLogin(context.WithoutCancel(ctx), base.ID, s.now().UTC())
	switch {
	case errors.Is(err, repository.ErrNotFound):
		metrics.RecordLogin(metrics.OutcomeUnknownEmail)
		return nil, ErrUserNotFound
	case err != nil:
		s.logger.WithError(err).WithField("account_id", base.ID).Error("record last login failed")
		metrics.RecordLogin(metrics.OutcomeStorageUnavailable)
		return nil, storageError(err)
	}
	if !saved.Base().Active {
		metrics.RecordLogin(metrics.OutcomeInactive)
		return nil, ErrAccountInactive
	}

	res, err := s.issue(saved)
	if err != nil {
		return nil, err
	}
	metrics.RecordLogin(metrics.OutcomeSuccess)

	s.afterCommit(ctx, saved, func(c context.Context) error {
		if s.notifier == nil {
			return nil
		}
		return s.notifier.LoginAlert(c, saved, in.Meta)
	})
	return res, nil
}

func (s *AuthService) issue(acc entity.Account) (*AuthResult, error) {
	base := acc.Base()
	token, exp, err := s.tokens.Issue(base.ID, base.Email, base.Kind)
	if err != nil {
		s.logger.WithError(err).WithField("account_id", base.ID).Error("issue token failed")
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: exp, Account: acc}, nil
}

// afterCommit runs notify and re-indexes acc. Failures are logged and never returned.
func (s *AuthService) afterCommit(ctx context.Context, acc entity.Account, notify func(context.Context) error) {
	c, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	log := s.logger.WithField("account_id", acc.Base().ID)
	if err := notify(c); err != nil {
		log.WithError(err).Warn("queue account email failed")
	}
	if s.index != nil {
		if err := s.index.Index(c, acc); err != nil {
			log.WithError(err).Warn("index account failed")
		}
	}
}

// normalizeSignup trims and canonicalizes in, then validates it.
func (s *AuthService) normalizeSignup(in SignupInput) (SignupInput, entity.Kind, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = entity.NormalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.ProfileImageRef = strings.TrimSpace(in.ProfileImageRef)
	in.Bio = strings.TrimSpace(in.Bio)
	kind, _ := entity.ParseKind(in.UserType)
	if kind != "" {
		in.UserType = kind.String()
	}
	in.ArtworkCategories = slices.Clone(in.ArtworkCategories)
	for i, c := range in.ArtworkCategories {
		in.ArtworkCategories[i] = strings.TrimSpace(c)
	}

	fields := map[string]string{}
	if err := s.validate.Struct(in); err != nil {
		fields = validation.ToDetails(err)
	}
	if _, flagged := fields["password"]; !flagged {
		switch {
		case blank(in.Password):
			fields["password"] = "is required"
		case len(in.Password) > helpers.MaxPasswordBytes:
			fields["password"] = fmt.Sprintf("must be at most %d bytes long", helpers.MaxPasswordBytes)
		}
	}
	if _, flagged := fields["phone"]; !flagged && in.Phone != "" {
		phone, ok := normalizePhone(in.Phone, s.phoneRegion)
		if ok {
			in.Phone = phone
		} else {
			fields["phone"] = "must be a valid phone number"
		}
	}
	if len(fields) > 0 {
		return in, "", &InputError{Fields: fields}
	}
	return in, kind, nil
}

// normalizePhone parses raw in region and formats it as E.164.
func normalizePhone(raw, region string) (string, bool) {
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}

// blank reports whether a password is empty or only whitespace. Passwords are
// never trimmed before hashing.
func blank(password string) bool {
	return strings.TrimSpace(password) == ""
}

func storageError(err error) error {
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}
