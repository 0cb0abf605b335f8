package container

import (
	"context"
	"time"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"github.com/artztall/user-service/config"
	"github.com/artztall/user-service/internal/application"
	"github.com/artztall/user-service/internal/domain/entity"
	"github.com/artztall/user-service/internal/domain/repository"
	"github.com/artztall/user-service/internal/infrastructure/memory"
	"github.com/artztall/user-service/internal/infrastructure/messaging"
	pginfra "github.com/artztall/user-service/internal/infrastructure/postgres"
	"github.com/artztall/user-service/internal/infrastructure/search"
	gcsinfra "github.com/artztall/user-service/internal/infrastructure/storage"
	"github.com/artztall/user-service/pkg/helpers"
	"github.com/artztall/user-service/pkg/metrics"
)

const probeTimeout = 3 * time.Second

// Container holds every component built at startup. Optional backends are nil
// when they are not configured or not reachable.
type Container struct {
	Config *config.Config
	Logger *logrus.Logger

	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Publisher *helpers.RabbitPublisher
	ES        *elasticsearch.Client
	GCS       *storage.Client
	Metrics   *prometheus.Registry

	Tokens   *helpers.TokenCodec
	Hasher   *helpers.BcryptHasher
	Cookies  *helpers.Manager
	Resolver *application.IdentityResolver
	Auth     *application.AuthService
	Profiles *application.ProfileService

	closers []func()
}

// New builds the container from cfg. Only the account stores are required.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: prometheus.NewRegistry(),
		Tokens:  helpers.NewTokenCodec(cfg.JWTSecret, cfg.TokenTTL, cfg.AppName),
		Hasher:  helpers.NewBcryptHasher(cfg.BcryptCost, cfg.HashWorkers),
		Cookies: helpers.NewCookie(cfg.CookieDomain, cfg.CookieSecure),
	}
	c.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(c.Metrics)

	stores, err := c.buildStores(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Resolver, err = application.NewIdentityResolver(logger, stores...)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.connectRedis(ctx)
	notifier := c.connectMail()
	index := c.connectSearch(ctx)
	avatars := c.connectAvatars(ctx)

	c.Auth = application.NewAuthService(application.AuthServiceDeps{
		Resolver:    c.Resolver,
		Hasher:      c.Hasher,
		Tokens:      c.Tokens,
		Notifier:    notifier,
		Index:       index,
		Logger:      logger,
		PhoneRegion: cfg.DefaultPhoneRegion,
	})
	c.Profiles = application.NewProfileService(c.Resolver, avatars, index, logger)
	return c, nil
}

// Close releases every connection in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func (c *Container) onClose(fn func()) { c.closers = append(c.closers, fn) }

func (c *Container) buildStores(ctx context.Context) ([]repository.UserStore, error) {
	if c.Config.StoreDriver == config.StoreDriverMemory {
		c.Logger.Warn("using in-memory account stores; data is lost on restart")
		emails := memory.NewEmailIndex()
		return []repository.UserStore{
			memory.NewUserStore(entity.KindArtisan, emails),
			memory.NewUserStore(entity.KindBuyer, emails),
		}, nil
	}

	pool, err := pginfra.NewPool(ctx, c.Config)
	if err != nil {
		return nil, err
	}
	c.Pool = pool
	c.onClose(pool.Close)
	if err := pginfra.Migrate(c.Config.PostgresDSN(), c.Config.MigrationsDir, c.Logger); err != nil {
		return nil, err
	}
	return []repository.UserStore{pginfra.NewArtisanStore(pool), pginfra.NewBuyerStore(pool)}, nil
}

// connectRedis leaves Redis nil when it cannot be reached, which disables rate limiting.
func (c *Container) connectRedis(ctx context.Context) {
	if c.Config.RedisAddr == "" {
		return
	}
	rdb := helpers.NewRedisClient(c.Config.RedisAddr, c.Config.RedisPassword, c.Config.RedisDB)
	if err := helpers.PingRedis(ctx, rdb, probeTimeout); err != nil {
		c.Logger.WithError(err).Warn("redis unavailable; rate limiting disabled")
		_ = rdb.Close()
		return
	}
	c.Redis = rdb
	c.onClose(func() { _ = rdb.Close() })
}

func (c *Container) connectMail() application.Notifier {
	if !c.Config.MailSendEnabled || c.Config.RabbitMQURL == "" {
		return nil
	}
	pub, err := helpers.NewRabbitPublisher(c.Config.RabbitMQURL, c.Config.RabbitMQEmailQueue)
	if err != nil {
		c.Logger.WithError(err).Warn("rabbitmq unavailable; account emails disabled")
		return nil
	}
	c.Publisher = pub
	c.onClose(pub.Close)
	return messaging.NewEmailNotifier(pub, c.Config)
}

func (c *Container) connectSearch(ctx context.Context) application.AccountIndex {
	addrs := c.Config.ESAddrs()
	if len(addrs) == 0 {
		return nil
	}
	es, err := helpers.NewESClient(addrs, c.Config.ElasticsearchUser, c.Config.ElasticsearchPass)
	if err != nil {
		c.Logger.WithError(err).Warn("elasticsearch client init failed; artisan search disabled")
		return nil
	}
	index := search.NewAccountIndex(es, c.Config.ESAccountsIndex)
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := index.EnsureIndex(pctx); err != nil {
		c.Logger.WithFields(oopsFields(err)).WithError(err).Warn("elasticsearch unavailable; artisan search disabled")
		return nil
	}
	c.ES = es
	return index
}

func (c *Container) connectAvatars(ctx context.Context) application.AvatarStorage {
	if c.Config.GCSBucket == "" {
		return nil
	}
	client, err := helpers.NewGCSClient(ctx, c.Config.GCSCredentialsJSONPath)
	if err != nil {
		c.Logger.WithError(err).Warn("gcs client init failed; avatar uploads disabled")
		return nil
	}
	c.GCS = client
	c.onClose(func() { _ = client.Close() })
	return gcsinfra.NewGCSAvatars(client, c.Config.GCSBucket)
}

// oopsFields extracts the error code and context attached with samber/oops.
func oopsFields(err error) logrus.Fields {
	f := logrus.Fields{}
	if oe, ok := oops.AsOops(err); ok {
		f["code"] = oe.Code()
		for k, v := range oe.Context() {
			f[k] = v
		}
	}
	return f
}
