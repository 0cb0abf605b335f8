package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/artztall/user-service/internal/interface/http"
	"github.com/artztall/user-service/internal/interface/middleware"
)

type ProfileModule struct {
	Handler *handlers.ProfileHandler
	Tokens  middleware.TokenParser
	Redis   *redis.Client
}

func NewProfileModule(h *handlers.ProfileHandler, tokens middleware.TokenParser, rdb *redis.Client) *ProfileModule {
	return &ProfileModule{Handler: h, Tokens: tokens, Redis: rdb}
}

// Register mounts the signed-in profile routes and the public artisan search.
func (m *ProfileModule) Register(rg *gin.RouterGroup) {
	searchLimiter := middleware.RateLimit(m.Redis, 120, time.Minute, middleware.KeyByIP(), nil)
	rg.GET("/artisans/search", searchLimiter, m.Handler.SearchArtisans)

	me := rg.Group("/me")
	me.Use(middleware.Auth(m.Tokens))
	me.Use(middleware.RateLimit(m.Redis, 120, time.Minute, middleware.KeyByUserID(), nil))
	{
		me.GET("", m.Handler.Me)
		me.POST("/avatar", m.Handler.UploadAvatar)
	}
}
