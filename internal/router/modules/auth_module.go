package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/artztall/user-service/internal/interface/http"
	"github.com/artztall/user-service/internal/interface/middleware"
)

// AuthLimits are per-IP requests per minute. Zero or a nil Redis disables a limit.
type AuthLimits struct {
	Redis  *redis.Client
	Login  int
	Signup int
	Bypass middleware.AllowFunc
}

type AuthModule struct {
	Handler *handlers.AuthHandler
	Limits  AuthLimits
}

func NewAuthModule(h *handlers.AuthHandler, limits AuthLimits) *AuthModule {
	return &AuthModule{Handler: h, Limits: limits}
}

// Register mounts POST /auth/signup, /auth/login and /auth/logout.
func (m *AuthModule) Register(rg *gin.RouterGroup) {
	l := m.Limits
	signupLimiter := middleware.RateLimit(l.Redis, l.Signup, time.Minute, middleware.KeyByIPAndPath(), l.Bypass)
	loginLimiter := middleware.RateLimit(l.Redis, l.Login, time.Minute, middleware.KeyByIPAndPath(), l.Bypass)

	rg.POST("/auth/signup", signupLimiter, m.Handler.Signup)
	rg.POST("/auth/login", loginLimiter, m.Handler.Login)
	rg.POST("/auth/logout", m.Handler.Logout)
}
