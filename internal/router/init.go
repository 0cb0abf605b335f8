package router

import (
	"github.com/artztall/user-service/internal/container"
	handlers "github.com/artztall/user-service/internal/interface/http"
	"github.com/artztall/user-service/internal/interface/middleware"
	"github.com/artztall/user-service/internal/router/modules"
)

// InitModules builds the HTTP handlers from c and registers their modules.
// Call once during startup, before RegisterAll.
func InitModules(r *Registry, c *container.Container) {
	var bypass middleware.AllowFunc
	if c.Config.RateLimitBypassPrivate {
		bypass = middleware.AllowPrivateIP()
	}

	authHandler := handlers.NewAuthHandler(c.Auth, c.Cookies, c.Logger)
	profileHandler := handlers.NewProfileHandler(c.Profiles, c.Logger)

	r.Add(modules.NewAuthModule(authHandler, modules.AuthLimits{
		Redis:  c.Redis,
		Login:  c.Config.LoginRateLimit,
		Signup: c.Config.SignupRateLimit,
		Bypass: bypass,
	}))
	r.Add(modules.NewProfileModule(profileHandler, c.Tokens, c.Redis))
	if c.Config.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(c.Metrics))
	}
}
