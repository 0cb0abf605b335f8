package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/artztall/user-service/internal/application"
	"github.com/artztall/user-service/pkg/helpers"
	"github.com/artztall/user-service/pkg/response"
	"github.com/artztall/user-service/pkg/validation"
)

type AuthHandler struct {
	Svc     *application.AuthService
	Cookies *helpers.Manager
	Logger  *logrus.Logger
}

func NewAuthHandler(svc *application.AuthService, cookies *helpers.Manager, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{Svc: svc, Cookies: cookies, Logger: logger}
}

// Signup creates an artisan or buyer account and starts a session for it.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req application.SignupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.JSON(c, response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err)))
		return
	}
	res, err := h.Svc.Signup(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	h.respondWithSession(c, res, http.StatusOK, "signup successful")
}

// Login authenticates by email and password.
func (h *AuthHandler) Login(c *gin.Context) {
	var req application.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.JSON(c, response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err)))
		return
	}
	req.Meta = application.LoginMeta{IP: clientIP(c), UserAgent: c.GetHeader("User-Agent")}
	res, err := h.Svc.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	h.respondWithSession(c, res, http.StatusOK, "login successful")
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	if h.Cookies != nil {
		h.Cookies.Clear(c)
	}
	response.JSON(c, response.Success[any](c, http.StatusOK, nil, "logged out", nil))
}

func (h *AuthHandler) respondWithSession(c *gin.Context, res *application.AuthResult, status int, msg string) {
	if h.Cookies != nil {
		h.Cookies.SetAccess(c, res.Token, res.ExpiresAt)
	}
	meta := map[string]any{"expires_at": res.ExpiresAt}
	response.JSON(c, response.Success(c, status, toAccountDTO(res.Account, res.Token), msg, meta))
}

func clientIP(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	return c.ClientIP()
}
