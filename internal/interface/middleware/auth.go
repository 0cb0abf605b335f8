package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/artztall/user-service/internal/domain/entity"
	"github.com/artztall/user-service/pkg/helpers"
	"github.com/artztall/user-service/pkg/response"
)

// Context keys set by Auth.
const (
	CtxUserIDKey    = "userID"
	CtxUserKindKey  = "userKind"
	CtxUserEmailKey = "userEmail"
)

// AccessTokenCookie holds the token when it is not sent as a bearer header.
const AccessTokenCookie = helpers.AccessTokenCookie

// TokenParser verifies an access token.
type TokenParser interface {
	Parse(token string) (*helpers.Claims, error)
}

// Auth accepts a token from the Authorization bearer header or the access_token cookie.
// On success it sets userID, userKind and userEmail in the Gin context.
func Auth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token, _ = c.Cookie(AccessTokenCookie)
		}
		if token == "" {
			response.Abort(c, response.Error[any](c, http.StatusUnauthorized, "missing access token", nil))
			return
		}
		claims, err := tokens.Parse(token)
		if err != nil {
			response.Abort(c, response.Error[any](c, http.StatusUnauthorized, "invalid access token", nil))
			return
		}
		c.Set(CtxUserIDKey, claims.Subject)
		c.Set(CtxUserKindKey, claims.UserKind)
		c.Set(CtxUserEmailKey, claims.Email)
		c.Next()
	}
}

// Identity returns the account id and kind set by Auth.
func Identity(c *gin.Context) (string, entity.Kind, bool) {
	id := c.GetString(CtxUserIDKey)
	v, _ := c.Get(CtxUserKindKey)
	kind, _ := v.(entity.Kind)
	return id, kind, id != "" && kind != ""
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
