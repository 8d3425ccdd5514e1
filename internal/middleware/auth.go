package middleware

import (
	"net/http"
	"strings"

	pkgAuth "tabletop-service/pkg/auth"
	appErr "tabletop-service/pkg/errors"
	"tabletop-service/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserIDKey  = "userID"
	ContextAdminIDKey = "adminID"
)

// AuthRequired rejects requests without a valid user-scoped bearer
// token and stores the caller's user ID in the gin context.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := extractBearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c)
			return
		}

		claims, err := pkgAuth.ParseUserToken(token)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		c.Set(ContextUserIDKey, claims.SubjectID)
		c.Next()
	}
}

// AdminAuthRequired is AuthRequired for admin-scoped tokens. A user
// token never passes the scope check here.
func AdminAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := extractBearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c)
			return
		}

		claims, err := pkgAuth.ParseAdminToken(token)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		c.Set(ContextAdminIDKey, claims.SubjectID)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context) {
	response.Error(c, http.StatusUnauthorized, appErr.ErrUnauthorized.Error())
	c.Abort()
}

func extractBearerToken(authHeader string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(authHeader), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
