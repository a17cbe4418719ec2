package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	goTrust "github.com/MrEthical07/goTrust"
)

const authResultKey = "gotrust.auth"

// RequireAuth is the gin form of Guard.
func RequireAuth(v Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := AccessToken(c.Request)
		if token == "" || v == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		res, err := v.ValidateAccess(c.Request.Context(), token)
		if err != nil {
			status, code := ErrorStatus(err)
			c.AbortWithStatusJSON(status, gin.H{"error": code})
			return
		}

		c.Set(authResultKey, res)
		c.Request = c.Request.WithContext(WithAuthResult(c.Request.Context(), res))
		c.Next()
	}
}

// RequireRole admits only authenticated callers holding one of roles. It
// must run after RequireAuth.
func RequireRole(roles ...goTrust.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, ok := AuthResult(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !slices.Contains(roles, res.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// AuthResult returns the result stored by RequireAuth.
func AuthResult(c *gin.Context) (*goTrust.AuthResult, bool) {
	v, ok := c.Get(authResultKey)
	if !ok {
		return nil, false
	}
	res, ok := v.(*goTrust.AuthResult)
	return res, ok
}
