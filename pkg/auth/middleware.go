package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// contextKey under which the decoded payload is stored on the gin context.
const payloadKey = "auth.payload"

// Middleware authenticates the request and enforces that the :user_id path
// parameter equals the token subject. Missing/invalid/expired token is 401;
// a subject mismatch is 403. Cross-user access is rejected here, before any
// handler runs.
func (v *Validator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := FromAuthorizationHeader(c.GetHeader("Authorization"))
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": err.Error(),
			})
			return
		}

		payload, err := v.Decode(token)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": err.Error(),
			})
			return
		}

		if userID := c.Param("user_id"); userID != payload.Subject {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "You cannot access this resource",
			})
			return
		}

		c.Set(payloadKey, payload)
		c.Next()
	}
}

// CurrentUser returns the decoded payload placed by Middleware, or nil if
// the request was not authenticated.
func CurrentUser(c *gin.Context) *TokenPayload {
	if v, ok := c.Get(payloadKey); ok {
		if p, ok := v.(*TokenPayload); ok {
			return p
		}
	}
	return nil
}
