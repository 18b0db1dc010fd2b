package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classroom/internal/apperr"
)

const identityKey = "teacher"

var (
	ErrMissingToken   = apperr.Unauthorized("missing_token", "Missing Authorization Bearer token")
	ErrInvalidToken   = apperr.Unauthorized("invalid_token", "Invalid token")
	ErrNotAllowlisted = apperr.Unauthorized("not_allowlisted", "Not allowed")
)

// TeacherAuth enforces a bearer token from v and the email allowlist.
func TeacherAuth(v Verifier, allow Allowlist, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < len("bearer ") || !strings.EqualFold(authz[:len("bearer ")], "bearer ") {
			abort(c, ErrMissingToken)
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		if tokenStr == "" {
			abort(c, ErrMissingToken)
			return
		}
		id, err := v.Verify(c.Request.Context(), tokenStr)
		if err != nil {
			log.Debug("token rejected", zap.Error(err))
			abort(c, ErrInvalidToken)
			return
		}
		if !allow.Allows(id.Email) {
			log.Warn("teacher not allowlisted", zap.String("email", id.Email))
			abort(c, ErrNotAllowlisted)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// TeacherFrom returns the identity stored by TeacherAuth.
func TeacherFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperr.Status(err), gin.H{"error": apperr.Message(err)})
}
