package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"github.com/numbrly/portal/internal/config"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/types"
)

// CallerMiddleware trusts the X-User-ID header set by the upstream gateway
// and puts the caller in the request context
func CallerMiddleware(c *gin.Context) {
	userID := c.GetHeader(types.HeaderUserID)
	if userID == "" {
		c.Error(ierr.NewError("missing caller identity").
			WithHintf("The %s header is required", types.HeaderUserID).
			Mark(ierr.ErrUnauthorized))
		c.Abort()
		return
	}

	c.Request = c.Request.WithContext(types.SetUserID(c.Request.Context(), userID))
	c.Next()
}

// AdminMiddleware accepts requests whose X-Admin-Key matches auth.admin_key.
// With no key configured every admin request is rejected.
func AdminMiddleware(cfg *config.Configuration, log *logger.Logger) gin.HandlerFunc {
	expected := []byte(cfg.Auth.AdminKey)

	return func(c *gin.Context) {
		got := []byte(c.GetHeader(types.HeaderAdminKey))
		if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
			log.Debugw("admin key rejected", "path", c.FullPath())
			c.Error(ierr.NewError("invalid admin key").
				WithHint("A valid admin key is required").
				Mark(ierr.ErrPermissionDenied))
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(types.SetAdmin(c.Request.Context()))
		c.Next()
	}
}
