package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"artemisa_pos/internal/session"
)

const claimsKey = "claims"

// RequireRole lets a request through only while the stored session token
// carries one of roles and has not expired. Rejections name where the UI
// should go next: the login screen, the expired-session login, or back ("").
func RequireRole(sess *session.Manager, roles []string, logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, err := sess.Authorize(roles)
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, session.ErrForbidden) {
				status = http.StatusForbidden
			}
			logger.Debug("route gate rejected request", zap.String("path", ctx.FullPath()), zap.Error(err))
			ctx.AbortWithStatusJSON(status, gin.H{
				"ok":       false,
				"error":    err.Error(),
				"redirect": session.RedirectFor(err),
			})
			return
		}
		ctx.Set(claimsKey, claims)
		ctx.Next()
	}
}
