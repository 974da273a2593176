package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"artemisa_pos/internal/catalog"
	"artemisa_pos/internal/debounce"
	"artemisa_pos/internal/printer"
	"artemisa_pos/internal/receipts"
	"artemisa_pos/internal/remote"
	"artemisa_pos/internal/sales"
	"artemisa_pos/internal/session"
)

func respond(ctx *gin.Context, status int, data any) {
	ctx.JSON(status, gin.H{"ok": true, "data": data})
}

func reject(ctx *gin.Context, status int, message string) {
	ctx.AbortWithStatusJSON(status, gin.H{"ok": false, "error": message})
}

// fail maps err to a status code and writes the error envelope.
func fail(ctx *gin.Context, logger *zap.Logger, err error) {
	var invalid *catalog.ValidationError
	if errors.As(err, &invalid) {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid product", "fields": invalid.Fields})
		return
	}

	if re, ok := remote.AsError(err); ok {
		status := http.StatusBadGateway
		if re.Kind == remote.KindServer && re.Status >= 400 && re.Status < 500 {
			status = re.Status
		}
		logger.Warn("backend request failed",
			zap.String("path", ctx.FullPath()),
			zap.String("kind", string(re.Kind)),
			zap.Int("status", re.Status),
			zap.Error(err),
		)
		reject(ctx, status, remote.UserMessage(err))
		return
	}

	switch {
	case errors.Is(err, sales.ErrNotFound), errors.Is(err, receipts.ErrNotFound):
		reject(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, sales.ErrInvalidPrice),
		errors.Is(err, sales.ErrInvalidPayType),
		errors.Is(err, sales.ErrMissingProductID),
		errors.Is(err, sales.ErrEmptyDraft),
		errors.Is(err, sales.ErrInsufficientTender),
		errors.Is(err, catalog.ErrMissingID),
		errors.Is(err, catalog.ErrUnknownCategory),
		errors.Is(err, session.ErrMissingCredentials):
		reject(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, sales.ErrSubmitInFlight), errors.Is(err, debounce.ErrSuperseded):
		reject(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, printer.ErrNotConfigured):
		reject(ctx, http.StatusServiceUnavailable, err.Error())
	case ctx.Request.Context().Err() != nil:
		// client went away; nothing useful to send
		ctx.Abort()
	default:
		logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
		reject(ctx, http.StatusInternalServerError, "internal error")
	}
}
