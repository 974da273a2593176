package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"artemisa_pos/internal/session"
	"artemisa_pos/internal/stats"
)

type sessionHandler struct {
	sessions *session.Manager
	auth     session.Authenticator
	logger   *zap.Logger
}

func NewSessionHandler(sessions *session.Manager, auth session.Authenticator, logger *zap.Logger) *sessionHandler {
	return &sessionHandler{sessions: sessions, auth: auth, logger: logger}
}

// handleLogin handles POST /login.
func (h *sessionHandler) handleLogin(ctx *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		reject(ctx, http.StatusBadRequest, errInvalidBody.Error())
		return
	}

	id, err := h.sessions.Login(ctx.Request.Context(), h.auth, req.Email, req.Password)
	if err != nil {
		fail(ctx, h.logger, err)
		return
	}
	respond(ctx, http.StatusOK, id)
}

// handleLogout handles POST /logout. The draft sale goes with the session.
func (h *sessionHandler) handleLogout(ctx *gin.Context) {
	if err := h.sessions.Logout(); err != nil {
		fail(ctx, h.logger, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"next": session.LoginPath})
}

type statsHandler struct {
	stats  *stats.Service
	logger *zap.Logger
}

func NewStatsHandler(svc *stats.Service, logger *zap.Logger) *statsHandler {
	return &statsHandler{stats: svc, logger: logger}
}

func (h *statsHandler) handleDashboard(ctx *gin.Context) {
	d, err := h.stats.Load(ctx.Request.Context())
	if err != nil {
		fail(ctx, h.logger, err)
		return
	}
	respond(ctx, http.StatusOK, d)
}
