package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hire-api/internal/middleware"
	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/service/auth"
	"github.com/jwalitptl/hire-api/pkg/httputil"
)

type Handler struct {
	svc     *auth.Service
	limiter *middleware.RateLimiter
}

// NewHandler builds the public auth endpoints. A nil limiter disables
// per-client rate limiting.
func NewHandler(svc *auth.Service, limiter *middleware.RateLimiter) *Handler {
	return &Handler{svc: svc, limiter: limiter}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	if h.limiter != nil {
		auth.Use(h.limiter.RateLimit())
	}
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/verify-email", h.VerifyEmail)
		auth.POST("/resend-verification", h.ResendVerification)
		auth.POST("/forgot-password", h.ForgotPassword)
		auth.POST("/reset-password", h.ResetPassword)
		auth.POST("/accept-invitation", h.AcceptInvitation)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	resp, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	session, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, session)
}

func (h *Handler) VerifyEmail(c *gin.Context) {
	var req model.VerifyEmailRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	if err := h.svc.VerifyEmail(c.Request.Context(), req); err != nil {
		_ = c.Error(err)
		return
	}

	httputil.RespondWithMessage(c, http.StatusOK, "email verified")
}

func (h *Handler) ResendVerification(c *gin.Context) {
	var req model.ResendVerificationRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	if err := h.svc.ResendVerification(c.Request.Context(), req); err != nil {
		_ = c.Error(err)
		return
	}

	httputil.RespondWithMessage(c, http.StatusOK, "if the account exists and is unverified, a verification email has been sent")
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	var req model.ForgotPasswordRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	if err := h.svc.ForgotPassword(c.Request.Context(), req); err != nil {
		_ = c.Error(err)
		return
	}

	httputil.RespondWithMessage(c, http.StatusOK, "if the account exists, a password reset email has been sent")
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req model.ResetPasswordRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	if err := h.svc.ResetPassword(c.Request.Context(), req); err != nil {
		_ = c.Error(err)
		return
	}

	httputil.RespondWithMessage(c, http.StatusOK, "password has been reset")
}

func (h *Handler) AcceptInvitation(c *gin.Context) {
	var req model.AcceptInvitationRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	session, err := h.svc.AcceptInvitation(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, session)
}
