package account

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/hire-api/internal/middleware"
	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/service/auth"
	apperrors "github.com/jwalitptl/hire-api/pkg/errors"
	"github.com/jwalitptl/hire-api/pkg/httputil"
)

type Handler struct {
	svc  *auth.Service
	auth *middleware.AuthMiddleware
}

func NewHandler(svc *auth.Service, authMW *middleware.AuthMiddleware) *Handler {
	return &Handler{svc: svc, auth: authMW}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	accounts := r.Group("/accounts", h.auth.Authenticate())
	{
		accounts.POST("/invite",
			h.auth.RequirePermission(model.ResourceAccounts, model.ActionCreate), h.Invite)
		accounts.POST("/:id/resync-permissions",
			h.auth.RequirePermission(model.ResourceRoles, model.ActionUpdate), h.ResyncPermissions)
	}

	r.GET("/roles", h.auth.Authenticate(),
		h.auth.RequirePermission(model.ResourceRoles, model.ActionRead), h.ListRoles)
}

func (h *Handler) Invite(c *gin.Context) {
	caller, _ := middleware.PrincipalFrom(c)

	var req model.InviteRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	account, err := h.svc.Invite(c.Request.Context(), caller, req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, account.Summary())
}

func (h *Handler) ResyncPermissions(c *gin.Context) {
	caller, _ := middleware.PrincipalFrom(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(apperrors.Validation("invalid account ID"))
		return
	}

	summary, err := h.svc.ResyncPermissions(c.Request.Context(), caller, id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, summary)
}

func (h *Handler) ListRoles(c *gin.Context) {
	caller, _ := middleware.PrincipalFrom(c)

	roles, err := h.svc.ListRoles(c.Request.Context(), caller)
	if err != nil {
		_ = c.Error(err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, roles)
}
