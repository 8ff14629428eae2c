package billing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/hire-api/internal/middleware"
	"github.com/jwalitptl/hire-api/internal/model"
	"github.com/jwalitptl/hire-api/internal/service/subscription"
	"github.com/jwalitptl/hire-api/pkg/httputil"
)

type Handler struct {
	svc  *subscription.Service
	auth *middleware.AuthMiddleware
}

func NewHandler(svc *subscription.Service, authMW *middleware.AuthMiddleware) *Handler {
	return &Handler{svc: svc, auth: authMW}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	billing := r.Group("/billing")
	{
		billing.GET("/plans", h.ListPlans)
		// Called by the checkout client after the gateway redirect, before
		// the tenant can log in.
		billing.POST("/verify", h.VerifyPayment)
	}

	protected := billing.Group("", h.auth.Authenticate())
	{
		protected.POST("/orders",
			h.auth.RequirePermission(model.ResourceSettings, model.ActionUpdate), h.CreateOrder)
		protected.GET("/records",
			h.auth.RequirePermission(model.ResourceSettings, model.ActionRead), h.ListRecords)
	}
}

type planResponse struct {
	Name     string          `json:"name"`
	Monthly  decimal.Decimal `json:"monthly"`
	Yearly   decimal.Decimal `json:"yearly"`
	Currency string          `json:"currency"`
}

func (h *Handler) ListPlans(c *gin.Context) {
	catalog := h.svc.Catalog()
	plans := make([]planResponse, 0, len(catalog))
	for _, name := range catalog.Names() {
		p := catalog[name]
		plans = append(plans, planResponse{
			Name:     name,
			Monthly:  p.Monthly,
			Yearly:   p.Yearly,
			Currency: h.svc.Currency(),
		})
	}
	httputil.RespondWithSuccess(c, http.StatusOK, plans)
}

func (h *Handler) VerifyPayment(c *gin.Context) {
	var req model.VerifyPaymentRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	resp, err := h.svc.VerifyPayment(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, resp)
}

func (h *Handler) CreateOrder(c *gin.Context) {
	caller, _ := middleware.PrincipalFrom(c)

	var req model.RenewalOrderRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	order, err := h.svc.CreateRenewalOrder(c.Request.Context(), caller, req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, order)
}

func (h *Handler) ListRecords(c *gin.Context) {
	caller, _ := middleware.PrincipalFrom(c)

	records, err := h.svc.BillingHistory(c.Request.Context(), caller)
	if err != nil {
		_ = c.Error(err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, records)
}
