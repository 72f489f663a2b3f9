package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"roimonitor/internal/models"
	"roimonitor/internal/perf"
	"roimonitor/internal/service"
)

// AllocationHandler receives allocation publishes from the admin back office.
type AllocationHandler struct {
	Service *service.AllocationService
	// AdminToken authenticates POSTs; GETs are open to dashboards.
	AdminToken string
}

func (h *AllocationHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/portfolios/:key/allocations")
	group.GET("", h.list)
	group.POST("", h.publish)
}

type allocationItemRequest struct {
	Asset  string          `json:"asset" binding:"required"`
	Weight decimal.Decimal `json:"weight"`
}

type publishAllocationRequest struct {
	Items      []allocationItemRequest `json:"items"`
	CashWeight decimal.Decimal         `json:"cash_weight"`
	AsOfDate   string                  `json:"as_of_date"`
}

type allocationResponse struct {
	PortfolioKey string                  `json:"portfolio_key"`
	AsOfDate     string                  `json:"as_of_date"`
	Items        []models.AllocationItem `json:"items"`
	CashWeight   decimal.Decimal         `json:"cash_weight"`
}

// @Summary Publish a daily allocation snapshot
// @Tags allocations
// @Param key path string true "portfolio key"
// @Param payload body publishAllocationRequest true "allocation weights"
// @Success 200 {object} handler.apiResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/v1/portfolios/{key}/allocations [post]
func (h *AllocationHandler) publish(c *gin.Context) {
	if !h.authorized(c) {
		Error(c, http.StatusUnauthorized, "invalid admin token", nil)
		return
	}
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "allocation service unavailable", nil)
		return
	}

	var req publishAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	items := make([]models.AllocationItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, models.AllocationItem{
			Asset:  strings.ToUpper(strings.TrimSpace(item.Asset)),
			Weight: item.Weight,
		})
	}

	publish := service.PublishAllocationRequest{
		PortfolioKey: c.Param("key"),
		Items:        items,
		CashWeight:   req.CashWeight,
	}
	if req.AsOfDate != "" {
		asOf, err := time.Parse(perf.DateKeyLayout, req.AsOfDate)
		if err != nil {
			Error(c, http.StatusBadRequest, "as_of_date must be YYYY-MM-DD", nil)
			return
		}
		publish.AsOfDate = &asOf
	}

	snapshot, err := h.Service.Publish(c.Request.Context(), publish)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	Ok(c, toAllocationResponse(snapshot), nil)
}

// @Summary Allocation snapshot history for a portfolio
// @Tags allocations
// @Param key path string true "portfolio key"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/portfolios/{key}/allocations [get]
func (h *AllocationHandler) list(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "allocation service unavailable", nil)
		return
	}
	snapshots, err := h.Service.List(c.Request.Context(), c.Param("key"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	out := make([]allocationResponse, 0, len(snapshots))
	for i := range snapshots {
		out = append(out, toAllocationResponse(&snapshots[i]))
	}
	Ok(c, out, map[string]any{"count": len(out)})
}

func (h *AllocationHandler) authorized(c *gin.Context) bool {
	if h.AdminToken == "" {
		return true
	}
	auth := c.GetHeader("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == h.AdminToken
}

func toAllocationResponse(snapshot *models.AllocationSnapshot) allocationResponse {
	items, _ := snapshot.DecodeItems()
	return allocationResponse{
		PortfolioKey: snapshot.PortfolioKey,
		AsOfDate:     perf.DateKey(snapshot.AsOfDate),
		Items:        items,
		CashWeight:   snapshot.CashWeight,
	}
}
