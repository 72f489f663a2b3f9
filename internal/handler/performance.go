package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"roimonitor/internal/models"
	"roimonitor/internal/perf"
	"roimonitor/internal/repository"
)

// PerformanceHandler serves NAV series and cached metrics to dashboards.
type PerformanceHandler struct {
	Repo repository.Repository
}

func (h *PerformanceHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/portfolios")
	group.GET("", h.list)
	group.GET("/:key/nav", h.nav)
	group.GET("/:key/roi", h.roi)
}

type navPointResponse struct {
	Date        string          `json:"date"`
	Nav         decimal.Decimal `json:"nav"`
	DailyReturn decimal.Decimal `json:"daily_return"`
}

type roiResponse struct {
	PortfolioKey   string           `json:"portfolio_key"`
	Status         string           `json:"status"`
	AsOfDate       *string          `json:"as_of_date,omitempty"`
	RoiInception   *decimal.Decimal `json:"roi_inception,omitempty"`
	Roi30d         *decimal.Decimal `json:"roi_30d,omitempty"`
	MaxDrawdown    *decimal.Decimal `json:"max_drawdown,omitempty"`
	Volatility     *decimal.Decimal `json:"volatility,omitempty"`
	LastComputedAt *time.Time       `json:"last_computed_at,omitempty"`
	LastError      *string          `json:"last_error,omitempty"`
}

// @Summary List portfolio dashboard snapshots
// @Tags performance
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/portfolios [get]
func (h *PerformanceHandler) list(c *gin.Context) {
	snaps, err := h.Repo.ListDashboardSnapshots(c.Request.Context(), repository.ListDashboardsParams{
		Scope: models.ScopePortfolio,
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	out := make([]roiResponse, 0, len(snaps))
	for i := range snaps {
		out = append(out, toRoiResponse(&snaps[i]))
	}
	Ok(c, out, map[string]any{"count": len(out)})
}

// @Summary NAV index points for a portfolio
// @Tags performance
// @Param key path string true "portfolio key"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/portfolios/{key}/nav [get]
func (h *PerformanceHandler) nav(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	params := repository.ListSeriesParams{
		SeriesType:   models.SeriesTypeModelNAV,
		PortfolioKey: key,
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(perf.DateKeyLayout, raw)
		if err != nil {
			Error(c, http.StatusBadRequest, "from must be YYYY-MM-DD", nil)
			return
		}
		params.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(perf.DateKeyLayout, raw)
		if err != nil {
			Error(c, http.StatusBadRequest, "to must be YYYY-MM-DD", nil)
			return
		}
		params.To = &to
	}

	points, err := h.Repo.ListPerformanceSeries(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	out := make([]navPointResponse, 0, len(points))
	for _, p := range points {
		out = append(out, navPointResponse{
			Date:        perf.DateKey(p.Date),
			Nav:         p.Value,
			DailyReturn: p.DailyReturn,
		})
	}
	Ok(c, out, map[string]any{"count": len(out)})
}

// @Summary Cached ROI metrics and freshness status for a portfolio
// @Tags performance
// @Param key path string true "portfolio key"
// @Success 200 {object} handler.apiResponse
// @Failure 404 {object} map[string]string
// @Router /api/v1/portfolios/{key}/roi [get]
func (h *PerformanceHandler) roi(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	snap, err := h.Repo.GetDashboardSnapshot(c.Request.Context(), models.ScopePortfolio, key)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if snap == nil {
		Error(c, http.StatusNotFound, "unknown portfolio", nil)
		return
	}
	Ok(c, toRoiResponse(snap), nil)
}

func toRoiResponse(snap *models.RoiDashboardSnapshot) roiResponse {
	resp := roiResponse{
		PortfolioKey:   snap.PortfolioKey,
		Status:         snap.Status(),
		RoiInception:   snap.RoiInception,
		Roi30d:         snap.Roi30d,
		MaxDrawdown:    snap.MaxDrawdown,
		Volatility:     snap.Volatility,
		LastComputedAt: snap.LastComputedAt,
		LastError:      snap.LastError,
	}
	if snap.AsOfDate != nil {
		asOf := perf.DateKey(*snap.AsOfDate)
		resp.AsOfDate = &asOf
	}
	return resp
}
