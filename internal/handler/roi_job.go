package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"roimonitor/internal/perf"
	"roimonitor/internal/service"
)

// RoiJobHandler exposes the cron/manual trigger for the recompute job.
type RoiJobHandler struct {
	Job *service.RoiJobService
	// CronSecret authenticates scheduled invocations; accepted either as
	// X-Cron-Secret or a bearer token.
	CronSecret string
}

func (h *RoiJobHandler) Register(r *gin.Engine) {
	r.POST("/internal/jobs/roi", h.run)
}

type runJobRequest struct {
	PortfolioKey string `json:"portfolio_key" form:"portfolio_key"`
	IncludeClean bool   `json:"include_clean" form:"include_clean"`
	From         string `json:"from" form:"from"`
	To           string `json:"to" form:"to"`
}

// @Summary Trigger the portfolio ROI recompute job
// @Tags jobs
// @Param payload body runJobRequest false "run overrides"
// @Success 200 {object} service.RunResult
// @Failure 401 {object} map[string]string
// @Router /internal/jobs/roi [post]
func (h *RoiJobHandler) run(c *gin.Context) {
	if !h.authorized(c) {
		Error(c, http.StatusUnauthorized, "invalid cron secret", nil)
		return
	}
	if h.Job == nil {
		Error(c, http.StatusInternalServerError, "job unavailable", nil)
		return
	}

	var req runJobRequest
	if err := c.ShouldBind(&req); err != nil && c.Request.ContentLength > 0 {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	opts := service.RunOptions{
		Trigger:      "http",
		PortfolioKey: strings.TrimSpace(req.PortfolioKey),
		IncludeClean: req.IncludeClean,
	}
	if req.From != "" {
		from, err := time.Parse(perf.DateKeyLayout, req.From)
		if err != nil {
			Error(c, http.StatusBadRequest, "from must be YYYY-MM-DD", nil)
			return
		}
		opts.From = &from
	}
	if req.To != "" {
		to, err := time.Parse(perf.DateKeyLayout, req.To)
		if err != nil {
			Error(c, http.StatusBadRequest, "to must be YYYY-MM-DD", nil)
			return
		}
		opts.To = &to
	}

	result, err := h.Job.Run(c.Request.Context(), opts)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

func (h *RoiJobHandler) authorized(c *gin.Context) bool {
	if h.CronSecret == "" {
		return true
	}
	if c.GetHeader("X-Cron-Secret") == h.CronSecret {
		return true
	}
	auth := c.GetHeader("Authorization")
	return strings.TrimPrefix(auth, "Bearer ") == h.CronSecret && strings.HasPrefix(auth, "Bearer ")
}
