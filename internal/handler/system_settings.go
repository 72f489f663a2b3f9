package handler

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"roimonitor/internal/service"
)

// SystemSettingsHandler lets operators inspect and flip feature switches.
type SystemSettingsHandler struct {
	Settings *service.SystemSettingsService
	// AdminToken authenticates PUTs; reads are open.
	AdminToken string
}

func (h *SystemSettingsHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/system/switches")
	group.GET("", h.list)
	group.GET("/:name", h.get)
	group.PUT("/:name", h.put)
}

type putSwitchRequest struct {
	Enabled bool `json:"enabled"`
}

type switchResponse struct {
	Name    string `json:"name"`
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
}

// @Summary List feature switches
// @Tags system
// @Success 200 {object} handler.apiResponse
// @Router /api/v1/system/switches [get]
func (h *SystemSettingsHandler) list(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	defaults := service.DefaultFeatureSwitches()
	keys := make([]string, 0, len(defaults))
	for key := range defaults {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]switchResponse, 0, len(keys))
	for _, key := range keys {
		out = append(out, switchResponse{
			Name:    strings.TrimPrefix(key, "feature."),
			Key:     key,
			Enabled: h.Settings.IsEnabled(c.Request.Context(), key, defaults[key]),
		})
	}
	Ok(c, out, map[string]any{"count": len(out)})
}

// @Summary Read one feature switch
// @Tags system
// @Param name path string true "switch name, e.g. roi_job"
// @Success 200 {object} handler.apiResponse
// @Failure 404 {object} map[string]string
// @Router /api/v1/system/switches/{name} [get]
func (h *SystemSettingsHandler) get(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	key, fallback, ok := h.resolve(c.Param("name"))
	if !ok {
		Error(c, http.StatusNotFound, "unknown switch", nil)
		return
	}
	Ok(c, switchResponse{
		Name:    strings.TrimPrefix(key, "feature."),
		Key:     key,
		Enabled: h.Settings.IsEnabled(c.Request.Context(), key, fallback),
	}, nil)
}

// @Summary Flip one feature switch
// @Tags system
// @Param name path string true "switch name, e.g. roi_job"
// @Param payload body putSwitchRequest true "desired state"
// @Success 200 {object} handler.apiResponse
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/system/switches/{name} [put]
func (h *SystemSettingsHandler) put(c *gin.Context) {
	if !h.authorized(c) {
		Error(c, http.StatusUnauthorized, "invalid admin token", nil)
		return
	}
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	key, _, ok := h.resolve(c.Param("name"))
	if !ok {
		Error(c, http.StatusNotFound, "unknown switch", nil)
		return
	}
	var req putSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Settings.SetEnabled(c.Request.Context(), key, req.Enabled); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, switchResponse{
		Name:    strings.TrimPrefix(key, "feature."),
		Key:     key,
		Enabled: req.Enabled,
	}, nil)
}

// resolve maps a short switch name onto its settings key. Only seeded
// switches are addressable; arbitrary keys stay out of reach of the API.
func (h *SystemSettingsHandler) resolve(name string) (string, bool, bool) {
	key := "feature." + strings.TrimSpace(name)
	fallback, ok := service.DefaultFeatureSwitches()[key]
	return key, fallback, ok
}

func (h *SystemSettingsHandler) authorized(c *gin.Context) bool {
	if h.AdminToken == "" {
		return true
	}
	auth := c.GetHeader("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == h.AdminToken
}
