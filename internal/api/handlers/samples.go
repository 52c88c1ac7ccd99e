package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/core/series"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/pkg/utils"
)

// RecordSampleRequest is the API payload for ingesting one metric observation.
type RecordSampleRequest struct {
	ScopeID    string  `json:"scope_id" binding:"required"`
	MetricKey  string  `json:"metric_key" binding:"required"`
	Value      float64 `json:"value"`
	Label      string  `json:"label"`
	RowCount   *int64  `json:"row_count"`
	RecordedBy string  `json:"recorded_by"`
}

// RecordSample ingests a metric observation through the series store
func (h *Handlers) RecordSample(c *gin.Context) {
	var req RecordSampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.RecordMetric(c.Request.Context(), req.ScopeID, req.MetricKey, req.Value, series.Options{
		Label:      req.Label,
		RowCount:   req.RowCount,
		RecordedBy: req.RecordedBy,
	})
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	utils.SendSuccess(c, result)
}

// GetSampleHistory returns the retained samples of a series, oldest first
func (h *Handlers) GetSampleHistory(c *gin.Context) {
	scopeID, metricKey, ok := seriesParams(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))

	samples, err := h.store.History(c.Request.Context(), scopeID, metricKey, limit)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	utils.SendSuccessWithMeta(c, samples, gin.H{"count": len(samples), "limit": limit})
}

// GetSampleTrend compares a current value against the latest stored sample
func (h *Handlers) GetSampleTrend(c *gin.Context) {
	scopeID, metricKey, ok := seriesParams(c)
	if !ok {
		return
	}

	value, err := strconv.ParseFloat(c.Query("value"), 64)
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, "value must be a number")
		return
	}

	trend, err := h.store.ComputeTrend(c.Request.Context(), scopeID, metricKey, value)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	utils.SendSuccess(c, trend)
}

// GetSampleStatistics aggregates the retained samples of a series
func (h *Handlers) GetSampleStatistics(c *gin.Context) {
	scopeID, metricKey, ok := seriesParams(c)
	if !ok {
		return
	}

	stats, err := h.store.Statistics(c.Request.Context(), scopeID, metricKey)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	utils.SendSuccess(c, stats)
}

func seriesParams(c *gin.Context) (string, string, bool) {
	scopeID := c.Query("scope_id")
	metricKey := c.Query("metric_key")
	if scopeID == "" || metricKey == "" {
		utils.SendError(c, http.StatusBadRequest, "scope_id and metric_key are required")
		return "", "", false
	}
	return scopeID, metricKey, true
}
