package handlers

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/database/models"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/internal/websocket"
	apperrors "github.com/kpiwatch-ops/kpiwatch-backend-go/pkg/errors"
	"github.com/kpiwatch-ops/kpiwatch-backend-go/pkg/utils"
)

// AlertRuleRequest is the API payload for creating or updating a rule.
type AlertRuleRequest struct {
	ScopeID              string   `json:"scope_id" binding:"required"`
	Name                 string   `json:"name" binding:"required"`
	MetricKey            string   `json:"metric_key" binding:"required"`
	Operator             string   `json:"operator" binding:"required"`
	WarningThreshold     *float64 `json:"warning_threshold"`
	CriticalThreshold    *float64 `json:"critical_threshold"`
	CheckIntervalSeconds int      `json:"check_interval_seconds"`
	CooldownSeconds      int      `json:"cooldown_seconds"`
	BaselineValue        *float64 `json:"baseline_value"`
	NotifyOnWarning      *bool    `json:"notify_on_warning"`
	NotifyOnCritical     *bool    `json:"notify_on_critical"`
	NotifyOnRecovery     *bool    `json:"notify_on_recovery"`
	RecipientRoles       string   `json:"recipient_roles"`
	EmailList            string   `json:"email_list"`
	InternalEnabled      *bool    `json:"internal_enabled"`
	EmailEnabled         *bool    `json:"email_enabled"`
	Enabled              *bool    `json:"enabled"`
}

func (req *AlertRuleRequest) toModel() *models.AlertRule {
	rule := &models.AlertRule{
		ScopeID:              req.ScopeID,
		Name:                 req.Name,
		MetricKey:            req.MetricKey,
		Operator:             models.Operator(req.Operator),
		CheckIntervalSeconds: req.CheckIntervalSeconds,
		CooldownSeconds:      req.CooldownSeconds,
		RecipientRoles:       req.RecipientRoles,
		EmailList:            req.EmailList,
		NotifyOnWarning:      boolOr(req.NotifyOnWarning, true),
		NotifyOnCritical:     boolOr(req.NotifyOnCritical, true),
		NotifyOnRecovery:     boolOr(req.NotifyOnRecovery, true),
		InternalEnabled:      boolOr(req.InternalEnabled, true),
		EmailEnabled:         boolOr(req.EmailEnabled, false),
		Enabled:              boolOr(req.Enabled, true),
	}
	if req.CheckIntervalSeconds == 0 {
		rule.CheckIntervalSeconds = 900
	}
	if req.WarningThreshold != nil {
		rule.WarningThreshold = sql.NullFloat64{Float64: *req.WarningThreshold, Valid: true}
	}
	if req.CriticalThreshold != nil {
		rule.CriticalThreshold = sql.NullFloat64{Float64: *req.CriticalThreshold, Valid: true}
	}
	if req.BaselineValue != nil {
		rule.BaselineValue = sql.NullFloat64{Float64: *req.BaselineValue, Valid: true}
	}
	return rule
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// CreateAlertRule creates a new alert rule
func (h *Handlers) CreateAlertRule(c *gin.Context) {
	var req AlertRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}

	rule := req.toModel()
	if err := h.repos.Rule.Create(c.Request.Context(), rule); err != nil {
		utils.SendAppError(c, apperrors.WithDetails(apperrors.ErrBadRequest, err.Error()))
		return
	}

	utils.SendSuccess(c, rule)
}

// GetAlertRules lists the rules of a scope, optionally filtered by metric key
func (h *Handlers) GetAlertRules(c *gin.Context) {
	scopeID := c.Query("scope_id")
	if scopeID == "" {
		utils.SendError(c, http.StatusBadRequest, "scope_id is required")
		return
	}

	var (
		rules []*models.AlertRule
		err   error
	)
	if metricKey := c.Query("metric_key"); metricKey != "" {
		rules, err = h.repos.Rule.GetByScopeAndMetric(c.Request.Context(), scopeID, metricKey)
	} else {
		rules, err = h.repos.Rule.GetByScope(c.Request.Context(), scopeID)
	}
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	utils.SendSuccess(c, rules)
}

// GetAlertRule retrieves one rule
func (h *Handlers) GetAlertRule(c *gin.Context) {
	rule, err := h.repos.Rule.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.SendAppError(c, apperrors.WithDetails(apperrors.ErrNotFound, err.Error()))
		return
	}

	utils.SendSuccess(c, rule)
}

// UpdateAlertRule replaces a rule's configuration
func (h *Handlers) UpdateAlertRule(c *gin.Context) {
	var req AlertRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}

	rule := req.toModel()
	rule.ID = c.Param("id")
	if err := h.repos.Rule.Update(c.Request.Context(), rule); err != nil {
		utils.SendAppError(c, apperrors.WithDetails(apperrors.ErrBadRequest, err.Error()))
		return
	}

	utils.SendSuccess(c, rule)
}

// DeleteAlertRule removes a rule
func (h *Handlers) DeleteAlertRule(c *gin.Context) {
	if err := h.repos.Rule.Delete(c.Request.Context(), c.Param("id")); err != nil {
		utils.SendAppError(c, apperrors.WithDetails(apperrors.ErrNotFound, err.Error()))
		return
	}

	utils.SendSuccess(c, gin.H{"deleted": true})
}

// GetAlertHistory lists the history entries of a rule
func (h *Handlers) GetAlertHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := h.repos.History.GetByRule(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	utils.SendSuccess(c, entries)
}

// EvaluateRequest carries the current values for a scope's metrics.
type EvaluateRequest struct {
	ScopeID string             `json:"scope_id" binding:"required"`
	Values  map[string]float64 `json:"values" binding:"required"`
}

// EvaluateAlerts evaluates all due rules of a scope against current values
func (h *Handlers) EvaluateAlerts(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}

	outcomes, err := h.service.EvaluateDueAlerts(c.Request.Context(), req.ScopeID, req.Values)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	for _, outcome := range outcomes {
		if outcome.Outcome != nil && outcome.Outcome.Changed {
			h.wsHub.BroadcastToAll(websocket.Message{
				Type: "alert_status_changed",
				Data: gin.H{
					"scope_id": req.ScopeID,
					"outcome":  outcome,
				},
			})
		}
	}

	utils.SendSuccess(c, outcomes)
}

// GetStatusSummary returns the aggregated alert state of a scope
func (h *Handlers) GetStatusSummary(c *gin.Context) {
	scopeID := c.Query("scope_id")
	if scopeID == "" {
		utils.SendError(c, http.StatusBadRequest, "scope_id is required")
		return
	}

	summary, err := h.service.GetStatusSummary(c.Request.Context(), scopeID)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	utils.SendSuccess(c, summary)
}
