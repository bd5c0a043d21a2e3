package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stayloft/service-booking/internal/jobs"
)

// AdminHandler exposes operator endpoints for the model-training gate and
// the live admin feed.
type AdminHandler struct {
	gate   *jobs.TrainingGate
	logger *zap.Logger
}

// NewAdminHandler creates the admin endpoint handler.
func NewAdminHandler(gate *jobs.TrainingGate, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{gate: gate, logger: logger}
}

// RegisterRoutes mounts the admin endpoints.
func (h *AdminHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/admin/train", h.TriggerTraining)
	r.GET("/admin/training-status", h.TrainingStatus)
}

// TriggerTraining starts a manual training run. A run below the
// interaction threshold is a 400 carrying the skip reason; a run that is
// already executing is a 409.
func (h *AdminHandler) TriggerTraining(c *gin.Context) {
	result, err := h.gate.Evaluate(c.Request.Context(), jobs.TriggerManual)
	if err != nil {
		if errors.Is(err, jobs.ErrTrainingInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "training run already in progress"})
			return
		}
		h.logger.Error("manual training trigger failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "training run failed"})
		return
	}

	if !result.Started {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":        result.SkipReason,
			"interactions": result.Interactions,
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

// TrainingStatus reports whether a run is executing and the last outcome.
func (h *AdminHandler) TrainingStatus(c *gin.Context) {
	running, latest, err := h.gate.Status(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to load training status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load training status"})
		return
	}

	resp := gin.H{"running": running}
	if latest != nil {
		resp["last_run"] = gin.H{
			"trigger":      latest.Trigger,
			"interactions": latest.Interactions,
			"succeeded":    latest.Succeeded,
			"started_at":   latest.StartedAt,
			"finished_at":  latest.FinishedAt,
		}
	}
	c.JSON(http.StatusOK, resp)
}
