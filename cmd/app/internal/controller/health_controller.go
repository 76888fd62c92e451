package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"adaptive-quiz-backend/internal/db"
	"adaptive-quiz-backend/utilities"
)

type HealthController struct {
	Executor *db.QueryExecutor
}

func NewHealthController(executor *db.QueryExecutor) *HealthController {
	return &HealthController{Executor: executor}
}

func (hc *HealthController) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := hc.Executor.Ping(ctx); err != nil {
		utilities.Warn("health check: database unreachable: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
