package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fanecho/internal/db"
)

type HealthHandler struct {
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Health 健康检查：进程存活 + 数据库连通
func (h *HealthHandler) Health(c *gin.Context) {
	if err := db.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
