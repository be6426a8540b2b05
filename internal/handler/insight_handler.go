package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fanecho/internal/service"
)

type InsightHandler struct {
	insightService *service.InsightService
}

func NewInsightHandler(insightService *service.InsightService) *InsightHandler {
	return &InsightHandler{insightService: insightService}
}

// GenerateInsights 为一次已完成的模拟合成洞察（幂等）
func (h *InsightHandler) GenerateInsights(c *gin.Context) {
	simulationID := c.Param("simulationId")

	result, err := h.insightService.GenerateInsights(c.Request.Context(), simulationID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSimulationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "模拟不存在"})
		case errors.Is(err, service.ErrInsufficientData):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"insight": result,
	})
}

// GetInsight 获取已合成的洞察
func (h *InsightHandler) GetInsight(c *gin.Context) {
	simulationID := c.Param("simulationId")

	result, err := h.insightService.GetInsight(c.Request.Context(), simulationID)
	if err != nil {
		if errors.Is(err, service.ErrInsightNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "洞察不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"insight": result,
	})
}

// GetInsightByDraft 按草稿查询洞察
func (h *InsightHandler) GetInsightByDraft(c *gin.Context) {
	draftID, err := strconv.ParseUint(c.Param("draftId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "草稿ID无效"})
		return
	}

	result, err := h.insightService.GetInsightByDraft(c.Request.Context(), uint(draftID))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSimulationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "该草稿没有模拟记录"})
		case errors.Is(err, service.ErrInsightNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "洞察不存在"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"insight": result,
	})
}

// GetInsightStatus 查询洞察就绪状态
func (h *InsightHandler) GetInsightStatus(c *gin.Context) {
	simulationID := c.Param("simulationId")

	status, err := h.insightService.GetStatus(c.Request.Context(), simulationID)
	if err != nil {
		if errors.Is(err, service.ErrSimulationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "模拟不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": status,
	})
}

// GetSentimentTrends 近期模拟的情绪趋势，可按 persona 集合过滤
func (h *InsightHandler) GetSentimentTrends(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	personaSetID := c.Query("persona_set_id")

	trends, err := h.insightService.GetSentimentTrends(c.Request.Context(), personaSetID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trends": trends,
	})
}
