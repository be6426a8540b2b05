package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fanecho/internal/model"
	"fanecho/internal/service"
)

type SimulationHandler struct {
	simulationService *service.SimulationService
	insightService    *service.InsightService
}

func NewSimulationHandler(simulationService *service.SimulationService, insightService *service.InsightService) *SimulationHandler {
	return &SimulationHandler{
		simulationService: simulationService,
		insightService:    insightService,
	}
}

type runSimulationRequest struct {
	DraftContent string `json:"draft_content" binding:"required"`
	PersonaSetID string `json:"persona_set_id" binding:"required"`
}

// RunSimulation 对草稿同步执行一次完整模拟
func (h *SimulationHandler) RunSimulation(c *gin.Context) {
	var req runSimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}

	result, err := h.simulationService.RunSimulation(c.Request.Context(), req.DraftContent, req.PersonaSetID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrDraftContentInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrPersonaSetNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrPersonaSetIncomplete):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	resp := gin.H{
		"simulation": result,
	}
	// 0/5 成功仍是合法终态，但要给调用方一个明确的说法
	if result.Aggregate.SuccessCount == 0 {
		resp["message"] = "所有persona模拟均失败"
	}
	c.JSON(http.StatusOK, resp)
}

// ListSimulations 分页列出历史模拟
func (h *SimulationHandler) ListSimulations(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	items, total, err := h.simulationService.ListSimulations(c.Request.Context(), page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"simulations": items,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
	})
}

// GetSimulation 获取单次模拟的完整结果
func (h *SimulationHandler) GetSimulation(c *gin.Context) {
	simulationID := c.Param("id")

	result, err := h.simulationService.GetSimulation(c.Request.Context(), simulationID)
	if err != nil {
		if errors.Is(err, service.ErrSimulationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "模拟不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"simulation": result,
	})
}

// GetPersonaDrillDown 获取单个persona在某次模拟中的反应明细
func (h *SimulationHandler) GetPersonaDrillDown(c *gin.Context) {
	simulationID := c.Param("id")
	personaID, err := strconv.ParseUint(c.Param("personaId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "persona ID无效"})
		return
	}

	drill, err := h.insightService.GetPersonaDrillDown(c.Request.Context(), simulationID, uint(personaID))
	if err != nil {
		if errors.Is(err, service.ErrSimulationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "模拟不存在"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"drill_down": drill,
	})
}
