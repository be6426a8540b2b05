package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fanecho/internal/service"
)

type PersonaHandler struct {
	personaService *service.PersonaService
}

func NewPersonaHandler(personaService *service.PersonaService) *PersonaHandler {
	return &PersonaHandler{personaService: personaService}
}

type generatePersonasRequest struct {
	AudienceDescription string `json:"audience_description" binding:"required"`
}

// GeneratePersonas 根据受众描述生成一组persona
func (h *PersonaHandler) GeneratePersonas(c *gin.Context) {
	var req generatePersonasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "参数错误: " + err.Error()})
		return
	}

	set, err := h.personaService.GeneratePersonas(c.Request.Context(), req.AudienceDescription)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"persona_set": set,
	})
}

// ListPersonaSets 列出所有persona集合
func (h *PersonaHandler) ListPersonaSets(c *gin.Context) {
	sets, err := h.personaService.ListPersonaSets(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"persona_sets": sets,
		"total":        len(sets),
	})
}

// GetPersonaSet 获取单个persona集合
func (h *PersonaHandler) GetPersonaSet(c *gin.Context) {
	setID := c.Param("setId")

	set, err := h.personaService.GetPersonaSet(c.Request.Context(), setID)
	if err != nil {
		if errors.Is(err, service.ErrPersonaSetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "persona集合不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"persona_set": set,
	})
}

// DeletePersonaSet 删除persona集合
func (h *PersonaHandler) DeletePersonaSet(c *gin.Context) {
	setID := c.Param("setId")

	if err := h.personaService.DeletePersonaSet(c.Request.Context(), setID); err != nil {
		if errors.Is(err, service.ErrPersonaSetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "persona集合不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "删除成功",
	})
}
