package router

import (
	"fanecho/internal/handler"
	"fanecho/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRouter(svc *service.ServiceContext) *gin.Engine {
	r := gin.Default()

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// 初始化handlers
	healthHandler := handler.NewHealthHandler()
	personaHandler := handler.NewPersonaHandler(svc.PersonaService)
	simulationHandler := handler.NewSimulationHandler(svc.SimulationService, svc.InsightService)
	insightHandler := handler.NewInsightHandler(svc.InsightService)

	// API路由
	api := r.Group("/api")
	{
		api.GET("/health", healthHandler.Health)

		// persona相关
		personas := api.Group("/personas")
		{
			personas.POST("/generate", personaHandler.GeneratePersonas)
			personas.GET("", personaHandler.ListPersonaSets)
			personas.GET("/:setId", personaHandler.GetPersonaSet)
			personas.DELETE("/:setId", personaHandler.DeletePersonaSet)
		}

		// 模拟相关
		simulations := api.Group("/simulations")
		{
			simulations.POST("/run", simulationHandler.RunSimulation)
			simulations.GET("", simulationHandler.ListSimulations)
			simulations.GET("/:id", simulationHandler.GetSimulation)
			simulations.GET("/:id/personas/:personaId", simulationHandler.GetPersonaDrillDown)
		}

		// 洞察相关
		insights := api.Group("/insights")
		{
			insights.POST("/generate/:simulationId", insightHandler.GenerateInsights)
			insights.GET("/:simulationId", insightHandler.GetInsight)
			insights.GET("/:simulationId/status", insightHandler.GetInsightStatus)
		}

		// 草稿维度的洞察查询
		api.GET("/drafts/:draftId/insights", insightHandler.GetInsightByDraft)

		// 趋势相关
		api.GET("/trends/sentiment", insightHandler.GetSentimentTrends)
	}

	return r
}
