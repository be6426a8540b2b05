package service

import (
	"fanecho/internal/config"
)

type ServiceContext struct {
	PersonaService    *PersonaService
	SimulationService *SimulationService
	InsightService    *InsightService
}

func NewServiceContext(cfg *config.Config) *ServiceContext {
	llmClient := NewLLMClient(cfg.LLM)

	return &ServiceContext{
		PersonaService:    NewPersonaService(llmClient, cfg),
		SimulationService: NewSimulationService(llmClient, cfg),
		InsightService:    NewInsightService(llmClient, cfg),
	}
}
