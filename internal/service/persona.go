package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"fanecho/internal/config"
	"fanecho/internal/db"
	"fanecho/internal/model"

	"github.com/google/uuid"
)

// PersonaService persona 集合的生成与管理
type PersonaService struct {
	gateway     LLMGateway
	taskTimeout time.Duration
	perSet      int
}

func NewPersonaService(gateway LLMGateway, cfg *config.Config) *PersonaService {
	return &PersonaService{
		gateway:     gateway,
		taskTimeout: cfg.TaskTimeout(),
		perSet:      cfg.Simulation.PersonasPerSet,
	}
}

// PersonaSet 一组 persona 及其集合元数据
type PersonaSet struct {
	SetID               string          `json:"set_id"`
	AudienceDescription string          `json:"audience_description"`
	Personas            []model.Persona `json:"personas"`
	CreatedAt           time.Time       `json:"created_at"`
}

// GeneratePersonas 根据受众描述生成一整组 persona。
// 生成结果必须恰好 perSet 个且逐个通过校验，否则整组拒绝、不落库。
func (s *PersonaService) GeneratePersonas(ctx context.Context, audienceDescription string) (*PersonaSet, error) {
	if audienceDescription == "" {
		return nil, errors.New("受众描述不能为空")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.taskTimeout)
	defer cancel()

	req := ChatRequest{
		Messages: []ChatMessage{
			{Role: "system", Content: personaGenerationSystemPrompt},
			{Role: "user", Content: buildPersonaGenerationPrompt(audienceDescription)},
		},
		MaxTokens: 2000,
	}
	resp, gerr := invokeWithRetry(callCtx, s.gateway, req)
	if gerr != nil {
		return nil, fmt.Errorf("生成persona失败: %w", gerr)
	}

	generated, err := parsePersonaGeneration(resp.Content, s.perSet)
	if err != nil {
		return nil, fmt.Errorf("persona 生成结果无效: %w", err)
	}

	setID := uuid.New().String()
	personas := make([]model.Persona, 0, len(generated))
	for _, g := range generated {
		p := model.Persona{
			SetID:               setID,
			AudienceDescription: audienceDescription,
			Name:                g.Name,
			Archetype:           g.Archetype,
			LoyaltyLevel:        g.LoyaltyLevel,
		}
		if err := p.SetCoreValues(g.CoreValues); err != nil {
			return nil, fmt.Errorf("persona 核心价值观序列化失败: %w", err)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("persona 校验失败: %w", err)
		}
		personas = append(personas, p)
	}

	if err := db.DB.Create(&personas).Error; err != nil {
		return nil, fmt.Errorf("保存persona集合失败: %w", err)
	}

	log.Printf("[persona] 生成 persona 集合 set_id=%s 数量=%d", setID, len(personas))
	return &PersonaSet{
		SetID:               setID,
		AudienceDescription: audienceDescription,
		Personas:            personas,
		CreatedAt:           personas[0].CreatedAt,
	}, nil
}

// GetPersonaSet 按集合 ID 读取整组 persona
func (s *PersonaService) GetPersonaSet(ctx context.Context, setID string) (*PersonaSet, error) {
	var personas []model.Persona
	if err := db.DB.WithContext(ctx).
		Where("set_id = ?", setID).
		Order("id ASC").
		Find(&personas).Error; err != nil {
		return nil, fmt.Errorf("查询persona集合失败: %w", err)
	}
	if len(personas) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrPersonaSetNotFound, setID)
	}
	return &PersonaSet{
		SetID:               setID,
		AudienceDescription: personas[0].AudienceDescription,
		Personas:            personas,
		CreatedAt:           personas[0].CreatedAt,
	}, nil
}

// ListPersonaSets 按集合分组列出全部 persona（新到旧）
func (s *PersonaService) ListPersonaSets(ctx context.Context) ([]PersonaSet, error) {
	var personas []model.Persona
	if err := db.DB.WithContext(ctx).
		Order("created_at DESC, id ASC").
		Find(&personas).Error; err != nil {
		return nil, fmt.Errorf("查询persona列表失败: %w", err)
	}

	order := make([]string, 0)
	grouped := make(map[string][]model.Persona)
	for _, p := range personas {
		if _, ok := grouped[p.SetID]; !ok {
			order = append(order, p.SetID)
		}
		grouped[p.SetID] = append(grouped[p.SetID], p)
	}

	sets := make([]PersonaSet, 0, len(order))
	for _, setID := range order {
		members := grouped[setID]
		sets = append(sets, PersonaSet{
			SetID:               setID,
			AudienceDescription: members[0].AudienceDescription,
			Personas:            members,
			CreatedAt:           members[0].CreatedAt,
		})
	}
	return sets, nil
}

// DeletePersonaSet 删除整组 persona
func (s *PersonaService) DeletePersonaSet(ctx context.Context, setID string) error {
	result := db.DB.WithContext(ctx).Where("set_id = ?", setID).Delete(&model.Persona{})
	if result.Error != nil {
		return fmt.Errorf("删除persona集合失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrPersonaSetNotFound, setID)
	}
	log.Printf("[persona] 删除 persona 集合 set_id=%s 数量=%d", setID, result.RowsAffected)
	return nil
}
