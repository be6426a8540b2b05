package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"fanecho/internal/config"
	"fanecho/internal/db"
	"fanecho/internal/model"

	"gorm.io/gorm"
)

var (
	ErrInsufficientData = errors.New("成功反应为零，无法生成洞察")
	ErrInsightNotFound  = errors.New("洞察不存在")
)

// 某个维度与均值的偏差超过这个值即视为离群反应
const outlierThreshold = 2.5

// InsightService 基于已终态模拟结果的第二阶段合成：痛点提炼与改进建议。
// 合成是显式触发的，不在模拟编排内自动进行。
type InsightService struct {
	gateway     LLMGateway
	taskTimeout time.Duration
}

func NewInsightService(gateway LLMGateway, cfg *config.Config) *InsightService {
	return &InsightService{gateway: gateway, taskTimeout: cfg.TaskTimeout()}
}

// InsightResult 合成产物的解码视图
type InsightResult struct {
	SimulationID     string           `json:"simulation_id"`
	PainPoints       []PainPoint      `json:"pain_points"`
	ImprovementTips  []ImprovementTip `json:"improvement_tips"`
	OverallSentiment string           `json:"overall_sentiment"`
	AvgTrust         *float64         `json:"avg_trust"`
	AvgExcitement    *float64         `json:"avg_excitement"`
	AvgBacklashRisk  *float64         `json:"avg_backlash_risk"`
	Cached           bool             `json:"cached"`
	CreatedAt        time.Time        `json:"created_at"`
}

// GenerateInsights 为一次模拟合成洞察。幂等：已有洞察直接返回缓存结果，
// 不再触发任何出站调用。成功反应为零时返回 ErrInsufficientData。
func (s *InsightService) GenerateInsights(ctx context.Context, simulationID string) (*InsightResult, error) {
	var run model.SimulationRun
	if err := db.DB.WithContext(ctx).Where("simulation_id = ?", simulationID).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSimulationNotFound, simulationID)
		}
		return nil, fmt.Errorf("查询模拟失败: %w", err)
	}

	var existing model.Insight
	err := db.DB.WithContext(ctx).Where("simulation_id = ?", simulationID).First(&existing).Error
	if err == nil {
		return decodeInsight(&existing, true)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询洞察失败: %w", err)
	}

	if run.SuccessCount == 0 {
		return nil, fmt.Errorf("%w: simulation_id=%s", ErrInsufficientData, simulationID)
	}

	var outcomes []model.ReactionOutcome
	if err := db.DB.WithContext(ctx).
		Where("run_id = ? AND status = ?", run.ID, model.OutcomeStatusSuccess).
		Order("position ASC").
		Find(&outcomes).Error; err != nil {
		return nil, fmt.Errorf("查询模拟结果失败: %w", err)
	}
	if len(outcomes) == 0 {
		return nil, fmt.Errorf("%w: simulation_id=%s", ErrInsufficientData, simulationID)
	}

	var draft model.Draft
	if err := db.DB.WithContext(ctx).First(&draft, run.DraftID).Error; err != nil {
		return nil, fmt.Errorf("查询草稿失败: %w", err)
	}

	painPoints, err := s.synthesizePainPoints(ctx, draft.Content, outcomes)
	if err != nil {
		return nil, err
	}
	tips, err := s.synthesizeImprovementTips(ctx, draft.Content, &run, outcomes, painPoints)
	if err != nil {
		return nil, err
	}

	painJSON, err := json.Marshal(painPoints)
	if err != nil {
		return nil, fmt.Errorf("痛点序列化失败: %w", err)
	}
	tipsJSON, err := json.Marshal(tips)
	if err != nil {
		return nil, fmt.Errorf("改进建议序列化失败: %w", err)
	}

	insight := model.Insight{
		SimulationID:        simulationID,
		PainPointsJSON:      string(painJSON),
		ImprovementTipsJSON: string(tipsJSON),
		OverallSentiment:    run.OverallSentiment,
		AvgTrust:            run.AvgTrust,
		AvgExcitement:       run.AvgExcitement,
		AvgBacklashRisk:     run.AvgBacklashRisk,
	}
	if err := db.DB.Create(&insight).Error; err != nil {
		// 唯一索引兜底：并发触发时后到的一方读取已落库的结果
		var raced model.Insight
		if ferr := db.DB.Where("simulation_id = ?", simulationID).First(&raced).Error; ferr == nil {
			return decodeInsight(&raced, true)
		}
		return nil, fmt.Errorf("保存洞察失败: %w", err)
	}

	log.Printf("[insight] 合成完成 simulation_id=%s 痛点=%d 建议=%d", simulationID, len(painPoints), len(tips))
	return decodeInsight(&insight, false)
}

func (s *InsightService) synthesizePainPoints(ctx context.Context, draftContent string, outcomes []model.ReactionOutcome) ([]PainPoint, error) {
	type feedbackEntry struct {
		PersonaName       string `json:"persona_name"`
		TrustScore        int    `json:"trust_score"`
		ExcitementScore   int    `json:"excitement_score"`
		BacklashRiskScore int    `json:"backlash_risk_score"`
		InternalMonologue string `json:"internal_monologue"`
		PublicComment     string `json:"public_comment"`
		Reasoning         string `json:"reasoning"`
	}
	// 提示词承诺反馈按 backlash 分数降序，最刺眼的反应排最前
	sorted := make([]model.ReactionOutcome, len(outcomes))
	copy(sorted, outcomes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return *sorted[i].BacklashRiskScore > *sorted[j].BacklashRiskScore
	})

	feedback := make([]feedbackEntry, 0, len(sorted))
	for _, o := range sorted {
		feedback = append(feedback, feedbackEntry{
			PersonaName:       o.PersonaName,
			TrustScore:        *o.TrustScore,
			ExcitementScore:   *o.ExcitementScore,
			BacklashRiskScore: *o.BacklashRiskScore,
			InternalMonologue: o.InternalMonologue,
			PublicComment:     o.PublicComment,
			Reasoning:         o.Reasoning,
		})
	}
	feedbackJSON, err := json.MarshalIndent(feedback, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("反馈序列化失败: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.taskTimeout)
	defer cancel()

	req := ChatRequest{
		Messages: []ChatMessage{
			{Role: "system", Content: painPointSystemPrompt},
			{Role: "user", Content: buildPainPointPrompt(draftContent, string(feedbackJSON))},
		},
		MaxTokens: 1500,
	}
	resp, gerr := invokeWithRetry(callCtx, s.gateway, req)
	if gerr != nil {
		return nil, fmt.Errorf("痛点合成失败: %w", gerr)
	}
	painPoints, err := parsePainPoints(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("痛点合成结果无效: %w", err)
	}
	return painPoints, nil
}

func (s *InsightService) synthesizeImprovementTips(ctx context.Context, draftContent string, run *model.SimulationRun, outcomes []model.ReactionOutcome, painPoints []PainPoint) ([]ImprovementTip, error) {
	analytics := map[string]any{
		"avg_trust":         run.AvgTrust,
		"avg_excitement":    run.AvgExcitement,
		"avg_backlash_risk": run.AvgBacklashRisk,
		"success_count":     run.SuccessCount,
		"failure_count":     run.FailureCount,
		"overall_sentiment": run.OverallSentiment,
	}
	analyticsJSON, err := json.MarshalIndent(analytics, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("统计序列化失败: %w", err)
	}

	type summaryEntry struct {
		PersonaName   string `json:"persona_name"`
		PublicComment string `json:"public_comment"`
	}
	summaries := make([]summaryEntry, 0, len(outcomes))
	for _, o := range outcomes {
		summaries = append(summaries, summaryEntry{PersonaName: o.PersonaName, PublicComment: o.PublicComment})
	}
	summariesJSON, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("摘要序列化失败: %w", err)
	}

	painJSON, err := json.MarshalIndent(painPoints, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("痛点序列化失败: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.taskTimeout)
	defer cancel()

	req := ChatRequest{
		Messages: []ChatMessage{
			{Role: "system", Content: improvementTipsSystemPrompt},
			{Role: "user", Content: buildImprovementTipsPrompt(draftContent, string(analyticsJSON), string(summariesJSON), string(painJSON))},
		},
		MaxTokens: 1500,
	}
	resp, gerr := invokeWithRetry(callCtx, s.gateway, req)
	if gerr != nil {
		return nil, fmt.Errorf("改进建议合成失败: %w", gerr)
	}
	tips, err := parseImprovementTips(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("改进建议合成结果无效: %w", err)
	}
	return tips, nil
}

// GetInsight 读取已合成的洞察，未合成返回 ErrInsightNotFound
func (s *InsightService) GetInsight(ctx context.Context, simulationID string) (*InsightResult, error) {
	var insight model.Insight
	if err := db.DB.WithContext(ctx).Where("simulation_id = ?", simulationID).First(&insight).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInsightNotFound, simulationID)
		}
		return nil, fmt.Errorf("查询洞察失败: %w", err)
	}
	return decodeInsight(&insight, true)
}

// GetInsightByDraft 按草稿定位洞察：取该草稿首次模拟对应的洞察
func (s *InsightService) GetInsightByDraft(ctx context.Context, draftID uint) (*InsightResult, error) {
	var run model.SimulationRun
	if err := db.DB.WithContext(ctx).
		Where("draft_id = ?", draftID).
		Order("id ASC").
		First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: draft_id=%d", ErrSimulationNotFound, draftID)
		}
		return nil, fmt.Errorf("查询模拟失败: %w", err)
	}
	return s.GetInsight(ctx, run.SimulationID)
}

// InsightStatus 洞察就绪情况：是否已合成、数据是否足够合成
type InsightStatus struct {
	SimulationID   string `json:"simulation_id"`
	Generated      bool   `json:"generated"`
	SufficientData bool   `json:"sufficient_data"`
	SuccessCount   int    `json:"success_count"`
}

// GetStatus 查询某次模拟的洞察就绪状态
func (s *InsightService) GetStatus(ctx context.Context, simulationID string) (*InsightStatus, error) {
	var run model.SimulationRun
	if err := db.DB.WithContext(ctx).Where("simulation_id = ?", simulationID).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSimulationNotFound, simulationID)
		}
		return nil, fmt.Errorf("查询模拟失败: %w", err)
	}

	var count int64
	if err := db.DB.WithContext(ctx).Model(&model.Insight{}).
		Where("simulation_id = ?", simulationID).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("查询洞察失败: %w", err)
	}

	return &InsightStatus{
		SimulationID:   simulationID,
		Generated:      count > 0,
		SufficientData: run.SuccessCount > 0,
		SuccessCount:   run.SuccessCount,
	}, nil
}

// DimensionDelta 单个评分维度与集合均值的偏差
type DimensionDelta struct {
	Score     int     `json:"score"`
	Average   float64 `json:"average"`
	Deviation float64 `json:"deviation"`
	Outlier   bool    `json:"outlier"`
}

// PersonaDrillDown 单个 persona 在一次模拟中的反应明细与离群分析
type PersonaDrillDown struct {
	SimulationID      string          `json:"simulation_id"`
	PersonaID         uint            `json:"persona_id"`
	PersonaName       string          `json:"persona_name"`
	Archetype         string          `json:"archetype"`
	LoyaltyLevel      int             `json:"loyalty_level"`
	CoreValues        []string        `json:"core_values"`
	Trust             *DimensionDelta `json:"trust"`
	Excitement        *DimensionDelta `json:"excitement"`
	BacklashRisk      *DimensionDelta `json:"backlash_risk"`
	InternalMonologue string          `json:"internal_monologue"`
	PublicComment     string          `json:"public_comment"`
	Reasoning         string          `json:"reasoning"`
	IsOutlier         bool            `json:"is_outlier"`
}

// GetPersonaDrillDown 定位单个 persona 的反应并给出离群分析。
// 失败的反应没有评分，偏差维度为空。
func (s *InsightService) GetPersonaDrillDown(ctx context.Context, simulationID string, personaID uint) (*PersonaDrillDown, error) {
	var run model.SimulationRun
	if err := db.DB.WithContext(ctx).Where("simulation_id = ?", simulationID).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSimulationNotFound, simulationID)
		}
		return nil, fmt.Errorf("查询模拟失败: %w", err)
	}

	var outcome model.ReactionOutcome
	if err := db.DB.WithContext(ctx).
		Where("run_id = ? AND persona_id = ?", run.ID, personaID).
		First(&outcome).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("该模拟中不存在此 persona 的反应: simulation_id=%s persona_id=%d", simulationID, personaID)
		}
		return nil, fmt.Errorf("查询反应失败: %w", err)
	}

	var persona model.Persona
	if err := db.DB.WithContext(ctx).First(&persona, personaID).Error; err != nil {
		return nil, fmt.Errorf("查询persona失败: %w", err)
	}

	drill := &PersonaDrillDown{
		SimulationID:      simulationID,
		PersonaID:         persona.ID,
		PersonaName:       persona.Name,
		Archetype:         persona.Archetype,
		LoyaltyLevel:      persona.LoyaltyLevel,
		CoreValues:        persona.CoreValues(),
		InternalMonologue: outcome.InternalMonologue,
		PublicComment:     outcome.PublicComment,
		Reasoning:         outcome.Reasoning,
	}

	if outcome.Succeeded() {
		drill.Trust = dimensionDelta(*outcome.TrustScore, run.AvgTrust)
		drill.Excitement = dimensionDelta(*outcome.ExcitementScore, run.AvgExcitement)
		drill.BacklashRisk = dimensionDelta(*outcome.BacklashRiskScore, run.AvgBacklashRisk)
		drill.IsOutlier = (drill.Trust != nil && drill.Trust.Outlier) ||
			(drill.Excitement != nil && drill.Excitement.Outlier) ||
			(drill.BacklashRisk != nil && drill.BacklashRisk.Outlier)
	}
	return drill, nil
}

func dimensionDelta(score int, avg *float64) *DimensionDelta {
	if avg == nil {
		return nil
	}
	deviation := math.Round((float64(score)-*avg)*100) / 100
	return &DimensionDelta{
		Score:     score,
		Average:   *avg,
		Deviation: deviation,
		Outlier:   math.Abs(deviation) > outlierThreshold,
	}
}

// SentimentTrendPoint 趋势曲线上的一个点（一次模拟）
type SentimentTrendPoint struct {
	SimulationID     string    `json:"simulation_id"`
	CompletedAt      time.Time `json:"completed_at"`
	OverallSentiment string    `json:"overall_sentiment"`
	AvgTrust         *float64  `json:"avg_trust"`
	AvgExcitement    *float64  `json:"avg_excitement"`
	AvgBacklashRisk  *float64  `json:"avg_backlash_risk"`
}

// SentimentTrends 近期模拟的情绪走向汇总
type SentimentTrends struct {
	Points        []SentimentTrendPoint `json:"points"`
	PositiveCount int                   `json:"positive_count"`
	NeutralCount  int                   `json:"neutral_count"`
	NegativeCount int                   `json:"negative_count"`
}

// GetSentimentTrends 返回最近 limit 次已完成模拟的情绪趋势（旧到新）。
// personaSetID 非空时只看同一 persona 集合的历史，跨集合的分数不可比。
func (s *InsightService) GetSentimentTrends(ctx context.Context, personaSetID string, limit int) (*SentimentTrends, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := db.DB.WithContext(ctx).Where("status = ?", model.RunStatusCompleted)
	if personaSetID != "" {
		query = query.Where("persona_set_id = ?", personaSetID)
	}

	var runs []model.SimulationRun
	if err := query.
		Order("completed_at DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("查询模拟列表失败: %w", err)
	}

	trends := &SentimentTrends{Points: make([]SentimentTrendPoint, 0, len(runs))}
	for i := len(runs) - 1; i >= 0; i-- {
		run := runs[i]
		trends.Points = append(trends.Points, SentimentTrendPoint{
			SimulationID:     run.SimulationID,
			CompletedAt:      run.CompletedAt,
			OverallSentiment: run.OverallSentiment,
			AvgTrust:         run.AvgTrust,
			AvgExcitement:    run.AvgExcitement,
			AvgBacklashRisk:  run.AvgBacklashRisk,
		})
		switch run.OverallSentiment {
		case SentimentPositive:
			trends.PositiveCount++
		case SentimentNegative:
			trends.NegativeCount++
		default:
			trends.NeutralCount++
		}
	}
	return trends, nil
}

func decodeInsight(insight *model.Insight, cached bool) (*InsightResult, error) {
	var painPoints []PainPoint
	if err := json.Unmarshal([]byte(insight.PainPointsJSON), &painPoints); err != nil {
		return nil, fmt.Errorf("痛点反序列化失败: %w", err)
	}
	var tips []ImprovementTip
	if err := json.Unmarshal([]byte(insight.ImprovementTipsJSON), &tips); err != nil {
		return nil, fmt.Errorf("改进建议反序列化失败: %w", err)
	}
	return &InsightResult{
		SimulationID:     insight.SimulationID,
		PainPoints:       painPoints,
		ImprovementTips:  tips,
		OverallSentiment: insight.OverallSentiment,
		AvgTrust:         insight.AvgTrust,
		AvgExcitement:    insight.AvgExcitement,
		AvgBacklashRisk:  insight.AvgBacklashRisk,
		Cached:           cached,
		CreatedAt:        insight.CreatedAt,
	}, nil
}
