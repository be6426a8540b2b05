package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"fanecho/internal/config"
	"fanecho/internal/db"
	"fanecho/internal/model"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"
)

var (
	// 前置条件失败：在任何任务启动之前就返回给调用方
	ErrPersonaSetNotFound   = errors.New("persona 集合不存在")
	ErrPersonaSetIncomplete = errors.New("persona 集合不完整")
	ErrSimulationNotFound   = errors.New("模拟不存在")
)

// SimulationService 并行模拟编排器：对一个草稿扇出整个 persona 集合的
// Reaction 任务，受并发上限和全局截止时间约束，保证无论单个任务怎么失败，
// 结果集合始终完整（每个 persona 恰好一个终态）
type SimulationService struct {
	gateway LLMGateway

	globalDeadline time.Duration
	taskTimeout    time.Duration
	maxConcurrency int
	personasPerSet int
}

func NewSimulationService(gateway LLMGateway, cfg *config.Config) *SimulationService {
	return &SimulationService{
		gateway:        gateway,
		globalDeadline: cfg.GlobalDeadline(),
		taskTimeout:    cfg.TaskTimeout(),
		maxConcurrency: cfg.Simulation.MaxConcurrency,
		personasPerSet: cfg.Simulation.PersonasPerSet,
	}
}

// SimulationResult 一次编排的完整产出
type SimulationResult struct {
	Run       model.SimulationRun      `json:"run"`
	Outcomes  []model.ReactionOutcome  `json:"outcomes"`
	Aggregate AggregateSummary         `json:"aggregate"`
}

// RunSimulation 同步执行一次完整模拟，最多阻塞到全局截止时间。
// 个别任务失败不是编排器错误：0/5 成功的 run 也是合法终态。
func (s *SimulationService) RunSimulation(ctx context.Context, draftContent, personaSetID string) (*SimulationResult, error) {
	if err := model.ValidateDraftContent(draftContent); err != nil {
		return nil, err
	}

	// persona 集合查不到/不完整属于前置条件失败，任何任务都不会启动
	var personas []model.Persona
	if err := db.DB.WithContext(ctx).
		Where("set_id = ?", personaSetID).
		Order("id ASC").
		Find(&personas).Error; err != nil {
		return nil, fmt.Errorf("查询 persona 集合失败: %w", err)
	}
	if len(personas) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrPersonaSetNotFound, personaSetID)
	}
	if len(personas) != s.personasPerSet {
		return nil, fmt.Errorf("%w: 期望 %d 个，实际 %d 个", ErrPersonaSetIncomplete, s.personasPerSet, len(personas))
	}

	startedAt := time.Now()

	draft := &model.Draft{Content: draftContent, PersonaSetID: personaSetID}
	if err := db.DB.Create(draft).Error; err != nil {
		return nil, fmt.Errorf("保存草稿失败: %w", err)
	}

	run := &model.SimulationRun{
		SimulationID: uuid.New().String(),
		DraftID:      draft.ID,
		PersonaSetID: personaSetID,
		Status:       model.RunStatusRunning,
		StartedAt:    startedAt,
	}
	if err := db.DB.Create(run).Error; err != nil {
		return nil, fmt.Errorf("创建模拟run失败: %w", err)
	}

	log.Printf("[simulation] 开始模拟 simulation_id=%s persona_set=%s personas=%d", run.SimulationID, personaSetID, len(personas))

	outcomes := s.runParallelReactions(ctx, personas, draftContent)
	for i := range outcomes {
		outcomes[i].RunID = run.ID
		outcomes[i].DraftID = draft.ID
	}

	aggregate := ComputeAggregate(outcomes)

	completedAt := time.Now()
	run.Status = model.RunStatusCompleted
	run.AvgTrust = aggregate.AvgTrust
	run.AvgExcitement = aggregate.AvgExcitement
	run.AvgBacklashRisk = aggregate.AvgBacklashRisk
	run.SuccessCount = aggregate.SuccessCount
	run.FailureCount = aggregate.FailureCount
	run.OverallSentiment = aggregate.OverallSentiment
	run.CompletedAt = completedAt
	run.DurationSeconds = math.Round(completedAt.Sub(startedAt).Seconds()*100) / 100

	// 终态一次性落库：run + 全部 outcome，不按任务增量写
	if err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&outcomes).Error; err != nil {
			return err
		}
		return tx.Save(run).Error
	}); err != nil {
		return nil, fmt.Errorf("保存模拟结果失败: %w", err)
	}

	log.Printf("[simulation] 模拟完成 simulation_id=%s 耗时=%.2fs 成功=%d/%d",
		run.SimulationID, run.DurationSeconds, aggregate.SuccessCount, len(outcomes))

	return &SimulationResult{Run: *run, Outcomes: outcomes, Aggregate: aggregate}, nil
}

// runParallelReactions 扇出所有 Reaction 任务并等待整批终态，与全局截止时间赛跑。
//
// 每个任务只写自己下标的槽位，槽位互不相交，无需加锁；完成标记用原子量，
// 保证主流程只读取已完成的槽位。全局截止时间到达后未完成的任务被放弃
// （其 ctx 已取消，出站调用随之中断），对应槽位补记 timeout 失败——
// 绝不出现缺槽，也绝不阻塞到截止时间之后。
func (s *SimulationService) runParallelReactions(ctx context.Context, personas []model.Persona, draftContent string) []model.ReactionOutcome {
	runCtx, cancel := context.WithTimeout(ctx, s.globalDeadline)
	defer cancel()

	outcomes := make([]model.ReactionOutcome, len(personas))
	completed := make([]atomic.Bool, len(personas))
	sem := semaphore.NewWeighted(int64(s.maxConcurrency))

	var wg sync.WaitGroup
	for i := range personas {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := sem.Acquire(runCtx, 1); err != nil {
				// 还没排上队全局截止就到了，槽位由下方统一补记
				return
			}
			defer sem.Release(1)
			outcomes[i] = runReaction(runCtx, s.gateway, &personas[i], draftContent, s.taskTimeout)
			completed[i].Store(true)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-runCtx.Done():
		log.Printf("[simulation] 全局截止时间到达，放弃未完成任务")
	}

	// 输出顺序 == 输入 persona 顺序，与并发完成顺序无关
	results := make([]model.ReactionOutcome, len(personas))
	for i := range personas {
		if completed[i].Load() {
			results[i] = outcomes[i]
		} else {
			results[i] = model.ReactionOutcome{
				PersonaID:     personas[i].ID,
				PersonaName:   personas[i].Name,
				Status:        model.OutcomeStatusFailure,
				FailureReason: model.FailureTimeout,
			}
		}
		results[i].Position = i
	}
	return results
}

// GetSimulation 按对外 simulation_id 读取已终态的 run 及其全部 outcome
func (s *SimulationService) GetSimulation(ctx context.Context, simulationID string) (*SimulationResult, error) {
	var run model.SimulationRun
	if err := db.DB.WithContext(ctx).Where("simulation_id = ?", simulationID).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSimulationNotFound, simulationID)
		}
		return nil, fmt.Errorf("查询模拟失败: %w", err)
	}

	var outcomes []model.ReactionOutcome
	if err := db.DB.WithContext(ctx).
		Where("run_id = ?", run.ID).
		Order("position ASC").
		Find(&outcomes).Error; err != nil {
		return nil, fmt.Errorf("查询模拟结果失败: %w", err)
	}

	// 聚合可随时从 outcome 集合重算，不依赖落库的冗余字段
	return &SimulationResult{Run: run, Outcomes: outcomes, Aggregate: ComputeAggregate(outcomes)}, nil
}

// SimulationListItem 列表页的摘要行
type SimulationListItem struct {
	SimulationID     string    `json:"simulation_id"`
	DraftID          uint      `json:"draft_id"`
	DraftPreview     string    `json:"draft_preview"`
	PersonaSetID     string    `json:"persona_set_id"`
	SuccessCount     int       `json:"success_count"`
	FailureCount     int       `json:"failure_count"`
	OverallSentiment string    `json:"overall_sentiment"`
	AvgTrust         *float64  `json:"avg_trust"`
	AvgExcitement    *float64  `json:"avg_excitement"`
	AvgBacklashRisk  *float64  `json:"avg_backlash_risk"`
	CompletedAt      time.Time `json:"completed_at"`
	DurationSeconds  float64   `json:"duration_seconds"`
}

// ListSimulations 分页列出历史模拟（新到旧）
func (s *SimulationService) ListSimulations(ctx context.Context, page, pageSize int) ([]SimulationListItem, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	var total int64
	if err := db.DB.WithContext(ctx).Model(&model.SimulationRun{}).
		Where("status = ?", model.RunStatusCompleted).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计模拟数量失败: %w", err)
	}

	var runs []model.SimulationRun
	if err := db.DB.WithContext(ctx).
		Where("status = ?", model.RunStatusCompleted).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&runs).Error; err != nil {
		return nil, 0, fmt.Errorf("查询模拟列表失败: %w", err)
	}

	items := make([]SimulationListItem, 0, len(runs))
	for _, run := range runs {
		var draft model.Draft
		preview := ""
		if err := db.DB.WithContext(ctx).First(&draft, run.DraftID).Error; err == nil {
			preview = draftPreview(draft.Content)
		}
		items = append(items, SimulationListItem{
			SimulationID:     run.SimulationID,
			DraftID:          run.DraftID,
			DraftPreview:     preview,
			PersonaSetID:     run.PersonaSetID,
			SuccessCount:     run.SuccessCount,
			FailureCount:     run.FailureCount,
			OverallSentiment: run.OverallSentiment,
			AvgTrust:         run.AvgTrust,
			AvgExcitement:    run.AvgExcitement,
			AvgBacklashRisk:  run.AvgBacklashRisk,
			CompletedAt:      run.CompletedAt,
			DurationSeconds:  run.DurationSeconds,
		})
	}
	return items, total, nil
}

func draftPreview(content string) string {
	runes := []rune(content)
	if len(runes) > 100 {
		return string(runes[:100]) + "..."
	}
	return content
}
