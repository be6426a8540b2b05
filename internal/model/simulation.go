package model

import (
	"time"

	"gorm.io/gorm"
)

// 运行状态
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
)

// 单个 persona 任务的终态
const (
	OutcomeStatusSuccess = "success"
	OutcomeStatusFailure = "failure"
)

// FailureReason 失败分类：在 Reaction 任务内部定型，向上只传类型，不抛异常
type FailureReason string

const (
	// 单任务或全局截止时间耗尽
	FailureTimeout FailureReason = "timeout"
	// 网络/连接层失败
	FailureTransportError FailureReason = "transport_error"
	// 服务端硬失败（鉴权、配额等），重试无意义
	FailureProviderError FailureReason = "provider_error"
	// 调用成功但返回内容未通过结构/范围校验，重试无意义
	FailureInvalidResponse FailureReason = "invalid_response"
	// 洞察合成：run 没有任何成功结果
	FailureInsufficientData FailureReason = "insufficient_data"
)

// Retryable 只有超时和传输错误值得重试
func (r FailureReason) Retryable() bool {
	return r == FailureTimeout || r == FailureTransportError
}

// SimulationRun 一次编排执行：对一个草稿跑完整个 persona 集合。
// 终态后不可变；聚合字段在全部任务定型后一次性写入。
type SimulationRun struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// 对外暴露的运行 ID（uuid）
	SimulationID string `gorm:"type:varchar(36);not null;uniqueIndex" json:"simulation_id"`

	DraftID      uint   `gorm:"not null;index" json:"draft_id"`
	PersonaSetID string `gorm:"type:varchar(36);not null;index" json:"persona_set_id"`

	Status string `gorm:"type:varchar(20);not null;index" json:"status"`

	// 聚合：均值只在成功结果上计算；零成功时为 NULL（显式未定义，绝不写 0）
	AvgTrust        *float64 `gorm:"type:decimal(4,2)" json:"avg_trust"`
	AvgExcitement   *float64 `gorm:"type:decimal(4,2)" json:"avg_excitement"`
	AvgBacklashRisk *float64 `gorm:"type:decimal(4,2)" json:"avg_backlash_risk"`

	SuccessCount     int    `json:"success_count"`
	FailureCount     int    `json:"failure_count"`
	OverallSentiment string `gorm:"type:varchar(20)" json:"overall_sentiment"`

	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// ReactionOutcome 一个 (persona, run) 对的终态结果，恰好一条，创建后不再修改。
// 分数字段仅在 success 时有值；failure 时为 NULL + 失败类型。
type ReactionOutcome struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	RunID   uint `gorm:"not null;index" json:"run_id"`
	DraftID uint `gorm:"not null;index" json:"draft_id"`

	PersonaID   uint   `gorm:"not null;index" json:"persona_id"`
	PersonaName string `gorm:"type:varchar(50)" json:"persona_name"`

	// 输出顺序与输入 persona 集合顺序一致，与并发完成顺序无关
	Position int `gorm:"not null" json:"position"`

	Status string `gorm:"type:varchar(20);not null" json:"status"`

	// 三个维度分数，均为 1-10 的整数
	TrustScore        *int `json:"trust_score"`
	ExcitementScore   *int `json:"excitement_score"`
	BacklashRiskScore *int `json:"backlash_risk_score"`

	// 内心独白（未过滤的真实想法）与对外公开评论
	InternalMonologue string `gorm:"type:text" json:"internal_monologue"`
	PublicComment     string `gorm:"type:text" json:"public_comment"`
	Reasoning         string `gorm:"type:text" json:"reasoning"`

	FailureReason FailureReason `gorm:"type:varchar(30)" json:"failure_reason,omitempty"`
}

// Succeeded 是否为成功终态
func (o *ReactionOutcome) Succeeded() bool {
	return o.Status == OutcomeStatusSuccess
}
