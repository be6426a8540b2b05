package model

import (
	"time"

	"gorm.io/gorm"
)

// Insight 对一次已终态 SimulationRun 的洞察合成结果。
// simulation_id 唯一索引保证幂等：已存在即命中缓存，不重复消耗 LLM 调用。
type Insight struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	SimulationID string `gorm:"type:varchar(36);not null;uniqueIndex" json:"simulation_id"`

	// 痛点与改进建议，JSON 数组存储
	PainPointsJSON      string `gorm:"type:text;not null" json:"-"`
	ImprovementTipsJSON string `gorm:"type:text;not null" json:"-"`

	OverallSentiment string `gorm:"type:varchar(20);not null" json:"overall_sentiment"`

	// 冗余快照：与对应 run 的聚合字段一致，便于单表读取
	AvgTrust        *float64 `gorm:"type:decimal(4,2)" json:"avg_trust"`
	AvgExcitement   *float64 `gorm:"type:decimal(4,2)" json:"avg_excitement"`
	AvgBacklashRisk *float64 `gorm:"type:decimal(4,2)" json:"avg_backlash_risk"`
}
