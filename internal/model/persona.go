package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Persona 合成粉丝画像 - 模拟的输入，一经生成不再修改
type Persona struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// 同一次生成的 5 个 persona 共享一个 set_id
	SetID string `gorm:"type:varchar(36);not null;index" json:"set_id"`

	Name      string `gorm:"type:varchar(50);not null" json:"name"`
	Archetype string `gorm:"type:varchar(100);not null" json:"archetype"`

	// 忠诚度：1（路人）~ 10（死忠）
	LoyaltyLevel int `gorm:"not null" json:"loyalty_level"`

	// 核心价值观（2-4 个），JSON 数组存储
	CoreValuesJSON string `gorm:"type:varchar(500);not null" json:"-"`

	// 生成时的受众描述，用于反应提示词的上下文
	AudienceDescription string `gorm:"type:text;not null" json:"audience_description"`
}

// CoreValues 反序列化核心价值观列表
func (p *Persona) CoreValues() []string {
	var values []string
	if err := json.Unmarshal([]byte(p.CoreValuesJSON), &values); err != nil {
		return nil
	}
	return values
}

// SetCoreValues 序列化核心价值观列表
func (p *Persona) SetCoreValues(values []string) error {
	b, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("序列化核心价值观失败: %w", err)
	}
	p.CoreValuesJSON = string(b)
	return nil
}

// Validate 校验 persona 不变量：忠诚度 1-10，核心价值观 2-4 个
func (p *Persona) Validate() error {
	if p.LoyaltyLevel < 1 || p.LoyaltyLevel > 10 {
		return fmt.Errorf("loyalty_level 越界: %d（必须在 1-10）", p.LoyaltyLevel)
	}
	n := len(p.CoreValues())
	if n < 2 || n > 4 {
		return fmt.Errorf("core_values 数量越界: %d（必须 2-4 个）", n)
	}
	if p.Name == "" {
		return fmt.Errorf("persona 名称不能为空")
	}
	return nil
}
