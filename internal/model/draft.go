package model

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	DraftMinLength = 10
	DraftMaxLength = 5000
)

var ErrDraftContentInvalid = errors.New("草稿内容无效")

// Draft 待测试的草稿内容 - 一旦参与过模拟即视为不可变，
// 修改内容会创建新 Draft，以保留历史趋势的可比性
type Draft struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Content string `gorm:"type:text;not null" json:"content"`

	// 本次模拟使用的 persona 集合，用于同集合的趋势追踪
	PersonaSetID string `gorm:"type:varchar(36);index" json:"persona_set_id"`
}

// ValidateDraftContent 草稿长度约束 [10, 5000]
func ValidateDraftContent(content string) error {
	n := len([]rune(content))
	if n < DraftMinLength || n > DraftMaxLength {
		return fmt.Errorf("%w: 长度 %d 越界（必须在 %d-%d 字符）", ErrDraftContentInvalid, n, DraftMinLength, DraftMaxLength)
	}
	return nil
}
