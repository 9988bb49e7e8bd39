package models

import (
	"time"
)

const AuraPollParticipation = "poll_participation"

// AuraTransaction 光环值流水，只增不改
type AuraTransaction struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	ProfileID       uint       `gorm:"not null;index" json:"profile_id"`
	Profile         Profile    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	TransactionType string     `gorm:"size:50;not null" json:"transaction_type"`
	Amount          int        `gorm:"not null" json:"amount"` // 正数为增加，负数为扣除
	Description     string     `gorm:"size:255" json:"description"`
	PollID          *uint      `gorm:"index" json:"poll_id"`
	Poll            *Poll      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	CommunityID     *uint      `gorm:"index" json:"community_id"`
	Community       *Community `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
}

// PollAnswerResult 每个 (profile, poll) 一条，创建后不再修改
type PollAnswerResult struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProfileID  uint      `gorm:"not null;uniqueIndex:idx_answer_once" json:"profile_id"`
	PollID     uint      `gorm:"not null;uniqueIndex:idx_answer_once;index" json:"poll_id"`
	IsCorrect  bool      `gorm:"not null" json:"is_correct"`
	AuraEarned int       `gorm:"default:0" json:"aura_earned"`
	CreatedAt  time.Time `json:"created_at"`
}
