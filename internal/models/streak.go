package models

import (
	"time"
)

// CommunityStreakActivity 每个 (profile, community, 日期) 一行
type CommunityStreakActivity struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProfileID     uint      `gorm:"not null;uniqueIndex:idx_streak_day" json:"profile_id"`
	CommunityID   uint      `gorm:"not null;uniqueIndex:idx_streak_day" json:"community_id"`
	ActivityDate  time.Time `gorm:"type:date;not null;uniqueIndex:idx_streak_day" json:"activity_date"`
	PollsAnswered int       `gorm:"default:0;not null" json:"polls_answered"`
	TargetMet     bool      `gorm:"default:false;not null" json:"target_met"` // 当日只会 false -> true 一次
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CommunityStreak 每个 (profile, community) 一行
type CommunityStreak struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	ProfileID        uint       `gorm:"not null;uniqueIndex:idx_streak_owner" json:"profile_id"`
	CommunityID      uint       `gorm:"not null;uniqueIndex:idx_streak_owner" json:"community_id"`
	Community        Community  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CurrentStreak    int        `gorm:"default:0;not null" json:"current_streak"`
	MaxStreak        int        `gorm:"default:0;not null" json:"max_streak"`
	LastActivityDate *time.Time `gorm:"type:date" json:"last_activity_date"`
	StreakStartDate  *time.Time `gorm:"type:date" json:"streak_start_date"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
