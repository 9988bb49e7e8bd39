package models

import (
	"time"
)

type PollType string

const (
	PollTypeSingle    PollType = "single"
	PollTypeMultiple  PollType = "multiple"
	PollTypeRanking   PollType = "ranking"
	PollTypeTextInput PollType = "text_input"
)

type Poll struct {
	ID                  uint         `gorm:"primaryKey" json:"id"`
	Title               string       `gorm:"size:200;not null" json:"title"`
	Description         string       `gorm:"type:text" json:"description"`
	PollType            PollType     `gorm:"type:varchar(20);not null;default:'single'" json:"poll_type"`
	ProfileID           uint         `gorm:"not null;index" json:"profile_id"`
	Profile             Profile      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CommunityID         uint         `gorm:"not null;index" json:"community_id"`
	Community           Community    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	MaxChoices          int          `gorm:"default:1" json:"max_choices"`
	HasCorrectAnswer    bool         `gorm:"default:false" json:"has_correct_answer"`
	CorrectTextAnswer   string       `gorm:"size:50" json:"-"`
	CorrectRankingOrder []uint       `gorm:"type:text;serializer:json" json:"-"` // 正确排序的 option id 列表
	TotalVotes          int          `gorm:"default:0" json:"total_votes"`
	TotalVoters         int          `gorm:"default:0" json:"total_voters"`
	CommentCount        int          `gorm:"default:0" json:"comment_count"`
	LikeCount           int          `gorm:"default:0" json:"like_count"`
	BookmarkCount       int          `gorm:"default:0" json:"bookmark_count"`
	IsDeleted           bool         `gorm:"default:false;index" json:"is_deleted"`
	ExpiresAt           *time.Time   `json:"expires_at"`
	Options             []PollOption `gorm:"foreignKey:PollID" json:"options,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// IsActive 未删除且未过期
func (p *Poll) IsActive(now time.Time) bool {
	if p.IsDeleted {
		return false
	}
	return p.ExpiresAt == nil || now.Before(*p.ExpiresAt)
}

type PollOption struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PollID    uint      `gorm:"not null;index" json:"poll_id"`
	Text      string    `gorm:"size:200" json:"text"`
	IsCorrect bool      `gorm:"default:false" json:"-"`
	Order     int       `gorm:"default:0" json:"order"`
	VoteCount int       `gorm:"default:0" json:"vote_count"`
	CreatedAt time.Time `json:"created_at"`
}

type PollVote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PollID    uint      `gorm:"not null;index;uniqueIndex:idx_vote_option" json:"poll_id"`
	OptionID  uint      `gorm:"not null;uniqueIndex:idx_vote_option" json:"option_id"`
	ProfileID uint      `gorm:"not null;index;uniqueIndex:idx_vote_option" json:"profile_id"`
	Rank      *int      `json:"rank"` // 仅 ranking 类型
	CreatedAt time.Time `json:"created_at"`
}

type PollTextResponse struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PollID    uint      `gorm:"not null;uniqueIndex:idx_text_response" json:"poll_id"`
	ProfileID uint      `gorm:"not null;uniqueIndex:idx_text_response" json:"profile_id"`
	TextValue string    `gorm:"size:50;not null" json:"text_value"`
	CreatedAt time.Time `json:"created_at"`
}
