package models

import (
	"time"
)

type ReactionType string

const (
	ReactionLike    ReactionType = "like"
	ReactionDislike ReactionType = "dislike"
)

// CommentReaction 每个用户对每条评论最多一条
type CommentReaction struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	ProfileID    uint         `gorm:"not null;uniqueIndex:idx_reaction_owner" json:"profile_id"`
	CommentID    uint         `gorm:"not null;uniqueIndex:idx_reaction_owner;index" json:"comment_id"`
	ReactionType ReactionType `gorm:"type:varchar(10);not null" json:"reaction_type"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
