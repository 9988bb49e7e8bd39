package models

import (
	"time"
)

// Bookmark 收藏 - 用户收藏投票或评论
type Bookmark struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	ProfileID   uint        `gorm:"not null;index;uniqueIndex:idx_profile_target" json:"profile_id"`
	ContentType ContentKind `gorm:"type:varchar(20);not null;uniqueIndex:idx_profile_target" json:"content_type"`
	ObjectID    uint        `gorm:"not null;uniqueIndex:idx_profile_target" json:"object_id"`
	CreatedAt   time.Time   `json:"created_at"`
}
